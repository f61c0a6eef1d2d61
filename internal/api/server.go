// Package api provides the HTTP API server and handlers for the Rock of Ages API.
package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/clairecatohanson/rock-of-ages-api/internal/http/response"
	"github.com/clairecatohanson/rock-of-ages-api/internal/ratelimit"
	"github.com/clairecatohanson/rock-of-ages-api/internal/search"
	"github.com/clairecatohanson/rock-of-ages-api/internal/service"
	"github.com/clairecatohanson/rock-of-ages-api/internal/sse"
	"github.com/clairecatohanson/rock-of-ages-api/internal/store"
)

// ServerVersion is reported in the OpenAPI document and by rockctl.
const ServerVersion = "1.0.0"

// Services groups the business logic the API server calls into.
type Services struct {
	Auth *service.AuthService
	Rock *service.RockService
	Type *service.TypeService
}

// Config holds the HTTP-facing settings of a Server.
type Config struct {
	Name           string
	Version        string
	AllowedOrigins []string

	// AuthLimiter throttles the register, login and refresh operations per
	// client address. Nil disables throttling.
	AuthLimiter *ratelimit.KeyedRateLimiter
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store       store.Store
	services    *Services
	sseManager  *sse.Manager
	searchIndex *search.SearchIndex
	authLimiter *ratelimit.KeyedRateLimiter
	router      *chi.Mux
	api         huma.API
	logger      *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
// searchIndex may be nil when search is disabled.
func NewServer(
	st store.Store,
	services *Services,
	sseManager *sse.Manager,
	searchIndex *search.SearchIndex,
	cfg Config,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Name == "" {
		cfg.Name = "Rock of Ages API"
	}
	if cfg.Version == "" {
		cfg.Version = ServerVersion
	}

	s := &Server{
		store:       st,
		services:    services,
		sseManager:  sseManager,
		searchIndex: searchIndex,
		authLimiter: cfg.AuthLimiter,
		router:      chi.NewRouter(),
		logger:      logger,
	}

	s.setupMiddleware(cfg.AllowedOrigins)

	RegisterErrorHandler()
	s.api = humachi.New(s.router, newHumaConfig(cfg.Name, cfg.Version))

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API the operations are registered on.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) setupMiddleware(allowedOrigins []string) {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	s.router.Use(requestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))
	s.router.Use(clientInfo)
	if s.services != nil && s.services.Auth != nil {
		s.router.Use(authMiddleware(s.services.Auth))
	}

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path), s.logger)
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.MethodNotAllowed(w, fmt.Sprintf("%s is not allowed on %s", r.Method, r.URL.Path), s.logger)
	})
}

func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerUserRoutes()
	s.registerTypeRoutes()
	s.registerRockRoutes()

	if s.sseManager != nil && s.services != nil && s.services.Auth != nil {
		s.router.Get("/events", sse.NewHandler(s.sseManager, s.authenticateStream, s.logger).ServeHTTP)
	}
}

func newHumaConfig(name, version string) huma.Config {
	config := huma.DefaultConfig(name, version)

	// Responses carry exactly the documented shapes, without $schema links.
	config.CreateHooks = nil

	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}

	config.Formats[plainTextContentType] = huma.Format{
		Marshal: func(w io.Writer, v any) error {
			if err, ok := v.(error); ok {
				_, werr := io.WriteString(w, err.Error())
				return werr
			}
			_, err := fmt.Fprint(w, v)
			return err
		},
		Unmarshal: func(_ []byte, _ any) error {
			return fmt.Errorf("request bodies must be JSON, not %s", plainTextContentType)
		},
	}

	return config
}

var bearerSecurity = []map[string][]string{{"bearer": {}}}
