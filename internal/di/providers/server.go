package providers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/samber/do/v2"

	"github.com/clairecatohanson/rock-of-ages-api/internal/api"
	"github.com/clairecatohanson/rock-of-ages-api/internal/config"
	"github.com/clairecatohanson/rock-of-ages-api/internal/logger"
	"github.com/clairecatohanson/rock-of-ages-api/internal/ratelimit"
	"github.com/clairecatohanson/rock-of-ages-api/internal/service"
)

// AuthLimiterHandle wraps the auth endpoint rate limiter so its eviction
// loop stops on shutdown. Limiter is nil when throttling is disabled.
type AuthLimiterHandle struct {
	Limiter *ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *AuthLimiterHandle) Shutdown() error {
	if h.Limiter != nil {
		h.Limiter.Stop()
	}
	return nil
}

// ProvideAuthLimiter provides the per-client limiter for register, login and refresh.
func ProvideAuthLimiter(i do.Injector) (*AuthLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.RateLimit.AuthPerMinute <= 0 {
		log.Info("Auth rate limiting disabled")
		return &AuthLimiterHandle{}, nil
	}

	limiter := ratelimit.PerInterval(cfg.RateLimit.AuthPerMinute, time.Minute, cfg.RateLimit.AuthBurst)
	log.Info("Auth rate limiting enabled",
		"per_minute", cfg.RateLimit.AuthPerMinute,
		"burst", cfg.RateLimit.AuthBurst,
	)

	return &AuthLimiterHandle{Limiter: limiter}, nil
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer builds the API handler and starts listening in the background.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	limiterHandle := do.MustInvoke[*AuthLimiterHandle](i)

	services := &api.Services{
		Auth: do.MustInvoke[*service.AuthService](i),
		Rock: do.MustInvoke[*service.RockService](i),
		Type: do.MustInvoke[*service.TypeService](i),
	}

	handler := api.NewServer(storeHandle.Store, services, sseHandle.Manager, indexHandle.SearchIndex, api.Config{
		Name:           cfg.Server.Name,
		Version:        api.ServerVersion,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AuthLimiter:    limiterHandle.Limiter,
	}, log.Logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Bind before returning so a taken port fails startup.
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, err
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
