package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clairecatohanson/rock-of-ages-api/internal/domain"
	domainerrors "github.com/clairecatohanson/rock-of-ages-api/internal/errors"
	"github.com/clairecatohanson/rock-of-ages-api/internal/id"
	"github.com/clairecatohanson/rock-of-ages-api/internal/service"
)

const requestIDHeader = "X-Request-ID"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	contextKeyRequestID contextKey = "request_id"
	contextKeyClient    contextKey = "client"
	contextKeyUser      contextKey = "user"
	contextKeySessionID contextKey = "session_id"
)

// requestID tags each request with the caller's X-Request-ID or a fresh
// UUID, and echoes it back in the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if reqID == "" || len(reqID) > 128 {
			reqID = id.NewRequestID()
		}
		w.Header().Set(requestIDHeader, reqID)

		ctx := context.WithValue(r.Context(), contextKeyRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// getRequestID returns the request id, or "" outside a request.
func getRequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// requestLogger logs one line per request once the response is written.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}

				level := slog.LevelInfo
				switch {
				case status >= 500:
					level = slog.LevelError
				case status >= 400:
					level = slog.LevelWarn
				}

				logger.LogAttrs(r.Context(), level, "http request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", status),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", time.Since(start)),
					slog.String("request_id", getRequestID(r.Context())),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// clientInfo records the caller's address and user agent for session
// auditing. It runs after RealIP so proxies are accounted for.
func clientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := service.ClientInfo{
			IPAddress: hostOnly(r.RemoteAddr),
			UserAgent: r.UserAgent(),
		}
		ctx := context.WithValue(r.Context(), contextKeyClient, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getClientInfo(ctx context.Context) service.ClientInfo {
	info, _ := ctx.Value(contextKeyClient).(service.ClientInfo)
	return info
}

// authMiddleware validates Bearer tokens and stores the user in context.
// If no token is present or it is invalid, the request continues
// anonymously and handlers that need a user reject it with requireUser.
func authMiddleware(auth *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			user, claims, err := auth.VerifyAccessToken(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyUser, user)
			ctx = context.WithValue(ctx, contextKeySessionID, claims.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// requireUser returns the authenticated user, or a 401 error.
func requireUser(ctx context.Context) (*domain.User, error) {
	user, ok := ctx.Value(contextKeyUser).(*domain.User)
	if !ok || user == nil {
		return nil, domainerrors.Unauthorized("authentication required")
	}
	return user, nil
}

// authenticateStream lets the event stream reuse access token checks.
func (s *Server) authenticateStream(ctx context.Context, token string) (string, error) {
	user, _, err := s.services.Auth.VerifyAccessToken(ctx, token)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// rateLimitAuth throttles an operation per client address.
func (s *Server) rateLimitAuth(ctx huma.Context, next func(huma.Context)) {
	if s.authLimiter == nil {
		next(ctx)
		return
	}

	key := hostOnly(ctx.RemoteAddr())
	if !s.authLimiter.Allow(key) {
		s.logger.Warn("rate limit exceeded",
			"ip", key,
			"path", ctx.URL().Path,
		)
		_ = huma.WriteErr(s.api, ctx, http.StatusTooManyRequests, "too many requests, try again later")
		return
	}

	next(ctx)
}

// hostOnly strips the port from a host:port address.
func hostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
