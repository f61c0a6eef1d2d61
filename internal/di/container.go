// Package di provides dependency injection configuration for the Rock of Ages API.
package di

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/clairecatohanson/rock-of-ages-api/internal/auth"
	"github.com/clairecatohanson/rock-of-ages-api/internal/config"
	"github.com/clairecatohanson/rock-of-ages-api/internal/di/providers"
	"github.com/clairecatohanson/rock-of-ages-api/internal/logger"
	"github.com/clairecatohanson/rock-of-ages-api/internal/service"
)

// NewContainer creates and configures the DI container for the API server.
func NewContainer() *do.RootScope {
	injector := do.New()

	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	registerCore(injector)

	// Auth layer
	do.Provide(injector, providers.ProvideAuthKey)
	do.Provide(injector, providers.ProvideTokenService)

	// Realtime
	do.Provide(injector, providers.ProvideSSEManager)

	// Business services
	do.Provide(injector, providers.ProvideSessionService)
	do.Provide(injector, providers.ProvideAuthService)
	do.Provide(injector, providers.ProvideRockService)

	// Workers
	do.Provide(injector, providers.ProvideSessionCleanupJob)

	// Server
	do.Provide(injector, providers.ProvideAuthLimiter)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// NewToolContainer creates a container for offline tooling around a fixed
// configuration and logger. Only storage, search and the type catalogue are
// registered, so nothing listens on the network.
func NewToolContainer(cfg *config.Config, log *logger.Logger) *do.RootScope {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, log)
	registerCore(injector)

	return injector
}

func registerCore(injector do.Injector) {
	do.Provide(injector, providers.ProvideValidator)

	// Database layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideTypeService)
	do.Provide(injector, providers.ProvideBootstrap)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)
}

// Bootstrap initializes all services and starts the HTTP server.
// This triggers lazy initialization of every provider.
func Bootstrap(injector *do.RootScope) (err error) {
	// Providers report failures by panicking through MustInvoke.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bootstrap: %v", r)
		}
	}()

	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)

	// Business services
	_ = do.MustInvoke[*service.SessionService](injector)
	_ = do.MustInvoke[*service.AuthService](injector)
	_ = do.MustInvoke[*service.TypeService](injector)
	_ = do.MustInvoke[*service.RockService](injector)
	_ = do.MustInvoke[*providers.Bootstrap](injector)

	// Workers
	_ = do.MustInvoke[*providers.SessionCleanupJob](injector)

	// Server
	_ = do.MustInvoke[*providers.AuthLimiterHandle](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}
