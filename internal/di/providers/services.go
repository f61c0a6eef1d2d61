package providers

import (
	"github.com/samber/do/v2"

	"github.com/clairecatohanson/rock-of-ages-api/internal/auth"
	"github.com/clairecatohanson/rock-of-ages-api/internal/logger"
	"github.com/clairecatohanson/rock-of-ages-api/internal/service"
	"github.com/clairecatohanson/rock-of-ages-api/internal/store"
	"github.com/clairecatohanson/rock-of-ages-api/internal/validation"
)

// ProvideSessionService provides the session management service.
func ProvideSessionService(i do.Injector) (*service.SessionService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSessionService(storeHandle.Store, tokenService, log.Logger), nil
}

// ProvideAuthService provides the authentication service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	sessionService := do.MustInvoke[*service.SessionService](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthService(storeHandle.Store, tokenService, sessionService, validator, log.Logger), nil
}

// ProvideTypeService provides the rock type catalogue service.
func ProvideTypeService(i do.Injector) (*service.TypeService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTypeService(storeHandle.Store, log.Logger), nil
}

// ProvideRockService provides the rock service, wired to the search index
// and the SSE manager.
func ProvideRockService(i do.Injector) (*service.RockService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	// A nil *search.SearchIndex must not reach the service as a non-nil interface.
	var (
		indexer  store.SearchIndexer
		searcher service.RockSearcher
	)
	if indexHandle.SearchIndex != nil {
		indexer = indexHandle.SearchIndex
		searcher = indexHandle.SearchIndex
	}

	return service.NewRockService(storeHandle.Store, indexer, searcher, sseHandle.Manager, validator, log.Logger), nil
}
