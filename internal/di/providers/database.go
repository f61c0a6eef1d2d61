package providers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/clairecatohanson/rock-of-ages-api/internal/config"
	"github.com/clairecatohanson/rock-of-ages-api/internal/logger"
	"github.com/clairecatohanson/rock-of-ages-api/internal/service"
	"github.com/clairecatohanson/rock-of-ages-api/internal/sse"
	"github.com/clairecatohanson/rock-of-ages-api/internal/store"
	"github.com/clairecatohanson/rock-of-ages-api/internal/store/kv"
	"github.com/clairecatohanson/rock-of-ages-api/internal/store/mysql"
	"github.com/clairecatohanson/rock-of-ages-api/internal/store/sqlite"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager with its
// broadcast loop already running.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreHandle wraps the configured store backend with shutdown capability.
type StoreHandle struct {
	store.Store
	Driver string
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the backend selected by the database driver.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	st, err := OpenStore(cfg, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "driver", cfg.Database.Driver)

	return &StoreHandle{Store: st, Driver: cfg.Database.Driver}, nil
}

// OpenStore opens the store backend named by cfg.Database.Driver. File
// based backends live under the data path.
func OpenStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverMySQL:
		return mysql.Open(cfg.Database.DSN, logger)
	case config.DriverBadger:
		dir := filepath.Join(cfg.Data.BasePath, "kv")
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		return kv.Open(dir, logger)
	case config.DriverSQLite, "":
		if err := os.MkdirAll(cfg.Data.BasePath, 0o750); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		return sqlite.Open(filepath.Join(cfg.Data.BasePath, "rocks.db"), logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

// Bootstrap reports what startup seeding did.
type Bootstrap struct {
	TypesCreated int
}

// ProvideBootstrap seeds the default rock types.
func ProvideBootstrap(i do.Injector) (*Bootstrap, error) {
	log := do.MustInvoke[*logger.Logger](i)
	types := do.MustInvoke[*service.TypeService](i)

	created, err := types.EnsureDefaults(context.Background())
	if err != nil {
		return nil, fmt.Errorf("seed rock types: %w", err)
	}

	log.Info("Rock types ready", "created", created)

	return &Bootstrap{TypesCreated: created}, nil
}
