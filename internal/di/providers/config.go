// Package providers contains dependency injection providers for the Rock of Ages API.
package providers

import (
	"os"

	"github.com/samber/do/v2"

	"github.com/clairecatohanson/rock-of-ages-api/internal/config"
	"github.com/clairecatohanson/rock-of-ages-api/internal/logger"
)

// ProvideConfig loads the configuration from the process arguments and environment.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig(os.Args[1:])
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Format:      cfg.Logger.Format,
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Debug("Logger ready",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Data.BasePath,
		"db_driver", cfg.Database.Driver,
	)

	return log, nil
}
