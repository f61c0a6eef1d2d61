// Package main provides the entry point for the Rock of Ages API server.
package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/clairecatohanson/rock-of-ages-api/internal/di"
	"github.com/clairecatohanson/rock-of-ages-api/internal/logger"
)

func main() {
	injector := di.NewContainer()

	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap server: %v\n", err)
		if report := injector.Shutdown(); report != nil && !report.Succeed {
			fmt.Fprintln(os.Stderr, report.Error())
		}
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)
	log.Info("Server running, press Ctrl+C to stop")

	// Services shut down in reverse dependency order: the HTTP server first,
	// the store and search index last.
	sig, report := injector.ShutdownOnSignals(syscall.SIGINT, syscall.SIGTERM)
	log.Info("Server stopped", "signal", sig)

	if report != nil && !report.Succeed {
		log.Error("Shutdown error", "error", report.Error())
		os.Exit(1)
	}

	log.Info("Shutdown complete", "took", report.ShutdownTime)
}
