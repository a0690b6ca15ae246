// Command server runs the task execution service: it wires the handler
// registry, executor and event bus together and exposes them over HTTP.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/quillscribe/taskcore/internal/config"
	"github.com/quillscribe/taskcore/internal/platform/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.Setup(cfg.Server)
	log.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"max_concurrency", cfg.Executor.MaxConcurrency,
		"auth_enabled", cfg.Auth.JWTSecret != "")

	app, err := newApplication(context.Background(), cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.serve()
}
