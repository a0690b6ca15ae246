package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quillscribe/taskcore/internal/config"
	"github.com/quillscribe/taskcore/internal/events"
	"github.com/quillscribe/taskcore/internal/handlers"
	"github.com/quillscribe/taskcore/internal/platform/gemini"
	"github.com/quillscribe/taskcore/internal/task"
)

// application holds the wired dependencies for the running service.
type application struct {
	config   *config.Config
	logger   *slog.Logger
	registry *task.Registry
	executor *task.Executor
	bus      *events.Bus
}

// newApplication builds the event bus, handler registry and executor, and
// registers the built-in handlers.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	bus := events.NewBus(logger)
	registry := task.NewRegistry(logger)

	executor := task.New(registry, bus,
		task.Config{MaxConcurrency: cfg.Executor.MaxConcurrency}, logger)

	app := &application{
		config:   cfg,
		logger:   logger,
		registry: registry,
		executor: executor,
		bus:      bus,
	}

	if err := app.registerHandlers(ctx); err != nil {
		return nil, err
	}
	return app, nil
}

func (app *application) registerHandlers(ctx context.Context) error {
	download, err := handlers.NewDownloadHandler(nil, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create download handler: %w", err)
	}
	if err := app.registry.Register(download); err != nil {
		return fmt.Errorf("failed to register download handler: %w", err)
	}

	// The generation handler needs an API key; without one the service
	// still runs with the remaining handlers.
	if app.config.LLM.GeminiAPIKey == "" {
		app.logger.Warn("no Gemini API key configured, generate tasks disabled")
		return nil
	}
	generator, err := gemini.NewGenerator(ctx, app.logger, app.config.LLM)
	if err != nil {
		return fmt.Errorf("failed to create Gemini generator: %w", err)
	}
	generate, err := handlers.NewGenerateHandler(generator, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create generate handler: %w", err)
	}
	if err := app.registry.Register(generate); err != nil {
		return fmt.Errorf("failed to register generate handler: %w", err)
	}

	app.logger.Info("task handlers registered", "types", app.registry.Types())
	return nil
}

// cleanup tears the application down: the executor first so its final events
// still reach bus subscribers, then the bus itself.
func (app *application) cleanup() {
	app.executor.Destroy()
	app.bus.Close()
}
