package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/quillscribe/taskcore/internal/api"
	apiMiddleware "github.com/quillscribe/taskcore/internal/api/middleware"
)

// setupRouter configures the application router with all routes and
// middleware. The task routes are guarded by bearer-token auth when a JWT
// secret is configured.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.Trace)

	taskHandler := api.NewTaskHandler(app.executor, app.logger)
	eventsHandler := api.NewEventsHandler(app.bus, app.config.Executor.EventBuffer, app.logger)

	r.Route("/api", func(r chi.Router) {
		if app.config.Auth.JWTSecret != "" {
			auth := apiMiddleware.NewAuthMiddleware(app.config.Auth.JWTSecret)
			r.Use(auth.Authenticate)
		}

		r.Post("/tasks", taskHandler.SubmitTask)
		r.Get("/tasks", taskHandler.ListTasks)
		r.Delete("/tasks/{id}", taskHandler.CancelTask)
		r.Get("/events", eventsHandler.StreamEvents)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
