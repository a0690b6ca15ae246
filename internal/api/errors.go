package api

import (
	"errors"
	"net/http"

	"github.com/quillscribe/taskcore/internal/task"
)

// MapErrorToStatusCode maps executor errors to HTTP status codes without
// leaking internal error details to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, task.ErrUnknownTaskType),
		errors.Is(err, task.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, task.ErrExecutorClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-facing message for err.
func GetSafeErrorMessage(err error) string {
	switch {
	case errors.Is(err, task.ErrUnknownTaskType):
		return "Unknown task type"
	case errors.Is(err, task.ErrInvalidInput):
		return "Invalid task input: " + err.Error()
	case errors.Is(err, task.ErrExecutorClosed):
		return "Task executor is shutting down"
	default:
		return "Internal server error"
	}
}
