package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/quillscribe/taskcore/internal/api/shared"
	"github.com/quillscribe/taskcore/internal/task"
)

// SubmitTaskRequest is the request body for submitting a task.
type SubmitTaskRequest struct {
	Type      string          `json:"type"       validate:"required"`
	Input     json.RawMessage `json:"input"`
	Priority  string          `json:"priority"   validate:"omitempty,oneof=low normal high"`
	TimeoutMs int64           `json:"timeout_ms" validate:"omitempty,gt=0"`
	Origin    string          `json:"origin"`
}

// SubmitTaskResponse is the response body for a successful submission.
type SubmitTaskResponse struct {
	TaskID string `json:"task_id"`
}

// TaskHandler handles task-related HTTP requests.
type TaskHandler struct {
	executor  *task.Executor
	validator *validator.Validate
	logger    *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(executor *task.Executor, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		executor:  executor,
		validator: validator.New(),
		logger:    logger.With("component", "task_handler"),
	}
}

// SubmitTask handles POST /api/tasks. Submission is synchronous; everything
// after a 202 is observable on the event stream.
func (h *TaskHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req SubmitTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	opts := make([]task.SubmitOption, 0, 3)
	if req.Priority != "" {
		priority, err := task.ParsePriority(req.Priority)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid priority")
			return
		}
		opts = append(opts, task.WithPriority(priority))
	}
	if req.TimeoutMs > 0 {
		opts = append(opts, task.WithTimeout(time.Duration(req.TimeoutMs)*time.Millisecond))
	}
	if req.Origin != "" {
		opts = append(opts, task.WithOrigin(req.Origin))
	}

	id, err := h.executor.Submit(req.Type, req.Input, opts...)
	if err != nil {
		h.logger.Debug("task submission rejected",
			"task_type", req.Type,
			"error", err,
			"trace_id", shared.GetTraceID(r.Context()))
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitTaskResponse{TaskID: id.String()})
}

// CancelTask handles DELETE /api/tasks/{id}.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task id")
		return
	}

	if !h.executor.Cancel(id) {
		shared.RespondWithError(w, r, http.StatusNotFound, "Task not found or already finished")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTasks handles GET /api/tasks.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.executor.List())
}
