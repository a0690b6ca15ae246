package task

import "errors"

// Errors returned synchronously by the registry and executor.
var (
	// ErrUnknownTaskType is returned by Submit when no handler is registered
	// for the requested type.
	ErrUnknownTaskType = errors.New("unknown task type")

	// ErrInvalidInput wraps a handler's validation failure. Submission is
	// aborted: no task is created and no event is emitted.
	ErrInvalidInput = errors.New("invalid task input")

	// ErrHandlerRegistered is returned by Register when a handler for the
	// same type already exists. Re-registration is rejected, never silently
	// overwritten.
	ErrHandlerRegistered = errors.New("handler already registered for type")

	// ErrEmptyHandlerType is returned by Register for a handler whose Type()
	// is the empty string.
	ErrEmptyHandlerType = errors.New("handler type cannot be empty")

	// ErrExecutorClosed is returned by Submit after Destroy has been called.
	ErrExecutorClosed = errors.New("executor is closed")
)
