package task

import "context"

// Handler is the pluggable contract for one task type's actual work.
//
// Execute receives the input the task was submitted with, a context that
// serves as the task's cooperative cancellation signal, and a Reporter for
// publishing progress and incremental output. Cancellation is advisory: the
// executor cancels the context (on Cancel, timeout, or Destroy) but never
// forcibly terminates a handler; implementations must observe ctx and return
// promptly, conventionally with an error wrapping ctx.Err().
//
// A handler's return is its terminal outcome: the result value on success,
// or an error. Errors and panics are isolated to the task that produced
// them.
type Handler interface {
	// Type returns the string key the handler is registered under.
	Type() string

	// Execute runs the work. It is always invoked on its own goroutine.
	Execute(ctx context.Context, input any, rep Reporter) (any, error)
}

// Validator is optionally implemented by handlers that can check input
// synchronously at submission time. A validation error aborts the
// submission: no task is created and no event is emitted.
type Validator interface {
	Validate(input any) error
}

// Reporter lets a running handler publish intermediate feedback. Every call
// emits one event immediately, in call order; progress and stream events
// interleave exactly as the handler produces them. Calls made after the
// task has reached a terminal status are dropped.
type Reporter interface {
	// Progress reports completion in percent (clamped to [0, 100]) with an
	// optional human-readable message and optional structured data.
	Progress(percent float64, message string, data any)

	// Stream publishes one incremental output chunk, e.g. a generated token.
	Stream(chunk string)
}
