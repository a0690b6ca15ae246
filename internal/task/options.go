package task

import "time"

// SubmitOption customizes a single submission.
type SubmitOption func(*submitOptions)

type submitOptions struct {
	priority Priority
	timeout  time.Duration
	origin   string
}

// WithPriority sets the task's scheduling priority. The default is
// PriorityNormal.
func WithPriority(p Priority) SubmitOption {
	return func(opts *submitOptions) {
		opts.priority = p
	}
}

// WithTimeout arms a timer that fires the task's cancellation signal after d
// has elapsed while the task is running. The signal is cooperative: a handler
// that never observes it keeps running until its own work settles.
func WithTimeout(d time.Duration) SubmitOption {
	return func(opts *submitOptions) {
		opts.timeout = d
	}
}

// WithOrigin routes the task's events to the named origin instead of
// broadcasting them.
func WithOrigin(origin string) SubmitOption {
	return func(opts *submitOptions) {
		opts.origin = origin
	}
}
