package shared

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context values set by this package.
type ContextKey string

const (
	// TraceIDKey is the key for the request trace ID.
	TraceIDKey ContextKey = "traceID"

	// SubjectContextKey is the key for the authenticated subject set by the
	// auth middleware.
	SubjectContextKey ContextKey = "subject"
)

// SetTraceID adds a fresh trace ID to the context.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, uuid.NewString())
}

// GetTraceID retrieves the trace ID from the context, or "" if absent.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// GetSubject retrieves the authenticated subject from the context, or "" if
// the request was not authenticated.
func GetSubject(ctx context.Context) string {
	subject, ok := ctx.Value(SubjectContextKey).(string)
	if !ok {
		return ""
	}
	return subject
}
