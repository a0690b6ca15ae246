package task

import (
	"fmt"
	"log/slog"
	"sync"
)

// Registry is a keyed lookup from task type to Handler. Registration of an
// already-registered type is rejected with ErrHandlerRegistered so that two
// subsystems can never silently fight over a type key.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   logger.With("component", "task_registry"),
	}
}

// Register stores the handler under its Type key.
func (r *Registry) Register(h Handler) error {
	typ := h.Type()
	if typ == "" {
		return ErrEmptyHandlerType
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[typ]; exists {
		return fmt.Errorf("%w: %q", ErrHandlerRegistered, typ)
	}
	r.handlers[typ] = h
	r.logger.Debug("handler registered", "task_type", typ, "handler_count", len(r.handlers))
	return nil
}

// Get returns the handler registered for the given type.
func (r *Registry) Get(typ string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[typ]
	return h, ok
}

// Has reports whether a handler is registered for the given type.
func (r *Registry) Has(typ string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[typ]
	return ok
}

// Types returns the registered type keys in no particular order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for typ := range r.handlers {
		types = append(types, typ)
	}
	return types
}
