package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(newTestLogger())
	handler := echoHandler()

	require.NoError(t, registry.Register(handler))

	got, ok := registry.Get("echo")
	assert.True(t, ok)
	assert.Same(t, handler, got)
	assert.True(t, registry.Has("echo"))

	_, ok = registry.Get("missing")
	assert.False(t, ok)
	assert.False(t, registry.Has("missing"))
}

func TestRegistry_RejectsDuplicateType(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(newTestLogger())
	first := echoHandler()
	require.NoError(t, registry.Register(first))

	err := registry.Register(echoHandler())
	assert.ErrorIs(t, err, ErrHandlerRegistered)

	// The original registration stays in place.
	got, ok := registry.Get("echo")
	require.True(t, ok)
	assert.Same(t, first, got)
}

func TestRegistry_RejectsEmptyType(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(newTestLogger())
	empty := &funcHandler{
		typ: "",
		execute: func(ctx context.Context, input any, rep Reporter) (any, error) {
			return nil, nil
		},
	}
	assert.ErrorIs(t, registry.Register(empty), ErrEmptyHandlerType)
}

func TestRegistry_Types(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(newTestLogger())
	require.NoError(t, registry.Register(echoHandler()))
	require.NoError(t, registry.Register(blockingHandler("hang", nil)))

	assert.ElementsMatch(t, []string{"echo", "hang"}, registry.Types())
}
