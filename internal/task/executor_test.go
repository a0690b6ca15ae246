package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillscribe/taskcore/internal/events"
)

const eventWait = 2 * time.Second

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// recordingSink captures every published event and exposes them both as an
// ordered slice and as a channel for blocking waits.
type recordingSink struct {
	mu      sync.Mutex
	events  []events.Event
	pending []events.Event
	ch      chan events.Event
}

func newRecordingSink() *recordingSink {
	return &recordingSink{ch: make(chan events.Event, 1024)}
}

func (s *recordingSink) Publish(ev events.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	s.ch <- ev
}

func (s *recordingSink) all() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordingSink) typesFor(id uuid.UUID) []events.Type {
	var types []events.Type
	for _, ev := range s.all() {
		if ev.TaskID == id {
			types = append(types, ev.Type)
		}
	}
	return types
}

// takePending removes and returns the first buffered event matching the
// predicate, if any. Events drained from the channel while waiting for a
// different event are parked in pending so later waits can still observe them.
func (s *recordingSink) takePending(match func(events.Event) bool) (events.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, ev := range s.pending {
		if match(ev) {
			s.pending = append(s.pending[:i:i], s.pending[i+1:]...)
			return ev, true
		}
	}
	return events.Event{}, false
}

func (s *recordingSink) park(ev events.Event) {
	s.mu.Lock()
	s.pending = append(s.pending, ev)
	s.mu.Unlock()
}

// waitFor blocks until an event of the given type for the given task arrives.
func (s *recordingSink) waitFor(t *testing.T, id uuid.UUID, typ events.Type) events.Event {
	t.Helper()
	match := func(ev events.Event) bool { return ev.TaskID == id && ev.Type == typ }
	if ev, ok := s.takePending(match); ok {
		return ev
	}
	deadline := time.After(eventWait)
	for {
		select {
		case ev := <-s.ch:
			if match(ev) {
				return ev
			}
			s.park(ev)
		case <-deadline:
			t.Fatalf("timed out waiting for %s event for task %s", typ, id)
		}
	}
}

// waitForType blocks until the next event of the given type for any task.
func (s *recordingSink) waitForType(t *testing.T, typ events.Type) events.Event {
	t.Helper()
	match := func(ev events.Event) bool { return ev.Type == typ }
	if ev, ok := s.takePending(match); ok {
		return ev
	}
	deadline := time.After(eventWait)
	for {
		select {
		case ev := <-s.ch:
			if match(ev) {
				return ev
			}
			s.park(ev)
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", typ)
		}
	}
}

// funcHandler implements Handler (and Validator) with plain functions.
type funcHandler struct {
	typ      string
	validate func(input any) error
	execute  func(ctx context.Context, input any, rep Reporter) (any, error)
}

func (h *funcHandler) Type() string { return h.typ }

func (h *funcHandler) Validate(input any) error {
	if h.validate == nil {
		return nil
	}
	return h.validate(input)
}

func (h *funcHandler) Execute(ctx context.Context, input any, rep Reporter) (any, error) {
	return h.execute(ctx, input, rep)
}

// echoHandler resolves immediately with {echoed: input}.
func echoHandler() *funcHandler {
	return &funcHandler{
		typ: "echo",
		execute: func(ctx context.Context, input any, rep Reporter) (any, error) {
			return map[string]any{"echoed": input}, nil
		},
	}
}

// blockingHandler hangs until release is closed or a value is sent, then
// resolves. It returns ctx.Err() if cancelled first.
func blockingHandler(typ string, release <-chan struct{}) *funcHandler {
	return &funcHandler{
		typ: typ,
		execute: func(ctx context.Context, input any, rep Reporter) (any, error) {
			select {
			case <-release:
				return "done", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
}

func newTestExecutor(t *testing.T, maxConcurrency int, handlers ...Handler) (*Executor, *recordingSink) {
	t.Helper()
	logger := newTestLogger()
	registry := NewRegistry(logger)
	for _, h := range handlers {
		require.NoError(t, registry.Register(h))
	}
	sink := newRecordingSink()
	exec := New(registry, sink, Config{MaxConcurrency: maxConcurrency}, logger)
	t.Cleanup(exec.Destroy)
	return exec, sink
}

func TestExecutor_BasicLifecycle(t *testing.T) {
	t.Parallel()

	exec, sink := newTestExecutor(t, 2, echoHandler())

	input := map[string]any{"msg": "hi"}
	id, err := exec.Submit("echo", input)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	completed := sink.waitFor(t, id, events.TypeCompleted)
	assert.Equal(t, map[string]any{"echoed": input}, completed.Result)
	assert.GreaterOrEqual(t, completed.DurationMs, int64(0))

	assert.Equal(t,
		[]events.Type{events.TypeQueued, events.TypeStarted, events.TypeCompleted},
		sink.typesFor(id))

	queued := sink.all()[0]
	assert.Equal(t, events.TypeQueued, queued.Type)
	assert.Equal(t, 1, queued.Position)
	assert.Equal(t, "echo", queued.TaskType)
}

func TestExecutor_UnknownType(t *testing.T) {
	t.Parallel()

	exec, sink := newTestExecutor(t, 2, echoHandler())

	id, err := exec.Submit("does-not-exist", map[string]any{})
	assert.ErrorIs(t, err, ErrUnknownTaskType)
	assert.Equal(t, uuid.Nil, id)
	assert.Empty(t, exec.List())
	assert.Empty(t, sink.all())
}

func TestExecutor_ValidationRejection(t *testing.T) {
	t.Parallel()

	invalid := errors.New("input must contain a name")
	handler := &funcHandler{
		typ:      "strict",
		validate: func(input any) error { return invalid },
		execute: func(ctx context.Context, input any, rep Reporter) (any, error) {
			t.Error("execute must not be called for rejected input")
			return nil, nil
		},
	}
	exec, sink := newTestExecutor(t, 2, handler)

	id, err := exec.Submit("strict", 42)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, invalid)
	assert.Equal(t, uuid.Nil, id)
	assert.Empty(t, exec.List())
	assert.Empty(t, sink.all())
}

func TestExecutor_TaskIDUniqueness(t *testing.T) {
	t.Parallel()

	exec, sink := newTestExecutor(t, 4, echoHandler())

	const n = 50
	seen := make(map[uuid.UUID]bool, n)
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		id, err := exec.Submit("echo", i)
		require.NoError(t, err)
		assert.False(t, seen[id], "duplicate task id %s", id)
		seen[id] = true
		ids = append(ids, id)
	}
	for _, id := range ids {
		sink.waitFor(t, id, events.TypeCompleted)
	}
}

func TestExecutor_ConcurrencyCap(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	exec, sink := newTestExecutor(t, 2, blockingHandler("hang", release))

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		id, err := exec.Submit("hang", nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	// Exactly the first two reach started; the third stays queued.
	first := sink.waitForType(t, events.TypeStarted)
	second := sink.waitForType(t, events.TypeStarted)
	assert.ElementsMatch(t, []uuid.UUID{ids[0], ids[1]}, []uuid.UUID{first.TaskID, second.TaskID})
	assert.NotContains(t, sink.typesFor(ids[2]), events.TypeStarted)

	snapshots := exec.List()
	require.Len(t, snapshots, 3)
	assert.Equal(t, StatusQueued, snapshots[2].Status)

	// Freeing one slot lets the third task start.
	release <- struct{}{}
	sink.waitFor(t, ids[2], events.TypeStarted)

	close(release)
	for _, id := range ids {
		sink.waitFor(t, id, events.TypeCompleted)
	}

	// Replay the stream: running count must never exceed the cap.
	running, peak := 0, 0
	for _, ev := range sink.all() {
		switch {
		case ev.Type == events.TypeStarted:
			running++
			if running > peak {
				peak = running
			}
		case ev.Type.Terminal():
			running--
		}
	}
	assert.LessOrEqual(t, peak, 2)
}

func TestExecutor_PriorityOrdering(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	exec, sink := newTestExecutor(t, 1, blockingHandler("hang", release))

	blocker, err := exec.Submit("hang", nil)
	require.NoError(t, err)
	sink.waitFor(t, blocker, events.TypeStarted)

	low, err := exec.Submit("hang", nil, WithPriority(PriorityLow))
	require.NoError(t, err)
	normal, err := exec.Submit("hang", nil, WithPriority(PriorityNormal))
	require.NoError(t, err)
	high, err := exec.Submit("hang", nil, WithPriority(PriorityHigh))
	require.NoError(t, err)

	close(release)

	want := []uuid.UUID{high, normal, low}
	for _, expected := range want {
		started := sink.waitForType(t, events.TypeStarted)
		assert.Equal(t, expected, started.TaskID)
	}
}

func TestExecutor_FIFOWithinPriority(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	exec, sink := newTestExecutor(t, 1, blockingHandler("hang", release))

	blocker, err := exec.Submit("hang", nil)
	require.NoError(t, err)
	sink.waitFor(t, blocker, events.TypeStarted)

	x, err := exec.Submit("hang", nil)
	require.NoError(t, err)
	y, err := exec.Submit("hang", nil)
	require.NoError(t, err)

	close(release)

	assert.Equal(t, x, sink.waitForType(t, events.TypeStarted).TaskID)
	assert.Equal(t, y, sink.waitForType(t, events.TypeStarted).TaskID)
}

func TestExecutor_QueuePosition(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)
	exec, sink := newTestExecutor(t, 1, blockingHandler("hang", release))

	blocker, err := exec.Submit("hang", nil)
	require.NoError(t, err)
	sink.waitFor(t, blocker, events.TypeStarted)

	normal, err := exec.Submit("hang", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sink.waitFor(t, normal, events.TypeQueued).Position)

	// A high-priority submission jumps ahead of the queued normal task.
	high, err := exec.Submit("hang", nil, WithPriority(PriorityHigh))
	require.NoError(t, err)
	assert.Equal(t, 1, sink.waitFor(t, high, events.TypeQueued).Position)
}

func TestExecutor_CancelQueued(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)
	exec, sink := newTestExecutor(t, 1, blockingHandler("hang", release))

	blocker, err := exec.Submit("hang", nil)
	require.NoError(t, err)
	sink.waitFor(t, blocker, events.TypeStarted)

	queued, err := exec.Submit("hang", nil)
	require.NoError(t, err)

	assert.True(t, exec.Cancel(queued))
	sink.waitFor(t, queued, events.TypeCancelled)

	assert.Equal(t,
		[]events.Type{events.TypeQueued, events.TypeCancelled},
		sink.typesFor(queued),
		"a task cancelled while queued must never emit started")

	// Already terminal: a second cancel is a no-op.
	assert.False(t, exec.Cancel(queued))
	assert.Len(t, exec.List(), 1)
}

func TestExecutor_CancelRunning(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)
	exec, sink := newTestExecutor(t, 1, blockingHandler("hang", release))

	id, err := exec.Submit("hang", nil)
	require.NoError(t, err)
	sink.waitFor(t, id, events.TypeStarted)

	assert.True(t, exec.Cancel(id))
	sink.waitFor(t, id, events.TypeCancelled)

	types := sink.typesFor(id)
	assert.NotContains(t, types, events.TypeError,
		"a cooperative cancellation must be reported as cancelled, not error")
	assert.Empty(t, exec.List())
}

func TestExecutor_CancelUnknown(t *testing.T) {
	t.Parallel()

	exec, sink := newTestExecutor(t, 1, echoHandler())

	assert.False(t, exec.Cancel(uuid.New()))
	assert.Empty(t, sink.all())
}

func TestExecutor_Timeout(t *testing.T) {
	t.Parallel()

	// Hangs forever, but observes its cancellation signal.
	never := make(chan struct{})
	exec, sink := newTestExecutor(t, 1, blockingHandler("hang", never))

	id, err := exec.Submit("hang", nil, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	cancelled := sink.waitFor(t, id, events.TypeCancelled)
	assert.Equal(t, events.TypeCancelled, cancelled.Type)
	assert.NotContains(t, sink.typesFor(id), events.TypeError)
}

func TestExecutor_IgnoredCancellationReportsTruthfully(t *testing.T) {
	t.Parallel()

	// The handler never looks at ctx and completes on its own. The executor
	// must report the actual outcome, not force a cancelled status.
	release := make(chan struct{})
	handler := &funcHandler{
		typ: "stubborn",
		execute: func(ctx context.Context, input any, rep Reporter) (any, error) {
			<-release
			return "finished anyway", nil
		},
	}
	exec, sink := newTestExecutor(t, 1, handler)

	id, err := exec.Submit("stubborn", nil)
	require.NoError(t, err)
	sink.waitFor(t, id, events.TypeStarted)

	assert.True(t, exec.Cancel(id))
	close(release)

	completed := sink.waitFor(t, id, events.TypeCompleted)
	assert.Equal(t, "finished anyway", completed.Result)
	assert.NotContains(t, sink.typesFor(id), events.TypeCancelled)
}

func TestExecutor_HandlerErrorIsolation(t *testing.T) {
	t.Parallel()

	boom := &funcHandler{
		typ: "boom",
		execute: func(ctx context.Context, input any, rep Reporter) (any, error) {
			return nil, errors.New("llm quota exhausted")
		},
	}
	exec, sink := newTestExecutor(t, 2, boom, echoHandler())

	failed, err := exec.Submit("boom", nil)
	require.NoError(t, err)
	ok, err := exec.Submit("echo", "still fine")
	require.NoError(t, err)

	errEvent := sink.waitFor(t, failed, events.TypeError)
	assert.Equal(t, "llm quota exhausted", errEvent.Error)
	sink.waitFor(t, ok, events.TypeCompleted)

	// The executor stays healthy after a handler failure.
	again, err := exec.Submit("echo", "again")
	require.NoError(t, err)
	sink.waitFor(t, again, events.TypeCompleted)
}

func TestExecutor_HandlerPanicReported(t *testing.T) {
	t.Parallel()

	panicky := &funcHandler{
		typ: "panicky",
		execute: func(ctx context.Context, input any, rep Reporter) (any, error) {
			panic("nil template")
		},
	}
	exec, sink := newTestExecutor(t, 1, panicky, echoHandler())

	id, err := exec.Submit("panicky", nil)
	require.NoError(t, err)

	errEvent := sink.waitFor(t, id, events.TypeError)
	assert.Contains(t, errEvent.Error, "panic")
	assert.Contains(t, errEvent.Error, "nil template")

	// The panic stayed isolated: the next task runs normally.
	next, err := exec.Submit("echo", "after panic")
	require.NoError(t, err)
	sink.waitFor(t, next, events.TypeCompleted)
}

func TestExecutor_ProgressAndStreamOrdering(t *testing.T) {
	t.Parallel()

	handler := &funcHandler{
		typ: "chatty",
		execute: func(ctx context.Context, input any, rep Reporter) (any, error) {
			rep.Progress(10, "warming up", nil)
			rep.Stream("hel")
			rep.Progress(150, "", nil) // clamped to 100
			rep.Stream("lo")
			rep.Progress(-5, "", map[string]any{"tokens": 2}) // clamped to 0
			return "hello", nil
		},
	}
	exec, sink := newTestExecutor(t, 1, handler)

	id, err := exec.Submit("chatty", nil)
	require.NoError(t, err)
	sink.waitFor(t, id, events.TypeCompleted)

	assert.Equal(t, []events.Type{
		events.TypeQueued,
		events.TypeStarted,
		events.TypeProgress,
		events.TypeStream,
		events.TypeProgress,
		events.TypeStream,
		events.TypeProgress,
		events.TypeCompleted,
	}, sink.typesFor(id))

	var percents []float64
	var chunks []string
	for _, ev := range sink.all() {
		switch ev.Type {
		case events.TypeProgress:
			percents = append(percents, ev.Percent)
		case events.TypeStream:
			chunks = append(chunks, ev.Chunk)
		}
	}
	assert.Equal(t, []float64{10, 100, 0}, percents)
	assert.Equal(t, []string{"hel", "lo"}, chunks)
}

func TestExecutor_NoEventsAfterTerminal(t *testing.T) {
	t.Parallel()

	var captured Reporter
	handler := &funcHandler{
		typ: "leaky",
		execute: func(ctx context.Context, input any, rep Reporter) (any, error) {
			captured = rep
			return nil, nil
		},
	}
	exec, sink := newTestExecutor(t, 1, handler)

	id, err := exec.Submit("leaky", nil)
	require.NoError(t, err)
	sink.waitFor(t, id, events.TypeCompleted)

	// A rogue reporter call after the terminal event must be dropped.
	before := len(sink.all())
	captured.Progress(50, "too late", nil)
	captured.Stream("too late")
	assert.Len(t, sink.all(), before)

	terminals := 0
	for _, typ := range sink.typesFor(id) {
		if typ.Terminal() {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
}

func TestExecutor_ListSnapshots(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)
	progressing := &funcHandler{
		typ: "slow",
		execute: func(ctx context.Context, input any, rep Reporter) (any, error) {
			rep.Progress(42, "", nil)
			select {
			case <-release:
				return nil, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	exec, sink := newTestExecutor(t, 1, progressing)

	running, err := exec.Submit("slow", nil, WithOrigin("editor-1"))
	require.NoError(t, err)
	queued, err := exec.Submit("slow", nil, WithPriority(PriorityLow))
	require.NoError(t, err)

	sink.waitFor(t, running, events.TypeProgress)

	snapshots := exec.List()
	require.Len(t, snapshots, 2)

	assert.Equal(t, running, snapshots[0].ID)
	assert.Equal(t, StatusRunning, snapshots[0].Status)
	assert.Equal(t, "editor-1", snapshots[0].Origin)
	assert.Equal(t, 42.0, snapshots[0].Progress)
	require.NotNil(t, snapshots[0].StartedAt)

	assert.Equal(t, queued, snapshots[1].ID)
	assert.Equal(t, StatusQueued, snapshots[1].Status)
	assert.Equal(t, PriorityLow, snapshots[1].Priority)
	assert.Nil(t, snapshots[1].StartedAt)
}

func TestExecutor_OriginRouting(t *testing.T) {
	t.Parallel()

	exec, sink := newTestExecutor(t, 1, echoHandler())

	id, err := exec.Submit("echo", "hi", WithOrigin("editor-7"))
	require.NoError(t, err)
	sink.waitFor(t, id, events.TypeCompleted)

	for _, ev := range sink.all() {
		assert.Equal(t, "editor-7", ev.Origin)
	}
}

func TestExecutor_Destroy(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	exec, sink := newTestExecutor(t, 1, blockingHandler("hang", release))

	running, err := exec.Submit("hang", nil)
	require.NoError(t, err)
	sink.waitFor(t, running, events.TypeStarted)
	queued, err := exec.Submit("hang", nil)
	require.NoError(t, err)

	exec.Destroy()

	assert.Contains(t, sink.typesFor(running), events.TypeCancelled)
	assert.Contains(t, sink.typesFor(queued), events.TypeCancelled)
	assert.Empty(t, exec.List())

	_, err = exec.Submit("hang", nil)
	assert.ErrorIs(t, err, ErrExecutorClosed)

	// Idempotent, and the in-flight handler settling later emits nothing.
	exec.Destroy()
	before := len(sink.all())
	close(release)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, sink.all(), before)
}

func TestExecutor_InvalidConcurrencyDefaults(t *testing.T) {
	t.Parallel()

	logger := newTestLogger()
	registry := NewRegistry(logger)
	require.NoError(t, registry.Register(echoHandler()))
	sink := newRecordingSink()

	exec := New(registry, sink, Config{MaxConcurrency: 0}, logger)
	defer exec.Destroy()

	id, err := exec.Submit("echo", "x")
	require.NoError(t, err)
	sink.waitFor(t, id, events.TypeCompleted)
}

func TestExecutor_CompletedDuration(t *testing.T) {
	t.Parallel()

	slow := &funcHandler{
		typ: "nap",
		execute: func(ctx context.Context, input any, rep Reporter) (any, error) {
			time.Sleep(20 * time.Millisecond)
			return nil, nil
		},
	}
	exec, sink := newTestExecutor(t, 1, slow)

	id, err := exec.Submit("nap", nil)
	require.NoError(t, err)

	completed := sink.waitFor(t, id, events.TypeCompleted)
	assert.GreaterOrEqual(t, completed.DurationMs, int64(20))
}

func TestParsePriority(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    Priority
		wantErr bool
	}{
		{"low", PriorityLow, false},
		{"normal", PriorityNormal, false},
		{"high", PriorityHigh, false},
		{"", PriorityNormal, false},
		{"urgent", PriorityNormal, true},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("input_%q", tc.in), func(t *testing.T) {
			got, err := ParsePriority(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
