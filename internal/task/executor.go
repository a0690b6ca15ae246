package task

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quillscribe/taskcore/internal/events"
)

// Config holds configuration for the Executor.
type Config struct {
	// MaxConcurrency bounds how many tasks may run at the same time.
	// If zero or negative, defaults to 1.
	MaxConcurrency int
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{MaxConcurrency: 4}
}

// Executor is the scheduler core. It owns a priority queue of pending tasks
// and a bounded set of running tasks, exposes Submit/Cancel/List/Destroy,
// and publishes lifecycle events to its sink.
//
// All bookkeeping (queue, task map, concurrency accounting) is guarded by a
// single mutex; events for one task are therefore published in strict
// lifecycle order, and no event follows a task's terminal event. Each
// Executor instance is fully independent.
type Executor struct {
	registry       *Registry
	sink           events.Sink
	logger         *slog.Logger
	maxConcurrency int

	mu      sync.Mutex
	queue   queue
	tasks   map[uuid.UUID]*task
	running int
	nextSeq uint64
	closed  bool
}

// New creates an Executor that resolves handlers through registry and
// publishes lifecycle events to sink.
func New(registry *Registry, sink events.Sink, cfg Config, logger *slog.Logger) *Executor {
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 1
		logger.Warn("invalid max concurrency specified, using default",
			"specified", cfg.MaxConcurrency,
			"default", maxConcurrency)
	}

	return &Executor{
		registry:       registry,
		sink:           sink,
		logger:         logger.With("component", "task_executor"),
		maxConcurrency: maxConcurrency,
		queue:          make(queue, 0),
		tasks:          make(map[uuid.UUID]*task),
	}
}

// Submit looks up the handler for taskType, validates input if the handler
// implements Validator, enqueues a new task and returns its id. Lookup and
// validation failures are returned synchronously and create no task and no
// event; everything after a successful Submit is reported through the sink.
func (e *Executor) Submit(taskType string, input any, opts ...SubmitOption) (uuid.UUID, error) {
	h, ok := e.registry.Get(taskType)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrUnknownTaskType, taskType)
	}
	if v, ok := h.(Validator); ok {
		if err := v.Validate(input); err != nil {
			return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}

	options := submitOptions{priority: PriorityNormal}
	for _, opt := range opts {
		opt(&options)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return uuid.Nil, ErrExecutorClosed
	}

	t := &task{
		id:          uuid.New(),
		taskType:    taskType,
		handler:     h,
		input:       input,
		priority:    options.priority,
		status:      StatusQueued,
		origin:      options.origin,
		timeout:     options.timeout,
		seq:         e.nextSeq,
		index:       -1,
		submittedAt: time.Now(),
	}
	e.nextSeq++

	heap.Push(&e.queue, t)
	e.tasks[t.id] = t

	e.logger.Debug("task queued",
		"task_id", t.id,
		"task_type", t.taskType,
		"priority", t.priority.String(),
		"queue_len", e.queue.Len())
	e.emit(t, events.Event{Type: events.TypeQueued, Position: e.positionLocked(t)})

	e.dispatchLocked()
	return t.id, nil
}

// Cancel requests cancellation of the task with the given id.
//
// A queued task is removed immediately and its cancelled event emitted; it
// will never emit started. For a running task the cancellation signal is
// raised and the terminal event follows once the handler settles. Returns
// false for unknown or already-terminal ids.
func (e *Executor) Cancel(id uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tasks[id]
	if !ok {
		return false
	}

	switch t.status {
	case StatusQueued:
		heap.Remove(&e.queue, t.index)
		delete(e.tasks, id)
		t.status = StatusCancelled
		t.completedAt = time.Now()
		e.logger.Info("queued task cancelled", "task_id", t.id, "task_type", t.taskType)
		e.emit(t, events.Event{Type: events.TypeCancelled})
		return true
	case StatusRunning:
		e.logger.Info("cancellation requested for running task",
			"task_id", t.id,
			"task_type", t.taskType)
		t.cancel()
		return true
	}
	return false
}

// List returns a snapshot of every queued and running task, in submission
// order.
func (e *Executor) List() []Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	live := make([]*task, 0, len(e.tasks))
	for _, t := range e.tasks {
		live = append(live, t)
	}
	sort.Slice(live, func(i, j int) bool { return live[i].seq < live[j].seq })

	snapshots := make([]Snapshot, len(live))
	for i, t := range live {
		snapshots[i] = t.snapshot()
	}
	return snapshots
}

// Destroy shuts the executor down: every running task's cancellation signal
// is raised, all timers are stopped, and a cancelled event is emitted for
// every queued and running task before internal state is emptied. A handler
// still in flight settles on its own but emits nothing further. Subsequent
// Submit calls return ErrExecutorClosed. Idempotent.
func (e *Executor) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true

	for _, t := range e.tasks {
		if t.timer != nil {
			t.timer.Stop()
			t.timer = nil
		}
		if t.cancel != nil {
			t.cancel()
		}
		t.status = StatusCancelled
		t.completedAt = time.Now()
		e.emit(t, events.Event{Type: events.TypeCancelled})
	}

	e.queue = nil
	e.tasks = make(map[uuid.UUID]*task)
	e.running = 0
	e.logger.Info("executor destroyed")
}

// dispatchLocked moves queued tasks into the running set while capacity is
// available. Called with the lock held, after every submit and after every
// terminal transition.
func (e *Executor) dispatchLocked() {
	for e.running < e.maxConcurrency && e.queue.Len() > 0 {
		t := heap.Pop(&e.queue).(*task)

		t.status = StatusRunning
		t.startedAt = time.Now()
		e.running++

		ctx, cancel := context.WithCancel(context.Background())
		t.cancel = cancel
		if t.timeout > 0 {
			t.timer = time.AfterFunc(t.timeout, cancel)
		}

		e.logger.Info("task started",
			"task_id", t.id,
			"task_type", t.taskType,
			"running", e.running,
			"max_concurrency", e.maxConcurrency)
		e.emit(t, events.Event{Type: events.TypeStarted})

		go e.run(t, ctx)
	}
}

// run executes the task's handler on its own goroutine. A panic inside the
// handler is converted into an execution error so it never takes down the
// executor or any other task.
func (e *Executor) run(t *task, ctx context.Context) {
	rep := &reporter{exec: e, id: t.id}

	var result any
	var err error
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("task handler panic: %v", p)
			}
		}()
		result, err = t.handler.Execute(ctx, t.input, rep)
	}()

	e.settle(t, ctx, result, err)
}

// settle records the handler's outcome, emits the terminal event, frees the
// concurrency slot and re-enters the dispatch loop. An error is classified
// as a cancellation only if the task's own signal fired and the handler
// returned an error wrapping the context's cause; a handler that ignored the
// signal and completed anyway is reported truthfully.
func (e *Executor) settle(t *task, ctx context.Context, result any, err error) {
	cancelled := err != nil && ctx.Err() != nil &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, tracked := e.tasks[t.id]; !tracked {
		// Destroy swept this task while the handler was in flight; its
		// terminal event was already emitted there.
		return
	}

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.cancel()

	delete(e.tasks, t.id)
	e.running--
	t.completedAt = time.Now()
	duration := t.completedAt.Sub(t.startedAt)

	switch {
	case cancelled:
		t.status = StatusCancelled
		e.logger.Info("task cancelled",
			"task_id", t.id,
			"task_type", t.taskType,
			"duration_ms", duration.Milliseconds())
		e.emit(t, events.Event{Type: events.TypeCancelled})
	case err != nil:
		t.status = StatusError
		e.logger.Error("task execution failed",
			"task_id", t.id,
			"task_type", t.taskType,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		e.emit(t, events.Event{Type: events.TypeError, Error: err.Error()})
	default:
		t.status = StatusCompleted
		e.logger.Info("task completed",
			"task_id", t.id,
			"task_type", t.taskType,
			"duration_ms", duration.Milliseconds())
		e.emit(t, events.Event{
			Type:       events.TypeCompleted,
			Result:     result,
			DurationMs: duration.Milliseconds(),
		})
	}

	e.dispatchLocked()
}

// publishProgress emits a progress event for a still-running task and keeps
// the task's latest percentage for snapshots. Calls for unknown or settled
// tasks are dropped.
func (e *Executor) publishProgress(id uuid.UUID, percent float64, message string, data any) {
	percent = clampPercent(percent)

	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tasks[id]
	if !ok || t.status != StatusRunning {
		return
	}
	t.percent = percent
	e.emit(t, events.Event{
		Type:    events.TypeProgress,
		Percent: percent,
		Message: message,
		Data:    data,
	})
}

// publishStream emits one incremental output chunk for a still-running task.
func (e *Executor) publishStream(id uuid.UUID, chunk string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tasks[id]
	if !ok || t.status != StatusRunning {
		return
	}
	e.emit(t, events.Event{Type: events.TypeStream, Chunk: chunk})
}

// emit stamps the event with the task's identity and publishes it. Always
// called with the lock held, which serializes the per-task event order.
func (e *Executor) emit(t *task, ev events.Event) {
	ev.TaskID = t.id
	ev.TaskType = t.taskType
	ev.Origin = t.origin
	ev.OccurredAt = time.Now()
	e.sink.Publish(ev)
}

// positionLocked returns the 1-based dispatch position of a queued task.
func (e *Executor) positionLocked(t *task) int {
	pos := 1
	for _, queued := range e.queue {
		if queued != t && e.queue.before(queued, t) {
			pos++
		}
	}
	return pos
}

func clampPercent(percent float64) float64 {
	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	default:
		return percent
	}
}
