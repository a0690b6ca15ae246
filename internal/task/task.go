package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a task.
type Status string

// Possible task status values.
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is a terminal status. A task in a terminal
// status never transitions again and is no longer tracked by the executor.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// Priority is the scheduling weight of a queued task. Higher priorities are
// dispatched first; within a priority band dispatch is strict FIFO.
type Priority int

const (
	PriorityLow    Priority = -1
	PriorityNormal Priority = 0
	PriorityHigh   Priority = 1
)

// String returns the wire name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	default:
		return "normal"
	}
}

// MarshalJSON encodes the priority as its wire name.
func (p Priority) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

// UnmarshalJSON decodes the priority from its wire name.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParsePriority(name)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePriority converts a wire name into a Priority. The empty string maps
// to PriorityNormal.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "low":
		return PriorityLow, nil
	case "normal", "":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	default:
		return PriorityNormal, fmt.Errorf("unknown priority %q", s)
	}
}

// task is one submitted unit of work. It is owned exclusively by the
// Executor: all fields are read and mutated only while holding the
// executor's lock, except the input and handler references captured at
// submission, which are immutable afterwards.
type task struct {
	id       uuid.UUID
	taskType string
	handler  Handler
	input    any
	priority Priority
	status   Status
	origin   string
	timeout  time.Duration

	// seq is a monotonically increasing submission counter used as the FIFO
	// tie-break within a priority band.
	seq uint64

	// index is the task's position in the priority heap, -1 once dequeued.
	index int

	submittedAt time.Time
	startedAt   time.Time
	completedAt time.Time

	percent float64

	// cancel fires the task's cooperative cancellation signal. Set when the
	// task transitions to running; nil while queued.
	cancel context.CancelFunc

	// timer fires cancel after the requested timeout. Stopped on any
	// terminal transition.
	timer *time.Timer
}

// Snapshot is the read-only projection of a queued or running task returned
// by Executor.List. Internal handles (cancellation, timers) are never
// exposed.
type Snapshot struct {
	ID          uuid.UUID  `json:"id"`
	Type        string     `json:"type"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	Progress    float64    `json:"progress"`
	Origin      string     `json:"origin,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
}

func (t *task) snapshot() Snapshot {
	s := Snapshot{
		ID:          t.id,
		Type:        t.taskType,
		Status:      t.status,
		Priority:    t.priority,
		Progress:    t.percent,
		Origin:      t.origin,
		SubmittedAt: t.submittedAt,
	}
	if !t.startedAt.IsZero() {
		started := t.startedAt
		s.StartedAt = &started
	}
	return s
}
