package events

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies a kind of task lifecycle event.
type Type string

// Lifecycle event types, in the order a task may emit them. Every task emits
// exactly one TypeQueued, at most one TypeStarted, any number of TypeProgress
// and TypeStream, and exactly one of the terminal types.
const (
	TypeQueued    Type = "queued"
	TypeStarted   Type = "started"
	TypeProgress  Type = "progress"
	TypeStream    Type = "stream"
	TypeCompleted Type = "completed"
	TypeError     Type = "error"
	TypeCancelled Type = "cancelled"
)

// Terminal reports whether t is one of the terminal event types.
func (t Type) Terminal() bool {
	return t == TypeCompleted || t == TypeError || t == TypeCancelled
}

// Event is a single task lifecycle notification. Only the fields relevant to
// the event's Type are populated; the rest stay at their zero value and are
// omitted from JSON.
type Event struct {
	Type     Type      `json:"type"`
	TaskID   uuid.UUID `json:"task_id"`
	TaskType string    `json:"task_type,omitempty"`

	// Origin is an optional routing hint naming the surface that should
	// receive this event. Empty means broadcast.
	Origin string `json:"origin,omitempty"`

	// Position is the 1-based queue position, set on TypeQueued.
	Position int `json:"position,omitempty"`

	// Percent and Message carry TypeProgress data.
	Percent float64 `json:"percent,omitempty"`
	Message string  `json:"message,omitempty"`
	Data    any     `json:"data,omitempty"`

	// Chunk carries one TypeStream increment.
	Chunk string `json:"chunk,omitempty"`

	// Result and DurationMs are set on TypeCompleted.
	Result     any   `json:"result,omitempty"`
	DurationMs int64 `json:"duration_ms,omitempty"`

	// Error is the failure message, set on TypeError.
	Error string `json:"error,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

// Sink receives events published by the executor. Implementations must not
// block: the executor publishes synchronously from its dispatch path.
type Sink interface {
	Publish(event Event)
}
