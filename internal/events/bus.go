package events

import (
	"log/slog"
	"sync"
)

// DefaultSubscriberBuffer is the channel buffer used when a subscriber does
// not ask for a specific size.
const DefaultSubscriberBuffer = 256

// Bus is an in-process Sink that fans events out to subscribers. Subscribers
// registered with an origin receive only events routed to that origin plus
// broadcast events; subscribers registered without an origin receive
// everything.
//
// Delivery is non-blocking: if a subscriber's channel is full the event is
// dropped for that subscriber and a warning is logged. A slow consumer never
// stalls the executor.
type Bus struct {
	mu        sync.RWMutex
	nextID    int
	broadcast map[int]chan Event
	byOrigin  map[string]map[int]chan Event
	closed    bool
	logger    *slog.Logger
}

// NewBus creates an empty Bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		broadcast: make(map[int]chan Event),
		byOrigin:  make(map[string]map[int]chan Event),
		logger:    logger.With("component", "event_bus"),
	}
}

// Subscribe registers a subscriber and returns its channel together with an
// unsubscribe function. An empty origin subscribes to every event; a non-empty
// origin subscribes to events routed to that origin and to broadcast events.
// buffer <= 0 selects DefaultSubscriberBuffer.
func (b *Bus) Subscribe(origin string, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++

	if origin == "" {
		b.broadcast[id] = ch
	} else {
		if b.byOrigin[origin] == nil {
			b.byOrigin[origin] = make(map[int]chan Event)
		}
		b.byOrigin[origin][id] = ch
	}
	b.logger.Debug("subscriber registered", "origin", origin, "subscriber_id", id)

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if origin == "" {
			if _, ok := b.broadcast[id]; !ok {
				return
			}
			delete(b.broadcast, id)
		} else {
			subs, ok := b.byOrigin[origin]
			if !ok {
				return
			}
			if _, ok := subs[id]; !ok {
				return
			}
			delete(subs, id)
			if len(subs) == 0 {
				delete(b.byOrigin, origin)
			}
		}
		close(ch)
	}
	return ch, unsubscribe
}

// Publish implements Sink. Events carrying an origin are delivered to that
// origin's subscribers and to broadcast subscribers; events without an origin
// are delivered to everyone.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for id, ch := range b.broadcast {
		b.send(id, ch, event)
	}
	if event.Origin != "" {
		for id, ch := range b.byOrigin[event.Origin] {
			b.send(id, ch, event)
		}
		return
	}
	for _, subs := range b.byOrigin {
		for id, ch := range subs {
			b.send(id, ch, event)
		}
	}
}

func (b *Bus) send(id int, ch chan Event, event Event) {
	select {
	case ch <- event:
	default:
		b.logger.Warn("dropping event for slow subscriber",
			"subscriber_id", id,
			"event_type", event.Type,
			"task_id", event.TaskID)
	}
}

// Close closes every subscriber channel and rejects further publishes and
// subscriptions. Safe to call more than once.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, ch := range b.broadcast {
		close(ch)
	}
	for _, subs := range b.byOrigin {
		for _, ch := range subs {
			close(ch)
		}
	}
	b.broadcast = make(map[int]chan Event)
	b.byOrigin = make(map[string]map[int]chan Event)
	b.logger.Info("event bus closed")
}

var _ Sink = (*Bus)(nil)
