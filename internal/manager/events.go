package manager

import (
	"sync"
	"time"
)

// Event names published by the manager and its sessions.
const (
	EventUnselected = "unselected"
	EventLoading    = "loading"
	EventReady      = "ready"
	EventFailed     = "failed"
	EventUnloaded   = "unloaded"

	EventSessionSubmit    = "session_submit"
	EventSessionDone      = "session_done"
	EventSessionCancelled = "session_cancelled"
	EventSessionFailed    = "session_failed"
	EventSessionReset     = "session_reset"
	EventSessionClosed    = "session_closed"
)

// Event represents a manager lifecycle event.
// Minimal and stable: name + model ID and optional fields via key/values.
type Event struct {
	Name    string
	ModelID string
	Fields  map[string]any
	Time    time.Time
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// Broadcaster fans events out to subscribers. A subscriber whose buffer is
// full misses the event rather than stalling the publisher.
type Broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Event)}
}

func (b *Broadcaster) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a subscriber. The returned func unsubscribes and closes
// the channel; it is safe to call more than once.
func (b *Broadcaster) Subscribe(buf int) (<-chan Event, func()) {
	if buf <= 0 {
		buf = 16
	}
	ch := make(chan Event, buf)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Len is the number of current subscribers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// publishers fans out to several publishers in order.
type publishers []EventPublisher

func (ps publishers) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	for _, p := range ps {
		if p != nil {
			p.Publish(e)
		}
	}
}
