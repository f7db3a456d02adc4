package eventbus

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

// Bus fans events out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the event and counts the drop.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

func New() *Bus {
	return &Bus{subs: make(map[string]*Subscription)}
}

// Subscription receives the events of the listed types, or all events when
// no type is listed.
type Subscription struct {
	ID      string
	bus     *Bus
	types   []EventType
	ch      chan *Event
	dropped atomic.Int64
}

func (s *Subscription) Events() <-chan *Event { return s.ch }

// Dropped is the number of events lost to a full buffer.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Close detaches the subscription and closes its channel. It is safe to
// call more than once.
func (s *Subscription) Close() {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s.ID]; ok {
		delete(b.subs, s.ID)
		close(s.ch)
	}
}

func (s *Subscription) wants(t EventType) bool {
	return len(s.types) == 0 || slices.Contains(s.types, t)
}

func (b *Bus) Subscribe(bufSize int, types ...EventType) *Subscription {
	s := &Subscription{
		ID:    ulid.Make().String(),
		bus:   b,
		types: types,
		ch:    make(chan *Event, bufSize),
	}
	b.mu.Lock()
	b.subs[s.ID] = s
	b.mu.Unlock()
	return s
}

// Publish stamps and delivers a new event.
func (b *Bus) Publish(eventType EventType, resourceID string, metadata map[string]string) *Event {
	event := &Event{
		ID:         ulid.Make().String(),
		Type:       eventType,
		ResourceID: resourceID,
		Metadata:   metadata,
		CreatedAt:  time.Now(),
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if !s.wants(eventType) {
			continue
		}
		select {
		case s.ch <- event:
		default:
			s.dropped.Add(1)
		}
	}
	return event
}
