// Package events carries engine state changes to observers (logs, desktop
// notifications, control-socket watchers) without ever blocking the engine.
//
// The Bus is a fan-out broker: subscribers register, and Emit hands every
// event to every subscriber through a non-blocking Send. Channel-backed
// subscriptions drop events when their buffer is full instead of
// back-pressuring the poll loop.
package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Kind identifies what happened.
type Kind string

const (
	KindEncrypted   Kind = "encrypted"
	KindDecrypted   Kind = "decrypted"
	KindModeChanged Kind = "mode_changed"
	KindCleared     Kind = "cleared"
	KindError       Kind = "error"
)

// Event is one state change.
//
// Payload depends on Kind: the protected plaintext for encrypted, the
// recovered plaintext for decrypted, the new mode for mode_changed, the
// error message for error, and empty for cleared.
type Event struct {
	Kind    Kind
	Payload string
	At      time.Time
}

// Subscriber is anything that can receive events from the Bus.
type Subscriber interface {
	ID() string
	// Send delivers an event. Must be non-blocking.
	Send(Event)
}

// Bus routes events to all registered subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]Subscriber
	last map[Kind]Event
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]Subscriber),
		last: make(map[Kind]Event),
	}
}

// Register adds s, replacing any subscriber with the same ID.
func (b *Bus) Register(s Subscriber) {
	b.mu.Lock()
	b.subs[s.ID()] = s
	total := len(b.subs)
	b.mu.Unlock()
	slog.Debug("event subscriber registered", "subscriber", s.ID(), "total", total)
}

// Unregister removes s.
func (b *Bus) Unregister(s Subscriber) {
	b.mu.Lock()
	delete(b.subs, s.ID())
	total := len(b.subs)
	b.mu.Unlock()
	slog.Debug("event subscriber unregistered", "subscriber", s.ID(), "total", total)
}

// Emit fans ev out to every subscriber. It never blocks on a subscriber.
func (b *Bus) Emit(ev Event) {
	b.mu.Lock()
	b.last[ev.Kind] = ev
	targets := make([]Subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		targets = append(targets, s)
	}
	b.mu.Unlock()

	for _, s := range targets {
		s.Send(ev)
	}
}

// Last returns the most recent event of kind, if any.
func (b *Bus) Last(kind Kind) (Event, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ev, ok := b.last[kind]
	return ev, ok
}

// subscribers returns the IDs of all registered subscribers.
func (b *Bus) subscribers() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.subs))
	for id := range b.subs {
		out = append(out, id)
	}
	return out
}

// Subscription is a buffered, channel-backed Subscriber.
type Subscription struct {
	id      string
	bus     *Bus
	ch      chan Event
	dropped atomic.Uint64
	once    sync.Once
}

// Subscribe registers a new Subscription with a buffer of size buf.
func (b *Bus) Subscribe(id string, buf int) *Subscription {
	if buf < 1 {
		buf = 1
	}
	s := &Subscription{id: id, bus: b, ch: make(chan Event, buf)}
	b.Register(s)
	return s
}

func (s *Subscription) ID() string { return s.id }

// Send implements Subscriber. Events are dropped when the buffer is full.
func (s *Subscription) Send(ev Event) {
	select {
	case s.ch <- ev:
	default:
		if n := s.dropped.Add(1); n == 1 || n%100 == 0 {
			slog.Warn("event subscriber full, dropping", "subscriber", s.id, "dropped", n)
		}
	}
}

// C returns the event channel. It is never closed.
func (s *Subscription) C() <-chan Event { return s.ch }

// Dropped returns how many events were discarded because the buffer was full.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.bus.Unregister(s) })
}
