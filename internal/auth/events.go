package auth

import (
	"context"
	"sync"
)

// EventKind distinguishes session transitions.
type EventKind string

const (
	// EventSignedIn is published when a session is established or its tokens are rotated.
	EventSignedIn EventKind = "signed_in"
	// EventSignedOut is published when a session is revoked or expires.
	EventSignedOut EventKind = "signed_out"
)

// Event describes a session transition. Session is nil for sign-outs.
type Event struct {
	Kind      EventKind `json:"kind"`
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	Session   *Session  `json:"session,omitempty"`
}

// Subscription is a handle to a registered event handler.
type Subscription interface {
	Unsubscribe()
}

// Bus fans session events out to subscribers.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(handler func(Event)) Subscription
}

// LocalBus is an in-process Bus. Handlers run synchronously on the publishing
// goroutine and must not block.
type LocalBus struct {
	mu       sync.RWMutex
	next     uint64
	handlers map[uint64]func(Event)
}

// NewLocalBus returns an empty in-process bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[uint64]func(Event))}
}

// Publish delivers the event to every current subscriber.
func (b *LocalBus) Publish(_ context.Context, event Event) error {
	b.mu.RLock()
	handlers := make([]func(Event), 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
	return nil
}

// Subscribe registers handler until the returned subscription is released.
func (b *LocalBus) Subscribe(handler func(Event)) Subscription {
	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[id] = handler
	b.mu.Unlock()

	return &localSubscription{bus: b, id: id}
}

// Len reports the number of active subscribers.
func (b *LocalBus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

type localSubscription struct {
	bus  *LocalBus
	id   uint64
	once sync.Once
}

func (s *localSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.handlers, s.id)
		s.bus.mu.Unlock()
	})
}
