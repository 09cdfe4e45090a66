package event

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Handler func(ctx context.Context, e Event)

type Publisher interface {
	Publish(ctx context.Context, e Event)
}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus delivers events synchronously to the handlers of a topic, in the order
// they subscribed. A panicking handler is logged and skipped.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic][]subscription
	nextID uint64
	logger *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[Topic][]subscription),
		logger: logger.With("component", "EventBus"),
	}
}

// Subscribe registers handler for topic. The returned func removes it and is
// safe to call more than once.
func (b *Bus) Subscribe(topic Topic, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(topic, id) })
	}
}

func (b *Bus) remove(topic Topic, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := b.subs[topic]
	kept := make([]subscription, 0, len(current))
	for _, s := range current {
		if s.id != id {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		delete(b.subs, topic)
		return
	}
	b.subs[topic] = kept
}

func (b *Bus) Publish(ctx context.Context, e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	b.mu.RLock()
	handlers := make([]subscription, len(b.subs[e.Topic]))
	copy(handlers, b.subs[e.Topic])
	b.mu.RUnlock()

	for _, s := range handlers {
		b.deliver(ctx, s, e)
	}
}

func (b *Bus) deliver(ctx context.Context, s subscription, e Event) {
	defer func() {
		if p := recover(); p != nil {
			b.logger.ErrorContext(ctx, "Event handler panicked", "topic", e.Topic, "subscription", s.id, "panic", p)
		}
	}()
	s.handler(ctx, e)
}

// Subscribers reports how many handlers are registered for topic.
func (b *Bus) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
