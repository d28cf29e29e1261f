package core

import (
	"fmt"
	"sync"

	"surveycore/pkg/domain"
)

// Listener receives published events.
type Listener func(domain.Event)

type subscription struct {
	id       uint64
	types    map[domain.EventType]struct{}
	listener Listener
}

// EventBus fans events out to subscribers in subscription order. A panicking
// listener is recovered and logged; the remaining listeners still run.
type EventBus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
	logger Logger
}

// NewEventBus constructs a bus; a nil logger discards listener failures.
func NewEventBus(logger Logger) *EventBus {
	if logger == nil {
		logger = noopLogger{}
	}
	return &EventBus{logger: logger}
}

// Subscribe registers fn for the given event types, or for every event when
// none are given. The returned function removes the subscription.
func (b *EventBus) Subscribe(fn Listener, types ...domain.EventType) func() {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := subscription{id: b.nextID, listener: fn}
	if len(types) > 0 {
		sub.types = make(map[domain.EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}
	b.subs = append(b.subs, sub)
	id := sub.id
	return func() { b.unsubscribe(id) }
}

func (b *EventBus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Len reports the number of active subscriptions.
func (b *EventBus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers ev synchronously and returns how many listeners failed.
func (b *EventBus) Publish(ev domain.Event) int {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs...)
	b.mu.RUnlock()
	failures := 0
	for _, s := range subs {
		if s.types != nil {
			if _, ok := s.types[ev.Type]; !ok {
				continue
			}
		}
		if err := b.deliver(s.listener, ev); err != nil {
			failures++
			b.logger.Error("event listener failed", "event", string(ev.Type), "error", err)
		}
	}
	return failures
}

func (b *EventBus) deliver(fn Listener, ev domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	fn(ev)
	return nil
}
