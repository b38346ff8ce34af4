package events

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Handler receives published events
type Handler interface {
	HandleEvent(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(ctx context.Context, event Event) error

// HandleEvent calls the function
func (f HandlerFunc) HandleEvent(ctx context.Context, event Event) error {
	return f(ctx, event)
}

type subscription struct {
	id       string
	typ      Type
	priority int
	seq      int
	handler  Handler
}

// Bus delivers events synchronously to subscribers. Delivery order per
// event is priority ascending, then subscription order. A handler error
// is logged and never stops delivery.
type Bus struct {
	mu      sync.RWMutex
	subs    map[Type][]*subscription
	byID    map[string]*subscription
	nextSeq int
}

// NewBus creates an empty event bus
func NewBus() *Bus {
	return &Bus{
		subs: make(map[Type][]*subscription),
		byID: make(map[string]*subscription),
	}
}

// Subscribe registers a handler for one event type (or TypeAny for
// every event) at priority zero. Returns the subscription ID.
func (b *Bus) Subscribe(eventType Type, handler Handler) string {
	return b.SubscribeFunc(eventType, 0, handler.HandleEvent)
}

// SubscribeFunc registers a handler function with an explicit priority.
// Lower priorities see each event first. Returns the subscription ID.
func (b *Bus) SubscribeFunc(eventType Type, priority int, fn HandlerFunc) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	sub := &subscription{
		id:       fmt.Sprintf("sub_%d", b.nextSeq),
		typ:      eventType,
		priority: priority,
		seq:      b.nextSeq,
		handler:  fn,
	}
	b.subs[eventType] = append(b.subs[eventType], sub)
	b.byID[sub.id] = sub
	return sub.id
}

// Unsubscribe removes a subscription by ID
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.byID[id]
	if !ok {
		return fmt.Errorf("events: unknown subscription %q", id)
	}
	delete(b.byID, id)

	list := b.subs[sub.typ]
	for i, s := range list {
		if s.id == id {
			b.subs[sub.typ] = append(list[:i], list[i+1:]...)
			break
		}
	}
	return nil
}

// Clear removes every subscription for one event type
func (b *Bus) Clear(eventType Type) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs[eventType] {
		delete(b.byID, sub.id)
	}
	delete(b.subs, eventType)
}

// ClearAll removes every subscription
func (b *Bus) ClearAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs = make(map[Type][]*subscription)
	b.byID = make(map[string]*subscription)
}

// Publish delivers the event to subscribers of its type and to TypeAny
// subscribers, synchronously, on the calling goroutine
func (b *Bus) Publish(ctx context.Context, event Event) error {
	if event == nil {
		return fmt.Errorf("events: cannot publish nil event")
	}

	b.mu.RLock()
	matched := make([]*subscription, 0,
		len(b.subs[event.EventType()])+len(b.subs[TypeAny]))
	matched = append(matched, b.subs[event.EventType()]...)
	if event.EventType() != TypeAny {
		matched = append(matched, b.subs[TypeAny]...)
	}
	b.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].priority != matched[j].priority {
			return matched[i].priority < matched[j].priority
		}
		return matched[i].seq < matched[j].seq
	})

	for _, sub := range matched {
		if err := sub.handler.HandleEvent(ctx, event); err != nil {
			slog.Warn("event handler failed",
				"event_type", event.EventType(),
				"subscription_id", sub.id,
				"error", err,
			)
		}
	}
	return nil
}
