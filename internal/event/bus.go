// Package event provides a synchronous pub-sub bus that lets pipelines, the
// preview server and the child-process supervisor report lifecycle changes
// without depending on each other.
//
// Handlers run on the publisher's goroutine, in registration order: specific
// subscribers first, then wildcard subscribers. A panicking handler is
// recovered and reported, and does not stop delivery to the others.
//
//	bus := event.NewBus()
//	bus.Subscribe(event.TypeChildStarted, func(e event.Event) {
//	    started := e.(event.ChildStartedEvent)
//	    log.Printf("child %d started", started.PID)
//	})
//	bus.Publish(event.NewChildStartedEvent("main", 4242, "electron"))
package event

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Handler is a function that handles an event.
type Handler func(Event)

// PanicReporter receives recovered handler panics. The default writes nothing;
// the orchestrator installs one that logs.
type PanicReporter func(eventType string, recovered any, stack []byte)

type subscription struct {
	id      string
	handler Handler
}

// Wildcard subscribes to every event type.
const Wildcard = "*"

// Bus is a simple synchronous pub-sub event bus.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string][]subscription
	nextID        atomic.Uint64
	onPanic       PanicReporter
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscriptions: make(map[string][]subscription),
	}
}

// SetPanicReporter installs the callback used for recovered handler panics.
func (b *Bus) SetPanicReporter(r PanicReporter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onPanic = r
}

// Subscribe registers a handler for a specific event type and returns an ID
// usable with Unsubscribe.
func (b *Bus) Subscribe(eventType string, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := fmt.Sprintf("sub-%d", b.nextID.Add(1))
	b.subscriptions[eventType] = append(b.subscriptions[eventType], subscription{id: id, handler: handler})
	return id
}

// SubscribeAll registers a handler for all event types.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe(Wildcard, handler)
}

// Unsubscribe removes a subscription by ID.
// Returns true if the subscription was found and removed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscriptions {
		for i, sub := range subs {
			if sub.id == id {
				b.subscriptions[eventType] = append(subs[:i:i], subs[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Publish dispatches an event to all registered handlers. A nil Bus drops the
// event, so components can be built without one.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	eventType := event.EventType()
	subs := make([]subscription, 0, len(b.subscriptions[eventType])+len(b.subscriptions[Wildcard]))
	subs = append(subs, b.subscriptions[eventType]...)
	subs = append(subs, b.subscriptions[Wildcard]...)
	onPanic := b.onPanic
	b.mu.RUnlock()

	for _, sub := range subs {
		safeCall(sub.handler, event, onPanic)
	}
}

func safeCall(handler Handler, event Event, onPanic PanicReporter) {
	defer func() {
		if r := recover(); r != nil && onPanic != nil {
			onPanic(event.EventType(), r, debug.Stack())
		}
	}()
	handler(event)
}

// SubscriptionCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subscriptions {
		count += len(subs)
	}
	return count
}
