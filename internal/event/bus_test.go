package event

import (
	"sync"
	"testing"
)

func TestBus_Subscribe(t *testing.T) {
	bus := NewBus()

	called := false
	id := bus.Subscribe(TypeChildStarted, func(e Event) {
		called = true
	})

	if id == "" {
		t.Error("Subscribe should return a non-empty ID")
	}
	if bus.SubscriptionCount() != 1 {
		t.Errorf("Expected 1 subscription, got %d", bus.SubscriptionCount())
	}
	if called {
		t.Error("Handler should not be called until an event is published")
	}
}

func TestBus_Publish(t *testing.T) {
	bus := NewBus()

	var received Event
	bus.Subscribe(TypeChildStarted, func(e Event) {
		received = e
	})

	bus.Publish(NewChildStartedEvent("main", 4242, "electron"))

	if received == nil {
		t.Fatal("Handler should have received the event")
	}
	started, ok := received.(ChildStartedEvent)
	if !ok {
		t.Fatalf("received %T, want ChildStartedEvent", received)
	}
	if started.PID != 4242 || started.Owner != "main" {
		t.Errorf("unexpected payload: %+v", started)
	}
}

func TestBus_OrderSpecificThenWildcard(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.SubscribeAll(func(e Event) { order = append(order, "wildcard") })
	bus.Subscribe(TypePreviewReload, func(e Event) { order = append(order, "first") })
	bus.Subscribe(TypePreviewReload, func(e Event) { order = append(order, "second") })

	bus.Publish(NewPreviewReloadEvent("full-reload", 2))

	want := []string{"first", "second", "wildcard"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	calls := 0
	id := bus.Subscribe(TypeChildExited, func(e Event) { calls++ })

	if !bus.Unsubscribe(id) {
		t.Fatal("Unsubscribe should find the subscription")
	}
	if bus.Unsubscribe(id) {
		t.Error("second Unsubscribe should report false")
	}

	bus.Publish(NewChildExitedEvent("main", 1, 0, false))
	if calls != 0 {
		t.Errorf("handler called %d times after unsubscribe", calls)
	}
}

func TestBus_PanicIsRecovered(t *testing.T) {
	bus := NewBus()

	var reported string
	bus.SetPanicReporter(func(eventType string, recovered any, stack []byte) {
		reported = eventType
	})

	delivered := false
	bus.Subscribe(TypePipelineRebuilt, func(e Event) { panic("boom") })
	bus.Subscribe(TypePipelineRebuilt, func(e Event) { delivered = true })

	bus.Publish(NewPipelineRebuiltEvent("preload", 1, nil, 0))

	if !delivered {
		t.Error("handler after the panicking one should still run")
	}
	if reported != TypePipelineRebuilt {
		t.Errorf("reported = %q, want %q", reported, TypePipelineRebuilt)
	}
}

func TestBus_NilPublishIsNoop(t *testing.T) {
	var bus *Bus
	bus.Publish(NewPreviewConnectionEvent("c1", true))
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	count := 0
	bus.SubscribeAll(func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(NewPreviewReloadEvent("full-reload", 0))
		}()
	}
	wg.Wait()

	if count != 50 {
		t.Errorf("count = %d, want 50", count)
	}
}
