package events

import (
	"sync"
	"testing"
)

func TestEventBusPublishesToSpecificAndGlobalListeners(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	defer bus.Close()

	var mu sync.Mutex
	var received []EventType

	bus.Subscribe(EventToolCallStarted, func(e *Event) {
		mu.Lock()
		received = append(received, e.Type)
		mu.Unlock()
	})
	bus.SubscribeAll(func(e *Event) {
		mu.Lock()
		received = append(received, e.Type)
		mu.Unlock()
	})

	bus.Publish(&Event{Type: EventToolCallStarted})
	bus.Publish(&Event{Type: EventAudioScheduled})
	bus.Flush()

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 3 {
		t.Fatalf("expected 3 deliveries, got %d: %v", len(received), received)
	}
}

func TestEventBusPreservesOrder(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	var got []uint64
	bus.SubscribeAll(func(e *Event) { got = append(got, e.Epoch) })

	for i := uint64(0); i < 500; i++ {
		bus.Publish(&Event{Type: EventAudioScheduled, Epoch: i})
	}
	bus.Close()

	if len(got) != 500 {
		t.Fatalf("expected 500 events, got %d", len(got))
	}
	for i, v := range got {
		if v != uint64(i) {
			t.Fatalf("event %d delivered out of order (epoch %d)", i, v)
		}
	}
}

func TestEventBusRecoversFromPanic(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	defer bus.Close()

	delivered := false
	bus.Subscribe(EventSessionError, func(*Event) { panic("listener panic") })
	bus.Subscribe(EventSessionError, func(*Event) { delivered = true })

	bus.Publish(&Event{Type: EventSessionError})
	bus.Flush()

	if !delivered {
		t.Fatal("listener after the panicking one was not invoked")
	}
}

func TestEventBusPublishAfterClose(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	count := 0
	bus.SubscribeAll(func(*Event) { count++ })
	bus.Close()
	bus.Close()

	bus.Publish(&Event{Type: EventSessionError})
	bus.Flush()
	if count != 0 {
		t.Fatalf("expected no deliveries after close, got %d", count)
	}
}

func TestEventBusClear(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	defer bus.Close()

	count := 0
	bus.SubscribeAll(func(*Event) { count++ })
	bus.Clear()
	bus.Publish(&Event{Type: EventSessionError})
	bus.Flush()
	if count != 0 {
		t.Fatalf("expected no deliveries after clear, got %d", count)
	}
}

func TestNilBusPublish(t *testing.T) {
	var bus *EventBus
	bus.Publish(&Event{Type: EventSessionError})
}
