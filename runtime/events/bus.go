// Package events provides a lightweight pub/sub event bus for session
// observability, plus a JSON Lines recorder.
package events

import "sync"

// Listener is a function that handles events.
type Listener func(*Event)

// EventBus delivers events to listeners on a single dispatch goroutine, so
// every listener sees events in publish order. Publish never blocks on
// listeners.
type EventBus struct {
	mu              sync.RWMutex
	listeners       map[EventType][]Listener
	globalListeners []Listener

	qmu    sync.Mutex
	queue  []*Event
	wake   chan struct{}
	closed bool
	done   chan struct{}
	idle   *sync.Cond
	busy   bool
}

// NewEventBus creates a new event bus and starts its dispatcher.
func NewEventBus() *EventBus {
	eb := &EventBus{
		listeners: make(map[EventType][]Listener),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	eb.idle = sync.NewCond(&eb.qmu)
	go eb.dispatch()
	return eb
}

// Subscribe registers a listener for a specific event type.
func (eb *EventBus) Subscribe(eventType EventType, listener Listener) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.listeners[eventType] = append(eb.listeners[eventType], listener)
}

// SubscribeAll registers a listener for all event types.
func (eb *EventBus) SubscribeAll(listener Listener) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.globalListeners = append(eb.globalListeners, listener)
}

// Publish queues an event for delivery. Events published after Close are
// discarded.
func (eb *EventBus) Publish(event *Event) {
	if eb == nil || event == nil {
		return
	}
	eb.qmu.Lock()
	if eb.closed {
		eb.qmu.Unlock()
		return
	}
	eb.queue = append(eb.queue, event)
	eb.qmu.Unlock()

	select {
	case eb.wake <- struct{}{}:
	default:
	}
}

// Flush blocks until every event published so far has been delivered.
func (eb *EventBus) Flush() {
	eb.qmu.Lock()
	defer eb.qmu.Unlock()
	for (len(eb.queue) > 0 || eb.busy) && !eb.stopped() {
		eb.idle.Wait()
	}
}

// Close delivers queued events, then stops the dispatcher. Safe to call
// more than once.
func (eb *EventBus) Close() {
	eb.qmu.Lock()
	if eb.closed {
		eb.qmu.Unlock()
		<-eb.done
		return
	}
	eb.closed = true
	eb.qmu.Unlock()

	select {
	case eb.wake <- struct{}{}:
	default:
	}
	<-eb.done
}

// Clear removes all listeners (primarily for tests).
func (eb *EventBus) Clear() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.listeners = make(map[EventType][]Listener)
	eb.globalListeners = nil
}

// stopped reports whether the dispatcher has exited. Caller holds qmu.
func (eb *EventBus) stopped() bool {
	select {
	case <-eb.done:
		return true
	default:
		return false
	}
}

func (eb *EventBus) dispatch() {
	defer func() {
		eb.qmu.Lock()
		close(eb.done)
		eb.idle.Broadcast()
		eb.qmu.Unlock()
	}()

	for {
		eb.qmu.Lock()
		batch := eb.queue
		eb.queue = nil
		closed := eb.closed
		eb.busy = len(batch) > 0
		if !eb.busy {
			eb.idle.Broadcast()
		}
		eb.qmu.Unlock()

		if len(batch) == 0 {
			if closed {
				return
			}
			<-eb.wake
			continue
		}
		for _, event := range batch {
			eb.deliver(event)
		}
	}
}

func (eb *EventBus) deliver(event *Event) {
	eb.mu.RLock()
	specific := append([]Listener(nil), eb.listeners[event.Type]...)
	global := append([]Listener(nil), eb.globalListeners...)
	eb.mu.RUnlock()

	for _, listener := range specific {
		safeInvoke(listener, event)
	}
	for _, listener := range global {
		safeInvoke(listener, event)
	}
}

func safeInvoke(listener Listener, event *Event) {
	defer func() { _ = recover() }()
	listener(event)
}
