package event

import (
	"sync"
)

type EventType string

const (
	SystemSetUp    EventType = "SystemSetUp"
	SystemShutdown EventType = "SystemShutdown"

	// Trigger-source events (start/stop/record/preset requests).
	TriggerStart        EventType = "TriggerStart"
	TriggerStop         EventType = "TriggerStop"
	TriggerRecordToggle EventType = "TriggerRecordToggle"
	TriggerPreset       EventType = "TriggerPreset"

	// Session lifecycle notifications published by the controller.
	StreamStarted   EventType = "StreamStarted"
	StreamStopped   EventType = "StreamStopped"
	SnapshotUpdated EventType = "SnapshotUpdated"
)

// Event carries a type and an optional payload. TriggerPreset carries
// the preset number; SnapshotUpdated carries a session snapshot copy.
type Event struct {
	Type    EventType
	Source  string
	Payload any
}

type EventBus struct {
	subscribers map[EventType][]chan Event
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
	}
}

func (b *EventBus) Subscribe(eventType EventType) chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 8)
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)
	return ch
}

func (b *EventBus) SubscribeMultiple(eventTypes []EventType) chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 32)
	for _, eventType := range eventTypes {
		b.subscribers[eventType] = append(b.subscribers[eventType], ch)
	}
	return ch
}

func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, channels := range b.subscribers {
		for i, subCh := range channels {
			if subCh == ch {
				b.subscribers[eventType] = append(channels[:i], channels[i+1:]...)
				break
			}
		}
	}
	close(ch)
}

// Publish delivers to every subscriber without blocking; a full
// subscriber channel drops the event.
func (b *EventBus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if subs, ok := b.subscribers[event.Type]; ok {
		for _, ch := range subs {
			select {
			case ch <- event:
			default:
			}
		}
	}
}
