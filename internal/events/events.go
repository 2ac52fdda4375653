package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventUnmatchedResolved = "unmatched_resolved"
	EventMarkedAsEvent     = "marked_as_event"
	EventAssignedToStaff   = "assigned_to_staff"
)

// ReconcileEventPayload is the snapshot published when an unmatched booking
// is disposed of.
type ReconcileEventPayload struct {
	UnmatchedID      int64  `json:"unmatched_id"`
	TrackmanID       string `json:"trackman_id,omitempty"`
	Route            string `json:"route,omitempty"`
	BookingID        int64  `json:"booking_id,omitempty"`
	OwnerEmail       string `json:"owner_email,omitempty"`
	PlayerCount      int    `json:"player_count,omitempty"`
	FeesRecalculated bool   `json:"fees_recalculated"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
