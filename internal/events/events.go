package events

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

const (
	EventBookingCreated     = "booking_created"
	EventBookingCanceled    = "booking_canceled"
	EventBookingUpdated     = "booking_updated"
	EventMobileRented       = "mobile_rented"
	EventStatusesRecomputed = "statuses_recomputed"
	EventHoldsReaped        = "holds_reaped"
)

// WriteEvents are published after a committed change to bookings or locations.
var WriteEvents = []string{
	EventBookingCreated,
	EventBookingCanceled,
	EventBookingUpdated,
	EventMobileRented,
	EventHoldsReaped,
}

// BookingEventPayload describes the booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID  int64  `json:"booking_id"`
	LocationID int64  `json:"location_id"`
	Client     string `json:"client"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Amount     string `json:"amount,omitempty"`
	Kind       string `json:"kind"`
	ChangedBy  string `json:"changed_by,omitempty"`
}

// MaintenancePayload reports the outcome of a projector run or hold reap.
type MaintenancePayload struct {
	Day     string `json:"day"`
	Changed int    `json:"changed,omitempty"`
	Deleted int64  `json:"deleted,omitempty"`
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

// Subscribe registers a handler for the given event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, eventType := range eventTypes {
		b.subscribers[eventType] = append(b.subscribers[eventType], handler)
	}
}

// Publish runs every subscriber of the event type synchronously and returns
// their joined errors. A failing handler does not stop the others.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	return b.Publish(&event)
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}

// Decode unmarshals the event payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}
