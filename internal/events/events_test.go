package events

import (
	"errors"
	"testing"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	handler := func(event *Event) error {
		received = event
		callCount++
		return nil
	}

	bus.Subscribe(handler, EventBookingCreated)

	payload := BookingEventPayload{BookingID: 9, LocationID: 4, Start: "2025-01-01", End: "2025-01-31", Kind: "rental"}
	if err := bus.PublishJSON(EventBookingCreated, payload); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
	if received.Type != EventBookingCreated {
		t.Errorf("expected type %s, got %s", EventBookingCreated, received.Type)
	}

	var decoded BookingEventPayload
	if err := received.Decode(&decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if decoded.LocationID != 4 || decoded.End != "2025-01-31" {
		t.Errorf("unexpected payload %+v", decoded)
	}
}

func TestEventBusSubscribeMany(t *testing.T) {
	bus := NewEventBus()
	var count int
	bus.Subscribe(func(_ *Event) error { count++; return nil }, WriteEvents...)

	for _, eventType := range WriteEvents {
		if err := bus.Publish(&Event{Type: eventType}); err != nil {
			t.Fatalf("publish %s: %v", eventType, err)
		}
	}
	_ = bus.Publish(&Event{Type: EventStatusesRecomputed})

	if count != len(WriteEvents) {
		t.Errorf("expected %d calls, got %d", len(WriteEvents), count)
	}
}

func TestEventBusHandlerErrors(t *testing.T) {
	bus := NewEventBus()
	errFirst := errors.New("first")
	var secondCalled bool

	bus.Subscribe(func(_ *Event) error { return errFirst }, "event")
	bus.Subscribe(func(_ *Event) error { secondCalled = true; return nil }, "event")

	err := bus.Publish(&Event{Type: "event"})
	if !errors.Is(err, errFirst) {
		t.Errorf("expected joined handler error, got %v", err)
	}
	if !secondCalled {
		t.Errorf("expected second handler to run after the first failed")
	}
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	if err := bus.Publish(&Event{Type: "unknown"}); err != nil {
		t.Errorf("Publish failed: %v", err)
	}
	if err := bus.PublishJSON("unknown", nil); err != nil {
		t.Errorf("PublishJSON failed: %v", err)
	}

	var nilBus *EventBus
	if err := nilBus.PublishJSON("unknown", nil); err != nil {
		t.Errorf("nil bus should be a no-op, got %v", err)
	}
}

func TestNewJSONEvent(t *testing.T) {
	event, err := NewJSONEvent(EventHoldsReaped, MaintenancePayload{Day: "2025-03-01", Deleted: 2})
	if err != nil {
		t.Fatalf("NewJSONEvent failed: %v", err)
	}
	if event.CreatedAt.IsZero() {
		t.Errorf("expected CreatedAt to be set")
	}

	var decoded MaintenancePayload
	if err := event.Decode(&decoded); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if decoded.Deleted != 2 {
		t.Errorf("expected Deleted 2, got %d", decoded.Deleted)
	}

	if _, err := NewJSONEvent("bad", make(chan int)); err == nil {
		t.Errorf("expected marshal error for channel payload")
	}
}
