package events

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"consultdesk/internal/models"
)

const (
	EventBookingSubmitted = "booking_submitted"
	EventBookingHandoff   = "booking_handoff"
	EventChatIntent       = "chat_intent"
	EventSessionClosed    = "session_closed"
)

// BookingSubmittedPayload carries the notification for a submitted form.
type BookingSubmittedPayload struct {
	Notification models.BookingNotification `json:"notification"`
	Start        time.Time                  `json:"start"`
	End          time.Time                  `json:"end"`
}

// BookingHandoffPayload is published when the chat opens the booking widget.
type BookingHandoffPayload struct {
	SessionID string    `json:"session_id"`
	Channel   string    `json:"channel"`
	At        time.Time `json:"at"`
}

// ChatIntentPayload records one classified chat message.
type ChatIntentPayload struct {
	SessionID string                   `json:"session_id"`
	Intent    models.Intent            `json:"intent"`
	State     models.ConversationState `json:"state"`
	At        time.Time                `json:"at"`
}

// SessionClosedPayload is published when a session is deleted.
type SessionClosedPayload struct {
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs every handler of the event type synchronously, in
// subscription order. All handlers run even if one fails; their errors are
// joined.
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

	ev, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	return b.Publish(&ev)
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
