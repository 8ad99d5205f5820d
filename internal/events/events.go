package events

import (
	"encoding/json"
	"sync"
	"time"

	"agendum/internal/models"
)

const (
	EventAppointmentRequested = "appointment_requested"
	EventAppointmentConfirmed = "appointment_confirmed"
	EventAppointmentCancelled = "appointment_cancelled"
	EventRescheduleProposed   = "reschedule_proposed"
	EventRescheduleAccepted   = "reschedule_accepted"
	EventRescheduleRejected   = "reschedule_rejected"
)

// AppointmentEventPayload is the snapshot emitted on every state transition.
// Delivery beyond the in-process bus (push, e-mail) is a consumer concern.
type AppointmentEventPayload struct {
	AppointmentID  string        `json:"appointment_id"`
	ProfessionalID string        `json:"professional_id"`
	ClientID       string        `json:"client_id,omitempty"`
	Status         models.Status `json:"status"`
	Start          time.Time     `json:"start"`
	End            time.Time     `json:"end"`
	RequestID      string        `json:"request_id,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
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
func (b *EventBus) PublishJSON(eventType string, payload any) error {
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
