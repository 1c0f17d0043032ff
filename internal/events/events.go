package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventAppointmentCreated     = "appointment_created"
	EventAppointmentCancelled   = "appointment_cancelled"
	EventAppointmentCompleted   = "appointment_completed"
	EventAppointmentRescheduled = "appointment_rescheduled"
	EventReviewAdded            = "review_added"
)

// AppointmentEventPayload describes the minimal appointment snapshot for event consumers.
type AppointmentEventPayload struct {
	AppointmentID string `json:"appointment_id"`
	ShopID        string `json:"shop_id"`
	ClientID      string `json:"client_id"`
	ClientName    string `json:"client_name,omitempty"`
	ServiceName   string `json:"service_name,omitempty"`
	StaffName     string `json:"staff_name,omitempty"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Status        string `json:"status"`
	ChangedByID   string `json:"changed_by_id,omitempty"`
}

type ReviewEventPayload struct {
	ReviewID      string `json:"review_id"`
	AppointmentID string `json:"appointment_id"`
	ShopID        string `json:"shop_id"`
	Rating        int    `json:"rating"`
	Comment       string `json:"comment,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
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

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers synchronously and returns the first handler error.
// All handlers run even if an earlier one fails.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var firstErr error
	for _, handler := range handlers {
		if err := handler(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
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
