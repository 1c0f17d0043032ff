package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	bus.Subscribe(EventAppointmentCreated, func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	err := bus.PublishJSON(EventAppointmentCreated, AppointmentEventPayload{
		AppointmentID: "a1",
		ShopID:        "s1",
		Date:          "2025-07-16",
		Time:          "09:30",
	})
	require.NoError(t, err)
	require.Equal(t, 1, callCount)
	assert.Equal(t, EventAppointmentCreated, received.Type)

	var decoded AppointmentEventPayload
	require.NoError(t, received.Decode(&decoded))
	assert.Equal(t, "a1", decoded.AppointmentID)
	assert.Equal(t, "09:30", decoded.Time)
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2 int

	bus.Subscribe("event", func(_ *Event) error { count1++; return errors.New("first failed") })
	bus.Subscribe("event", func(_ *Event) error { count2++; return nil })

	err := bus.Publish(&Event{Type: "event"})
	assert.EqualError(t, err, "first failed")
	assert.Equal(t, 1, count1)
	assert.Equal(t, 1, count2)
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	assert.NoError(t, bus.Publish(&Event{Type: "unknown"}))
	assert.NoError(t, bus.PublishJSON("unknown", nil))

	var nilBus *EventBus
	assert.NoError(t, nilBus.PublishJSON(EventReviewAdded, ReviewEventPayload{}))
}

func TestNewJSONEvent(t *testing.T) {
	event, err := NewJSONEvent(EventReviewAdded, ReviewEventPayload{ReviewID: "r1", Rating: 5})
	require.NoError(t, err)
	assert.Equal(t, EventReviewAdded, event.Type)
	assert.False(t, event.CreatedAt.IsZero())

	var decoded ReviewEventPayload
	require.NoError(t, event.Decode(&decoded))
	assert.Equal(t, 5, decoded.Rating)
}
