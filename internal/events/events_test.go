package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishJSONDeliversToSubscribers(t *testing.T) {
	bus := NewEventBus()

	var got []ReconcileEventPayload
	bus.Subscribe(EventUnmatchedResolved, func(ev *Event) error {
		var p ReconcileEventPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		got = append(got, p)
		return nil
	})

	payload := ReconcileEventPayload{UnmatchedID: 7, BookingID: 42, OwnerEmail: "owner@club.test"}
	require.NoError(t, bus.PublishJSON(EventUnmatchedResolved, payload))

	// Other event types do not reach this subscriber.
	require.NoError(t, bus.PublishJSON(EventMarkedAsEvent, payload))

	require.Len(t, got, 1)
	assert.Equal(t, int64(42), got[0].BookingID)
	assert.Equal(t, "owner@club.test", got[0].OwnerEmail)
}

func TestPublishJSONOnNilBus(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventUnmatchedResolved, nil))
}

func TestPublishStampsCreatedAt(t *testing.T) {
	bus := NewEventBus()

	var stamped bool
	bus.Subscribe("x", func(ev *Event) error {
		stamped = !ev.CreatedAt.IsZero()
		return nil
	})
	bus.Publish(&Event{Type: "x"})
	assert.True(t, stamped)
}
