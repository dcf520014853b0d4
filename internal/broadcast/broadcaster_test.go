package broadcast

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/douuvid/Datagouv/internal/domain"
)

func receive(t *testing.T, sub *Subscriber) []byte {
	t.Helper()
	select {
	case payload, ok := <-sub.Events():
		require.True(t, ok, "subscriber channel closed unexpectedly")
		return payload
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := New()
	defer b.Stop()

	first := b.Subscribe()
	second := b.Subscribe()

	b.Publish(domain.Event{Type: domain.EventSessionStarted, Data: map[string]any{"id": 1}})

	for _, sub := range []*Subscriber{first, second} {
		var event domain.Event
		require.NoError(t, json.Unmarshal(receive(t, sub), &event))
		assert.Equal(t, domain.EventSessionStarted, event.Type)
	}
}

func TestPublishMarshalsEnvelope(t *testing.T) {
	b := New()
	defer b.Stop()

	sub := b.Subscribe()
	b.Publish(domain.Event{Type: domain.EventLogCreated, Data: map[string]any{"message": "hello"}})

	var decoded struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(receive(t, sub), &decoded))
	assert.Equal(t, "log_created", decoded.Type)
	assert.Equal(t, "hello", decoded.Data["message"])
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}

	// Idempotent.
	b.Unsubscribe(sub)
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	b := New()
	defer b.Stop()

	slow := b.Subscribe()

	// Overflow the subscriber's buffer without draining it.
	for i := 0; i < subscriberBuffer+1; i++ {
		b.Publish(domain.Event{Type: domain.EventLogCreated, Data: i})
	}

	// The channel must eventually be closed by the actor.
	deadline := time.After(5 * time.Second)
	for open := true; open; {
		select {
		case _, ok := <-slow.Events():
			open = ok
		case <-deadline:
			t.Fatal("slow subscriber never dropped")
		}
	}

	// Later subscribers are unaffected.
	healthy := b.Subscribe()
	b.Publish(domain.Event{Type: domain.EventSessionEnded, Data: nil})

	var event domain.Event
	require.NoError(t, json.Unmarshal(receive(t, healthy), &event))
	assert.Equal(t, domain.EventSessionEnded, event.Type)
}

func TestStopClosesAllSubscribers(t *testing.T) {
	b := New()

	first := b.Subscribe()
	second := b.Subscribe()
	b.Stop()

	for _, sub := range []*Subscriber{first, second} {
		select {
		case _, ok := <-sub.Events():
			assert.False(t, ok)
		case <-time.After(5 * time.Second):
			t.Fatal("subscriber channel not closed by Stop")
		}
	}

	// Operations after Stop are safe no-ops.
	b.Publish(domain.Event{Type: domain.EventLogCreated, Data: nil})
	late := b.Subscribe()
	_, ok := <-late.Events()
	assert.False(t, ok)
	b.Stop()
}
