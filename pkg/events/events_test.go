package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub Subscriber) *Event {
	t.Helper()
	select {
	case e := <-sub:
		return e
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return nil
	}
}

func TestPublishSubscribe(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	first := b.Subscribe()
	second := b.Subscribe()
	assert.Equal(t, 2, b.SubscriberCount())

	b.Publish(&Event{Type: EventStageStarted, Stage: "fetch"})

	for _, sub := range []Subscriber{first, second} {
		e := receive(t, sub)
		assert.Equal(t, EventStageStarted, e.Type)
		assert.Equal(t, "fetch", e.Stage)
		assert.False(t, e.Timestamp.IsZero())
	}
}

func TestUnsubscribe(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)
	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())

	_, open := <-sub
	assert.False(t, open)
}

func TestStopDrainsAndCloses(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe()

	b.Publish(&Event{Type: EventRunStarted})
	b.Publish(&Event{Type: EventRunSucceeded})
	b.Start()
	b.Stop()
	b.Stop()

	var got []EventType
	for e := range sub {
		got = append(got, e.Type)
	}
	require.Len(t, got, 2)
	assert.Equal(t, []EventType{EventRunStarted, EventRunSucceeded}, got)

	// Publishing after Stop does not block
	b.Publish(&Event{Type: EventRunFailed})
}

func TestNilBrokerPublish(t *testing.T) {
	var b *Broker
	b.Publish(&Event{Type: EventRunStarted})
}
