package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusDeliversToSubscriber(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe("job-1")
	defer bus.Unsubscribe("job-1", ch)

	bus.Publish("job-1", Event{Stage: "ruler", Event: "stage.completed"})

	ev := <-ch
	assert.Equal(t, "ruler", ev.Stage)
	assert.Equal(t, "stage.completed", ev.Event)
}

func TestEventBusIsolatesJobs(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe("job-1")
	defer bus.Unsubscribe("job-1", ch)

	bus.Publish("job-2", Event{Stage: "ruler", Event: "stage.completed"})

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event for another job: %+v", ev)
	default:
	}
}

func TestEventBusPublishNeverBlocks(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe("job-1")
	defer bus.Unsubscribe("job-1", ch)

	// Overfill the subscriber's buffer; the extra publishes must drop
	// instead of deadlocking the publisher.
	for i := 0; i < subscriberBuffer*2; i++ {
		bus.Publish("job-1", Event{Stage: "expander", Event: "annotation.added"})
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestEventBusCloseEndsStream(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe("job-1")

	bus.Close("job-1")

	_, open := <-ch
	require.False(t, open, "close must end every subscriber's stream")
}

func TestEventBusNilIsValidPublisher(t *testing.T) {
	var bus *EventBus
	assert.NotPanics(t, func() {
		bus.Publish("job-1", Event{Stage: "ruler", Event: "stage.started"})
		bus.Close("job-1")
	})
}
