package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/ridge/pkg/types"
)

func TestPublishSubscribeOrdering(t *testing.T) {
	b := NewBus()
	b.Publish(types.OutputChunk{Index: 0, Text: "one"})

	snap, live, cancel := b.Subscribe()
	defer cancel()
	require.Len(t, snap, 1)
	assert.Equal(t, "one", snap[0].Text)

	b.Publish(types.OutputChunk{Index: 1, Text: "two"})
	select {
	case chunk := <-live:
		assert.Equal(t, "two", chunk.Text)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for live chunk")
	}
}

func TestSubscribeAfterClose(t *testing.T) {
	b := NewBus()
	b.Publish(types.OutputChunk{Index: 0, Text: "one"})
	b.Close()

	snap, live, cancel := b.Subscribe()
	defer cancel()
	require.Len(t, snap, 1)
	_, ok := <-live
	assert.False(t, ok, "live channel should be closed once the bus is closed")
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	b := NewBus()
	b.Close()
	b.Publish(types.OutputChunk{Index: 0, Text: "dropped"})

	snap, _, cancel := b.Subscribe()
	defer cancel()
	assert.Empty(t, snap)
}

func TestCancelStopsDelivery(t *testing.T) {
	b := NewBus()
	_, live, cancel := b.Subscribe()
	cancel()

	b.Publish(types.OutputChunk{Index: 0, Text: "one"})
	_, ok := <-live
	assert.False(t, ok)
}

func TestSlowSubscriberIsDroppedNotBlocking(t *testing.T) {
	b := NewBus()
	_, live, cancel := b.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBufferSize+10; i++ {
		b.Publish(types.OutputChunk{Index: i, Text: "x"})
	}

	// The chunks buffered before the overflow are still delivered.
	for i := 0; i < subscriberBufferSize; i++ {
		<-live
	}
	_, ok := <-live
	assert.False(t, ok, "overflowing subscriber should be dropped and its channel closed")
}

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("job-1"))

	b1 := r.GetOrCreate("job-1")
	b2 := r.GetOrCreate("job-1")
	assert.Same(t, b1, b2)

	r.Remove("job-1")
	assert.Nil(t, r.Get("job-1"))
}
