package common

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventEmitterSpecificEvent(t *testing.T) {
	t.Run("add event handler", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		emitter := NewBaseEventEmitter(ctx)
		ch := make(chan Event)

		emitter.on(ctx, []string{"page"}, ch)
		emitter.emit("page", "data")

		select {
		case ev := <-ch:
			assert.Equal(t, "page", ev.typ)
			assert.Equal(t, "data", ev.data)
		case <-time.After(time.Second):
			t.Fatal("event was never delivered")
		}
	})

	t.Run("ignores unsubscribed events", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		emitter := NewBaseEventEmitter(ctx)
		ch := make(chan Event, 1)

		emitter.on(ctx, []string{"page"}, ch)
		emitter.emit("browser", "data")

		select {
		case ev := <-ch:
			t.Fatalf("unexpected event %q", ev.typ)
		case <-time.After(50 * time.Millisecond):
		}
	})
}

func TestEventEmitterAllEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	emitter := NewBaseEventEmitter(ctx)
	ch := make(chan Event)

	emitter.onAll(ctx, ch)
	emitter.emit("browser", 1)
	emitter.emit("page", 2)

	for i, want := range []string{"browser", "page"} {
		select {
		case ev := <-ch:
			assert.Equal(t, want, ev.typ, "event %d", i)
		case <-time.After(time.Second):
			t.Fatal("event was never delivered")
		}
	}
}

// A subscriber that consumes slowly must still observe every event in the
// exact order it was emitted. The emitter queues per subscriber instead of
// dropping or reordering.
func TestEventEmitterOrderWithSlowConsumer(t *testing.T) {
	const eventCount = 100

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	emitter := NewBaseEventEmitter(ctx)
	ch := make(chan Event)

	emitter.on(ctx, []string{"event"}, ch)
	for i := 0; i < eventCount; i++ {
		emitter.emit("event", i)
	}

	for want := 0; want < eventCount; want++ {
		select {
		case ev := <-ch:
			require.Equal(t, want, ev.data)
		case <-time.After(time.Second):
			t.Fatalf("event %d was never delivered", want)
		}
		// Give the emitter a chance to race ahead of the consumer.
		if want%10 == 0 {
			time.Sleep(time.Millisecond)
		}
	}
}

func TestEventEmitterHasListeners(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	emitter := NewBaseEventEmitter(ctx)

	assert.False(t, emitter.hasListeners("dialog"))

	emitter.on(ctx, []string{"dialog"}, make(chan Event, 1))
	assert.True(t, emitter.hasListeners("dialog"))
	assert.False(t, emitter.hasListeners("console"))

	emitter.onAll(ctx, make(chan Event, 1))
	assert.True(t, emitter.hasListeners("console"))
}
