package common

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoltan-boros/puppeteer/log"

	"github.com/chromedp/cdproto/cdp"
	"github.com/stretchr/testify/require"
)

func TestBarrier(t *testing.T) {
	t.Run("should work", func(t *testing.T) {
		ctx := context.Background()
		timeoutSettings := NewTimeoutSettings(nil)
		frameManager := NewFrameManager(ctx, nil, nil, timeoutSettings, log.NewNullLogger())
		frame := NewFrame(ctx, frameManager, nil, cdp.FrameID("frame_id_0123456789"), log.NewNullLogger())

		barrier := NewBarrier()
		barrier.AddFrameNavigation(frame)
		frame.emit(EventFrameNavigation, "some data")

		err := barrier.Wait(ctx)
		require.Nil(t, err)
	})

	t.Run("times out without navigation", func(t *testing.T) {
		ctx := context.Background()
		timeoutSettings := NewTimeoutSettings(nil)
		timeoutSettings.setDefaultNavigationTimeout(10 * time.Millisecond)
		frameManager := NewFrameManager(ctx, nil, nil, timeoutSettings, log.NewNullLogger())
		frame := NewFrame(ctx, frameManager, nil, cdp.FrameID("frame_id_0123456789"), log.NewNullLogger())

		barrier := NewBarrier()
		barrier.AddFrameNavigation(frame)

		err := barrier.Wait(ctx)
		require.ErrorIs(t, err, ErrTimedOut)
	})

	t.Run("arming is immediate", func(t *testing.T) {
		ctx := context.Background()
		timeoutSettings := NewTimeoutSettings(nil)
		frameManager := NewFrameManager(ctx, nil, nil, timeoutSettings, log.NewNullLogger())
		frame := NewFrame(ctx, frameManager, nil, cdp.FrameID("frame_id_0123456789"), log.NewNullLogger())

		// A Wait racing with AddFrameNavigation must see the armed count.
		barrier := NewBarrier()
		barrier.AddFrameNavigation(frame)
		require.EqualValues(t, 2, atomic.LoadInt64(&barrier.count))
	})

	t.Run("child frame navigation is ignored", func(t *testing.T) {
		ctx := context.Background()
		timeoutSettings := NewTimeoutSettings(nil)
		frameManager := NewFrameManager(ctx, nil, nil, timeoutSettings, log.NewNullLogger())
		parent := NewFrame(ctx, frameManager, nil, cdp.FrameID("frame_id_parent"), log.NewNullLogger())
		child := NewFrame(ctx, frameManager, parent, cdp.FrameID("frame_id_child"), log.NewNullLogger())

		barrier := NewBarrier()
		barrier.AddFrameNavigation(child)

		// No waiter registered for a child frame: Wait returns right away.
		err := barrier.Wait(ctx)
		require.Nil(t, err)
	})
}
