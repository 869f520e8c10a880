package common

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/zoltan-boros/puppeteer/log"

	"github.com/chromedp/cdproto/cdp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMainFrameID  = cdp.FrameID("frame_id_main")
	testChildFrameID = cdp.FrameID("frame_id_child")
	testGrandFrameID = cdp.FrameID("frame_id_grand")
)

func newTestFrameManager(t *testing.T, ctx context.Context) *FrameManager {
	t.Helper()

	fm := NewFrameManager(ctx, nil, nil, NewTimeoutSettings(nil), log.NewNullLogger())
	require.NoError(t,
		fm.frameNavigated(testMainFrameID, "", "loader_id_0", "", "https://test/", true))
	return fm
}

func TestFrameManagerFrameTree(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fm := newTestFrameManager(t, ctx)

	main := fm.MainFrame()
	require.NotNil(t, main)
	assert.Equal(t, "https://test/", main.URL())

	fm.frameAttached(testChildFrameID, testMainFrameID)
	fm.frameAttached(testGrandFrameID, testChildFrameID)

	child := fm.getFrameByID(testChildFrameID)
	require.NotNil(t, child)
	assert.Same(t, main, child.ParentFrame())
	require.Len(t, main.ChildFrames(), 1)
	require.Len(t, child.ChildFrames(), 1)
	assert.Len(t, fm.Frames(), 3)
}

func TestFrameManagerFrameDetachedRemovesSubtree(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fm := newTestFrameManager(t, ctx)

	fm.frameAttached(testChildFrameID, testMainFrameID)
	fm.frameAttached(testGrandFrameID, testChildFrameID)
	child := fm.getFrameByID(testChildFrameID)
	grand := fm.getFrameByID(testGrandFrameID)

	fm.frameDetached(testChildFrameID)

	assert.Nil(t, fm.getFrameByID(testChildFrameID))
	assert.Nil(t, fm.getFrameByID(testGrandFrameID))
	assert.True(t, child.IsDetached())
	assert.True(t, grand.IsDetached())
	assert.Empty(t, fm.MainFrame().ChildFrames())
	assert.Len(t, fm.Frames(), 1)
}

// A committed main-frame document replaces the previous document's subtree
// but the main frame object itself survives, so subscriptions on it stay
// valid across navigations.
func TestFrameManagerMainFrameSurvivesNavigation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fm := newTestFrameManager(t, ctx)

	main := fm.MainFrame()
	fm.frameAttached(testChildFrameID, testMainFrameID)
	require.Len(t, main.ChildFrames(), 1)

	require.NoError(t,
		fm.frameNavigated(testMainFrameID, "", "loader_id_1", "", "https://test/2", false))

	assert.Same(t, main, fm.MainFrame())
	assert.Equal(t, "https://test/2", main.URL())
	assert.Empty(t, main.ChildFrames())
	assert.Nil(t, fm.getFrameByID(testChildFrameID))
}

// Concurrent readers of the frame tree must never observe a navigation's
// subtree removal halfway through.
func TestFrameManagerFramesAtomicDuringNavigation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fm := newTestFrameManager(t, ctx)

	for i := 0; i < 2; i++ {
		childID := cdp.FrameID(fmt.Sprintf("frame_id_c%d", i))
		fm.frameAttached(childID, testMainFrameID)
		for j := 0; j < 2; j++ {
			fm.frameAttached(cdp.FrameID(fmt.Sprintf("frame_id_g%d%d", i, j)), childID)
		}
	}
	require.Len(t, fm.Frames(), 7)

	done := make(chan struct{})
	bad := make(chan int, 1)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if n := len(fm.Frames()); n != 7 && n != 1 {
					select {
					case bad <- n:
					default:
					}
					return
				}
			}
		}()
	}

	require.NoError(t,
		fm.frameNavigated(testMainFrameID, "", "loader_id_1", "", "https://test/2", false))
	close(done)
	wg.Wait()

	select {
	case n := <-bad:
		t.Fatalf("observed a partially detached frame tree with %d frames", n)
	default:
	}
	assert.Len(t, fm.Frames(), 1)
}

func TestFrameManagerFrameNavigatedChecks(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fm := newTestFrameManager(t, ctx)

	t.Run("unknown child frame", func(t *testing.T) {
		err := fm.frameNavigated("frame_id_unknown", testMainFrameID, "loader_id_9", "", "https://test/", false)
		require.Error(t, err)
	})

	t.Run("main frame cannot become a child", func(t *testing.T) {
		err := fm.frameNavigated(testMainFrameID, "frame_id_other", "loader_id_9", "", "https://test/", false)
		require.Error(t, err)
	})
}

func TestFrameManagerLifecycleEvents(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fm := newTestFrameManager(t, ctx)
	main := fm.MainFrame()

	fm.frameLifecycleEvent(testMainFrameID, LifecycleEventDOMContentLoad)
	fm.frameLifecycleEvent(testMainFrameID, LifecycleEventLoad)

	assert.True(t, main.hasLifecycleEventFired(LifecycleEventLoad))
	assert.True(t, main.hasSubtreeLifecycleEventFired(LifecycleEventLoad))

	// A new document starts its lifecycle from scratch.
	require.NoError(t,
		fm.frameNavigated(testMainFrameID, "", "loader_id_1", "", "https://test/2", false))
	assert.False(t, main.hasLifecycleEventFired(LifecycleEventLoad))
}

func TestFrameManagerNavigatedWithinDocument(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fm := newTestFrameManager(t, ctx)
	main := fm.MainFrame()

	navEvtCh := make(chan Event, 1)
	main.on(ctx, []string{EventFrameNavigation}, navEvtCh)

	fm.frameNavigatedWithinDocument(testMainFrameID, "https://test/#anchor")

	assert.Equal(t, "https://test/#anchor", main.URL())
	ev := <-navEvtCh
	ne, ok := ev.data.(*NavigationEvent)
	require.True(t, ok)
	// Same-document navigations carry no new document.
	assert.Nil(t, ne.newDocument)
}
