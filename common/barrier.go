package common

import (
	"sync/atomic"
	"time"

	"golang.org/x/net/context"
)

// Barrier holds an input action open until a navigation the action triggered,
// if any, has started. The frame manager arms every registered barrier when
// the browser reports a frame requesting navigation.
type Barrier struct {
	count int64
	ch    chan bool
	errCh chan error
}

func NewBarrier() *Barrier {
	return &Barrier{
		count: 1,
		ch:    make(chan bool, 1),
		errCh: make(chan error, 1),
	}
}

// AddFrameNavigation arms the barrier for a started navigation of the given
// frame. Only main frame navigations hold the barrier open.
func (b *Barrier) AddFrameNavigation(frame *Frame) {
	if frame.parentFrame != nil {
		return
	}
	atomic.AddInt64(&b.count, 1)
	ch, evCancelFn := createWaitForEventHandler(
		frame.ctx, frame, []string{EventFrameNavigation},
		func(data interface{}) bool { return true })
	go func() {
		defer evCancelFn()
		select {
		case <-frame.ctx.Done():
		case <-time.After(frame.manager.timeoutSettings.navigationTimeout()):
			b.errCh <- ErrTimedOut
		case <-ch:
			b.ch <- true
		}
		atomic.AddInt64(&b.count, -1)
	}()
}

// Wait blocks until every armed navigation has started.
func (b *Barrier) Wait(ctx context.Context) error {
	if atomic.AddInt64(&b.count, -1) == 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.ch:
		return nil
	case err := <-b.errCh:
		return err
	}
}
