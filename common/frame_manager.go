package common

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zoltan-boros/puppeteer/log"

	"github.com/chromedp/cdproto/cdp"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"golang.org/x/net/context"
)

// FrameManager manages all frames in a page and their life-cycles.
//
// All CDP frame events funnel through here. The protocol delivers them
// concurrently and out of order across sessions, so every mutation of the
// frame table revalidates its preconditions instead of trusting event order.
type FrameManager struct {
	ctx             context.Context
	session         session
	page            *Page
	timeoutSettings *TimeoutSettings

	mainFrame *Frame

	// Needed as the frames map will be accessed from multiple Go routines,
	// the main VU/JS go routine and the Go routine listening for CDP messages.
	framesMu sync.RWMutex
	frames   map[cdp.FrameID]*Frame

	barriersMu sync.RWMutex
	barriers   []*Barrier

	logger *log.Logger
}

// NewFrameManager creates a new HTML document frame manager.
func NewFrameManager(
	ctx context.Context, s session, p *Page, ts *TimeoutSettings, l *log.Logger,
) *FrameManager {
	m := &FrameManager{
		ctx:             ctx,
		session:         s,
		page:            p,
		timeoutSettings: ts,
		frames:          make(map[cdp.FrameID]*Frame),
		barriers:        make([]*Barrier, 0),
		logger:          l,
	}
	l.Debugf("NewFrameManager", "sid:%v", m.sessionID())
	return m
}

func (m *FrameManager) sessionID() (sid target.SessionID) {
	if m.session != nil {
		sid = m.session.ID()
	}
	return sid
}

func (m *FrameManager) addBarrier(b *Barrier) {
	m.logger.Debugf("FrameManager:addBarrier", "sid:%v", m.sessionID())

	m.barriersMu.Lock()
	defer m.barriersMu.Unlock()
	m.barriers = append(m.barriers, b)
}

func (m *FrameManager) removeBarrier(b *Barrier) {
	m.logger.Debugf("FrameManager:removeBarrier", "sid:%v", m.sessionID())

	m.barriersMu.Lock()
	defer m.barriersMu.Unlock()
	index := -1
	for i, b2 := range m.barriers {
		if b == b2 {
			index = i
			break
		}
	}
	m.barriers = append(m.barriers[:index], m.barriers[index+1:]...)
}

func (m *FrameManager) frameAbortedNavigation(frameID cdp.FrameID, errorText, documentID string) {
	m.logger.Debugf("FrameManager:frameAbortedNavigation",
		"sid:%v fid:%v err:%s docid:%s", m.sessionID(), frameID, errorText, documentID)

	m.framesMu.Lock()
	defer m.framesMu.Unlock()

	frame := m.frames[frameID]
	if frame == nil || frame.pendingDocument == nil {
		return
	}
	if documentID != "" && frame.pendingDocument.documentID != documentID {
		return
	}

	ne := &NavigationEvent{
		url:         frame.URL(),
		name:        frame.Name(),
		newDocument: frame.pendingDocument,
		err:         errors.New(errorText),
	}
	frame.pendingDocument = nil
	frame.emit(EventFrameNavigation, ne)
}

func (m *FrameManager) frameAttached(frameID cdp.FrameID, parentFrameID cdp.FrameID) {
	m.logger.Debugf("FrameManager:frameAttached",
		"sid:%v fid:%v pfid:%v", m.sessionID(), frameID, parentFrameID)

	m.framesMu.Lock()
	defer m.framesMu.Unlock()

	if _, ok := m.frames[frameID]; ok {
		// Inconsistent protocol event sequence, ignore.
		return
	}
	// A parent we have never heard of means the attach raced ahead of the
	// event that would have introduced the parent. Drop it; the frame tree
	// snapshot or a later navigate event will bring the subtree in.
	parentFrame, ok := m.frames[parentFrameID]
	if !ok {
		return
	}
	frame := NewFrame(m.ctx, m, parentFrame, frameID, m.logger)
	m.frames[frameID] = frame
	parentFrame.addChildFrame(frame)
	if m.page != nil {
		m.page.emit(EventPageFrameAttached, frame)
	}
}

func (m *FrameManager) frameDetached(frameID cdp.FrameID) {
	m.logger.Debugf("FrameManager:frameDetached", "sid:%v fid:%v", m.sessionID(), frameID)

	m.framesMu.Lock()
	defer m.framesMu.Unlock()

	frame, ok := m.frames[frameID]
	if !ok {
		return
	}
	m.removeFramesRecursively(frame)
}

func (m *FrameManager) frameLifecycleEvent(frameID cdp.FrameID, event LifecycleEvent) {
	m.logger.Debugf("FrameManager:frameLifecycleEvent",
		"sid:%v fid:%v event:%s", m.sessionID(), frameID, event)

	frame := m.getFrameByID(frameID)
	if frame != nil {
		frame.onLifecycleEvent(event)
		m.MainFrame().recalculateLifecycle()
	}
}

func (m *FrameManager) frameLoadingStarted(frameID cdp.FrameID) {
	m.logger.Debugf("FrameManager:frameLoadingStarted", "sid:%v fid:%v", m.sessionID(), frameID)

	frame := m.getFrameByID(frameID)
	if frame != nil {
		frame.onLoadingStarted()
	}
}

func (m *FrameManager) frameLoadingStopped(frameID cdp.FrameID) {
	m.logger.Debugf("FrameManager:frameLoadingStopped", "sid:%v fid:%v", m.sessionID(), frameID)

	frame := m.getFrameByID(frameID)
	if frame != nil {
		frame.onLoadingStopped()
		m.MainFrame().recalculateLifecycle()
	}
}

func (m *FrameManager) frameNavigated(
	frameID cdp.FrameID, parentFrameID cdp.FrameID, documentID string,
	name string, url string, initial bool,
) error {
	m.logger.Debugf("FrameManager:frameNavigated",
		"sid:%v fid:%v pfid:%v docid:%s furl:%q initial:%t",
		m.sessionID(), frameID, parentFrameID, documentID, url, initial)

	m.framesMu.Lock()

	isMainFrame := parentFrameID == ""
	frame := m.frames[frameID]

	if !isMainFrame && frame == nil {
		m.framesMu.Unlock()
		return errors.New("we either navigate top level or have old version of the navigated frame")
	}
	if m.mainFrame != nil && frameID == m.mainFrame.id && !isMainFrame {
		m.framesMu.Unlock()
		return errors.New("main frame cannot become a child frame")
	}

	if frame != nil {
		// A committed document supersedes the subtree of the previous one.
		// The removal stays inside the critical section so concurrent
		// readers never observe a half-detached tree.
		frame.childFrameIDsMu.RLock()
		childIDs := make([]cdp.FrameID, 0, len(frame.childFrameIDs))
		for id := range frame.childFrameIDs {
			childIDs = append(childIDs, id)
		}
		frame.childFrameIDsMu.RUnlock()
		for _, id := range childIDs {
			if child, ok := m.frames[id]; ok {
				m.removeFramesRecursively(child)
			}
		}
	}

	if isMainFrame {
		if frame != nil {
			// A cross-process navigation re-identifies the main frame.
			// Preserve the frame object so that subscribers and pending
			// navigations survive the swap.
			delete(m.frames, frame.id)
			frame.setID(frameID)
		} else {
			frame = NewFrame(m.ctx, m, nil, frameID, m.logger)
		}
		m.frames[frameID] = frame
		m.mainFrame = frame
	}

	frame.navigated(name, url, documentID)

	var keepPending *DocumentInfo
	pendingDocument := frame.pendingDocument
	if pendingDocument != nil {
		if pendingDocument.documentID != documentID {
			// A racy, unrelated navigation committed first. Remember the one
			// we are tracking so an abort for it can still be matched.
			keepPending = pendingDocument
			frame.currentDocument = &DocumentInfo{documentID: documentID}
		} else {
			frame.currentDocument = pendingDocument
		}
		frame.pendingDocument = nil
	} else {
		frame.currentDocument = &DocumentInfo{documentID: documentID}
	}
	currentDocument := frame.currentDocument

	m.framesMu.Unlock()

	frame.clearLifecycle()
	frame.emit(EventFrameNavigation, &NavigationEvent{
		url: url, name: name, newDocument: currentDocument,
	})

	m.framesMu.Lock()
	frame.pendingDocument = keepPending
	m.framesMu.Unlock()

	if !initial && m.page != nil {
		m.page.emit(EventPageFrameNavigated, frame)
	}
	return nil
}

func (m *FrameManager) frameNavigatedWithinDocument(frameID cdp.FrameID, url string) {
	m.logger.Debugf("FrameManager:frameNavigatedWithinDocument",
		"sid:%v fid:%v furl:%q", m.sessionID(), frameID, url)

	m.framesMu.RLock()
	frame, ok := m.frames[frameID]
	m.framesMu.RUnlock()
	if !ok {
		return
	}

	frame.url = url
	frame.emit(EventFrameNavigation, &NavigationEvent{url: url, name: frame.name})
	if m.page != nil {
		m.page.emit(EventPageFrameNavigated, frame)
	}
}

func (m *FrameManager) frameRequestedNavigation(frameID cdp.FrameID, url string, documentID string) error {
	m.logger.Debugf("FrameManager:frameRequestedNavigation",
		"sid:%v fid:%v furl:%q docid:%s", m.sessionID(), frameID, url, documentID)

	m.framesMu.RLock()
	frame, ok := m.frames[frameID]
	m.framesMu.RUnlock()
	if !ok {
		return fmt.Errorf("no frame exists with ID %s", frameID)
	}

	m.barriersMu.RLock()
	defer m.barriersMu.RUnlock()
	for _, b := range m.barriers {
		b.AddFrameNavigation(frame)
	}

	m.framesMu.Lock()
	defer m.framesMu.Unlock()
	if frame.pendingDocument != nil && frame.pendingDocument.documentID == documentID {
		// Already tracking.
		return nil
	}
	frame.pendingDocument = &DocumentInfo{documentID: documentID}
	return nil
}

func (m *FrameManager) removeChildFramesRecursively(frame *Frame) {
	m.framesMu.Lock()
	defer m.framesMu.Unlock()
	frame.childFrameIDsMu.RLock()
	childIDs := make([]cdp.FrameID, 0, len(frame.childFrameIDs))
	for id := range frame.childFrameIDs {
		childIDs = append(childIDs, id)
	}
	frame.childFrameIDsMu.RUnlock()
	for _, id := range childIDs {
		if child, ok := m.frames[id]; ok {
			m.removeFramesRecursively(child)
		}
	}
}

func (m *FrameManager) getFrameByID(id cdp.FrameID) *Frame {
	m.framesMu.RLock()
	defer m.framesMu.RUnlock()
	return m.frames[id]
}

// removeFramesRecursively detaches a frame subtree, children before parents,
// so that subscribers always observe a child detach before its parent's.
// Requires the caller to hold framesMu, so child frames are resolved against
// the frame table directly.
func (m *FrameManager) removeFramesRecursively(frame *Frame) {
	frame.childFrameIDsMu.RLock()
	childIDs := make([]cdp.FrameID, 0, len(frame.childFrameIDs))
	for id := range frame.childFrameIDs {
		childIDs = append(childIDs, id)
	}
	frame.childFrameIDsMu.RUnlock()
	for _, id := range childIDs {
		child, ok := m.frames[id]
		if !ok {
			continue
		}
		m.logger.Debugf("FrameManager:removeFramesRecursively",
			"sid:%v cfid:%v pfid:%v cfurl:%q", m.sessionID(), child.id, frame.id, child.URL())
		m.removeFramesRecursively(child)
	}

	frame.detach()
	delete(m.frames, frame.id)
	if m.page != nil {
		m.page.emit(EventPageFrameDetached, frame)
	}
}

func (m *FrameManager) requestStarted(req *Request) {
	m.logger.Debugf("FrameManager:requestStarted",
		"sid:%v rid:%v url:%q", m.sessionID(), req.requestID, req.URL())

	m.framesMu.Lock()
	defer m.framesMu.Unlock()

	frame := req.getFrame()
	if frame == nil {
		return
	}
	frame.addRequest(req.requestID)
	if frame.inflightRequestsLen() == 1 {
		frame.stopNetworkIdleTimer()
	}
	if req.documentID != "" {
		frame.pendingDocument = &DocumentInfo{documentID: req.documentID, request: req}
	}
	if m.page != nil {
		m.page.emit(EventPageRequest, req)
	}
}

func (m *FrameManager) requestFailed(req *Request, canceled bool) {
	m.logger.Debugf("FrameManager:requestFailed", "sid:%v rid:%v", m.sessionID(), req.requestID)

	m.framesMu.Lock()

	frame := req.getFrame()
	if frame == nil {
		m.framesMu.Unlock()
		return
	}
	frame.deleteRequest(req.requestID)
	if frame.inflightRequestsLen() == 0 {
		frame.startNetworkIdleTimer()
	}

	var abortedDocumentID string
	if frame.pendingDocument != nil && frame.pendingDocument.request == req {
		abortedDocumentID = frame.pendingDocument.documentID
	}
	m.framesMu.Unlock()

	if abortedDocumentID != "" {
		errorText := req.errorText
		if canceled {
			errorText += "; maybe frame was detached?"
		}
		m.frameAbortedNavigation(frame.id, errorText, abortedDocumentID)
	}
	if m.page != nil {
		m.page.emit(EventPageRequestFailed, req)
	}
}

func (m *FrameManager) requestFinished(req *Request) {
	m.logger.Debugf("FrameManager:requestFinished", "sid:%v rid:%v", m.sessionID(), req.requestID)

	m.framesMu.Lock()

	frame := req.getFrame()
	if frame == nil {
		m.framesMu.Unlock()
		return
	}
	frame.deleteRequest(req.requestID)
	if frame.inflightRequestsLen() == 0 {
		frame.startNetworkIdleTimer()
	}
	m.framesMu.Unlock()

	if m.page != nil {
		m.page.emit(EventPageRequestFinished, req)
	}
}

func (m *FrameManager) requestReceivedResponse(res *Response) {
	m.logger.Debugf("FrameManager:requestReceivedResponse",
		"sid:%v rid:%v url:%q", m.sessionID(), res.request.requestID, res.URL())

	if m.page != nil {
		m.page.emit(EventPageResponse, res)
	}
}

// Frames returns a list of frames on the page.
func (m *FrameManager) Frames() []*Frame {
	m.framesMu.RLock()
	defer m.framesMu.RUnlock()
	frames := make([]*Frame, 0, len(m.frames))
	for _, frame := range m.frames {
		frames = append(frames, frame)
	}
	return frames
}

// MainFrame returns the main frame of the page.
func (m *FrameManager) MainFrame() *Frame {
	m.framesMu.RLock()
	defer m.framesMu.RUnlock()
	return m.mainFrame
}

// Page returns the page on which the frame manager operates.
func (m *FrameManager) Page() *Page {
	return m.page
}

// NavigateFrame navigates a frame to the given url and waits for the
// resulting document to settle. The returned bool reports whether the page
// settled: the target document committed, reached its load milestone and
// went network idle for the settle window within the navigation timeout.
//
// An unreachable target is not an error: the navigation settles false. A
// navigation superseded by a different committed document also settles
// false. Issuing a second navigation while one is pending fails with
// ErrNavigationPending.
func (m *FrameManager) NavigateFrame(
	apiCtx context.Context, frame *Frame, url string, opts *FrameGotoOptions,
) (bool, error) {
	m.logger.Debugf("FrameManager:NavigateFrame",
		"sid:%v fid:%v furl:%q url:%q", m.sessionID(), frame.id, frame.URL(), url)

	if opts == nil {
		opts = NewFrameGotoOptions("", m.timeoutSettings.navigationTimeout())
	}
	if opts.MinSettleTime > 0 {
		frame.setNetworkIdleTimeout(opts.MinSettleTime)
	}

	pn := newPendingNavigation(url)
	if err := frame.setPendingNavigation(pn); err != nil {
		return false, err
	}

	timeoutCtx, timeoutCancelFn := context.WithTimeout(apiCtx, opts.Timeout)
	defer timeoutCancelFn()

	// Subscribe before issuing the navigate command so a fast commit
	// cannot slip past us.
	navEvtCh := make(chan Event, 1)
	frame.on(timeoutCtx, []string{EventFrameNavigation}, navEvtCh)

	lcEvtCh := make(chan Event, 1)
	frame.on(timeoutCtx, []string{EventFrameAddLifecycle}, lcEvtCh)

	fs := m.page.getFrameSession(frame.id)
	if fs == nil {
		fs = m.page.mainFrameSession
	}
	newDocumentID, errorText, err := fs.navigateFrame(frame, url, opts.Referer)
	if err != nil {
		pn.settle(false)
		return false, fmt.Errorf("navigating frame to %q: %w", url, err)
	}
	if errorText != "" {
		// The browser could not reach the target (DNS failure, refused
		// connection and friends). That is a settled-false navigation,
		// not a driver error.
		m.logger.Debugf("FrameManager:NavigateFrame",
			"sid:%v fid:%v url:%q unreachable: %s", m.sessionID(), frame.id, url, errorText)
		pn.settle(false)
		return false, nil
	}
	if newDocumentID == "" {
		// Same-document navigation, the loaded document stays.
		pn.settle(true)
		return true, nil
	}
	pn.documentID = newDocumentID

	// Phase 1: wait for the target document to commit.
	committed := false
	for !committed {
		select {
		case <-timeoutCtx.Done():
			pn.settle(false)
			return false, fmt.Errorf("navigating frame to %q: %w", url, ErrTimedOut)
		case <-frame.ctx.Done():
			pn.settle(false)
			return false, fmt.Errorf("navigating frame to %q: %w", url, ErrFrameDetached)
		case evt := <-navEvtCh:
			ne, ok := evt.data.(*NavigationEvent)
			if !ok {
				continue
			}
			switch {
			case ne.err != nil:
				// Aborted before commit.
				pn.settle(false)
				return false, nil
			case ne.newDocument == nil:
				// Same-document event for an unrelated navigation.
				continue
			case ne.newDocument.documentID != newDocumentID:
				// A different document committed and superseded ours.
				pn.settle(false)
				return false, nil
			default:
				committed = true
			}
		}
	}

	// Phase 2: wait for the requested lifecycle milestone. Load is implied
	// even when only network idle was asked for.
	settled := func() bool {
		return frame.hasSubtreeLifecycleEventFired(LifecycleEventLoad) &&
			frame.hasSubtreeLifecycleEventFired(opts.WaitUntil)
	}
	for !settled() {
		select {
		case <-timeoutCtx.Done():
			pn.settle(false)
			return false, fmt.Errorf("navigating frame to %q: %w", url, ErrTimedOut)
		case <-frame.ctx.Done():
			pn.settle(false)
			return false, fmt.Errorf("navigating frame to %q: %w", url, ErrFrameDetached)
		case <-lcEvtCh:
		case evt := <-navEvtCh:
			if ne, ok := evt.data.(*NavigationEvent); ok &&
				ne.newDocument != nil && ne.newDocument.documentID != newDocumentID {
				pn.settle(false)
				return false, nil
			}
		}
	}

	pn.settle(true)
	return true, nil
}

// ReloadFrame reloads the frame's current document and waits for the new
// document to settle with the same machinery as NavigateFrame. The reloaded
// document's loader ID is only known once it commits, so the first committed
// document is taken as the navigation target.
func (m *FrameManager) ReloadFrame(
	apiCtx context.Context, frame *Frame, opts *PageReloadOptions,
) (bool, error) {
	m.logger.Debugf("FrameManager:ReloadFrame",
		"sid:%v fid:%v furl:%q", m.sessionID(), frame.id, frame.URL())

	if opts == nil {
		opts = NewPageReloadOptions(m.timeoutSettings.navigationTimeout())
	}
	if opts.MinSettleTime > 0 {
		frame.setNetworkIdleTimeout(opts.MinSettleTime)
	}

	pn := newPendingNavigation(frame.URL())
	if err := frame.setPendingNavigation(pn); err != nil {
		return false, err
	}

	timeoutCtx, timeoutCancelFn := context.WithTimeout(apiCtx, opts.Timeout)
	defer timeoutCancelFn()

	navEvtCh := make(chan Event, 1)
	frame.on(timeoutCtx, []string{EventFrameNavigation}, navEvtCh)

	lcEvtCh := make(chan Event, 1)
	frame.on(timeoutCtx, []string{EventFrameAddLifecycle}, lcEvtCh)

	fs := m.page.getFrameSession(frame.id)
	if fs == nil {
		fs = m.page.mainFrameSession
	}
	if err := cdppage.Reload().Do(cdp.WithExecutor(m.ctx, fs.session)); err != nil {
		pn.settle(false)
		return false, fmt.Errorf("reloading frame: %w", err)
	}

	var newDocumentID string
	for newDocumentID == "" {
		select {
		case <-timeoutCtx.Done():
			pn.settle(false)
			return false, fmt.Errorf("reloading frame: %w", ErrTimedOut)
		case <-frame.ctx.Done():
			pn.settle(false)
			return false, fmt.Errorf("reloading frame: %w", ErrFrameDetached)
		case evt := <-navEvtCh:
			ne, ok := evt.data.(*NavigationEvent)
			if !ok {
				continue
			}
			if ne.err != nil {
				pn.settle(false)
				return false, nil
			}
			if ne.newDocument != nil {
				newDocumentID = ne.newDocument.documentID
				pn.documentID = newDocumentID
			}
		}
	}

	settled := func() bool {
		return frame.hasSubtreeLifecycleEventFired(LifecycleEventLoad) &&
			frame.hasSubtreeLifecycleEventFired(opts.WaitUntil)
	}
	for !settled() {
		select {
		case <-timeoutCtx.Done():
			pn.settle(false)
			return false, fmt.Errorf("reloading frame: %w", ErrTimedOut)
		case <-frame.ctx.Done():
			pn.settle(false)
			return false, fmt.Errorf("reloading frame: %w", ErrFrameDetached)
		case <-lcEvtCh:
		case evt := <-navEvtCh:
			if ne, ok := evt.data.(*NavigationEvent); ok &&
				ne.newDocument != nil && ne.newDocument.documentID != newDocumentID {
				pn.settle(false)
				return false, nil
			}
		}
	}

	pn.settle(true)
	return true, nil
}

// WaitForFrameNavigation waits for the given frame's in-progress navigation
// to settle and returns whether it settled successfully.
func (m *FrameManager) WaitForFrameNavigation(frame *Frame) (bool, error) {
	m.logger.Debugf("FrameManager:WaitForFrameNavigation",
		"sid:%v furl:%s", m.sessionID(), frame.URL())
	return frame.WaitForNavigation(m.ctx, m.timeoutSettings.navigationTimeout())
}
