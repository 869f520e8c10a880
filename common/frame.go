package common

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoltan-boros/puppeteer/log"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"golang.org/x/net/context"
)

// DocumentInfo holds the loader ID of a document and the network request
// that produced it.
type DocumentInfo struct {
	documentID string
	request    *Request
}

// pendingNavigation tracks a navigation issued through Goto until it settles.
// A navigation settles exactly once: either the target document committed and
// reached the requested lifecycle milestone (success), or it was aborted,
// superseded by another document, or the frame went away (failure).
type pendingNavigation struct {
	url        string
	documentID string

	mu       sync.Mutex
	state    NavigationState
	settleCh chan bool
}

func newPendingNavigation(url string) *pendingNavigation {
	return &pendingNavigation{
		url:      url,
		state:    NavigationStatePending,
		settleCh: make(chan bool, 1),
	}
}

func (pn *pendingNavigation) settle(ok bool) {
	pn.mu.Lock()
	defer pn.mu.Unlock()
	if pn.state != NavigationStatePending {
		return
	}
	if ok {
		pn.state = NavigationStateSucceeded
	} else {
		pn.state = NavigationStateFailed
	}
	pn.settleCh <- ok
	close(pn.settleCh)
}

func (pn *pendingNavigation) navigationState() NavigationState {
	pn.mu.Lock()
	defer pn.mu.Unlock()
	return pn.state
}

// Frame represents a frame in an HTML document.
//
// The frame tree is stored as an arena: a frame holds the IDs of its
// children, never live references, and resolves them through the manager's
// ID-indexed table. Detaching a subtree is then a pure set removal.
type Frame struct {
	BaseEventEmitter

	ctx         context.Context
	page        *Page
	manager     *FrameManager
	parentFrame *Frame

	childFrameIDsMu sync.RWMutex
	childFrameIDs   map[cdp.FrameID]struct{}

	id       cdp.FrameID
	loaderID string
	name     string
	url      string
	detached bool

	// A life cycle event is only considered triggered for a frame if the entire
	// frame subtree has also had the life cycle event triggered.
	lifecycleEventsMu      sync.RWMutex
	lifecycleEvents        map[LifecycleEvent]bool
	subtreeLifecycleEvents map[LifecycleEvent]bool

	mainExecutionContext             *ExecutionContext
	utilityExecutionContext          *ExecutionContext
	executionContextMu               sync.RWMutex
	mainExecutionContextCh           chan bool
	utilityExecutionContextCh        chan bool
	mainExecutionContextHasWaited    int32
	utilityExecutionContextHasWaited int32

	loadingStartedTime time.Time

	networkIdleMu       sync.Mutex
	networkIdleCtx      context.Context
	networkIdleCancelFn context.CancelFunc
	networkIdleTimeout  time.Duration

	inflightRequestsMu sync.RWMutex
	inflightRequests   map[network.RequestID]bool

	currentDocument *DocumentInfo
	pendingDocument *DocumentInfo

	pendingNavMu sync.Mutex
	pendingNav   *pendingNavigation

	logger *log.Logger
}

// NewFrame creates a new HTML document frame.
func NewFrame(ctx context.Context, m *FrameManager, parentFrame *Frame, frameID cdp.FrameID, l *log.Logger) *Frame {
	if l.DebugMode() {
		var pfid cdp.FrameID
		if parentFrame != nil {
			pfid = parentFrame.id
		}
		l.Debugf("NewFrame", "fid:%v pfid:%v", frameID, pfid)
	}
	return &Frame{
		BaseEventEmitter:          NewBaseEventEmitter(ctx),
		ctx:                       ctx,
		page:                      m.page,
		manager:                   m,
		parentFrame:               parentFrame,
		childFrameIDs:             make(map[cdp.FrameID]struct{}),
		id:                        frameID,
		lifecycleEvents:           make(map[LifecycleEvent]bool),
		subtreeLifecycleEvents:    make(map[LifecycleEvent]bool),
		mainExecutionContextCh:    make(chan bool, 1),
		utilityExecutionContextCh: make(chan bool, 1),
		networkIdleTimeout:        LifeCycleNetworkIdleTimeout,
		inflightRequests:          make(map[network.RequestID]bool),
		currentDocument:           &DocumentInfo{},
		logger:                    l,
	}
}

func (f *Frame) addChildFrame(childFrame *Frame) {
	f.childFrameIDsMu.Lock()
	f.childFrameIDs[childFrame.id] = struct{}{}
	f.childFrameIDsMu.Unlock()
}

func (f *Frame) removeChildFrame(childFrame *Frame) {
	f.childFrameIDsMu.Lock()
	delete(f.childFrameIDs, childFrame.id)
	f.childFrameIDsMu.Unlock()
}

func (f *Frame) addRequest(requestID network.RequestID) {
	f.inflightRequestsMu.Lock()
	defer f.inflightRequestsMu.Unlock()

	f.inflightRequests[requestID] = true
}

func (f *Frame) deleteRequest(requestID network.RequestID) {
	f.inflightRequestsMu.Lock()
	defer f.inflightRequestsMu.Unlock()

	delete(f.inflightRequests, requestID)
}

func (f *Frame) inflightRequestsLen() int {
	f.inflightRequestsMu.RLock()
	defer f.inflightRequestsMu.RUnlock()
	return len(f.inflightRequests)
}

func (f *Frame) clearLifecycle() {
	f.logger.Debugf("Frame:clearLifecycle", "fid:%v furl:%q", f.id, f.url)

	f.lifecycleEventsMu.Lock()
	for k := range f.lifecycleEvents {
		f.lifecycleEvents[k] = false
	}
	f.lifecycleEventsMu.Unlock()
	if mf := f.manager.MainFrame(); mf != nil {
		mf.recalculateLifecycle()
	}

	// Keep the current document's own request in flight, everything
	// else belongs to the document we just navigated away from.
	f.inflightRequestsMu.Lock()
	inflightRequests := make(map[network.RequestID]bool)
	for reqID := range f.inflightRequests {
		if f.currentDocument.request != nil && reqID == f.currentDocument.request.requestID {
			inflightRequests[reqID] = true
		}
	}
	f.inflightRequests = inflightRequests
	f.inflightRequestsMu.Unlock()

	f.stopNetworkIdleTimer()
	if f.inflightRequestsLen() == 0 {
		f.startNetworkIdleTimer()
	}
}

func (f *Frame) defaultTimeout() time.Duration {
	return f.manager.timeoutSettings.timeout()
}

func (f *Frame) detach() {
	f.logger.Debugf("Frame:detach", "fid:%v furl:%q", f.id, f.url)

	f.stopNetworkIdleTimer()
	f.detached = true
	if f.parentFrame != nil {
		f.parentFrame.removeChildFrame(f)
	}
	f.parentFrame = nil
	f.settlePendingNavigation(false)
}

func (f *Frame) hasContext(world executionWorld) bool {
	f.executionContextMu.RLock()
	defer f.executionContextMu.RUnlock()

	switch world {
	case mainWorld:
		return f.mainExecutionContext != nil
	case utilityWorld:
		return f.utilityExecutionContext != nil
	}
	return false
}

func (f *Frame) hasLifecycleEventFired(event LifecycleEvent) bool {
	f.lifecycleEventsMu.RLock()
	defer f.lifecycleEventsMu.RUnlock()
	return f.lifecycleEvents[event]
}

func (f *Frame) hasSubtreeLifecycleEventFired(event LifecycleEvent) bool {
	f.lifecycleEventsMu.RLock()
	defer f.lifecycleEventsMu.RUnlock()
	return f.subtreeLifecycleEvents[event]
}

func (f *Frame) navigated(name string, url string, loaderID string) {
	f.logger.Debugf("Frame:navigated", "fid:%v furl:%q name:%q url:%q", f.id, f.url, name, url)

	f.name = name
	f.url = url
	f.loaderID = loaderID
}

func (f *Frame) nullContext(execCtxID runtime.ExecutionContextID) {
	f.executionContextMu.Lock()
	defer f.executionContextMu.Unlock()

	if f.mainExecutionContext != nil && f.mainExecutionContext.id == execCtxID {
		f.mainExecutionContext = nil
	} else if f.utilityExecutionContext != nil && f.utilityExecutionContext.id == execCtxID {
		f.utilityExecutionContext = nil
	}
}

func (f *Frame) nullContexts() {
	f.executionContextMu.Lock()
	defer f.executionContextMu.Unlock()

	f.mainExecutionContext = nil
	f.utilityExecutionContext = nil
}

func (f *Frame) onLifecycleEvent(event LifecycleEvent) {
	f.logger.Debugf("Frame:onLifecycleEvent", "fid:%v furl:%q event:%s", f.id, f.url, event)

	f.lifecycleEventsMu.Lock()
	defer f.lifecycleEventsMu.Unlock()
	if f.lifecycleEvents[event] {
		return
	}
	f.lifecycleEvents[event] = true
}

func (f *Frame) onLoadingStarted() {
	f.loadingStartedTime = time.Now()
}

func (f *Frame) onLoadingStopped() {
	f.logger.Debugf("Frame:onLoadingStopped", "fid:%v furl:%q", f.id, f.url)

	f.lifecycleEventsMu.Lock()
	defer f.lifecycleEventsMu.Unlock()
	f.lifecycleEvents[LifecycleEventDOMContentLoad] = true
	f.lifecycleEvents[LifecycleEventLoad] = true
	f.lifecycleEvents[LifecycleEventNetworkIdle] = true
}

func (f *Frame) recalculateLifecycle() {
	// Start with triggered events.
	events := make(map[LifecycleEvent]bool)
	f.lifecycleEventsMu.RLock()
	for k, v := range f.lifecycleEvents {
		events[k] = v
	}
	f.lifecycleEventsMu.RUnlock()

	// Only consider a life cycle event as fired if it has triggered for all of subtree.
	for _, child := range f.ChildFrames() {
		child.recalculateLifecycle()
		for k := range events {
			if !child.hasSubtreeLifecycleEventFired(k) {
				delete(events, k)
			}
		}
	}

	// Check if any of the fired events should be considered fired when looking at the entire subtree.
	mainFrame := f.manager.mainFrame
	for k := range events {
		if f.hasSubtreeLifecycleEventFired(k) {
			continue
		}
		f.emit(EventFrameAddLifecycle, k)
		if f != mainFrame || f.page == nil {
			continue
		}
		switch k {
		case LifecycleEventLoad:
			f.page.emit(EventPageLoad, nil)
		case LifecycleEventDOMContentLoad:
			f.page.emit(EventPageDOMContentLoaded, nil)
		}
	}

	// Emit removal events.
	f.lifecycleEventsMu.RLock()
	for k := range f.subtreeLifecycleEvents {
		if !events[k] {
			defer f.emit(EventFrameRemoveLifecycle, k)
		}
	}
	f.lifecycleEventsMu.RUnlock()

	f.lifecycleEventsMu.Lock()
	f.subtreeLifecycleEvents = make(map[LifecycleEvent]bool)
	for k, v := range events {
		f.subtreeLifecycleEvents[k] = v
	}
	f.lifecycleEventsMu.Unlock()
}

func (f *Frame) requestByID(reqID network.RequestID) *Request {
	frameSession := f.page.getFrameSession(f.id)
	if frameSession == nil {
		frameSession = f.page.mainFrameSession
	}
	return frameSession.networkManager.requestFromID(reqID)
}

func (f *Frame) setContext(world executionWorld, execCtx *ExecutionContext) {
	f.executionContextMu.Lock()
	defer f.executionContextMu.Unlock()

	f.logger.Debugf("Frame:setContext", "fid:%v furl:%q ectxid:%d world:%s",
		f.id, f.url, execCtx.ID(), world)

	switch world {
	case mainWorld:
		f.mainExecutionContext = execCtx
		if len(f.mainExecutionContextCh) == 0 {
			f.mainExecutionContextCh <- true
		}
	case utilityWorld:
		f.utilityExecutionContext = execCtx
		if len(f.utilityExecutionContextCh) == 0 {
			f.utilityExecutionContextCh <- true
		}
	}
}

func (f *Frame) setID(id cdp.FrameID) {
	f.id = id
}

// setNetworkIdleTimeout overrides the settle window used by the network idle
// timer for the lifetime of the frame.
func (f *Frame) setNetworkIdleTimeout(d time.Duration) {
	f.networkIdleMu.Lock()
	defer f.networkIdleMu.Unlock()
	f.networkIdleTimeout = d
}

func (f *Frame) startNetworkIdleTimer() {
	f.logger.Debugf("Frame:startNetworkIdleTimer", "fid:%v furl:%q", f.id, f.url)

	if f.hasLifecycleEventFired(LifecycleEventNetworkIdle) || f.detached {
		return
	}
	f.networkIdleMu.Lock()
	if f.networkIdleCancelFn != nil {
		f.networkIdleCancelFn()
	}
	f.networkIdleCtx, f.networkIdleCancelFn = context.WithCancel(f.ctx)
	doneCh := f.networkIdleCtx.Done()
	settleWindow := f.networkIdleTimeout
	f.networkIdleMu.Unlock()
	go func() {
		select {
		case <-doneCh:
		case <-time.After(settleWindow):
			f.manager.frameLifecycleEvent(f.id, LifecycleEventNetworkIdle)
		}
	}()
}

func (f *Frame) stopNetworkIdleTimer() {
	f.logger.Debugf("Frame:stopNetworkIdleTimer", "fid:%v furl:%q", f.id, f.url)

	f.networkIdleMu.Lock()
	defer f.networkIdleMu.Unlock()
	if f.networkIdleCancelFn != nil {
		f.networkIdleCancelFn()
		f.networkIdleCtx = nil
		f.networkIdleCancelFn = nil
	}
}

func (f *Frame) waitForExecutionContext(world executionWorld) {
	f.logger.Debugf("Frame:waitForExecutionContext", "fid:%v furl:%q world:%s", f.id, f.url, world)

	if world == mainWorld && atomic.CompareAndSwapInt32(&f.mainExecutionContextHasWaited, 0, 1) {
		select {
		case <-f.ctx.Done():
		case <-f.mainExecutionContextCh:
		}
	} else if world == utilityWorld && atomic.CompareAndSwapInt32(&f.utilityExecutionContextHasWaited, 0, 1) {
		select {
		case <-f.ctx.Done():
		case <-f.utilityExecutionContextCh:
		}
	}
}

// hasMainExecutionContext reports whether the frame's main world context
// exists, without waiting for it.
func (f *Frame) hasMainExecutionContext() bool {
	f.executionContextMu.RLock()
	defer f.executionContextMu.RUnlock()
	return f.mainExecutionContext != nil
}

func (f *Frame) executionContext(world executionWorld) (*ExecutionContext, error) {
	f.waitForExecutionContext(world)

	f.executionContextMu.RLock()
	defer f.executionContextMu.RUnlock()

	ec := f.mainExecutionContext
	if world == utilityWorld {
		ec = f.utilityExecutionContext
	}
	if ec == nil {
		return nil, fmt.Errorf("getting %s execution context for frame (%v): %w",
			world, f.id, ErrWrongExecutionContext)
	}
	return ec, nil
}

// setPendingNavigation installs a pending navigation record for the frame.
// There can be at most one outstanding navigation per frame.
func (f *Frame) setPendingNavigation(pn *pendingNavigation) error {
	f.pendingNavMu.Lock()
	defer f.pendingNavMu.Unlock()
	if f.pendingNav != nil && f.pendingNav.navigationState() == NavigationStatePending {
		return ErrNavigationPending
	}
	f.pendingNav = pn
	return nil
}

func (f *Frame) clearPendingNavigation(pn *pendingNavigation) {
	f.pendingNavMu.Lock()
	defer f.pendingNavMu.Unlock()
	if f.pendingNav == pn {
		f.pendingNav = nil
	}
}

func (f *Frame) settlePendingNavigation(ok bool) {
	f.pendingNavMu.Lock()
	pn := f.pendingNav
	f.pendingNavMu.Unlock()
	if pn != nil {
		pn.settle(ok)
	}
}

// navigationState reports the state of the frame's current navigation, or
// NavigationStateNone when no navigation was ever issued.
func (f *Frame) navigationState() NavigationState {
	f.pendingNavMu.Lock()
	defer f.pendingNavMu.Unlock()
	if f.pendingNav == nil {
		return NavigationStateNone
	}
	return f.pendingNav.navigationState()
}

// ChildFrames returns the child frames of this frame, resolved through the
// manager's frame table.
func (f *Frame) ChildFrames() []*Frame {
	f.childFrameIDsMu.RLock()
	defer f.childFrameIDsMu.RUnlock()
	l := make([]*Frame, 0, len(f.childFrameIDs))
	for id := range f.childFrameIDs {
		if child := f.manager.getFrameByID(id); child != nil {
			l = append(l, child)
		}
	}
	return l
}

// Evaluate will evaluate provided page function within an execution context.
func (f *Frame) Evaluate(apiCtx context.Context, pageFunc string, args ...interface{}) (interface{}, error) {
	f.logger.Debugf("Frame:Evaluate", "fid:%v furl:%q", f.id, f.url)

	ec, err := f.executionContext(mainWorld)
	if err != nil {
		return nil, err
	}
	return ec.Eval(apiCtx, pageFunc, args...)
}

// EvaluateHandle will evaluate provided page function within an execution
// context and return a handle to the result.
func (f *Frame) EvaluateHandle(apiCtx context.Context, pageFunc string, args ...interface{}) (JSHandle, error) {
	f.logger.Debugf("Frame:EvaluateHandle", "fid:%v furl:%q", f.id, f.url)

	ec, err := f.executionContext(mainWorld)
	if err != nil {
		return nil, err
	}
	return ec.EvalHandle(apiCtx, pageFunc, args...)
}

// EvaluateGlobal evaluates the given JS as a plain expression in the frame's
// main world, without wrapping it into a callable.
func (f *Frame) EvaluateGlobal(apiCtx context.Context, js string) error {
	ec, err := f.executionContext(mainWorld)
	if err != nil {
		return err
	}
	opts := evalOptions{forceCallable: false, returnByValue: true}
	if _, err := ec.eval(apiCtx, opts, js); err != nil {
		return fmt.Errorf("evaluating global expression: %w", err)
	}
	return nil
}

// Goto will navigate the frame to the specified URL.
// It returns whether the page settled (reached network idle within the
// navigation timeout); an unreachable target is a false result, not an error.
func (f *Frame) Goto(apiCtx context.Context, url string, opts *FrameGotoOptions) (bool, error) {
	return f.manager.NavigateFrame(apiCtx, f, url, opts)
}

// WaitForNavigation waits for the current navigation of the frame to settle.
func (f *Frame) WaitForNavigation(apiCtx context.Context, timeout time.Duration) (bool, error) {
	f.pendingNavMu.Lock()
	pn := f.pendingNav
	f.pendingNavMu.Unlock()
	if pn == nil {
		return false, fmt.Errorf("frame (%v) has no navigation in progress", f.id)
	}
	select {
	case ok := <-pn.settleCh:
		return ok, nil
	case <-time.After(timeout):
		return false, ErrTimedOut
	case <-apiCtx.Done():
		return false, apiCtx.Err()
	case <-f.ctx.Done():
		return false, f.ctx.Err()
	}
}

// Content returns the HTML content of the frame.
func (f *Frame) Content(apiCtx context.Context) (string, error) {
	js := `() => {
		let content = '';
		if (document.doctype) {
			content = new XMLSerializer().serializeToString(document.doctype);
		}
		if (document.documentElement) {
			content += document.documentElement.outerHTML;
		}
		return content;
	}`
	v, err := f.Evaluate(apiCtx, js)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("unexpected frame content type %T", v)
	}
	return s, nil
}

// Title returns the frame document's title.
func (f *Frame) Title(apiCtx context.Context) (string, error) {
	v, err := f.Evaluate(apiCtx, "() => document.title")
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("unexpected frame title type %T", v)
	}
	return s, nil
}

// ID returns the frame id.
func (f *Frame) ID() string {
	return f.id.String()
}

// IsDetached returns whether the frame is detached.
func (f *Frame) IsDetached() bool {
	return f.detached
}

// LoaderID returns the ID of the frame's document.
func (f *Frame) LoaderID() string {
	return f.loaderID
}

// Name returns the frame name.
func (f *Frame) Name() string {
	return f.name
}

// Page returns the page that this frame belongs to.
func (f *Frame) Page() *Page {
	return f.manager.page
}

// ParentFrame returns the frame's parent frame, or nil for the main frame.
func (f *Frame) ParentFrame() *Frame {
	return f.parentFrame
}

// URL returns the frame URL.
func (f *Frame) URL() string {
	return f.url
}
