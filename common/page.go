package common

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/zoltan-boros/puppeteer/log"

	"github.com/chromedp/cdproto/cdp"
	cdppage "github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"golang.org/x/net/context"
)

// Page drives a single browser target. It composes the frame registry, the
// navigation controller, the network interception gate and the execution
// bridge behind one facade.
type Page struct {
	BaseEventEmitter

	Keyboard *Keyboard
	Mouse    *Mouse

	ctx context.Context

	// what it really needs is an executor with
	// SessionID and TargetID
	session session
	conn    connection

	targetID        target.ID
	opts            *PageOptions
	frameManager    *FrameManager
	timeoutSettings *TimeoutSettings

	// protects from race between:
	// - connection close->Page.didClose
	// - FrameSession.initEvents.onFrameDetached->FrameManager.frameDetached.removeFramesRecursively->Page.IsClosed
	closedMu sync.RWMutex
	closed   bool

	viewportMu       sync.RWMutex
	emulatedViewport *Viewport

	extraHeadersMu sync.RWMutex
	extraHeaders   map[string]string

	mainFrameSession *FrameSession
	frameSessions    map[cdp.FrameID]*FrameSession
	frameSessionsMu  sync.RWMutex

	// routeMu guards the interceptor. dispatchRoute snapshots it at pause
	// time, so clearing the interceptor never affects already paused
	// requests.
	routeMu sync.RWMutex
	route   RouteHandler

	bindingsMu sync.RWMutex
	bindings   map[string]ExposedFunc

	logger *log.Logger
}

// NewPage creates a new page driver attached to the session's target.
func NewPage(
	ctx context.Context,
	s session,
	conn connection,
	tid target.ID,
	opts *PageOptions,
	logger *log.Logger,
) (*Page, error) {
	if opts == nil {
		opts = NewPageOptions()
	}
	p := Page{
		BaseEventEmitter: NewBaseEventEmitter(ctx),
		ctx:              ctx,
		session:          s,
		conn:             conn,
		targetID:         tid,
		opts:             opts,
		timeoutSettings:  NewTimeoutSettings(nil),
		emulatedViewport: opts.Viewport,
		extraHeaders:     opts.ExtraHTTPHeaders,
		frameSessions:    make(map[cdp.FrameID]*FrameSession),
		bindings:         make(map[string]ExposedFunc),
		Keyboard:         NewKeyboard(ctx, s),
		logger:           logger,
	}

	p.logger.Debugf("Page:NewPage", "sid:%v tid:%v", p.sessionID(), tid)

	var err error
	p.frameManager = NewFrameManager(ctx, s, &p, p.timeoutSettings, p.logger)
	p.mainFrameSession, err = NewFrameSession(ctx, s, &p, nil, tid, p.logger)
	if err != nil {
		p.logger.Debugf("Page:NewPage:NewFrameSession:return", "sid:%v tid:%v err:%v",
			p.sessionID(), tid, err)
		return nil, err
	}
	p.frameSessionsMu.Lock()
	p.frameSessions[cdp.FrameID(tid)] = p.mainFrameSession
	p.frameSessionsMu.Unlock()
	p.Mouse = NewMouse(ctx, s, p.frameManager.MainFrame(), p.timeoutSettings, p.Keyboard)

	go func() {
		select {
		case <-p.session.Done():
			p.didClose()
		case <-p.ctx.Done():
		}
	}()

	return &p, nil
}

func (p *Page) sessionID() (sid target.SessionID) {
	if p.session != nil {
		sid = p.session.ID()
	}
	return sid
}

func (p *Page) defaultTimeout() time.Duration {
	return p.timeoutSettings.timeout()
}

func (p *Page) didClose() {
	p.logger.Debugf("Page:didClose", "sid:%v", p.sessionID())

	p.closedMu.Lock()
	{
		p.closed = true
	}
	p.closedMu.Unlock()

	// Pending navigations can never settle on a closed page.
	for _, frame := range p.frameManager.Frames() {
		frame.settlePendingNavigation(false)
	}

	p.emit(EventPageClose, p)
}

func (p *Page) didCrash() {
	p.logger.Debugf("Page:didCrash", "sid:%v", p.sessionID())

	p.emit(EventPageCrash, p)
}

func (p *Page) attachFrameSession(fid cdp.FrameID, fs *FrameSession) {
	p.logger.Debugf("Page:attachFrameSession", "sid:%v fid=%v", p.sessionID(), fid)
	p.frameSessionsMu.Lock()
	defer p.frameSessionsMu.Unlock()
	p.frameSessions[fid] = fs
}

func (p *Page) getFrameSession(frameID cdp.FrameID) *FrameSession {
	p.frameSessionsMu.RLock()
	defer p.frameSessionsMu.RUnlock()
	return p.frameSessions[frameID]
}

func (p *Page) hasRoutes() bool {
	p.routeMu.RLock()
	defer p.routeMu.RUnlock()
	return p.route != nil
}

func (p *Page) routeForURL(url string) (RouteHandler, bool) {
	p.routeMu.RLock()
	defer p.routeMu.RUnlock()
	if p.route == nil {
		return nil, false
	}
	return p.route, true
}

func (p *Page) extraHTTPHeaders() map[string]string {
	p.extraHeadersMu.RLock()
	defer p.extraHeadersMu.RUnlock()
	headers := make(map[string]string, len(p.extraHeaders))
	for k, v := range p.extraHeaders {
		headers[k] = v
	}
	return headers
}

func (p *Page) viewport() Viewport {
	p.viewportMu.RLock()
	defer p.viewportMu.RUnlock()
	if p.emulatedViewport == nil {
		return Viewport{}
	}
	return *p.emulatedViewport
}

// initFrameSessionScripts reinstalls every exposed function on a new frame
// session. Cross-process navigations swap the session under the page, so
// without this the page's bindings would silently vanish after such a
// navigation.
func (p *Page) initFrameSessionScripts(fs *FrameSession) error {
	p.bindingsMu.RLock()
	names := make([]string, 0, len(p.bindings))
	for name := range p.bindings {
		names = append(names, name)
	}
	p.bindingsMu.RUnlock()

	for _, name := range names {
		if err := p.installBinding(fs, name); err != nil {
			return err
		}
	}
	return nil
}

// installBinding registers the CDP binding on the frame session and arranges
// the wrapper stub to be installed in every new document.
func (p *Page) installBinding(fs *FrameSession, name string) error {
	add := cdpruntime.AddBinding(name)
	if err := add.Do(cdp.WithExecutor(p.ctx, fs.session)); err != nil {
		return fmt.Errorf("adding binding %q: %w", name, err)
	}
	source := fmt.Sprintf("(%s)(%q)", bindingWrapScript, name)
	action := cdppage.AddScriptToEvaluateOnNewDocument(source)
	if _, err := action.Do(cdp.WithExecutor(p.ctx, fs.session)); err != nil {
		return fmt.Errorf("installing binding stub for %q: %w", name, err)
	}
	return nil
}

// onBindingCalled dispatches a single exposed function call coming from page
// script. Unknown binding names are not an error: other components may own
// bindings of their own on the same target.
func (p *Page) onBindingCalled(name string, payload string, ec *ExecutionContext) error {
	var call bindingCall
	if err := json.Unmarshal([]byte(payload), &call); err != nil {
		return fmt.Errorf("decoding binding call payload of %q: %w", name, err)
	}

	p.bindingsMu.RLock()
	fn, ok := p.bindings[call.Name]
	p.bindingsMu.RUnlock()
	if !ok {
		return nil
	}

	// Run the function on its own goroutine. It may issue evaluations
	// through the same session, which would deadlock the event pump if the
	// call ran inline.
	go func() {
		if err := dispatchBindingCall(p.ctx, ec, fn, call); err != nil {
			p.logger.Errorf("Page:onBindingCalled",
				"sid:%v name:%q seq:%d err:%v", p.sessionID(), call.Name, call.Seq, err)
		}
	}()
	return nil
}

// ExposeFunction makes fn callable from page script as window[name]. Calls
// return a promise that settles with fn's result. The function survives
// navigations: the stub is reinstalled in every new document before page
// script runs.
func (p *Page) ExposeFunction(name string, fn ExposedFunc) error {
	p.logger.Debugf("Page:ExposeFunction", "sid:%v name:%q", p.sessionID(), name)

	if name == "" {
		return fmt.Errorf("exposed function name cannot be empty")
	}
	if fn == nil {
		return fmt.Errorf("exposed function %q cannot be nil", name)
	}

	p.bindingsMu.Lock()
	if _, ok := p.bindings[name]; ok {
		p.bindingsMu.Unlock()
		return fmt.Errorf("function %q was already exposed", name)
	}
	p.bindings[name] = fn
	p.bindingsMu.Unlock()

	p.frameSessionsMu.RLock()
	sessions := make([]*FrameSession, 0, len(p.frameSessions))
	for _, fs := range p.frameSessions {
		sessions = append(sessions, fs)
	}
	p.frameSessionsMu.RUnlock()

	for _, fs := range sessions {
		if err := p.installBinding(fs, name); err != nil {
			return err
		}
	}

	// Install the stub in documents that are already loaded. A frame with
	// no main-world context yet gets the stub from the new-document script
	// instead.
	install := fmt.Sprintf("(%s)(%q)", bindingWrapScript, name)
	for _, frame := range p.frameManager.Frames() {
		if !frame.hasMainExecutionContext() {
			continue
		}
		if err := frame.EvaluateGlobal(p.ctx, install); err != nil {
			p.logger.Debugf("Page:ExposeFunction",
				"sid:%v fid:%v name:%q install skipped: %v",
				p.sessionID(), frame.ID(), name, err)
		}
	}
	return nil
}

// Route sets the page's request interceptor. While set, every outbound
// request pauses until the interceptor disposes of it with Continue, Abort
// or Fulfill. A nil interceptor disables interception for later requests;
// requests already paused stay governed by the interceptor that caught
// them.
func (p *Page) Route(handler RouteHandler) error {
	p.logger.Debugf("Page:Route", "sid:%v enabled:%t", p.sessionID(), handler != nil)

	p.routeMu.Lock()
	p.route = handler
	p.routeMu.Unlock()

	p.frameSessionsMu.RLock()
	defer p.frameSessionsMu.RUnlock()
	for _, fs := range p.frameSessions {
		if err := fs.updateRequestInterception(handler != nil); err != nil {
			return fmt.Errorf("updating request interception: %w", err)
		}
	}
	return nil
}

// Goto navigates the page's main frame to the given URL and waits for the
// document to settle. See FrameManager.NavigateFrame for the settle
// semantics.
func (p *Page) Goto(url string, opts *FrameGotoOptions) (bool, error) {
	p.logger.Debugf("Page:Goto", "sid:%v url:%q", p.sessionID(), url)

	return p.frameManager.NavigateFrame(p.ctx, p.MainFrame(), url, opts)
}

// Reload reloads the current document and waits for it to settle the same
// way Goto does.
func (p *Page) Reload(opts *PageReloadOptions) (bool, error) {
	p.logger.Debugf("Page:Reload", "sid:%v", p.sessionID())

	return p.frameManager.ReloadFrame(p.ctx, p.MainFrame(), opts)
}

// WaitForNavigation waits for the main frame's pending navigation to settle.
func (p *Page) WaitForNavigation() (bool, error) {
	return p.frameManager.WaitForFrameNavigation(p.MainFrame())
}

// Evaluate runs the page function in the main frame's main world and returns
// its result by value. Promises are awaited.
func (p *Page) Evaluate(pageFunc string, args ...any) (any, error) {
	return p.MainFrame().Evaluate(p.ctx, pageFunc, args...)
}

// EvaluateHandle runs the page function in the main frame's main world and
// returns a handle to its result.
func (p *Page) EvaluateHandle(pageFunc string, args ...any) (JSHandle, error) {
	return p.MainFrame().EvaluateHandle(p.ctx, pageFunc, args...)
}

// Content returns the HTML content of the main frame.
func (p *Page) Content() (string, error) {
	return p.MainFrame().Content(p.ctx)
}

// Title returns the main frame's document title.
func (p *Page) Title() (string, error) {
	return p.MainFrame().Title(p.ctx)
}

// URL returns the main frame's URL.
func (p *Page) URL() string {
	return p.MainFrame().URL()
}

// MainFrame returns the main frame of the page.
func (p *Page) MainFrame() *Frame {
	return p.frameManager.MainFrame()
}

// Frames returns all frames of the page.
func (p *Page) Frames() []*Frame {
	return p.frameManager.Frames()
}

// Click resolves the selector's first match, scrolls it into view and clicks
// the center of its bounding box.
func (p *Page) Click(selector string, opts *MouseClickOptions) error {
	p.logger.Debugf("Page:Click", "sid:%v selector:%q", p.sessionID(), selector)

	x, y, err := p.elementCenter(selector)
	if err != nil {
		return fmt.Errorf("clicking %q: %w", selector, err)
	}

	// A click may start a navigation. Hold the call open until a triggered
	// navigation has started, so that callers observe the new document.
	barrier := NewBarrier()
	p.frameManager.addBarrier(barrier)
	defer p.frameManager.removeBarrier(barrier)
	if err := p.Mouse.Click(x, y, opts); err != nil {
		return fmt.Errorf("clicking %q: %w", selector, err)
	}
	return barrier.Wait(p.ctx)
}

// Focus focuses the selector's first match.
func (p *Page) Focus(selector string) error {
	p.logger.Debugf("Page:Focus", "sid:%v selector:%q", p.sessionID(), selector)

	result, err := p.Evaluate(`selector => {
		const element = document.querySelector(selector);
		if (!element) {
			return false;
		}
		element.focus();
		return true;
	}`, selector)
	if err != nil {
		return fmt.Errorf("focusing %q: %w", selector, err)
	}
	if found, ok := result.(bool); !ok || !found {
		return fmt.Errorf("focusing %q: no element matches selector", selector)
	}
	return nil
}

// Type dispatches a key press for every character of text against the
// currently focused element.
func (p *Page) Type(text string, opts KeyboardOptions) error {
	p.logger.Debugf("Page:Type", "sid:%v", p.sessionID())

	return p.Keyboard.Type(text, opts)
}

// Press presses a single key or key chord (e.g. "Control+a") against the
// currently focused element.
func (p *Page) Press(key string, opts KeyboardOptions) error {
	p.logger.Debugf("Page:Press", "sid:%v key:%q", p.sessionID(), key)

	return p.Keyboard.Press(key, opts)
}

func (p *Page) elementCenter(selector string) (float64, float64, error) {
	result, err := p.Evaluate(`selector => {
		const element = document.querySelector(selector);
		if (!element) {
			return null;
		}
		element.scrollIntoViewIfNeeded ? element.scrollIntoViewIfNeeded() : element.scrollIntoView();
		const rect = element.getBoundingClientRect();
		return { x: rect.left + rect.width / 2, y: rect.top + rect.height / 2 };
	}`, selector)
	if err != nil {
		return 0, 0, err
	}
	point, ok := result.(map[string]any)
	if !ok {
		return 0, 0, fmt.Errorf("no element matches selector")
	}
	x, _ := point["x"].(float64)
	y, _ := point["y"].(float64)
	return x, y, nil
}

// Screenshot captures a screenshot per the options: the current viewport by
// default, an arbitrary clip in page coordinates, or the full page.
func (p *Page) Screenshot(opts *PageScreenshotOptions) ([]byte, error) {
	p.logger.Debugf("Page:Screenshot", "sid:%v", p.sessionID())

	if opts == nil {
		opts = NewPageScreenshotOptions()
	}
	return newScreenshotter(p.ctx).screenshotPage(p, opts)
}

// SetViewportSize changes the emulated viewport.
func (p *Page) SetViewportSize(viewport *Viewport) error {
	p.logger.Debugf("Page:SetViewportSize", "sid:%v vp:%v", p.sessionID(), viewport)

	p.viewportMu.Lock()
	p.emulatedViewport = viewport
	p.viewportMu.Unlock()

	return p.mainFrameSession.updateViewport()
}

// SetExtraHTTPHeaders sets headers sent with every request of the page.
func (p *Page) SetExtraHTTPHeaders(headers map[string]string) error {
	p.logger.Debugf("Page:SetExtraHTTPHeaders", "sid:%v", p.sessionID())

	p.extraHeadersMu.Lock()
	p.extraHeaders = headers
	p.extraHeadersMu.Unlock()

	p.frameSessionsMu.RLock()
	defer p.frameSessionsMu.RUnlock()
	for _, fs := range p.frameSessions {
		if err := fs.updateExtraHTTPHeaders(false); err != nil {
			return err
		}
	}
	return nil
}

// Authenticate sets the credentials used to answer HTTP authentication
// challenges.
func (p *Page) Authenticate(credentials Credentials) error {
	p.logger.Debugf("Page:Authenticate", "sid:%v", p.sessionID())

	p.opts.HTTPCredentials = credentials

	p.frameSessionsMu.RLock()
	defer p.frameSessionsMu.RUnlock()
	for _, fs := range p.frameSessions {
		if err := fs.updateHTTPCredentials(false); err != nil {
			return err
		}
	}
	return nil
}

// SetOfflineMode toggles emulated network loss.
func (p *Page) SetOfflineMode(offline bool) error {
	p.logger.Debugf("Page:SetOfflineMode", "sid:%v offline:%t", p.sessionID(), offline)

	p.opts.Offline = offline

	p.frameSessionsMu.RLock()
	defer p.frameSessionsMu.RUnlock()
	for _, fs := range p.frameSessions {
		if err := fs.updateOffline(false); err != nil {
			return err
		}
	}
	return nil
}

// ThrottleNetwork emulates the given network conditions on every session of
// the page.
func (p *Page) ThrottleNetwork(profile NetworkProfile) error {
	p.logger.Debugf("Page:ThrottleNetwork", "sid:%v", p.sessionID())

	p.frameSessionsMu.RLock()
	defer p.frameSessionsMu.RUnlock()
	for _, fs := range p.frameSessions {
		if err := fs.networkManager.ThrottleNetwork(profile); err != nil {
			return err
		}
	}
	return nil
}

// SetCacheEnabled toggles the browser cache.
func (p *Page) SetCacheEnabled(enabled bool) error {
	p.logger.Debugf("Page:SetCacheEnabled", "sid:%v enabled:%t", p.sessionID(), enabled)

	p.frameSessionsMu.RLock()
	defer p.frameSessionsMu.RUnlock()
	for _, fs := range p.frameSessions {
		if err := fs.networkManager.SetCacheEnabled(enabled); err != nil {
			return err
		}
	}
	return nil
}

// networkManagerForFrame returns the network manager of the session driving
// the frame, falling back to the main frame session's.
func (p *Page) networkManagerForFrame(frameID cdp.FrameID) *NetworkManager {
	fs := p.getFrameSession(frameID)
	if fs == nil {
		fs = p.mainFrameSession
	}
	return fs.networkManager
}

// SetDefaultTimeout changes the default timeout of page operations.
func (p *Page) SetDefaultTimeout(timeout time.Duration) {
	p.timeoutSettings.setDefaultTimeout(timeout)
}

// SetDefaultNavigationTimeout changes the default navigation timeout.
func (p *Page) SetDefaultNavigationTimeout(timeout time.Duration) {
	p.timeoutSettings.setDefaultNavigationTimeout(timeout)
}

// On subscribes ch to the named page events for as long as ctx lives.
// Events are delivered in the order the underlying protocol events were
// observed, one FIFO queue per subscriber.
func (p *Page) On(ctx context.Context, events []string, ch chan Event) {
	p.on(ctx, events, ch)
}

// IsClosed reports whether the page target has closed.
func (p *Page) IsClosed() bool {
	p.closedMu.RLock()
	defer p.closedMu.RUnlock()
	return p.closed
}

// Close closes the page target. Pending navigations settle false and a
// close event is emitted.
func (p *Page) Close() error {
	p.logger.Debugf("Page:Close", "sid:%v", p.sessionID())

	action := cdppage.Close()
	if err := action.Do(cdp.WithExecutor(p.ctx, p.session)); err != nil {
		return fmt.Errorf("closing page: %w", err)
	}
	p.didClose()
	return nil
}

// TargetID returns the CDP target ID of the page.
func (p *Page) TargetID() target.ID {
	return p.targetID
}
