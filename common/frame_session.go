package common

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/zoltan-boros/puppeteer/log"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/inspector"
	cdplog "github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/security"
	"github.com/chromedp/cdproto/target"
	"golang.org/x/net/context"
)

const utilityWorldName = "__puppeteer_utility_world__"

// FrameSession is used to manage a frame's life-cycle, or the life-cycle of
// the browser page if the frame is the main frame.
//
// Every out-of-process target (the page itself, OOPIF iframes) gets its own
// FrameSession, and with it its own event pump and network manager. All
// sessions funnel their frame events into the one shared FrameManager.
type FrameSession struct {
	ctx            context.Context
	session        session
	page           *Page
	parent         *FrameSession
	manager        *FrameManager
	networkManager *NetworkManager

	targetID target.ID

	// To understand the concepts of Isolated Worlds, Contexts and Frames and
	// the relationship betwween them have a look at the following doc:
	// https://chromium.googlesource.com/chromium/src/+/master/third_party/blink/renderer/bindings/core/v8/V8BindingDesign.md
	contextIDToContextMu sync.Mutex
	contextIDToContext   map[cdpruntime.ExecutionContextID]*ExecutionContext
	isolatedWorlds       map[string]bool

	eventCh chan Event

	childSessionsMu sync.RWMutex
	childSessions   map[cdp.FrameID]*FrameSession

	logger *log.Logger
}

// NewFrameSession creates a new frame session for a frame or page target.
func NewFrameSession(
	ctx context.Context, s session, p *Page, parent *FrameSession, tid target.ID, l *log.Logger,
) (_ *FrameSession, err error) {
	l.Debugf("NewFrameSession", "sid:%v tid:%v", s.ID(), tid)

	fs := FrameSession{
		ctx:                ctx,
		session:            s,
		page:               p,
		parent:             parent,
		manager:            p.frameManager,
		targetID:           tid,
		contextIDToContext: make(map[cdpruntime.ExecutionContextID]*ExecutionContext),
		isolatedWorlds:     make(map[string]bool),
		eventCh:            make(chan Event),
		childSessions:      make(map[cdp.FrameID]*FrameSession),
		logger:             l,
	}

	if err := cdpruntime.RunIfWaitingForDebugger().Do(cdp.WithExecutor(fs.ctx, fs.session)); err != nil {
		return nil, fmt.Errorf("run if waiting for debugger to attach: %w", err)
	}

	var parentNM *NetworkManager
	if fs.parent != nil {
		parentNM = fs.parent.networkManager
	}
	fs.networkManager, err = NewNetworkManager(ctx, l, s, fs.manager, parentNM)
	if err != nil {
		l.Debugf("NewFrameSession:NewNetworkManager", "sid:%v tid:%v err:%v", s.ID(), tid, err)
		return nil, err
	}

	fs.initEvents()
	if err = fs.initFrameTree(); err != nil {
		l.Debugf("NewFrameSession:initFrameTree", "sid:%v tid:%v err:%v", s.ID(), tid, err)
		return nil, err
	}
	if err = fs.initIsolatedWorld(utilityWorldName); err != nil {
		l.Debugf("NewFrameSession:initIsolatedWorld", "sid:%v tid:%v err:%v", s.ID(), tid, err)
		return nil, err
	}
	if err = fs.initOptions(); err != nil {
		l.Debugf("NewFrameSession:initOptions", "sid:%v tid:%v err:%v", s.ID(), tid, err)
		return nil, err
	}
	if err = fs.initDomains(); err != nil {
		l.Debugf("NewFrameSession:initDomains", "sid:%v tid:%v err:%v", s.ID(), tid, err)
		return nil, err
	}

	return &fs, nil
}

func (fs *FrameSession) getNetworkManager() *NetworkManager {
	return fs.networkManager
}

func (fs *FrameSession) initDomains() error {
	actions := []Action{
		dom.Enable(),
		cdplog.Enable(),
		cdpruntime.Enable(),
		target.SetAutoAttach(true, true).WithFlatten(true),
	}
	for _, action := range actions {
		if err := action.Do(cdp.WithExecutor(fs.ctx, fs.session)); err != nil {
			return fmt.Errorf("enabling %T: %w", action, err)
		}
	}
	return nil
}

func (fs *FrameSession) initEvents() {
	fs.logger.Debugf("NewFrameSession:initEvents",
		"sid:%v tid:%v", fs.session.ID(), fs.targetID)

	events := []string{
		cdproto.EventInspectorTargetCrashed,
	}
	fs.session.on(fs.ctx, events, fs.eventCh)
	if !fs.isMainFrame() {
		fs.initRendererEvents()
	}

	go func() {
		fs.logger.Debugf("NewFrameSession:initEvents:go",
			"sid:%v tid:%v", fs.session.ID(), fs.targetID)
		defer fs.logger.Debugf("NewFrameSession:initEvents:go:return",
			"sid:%v tid:%v", fs.session.ID(), fs.targetID)

		for {
			select {
			case <-fs.session.Done():
				fs.logger.Debugf("FrameSession:initEvents:go:session.done",
					"sid:%v tid:%v", fs.session.ID(), fs.targetID)
				return
			case <-fs.ctx.Done():
				fs.logger.Debugf("FrameSession:initEvents:go:ctx.Done",
					"sid:%v tid:%v", fs.session.ID(), fs.targetID)
				return
			case event := <-fs.eventCh:
				switch ev := event.data.(type) {
				case *inspector.EventTargetCrashed:
					fs.onTargetCrashed()
				case *cdplog.EventEntryAdded:
					fs.onLogEntryAdded(ev)
				case *cdppage.EventFrameAttached:
					fs.onFrameAttached(ev.FrameID, ev.ParentFrameID)
				case *cdppage.EventFrameDetached:
					fs.onFrameDetached(ev.FrameID, ev.Reason)
				case *cdppage.EventFrameNavigated:
					const initial = false
					fs.onFrameNavigated(ev.Frame, initial)
				case *cdppage.EventFrameRequestedNavigation:
					fs.onFrameRequestedNavigation(ev)
				case *cdppage.EventFrameStartedLoading:
					fs.onFrameStartedLoading(ev.FrameID)
				case *cdppage.EventFrameStoppedLoading:
					fs.onFrameStoppedLoading(ev.FrameID)
				case *cdppage.EventLifecycleEvent:
					fs.onPageLifecycle(ev)
				case *cdppage.EventNavigatedWithinDocument:
					fs.onPageNavigatedWithinDocument(ev)
				case *cdpruntime.EventConsoleAPICalled:
					fs.onConsoleAPICalled(ev)
				case *cdpruntime.EventExceptionThrown:
					fs.onExceptionThrown(ev)
				case *cdpruntime.EventExecutionContextCreated:
					fs.onExecutionContextCreated(ev)
				case *cdpruntime.EventExecutionContextDestroyed:
					fs.onExecutionContextDestroyed(ev.ExecutionContextID)
				case *cdpruntime.EventExecutionContextsCleared:
					fs.onExecutionContextsCleared()
				case *target.EventAttachedToTarget:
					fs.onAttachedToTarget(ev)
				case *target.EventDetachedFromTarget:
					fs.onDetachedFromTarget(ev)
				case *cdppage.EventJavascriptDialogOpening:
					fs.onEventJavascriptDialogOpening(ev)
				case *cdpruntime.EventBindingCalled:
					fs.onEventBindingCalled(ev)
				}
			}
		}
	}()
}

func (fs *FrameSession) initFrameTree() error {
	fs.logger.Debugf("NewFrameSession:initFrameTree",
		"sid:%v tid:%v", fs.session.ID(), fs.targetID)

	action := cdppage.Enable()
	if err := action.Do(cdp.WithExecutor(fs.ctx, fs.session)); err != nil {
		return fmt.Errorf("enabling page domain: %w", err)
	}

	// Recursively enumerate all existing frames in the page to build the
	// initial in-memory frame tree.
	frameTree, err := cdppage.GetFrameTree().Do(cdp.WithExecutor(fs.ctx, fs.session))
	if err != nil {
		return fmt.Errorf("getting page frame tree: %w", err)
	}
	if frameTree == nil {
		return fmt.Errorf("got a nil page frame tree")
	}

	fs.handleFrameTree(frameTree, fs.isMainFrame())

	if fs.isMainFrame() {
		fs.initRendererEvents()
	}
	return nil
}

func (fs *FrameSession) initIsolatedWorld(name string) error {
	fs.logger.Debugf("NewFrameSession:initIsolatedWorld",
		"sid:%v tid:%v", fs.session.ID(), fs.targetID)

	action := cdppage.SetLifecycleEventsEnabled(true)
	if err := action.Do(cdp.WithExecutor(fs.ctx, fs.session)); err != nil {
		return fmt.Errorf("enabling page lifecycle events: %w", err)
	}

	if _, ok := fs.isolatedWorlds[name]; ok {
		return nil
	}
	fs.isolatedWorlds[name] = true

	var frames []*Frame
	if fs.isMainFrame() {
		frames = fs.manager.Frames()
	} else if frame := fs.manager.getFrameByID(cdp.FrameID(fs.targetID)); frame != nil {
		frames = []*Frame{frame}
	}
	for _, frame := range frames {
		// A frame could have been removed before we execute this, so don't wait around for a reply.
		_ = fs.session.ExecuteWithoutExpectationOnReply(
			fs.ctx,
			cdppage.CommandCreateIsolatedWorld,
			&cdppage.CreateIsolatedWorldParams{
				FrameID:             cdp.FrameID(frame.ID()),
				WorldName:           name,
				GrantUniveralAccess: true,
			},
			nil)
	}

	action2 := cdppage.AddScriptToEvaluateOnNewDocument(`//# sourceURL=` + evaluationScriptURL).
		WithWorldName(name)
	if _, err := action2.Do(cdp.WithExecutor(fs.ctx, fs.session)); err != nil {
		return fmt.Errorf("adding script to evaluate on new document: %w", err)
	}
	return nil
}

func (fs *FrameSession) initOptions() error {
	fs.logger.Debugf("NewFrameSession:initOptions",
		"sid:%v tid:%v", fs.session.ID(), fs.targetID)

	var (
		opts       = fs.page.opts
		optActions = []Action{}
	)

	if fs.isMainFrame() {
		optActions = append(optActions, emulation.SetFocusEmulationEnabled(true))
		if err := fs.updateViewport(); err != nil {
			return err
		}
		// Reinstall the page's scripts and bindings for this session, so
		// exposed functions survive cross-process navigations.
		if err := fs.page.initFrameSessionScripts(fs); err != nil {
			return err
		}
	}
	if opts.BypassCSP {
		optActions = append(optActions, cdppage.SetBypassCSP(true))
	}
	if opts.IgnoreHTTPSErrors {
		optActions = append(optActions, security.SetIgnoreCertificateErrors(true))
	}
	if opts.UserAgent != "" {
		optActions = append(optActions, emulation.SetUserAgentOverride(opts.UserAgent))
	}
	if err := fs.updateExtraHTTPHeaders(true); err != nil {
		return err
	}
	if err := fs.updateRequestInterception(fs.page.hasRoutes()); err != nil {
		return err
	}
	if err := fs.updateOffline(true); err != nil {
		return err
	}
	if err := fs.updateHTTPCredentials(true); err != nil {
		return err
	}

	for _, action := range optActions {
		if err := action.Do(cdp.WithExecutor(fs.ctx, fs.session)); err != nil {
			return fmt.Errorf("initializing frame %T: %w", action, err)
		}
	}

	return nil
}

func (fs *FrameSession) initRendererEvents() {
	fs.logger.Debugf("NewFrameSession:initEvents:initRendererEvents",
		"sid:%v tid:%v", fs.session.ID(), fs.targetID)

	events := []string{
		cdproto.EventLogEntryAdded,
		cdproto.EventPageFrameAttached,
		cdproto.EventPageFrameDetached,
		cdproto.EventPageFrameNavigated,
		cdproto.EventPageFrameRequestedNavigation,
		cdproto.EventPageFrameStartedLoading,
		cdproto.EventPageFrameStoppedLoading,
		cdproto.EventPageJavascriptDialogOpening,
		cdproto.EventPageLifecycleEvent,
		cdproto.EventPageNavigatedWithinDocument,
		cdproto.EventRuntimeConsoleAPICalled,
		cdproto.EventRuntimeExceptionThrown,
		cdproto.EventRuntimeExecutionContextCreated,
		cdproto.EventRuntimeExecutionContextDestroyed,
		cdproto.EventRuntimeExecutionContextsCleared,
		cdproto.EventTargetAttachedToTarget,
		cdproto.EventTargetDetachedFromTarget,
		cdproto.EventRuntimeBindingCalled,
	}
	fs.session.on(fs.ctx, events, fs.eventCh)
}

func (fs *FrameSession) isMainFrame() bool {
	return fs.targetID == fs.page.targetID
}

func (fs *FrameSession) handleFrameTree(frameTree *cdppage.FrameTree, initialFrame bool) {
	fs.logger.Debugf("FrameSession:handleFrameTree",
		"fid:%v sid:%v tid:%v", frameTree.Frame.ID, fs.session.ID(), fs.targetID)

	if frameTree.Frame.ParentID != "" {
		fs.onFrameAttached(frameTree.Frame.ID, frameTree.Frame.ParentID)
	}
	fs.onFrameNavigated(frameTree.Frame, initialFrame)
	for _, child := range frameTree.ChildFrames {
		fs.handleFrameTree(child, initialFrame)
	}
}

// navigateFrame issues the navigate command for the frame. It returns the
// loader ID of the new document, or an empty loader ID for same-document
// navigations. A non-empty errorText means the browser could not reach the
// target; it is not a protocol error.
func (fs *FrameSession) navigateFrame(frame *Frame, url, referrer string) (string, string, error) {
	fs.logger.Debugf("FrameSession:navigateFrame",
		"sid:%v fid:%s tid:%v url:%q referrer:%q",
		fs.session.ID(), frame.ID(), fs.targetID, url, referrer)

	action := cdppage.Navigate(url).WithReferrer(referrer).WithFrameID(frame.id)
	_, documentID, errorText, err := action.Do(cdp.WithExecutor(fs.ctx, fs.session))
	if err != nil {
		return "", "", fmt.Errorf("navigating to %q: %w", url, err)
	}
	return documentID.String(), errorText, nil
}

func (fs *FrameSession) onConsoleAPICalled(event *cdpruntime.EventConsoleAPICalled) {
	l := fs.logger.Entry("console").
		WithTime(event.Timestamp.Time()).
		WithField("source", "browser").
		WithField("browser_source", "console-api")

	parts := make([]string, 0, len(event.Args))
	handles := make([]JSHandle, 0, len(event.Args))
	for _, robj := range event.Args {
		i, err := parseConsoleRemoteObject(fs.logger, robj)
		if err != nil {
			fs.logger.Errorf("FrameSession:onConsoleAPICalled", "parsing console message: %v", err)
		}
		parts = append(parts, i)
		if ec := fs.executionContextForID(event.ExecutionContextID); ec != nil && robj.ObjectID != "" {
			handles = append(handles, NewJSHandle(fs.ctx, fs.session, ec, ec.Frame(), robj, fs.logger))
		}
	}

	text := strings.Join(parts, " ")

	switch event.Type.String() {
	case "log", "info":
		l.Info(text)
	case "warning":
		l.Warn(text)
	case "error":
		l.Error(text)
	default:
		l.Debug(text)
	}

	fs.page.emit(EventPageConsole, &ConsoleMessage{
		Args: handles,
		Page: fs.page,
		Text: text,
		Type: event.Type.String(),
	})
}

func (fs *FrameSession) onExceptionThrown(event *cdpruntime.EventExceptionThrown) {
	fs.page.emit(EventPageError, event.ExceptionDetails)
}

func (fs *FrameSession) onExecutionContextCreated(event *cdpruntime.EventExecutionContextCreated) {
	fs.logger.Debugf("FrameSession:onExecutionContextCreated",
		"sid:%v tid:%v ectxid:%d",
		fs.session.ID(), fs.targetID, event.Context.ID)

	auxData := event.Context.AuxData
	var i struct {
		FrameID   cdp.FrameID `json:"frameId"`
		IsDefault bool        `json:"isDefault"`
		Type      string      `json:"type"`
	}
	if err := json.Unmarshal(auxData, &i); err != nil {
		fs.logger.Errorf("FrameSession:onExecutionContextCreated",
			"unmarshaling executionContextCreated event JSON: %v", err)
		return
	}

	frame := fs.manager.getFrameByID(i.FrameID)
	if frame == nil {
		fs.logger.Debugf("FrameSession:onExecutionContextCreated:return",
			"sid:%v tid:%v ectxid:%d missing frame",
			fs.session.ID(), fs.targetID, event.Context.ID)
		return
	}

	var world executionWorld
	if i.IsDefault {
		world = mainWorld
	} else if event.Context.Name == utilityWorldName && !frame.hasContext(utilityWorld) {
		// In case of multiple sessions to the same target, there's a race
		// between connections so we might end up creating multiple isolated
		// worlds. We can use either.
		world = utilityWorld
	}

	if i.Type == "isolated" {
		fs.isolatedWorlds[event.Context.Name] = true
	}
	context := NewExecutionContext(fs.ctx, fs.session, frame, event.Context.ID, fs.logger)
	if world != "" {
		frame.setContext(world, context)
	}
	fs.contextIDToContextMu.Lock()
	fs.contextIDToContext[event.Context.ID] = context
	fs.contextIDToContextMu.Unlock()
}

func (fs *FrameSession) onExecutionContextDestroyed(execCtxID cdpruntime.ExecutionContextID) {
	fs.logger.Debugf("FrameSession:onExecutionContextDestroyed",
		"sid:%v tid:%v ectxid:%d",
		fs.session.ID(), fs.targetID, execCtxID)

	fs.contextIDToContextMu.Lock()
	defer fs.contextIDToContextMu.Unlock()
	context, ok := fs.contextIDToContext[execCtxID]
	if !ok {
		return
	}
	if context.Frame() != nil {
		context.Frame().nullContext(execCtxID)
	}
	delete(fs.contextIDToContext, execCtxID)
}

func (fs *FrameSession) onExecutionContextsCleared() {
	fs.logger.Debugf("FrameSession:onExecutionContextsCleared",
		"sid:%v tid:%v", fs.session.ID(), fs.targetID)

	fs.contextIDToContextMu.Lock()
	defer fs.contextIDToContextMu.Unlock()

	for _, context := range fs.contextIDToContext {
		if context.Frame() != nil {
			context.Frame().nullContext(context.id)
		}
	}
	for k := range fs.contextIDToContext {
		delete(fs.contextIDToContext, k)
	}
}

func (fs *FrameSession) onEventBindingCalled(event *cdpruntime.EventBindingCalled) {
	fs.logger.Debugf("FrameSession:onEventBindingCalled",
		"sid:%v tid:%v name:%s", fs.session.ID(), fs.targetID, event.Name)

	ec := fs.executionContextForID(event.ExecutionContextID)
	if ec == nil {
		return
	}
	if err := fs.page.onBindingCalled(event.Name, event.Payload, ec); err != nil {
		fs.logger.Errorf("FrameSession:onEventBindingCalled",
			"dispatching %q: %v", event.Name, err)
	}
}

func (fs *FrameSession) onEventJavascriptDialogOpening(event *cdppage.EventJavascriptDialogOpening) {
	fs.logger.Debugf("FrameSession:onEventJavascriptDialogOpening",
		"sid:%v tid:%v url:%v dialogType:%s",
		fs.session.ID(), fs.targetID, event.URL, event.Type)

	dialog := &Dialog{
		ctx:          fs.ctx,
		session:      fs.session,
		Type:         event.Type.String(),
		Message:      event.Message,
		DefaultValue: event.DefaultPrompt,
		URL:          event.URL,
	}

	// Page script is blocked until the dialog is handled. If nobody listens
	// for dialogs, handle it here so the page never wedges. Dialog type of
	// beforeunload needs to accept the dialog, instead of dismissing it.
	if fs.page.hasListeners(EventPageDialog) {
		fs.page.emit(EventPageDialog, dialog)
		return
	}
	if err := dialog.autoHandle(); err != nil {
		fs.logger.Errorf("FrameSession:onEventJavascriptDialogOpening",
			"failed to auto-handle dialog box: %v", err)
	}
}

func (fs *FrameSession) onFrameAttached(frameID cdp.FrameID, parentFrameID cdp.FrameID) {
	fs.logger.Debugf("FrameSession:onFrameAttached",
		"sid:%v tid:%v fid:%v pfid:%v",
		fs.session.ID(), fs.targetID, frameID, parentFrameID)

	fs.manager.frameAttached(frameID, parentFrameID)
}

func (fs *FrameSession) onFrameDetached(frameID cdp.FrameID, reason cdppage.FrameDetachedReason) {
	fs.logger.Debugf("FrameSession:onFrameDetached",
		"sid:%v tid:%v fid:%v reason:%s",
		fs.session.ID(), fs.targetID, frameID, reason)

	// A swap means the frame moved to a different session (OOPIF); the new
	// session re-announces it, so only a true removal detaches the subtree.
	if reason == cdppage.FrameDetachedReasonRemove {
		fs.manager.frameDetached(frameID)
	}
}

func (fs *FrameSession) onFrameNavigated(frame *cdp.Frame, initial bool) {
	fs.logger.Debugf("FrameSession:onFrameNavigated",
		"sid:%v tid:%v fid:%v",
		fs.session.ID(), fs.targetID, frame.ID)

	err := fs.manager.frameNavigated(
		frame.ID, frame.ParentID, frame.LoaderID.String(),
		frame.Name, frame.URL+frame.URLFragment, initial)
	if err != nil {
		fs.logger.Errorf("FrameSession:onFrameNavigated",
			"handling frameNavigated event to %q: %v", frame.URL+frame.URLFragment, err)
	}
}

func (fs *FrameSession) onFrameRequestedNavigation(event *cdppage.EventFrameRequestedNavigation) {
	fs.logger.Debugf("FrameSession:onFrameRequestedNavigation",
		"sid:%v tid:%v fid:%v url:%q",
		fs.session.ID(), fs.targetID, event.FrameID, event.URL)

	if event.Disposition == "currentTab" {
		err := fs.manager.frameRequestedNavigation(event.FrameID, event.URL, "")
		if err != nil {
			fs.logger.Errorf("FrameSession:onFrameRequestedNavigation",
				"handling frameRequestedNavigation event to %q: %v", event.URL, err)
		}
	}
}

func (fs *FrameSession) onFrameStartedLoading(frameID cdp.FrameID) {
	fs.logger.Debugf("FrameSession:onFrameStartedLoading",
		"sid:%v tid:%v fid:%v",
		fs.session.ID(), fs.targetID, frameID)

	fs.manager.frameLoadingStarted(frameID)
}

func (fs *FrameSession) onFrameStoppedLoading(frameID cdp.FrameID) {
	fs.logger.Debugf("FrameSession:onFrameStoppedLoading",
		"sid:%v tid:%v fid:%v",
		fs.session.ID(), fs.targetID, frameID)

	fs.manager.frameLoadingStopped(frameID)
}

func (fs *FrameSession) onLogEntryAdded(event *cdplog.EventEntryAdded) {
	l := fs.logger.Entry("browser").
		WithTime(event.Entry.Timestamp.Time()).
		WithField("source", "browser").
		WithField("url", event.Entry.URL).
		WithField("browser_source", event.Entry.Source.String()).
		WithField("line_number", event.Entry.LineNumber)
	switch event.Entry.Level {
	case "info":
		l.Info(event.Entry.Text)
	case "warning":
		l.Warn(event.Entry.Text)
	case "error":
		l.WithField("stacktrace", event.Entry.StackTrace).Error(event.Entry.Text)
	default:
		l.Debug(event.Entry.Text)
	}
}

func (fs *FrameSession) onPageLifecycle(event *cdppage.EventLifecycleEvent) {
	fs.logger.Debugf("FrameSession:onPageLifecycle",
		"sid:%v tid:%v fid:%v event:%s",
		fs.session.ID(), fs.targetID, event.FrameID, event.Name)

	if fs.manager.getFrameByID(event.FrameID) == nil {
		return
	}

	switch event.Name {
	case "load":
		fs.manager.frameLifecycleEvent(event.FrameID, LifecycleEventLoad)
	case "DOMContentLoaded":
		fs.manager.frameLifecycleEvent(event.FrameID, LifecycleEventDOMContentLoad)
	case "networkIdle":
		fs.manager.frameLifecycleEvent(event.FrameID, LifecycleEventNetworkIdle)
	}
}

func (fs *FrameSession) onPageNavigatedWithinDocument(event *cdppage.EventNavigatedWithinDocument) {
	fs.logger.Debugf("FrameSession:onPageNavigatedWithinDocument",
		"sid:%v tid:%v fid:%v",
		fs.session.ID(), fs.targetID, event.FrameID)

	fs.manager.frameNavigatedWithinDocument(event.FrameID, event.URL)
}

func (fs *FrameSession) onAttachedToTarget(event *target.EventAttachedToTarget) {
	var (
		ti  = event.TargetInfo
		sid = event.SessionID
	)

	fs.logger.Debugf("FrameSession:onAttachedToTarget",
		"sid:%v tid:%v esid:%v etid:%v type:%q",
		fs.session.ID(), fs.targetID, sid, ti.TargetID, ti.Type)

	sess := fs.page.conn.getSession(sid)
	if sess == nil {
		return
	}

	switch ti.Type {
	case "iframe":
		if err := fs.attachIFrameToTarget(ti, sess); err != nil {
			fs.logger.Debugf("FrameSession:onAttachedToTarget",
				"attaching iframe target %v: %v", ti.TargetID, err)
		}
	default:
		// Just unblock (debugger continue) these targets and detach from them.
		_ = sess.ExecuteWithoutExpectationOnReply(fs.ctx, cdpruntime.CommandRunIfWaitingForDebugger, nil, nil)
		_ = sess.ExecuteWithoutExpectationOnReply(fs.ctx, target.CommandDetachFromTarget,
			&target.DetachFromTargetParams{SessionID: sess.ID()}, nil)
	}
}

// attachIFrameToTarget attaches an out-of-process IFrame target to a given session.
func (fs *FrameSession) attachIFrameToTarget(ti *target.Info, sess *Session) error {
	fr := fs.manager.getFrameByID(cdp.FrameID(ti.TargetID))
	if fr == nil {
		// The iframe should have been attached to fs.page with an
		// EventFrameAttached event before.
		fs.logger.Debugf("FrameSession:attachIFrameToTarget:return",
			"sid:%v tid:%v etid:%v nil frame",
			fs.session.ID(), fs.targetID, ti.TargetID)
		return nil
	}
	// Remove all children of the previously attached frame.
	fs.manager.removeChildFramesRecursively(fr)

	nfs, err := NewFrameSession(fs.ctx, sess, fs.page, fs, ti.TargetID, fs.logger)
	if err != nil {
		return fmt.Errorf("attaching iframe target ID %v to session ID %v: %w",
			ti.TargetID, sess.ID(), err)
	}
	fs.childSessionsMu.Lock()
	fs.childSessions[cdp.FrameID(ti.TargetID)] = nfs
	fs.childSessionsMu.Unlock()
	fs.page.attachFrameSession(cdp.FrameID(ti.TargetID), nfs)

	return nil
}

func (fs *FrameSession) onDetachedFromTarget(event *target.EventDetachedFromTarget) {
	fs.logger.Debugf("FrameSession:onDetachedFromTarget",
		"sid:%v tid:%v esid:%v",
		fs.session.ID(), fs.targetID, event.SessionID)
}

func (fs *FrameSession) onTargetCrashed() {
	fs.logger.Debugf("FrameSession:onTargetCrashed", "sid:%v tid:%v", fs.session.ID(), fs.targetID)

	if s, ok := fs.session.(*Session); ok {
		s.markAsCrashed()
	}
	fs.page.didCrash()
}

func (fs *FrameSession) updateExtraHTTPHeaders(initial bool) error {
	fs.logger.Debugf("NewFrameSession:updateExtraHTTPHeaders", "sid:%v tid:%v", fs.session.ID(), fs.targetID)

	headers := make(network.Headers)
	for k, v := range fs.page.extraHTTPHeaders() {
		headers[k] = v
	}
	if !initial || len(headers) > 0 {
		return fs.networkManager.SetExtraHTTPHeaders(headers)
	}
	return nil
}

func (fs *FrameSession) updateHTTPCredentials(initial bool) error {
	fs.logger.Debugf("NewFrameSession:updateHTTPCredentials", "sid:%v tid:%v", fs.session.ID(), fs.targetID)

	credentials := fs.page.opts.HTTPCredentials
	if !initial || !credentials.IsEmpty() {
		return fs.networkManager.Authenticate(credentials)
	}
	return nil
}

func (fs *FrameSession) updateOffline(initial bool) error {
	fs.logger.Debugf("NewFrameSession:updateOffline", "sid:%v tid:%v", fs.session.ID(), fs.targetID)

	offline := fs.page.opts.Offline
	if !initial || offline {
		return fs.networkManager.SetOfflineMode(offline)
	}
	return nil
}

func (fs *FrameSession) updateRequestInterception(enable bool) error {
	fs.logger.Debugf("NewFrameSession:updateRequestInterception",
		"sid:%v tid:%v on:%v", fs.session.ID(), fs.targetID, enable)

	return fs.networkManager.setRequestInterception(enable)
}

func (fs *FrameSession) updateViewport() error {
	fs.logger.Debugf("NewFrameSession:updateViewport", "sid:%v tid:%v", fs.session.ID(), fs.targetID)

	viewport := fs.page.viewport()
	if viewport.Width == 0 && viewport.Height == 0 {
		return nil
	}
	action := emulation.SetDeviceMetricsOverride(
		viewport.Width, viewport.Height, 1.0, false)
	if err := action.Do(cdp.WithExecutor(fs.ctx, fs.session)); err != nil {
		return fmt.Errorf("emulating viewport: %w", err)
	}
	return nil
}

func (fs *FrameSession) executionContextForID(
	executionContextID cdpruntime.ExecutionContextID,
) *ExecutionContext {
	fs.contextIDToContextMu.Lock()
	defer fs.contextIDToContextMu.Unlock()

	return fs.contextIDToContext[executionContextID]
}
