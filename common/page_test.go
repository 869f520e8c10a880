package common

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/mailru/easyjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// navigateResponder answers Page.navigate commands with a fixed loader ID
// or error text, standing in for the browser's navigation machinery.
type navigateResponder struct {
	loaderID  cdp.LoaderID
	errorText string
}

func (r *navigateResponder) hook(
	method string, params easyjson.Marshaler, res easyjson.Unmarshaler,
) (bool, error) {
	if ret, ok := res.(*cdppage.NavigateReturns); ok {
		ret.FrameID = cdp.FrameID(testTargetID)
		ret.LoaderID = r.loaderID
		ret.ErrorText = r.errorText
		return true, nil
	}
	return false, nil
}

// emitMainFrameNavigated drives the commit of a main-frame document the way
// the browser reports it.
func emitMainFrameNavigated(s *fakeSession, loaderID cdp.LoaderID, url string) {
	s.emit(cdproto.EventPageFrameNavigated, &cdppage.EventFrameNavigated{
		Frame: &cdp.Frame{
			ID:       cdp.FrameID(s.tid),
			LoaderID: loaderID,
			URL:      url,
		},
	})
}

func emitMainFrameLifecycle(s *fakeSession, loaderID cdp.LoaderID, name string) {
	s.emit(cdproto.EventPageLifecycleEvent, &cdppage.EventLifecycleEvent{
		FrameID:  cdp.FrameID(s.tid),
		LoaderID: loaderID,
		Name:     name,
	})
}

func TestNewPageInitializesMainFrame(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := newFakeSession(ctx, testTargetID)
	p := newTestPage(t, ctx, session)

	main := p.MainFrame()
	require.NotNil(t, main)
	assert.Equal(t, BlankPage, main.URL())
	assert.Equal(t, string(testTargetID), main.ID())
	assert.Len(t, p.Frames(), 1)

	for _, method := range []string{
		cdppage.CommandEnable,
		cdppage.CommandGetFrameTree,
		cdpruntime.CommandEnable,
		network.CommandEnable,
		target.CommandSetAutoAttach,
	} {
		assert.True(t, session.called(method), "expected %s during page setup", method)
	}
}

func TestPageGotoUnreachable(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := newFakeSession(ctx, testTargetID)
	p := newTestPage(t, ctx, session)
	session.setExecuteHook((&navigateResponder{
		loaderID:  "loader_id_a",
		errorText: "net::ERR_NAME_NOT_RESOLVED",
	}).hook)

	settled, err := p.Goto("https://nowhere.test/", nil)

	// An unreachable target is a settled-false navigation, not an error.
	require.NoError(t, err)
	assert.False(t, settled)
}

func TestPageGotoSameDocument(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := newFakeSession(ctx, testTargetID)
	p := newTestPage(t, ctx, session)
	session.setExecuteHook((&navigateResponder{loaderID: ""}).hook)

	settled, err := p.Goto(BlankPage+"#anchor", nil)
	require.NoError(t, err)
	assert.True(t, settled)
}

func TestPageGotoSettlesOnLifecycle(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := newFakeSession(ctx, testTargetID)
	p := newTestPage(t, ctx, session)
	session.setExecuteHook((&navigateResponder{loaderID: "loader_id_a"}).hook)

	go func() {
		time.Sleep(50 * time.Millisecond)
		emitMainFrameNavigated(session, "loader_id_a", "https://test/")
		time.Sleep(20 * time.Millisecond)
		emitMainFrameLifecycle(session, "loader_id_a", "load")
	}()

	opts := NewFrameGotoOptions("", 5*time.Second)
	opts.WaitUntil = LifecycleEventLoad
	settled, err := p.Goto("https://test/", opts)
	require.NoError(t, err)
	assert.True(t, settled)
	assert.Equal(t, "https://test/", p.URL())
}

func TestPageGotoSupersededByOtherDocument(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := newFakeSession(ctx, testTargetID)
	p := newTestPage(t, ctx, session)
	session.setExecuteHook((&navigateResponder{loaderID: "loader_id_a"}).hook)

	go func() {
		time.Sleep(50 * time.Millisecond)
		// A different document commits before ours.
		emitMainFrameNavigated(session, "loader_id_z", "https://elsewhere.test/")
	}()

	settled, err := p.Goto("https://test/", NewFrameGotoOptions("", 5*time.Second))
	require.NoError(t, err)
	assert.False(t, settled)
}

func TestPageGotoSecondNavigationPending(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := newFakeSession(ctx, testTargetID)
	p := newTestPage(t, ctx, session)
	session.setExecuteHook((&navigateResponder{loaderID: "loader_id_a"}).hook)

	type result struct {
		settled bool
		err     error
	}
	firstCh := make(chan result, 1)
	go func() {
		// The document never commits, so this navigation times out.
		settled, err := p.Goto("https://test/1", NewFrameGotoOptions("", 300*time.Millisecond))
		firstCh <- result{settled, err}
	}()

	time.Sleep(100 * time.Millisecond)
	_, err := p.Goto("https://test/2", NewFrameGotoOptions("", 300*time.Millisecond))
	require.ErrorIs(t, err, ErrNavigationPending)

	first := <-firstCh
	require.ErrorIs(t, first.err, ErrTimedOut)
	assert.False(t, first.settled)
}

func TestPageReload(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := newFakeSession(ctx, testTargetID)
	p := newTestPage(t, ctx, session)

	go func() {
		time.Sleep(50 * time.Millisecond)
		emitMainFrameNavigated(session, "loader_id_r", BlankPage)
		time.Sleep(20 * time.Millisecond)
		emitMainFrameLifecycle(session, "loader_id_r", "load")
	}()

	opts := NewPageReloadOptions(5 * time.Second)
	opts.WaitUntil = LifecycleEventLoad
	settled, err := p.Reload(opts)
	require.NoError(t, err)
	assert.True(t, settled)
	assert.True(t, session.called(cdppage.CommandReload))
}

// emitSubresourceRequest reports a subresource request started by the main
// frame's current document.
func emitSubresourceRequest(s *fakeSession, reqID network.RequestID, url string) {
	ev := requestWillBeSentEvent(reqID, url)
	ev.FrameID = cdp.FrameID(s.tid)
	s.emit(cdproto.EventNetworkRequestWillBeSent, ev)
}

func emitLoadingFinished(s *fakeSession, reqID network.RequestID) {
	ts := cdp.MonotonicTime(time.Now())
	s.emit(cdproto.EventNetworkLoadingFinished, &network.EventLoadingFinished{
		RequestID: reqID,
		Timestamp: &ts,
	})
}

func emitLoadingFailed(s *fakeSession, reqID network.RequestID, errorText string) {
	ts := cdp.MonotonicTime(time.Now())
	s.emit(cdproto.EventNetworkLoadingFailed, &network.EventLoadingFailed{
		RequestID: reqID,
		Timestamp: &ts,
		Type:      network.ResourceTypeStylesheet,
		ErrorText: errorText,
	})
}

// A navigation waiting for network idle settles only after every in-flight
// request is answered and the request set has stayed empty for the settle
// window. The load event fires strictly before the settle.
func TestPageGotoNetworkIdleWaitsForRequests(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := newFakeSession(ctx, testTargetID)
	p := newTestPage(t, ctx, session)
	session.setExecuteHook((&navigateResponder{loaderID: "loader_id_a"}).hook)

	loadCh := make(chan Event, 1)
	p.On(ctx, []string{EventPageLoad}, loadCh)

	type result struct {
		settled bool
		err     error
	}
	resCh := make(chan result, 1)
	opts := NewFrameGotoOptions("", 10*time.Second)
	opts.MinSettleTime = 100 * time.Millisecond
	go func() {
		settled, err := p.Goto("https://test/", opts)
		resCh <- result{settled, err}
	}()

	time.Sleep(50 * time.Millisecond)
	emitMainFrameNavigated(session, "loader_id_a", "https://test/")
	time.Sleep(25 * time.Millisecond)
	// Two delayed fetches keep the document busy past the load event.
	emitSubresourceRequest(session, "req_css", "https://test/app.css")
	emitSubresourceRequest(session, "req_js", "https://test/app.js")
	time.Sleep(25 * time.Millisecond)
	emitMainFrameLifecycle(session, "loader_id_a", "load")

	select {
	case <-loadCh:
	case <-time.After(time.Second):
		t.Fatal("load never fired")
	}

	// Both fetches are still unanswered: the navigation must not settle,
	// no matter how long the request set has existed.
	select {
	case res := <-resCh:
		t.Fatalf("navigation settled with requests in flight: %+v", res)
	case <-time.After(300 * time.Millisecond):
	}

	emitLoadingFinished(session, "req_css")
	select {
	case res := <-resCh:
		t.Fatalf("navigation settled with a request in flight: %+v", res)
	case <-time.After(200 * time.Millisecond):
	}

	emitLoadingFinished(session, "req_js")
	answered := time.Now()
	select {
	case res := <-resCh:
		require.NoError(t, res.err)
		assert.True(t, res.settled)
		// The settle window starts once the last request is answered.
		assert.GreaterOrEqual(t, time.Since(answered), opts.MinSettleTime)
	case <-time.After(2 * time.Second):
		t.Fatal("navigation never settled")
	}
}

// An aborted stylesheet fails that one request without failing the
// navigation.
func TestPageGotoSubresourceAborted(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := newFakeSession(ctx, testTargetID)
	p := newTestPage(t, ctx, session)
	session.setExecuteHook((&navigateResponder{loaderID: "loader_id_a"}).hook)

	failedCh := make(chan Event, 2)
	p.On(ctx, []string{EventPageRequestFailed}, failedCh)

	type result struct {
		settled bool
		err     error
	}
	resCh := make(chan result, 1)
	opts := NewFrameGotoOptions("", 10*time.Second)
	opts.WaitUntil = LifecycleEventLoad
	go func() {
		settled, err := p.Goto("https://test/", opts)
		resCh <- result{settled, err}
	}()

	time.Sleep(50 * time.Millisecond)
	emitMainFrameNavigated(session, "loader_id_a", "https://test/")
	time.Sleep(25 * time.Millisecond)
	emitSubresourceRequest(session, "req_css", "https://test/site.css")
	time.Sleep(25 * time.Millisecond)
	emitLoadingFailed(session, "req_css", "net::ERR_FAILED")
	emitMainFrameLifecycle(session, "loader_id_a", "load")

	select {
	case res := <-resCh:
		require.NoError(t, res.err)
		assert.True(t, res.settled)
	case <-time.After(2 * time.Second):
		t.Fatal("navigation never settled")
	}

	select {
	case ev := <-failedCh:
		req, ok := ev.data.(*Request)
		require.True(t, ok)
		assert.Equal(t, "https://test/site.css", req.URL())
	case <-time.After(time.Second):
		t.Fatal("the aborted request was never reported")
	}
	select {
	case <-failedCh:
		t.Fatal("more than one request was reported as failed")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPageExposeFunctionValidation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := newTestPage(t, ctx, newFakeSession(ctx, testTargetID))

	noop := func(args ...any) (any, error) { return nil, nil }

	require.Error(t, p.ExposeFunction("", noop))
	require.Error(t, p.ExposeFunction("fn", nil))

	require.NoError(t, p.ExposeFunction("fn", noop))
	err := p.ExposeFunction("fn", noop)
	require.ErrorContains(t, err, "already exposed")
}

func TestPageExposeFunctionInstallsBinding(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := newFakeSession(ctx, testTargetID)
	p := newTestPage(t, ctx, session)

	require.NoError(t, p.ExposeFunction("compute", func(args ...any) (any, error) {
		return nil, nil
	}))

	assert.True(t, session.called(cdpruntime.CommandAddBinding))
	// The wrapper must reach every future document too.
	assert.True(t, session.called(cdppage.CommandAddScriptToEvaluateOnNewDocument))
}

func TestPageBindingCallRoundTrip(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := newFakeSession(ctx, testTargetID)
	p := newTestPage(t, ctx, session)

	rec := &deliveryRecorder{}
	session.setExecuteHook(rec.hook)

	sumCh := make(chan float64, 1)
	require.NoError(t, p.ExposeFunction("add", func(args ...any) (any, error) {
		sum := args[0].(float64) + args[1].(float64)
		sumCh <- sum
		return sum, nil
	}))

	// The main frame gets its default-world execution context.
	session.emit(cdproto.EventRuntimeExecutionContextCreated, &cdpruntime.EventExecutionContextCreated{
		Context: &cdpruntime.ExecutionContextDescription{
			ID:      1,
			Origin:  "https://test",
			Name:    "",
			AuxData: easyjson.RawMessage(`{"frameId":"` + string(testTargetID) + `","isDefault":true,"type":"default"}`),
		},
	})
	// Page script invokes the exposed function.
	session.emit(cdproto.EventRuntimeBindingCalled, &cdpruntime.EventBindingCalled{
		Name:               "add",
		Payload:            `{"name":"add","seq":1,"args":[2,3]}`,
		ExecutionContextID: 1,
	})

	select {
	case sum := <-sumCh:
		assert.Equal(t, 5.0, sum)
	case <-time.After(time.Second):
		t.Fatal("exposed function was never called")
	}

	// The result is delivered back into the calling context.
	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.params) == 1
	}, time.Second, 10*time.Millisecond, "result was never delivered")
}

// An exposed function keeps working after a navigation replaces the document
// and its execution context.
func TestPageBindingSurvivesNavigation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := newFakeSession(ctx, testTargetID)
	p := newTestPage(t, ctx, session)

	rec := &deliveryRecorder{}
	session.setExecuteHook(rec.hook)

	sumCh := make(chan float64, 2)
	require.NoError(t, p.ExposeFunction("add", func(args ...any) (any, error) {
		sum := args[0].(float64) + args[1].(float64)
		sumCh <- sum
		return sum, nil
	}))

	auxData := easyjson.RawMessage(`{"frameId":"` + string(testTargetID) + `","isDefault":true,"type":"default"}`)
	session.emit(cdproto.EventRuntimeExecutionContextCreated, &cdpruntime.EventExecutionContextCreated{
		Context: &cdpruntime.ExecutionContextDescription{ID: 1, AuxData: auxData},
	})
	session.emit(cdproto.EventRuntimeBindingCalled, &cdpruntime.EventBindingCalled{
		Name:               "add",
		Payload:            `{"name":"add","seq":1,"args":[2,3]}`,
		ExecutionContextID: 1,
	})
	select {
	case sum := <-sumCh:
		assert.Equal(t, 5.0, sum)
	case <-time.After(time.Second):
		t.Fatal("exposed function was never called")
	}

	// A navigation tears down the old document and its contexts.
	emitMainFrameNavigated(session, "loader_id_b", "https://test/next")
	session.emit(cdproto.EventRuntimeExecutionContextsCleared, &cdpruntime.EventExecutionContextsCleared{})
	session.emit(cdproto.EventRuntimeExecutionContextCreated, &cdpruntime.EventExecutionContextCreated{
		Context: &cdpruntime.ExecutionContextDescription{ID: 2, AuxData: auxData},
	})

	session.emit(cdproto.EventRuntimeBindingCalled, &cdpruntime.EventBindingCalled{
		Name:               "add",
		Payload:            `{"name":"add","seq":2,"args":[30,12]}`,
		ExecutionContextID: 2,
	})
	select {
	case sum := <-sumCh:
		assert.Equal(t, 42.0, sum)
	case <-time.After(time.Second):
		t.Fatal("exposed function was lost over the navigation")
	}

	// The second result lands in the new document's context.
	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.params) == 2
	}, time.Second, 10*time.Millisecond, "result was never delivered")
	rec.mu.Lock()
	assert.EqualValues(t, 2, rec.params[1].ExecutionContextID)
	rec.mu.Unlock()
}

func TestPageRouteTogglesInterception(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := newFakeSession(ctx, testTargetID)
	p := newTestPage(t, ctx, session)

	require.NoError(t, p.Route(func(r *Route) { _ = r.Continue(ContinueOptions{}) }))
	assert.True(t, session.called(fetch.CommandEnable))
	assert.True(t, p.hasRoutes())

	require.NoError(t, p.Route(nil))
	assert.True(t, session.called(fetch.CommandDisable))
	assert.False(t, p.hasRoutes())
}

func TestPageDialogAutoHandledWithoutListeners(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := newFakeSession(ctx, testTargetID)
	newTestPage(t, ctx, session)

	rec := &dialogParamsRecorder{}
	session.setExecuteHook(rec.hook)

	session.emit(cdproto.EventPageJavascriptDialogOpening, &cdppage.EventJavascriptDialogOpening{
		URL:     "https://test/",
		Message: "are you sure?",
		Type:    cdppage.DialogTypeConfirm,
	})

	require.Eventually(t, func() bool {
		return len(rec.recorded()) == 1
	}, time.Second, 10*time.Millisecond, "dialog was never auto-handled")
	assert.False(t, rec.recorded()[0].Accept)
}

func TestPageDialogDeliveredToListener(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := newFakeSession(ctx, testTargetID)
	p := newTestPage(t, ctx, session)

	rec := &dialogParamsRecorder{}
	session.setExecuteHook(rec.hook)

	dialogCh := make(chan Event, 1)
	p.On(ctx, []string{EventPageDialog}, dialogCh)

	session.emit(cdproto.EventPageJavascriptDialogOpening, &cdppage.EventJavascriptDialogOpening{
		URL:           "https://test/",
		Message:       "name?",
		Type:          cdppage.DialogTypePrompt,
		DefaultPrompt: "anonymous",
	})

	var dialog *Dialog
	select {
	case ev := <-dialogCh:
		var ok bool
		dialog, ok = ev.data.(*Dialog)
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("dialog event was never delivered")
	}
	assert.Equal(t, "name?", dialog.Message)
	assert.Equal(t, "anonymous", dialog.DefaultValue)
	// Nothing was auto-handled, disposal is the listener's call.
	assert.Empty(t, rec.recorded())

	require.NoError(t, dialog.Accept("gopher"))
	params := rec.recorded()
	require.Len(t, params, 1)
	assert.True(t, params[0].Accept)
	assert.Equal(t, "gopher", params[0].PromptText)
}

func TestPageSetViewportSize(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := newFakeSession(ctx, testTargetID)
	p := newTestPage(t, ctx, session)

	var captured *emulation.SetDeviceMetricsOverrideParams
	var mu sync.Mutex
	session.setExecuteHook(func(method string, params easyjson.Marshaler, res easyjson.Unmarshaler) (bool, error) {
		if dm, ok := params.(*emulation.SetDeviceMetricsOverrideParams); ok {
			mu.Lock()
			captured = dm
			mu.Unlock()
		}
		return false, nil
	})

	require.NoError(t, p.SetViewportSize(&Viewport{Width: 800, Height: 600}))

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, captured)
	assert.EqualValues(t, 800, captured.Width)
	assert.EqualValues(t, 600, captured.Height)
	assert.EqualValues(t, 800, p.viewport().Width)
}

func TestPageSettingsCommands(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := newFakeSession(ctx, testTargetID)
	p := newTestPage(t, ctx, session)

	require.NoError(t, p.SetExtraHTTPHeaders(map[string]string{"X-Test": "1"}))
	assert.True(t, session.called(network.CommandSetExtraHTTPHeaders))

	require.NoError(t, p.SetOfflineMode(true))
	assert.True(t, session.called(network.CommandEmulateNetworkConditions))

	require.NoError(t, p.Authenticate(Credentials{Username: "u", Password: "p"}))
	assert.True(t, session.called(fetch.CommandEnable))

	require.NoError(t, p.SetCacheEnabled(false))
	assert.True(t, session.called(network.CommandSetCacheDisabled))
}

func TestPageClose(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := newFakeSession(ctx, testTargetID)
	p := newTestPage(t, ctx, session)

	closeCh := make(chan Event, 1)
	p.On(ctx, []string{EventPageClose}, closeCh)

	require.NoError(t, p.Close())
	assert.True(t, session.called(cdppage.CommandClose))

	select {
	case <-closeCh:
	case <-time.After(time.Second):
		t.Fatal("close event was never emitted")
	}
	assert.True(t, p.IsClosed())
}

func TestPageClosedOnSessionDone(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := newFakeSession(ctx, testTargetID)
	p := newTestPage(t, ctx, session)

	close(session.done)

	require.Eventually(t, p.IsClosed, time.Second, 10*time.Millisecond)
}

// A click that triggers a navigation stays open until that navigation has
// started, so callers observe the new document afterwards.
func TestPageClickWaitsForTriggeredNavigation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := newFakeSession(ctx, testTargetID)
	p := newTestPage(t, ctx, session)

	// Give the main frame its main world context so evaluation works.
	session.emit(cdproto.EventRuntimeExecutionContextCreated, &cdpruntime.EventExecutionContextCreated{
		Context: &cdpruntime.ExecutionContextDescription{
			ID:      1,
			AuxData: easyjson.RawMessage(`{"frameId":"target_id_0123456789","isDefault":true,"type":"default"}`),
		},
	})

	fm := p.frameManager
	session.setExecuteHook(func(method string, params easyjson.Marshaler, res easyjson.Unmarshaler) (bool, error) {
		switch pa := params.(type) {
		case *cdpruntime.CallFunctionOnParams:
			if ret, ok := res.(*cdpruntime.CallFunctionOnReturns); ok {
				ret.Result = &cdpruntime.RemoteObject{
					Type:  cdpruntime.TypeObject,
					Value: easyjson.RawMessage(`{"x":100,"y":50}`),
				}
			}
			return true, nil
		case *input.DispatchMouseEventParams:
			if pa.Type == input.MouseReleased {
				// Releasing the button starts a navigation.
				assert.NoError(t, fm.frameRequestedNavigation(
					cdp.FrameID(session.tid), "https://test/next", "loader_id_click"))
			}
			return true, nil
		}
		return false, nil
	})

	clickErr := make(chan error, 1)
	go func() { clickErr <- p.Click("#go", nil) }()

	select {
	case err := <-clickErr:
		t.Fatalf("click returned before the navigation started: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	emitMainFrameNavigated(session, "loader_id_click", "https://test/next")
	select {
	case err := <-clickErr:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("click never returned after the navigation started")
	}
}

func TestPageConsoleMessage(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := newFakeSession(ctx, testTargetID)
	p := newTestPage(t, ctx, session)

	consoleCh := make(chan Event, 1)
	p.On(ctx, []string{EventPageConsole}, consoleCh)

	ts := cdpruntime.Timestamp(time.Now())
	session.emit(cdproto.EventRuntimeConsoleAPICalled, &cdpruntime.EventConsoleAPICalled{
		Type:      cdpruntime.APITypeLog,
		Timestamp: &ts,
		Args: []*cdpruntime.RemoteObject{
			{Type: cdpruntime.TypeString, Value: easyjson.RawMessage(`"hello"`)},
			{Type: cdpruntime.TypeNumber, Value: easyjson.RawMessage(`42`)},
		},
	})

	select {
	case ev := <-consoleCh:
		msg, ok := ev.data.(*ConsoleMessage)
		require.True(t, ok)
		assert.Equal(t, "hello 42", msg.Text)
		assert.Equal(t, "log", msg.Type)
	case <-time.After(time.Second):
		t.Fatal("console message was never emitted")
	}
}
