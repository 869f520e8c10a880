package common

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/zoltan-boros/puppeteer/log"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"golang.org/x/net/context"
)

// NetworkManager manages network requests for a frame session.
//
// When interception is on, the browser holds every request at the Fetch
// domain until we answer. The answer goes through a Route: abort, continue
// or fulfill, exactly once per request.
type NetworkManager struct {
	BaseEventEmitter

	ctx          context.Context
	logger       *log.Logger
	session      session
	parent       *NetworkManager
	frameManager *FrameManager
	credentials  Credentials
	errorReasons map[string]network.ErrorReason

	reqIDToRequest map[network.RequestID]*Request
	reqsMu         sync.RWMutex

	// The requestWillBeSent and requestPaused events for the same request
	// arrive in either order. Whichever comes first is parked here until
	// its counterpart shows up.
	reqIDToRequestWillBeSentEvent map[network.RequestID]*network.EventRequestWillBeSent
	eventsWillBeSentMu            sync.RWMutex
	reqIDToPausedRequest          map[network.RequestID]*pausedRequest
	eventsPausedMu                sync.RWMutex

	attemptedAuth map[fetch.RequestID]bool

	extraHTTPHeaders               map[string]string
	offline                        bool
	networkProfile                 NetworkProfile
	userCacheDisabled              bool
	userReqInterceptionEnabled     bool
	protocolReqInterceptionEnabled bool

	wg sync.WaitGroup
}

// NewNetworkManager creates a new network manager.
func NewNetworkManager(
	ctx context.Context, l *log.Logger, s session, fm *FrameManager, parent *NetworkManager,
) (*NetworkManager, error) {
	m := NetworkManager{
		BaseEventEmitter:              NewBaseEventEmitter(ctx),
		ctx:                           ctx,
		logger:                        l,
		session:                       s,
		parent:                        parent,
		frameManager:                  fm,
		reqIDToRequest:                make(map[network.RequestID]*Request),
		reqIDToRequestWillBeSentEvent: make(map[network.RequestID]*network.EventRequestWillBeSent),
		reqIDToPausedRequest:          make(map[network.RequestID]*pausedRequest),
		attemptedAuth:                 make(map[fetch.RequestID]bool),
		extraHTTPHeaders:              make(map[string]string),
		networkProfile:                NewNetworkProfile(),
		errorReasons:                  errorReasons(),
	}
	m.initEvents()
	if err := m.initDomains(); err != nil {
		return nil, err
	}

	return &m, nil
}

func errorReasons() map[string]network.ErrorReason {
	return map[string]network.ErrorReason{
		"aborted":              network.ErrorReasonAborted,
		"accessdenied":         network.ErrorReasonAccessDenied,
		"addressunreachable":   network.ErrorReasonAddressUnreachable,
		"blockedbyclient":      network.ErrorReasonBlockedByClient,
		"blockedbyresponse":    network.ErrorReasonBlockedByResponse,
		"connectionaborted":    network.ErrorReasonConnectionAborted,
		"connectionclosed":     network.ErrorReasonConnectionClosed,
		"connectionfailed":     network.ErrorReasonConnectionFailed,
		"connectionrefused":    network.ErrorReasonConnectionRefused,
		"connectionreset":      network.ErrorReasonConnectionReset,
		"internetdisconnected": network.ErrorReasonInternetDisconnected,
		"namenotresolved":      network.ErrorReasonNameNotResolved,
		"timedout":             network.ErrorReasonTimedOut,
		"failed":               network.ErrorReasonFailed,
	}
}

func (m *NetworkManager) deleteRequestByID(reqID network.RequestID) {
	m.reqsMu.Lock()
	defer m.reqsMu.Unlock()
	delete(m.reqIDToRequest, reqID)
}

func (m *NetworkManager) handleRequestRedirect(
	req *Request, redirectResponse *network.Response, timestamp *cdp.MonotonicTime,
) {
	resp := NewHTTPResponse(m.ctx, m.logger, req, redirectResponse, timestamp)
	req.setResponse(resp)
	req.redirectChain = append(req.redirectChain, req)

	m.deleteRequestByID(req.requestID)
	m.frameManager.requestReceivedResponse(resp)
	m.frameManager.requestFinished(req)
}

func (m *NetworkManager) initDomains() error {
	actions := []Action{network.Enable()}

	// Only enable the Fetch domain if necessary, as it has a performance overhead.
	if m.userReqInterceptionEnabled {
		actions = append(actions,
			network.SetCacheDisabled(true),
			fetch.Enable().WithPatterns([]*fetch.RequestPattern{{URLPattern: "*"}}))
	}
	for _, action := range actions {
		if err := action.Do(cdp.WithExecutor(m.ctx, m.session)); err != nil {
			return fmt.Errorf("initializing networking %T: %w", action, err)
		}
	}

	return nil
}

func (m *NetworkManager) initEvents() {
	chHandler := make(chan Event)
	m.session.on(m.ctx, []string{
		cdproto.EventNetworkLoadingFailed,
		cdproto.EventNetworkLoadingFinished,
		cdproto.EventNetworkRequestWillBeSent,
		cdproto.EventNetworkRequestServedFromCache,
		cdproto.EventNetworkResponseReceived,
		cdproto.EventFetchRequestPaused,
		cdproto.EventFetchAuthRequired,
	}, chHandler)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for m.handleEvents(chHandler) {
		}
	}()
}

func (m *NetworkManager) handleEvents(in <-chan Event) bool {
	select {
	case <-m.ctx.Done():
		return false
	case <-m.session.Done():
		return false
	case event := <-in:
		select {
		case <-m.ctx.Done():
			return false
		case <-m.session.Done():
			return false
		default:
		}
		switch ev := event.data.(type) {
		case *network.EventLoadingFailed:
			m.onLoadingFailed(ev)
		case *network.EventLoadingFinished:
			m.onLoadingFinished(ev)
		case *network.EventRequestWillBeSent:
			m.onRequestWillBeSent(ev)
		case *network.EventRequestServedFromCache:
			m.onRequestServedFromCache(ev)
		case *network.EventResponseReceived:
			m.onResponseReceived(ev)
		case *fetch.EventRequestPaused:
			m.onRequestPaused(ev)
		case *fetch.EventAuthRequired:
			m.onAuthRequired(ev)
		}
	}
	return true
}

func (m *NetworkManager) onLoadingFailed(event *network.EventLoadingFailed) {
	req, ok := m.requestFromIDOk(event.RequestID)
	if !ok {
		return
	}

	req.setErrorText(event.ErrorText)
	req.responseEndTiming = float64(event.Timestamp.Time().Unix()-req.timestamp.Unix()) * 1000
	m.deleteRequestByID(event.RequestID)
	m.frameManager.requestFailed(req, event.Canceled)
}

func (m *NetworkManager) onLoadingFinished(event *network.EventLoadingFinished) {
	req := m.requestForOnLoadingFinished(event.RequestID)
	if req == nil {
		return
	}

	req.responseEndTiming = float64(event.Timestamp.Time().Unix()-req.timestamp.Unix()) * 1000
	m.deleteRequestByID(event.RequestID)
	m.frameManager.requestFinished(req)
}

// requestForOnLoadingFinished returns the request for the given request ID,
// also handling iframe document requests that start in the parent session
// and finish in this one.
func (m *NetworkManager) requestForOnLoadingFinished(rid network.RequestID) *Request {
	r, ok := m.requestFromIDOk(rid)
	if ok {
		return r
	}
	if m.parent == nil {
		return nil
	}

	pr, ok := m.parent.requestFromIDOk(rid)
	if !ok {
		return nil
	}
	// Requests emanating from the parent have matching requestIDs.
	if pr.getDocumentID() != rid.String() {
		return nil
	}

	// Switch the request to the parent request.
	m.reqsMu.Lock()
	m.reqIDToRequest[rid] = pr
	m.reqsMu.Unlock()
	m.parent.deleteRequestByID(rid)

	return pr
}

func isInternalURL(u *url.URL) bool {
	return u.Scheme == "data" || u.Scheme == "blob"
}

// pausedRequest pairs a paused fetch event with the route handler that
// matched when the browser paused the request. The handler is snapshotted at
// pause time so that removing the route afterwards cannot strand a request
// the browser is already holding.
type pausedRequest struct {
	event   *fetch.EventRequestPaused
	handler RouteHandler
}

func (m *NetworkManager) onRequest(
	event *network.EventRequestWillBeSent, requestPausedEvent *fetch.EventRequestPaused,
	handler RouteHandler,
) {
	m.logger.Debugf("NetworkManager:onRequest", "url:%s method:%s type:%s fid:%s",
		event.Request.URL, event.Request.Method, event.Initiator.Type, event.FrameID)

	var redirectChain []*Request
	if event.RedirectResponse != nil {
		if req, ok := m.requestFromIDOk(event.RequestID); ok {
			m.handleRequestRedirect(req, event.RedirectResponse, event.Timestamp)
			redirectChain = req.redirectChain
		}
	} else {
		redirectChain = make([]*Request, 0)
	}

	var frame *Frame
	if event.FrameID != "" {
		frame = m.frameManager.getFrameByID(event.FrameID)
	}
	if frame == nil && requestPausedEvent != nil && requestPausedEvent.FrameID != "" {
		frame = m.frameManager.getFrameByID(requestPausedEvent.FrameID)
	}
	if frame == nil {
		m.logger.Debugf("NetworkManager:onRequest", "url:%s method:%s fid:%s frame is nil",
			event.Request.URL, event.Request.Method, event.FrameID)
	}

	var interceptionID fetch.RequestID
	if requestPausedEvent != nil {
		interceptionID = requestPausedEvent.RequestID
	}

	req, err := NewRequest(m.ctx, NewRequestParams{
		event:             event,
		frame:             frame,
		redirectChain:     redirectChain,
		interceptionID:    interceptionID,
		allowInterception: m.userReqInterceptionEnabled,
	})
	if err != nil {
		m.logger.Errorf("NetworkManager", "creating request: %s", err)
		return
	}
	// Skip data and blob URLs, since they're internal to the browser.
	if isInternalURL(req.url) {
		m.logger.Debugf("NetworkManager", "skipping request handling of %s URL", req.url.Scheme)
		return
	}
	m.reqsMu.Lock()
	m.reqIDToRequest[event.RequestID] = req
	m.reqsMu.Unlock()
	m.frameManager.requestStarted(req)

	if requestPausedEvent != nil {
		m.dispatchRoute(req, handler)
	}
}

// dispatchRoute hands a paused request to the route handler snapshotted when
// the browser paused it. The handler runs on its own goroutine so that the
// event pump stays free to process the protocol traffic the handler's own
// disposal will generate. A handler that never disposes its route leaves the
// request paused in the browser; that is the handler's bug, not something we
// paper over.
func (m *NetworkManager) dispatchRoute(req *Request, handler RouteHandler) {
	if handler == nil {
		// The request was already continued when it was paused.
		return
	}

	route := NewRoute(m.logger, m, req)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		handler(route)
	}()
}

// onRequestWillBeSent calls the onRequest method:
//   - right away, if request interception is disabled
//   - only if we first received the onRequestPaused event, if request
//     interception is enabled; otherwise, it stores the event to be processed
//     when the onRequestPaused event arrives.
func (m *NetworkManager) onRequestWillBeSent(event *network.EventRequestWillBeSent) {
	if m.protocolReqInterceptionEnabled {
		requestID := event.RequestID
		if paused, ok := m.pausedRequestFromReqID(requestID); ok {
			m.onRequest(event, paused.event, paused.handler)
			m.eventsPausedMu.Lock()
			delete(m.reqIDToPausedRequest, requestID)
			m.eventsPausedMu.Unlock()
		} else {
			m.eventsWillBeSentMu.Lock()
			m.reqIDToRequestWillBeSentEvent[requestID] = event
			m.eventsWillBeSentMu.Unlock()
		}
	} else {
		m.onRequest(event, nil, nil)
	}
}

func (m *NetworkManager) onRequestPaused(event *fetch.EventRequestPaused) {
	m.logger.Debugf("NetworkManager:onRequestPaused",
		"url:%v sid:%s", event.Request.URL, m.session.ID())

	// The handler is resolved now, not when the willBeSent counterpart
	// pairs up. A route removed in between must still answer the requests
	// the browser paused against it.
	var handler RouteHandler
	if page := m.frameManager.page; page != nil && page.hasRoutes() {
		handler, _ = page.routeForURL(event.Request.URL)
	}

	requestID := event.NetworkID
	if requestWillBeSentEvent, ok := m.willBeSentEventFromReqID(requestID); ok {
		m.onRequest(requestWillBeSentEvent, event, handler)
		m.eventsWillBeSentMu.Lock()
		delete(m.reqIDToRequestWillBeSentEvent, requestID)
		m.eventsWillBeSentMu.Unlock()
	} else {
		m.eventsPausedMu.Lock()
		m.reqIDToPausedRequest[requestID] = &pausedRequest{event: event, handler: handler}
		m.eventsPausedMu.Unlock()
	}

	// Without a matching handler the request continues right away.
	if handler == nil {
		err := m.ContinueRequest(event.RequestID, ContinueOptions{}, nil)
		if err != nil {
			m.logger.Errorf("NetworkManager:onRequestPaused",
				"continuing request %s %s: %s", event.Request.Method, event.Request.URL, err)
		}
	}
}

func (m *NetworkManager) onAuthRequired(event *fetch.EventAuthRequired) {
	var (
		res = fetch.AuthChallengeResponseResponseDefault
		rid = event.RequestID

		username, password string
	)

	switch {
	case m.attemptedAuth[rid]:
		delete(m.attemptedAuth, rid)
		res = fetch.AuthChallengeResponseResponseCancelAuth
	case !m.credentials.IsEmpty():
		m.attemptedAuth[rid] = true
		res = fetch.AuthChallengeResponseResponseProvideCredentials
		// Username and password should only be set when the response is
		// ProvideCredentials.
		username, password = m.credentials.Username, m.credentials.Password
	}
	err := fetch.ContinueWithAuth(
		rid,
		&fetch.AuthChallengeResponse{
			Response: res,
			Username: username,
			Password: password,
		},
	).Do(cdp.WithExecutor(m.ctx, m.session))
	if err != nil {
		m.logger.Debugf("NetworkManager:onAuthRequired", "continueWithAuth url:%q err:%v", event.Request.URL, err)
	}
}

func (m *NetworkManager) onRequestServedFromCache(event *network.EventRequestServedFromCache) {
	if req, ok := m.requestFromIDOk(event.RequestID); ok {
		req.setLoadedFromCache(true)
	}
}

func (m *NetworkManager) onResponseReceived(event *network.EventResponseReceived) {
	req, ok := m.requestFromIDOk(event.RequestID)
	if !ok {
		return
	}
	resp := NewHTTPResponse(m.ctx, m.logger, req, event.Response, event.Timestamp)
	req.setResponse(resp)

	m.logger.Debugf("NetworkManager:onResponseReceived", "rid:%s rurl:%s", event.RequestID, resp.URL())

	m.frameManager.requestReceivedResponse(resp)
}

func (m *NetworkManager) requestFromID(reqID network.RequestID) *Request {
	r, _ := m.requestFromIDOk(reqID)
	return r
}

func (m *NetworkManager) requestFromIDOk(reqID network.RequestID) (*Request, bool) {
	m.reqsMu.RLock()
	defer m.reqsMu.RUnlock()

	r, ok := m.reqIDToRequest[reqID]

	return r, ok
}

func (m *NetworkManager) willBeSentEventFromReqID(reqID network.RequestID) (*network.EventRequestWillBeSent, bool) {
	m.eventsWillBeSentMu.RLock()
	defer m.eventsWillBeSentMu.RUnlock()

	e, ok := m.reqIDToRequestWillBeSentEvent[reqID]

	return e, ok
}

func (m *NetworkManager) pausedRequestFromReqID(reqID network.RequestID) (*pausedRequest, bool) {
	m.eventsPausedMu.RLock()
	defer m.eventsPausedMu.RUnlock()

	p, ok := m.reqIDToPausedRequest[reqID]

	return p, ok
}

func (m *NetworkManager) extraHTTPHeadersCopy() map[string]string {
	headers := make(map[string]string, len(m.extraHTTPHeaders))
	for k, v := range m.extraHTTPHeaders {
		headers[k] = v
	}
	return headers
}

func (m *NetworkManager) setRequestInterception(value bool) error {
	m.userReqInterceptionEnabled = value
	return m.updateProtocolRequestInterception()
}

func (m *NetworkManager) updateProtocolCacheDisabled() error {
	action := network.SetCacheDisabled(m.userCacheDisabled)
	if err := action.Do(cdp.WithExecutor(m.ctx, m.session)); err != nil {
		errAction := "enabling"
		if m.userCacheDisabled {
			errAction = "disabling"
		}
		return fmt.Errorf("%s network cache: %w", errAction, err)
	}
	return nil
}

func (m *NetworkManager) updateProtocolRequestInterception() error {
	enabled := m.userReqInterceptionEnabled
	if enabled == m.protocolReqInterceptionEnabled {
		return nil
	}

	m.protocolReqInterceptionEnabled = enabled
	m.logger.Debugf("NetworkManager:updateProtocolRequestInterception",
		"updating request interception to %t (session: %s)", enabled, m.session.ID())

	actions := []Action{
		network.SetCacheDisabled(true),
		fetch.Enable().
			WithHandleAuthRequests(true).
			WithPatterns([]*fetch.RequestPattern{
				{
					URLPattern:   "*",
					RequestStage: fetch.RequestStageRequest,
				},
			}),
	}
	if !enabled {
		actions = []Action{
			network.SetCacheDisabled(false),
			fetch.Disable(),
		}
	}
	for _, action := range actions {
		if err := action.Do(cdp.WithExecutor(m.ctx, m.session)); err != nil {
			return fmt.Errorf("updating protocol request interception %T: %w", action, err)
		}
	}

	return nil
}

// Authenticate sets HTTP authentication credentials to use.
func (m *NetworkManager) Authenticate(credentials Credentials) error {
	m.credentials = credentials
	if !credentials.IsEmpty() {
		m.userReqInterceptionEnabled = true
	}
	if err := m.updateProtocolRequestInterception(); err != nil {
		return fmt.Errorf("setting authentication credentials: %w", err)
	}

	return nil
}

// AbortRequest aborts a paused request with the given error reason.
func (m *NetworkManager) AbortRequest(requestID fetch.RequestID, errorReason string) error {
	m.logger.Debugf("NetworkManager:AbortRequest", "aborting request (id: %s, errorReason: %s)",
		requestID, errorReason)
	netErrorReason, ok := m.errorReasons[errorReason]
	if !ok {
		return fmt.Errorf("unknown error code: %s", errorReason)
	}

	action := fetch.FailRequest(requestID, netErrorReason)
	if err := action.Do(cdp.WithExecutor(m.ctx, m.session)); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debugf("NetworkManager:AbortRequest", "context canceled interrupting request")
			return nil
		}
		return fmt.Errorf("aborting request (id: %s): %w", requestID, err)
	}

	return nil
}

// ContinueRequest continues a paused request, optionally with overrides.
func (m *NetworkManager) ContinueRequest(
	requestID fetch.RequestID, opts ContinueOptions, originalHeaders []HTTPHeader,
) error {
	m.logger.Debugf("NetworkManager:ContinueRequest", "continuing request (id: %s)", requestID)
	action := fetch.ContinueRequest(requestID)

	if len(opts.Headers) > 0 {
		action = action.WithHeaders(toFetchHeaders(opts.Headers))
	} else if len(originalHeaders) > 0 {
		action = action.WithHeaders(toFetchHeaders(originalHeaders))
	}
	if opts.URL != "" {
		action = action.WithURL(opts.URL)
	}
	if opts.Method != "" {
		action = action.WithMethod(opts.Method)
	}
	if len(opts.PostData) > 0 {
		b64PostData := base64.StdEncoding.EncodeToString(opts.PostData)
		action = action.WithPostData(b64PostData)
	}

	if err := action.Do(cdp.WithExecutor(m.ctx, m.session)); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debugf("NetworkManager:ContinueRequest", "context canceled continuing request")
			return nil
		}
		// An invalid interception ID means the page navigated away and
		// chromium no longer tracks the request. Nothing to action on.
		if strings.Contains(err.Error(), "Invalid InterceptionId") {
			m.logger.Debugf("NetworkManager:ContinueRequest",
				"invalid interception ID (%s) continuing request: %s", requestID, err)
			return nil
		}
		return fmt.Errorf("continuing request (id: %s): %w", requestID, err)
	}

	return nil
}

// FulfillRequest fulfills a paused request with a synthesized response.
func (m *NetworkManager) FulfillRequest(request *Request, opts FulfillOptions) error {
	responseCode := int64(http.StatusOK)
	if opts.Status != 0 {
		responseCode = opts.Status
	}

	action := fetch.FulfillRequest(request.interceptionID, responseCode)

	if opts.ContentType != "" {
		opts.Headers = append(opts.Headers, HTTPHeader{
			Name:  "Content-Type",
			Value: opts.ContentType,
		})
	}

	headers := toFetchHeaders(opts.Headers)
	if len(headers) > 0 {
		action = action.WithResponseHeaders(headers)
	}

	if len(opts.Body) > 0 {
		b64Body := base64.StdEncoding.EncodeToString(opts.Body)
		action = action.WithBody(b64Body)
	}

	if err := action.Do(cdp.WithExecutor(m.ctx, m.session)); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debugf("NetworkManager:FulfillRequest", "context canceled fulfilling request")
			return nil
		}
		return fmt.Errorf("fulfilling request (id: %s): %w", request.interceptionID, err)
	}

	return nil
}

func toFetchHeaders(headers []HTTPHeader) []*fetch.HeaderEntry {
	if len(headers) == 0 {
		return nil
	}

	fetchHeaders := make([]*fetch.HeaderEntry, len(headers))
	for i, header := range headers {
		fetchHeaders[i] = &fetch.HeaderEntry{
			Name:  header.Name,
			Value: header.Value,
		}
	}
	return fetchHeaders
}

// SetExtraHTTPHeaders sets extra HTTP request headers to be sent with every request.
func (m *NetworkManager) SetExtraHTTPHeaders(headers network.Headers) error {
	err := network.
		SetExtraHTTPHeaders(headers).
		Do(cdp.WithExecutor(m.ctx, m.session))
	if err != nil {
		return fmt.Errorf("setting extra HTTP headers: %w", err)
	}
	for k, v := range headers {
		if s, ok := v.(string); ok {
			m.extraHTTPHeaders[strings.ToLower(k)] = s
		}
	}

	return nil
}

// SetOfflineMode toggles offline mode on/off.
func (m *NetworkManager) SetOfflineMode(offline bool) error {
	if m.offline == offline {
		return nil
	}
	m.offline = offline

	action := network.EmulateNetworkConditions(
		m.offline,
		m.networkProfile.Latency,
		m.networkProfile.Download,
		m.networkProfile.Upload,
	)
	if err := action.Do(cdp.WithExecutor(m.ctx, m.session)); err != nil {
		return fmt.Errorf("emulating network conditions: %w", err)
	}

	return nil
}

// ThrottleNetwork changes the network attributes in chrome to simulate slower
// networks e.g. a slow 3G connection.
func (m *NetworkManager) ThrottleNetwork(networkProfile NetworkProfile) error {
	if m.networkProfile == networkProfile {
		return nil
	}
	m.networkProfile = networkProfile

	action := network.EmulateNetworkConditions(
		m.offline,
		m.networkProfile.Latency,
		m.networkProfile.Download,
		m.networkProfile.Upload,
	)
	if err := action.Do(cdp.WithExecutor(m.ctx, m.session)); err != nil {
		return fmt.Errorf("throttling network: %w", err)
	}

	return nil
}

// SetUserAgent overrides the browser user agent string.
func (m *NetworkManager) SetUserAgent(userAgent string) error {
	action := emulation.SetUserAgentOverride(userAgent)
	if err := action.Do(cdp.WithExecutor(m.ctx, m.session)); err != nil {
		return fmt.Errorf("setting user agent: %w", err)
	}
	return nil
}

// SetCacheEnabled toggles cache on/off.
func (m *NetworkManager) SetCacheEnabled(enabled bool) error {
	m.userCacheDisabled = !enabled
	return m.updateProtocolCacheDisabled()
}

func (m *NetworkManager) wait() {
	m.wg.Wait()
}
