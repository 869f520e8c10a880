package common

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/zoltan-boros/puppeteer/internal/assetsrv"
	"github.com/zoltan-boros/puppeteer/log"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/mailru/easyjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNetworkManager(
	t *testing.T, ctx context.Context, interception bool,
) (*NetworkManager, *fakeSession, *Page) {
	t.Helper()

	l := log.NewNullLogger()
	s := newFakeSession(ctx, testTargetID)
	p := &Page{
		BaseEventEmitter: NewBaseEventEmitter(ctx),
		ctx:              ctx,
		logger:           l,
	}
	fm := NewFrameManager(ctx, s, p, NewTimeoutSettings(nil), l)
	nm := &NetworkManager{
		BaseEventEmitter:              NewBaseEventEmitter(ctx),
		ctx:                           ctx,
		logger:                        l,
		session:                       s,
		frameManager:                  fm,
		reqIDToRequest:                make(map[network.RequestID]*Request),
		reqIDToRequestWillBeSentEvent: make(map[network.RequestID]*network.EventRequestWillBeSent),
		reqIDToPausedRequest:          make(map[network.RequestID]*pausedRequest),
		attemptedAuth:                 make(map[fetch.RequestID]bool),
		extraHTTPHeaders:              make(map[string]string),
		networkProfile:                NewNetworkProfile(),
		errorReasons:                  errorReasons(),

		userReqInterceptionEnabled:     interception,
		protocolReqInterceptionEnabled: interception,
	}
	return nm, s, p
}

func requestWillBeSentEvent(reqID network.RequestID, url string) *network.EventRequestWillBeSent {
	ts := cdp.MonotonicTime(time.Now())
	wt := cdp.TimeSinceEpoch(time.Now())
	return &network.EventRequestWillBeSent{
		RequestID: reqID,
		LoaderID:  "loader_id_0123456789",
		Request: &network.Request{
			URL:     url,
			Method:  "GET",
			Headers: network.Headers{"Accept": "*/*"},
		},
		Timestamp: &ts,
		WallTime:  &wt,
		Initiator: &network.Initiator{Type: network.InitiatorTypeOther},
		Type:      network.ResourceTypeFetch,
	}
}

func requestPausedEvent(reqID network.RequestID, url string) *fetch.EventRequestPaused {
	return &fetch.EventRequestPaused{
		RequestID: fetch.RequestID("interception-" + reqID),
		Request: &network.Request{
			URL:     url,
			Method:  "GET",
			Headers: network.Headers{"Accept": "*/*"},
		},
		ResourceType: network.ResourceTypeFetch,
		NetworkID:    reqID,
	}
}

// The willBeSent and paused events for the same request arrive in either
// order. The request must only be handled once both are in, whichever came
// first.
func TestNetworkManagerRequestEventPairing(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		pausedFirst bool
	}{
		{name: "will_be_sent_first", pausedFirst: false},
		{name: "paused_first", pausedFirst: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			nm, _, _ := newTestNetworkManager(t, ctx, true)

			willBeSent := requestWillBeSentEvent("1234", "http://test/")
			paused := requestPausedEvent("1234", "http://test/")

			if tc.pausedFirst {
				nm.onRequestPaused(paused)
				require.Nil(t, nm.requestFromID("1234"), "request handled with only half the events")
				nm.onRequestWillBeSent(willBeSent)
			} else {
				nm.onRequestWillBeSent(willBeSent)
				require.Nil(t, nm.requestFromID("1234"), "request handled with only half the events")
				nm.onRequestPaused(paused)
			}

			req := nm.requestFromID("1234")
			require.NotNil(t, req)
			assert.Equal(t, "http://test/", req.URL())
			assert.Equal(t, paused.RequestID, req.interceptionID)

			// Both parked-event tables must be drained.
			nm.eventsWillBeSentMu.RLock()
			assert.Empty(t, nm.reqIDToRequestWillBeSentEvent)
			nm.eventsWillBeSentMu.RUnlock()
			nm.eventsPausedMu.RLock()
			assert.Empty(t, nm.reqIDToPausedRequest)
			nm.eventsPausedMu.RUnlock()
		})
	}
}

func TestNetworkManagerContinuesWithoutRoutes(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	nm, session, _ := newTestNetworkManager(t, ctx, true)

	nm.onRequestPaused(requestPausedEvent("1234", "http://test/"))

	assert.Equal(t, []string{fetch.CommandContinueRequest}, session.calls())
}

func TestNetworkManagerDispatchRoute(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	nm, session, page := newTestNetworkManager(t, ctx, true)

	routeCh := make(chan *Route, 1)
	page.route = func(r *Route) { routeCh <- r }

	nm.onRequestWillBeSent(requestWillBeSentEvent("1234", "http://test/"))
	nm.onRequestPaused(requestPausedEvent("1234", "http://test/"))

	var route *Route
	select {
	case route = <-routeCh:
	case <-time.After(time.Second):
		t.Fatal("route handler was never called")
	}
	assert.Equal(t, "http://test/", route.Request().URL())
	// The request stays paused until the handler disposes of it.
	assert.Empty(t, session.calls())

	require.NoError(t, route.Continue(ContinueOptions{}))
	assert.Equal(t, []string{fetch.CommandContinueRequest}, session.calls())

	// A route is disposed of exactly once.
	require.ErrorIs(t, route.Abort("failed"), ErrRequestHandled)
	require.ErrorIs(t, route.Fulfill(FulfillOptions{}), ErrRequestHandled)
}

func TestNetworkManagerRouteAbort(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	nm, session, page := newTestNetworkManager(t, ctx, true)

	routeCh := make(chan *Route, 1)
	page.route = func(r *Route) { routeCh <- r }

	nm.onRequestWillBeSent(requestWillBeSentEvent("1234", "http://test/"))
	nm.onRequestPaused(requestPausedEvent("1234", "http://test/"))

	route := <-routeCh
	require.NoError(t, route.Abort(""))
	assert.Equal(t, []string{fetch.CommandFailRequest}, session.calls())
}

func TestNetworkManagerRouteFulfill(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	nm, session, page := newTestNetworkManager(t, ctx, true)

	routeCh := make(chan *Route, 1)
	page.route = func(r *Route) { routeCh <- r }

	var fulfilled *fetch.FulfillRequestParams
	var mu sync.Mutex
	session.setExecuteHook(func(method string, params easyjson.Marshaler, res easyjson.Unmarshaler) (bool, error) {
		if p, ok := params.(*fetch.FulfillRequestParams); ok {
			mu.Lock()
			fulfilled = p
			mu.Unlock()
		}
		return false, nil
	})

	nm.onRequestWillBeSent(requestWillBeSentEvent("1234", "http://test/"))
	nm.onRequestPaused(requestPausedEvent("1234", "http://test/"))

	route := <-routeCh
	require.NoError(t, route.Fulfill(FulfillOptions{
		Status:      201,
		ContentType: "text/plain",
		Body:        []byte("hello"),
	}))

	assert.Equal(t, []string{fetch.CommandFulfillRequest}, session.calls())
	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, fulfilled)
	assert.EqualValues(t, 201, fulfilled.ResponseCode)
	require.Len(t, fulfilled.ResponseHeaders, 1)
	assert.Equal(t, "Content-Type", fulfilled.ResponseHeaders[0].Name)
}

func TestNetworkManagerAbortRequestUnknownErrorCode(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	nm, _, _ := newTestNetworkManager(t, ctx, true)

	require.Error(t, nm.AbortRequest("1234", "bogus"))
}

func TestNetworkManagerAuthRequired(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	nm, session, _ := newTestNetworkManager(t, ctx, true)
	nm.credentials = Credentials{Username: "user", Password: "pass"}

	var responses []*fetch.AuthChallengeResponse
	var mu sync.Mutex
	session.setExecuteHook(func(method string, params easyjson.Marshaler, res easyjson.Unmarshaler) (bool, error) {
		if p, ok := params.(*fetch.ContinueWithAuthParams); ok {
			mu.Lock()
			responses = append(responses, p.AuthChallengeResponse)
			mu.Unlock()
		}
		return false, nil
	})

	ev := &fetch.EventAuthRequired{
		RequestID: "1234",
		Request:   &network.Request{URL: "http://test/", Method: "GET"},
	}

	// First challenge: try the credentials once.
	nm.onAuthRequired(ev)
	// Second challenge for the same request: the credentials were wrong,
	// give up instead of looping.
	nm.onAuthRequired(ev)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, responses, 2)
	assert.Equal(t, fetch.AuthChallengeResponseResponseProvideCredentials, responses[0].Response)
	assert.Equal(t, "user", responses[0].Username)
	assert.Equal(t, fetch.AuthChallengeResponseResponseCancelAuth, responses[1].Response)
	assert.Empty(t, responses[1].Username)
}

func TestNetworkManagerSkipsInternalURLs(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	nm, _, _ := newTestNetworkManager(t, ctx, false)

	nm.onRequestWillBeSent(requestWillBeSentEvent("1234", "data:text/plain,hello"))

	assert.Nil(t, nm.requestFromID("1234"))
}

// An interceptor forwarding a paused request to a real backend and fulfilling
// with whatever it answered.
func TestNetworkManagerRouteFulfillFromBackend(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	nm, session, page := newTestNetworkManager(t, ctx, true)

	backend := assetsrv.NewServer(t)
	backend.Static("/asset.js", "application/javascript", "window.__asset = 1;")

	var fulfilled *fetch.FulfillRequestParams
	var mu sync.Mutex
	session.setExecuteHook(func(method string, params easyjson.Marshaler, res easyjson.Unmarshaler) (bool, error) {
		if p, ok := params.(*fetch.FulfillRequestParams); ok {
			mu.Lock()
			fulfilled = p
			mu.Unlock()
		}
		return false, nil
	})

	doneCh := make(chan error, 1)
	page.route = func(r *Route) {
		resp, err := http.Get(r.Request().URL())
		if err != nil {
			doneCh <- err
			return
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			doneCh <- err
			return
		}
		doneCh <- r.Fulfill(FulfillOptions{
			Status:      int64(resp.StatusCode),
			ContentType: resp.Header.Get("Content-Type"),
			Body:        body,
		})
	}

	url := backend.URL("/asset.js")
	nm.onRequestWillBeSent(requestWillBeSentEvent("1234", url))
	nm.onRequestPaused(requestPausedEvent("1234", url))

	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("interceptor never disposed of the request")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, fulfilled)
	assert.EqualValues(t, 200, fulfilled.ResponseCode)
	body, err := base64.StdEncoding.DecodeString(fulfilled.Body)
	require.NoError(t, err)
	assert.Equal(t, "window.__asset = 1;", string(body))
}

// A handler in place when the browser pauses a request must still receive it
// even if the route is removed before the willBeSent counterpart pairs up.
func TestNetworkManagerRouteRemovedAfterPause(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	nm, session, page := newTestNetworkManager(t, ctx, true)

	routeCh := make(chan *Route, 1)
	page.route = func(r *Route) { routeCh <- r }

	nm.onRequestPaused(requestPausedEvent("1234", "http://test/"))
	// The request stays paused for the handler, not continued.
	assert.Empty(t, session.calls())

	page.route = nil
	nm.onRequestWillBeSent(requestWillBeSentEvent("1234", "http://test/"))

	var route *Route
	select {
	case route = <-routeCh:
	case <-time.After(time.Second):
		t.Fatal("handler never received the request it was holding")
	}
	require.NoError(t, route.Continue(ContinueOptions{}))
	assert.Equal(t, []string{fetch.CommandContinueRequest}, session.calls())
}
