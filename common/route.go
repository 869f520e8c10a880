package common

import (
	"fmt"
	"sync"

	"github.com/zoltan-boros/puppeteer/log"
)

// RouteHandler is called for every paused request whose URL matched the
// route's pattern. The handler must dispose of the route by calling exactly
// one of Abort, Continue or Fulfill; until then the request stays paused in
// the browser.
type RouteHandler func(*Route)

// ContinueOptions are the overrides applied when continuing an intercepted
// request.
type ContinueOptions struct {
	Headers  []HTTPHeader
	Method   string
	PostData []byte
	URL      string
}

// FulfillOptions are used when fulfilling an intercepted request with a
// synthesized response.
type FulfillOptions struct {
	Body        []byte
	ContentType string
	Headers     []HTTPHeader
	Status      int64
}

// Route allows to handle a paused request: it can be aborted, continued
// (optionally modified) or fulfilled with a synthesized response.
type Route struct {
	logger         *log.Logger
	networkManager *NetworkManager

	mu      sync.Mutex
	handled bool
	request *Request
}

// NewRoute creates a new route that allows to modify a paused request's
// behavior.
func NewRoute(logger *log.Logger, networkManager *NetworkManager, request *Request) *Route {
	return &Route{
		logger:         logger,
		networkManager: networkManager,
		request:        request,
		handled:        false,
	}
}

// Request returns the request associated with the route.
func (r *Route) Request() *Request {
	return r.request
}

// Abort aborts the request with the given error code. If the error code is
// empty it defaults to "failed".
func (r *Route) Abort(errorCode string) error {
	if err := r.startHandling(); err != nil {
		return err
	}
	if errorCode == "" {
		errorCode = "failed"
	}
	return r.networkManager.AbortRequest(r.request.interceptionID, errorCode)
}

// Continue continues the request, optionally overriding its URL, method,
// headers or post data.
func (r *Route) Continue(opts ContinueOptions) error {
	if err := r.startHandling(); err != nil {
		return err
	}
	return r.networkManager.ContinueRequest(r.request.interceptionID, opts, r.request.HeadersArray())
}

// Fulfill fulfills the request with the given response.
func (r *Route) Fulfill(opts FulfillOptions) error {
	if err := r.startHandling(); err != nil {
		return err
	}
	return r.networkManager.FulfillRequest(r.request, opts)
}

func (r *Route) startHandling() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handled {
		return fmt.Errorf("%w for url %s", ErrRequestHandled, r.request.URL())
	}
	r.handled = true
	return nil
}
