// Package assetsrv provides an HTTP asset server for tests that need to
// control individual response timing and content, e.g. to build
// deterministic network-idle scenarios.
package assetsrv

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/mccutchen/go-httpbin/httpbin"
)

// Server serves test assets. Routes registered with SetRoute take precedence;
// everything else falls through to a httpbin handler.
type Server struct {
	t testing.TB

	ServerHTTP *httptest.Server

	mu      sync.Mutex
	routes  map[string]http.HandlerFunc
	waiters map[string][]chan *http.Request
}

// NewServer returns a running asset server. It is shut down with the test.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		t:       t,
		routes:  make(map[string]http.HandlerFunc),
		waiters: make(map[string][]chan *http.Request),
	}
	fallback := httpbin.New().Handler()
	s.ServerHTTP = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.notify(r)

		s.mu.Lock()
		handler, ok := s.routes[r.URL.Path]
		s.mu.Unlock()
		if ok {
			handler(w, r)
			return
		}
		fallback.ServeHTTP(w, r)
	}))
	t.Cleanup(s.ServerHTTP.Close)
	return s
}

// URL returns the absolute URL of the given path on the server.
func (s *Server) URL(path string) string {
	return s.ServerHTTP.URL + path
}

// SetRoute installs a handler for an exact request path, replacing any
// previous handler for it. The handler controls the full response, including
// how long it takes: blocking inside it stalls the matching request, which
// is how tests keep a frame from going network idle.
func (s *Server) SetRoute(path string, handler http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = handler
}

// Static installs a fixed response body with a content type.
func (s *Server) Static(path, contentType, body string) {
	s.SetRoute(path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	})
}

// WaitForRequest returns a channel that receives the next request for the
// path, before its handler runs. Each call registers one observer for one
// request.
func (s *Server) WaitForRequest(path string) <-chan *http.Request {
	ch := make(chan *http.Request, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waiters[path] = append(s.waiters[path], ch)
	return ch
}

func (s *Server) notify(r *http.Request) {
	s.mu.Lock()
	waiters := s.waiters[r.URL.Path]
	delete(s.waiters, r.URL.Path)
	s.mu.Unlock()
	for _, ch := range waiters {
		ch <- r
	}
}
