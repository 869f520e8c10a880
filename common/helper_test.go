package common

import (
	"context"
	"sync"
	"testing"

	"github.com/zoltan-boros/puppeteer/log"

	"github.com/chromedp/cdproto/cdp"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/mailru/easyjson"
	"github.com/stretchr/testify/require"
)

// Ensure the test doubles implement the interfaces they stand in for.
var (
	_ session    = &fakeSession{}
	_ connection = &fakeConnection{}
)

const testTargetID = target.ID("target_id_0123456789")

// fakeSession implements the session interface to record CDP commands made
// through it and allow assertions in tests. Events emitted on it reach every
// component subscribed to the session, the same way a real session fans out
// protocol events.
type fakeSession struct {
	BaseEventEmitter

	id   target.SessionID
	tid  target.ID
	done chan struct{}

	mu       sync.Mutex
	cdpCalls []string

	// executeHook gets every command first. Returning true takes over the
	// command: its error is the command's result. Returning false falls
	// through to the default responder.
	executeHook func(method string, params easyjson.Marshaler, res easyjson.Unmarshaler) (bool, error)
}

func newFakeSession(ctx context.Context, tid target.ID) *fakeSession {
	return &fakeSession{
		BaseEventEmitter: NewBaseEventEmitter(ctx),
		id:               "session_id_0123456789",
		tid:              tid,
		done:             make(chan struct{}),
	}
}

// setExecuteHook swaps the command hook. Safe to call while the session is
// in use.
func (s *fakeSession) setExecuteHook(
	hook func(method string, params easyjson.Marshaler, res easyjson.Unmarshaler) (bool, error),
) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executeHook = hook
}

func (s *fakeSession) record(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cdpCalls = append(s.cdpCalls, method)
}

func (s *fakeSession) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cdpCalls...)
}

func (s *fakeSession) called(method string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.cdpCalls {
		if m == method {
			return true
		}
	}
	return false
}

func (s *fakeSession) Execute(
	ctx context.Context, method string, params easyjson.Marshaler, res easyjson.Unmarshaler,
) error {
	s.record(method)

	s.mu.Lock()
	hook := s.executeHook
	s.mu.Unlock()
	if hook != nil {
		if handled, err := hook(method, params, res); handled {
			return err
		}
	}

	// A page target always has at least its main frame, and most
	// constructors enumerate the frame tree before anything else.
	if r, ok := res.(*cdppage.GetFrameTreeReturns); ok {
		r.FrameTree = &cdppage.FrameTree{
			Frame: &cdp.Frame{
				ID:       cdp.FrameID(s.tid),
				LoaderID: "loader_id_0123456789",
				URL:      BlankPage,
			},
		}
	}
	return nil
}

func (s *fakeSession) ExecuteWithoutExpectationOnReply(
	ctx context.Context, method string, params easyjson.Marshaler, res easyjson.Unmarshaler,
) error {
	s.record(method)

	s.mu.Lock()
	hook := s.executeHook
	s.mu.Unlock()
	if hook != nil {
		if handled, err := hook(method, params, res); handled {
			return err
		}
	}
	return nil
}

func (s *fakeSession) ID() target.SessionID { return s.id }

func (s *fakeSession) TargetID() target.ID { return s.tid }

func (s *fakeSession) Done() <-chan struct{} { return s.done }

// fakeConnection satisfies the connection interface for pages built against
// a fakeSession.
type fakeConnection struct {
	BaseEventEmitter
}

func newFakeConnection(ctx context.Context) *fakeConnection {
	return &fakeConnection{BaseEventEmitter: NewBaseEventEmitter(ctx)}
}

func (c *fakeConnection) Execute(
	ctx context.Context, method string, params easyjson.Marshaler, res easyjson.Unmarshaler,
) error {
	return nil
}

func (c *fakeConnection) Close(codes ...int) {}

func (c *fakeConnection) getSession(id target.SessionID) *Session { return nil }

// newTestPage builds a page whose frame sessions run against the given fake
// session. The page has its main frame attached and navigated to about:blank.
func newTestPage(tb testing.TB, ctx context.Context, s *fakeSession) *Page {
	tb.Helper()

	p, err := NewPage(ctx, s, newFakeConnection(ctx), s.tid, nil, log.NewNullLogger())
	require.NoError(tb, err)
	require.NotNil(tb, p.MainFrame())
	return p
}
