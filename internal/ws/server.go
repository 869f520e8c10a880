// Package ws provides a websocket test server that can stand in for a real
// CDP compatible browser in wire-level tests.
package ws

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
	"github.com/mccutchen/go-httpbin/httpbin"
)

// Server can be used as a test alternative to a real CDP compatible browser.
type Server struct {
	t          testing.TB
	Mux        *http.ServeMux
	ServerHTTP *httptest.Server
	Context    context.Context
}

// NewServer returns a fully configured and running WS test server.
func NewServer(t testing.TB, opts ...func(*Server)) *Server {
	t.Helper()

	// Create a http.ServeMux and set the httpbin handler as the default
	mux := http.NewServeMux()
	mux.Handle("/", httpbin.New().Handler())

	server := httptest.NewServer(mux)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	s := &Server{
		t:          t,
		Mux:        mux,
		ServerHTTP: server,
		Context:    ctx,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// URL returns the ws:// URL of the given path on the server.
func (s *Server) URL(path string) string {
	return "ws" + strings.TrimPrefix(s.ServerHTTP.URL, "http") + path
}

// WithClosureAbnormalHandler attaches an abnormal closure behavior to Server.
func WithClosureAbnormalHandler(path string) func(*Server) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, req, w.Header())
		if err != nil {
			return
		}
		// This forces a connection closure without a proper WS close
		// message exchange.
		_ = conn.Close()
	}
	return func(s *Server) {
		s.Mux.Handle(path, http.HandlerFunc(handler))
	}
}

// WithEchoHandler attaches an echo handler to Server.
func WithEchoHandler(path string) func(*Server) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, req, w.Header())
		if err != nil {
			return
		}
		messageType, r, e := conn.NextReader()
		if e != nil {
			return
		}
		var wc io.WriteCloser
		wc, err = conn.NextWriter(messageType)
		if err != nil {
			return
		}
		if _, err = io.Copy(wc, r); err != nil {
			return
		}
		if err = wc.Close(); err != nil {
			return
		}
		err = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(10*time.Second),
		)
		if err != nil {
			return
		}
	}
	return func(s *Server) {
		s.Mux.Handle(path, http.HandlerFunc(handler))
	}
}

// WithCDPHandler attaches a custom CDP handler function to Server.
func WithCDPHandler(
	path string,
	fn func(conn *websocket.Conn, msg *cdproto.Message, writeCh chan cdproto.Message, done chan struct{}),
	cmdsReceived *[]cdproto.MethodType,
) func(*Server) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, req, w.Header())
		if err != nil {
			return
		}

		done := make(chan struct{})
		writeCh := make(chan cdproto.Message)

		go func() {
			read := func(conn *websocket.Conn) (*cdproto.Message, error) {
				_, buf, err := conn.ReadMessage()
				if err != nil {
					return nil, err
				}

				var msg cdproto.Message
				decoder := jlexer.Lexer{Data: buf}
				msg.UnmarshalEasyJSON(&decoder)
				if err := decoder.Error(); err != nil {
					return nil, err
				}

				return &msg, nil
			}

			for {
				select {
				case <-done:
					return
				default:
				}

				msg, err := read(conn)
				if err != nil {
					close(done)
					return
				}

				if msg.Method != "" && cmdsReceived != nil {
					*cmdsReceived = append(*cmdsReceived, msg.Method)
				}

				fn(conn, msg, writeCh, done)
			}
		}()

		go func() {
			write := func(conn *websocket.Conn, msg *cdproto.Message) {
				encoder := jwriter.Writer{}
				msg.MarshalEasyJSON(&encoder)
				if err := encoder.Error; err != nil {
					return
				}

				writer, err := conn.NextWriter(websocket.TextMessage)
				if err != nil {
					return
				}
				if _, err := encoder.DumpTo(writer); err != nil {
					return
				}
				if err := writer.Close(); err != nil {
					return
				}
			}

			for {
				select {
				case msg := <-writeCh:
					write(conn, &msg)
				case <-done:
					return
				}
			}
		}()

		<-done // Wait for done channel to be closed before closing connection
	}
	return func(s *Server) {
		s.Mux.Handle(path, http.HandlerFunc(handler))
	}
}

// CDPDefaultHandler is a default handler for the CDP WS server.
func CDPDefaultHandler(conn *websocket.Conn, msg *cdproto.Message, writeCh chan cdproto.Message, done chan struct{}) {
	const (
		targetAttachedToTargetEvent = `
		{
			"sessionId": "session_id_0123456789",
			"targetInfo": {
				"targetId": "target_id_0123456789",
				"type": "page",
				"title": "",
				"url": "about:blank",
				"attached": true,
				"browserContextId": "browser_context_id_0123456789"
			},
			"waitingForDebugger": false
		}`

		targetAttachedToTargetResult = `
		{
			"sessionId":"session_id_0123456789"
		}`
	)

	if msg.SessionID != "" && msg.Method != "" {
		writeCh <- cdproto.Message{
			ID:        msg.ID,
			SessionID: msg.SessionID,
			Result:    easyjson.RawMessage([]byte("{}")),
		}
	} else if msg.Method != "" {
		switch msg.Method {
		case cdproto.MethodType(cdproto.CommandTargetAttachToTarget):
			writeCh <- cdproto.Message{
				Method: cdproto.EventTargetAttachedToTarget,
				Params: easyjson.RawMessage([]byte(targetAttachedToTargetEvent)),
			}
			writeCh <- cdproto.Message{
				ID:        msg.ID,
				SessionID: msg.SessionID,
				Result:    easyjson.RawMessage([]byte(targetAttachedToTargetResult)),
			}
		default:
			writeCh <- cdproto.Message{
				ID:        msg.ID,
				SessionID: msg.SessionID,
				Result:    easyjson.RawMessage([]byte("{}")),
			}
		}
	}
}
