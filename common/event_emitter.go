package common

import (
	"context"
)

// Ensure BaseEventEmitter implements the EventEmitter interface.
var _ EventEmitter = &BaseEventEmitter{}

const (
	// Connection

	EventConnectionClose string = "close"

	// Frame

	EventFrameNavigation      string = "navigation"
	EventFrameAddLifecycle    string = "addlifecycle"
	EventFrameRemoveLifecycle string = "removelifecycle"

	// Page

	EventPageClose            string = "close"
	EventPageConsole          string = "console"
	EventPageCrash            string = "crash"
	EventPageDialog           string = "dialog"
	EventPageDOMContentLoaded string = "domcontentloaded"
	EventPageFrameAttached    string = "frameattached"
	EventPageFrameDetached    string = "framedetached"
	EventPageFrameNavigated   string = "framenavigated"
	EventPageLoad             string = "load"
	EventPageError            string = "pageerror"
	EventPageRequest          string = "request"
	EventPageRequestFailed    string = "requestfailed"
	EventPageRequestFinished  string = "requestfinished"
	EventPageResponse         string = "response"

	// Session

	EventSessionClosed string = "close"
)

// Event as emitted by an EventEmiter.
type Event struct {
	typ  string
	data interface{}
}

// NavigationEvent is emitted on a frame for every committed, same-document
// or aborted navigation.
type NavigationEvent struct {
	newDocument *DocumentInfo
	url         string
	name        string
	err         error
}

// EventEmitter that all event emitters need to implement.
type EventEmitter interface {
	emit(event string, data interface{})
	on(ctx context.Context, events []string, ch chan Event)
	onAll(ctx context.Context, ch chan Event)
}

// eventHandler drains its queue into the subscriber channel in FIFO order,
// so that a subscriber observes events in the exact order they were emitted
// no matter how slowly it consumes them.
type eventHandler struct {
	ctx   context.Context
	ch    chan Event
	queue chan Event
}

func newEventHandler(ctx context.Context, ch chan Event) eventHandler {
	h := eventHandler{
		ctx:   ctx,
		ch:    ch,
		queue: make(chan Event, 1),
	}
	go h.drain()
	return h
}

func (h eventHandler) drain() {
	var pending []Event
	for {
		var (
			out  chan Event
			next Event
		)
		if len(pending) > 0 {
			out = h.ch
			next = pending[0]
		}
		select {
		case <-h.ctx.Done():
			return
		case ev := <-h.queue:
			pending = append(pending, ev)
		case out <- next:
			pending = pending[1:]
		}
	}
}

func (h eventHandler) enqueue(ev Event) {
	select {
	case <-h.ctx.Done():
	case h.queue <- ev:
	}
}

// BaseEventEmitter emits events to registered handlers.
type BaseEventEmitter struct {
	handlers    map[string][]eventHandler
	handlersAll []eventHandler

	handlersCh chan func() chan struct{}
	ctx        context.Context
}

// NewBaseEventEmitter creates a new instance of a base event emitter.
func NewBaseEventEmitter(ctx context.Context) BaseEventEmitter {
	bem := BaseEventEmitter{
		handlers:    make(map[string][]eventHandler),
		handlersAll: make([]eventHandler, 0),
		handlersCh:  make(chan func() chan struct{}),
		ctx:         ctx,
	}
	go bem.handleHandlers(ctx)
	return bem
}

// handleHandlers handles handlers in a single Goroutine.
// It basically processes one request at a time for synchronization.
func (e *BaseEventEmitter) handleHandlers(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-e.handlersCh:
			select {
			case <-ctx.Done():
				return
			default:
			}
			done := fn()
			done <- struct{}{}
		}
	}
}

// sync is a helper for sychronized access to the BaseEventEmitter.
func (e *BaseEventEmitter) sync(fn func()) {
	done := make(chan struct{})
	select {
	case <-e.ctx.Done():
		return
	case e.handlersCh <- func() chan struct{} {
		fn()
		return done
	}:
	}
	<-done
}

func (e *BaseEventEmitter) emit(event string, data interface{}) {
	e.sync(func() {
		handlers := e.handlers[event]
		for i := 0; i < len(handlers); {
			handler := handlers[i]
			select {
			case <-handler.ctx.Done():
				handlers = append(handlers[:i], handlers[i+1:]...)
				continue
			default:
				handler.enqueue(Event{event, data})
				i++
			}
		}
		e.handlers[event] = handlers

		handlers = e.handlersAll
		for i := 0; i < len(handlers); {
			handler := handlers[i]
			select {
			case <-handler.ctx.Done():
				handlers = append(handlers[:i], handlers[i+1:]...)
				continue
			default:
				handler.enqueue(Event{event, data})
				i++
			}
		}
		e.handlersAll = handlers
	})
}

// hasListeners reports whether any live handler is registered for the event.
func (e *BaseEventEmitter) hasListeners(event string) bool {
	var has bool
	e.sync(func() {
		for _, handler := range e.handlers[event] {
			select {
			case <-handler.ctx.Done():
			default:
				has = true
				return
			}
		}
		for _, handler := range e.handlersAll {
			select {
			case <-handler.ctx.Done():
			default:
				has = true
				return
			}
		}
	})
	return has
}

// On registers a handler for specific events.
func (e *BaseEventEmitter) on(ctx context.Context, events []string, ch chan Event) {
	e.sync(func() {
		eh := newEventHandler(ctx, ch)
		for _, event := range events {
			e.handlers[event] = append(e.handlers[event], eh)
		}
	})
}

// OnAll registers a handler for all events.
func (e *BaseEventEmitter) onAll(ctx context.Context, ch chan Event) {
	e.sync(func() {
		e.handlersAll = append(e.handlersAll, newEventHandler(ctx, ch))
	})
}
