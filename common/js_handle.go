package common

import (
	"context"
	"fmt"

	"github.com/zoltan-boros/puppeteer/log"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
)

// JSHandle is a reference to a JS object living in the browser.
type JSHandle interface {
	AsBaseJSHandle() *BaseJSHandle
	Dispose() error
	Evaluate(js string, args ...interface{}) (interface{}, error)
	EvaluateHandle(js string, args ...interface{}) (JSHandle, error)
	GetProperties() (map[string]JSHandle, error)
	JSONValue() (interface{}, error)
	ObjectID() runtime.RemoteObjectID
	String() string
}

// Ensure BaseJSHandle implements the JSHandle interface.
var _ JSHandle = &BaseJSHandle{}

// BaseJSHandle represents a JS object in an execution context.
type BaseJSHandle struct {
	ctx          context.Context
	logger       *log.Logger
	session      session
	execCtx      *ExecutionContext
	frame        *Frame
	remoteObject *runtime.RemoteObject
	disposed     bool
}

// NewJSHandle creates a new JS handle referencing a remote object.
func NewJSHandle(
	ctx context.Context,
	s session,
	ectx *ExecutionContext,
	f *Frame,
	ro *runtime.RemoteObject,
	l *log.Logger,
) JSHandle {
	return &BaseJSHandle{
		ctx:          ctx,
		session:      s,
		execCtx:      ectx,
		frame:        f,
		remoteObject: ro,
		disposed:     false,
		logger:       l,
	}
}

// AsBaseJSHandle returns the underlying base JS handle.
func (h *BaseJSHandle) AsBaseJSHandle() *BaseJSHandle {
	return h
}

// Dispose releases the remote object.
func (h *BaseJSHandle) Dispose() error {
	if h.disposed {
		return nil
	}
	h.disposed = true
	if h.remoteObject.ObjectID == "" {
		return nil
	}
	action := runtime.ReleaseObject(h.remoteObject.ObjectID)
	if err := action.Do(cdp.WithExecutor(h.ctx, h.session)); err != nil {
		return fmt.Errorf("cannot release object (%s): %w", h.remoteObject.ObjectID, err)
	}
	return nil
}

// Evaluate will evaluate provided JS in the context of this handle, passing
// the handle as the first argument.
func (h *BaseJSHandle) Evaluate(js string, args ...interface{}) (interface{}, error) {
	args = append([]interface{}{h}, args...)
	return h.execCtx.Eval(h.ctx, js, args...)
}

// EvaluateHandle will evaluate provided JS in the context of this handle,
// passing the handle as the first argument.
func (h *BaseJSHandle) EvaluateHandle(js string, args ...interface{}) (JSHandle, error) {
	args = append([]interface{}{h}, args...)
	return h.execCtx.EvalHandle(h.ctx, js, args...)
}

// GetProperties retrieves the handle's own properties as new handles.
func (h *BaseJSHandle) GetProperties() (map[string]JSHandle, error) {
	action := runtime.GetProperties(h.remoteObject.ObjectID).
		WithOwnProperties(true)
	result, _, _, _, err := action.Do(cdp.WithExecutor(h.ctx, h.session))
	if err != nil {
		return nil, fmt.Errorf("cannot get properties of object (%s): %w", h.remoteObject.ObjectID, err)
	}

	props := make(map[string]JSHandle, len(result))
	for _, r := range result {
		if !r.Enumerable {
			continue
		}
		props[r.Name] = NewJSHandle(h.ctx, h.session, h.execCtx, h.frame, r.Value, h.logger)
	}

	return props, nil
}

// JSONValue returns a JSON serializable version of the remote object.
func (h *BaseJSHandle) JSONValue() (interface{}, error) {
	remoteObject := h.remoteObject
	if remoteObject.ObjectID != "" {
		var err error
		action := runtime.CallFunctionOn("function() { return this; }").
			WithReturnByValue(true).
			WithAwaitPromise(true).
			WithObjectID(h.remoteObject.ObjectID)
		if remoteObject, _, err = action.Do(cdp.WithExecutor(h.ctx, h.session)); err != nil {
			return nil, fmt.Errorf("cannot serialize object (%s): %w", h.remoteObject.ObjectID, err)
		}
	}
	res, err := valueFromRemoteObject(remoteObject)
	if err != nil {
		if err = handleParseRemoteObjectErr(err, h.logger.Entry("JSHandle:JSONValue")); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// ObjectID returns the remote object ID.
func (h *BaseJSHandle) ObjectID() runtime.RemoteObjectID {
	return h.remoteObject.ObjectID
}

// String returns a text representation of the referenced remote object.
func (h *BaseJSHandle) String() string {
	if h.remoteObject.ObjectID != "" {
		s := h.remoteObject.Type.String()
		if h.remoteObject.Subtype != "" {
			s = h.remoteObject.Subtype.String()
		}
		if h.remoteObject.ClassName != "" {
			s = h.remoteObject.ClassName
		}
		return "JSHandle@" + s
	}
	v, err := parseRemoteObject(h.remoteObject)
	if err != nil {
		return fmt.Sprintf("JSHandle@<%s>", err)
	}
	return fmt.Sprintf("%v", v)
}
