package common

import (
	"context"
	"fmt"
	"regexp"

	"github.com/zoltan-boros/puppeteer/log"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
)

const evaluationScriptURL = "__puppeteer_evaluation_script__"

// executionWorld names the JS world an execution context belongs to.
type executionWorld string

const (
	// mainWorld is the page's own JS world, shared with page scripts.
	mainWorld executionWorld = "main"
	// utilityWorld is an isolated world for driver-internal scripts.
	utilityWorld executionWorld = "utility"
)

func (ew executionWorld) valid() bool {
	return ew == mainWorld || ew == utilityWorld
}

var sourceURLRegex = regexp.MustCompile(`^(?s)[\040\t]*//[@#] sourceURL=\s*(\S*?)\s*$`)

type evalOptions struct {
	forceCallable, returnByValue bool
}

func (ea evalOptions) String() string {
	return fmt.Sprintf("forceCallable:%t returnByValue:%t", ea.forceCallable, ea.returnByValue)
}

// ExecutionContext represents a JS execution context.
type ExecutionContext struct {
	ctx     context.Context
	logger  *log.Logger
	session session
	frame   *Frame
	id      runtime.ExecutionContextID

	// Used for logging
	sid  target.SessionID // Session ID
	stid cdp.FrameID      // Session TargetID
	fid  cdp.FrameID      // Frame ID
	furl string           // Frame URL
}

// NewExecutionContext creates a new JS execution context.
func NewExecutionContext(
	ctx context.Context, s session, f *Frame, id runtime.ExecutionContextID, l *log.Logger,
) *ExecutionContext {
	e := &ExecutionContext{
		ctx:     ctx,
		session: s,
		frame:   f,
		id:      id,
		logger:  l,
	}
	if s != nil {
		e.sid = s.ID()
		e.stid = cdp.FrameID(s.TargetID())
	}
	if f != nil {
		e.fid = cdp.FrameID(f.ID())
		e.furl = f.URL()
	}
	l.Debugf(
		"NewExecutionContext",
		"sid:%s stid:%s fid:%s ectxid:%d furl:%q",
		e.sid, e.stid, e.fid, id, e.furl)

	return e
}

// eval will evaluate provided callable within this execution context and return by value or handle.
func (e *ExecutionContext) eval(
	apiCtx context.Context, opts evalOptions, js string, args ...interface{},
) (interface{}, error) {
	e.logger.Debugf(
		"ExecutionContext:eval",
		"sid:%s stid:%s fid:%s ectxid:%d furl:%q %s",
		e.sid, e.stid, e.fid, e.id, e.furl, opts)

	suffix := `//# sourceURL=` + evaluationScriptURL

	var action interface {
		Do(context.Context) (*runtime.RemoteObject, *runtime.ExceptionDetails, error)
	}

	if !opts.forceCallable {
		if !sourceURLRegex.Match([]byte(js)) {
			js += "\n" + suffix
		}

		action = runtime.Evaluate(js).
			WithContextID(e.id).
			WithReturnByValue(opts.returnByValue).
			WithAwaitPromise(true).
			WithUserGesture(true)
	} else {
		var arguments []*runtime.CallArgument
		for _, arg := range args {
			result, err := convertArgument(apiCtx, e, arg)
			if err != nil {
				return nil, fmt.Errorf("cannot convert argument (%q) "+
					"in execution context (%d) in frame (%v): %w",
					arg, e.id, e.Frame().ID(), err)
			}
			arguments = append(arguments, result)
		}

		js += "\n" + suffix + "\n"
		action = runtime.CallFunctionOn(js).
			WithArguments(arguments).
			WithExecutionContextID(e.id).
			WithReturnByValue(opts.returnByValue).
			WithAwaitPromise(true).
			WithUserGesture(true)
	}

	var (
		remoteObject     *runtime.RemoteObject
		exceptionDetails *runtime.ExceptionDetails
		err              error
	)
	if remoteObject, exceptionDetails, err = action.Do(cdp.WithExecutor(apiCtx, e.session)); err != nil {
		return nil, fmt.Errorf("cannot call function on expression (%q) "+
			"in execution context (%d) in frame (%v) with session (%v): %w",
			js, e.id, e.Frame().ID(), e.session.ID(), err)
	}
	if exceptionDetails != nil {
		return nil, errorFromExceptionDetails(exceptionDetails)
	}
	var res interface{}
	if remoteObject == nil {
		e.logger.Debugf(
			"ExecutionContext:eval",
			"sid:%s stid:%s fid:%s ectxid:%d furl:%q remoteObject is nil",
			e.sid, e.stid, e.fid, e.id, e.furl)
		return res, nil
	}

	if opts.returnByValue {
		res, err = valueFromRemoteObject(remoteObject)
		if err != nil {
			if err = handleParseRemoteObjectErr(err, e.logger.Entry("ExecutionContext:eval")); err != nil {
				return nil, fmt.Errorf("cannot extract value from remote object (%s) "+
					"using (%s) in execution context (%d) in frame (%v): %w",
					remoteObject.ObjectID, js, e.id, e.Frame().ID(), err)
			}
		}
	} else if remoteObject.ObjectID != "" {
		// Note: we don't use the passed in apiCtx here as it could be tied to a timeout
		res = NewJSHandle(e.ctx, e.session, e, e.frame, remoteObject, e.logger)
	}

	return res, nil
}

// Eval evaluates the provided page function within this execution context and
// returns its result by value.
func (e *ExecutionContext) Eval(
	apiCtx context.Context, js string, args ...interface{},
) (interface{}, error) {
	opts := evalOptions{
		forceCallable: true,
		returnByValue: true,
	}
	return e.eval(apiCtx, opts, js, args...)
}

// EvalHandle evaluates the provided page function within this execution
// context and returns a handle to its result.
func (e *ExecutionContext) EvalHandle(
	apiCtx context.Context, js string, args ...interface{},
) (JSHandle, error) {
	opts := evalOptions{
		forceCallable: true,
		returnByValue: false,
	}
	res, err := e.eval(apiCtx, opts, js, args...)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	handle, ok := res.(JSHandle)
	if !ok {
		return nil, fmt.Errorf("unexpected evaluation result type: %T", res)
	}
	return handle, nil
}

// Frame returns the frame that this execution context belongs to.
func (e *ExecutionContext) Frame() *Frame {
	return e.frame
}

// ID returns the CDP runtime ID of this execution context.
func (e *ExecutionContext) ID() runtime.ExecutionContextID {
	return e.id
}
