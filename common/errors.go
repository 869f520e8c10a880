package common

import (
	"errors"
	"fmt"

	"github.com/chromedp/cdproto/runtime"
)

// Error is a common package error.
type Error string

// Error satisfies the builtin error interface.
func (e Error) Error() string {
	return string(e)
}

// Error types.
const (
	ErrChannelClosed         Error = "channel closed"
	ErrConnectionClosed      Error = "connection closed"
	ErrFrameDetached         Error = "frame detached"
	ErrJSHandleDisposed      Error = "JS handle is disposed"
	ErrNavigationPending     Error = "navigation is already pending for this frame"
	ErrRequestHandled        Error = "request is already handled"
	ErrSessionClosed         Error = "session closed"
	ErrTargetClosed          Error = "target closed"
	ErrTargetCrashed         Error = "target has crashed"
	ErrTimedOut              Error = "timed out"
	ErrWrongExecutionContext Error = "JS handles can be evaluated only in the context they were created"
)

// EvaluationError is the remote failure of a script evaluation. It carries
// the message, source position and stack trace reported by the browser.
type EvaluationError struct {
	Message    string
	LineNumber int64
	Column     int64
	Stack      string
}

// Error satisfies the builtin error interface.
func (e *EvaluationError) Error() string {
	if e.Stack != "" {
		return fmt.Sprintf("%s\n%s", e.Message, e.Stack)
	}
	return e.Message
}

func errorFromExceptionDetails(exc *runtime.ExceptionDetails) *EvaluationError {
	if exc == nil {
		return nil
	}
	e := &EvaluationError{
		Message:    exc.Text,
		LineNumber: exc.LineNumber,
		Column:     exc.ColumnNumber,
	}
	if exc.Exception != nil && exc.Exception.Description != "" {
		// The description already contains the stack for thrown Error values.
		e.Message = exc.Exception.Description
	} else if o, _ := parseRemoteObject(exc.Exception); o != nil {
		e.Message = fmt.Sprintf("%s", o)
	}
	if exc.StackTrace != nil {
		for _, f := range exc.StackTrace.CallFrames {
			e.Stack += fmt.Sprintf("\n    at %s (%s:%d:%d)", f.FunctionName, f.URL, f.LineNumber, f.ColumnNumber)
		}
	}
	return e
}

// UnserializableValueError occurs when a JS value cannot be serialized.
type UnserializableValueError struct {
	UnserializableValue runtime.UnserializableValue
}

// Error satisfies the builtin error interface.
func (e UnserializableValueError) Error() string {
	return fmt.Sprintf("unserializable value: %s", e.UnserializableValue)
}

// BigIntParseError occurs when a BigInt value cannot be parsed.
type BigIntParseError struct {
	err error
}

// Error satisfies the builtin error interface.
func (e BigIntParseError) Error() string {
	return fmt.Sprintf("parsing bigint: %s", e.err)
}

// Is satisfies the errors.Is interface.
func (e BigIntParseError) Is(target error) bool {
	var err BigIntParseError
	return errors.As(target, &err)
}

// Unwrap returns the wrapped parsing error.
func (e BigIntParseError) Unwrap() error {
	return e.err
}
