package common

import (
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/net/context"
)

// ExposedFunc is a host function exposed to page script. It is invoked with
// the JSON-deserialized arguments of the in-page call. Returning a *Deferred
// postpones the settlement of the in-page promise until the deferred is
// resolved or rejected.
type ExposedFunc func(args ...any) (any, error)

// Deferred lets an exposed function settle its in-page promise later,
// outside the call that produced it.
type Deferred struct {
	once sync.Once
	ch   chan deferredResult
}

type deferredResult struct {
	value any
	err   error
}

// NewDeferred creates an unsettled deferred result.
func NewDeferred() *Deferred {
	return &Deferred{ch: make(chan deferredResult, 1)}
}

// Resolve settles the deferred with a value. Only the first settlement
// counts.
func (d *Deferred) Resolve(value any) {
	d.once.Do(func() { d.ch <- deferredResult{value: value} })
}

// Reject settles the deferred with an error. Only the first settlement
// counts.
func (d *Deferred) Reject(err error) {
	d.once.Do(func() { d.ch <- deferredResult{err: err} })
}

func (d *Deferred) wait(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-d.ch:
		return r.value, r.err
	}
}

// bindingCall is the payload the in-page stub sends through the CDP binding
// channel for every invocation of an exposed function.
type bindingCall struct {
	Name string            `json:"name"`
	Seq  int64             `json:"seq"`
	Args []json.RawMessage `json:"args"`
}

// bindingWrapScript replaces the raw CDP binding installed by
// Runtime.addBinding with a stub that correlates calls by sequence number
// and returns a promise per call. The host settles the promise through
// deliverBindingResult.
const bindingWrapScript = `(bindingName) => {
	const binding = window[bindingName];
	if (!binding || binding.__installed) {
		return;
	}
	let lastSeq = 0;
	const callbacks = new Map();
	const wrapped = (...args) => {
		return new Promise((resolve, reject) => {
			const seq = ++lastSeq;
			callbacks.set(seq, { resolve, reject });
			binding(JSON.stringify({ name: bindingName, seq, args }));
		});
	};
	wrapped.__installed = true;
	wrapped.__deliver = (seq, error, result) => {
		const callback = callbacks.get(seq);
		if (!callback) {
			return;
		}
		callbacks.delete(seq);
		if (error) {
			callback.reject(new Error(error));
		} else {
			callback.resolve(result);
		}
	};
	window[bindingName] = wrapped;
}`

// deliverBindingResult settles the in-page promise of a binding call in the
// execution context the call originated from.
const deliverBindingResult = `(bindingName, seq, error, result) => {
	const binding = window[bindingName];
	if (binding && binding.__deliver) {
		binding.__deliver(seq, error, result);
	}
}`

// dispatchBindingCall runs an exposed function for a single in-page call and
// delivers the outcome back into the calling execution context. It must run
// on its own goroutine: the function may issue further evaluations through
// the same session, which would deadlock the event pump otherwise.
func dispatchBindingCall(
	ctx context.Context, ec *ExecutionContext, fn ExposedFunc, call bindingCall,
) error {
	args := make([]any, len(call.Args))
	for i, raw := range call.Args {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("decoding argument %d of %q: %w", i, call.Name, err)
		}
		args[i] = v
	}

	result, err := fn(args...)
	if d, ok := result.(*Deferred); ok && err == nil {
		result, err = d.wait(ctx)
	}

	errText := ""
	if err != nil {
		errText = err.Error()
		result = nil
	}
	if _, everr := ec.Eval(ctx, deliverBindingResult, call.Name, call.Seq, errText, result); everr != nil {
		return fmt.Errorf("delivering result of %q: %w", call.Name, everr)
	}
	return nil
}
