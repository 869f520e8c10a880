package common

import "time"

// TimeoutSettings resolves the effective timeouts for a scope, falling back
// to the parent scope wherever no override is set.
type TimeoutSettings struct {
	parent *TimeoutSettings

	defaultTimeout           *time.Duration
	defaultNavigationTimeout *time.Duration
}

func NewTimeoutSettings(parent *TimeoutSettings) *TimeoutSettings {
	return &TimeoutSettings{parent: parent}
}

func (t *TimeoutSettings) setDefaultTimeout(d time.Duration) {
	t.defaultTimeout = &d
}

func (t *TimeoutSettings) setDefaultNavigationTimeout(d time.Duration) {
	t.defaultNavigationTimeout = &d
}

// navigationTimeout prefers the navigation override, then the general
// override, then whatever the parent scope resolves to.
func (t *TimeoutSettings) navigationTimeout() time.Duration {
	switch {
	case t.defaultNavigationTimeout != nil:
		return *t.defaultNavigationTimeout
	case t.defaultTimeout != nil:
		return *t.defaultTimeout
	case t.parent != nil:
		return t.parent.navigationTimeout()
	}
	return DefaultTimeout
}

func (t *TimeoutSettings) timeout() time.Duration {
	if t.defaultTimeout != nil {
		return *t.defaultTimeout
	}
	if t.parent != nil {
		return t.parent.timeout()
	}
	return DefaultTimeout
}
