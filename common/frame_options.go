package common

import (
	"time"
)

// FrameGotoOptions control a frame navigation.
type FrameGotoOptions struct {
	// Referer is sent as the document request's referer header.
	Referer string `json:"referer"`

	// Timeout bounds the whole navigation, from issuing the navigate
	// command until the page settles.
	Timeout time.Duration `json:"timeout"`

	// WaitUntil is the lifecycle milestone the navigation waits for.
	// Reaching load is always required, even for network idle waits.
	WaitUntil LifecycleEvent `json:"waitUntil" js:"waitUntil"`

	// MinSettleTime is how long the document's request set must stay empty
	// before the page counts as network idle. Every request start restarts
	// the window. Zero means the default settle window.
	MinSettleTime time.Duration `json:"minSettleTime"`
}

// NewFrameGotoOptions creates a new set of frame navigation options with
// sane defaults.
func NewFrameGotoOptions(defaultReferer string, defaultTimeout time.Duration) *FrameGotoOptions {
	return &FrameGotoOptions{
		Referer:   defaultReferer,
		Timeout:   defaultTimeout,
		WaitUntil: LifecycleEventNetworkIdle,
	}
}

// FrameWaitForNavigationOptions control waiting for an in-progress
// navigation to settle.
type FrameWaitForNavigationOptions struct {
	Timeout   time.Duration  `json:"timeout"`
	WaitUntil LifecycleEvent `json:"waitUntil"`
}

// NewFrameWaitForNavigationOptions creates a new set of navigation wait
// options with sane defaults.
func NewFrameWaitForNavigationOptions(defaultTimeout time.Duration) *FrameWaitForNavigationOptions {
	return &FrameWaitForNavigationOptions{
		Timeout:   defaultTimeout,
		WaitUntil: LifecycleEventNetworkIdle,
	}
}
