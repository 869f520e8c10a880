package common

import "time"

const (
	// Defaults

	DefaultViewportWidth  int64         = 1280
	DefaultViewportHeight int64         = 720
	DefaultTimeout        time.Duration = 30 * time.Second

	// BlankPage is the about:blank page.
	BlankPage = "about:blank"

	// Life-cycle consts

	// LifeCycleNetworkIdleTimeout is how long a frame's in-flight request
	// set has to stay empty before the frame is considered network idle.
	LifeCycleNetworkIdleTimeout time.Duration = 500 * time.Millisecond
)
