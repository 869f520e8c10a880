package common

import "time"

// PageOptions are the launch-time settings of a page driver.
type PageOptions struct {
	// BypassCSP disables the page's content security policy.
	BypassCSP bool

	// IgnoreHTTPSErrors ignores certificate errors while loading.
	IgnoreHTTPSErrors bool

	// UserAgent overrides the browser's user agent string.
	UserAgent string

	// Offline emulates a dropped network connection.
	Offline bool

	// HTTPCredentials are used to answer HTTP authentication challenges.
	HTTPCredentials Credentials

	// Viewport is the emulated viewport size. A nil viewport leaves the
	// browser window size untouched.
	Viewport *Viewport

	// ExtraHTTPHeaders are sent with every request of the page.
	ExtraHTTPHeaders map[string]string
}

// NewPageOptions returns page options with a default desktop viewport.
func NewPageOptions() *PageOptions {
	return &PageOptions{
		Viewport: &Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight},
	}
}

// PageScreenshotOptions represents the options for a page screenshot.
type PageScreenshotOptions struct {
	Clip           *Rect       `json:"clip"`
	Path           string      `json:"path"`
	Format         ImageFormat `json:"format"`
	FullPage       bool        `json:"fullPage"`
	OmitBackground bool        `json:"omitBackground"`
	Quality        int64       `json:"quality"`
}

// NewPageScreenshotOptions returns default screenshot options: a PNG capture
// of the current viewport.
func NewPageScreenshotOptions() *PageScreenshotOptions {
	return &PageScreenshotOptions{
		Format:  ImageFormatPNG,
		Quality: 100,
	}
}

// PageReloadOptions represents the options for a page reload.
type PageReloadOptions struct {
	WaitUntil     LifecycleEvent `json:"waitUntil"`
	MinSettleTime time.Duration  `json:"minSettleTime"`
	Timeout       time.Duration  `json:"timeout"`
}

// NewPageReloadOptions creates a new PageReloadOptions with default values.
func NewPageReloadOptions(defaultTimeout time.Duration) *PageReloadOptions {
	return &PageReloadOptions{
		WaitUntil: LifecycleEventNetworkIdle,
		Timeout:   defaultTimeout,
	}
}
