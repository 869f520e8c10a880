package common

import (
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	cdppage "github.com/chromedp/cdproto/page"
	"golang.org/x/net/context"
)

// Dialog is a JavaScript dialog box (alert, confirm, prompt or beforeunload)
// that opened on a page. Page script stays blocked until the dialog is
// handled with Accept or Dismiss. When no dialog listener is registered on
// the page, the frame session handles the dialog automatically.
type Dialog struct {
	ctx     context.Context
	session session

	mu      sync.Mutex
	handled bool

	// Type is the dialog type: "alert", "confirm", "prompt" or "beforeunload".
	Type string

	// Message is the message the dialog displayed.
	Message string

	// DefaultValue is the default value of a prompt dialog.
	DefaultValue string

	// URL of the frame that opened the dialog.
	URL string
}

// Accept accepts the dialog, entering promptText into a prompt dialog.
// promptText is ignored for other dialog types.
func (d *Dialog) Accept(promptText string) error {
	return d.handle(true, promptText)
}

// Dismiss dismisses the dialog.
func (d *Dialog) Dismiss() error {
	return d.handle(false, "")
}

func (d *Dialog) handle(accept bool, promptText string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handled {
		return fmt.Errorf("dialog %q was already handled", d.Type)
	}
	d.handled = true

	action := cdppage.HandleJavaScriptDialog(accept)
	if promptText != "" {
		action = action.WithPromptText(promptText)
	}
	if err := action.Do(cdp.WithExecutor(d.ctx, d.session)); err != nil {
		return fmt.Errorf("handling dialog: %w", err)
	}
	return nil
}

// autoHandle dismisses the dialog, except beforeunload dialogs which need
// to be accepted so the unload can proceed.
func (d *Dialog) autoHandle() error {
	if d.Type == cdppage.DialogTypeBeforeunload.String() {
		return d.Accept("")
	}
	return d.Dismiss()
}
