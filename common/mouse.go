package common

import (
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"golang.org/x/net/context"
)

// Mouse represents a mouse input device.
// Each Page has a publicly accessible Mouse.
type Mouse struct {
	ctx             context.Context
	session         session
	frame           *Frame
	timeoutSettings *TimeoutSettings
	keyboard        *Keyboard

	x      float64
	y      float64
	button input.MouseButton
}

// NewMouse creates a new mouse for the given frame's session.
func NewMouse(
	ctx context.Context, s session, f *Frame, ts *TimeoutSettings, k *Keyboard,
) *Mouse {
	return &Mouse{
		ctx:             ctx,
		session:         s,
		frame:           f,
		timeoutSettings: ts,
		keyboard:        k,
		button:          input.None,
	}
}

// Click moves the mouse to the position and then presses and releases the
// button, clickCount times.
func (m *Mouse) Click(x float64, y float64, opts *MouseClickOptions) error {
	if opts == nil {
		opts = NewMouseClickOptions()
	}
	if err := m.click(x, y, opts); err != nil {
		return fmt.Errorf("clicking on x:%f y:%f: %w", x, y, err)
	}
	return nil
}

// DblClick double-clicks at the position.
func (m *Mouse) DblClick(x float64, y float64, opts *MouseDblClickOptions) error {
	if opts == nil {
		opts = NewMouseDblClickOptions()
	}
	if err := m.click(x, y, opts.ToMouseClickOptions()); err != nil {
		return fmt.Errorf("double clicking on x:%f y:%f: %w", x, y, err)
	}
	return nil
}

// Down presses the mouse button at the current mouse position.
func (m *Mouse) Down(opts *MouseDownUpOptions) error {
	if opts == nil {
		opts = NewMouseDownUpOptions()
	}
	if err := m.down(opts); err != nil {
		return fmt.Errorf("pressing mouse button down: %w", err)
	}
	return nil
}

// Up releases the mouse button at the current mouse position.
func (m *Mouse) Up(opts *MouseDownUpOptions) error {
	if opts == nil {
		opts = NewMouseDownUpOptions()
	}
	if err := m.up(opts); err != nil {
		return fmt.Errorf("releasing mouse button: %w", err)
	}
	return nil
}

// Move moves the mouse to the position, interpolating Steps intermediate
// moves.
func (m *Mouse) Move(x float64, y float64, opts *MouseMoveOptions) error {
	if opts == nil {
		opts = NewMouseMoveOptions()
	}
	if err := m.move(x, y, opts); err != nil {
		return fmt.Errorf("moving mouse to x:%f y:%f: %w", x, y, err)
	}
	return nil
}

func (m *Mouse) click(x float64, y float64, opts *MouseClickOptions) error {
	if err := m.move(x, y, NewMouseMoveOptions()); err != nil {
		return err
	}
	downUpOpts := opts.ToMouseDownUpOptions()
	for i := int64(0); i < downUpOpts.ClickCount; i++ {
		if err := m.down(downUpOpts); err != nil {
			return err
		}
		if opts.Delay > 0 {
			if err := wait(m.ctx, opts.Delay); err != nil {
				return err
			}
		}
		if err := m.up(downUpOpts); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mouse) down(opts *MouseDownUpOptions) error {
	m.button = input.MouseButton(opts.Button)
	action := input.DispatchMouseEvent(input.MousePressed, m.x, m.y).
		WithButton(input.MouseButton(opts.Button)).
		WithClickCount(opts.ClickCount).
		WithModifiers(input.Modifier(m.keyboard.modifiers))
	if err := action.Do(cdp.WithExecutor(m.ctx, m.session)); err != nil {
		return fmt.Errorf("dispatching mouse down event: %w", err)
	}
	return nil
}

func (m *Mouse) up(opts *MouseDownUpOptions) error {
	m.button = input.None
	action := input.DispatchMouseEvent(input.MouseReleased, m.x, m.y).
		WithButton(input.MouseButton(opts.Button)).
		WithClickCount(opts.ClickCount).
		WithModifiers(input.Modifier(m.keyboard.modifiers))
	if err := action.Do(cdp.WithExecutor(m.ctx, m.session)); err != nil {
		return fmt.Errorf("dispatching mouse up event: %w", err)
	}
	return nil
}

func (m *Mouse) move(x float64, y float64, opts *MouseMoveOptions) error {
	fromX, fromY := m.x, m.y
	m.x, m.y = x, y
	steps := opts.Steps
	if steps < 1 {
		steps = 1
	}
	for i := int64(1); i <= steps; i++ {
		stepX := fromX + (x-fromX)*float64(i)/float64(steps)
		stepY := fromY + (y-fromY)*float64(i)/float64(steps)
		action := input.DispatchMouseEvent(input.MouseMoved, stepX, stepY).
			WithButton(m.button).
			WithModifiers(input.Modifier(m.keyboard.modifiers))
		if err := action.Do(cdp.WithExecutor(m.ctx, m.session)); err != nil {
			return fmt.Errorf("dispatching mouse move event: %w", err)
		}
	}
	return nil
}
