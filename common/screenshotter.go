package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	cdppage "github.com/chromedp/cdproto/page"
	"golang.org/x/net/context"
)

type screenshotter struct {
	ctx context.Context
}

func newScreenshotter(ctx context.Context) *screenshotter {
	return &screenshotter{ctx}
}

func (s *screenshotter) fullPageSize(p *Page) (*Size, error) {
	_, _, contentSize, _, _, _, err := cdppage.GetLayoutMetrics().
		Do(cdp.WithExecutor(s.ctx, p.session))
	if err != nil {
		return nil, fmt.Errorf("getting layout metrics for screenshot: %w", err)
	}
	if contentSize == nil {
		return nil, errors.New("got a nil content size from layout metrics")
	}
	return &Size{
		Width:  contentSize.Width,
		Height: contentSize.Height,
	}, nil
}

func (s *screenshotter) viewportSize(p *Page) (*Size, error) {
	viewportSize := p.viewport()
	if viewportSize.Width != 0 || viewportSize.Height != 0 {
		return &Size{
			Width:  float64(viewportSize.Width),
			Height: float64(viewportSize.Height),
		}, nil
	}
	result, err := p.frameManager.MainFrame().Evaluate(s.ctx,
		`() => ({ width: window.innerWidth, height: window.innerHeight })`)
	if err != nil {
		return nil, fmt.Errorf("evaluating viewport size: %w", err)
	}
	r, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected viewport size %T", result)
	}
	size := Size{}
	if w, ok := r["width"].(float64); ok {
		size.Width = w
	}
	if h, ok := r["height"].(float64); ok {
		size.Height = h
	}
	return &size, nil
}

// screenshot captures the given document-space rect, or the viewport-space
// rect if documentRect is nil. Clips are sent with captureBeyondViewport so
// offscreen clips return full-size images without resizing the emulated
// viewport, which keeps concurrent captures from stepping on shared
// emulation state.
func (s *screenshotter) screenshot(
	sess session,
	documentRect *Rect,
	viewportRect *Rect,
	format ImageFormat,
	omitBackground bool,
	quality int64,
	path string,
) ([]byte, error) {
	capture := cdppage.CaptureScreenshot()

	shouldSetDefaultBackground := omitBackground && format == ImageFormatPNG
	if shouldSetDefaultBackground {
		action := emulation.SetDefaultBackgroundColorOverride().
			WithColor(&cdp.RGBA{R: 0, G: 0, B: 0, A: 0})
		if err := action.Do(cdp.WithExecutor(s.ctx, sess)); err != nil {
			return nil, fmt.Errorf("setting screenshot background transparency: %w", err)
		}
	}

	capture = capture.WithQuality(quality)
	switch format {
	case ImageFormatJPEG:
		capture = capture.WithFormat(cdppage.CaptureScreenshotFormatJpeg)
	default:
		capture = capture.WithFormat(cdppage.CaptureScreenshotFormatPng)
	}

	_, visualViewport, _, _, _, _, err := cdppage.GetLayoutMetrics().
		Do(cdp.WithExecutor(s.ctx, sess))
	if err != nil {
		return nil, fmt.Errorf("getting layout metrics for screenshot: %w", err)
	}

	if documentRect == nil {
		size := Size{
			Width:  viewportRect.Width / visualViewport.Scale,
			Height: viewportRect.Height / visualViewport.Scale,
		}.enclosingIntSize()
		documentRect = &Rect{
			X:      visualViewport.PageX + viewportRect.X,
			Y:      visualViewport.PageY + viewportRect.Y,
			Width:  size.Width,
			Height: size.Height,
		}
	}

	scale := 1.0
	if viewportRect != nil {
		scale = visualViewport.Scale
	}
	clip := &cdppage.Viewport{
		X:      documentRect.X,
		Y:      documentRect.Y,
		Width:  documentRect.Width,
		Height: documentRect.Height,
		Scale:  scale,
	}
	if clip.Width > 0 && clip.Height > 0 {
		capture = capture.WithClip(clip).WithCaptureBeyondViewport(true)
	}

	buf, err := capture.Do(cdp.WithExecutor(s.ctx, sess))
	if err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}

	if shouldSetDefaultBackground {
		action := emulation.SetDefaultBackgroundColorOverride()
		if err := action.Do(cdp.WithExecutor(s.ctx, sess)); err != nil {
			return nil, fmt.Errorf("resetting screenshot background color: %w", err)
		}
	}

	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o775); err != nil {
			return nil, fmt.Errorf("creating screenshot directory %q: %w", dir, err)
		}
		if err := os.WriteFile(path, buf, 0o664); err != nil {
			return nil, fmt.Errorf("saving screenshot to %q: %w", path, err)
		}
	}
	return buf, nil
}

func (s *screenshotter) screenshotPage(p *Page, opts *PageScreenshotOptions) ([]byte, error) {
	format := opts.Format

	// Infer file format by path
	if opts.Path != "" && format != ImageFormatPNG && format != ImageFormatJPEG {
		if strings.HasSuffix(opts.Path, ".jpg") || strings.HasSuffix(opts.Path, ".jpeg") {
			format = ImageFormatJPEG
		} else {
			format = ImageFormatPNG
		}
	}

	if opts.FullPage && opts.Clip != nil {
		return nil, errors.New("clip and fullPage are mutually exclusive")
	}

	if opts.FullPage {
		fullPageSize, err := s.fullPageSize(p)
		if err != nil {
			return nil, fmt.Errorf("getting full page size: %w", err)
		}
		documentRect := &Rect{
			Width:  fullPageSize.Width,
			Height: fullPageSize.Height,
		}
		return s.screenshot(p.session, documentRect, nil, format, opts.OmitBackground, opts.Quality, opts.Path)
	}

	if opts.Clip != nil {
		if opts.Clip.Width <= 0 || opts.Clip.Height <= 0 {
			return nil, errors.New("clip area is empty")
		}
		// The clip is given in document coordinates, so scrolling does not
		// shift it, and capturing beyond the viewport handles clips that
		// reach outside the visible area without resizing the viewport.
		documentRect := &Rect{
			X:      opts.Clip.X,
			Y:      opts.Clip.Y,
			Width:  opts.Clip.Width,
			Height: opts.Clip.Height,
		}
		return s.screenshot(p.session, documentRect, nil, format, opts.OmitBackground, opts.Quality, opts.Path)
	}

	viewportSize, err := s.viewportSize(p)
	if err != nil {
		return nil, fmt.Errorf("getting viewport size: %w", err)
	}
	viewportRect := &Rect{
		Width:  viewportSize.Width,
		Height: viewportSize.Height,
	}
	return s.screenshot(p.session, nil, viewportRect, format, opts.OmitBackground, opts.Quality, opts.Path)
}
