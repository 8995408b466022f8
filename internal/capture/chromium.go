// Package capture renders the served card to a PNG with headless Chromium.
package capture

import (
	"context"
	"errors"
	"fmt"
	neturl "net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	appLog "daycard/internal/log"
)

// Defaults fit the card at its natural width.
const (
	DefaultWidth   = 480
	DefaultHeight  = 800
	DefaultTimeout = 30 * time.Second

	// ReadySelector matches the card root once it has rendered.
	ReadySelector = `[data-ready="true"]`
)

// Options describes one snapshot.
type Options struct {
	// URL of the card, e.g. "http://127.0.0.1:8080/".
	URL string

	// OutputPath receives the PNG. Parent directories are created.
	OutputPath string

	Width  int
	Height int

	// Timeout bounds the whole capture.
	Timeout time.Duration

	// Username and Password are sent as HTTP Basic credentials when set.
	Username string
	Password string
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// CaptureDashboardPNG navigates headless Chromium to the card, waits for
// ReadySelector and writes a full-page screenshot to opts.OutputPath.
func CaptureDashboardPNG(parent context.Context, opts Options) error {
	if opts.URL == "" {
		return errors.New("capture: URL is required")
	}
	if opts.OutputPath == "" {
		return errors.New("capture: OutputPath is required")
	}
	opts = opts.withDefaults()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.WindowSize(opts.Width, opts.Height),
		)...,
	)
	defer cancelAlloc()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, cancelTimeout := context.WithTimeout(ctx, opts.Timeout)
	defer cancelTimeout()

	url := opts.URL
	if opts.Username != "" {
		url = withCredentials(url, opts.Username, opts.Password)
	}

	var png []byte
	err := chromedp.Run(ctx,
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(url),
		chromedp.WaitVisible(ReadySelector, chromedp.ByQuery),
		// Let web fonts settle.
		chromedp.Sleep(300*time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	)
	if err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(opts.OutputPath), 0o755); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	appLog.Info("card snapshot written", "path", opts.OutputPath, "bytes", len(png))
	return nil
}

// withCredentials embeds basic auth userinfo in rawURL. Unparseable URLs
// are returned unchanged.
func withCredentials(rawURL, username, password string) string {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.User = neturl.UserPassword(username, password)
	return u.String()
}
