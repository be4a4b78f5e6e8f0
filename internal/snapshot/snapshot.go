// Package snapshot captures a service page screenshot with headless Chrome,
// used to generate dashboard icons on demand.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ErrChromeMissing is returned when no chromium binary is installed.
var ErrChromeMissing = errors.New("snapshot dependency missing")

// Capturer writes PNG screenshots of service pages into iconsDir.
type Capturer struct {
	iconsDir string
	timeout  time.Duration
}

func New(iconsDir string) *Capturer {
	return &Capturer{iconsDir: iconsDir, timeout: 30 * time.Second}
}

// Capture navigates to pageURL, screenshots the viewport, and saves it as
// <name>.png under the icons dir. It returns the saved filename.
func (c *Capturer) Capture(ctx context.Context, pageURL, name string) (string, error) {
	if _, err := exec.LookPath("chromium-browser"); err != nil {
		if _, fallbackErr := exec.LookPath("chromium"); fallbackErr != nil {
			return "", fmt.Errorf("%w: chromium not installed", ErrChromeMissing)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// Chrome options for headless mode in container
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var pngData []byte
	err := chromedp.Run(taskCtx,
		chromedp.EmulateViewport(512, 512),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pngData, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return "", fmt.Errorf("chrome screenshot failed: %w", err)
	}

	if err := os.MkdirAll(c.iconsDir, 0o755); err != nil {
		return "", fmt.Errorf("create icons dir: %w", err)
	}

	filename := sanitizeFilename(name) + ".png"
	if err := os.WriteFile(filepath.Join(c.iconsDir, filename), pngData, 0o644); err != nil {
		return "", fmt.Errorf("write icon: %w", err)
	}
	return filename, nil
}

// sanitizeFilename creates a safe filename from a service name
func sanitizeFilename(name string) string {
	result := ""
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result += string(r)
		case r == ' ':
			result += "-"
		case r == '-', r == '_':
			result += string(r)
		}
	}
	if result == "" {
		result = "service"
	}
	return result
}
