// Package browser builds the chromedp allocator shared by login and scraping.
package browser

import (
	"context"

	"github.com/chromedp/chromedp"
)

// UserAgent is sent by every browser instance.
const UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Language is the UI language requested from X. The page parser understands
// both the Japanese and English labels.
const Language = "ja-JP"

// Options returns allocator options that hide the automation markers X checks.
func Options(headless bool) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		// navigator.webdriver must stay false
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(UserAgent),
		chromedp.WindowSize(1280, 2000),
		chromedp.Flag("lang", Language),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)
	if headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}
	return opts
}

// New starts a browser and returns its context. cancel closes the browser.
func New(ctx context.Context, headless bool) (context.Context, context.CancelFunc) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, Options(headless)...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	return browserCtx, func() {
		cancelBrowser()
		cancelAlloc()
	}
}
