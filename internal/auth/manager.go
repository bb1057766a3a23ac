package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/ibeckermayer/threadkeeper/internal/browser"
)

const (
	loginURL     = "https://x.com/login"
	loginTimeout = 5 * time.Minute
	pollEvery    = 2 * time.Second
)

var homeURLs = map[string]bool{
	"https://x.com/home":       true,
	"https://twitter.com/home": true,
}

// Manager runs the interactive login and hands session cookies to the scraper
type Manager struct {
	store *CookieStore
	log   *slog.Logger
}

// NewManager creates an auth manager over store.
func NewManager(store *CookieStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, log: logger}
}

// IsAuthenticated reports whether a valid session is stored.
func (m *Manager) IsAuthenticated() bool {
	return m.store.IsValid()
}

// Login opens a visible browser on the X login page and waits for the user
// to finish. The session cookies are saved on success.
func (m *Manager) Login(ctx context.Context) error {
	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(browser.Options(false), chromedp.Flag("start-maximized", true))...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	if err := chromedp.Run(browserCtx, chromedp.Navigate(loginURL)); err != nil {
		return fmt.Errorf("failed to navigate to login page: %w", err)
	}
	m.log.Info("waiting for login in browser window", "timeout", loginTimeout)

	cookies, err := m.waitForLogin(browserCtx)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := m.store.Save(cookies); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}
	m.log.Info("login captured", "cookies", len(cookies), "path", m.store.Path())
	return nil
}

// waitForLogin polls until the browser lands on the home timeline with an
// auth token set.
func (m *Manager) waitForLogin(ctx context.Context) ([]*network.Cookie, error) {
	timeout := time.After(loginTimeout)
	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			return nil, errors.New("login timeout exceeded")
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			var url string
			if err := chromedp.Run(ctx, chromedp.Location(&url)); err != nil || !homeURLs[url] {
				continue
			}
			cookies, err := extractCookies(ctx)
			if err != nil {
				m.log.Debug("cookie read failed", "error", err)
				continue
			}
			for _, c := range cookies {
				if c.Name == cookieAuthToken && c.Value != "" {
					return cookies, nil
				}
			}
		}
	}
}

func extractCookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	return cookies, err
}

// Logout clears stored credentials
func (m *Manager) Logout() error {
	return m.store.Clear()
}

// Cookies returns the stored x.com cookies, or ErrNoSession.
func (m *Manager) Cookies() ([]*network.Cookie, error) {
	return m.store.XCookies()
}
