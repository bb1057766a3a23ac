package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
)

// Session cookies X requires for an authenticated page load.
const (
	cookieAuthToken = "auth_token"
	cookieCSRF      = "ct0"
)

// ErrNoSession means no usable session cookies are stored.
var ErrNoSession = errors.New("no valid X session; run `tk login`")

// CookieStore persists the X session cookies captured at login
type CookieStore struct {
	path string
	now  func() time.Time
}

// StoredCookies represents the persisted cookie data
type StoredCookies struct {
	Cookies    []*network.Cookie `json:"cookies"`
	CapturedAt time.Time         `json:"captured_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// NewCookieStore creates a cookie store at the given path
func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path, now: time.Now}
}

// DefaultCookieStorePath returns cookies.json inside configDir.
func DefaultCookieStorePath(configDir string) string {
	return filepath.Join(configDir, "cookies.json")
}

// Path returns where the cookies are stored.
func (cs *CookieStore) Path() string {
	return cs.path
}

// Save persists cookies. The stored expiry is the earliest expiry of the
// session cookies.
func (cs *CookieStore) Save(cookies []*network.Cookie) error {
	if err := os.MkdirAll(filepath.Dir(cs.path), 0700); err != nil {
		return err
	}

	var expires time.Time
	for _, c := range cookies {
		if !isSessionCookie(c) {
			continue
		}
		exp := time.Unix(int64(c.Expires), 0)
		if expires.IsZero() || exp.Before(expires) {
			expires = exp
		}
	}

	data, err := json.MarshalIndent(StoredCookies{
		Cookies:    cookies,
		CapturedAt: cs.now(),
		ExpiresAt:  expires,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(cs.path, data, 0600)
}

// Load reads the stored cookies.
func (cs *CookieStore) Load() (*StoredCookies, error) {
	data, err := os.ReadFile(cs.path)
	if err != nil {
		return nil, err
	}

	var stored StoredCookies
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", cs.path, err)
	}
	return &stored, nil
}

// IsValid reports whether both session cookies are stored and unexpired.
func (cs *CookieStore) IsValid() bool {
	stored, err := cs.Load()
	if err != nil {
		return false
	}
	if cs.now().After(stored.ExpiresAt) {
		return false
	}

	var auth, csrf bool
	for _, c := range stored.Cookies {
		switch c.Name {
		case cookieAuthToken:
			auth = c.Value != ""
		case cookieCSRF:
			csrf = c.Value != ""
		}
	}
	return auth && csrf
}

// Clear removes stored cookies. Clearing an empty store is not an error.
func (cs *CookieStore) Clear() error {
	if err := os.Remove(cs.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// XCookies returns the stored cookies scoped to x.com.
func (cs *CookieStore) XCookies() ([]*network.Cookie, error) {
	if !cs.IsValid() {
		return nil, ErrNoSession
	}
	stored, err := cs.Load()
	if err != nil {
		return nil, err
	}

	var out []*network.Cookie
	for _, c := range stored.Cookies {
		domain := strings.TrimPrefix(c.Domain, ".")
		if domain == "x.com" || strings.HasSuffix(domain, ".x.com") {
			out = append(out, c)
		}
	}
	return out, nil
}

func isSessionCookie(c *network.Cookie) bool {
	return c.Name == cookieAuthToken || c.Name == cookieCSRF
}
