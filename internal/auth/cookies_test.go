package auth

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, now time.Time) *CookieStore {
	t.Helper()
	cs := NewCookieStore(DefaultCookieStorePath(t.TempDir()))
	cs.now = func() time.Time { return now }
	return cs
}

func session(expires time.Time) []*network.Cookie {
	return []*network.Cookie{
		{Name: "auth_token", Value: "tok", Domain: ".x.com", Expires: float64(expires.Unix())},
		{Name: "ct0", Value: "csrf", Domain: "x.com", Expires: float64(expires.Add(time.Hour).Unix())},
		{Name: "guest_id", Value: "g", Domain: ".twitter.com"},
	}
}

func TestCookieStore_SaveLoad(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cs := newStore(t, now)
	exp := now.Add(24 * time.Hour)

	require.NoError(t, cs.Save(session(exp)))

	stored, err := cs.Load()
	require.NoError(t, err)
	assert.Len(t, stored.Cookies, 3)
	assert.True(t, stored.ExpiresAt.Equal(exp), "earliest session expiry wins")
	assert.True(t, cs.IsValid())

	xc, err := cs.XCookies()
	require.NoError(t, err)
	assert.Len(t, xc, 2)
}

func TestCookieStore_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cs := newStore(t, now)
	require.NoError(t, cs.Save(session(now.Add(-time.Minute))))

	assert.False(t, cs.IsValid())
	_, err := cs.XCookies()
	assert.True(t, errors.Is(err, ErrNoSession))
}

func TestCookieStore_MissingCSRF(t *testing.T) {
	now := time.Now()
	cs := newStore(t, now)
	require.NoError(t, cs.Save(session(now.Add(time.Hour))[:1]))
	assert.False(t, cs.IsValid())
}

func TestCookieStore_Clear(t *testing.T) {
	cs := newStore(t, time.Now())
	require.NoError(t, cs.Clear(), "clearing an empty store")

	require.NoError(t, cs.Save(session(time.Now().Add(time.Hour))))
	require.NoError(t, cs.Clear())
	_, err := cs.Load()
	assert.Error(t, err)
	assert.Equal(t, "cookies.json", filepath.Base(cs.Path()))
}
