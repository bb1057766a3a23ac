// Package ocr transcribes the text embedded in a Unit's images.
package ocr

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ibeckermayer/threadkeeper/internal/browser"
)

// Fetcher downloads media by URL
type Fetcher struct {
	client *resty.Client
}

// NewFetcher returns a Fetcher with retries for transient CDN errors.
func NewFetcher() *Fetcher {
	client := resty.New().
		SetTimeout(20*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetHeader("User-Agent", browser.UserAgent)
	return &Fetcher{client: client}
}

// Fetch returns the body of url.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	res, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("failed to fetch %s: %s", url, res.Status())
	}
	return res.Body(), nil
}
