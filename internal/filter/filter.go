// Package filter holds the keyword matchers applied to posts and accounts.
package filter

import (
	"strings"

	"github.com/ibeckermayer/threadkeeper/internal/types"
)

// DefaultAdKeywords are the promotional markers dropped when no list is configured.
var DefaultAdKeywords = []string{
	"r10.to",
	"ふるさと納税",
	"カードローン",
	"お金借りられる",
	"#PR",
	"楽天",
	"Amazon",
	"A8",
	"アフィリエイト",
	"副業",
	"bit.ly",
	"shp.ee",
	"t.co/",
}

// Keywords is a case-insensitive substring matcher
type Keywords struct {
	raw     []string
	lowered []string
}

// NewKeywords builds a matcher. Blank keywords are ignored.
func NewKeywords(keywords []string) *Keywords {
	k := &Keywords{}
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		k.raw = append(k.raw, kw)
		k.lowered = append(k.lowered, strings.ToLower(kw))
	}
	return k
}

// Empty reports whether no keywords are configured.
func (k *Keywords) Empty() bool {
	return k == nil || len(k.lowered) == 0
}

// Match returns the first keyword contained in text, if any.
func (k *Keywords) Match(text string) (string, bool) {
	if k.Empty() {
		return "", false
	}
	lowered := strings.ToLower(text)
	for i, kw := range k.lowered {
		if strings.Contains(lowered, kw) {
			return k.raw[i], true
		}
	}
	return "", false
}

// AdFilter rejects promotional Units
type AdFilter struct {
	keywords *Keywords
}

// NewAdFilter creates an ad filter over the given keywords.
func NewAdFilter(keywords []string) *AdFilter {
	return &AdFilter{keywords: NewKeywords(keywords)}
}

// IsAd reports whether text contains an ad keyword, and which one.
func (f *AdFilter) IsAd(text string) (string, bool) {
	if f == nil {
		return "", false
	}
	return f.keywords.Match(text)
}

// Account matches accounts by display name or bio.
// An empty matcher accepts every account.
type Account struct {
	keywords *Keywords
}

// NewAccount creates a name/bio matcher.
func NewAccount(keywords []string) *Account {
	return &Account{keywords: NewKeywords(keywords)}
}

// Accept reports whether the account's name or bio contains a keyword.
func (f *Account) Accept(a types.Account) bool {
	if f == nil || f.keywords.Empty() {
		return true
	}
	if _, ok := f.keywords.Match(a.Name); ok {
		return true
	}
	_, ok := f.keywords.Match(a.Bio)
	return ok
}

// Post matches Units by their text. An empty matcher accepts every Unit.
type Post struct {
	keywords *Keywords
}

// NewPost creates a post keyword matcher.
func NewPost(keywords []string) *Post {
	return &Post{keywords: NewKeywords(keywords)}
}

// Accept reports whether the unit text contains a keyword.
func (f *Post) Accept(u types.Unit) bool {
	if f == nil || f.keywords.Empty() {
		return true
	}
	_, ok := f.keywords.Match(u.Text)
	return ok
}
