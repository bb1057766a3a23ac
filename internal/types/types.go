package types

import (
	"errors"
	"fmt"
	"strconv"
)

// RoleTag is the structural role of a post inside a thread traversal
type RoleTag int

const (
	Ordinary RoleTag = iota
	Reply
	QuoteShort // quote post without own media and with short text
	QuoteMedia // quote post with own media or long text
)

func (r RoleTag) String() string {
	switch r {
	case Ordinary:
		return "ordinary"
	case Reply:
		return "reply"
	case QuoteShort:
		return "quote_short"
	case QuoteMedia:
		return "quote_media"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ErrNotProbed is the error of a probe that was never set.
var ErrNotProbed = errors.New("signal not probed")

// Probe is one structural signal read from the page.
// The zero Probe is not evaluated, so rules relying on it fail open.
type Probe[T any] struct {
	Value T
	Err   error

	probed bool
}

// Observed returns an evaluated probe.
func Observed[T any](v T) Probe[T] {
	return Probe[T]{Value: v, probed: true}
}

// Failed returns a probe that could not be evaluated.
func Failed[T any](err error) Probe[T] {
	return Probe[T]{Err: err, probed: true}
}

// OK reports whether the probe was evaluated.
func (p Probe[T]) OK() bool {
	return p.probed && p.Err == nil
}

// Error returns why the probe has no value, or nil when it has one.
func (p Probe[T]) Error() error {
	if !p.probed {
		return ErrNotProbed
	}
	return p.Err
}

// Signals is the structural bundle supplied by the extractor for one post
type Signals struct {
	NestedPost     Probe[bool] // a post rendered inside this post
	QuoteMarker    Probe[bool] // explicit "Quote" marker not inside another quote
	ReplyIndicator Probe[bool] // "Replying to @user" scoped to this post
	ReplyVisible   Probe[bool] // the reply indicator is displayed
	ActionButtons  Probe[int]  // reply/repost/like/bookmark buttons attached to this post
}

// RawMetrics holds engagement counts as displayed. Empty means not shown.
type RawMetrics struct {
	Impressions string `json:"impressions,omitempty"`
	Reposts     string `json:"reposts,omitempty"`
	Likes       string `json:"likes,omitempty"`
	Bookmarks   string `json:"bookmarks,omitempty"`
	Replies     string `json:"replies,omitempty"`
}

// PostRecord represents one scraped post
type PostRecord struct {
	ID           int64      `json:"id"`
	AuthorHandle string     `json:"author_handle"`
	Text         string     `json:"text"`
	CreatedAt    string     `json:"created_at,omitempty"`
	MediaRefs    []string   `json:"media_refs,omitempty"`
	Metrics      RawMetrics `json:"metrics"`
	Signals      Signals    `json:"-"`
	Role         RoleTag    `json:"role"`
}

// HasMedia reports whether the post carries media of its own.
func (p PostRecord) HasMedia() bool {
	return len(p.MediaRefs) > 0
}

// Metrics are the parsed engagement counts of a Unit.
// Impressions is nil when the source did not show it.
type Metrics struct {
	Impressions *int `json:"impressions"`
	Reposts     int  `json:"reposts"`
	Likes       int  `json:"likes"`
	Bookmarks   int  `json:"bookmarks"`
	Replies     int  `json:"replies"`
}

// Unit is a registrable record: a primary post plus merged reply fragments
type Unit struct {
	PrimaryID int64    `json:"primary_id"`
	Author    string   `json:"author"`
	Text      string   `json:"text"`
	Media     []string `json:"media,omitempty"`
	CreatedAt string   `json:"created_at,omitempty"`
	Metrics   Metrics  `json:"metrics"`
	URL       string   `json:"url"`
	MergedIDs []int64  `json:"merged_ids,omitempty"`
}

// Key is the dedup key of the unit.
func (u Unit) Key() string {
	return strconv.FormatInt(u.PrimaryID, 10)
}

// PostURL builds the canonical status URL for a post.
func PostURL(handle string, id int64) string {
	return fmt.Sprintf("https://x.com/%s/status/%d", handle, id)
}

// SkipReason explains why a post did not contribute to a Unit
type SkipReason string

const (
	SkipNone              SkipReason = ""
	SkipUnavailable       SkipReason = "unavailable"
	SkipForeignAuthor     SkipReason = "foreign_author"
	SkipQuoteShort        SkipReason = "quote_short"
	SkipEmptyFragment     SkipReason = "empty_fragment"
	SkipDuplicateFragment SkipReason = "duplicate_fragment"
)

// Result is the per-post outcome flowing through the pipeline.
// Either Skip is SkipNone and Post is usable, or Skip names why it was not.
type Result struct {
	Post PostRecord `json:"post"`
	Skip SkipReason `json:"skip,omitempty"`
	Err  error      `json:"-"`
}

// OK reports whether the result carries a usable post.
func (r Result) OK() bool {
	return r.Skip == SkipNone
}

// Accept wraps a usable post.
func Accept(p PostRecord) Result {
	return Result{Post: p}
}

// Skipped marks a post as skipped.
func Skipped(p PostRecord, reason SkipReason, err error) Result {
	return Result{Post: p, Skip: reason, Err: err}
}

// Thread is one traversal: the posts read from a detail page or timeline
type Thread struct {
	Author   string   `json:"author"`
	OriginID int64    `json:"origin_id"`
	URL      string   `json:"url"`
	Posts    []Result `json:"posts"`
}

// Candidate is a thread origin found on a timeline or search page
type Candidate struct {
	ID     int64  `json:"id"`
	Author string `json:"author"`
	URL    string `json:"url"`
}

// Account is an author found by account search
type Account struct {
	Handle string `json:"handle"`
	Name   string `json:"name"`
	Bio    string `json:"bio"`
}
