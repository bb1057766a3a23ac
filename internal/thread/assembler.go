// Package thread reconstructs registrable Units from one thread traversal.
package thread

import (
	"cmp"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/ibeckermayer/threadkeeper/internal/engagement"
	"github.com/ibeckermayer/threadkeeper/internal/filter"
	"github.com/ibeckermayer/threadkeeper/internal/types"
)

// Separator joins merged reply fragments.
const Separator = "\n\n"

var (
	// ErrAuthorMismatch means the origin post belongs to someone other than
	// the target author. The traversal yields nothing.
	ErrAuthorMismatch = errors.New("origin post author differs from target")

	// ErrAnchorMissing means the origin post was not among the usable posts.
	ErrAnchorMissing = errors.New("origin post not found in traversal")
)

// Options configure an Assembler
type Options struct {
	AdFilter *filter.AdFilter

	// StopAtForeign ends the traversal at the first non-origin post by
	// another author instead of skipping it.
	StopAtForeign bool

	Logger *slog.Logger
}

// Assembler is the merge state machine run over one traversal at a time
type Assembler struct {
	adFilter      *filter.AdFilter
	stopAtForeign bool
	log           *slog.Logger
}

// New creates an Assembler.
func New(opts Options) *Assembler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Assembler{
		adFilter:      opts.AdFilter,
		stopAtForeign: opts.StopAtForeign,
		log:           log,
	}
}

// DroppedUnit is a flushed Unit rejected by the ad filter.
type DroppedUnit struct {
	Unit    types.Unit
	Keyword string
}

// Assembly is the outcome of one traversal.
type Assembly struct {
	Units   []types.Unit
	Skipped []types.Result
	Dropped []DroppedUnit
	Stopped bool // traversal ended early at a foreign post
}

// candidate is the Unit currently open for merging.
type candidate struct {
	unit    types.Unit
	metrics types.RawMetrics
	chunks  map[string]struct{}
}

func open(author string, p types.PostRecord) *candidate {
	c := &candidate{
		unit: types.Unit{
			PrimaryID: p.ID,
			Author:    author,
			Text:      p.Text,
			Media:     slices.Clone(p.MediaRefs),
			CreatedAt: p.CreatedAt,
			URL:       types.PostURL(author, p.ID),
		},
		metrics: p.Metrics,
		chunks:  make(map[string]struct{}),
	}
	for _, chunk := range strings.Split(p.Text, Separator) {
		c.chunks[strings.TrimSpace(chunk)] = struct{}{}
	}
	return c
}

// merge appends a reply fragment. It returns the skip reason when the
// fragment adds nothing.
func (c *candidate) merge(p types.PostRecord) types.SkipReason {
	frag := strings.TrimSpace(p.Text)
	if frag == "" {
		return types.SkipEmptyFragment
	}
	if _, dup := c.chunks[frag]; dup {
		return types.SkipDuplicateFragment
	}
	c.unit.Text = strings.TrimSpace(c.unit.Text + Separator + frag)
	c.unit.MergedIDs = append(c.unit.MergedIDs, p.ID)
	c.chunks[frag] = struct{}{}
	return types.SkipNone
}

// Assemble consumes the posts of one traversal in ascending id order and
// returns the Units it produced.
func (a *Assembler) Assemble(t types.Thread) (Assembly, error) {
	posts := slices.Clone(t.Posts)
	slices.SortStableFunc(posts, func(x, y types.Result) int {
		return cmp.Compare(x.Post.ID, y.Post.ID)
	})

	log := a.log.With("thread", t.OriginID, "author", t.Author)

	if t.OriginID != 0 {
		origin, ok := findOrigin(posts, t.OriginID)
		if !ok {
			log.Warn("origin post missing from traversal")
			return Assembly{}, ErrAnchorMissing
		}
		if origin.AuthorHandle != "" && !SameAuthor(origin.AuthorHandle, t.Author) {
			log.Warn("origin post author mismatch", "origin_author", origin.AuthorHandle)
			return Assembly{}, ErrAuthorMismatch
		}
	}

	var (
		out     Assembly
		current *candidate
		seen    = make(map[int64]struct{}, len(posts))
	)

	flush := func() {
		if current == nil {
			return
		}
		u := current.unit
		u.Metrics = engagement.Parse(current.metrics)
		current = nil

		if kw, ad := a.adFilter.IsAd(u.Text); ad {
			log.Info("dropped ad unit", "post_id", u.PrimaryID, "keyword", kw)
			out.Dropped = append(out.Dropped, DroppedUnit{Unit: u, Keyword: kw})
			return
		}
		out.Units = append(out.Units, u)
	}

	skip := func(r types.Result, reason types.SkipReason) {
		log.Debug("skipped post", "post_id", r.Post.ID, "reason", reason)
		out.Skipped = append(out.Skipped, types.Skipped(r.Post, reason, r.Err))
	}

	for _, r := range posts {
		if !r.OK() {
			log.Debug("post unavailable", "post_id", r.Post.ID, "reason", r.Skip, "error", r.Err)
			out.Skipped = append(out.Skipped, r)
			continue
		}

		p := r.Post
		// extractors may revisit a post while scrolling; the first read wins
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}

		if !SameAuthor(p.AuthorHandle, t.Author) {
			unconfirmedOrigin := p.ID == t.OriginID && p.AuthorHandle == ""
			if !unconfirmedOrigin {
				skip(r, types.SkipForeignAuthor)
				if a.stopAtForeign && p.ID != t.OriginID {
					out.Stopped = true
					break
				}
				continue
			}
		}

		if p.Role == types.QuoteShort {
			skip(r, types.SkipQuoteShort)
			continue
		}

		if current == nil {
			current = open(t.Author, p)
			continue
		}

		if p.Role == types.Reply && !p.HasMedia() {
			if reason := current.merge(p); reason != types.SkipNone {
				skip(r, reason)
			}
			continue
		}

		// quote posts with content, media-bearing posts and ordinary posts
		// stand on their own
		flush()
		current = open(t.Author, p)
	}
	flush()

	log.Debug("assembled thread",
		"units", len(out.Units),
		"skipped", len(out.Skipped),
		"dropped", len(out.Dropped))
	return out, nil
}

// SameAuthor compares handles case-insensitively, ignoring a leading "@".
func SameAuthor(a, b string) bool {
	a = strings.TrimPrefix(strings.TrimSpace(a), "@")
	b = strings.TrimPrefix(strings.TrimSpace(b), "@")
	return a != "" && strings.EqualFold(a, b)
}

func findOrigin(posts []types.Result, id int64) (types.PostRecord, bool) {
	for _, r := range posts {
		if r.OK() && r.Post.ID == id {
			return r.Post, true
		}
	}
	return types.PostRecord{}, false
}
