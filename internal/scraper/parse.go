package scraper

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ibeckermayer/threadkeeper/internal/engagement"
	"github.com/ibeckermayer/threadkeeper/internal/types"
)

var statusIDRe = regexp.MustCompile(`/status/(\d+)`)

// ErrNoPostID means a snapshot carried no status link of its own.
var ErrNoPostID = errors.New("article has no status id")

// snapshot is one article as captured by the page script
type snapshot struct {
	HTML string `json:"html"`
	Y    float64 `json:"y"`
	ID   string  `json:"id"` // best-effort id for error reporting

	ReplyVisible    *bool  `json:"replyVisible"`
	ReplyVisibleErr string `json:"replyVisibleErr"`

	Err string `json:"err"`
}

// replyVisibility turns the script's visibility answer into a probe.
func (s snapshot) replyVisibility() types.Probe[bool] {
	switch {
	case s.ReplyVisibleErr != "":
		return types.Failed[bool](errors.New(s.ReplyVisibleErr))
	case s.ReplyVisible == nil:
		return types.Observed(false)
	default:
		return types.Observed(*s.ReplyVisible)
	}
}

// toResult parses a snapshot. Snapshots that failed in the page, or whose
// markup lacks an id, become unavailable results.
func (s snapshot) toResult() types.Result {
	id, _ := strconv.ParseInt(s.ID, 10, 64)
	if s.Err != "" {
		return types.Skipped(types.PostRecord{ID: id}, types.SkipUnavailable, errors.New(s.Err))
	}
	p, err := ParseArticle(s.HTML, s.replyVisibility())
	if err != nil {
		return types.Skipped(types.PostRecord{ID: id}, types.SkipUnavailable, err)
	}
	return types.Accept(p)
}

// ParseArticle reads one post out of an article's outer HTML.
// Everything inside a quoted post is ignored except for the quote signals.
func ParseArticle(outerHTML string, replyVisible types.Probe[bool]) (types.PostRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(outerHTML))
	if err != nil {
		return types.PostRecord{}, fmt.Errorf("failed to parse article html: %w", err)
	}
	root := doc.Find(TweetArticle).First()
	if root.Length() == 0 {
		return types.PostRecord{}, errors.New("snapshot holds no article")
	}

	id, handle := statusOf(root)
	if id == 0 {
		return types.PostRecord{}, ErrNoPostID
	}
	if h := authorHandle(root); h != "" {
		handle = h
	}

	p := types.PostRecord{
		ID:           id,
		AuthorHandle: handle,
		Text:         strings.TrimSpace(flatten(own(root, TweetText).First())),
		MediaRefs:    mediaRefs(root),
		Metrics:      metrics(root),
	}
	if t := own(root, Timestamp).First(); t.Length() > 0 {
		p.CreatedAt, _ = t.Attr("datetime")
	}

	p.Signals = types.Signals{
		NestedPost:     types.Observed(hasNestedPost(root)),
		QuoteMarker:    types.Observed(hasQuoteMarker(root)),
		ReplyIndicator: types.Observed(hasReplyIndicator(root)),
		ReplyVisible:   replyVisible,
		ActionButtons:  types.Observed(own(root, ActionButton).Length()),
	}
	return p, nil
}

// own narrows sel to nodes that belong to root itself: not inside a nested
// article and not inside a quote frame.
func own(root *goquery.Selection, sel string) *goquery.Selection {
	return root.Find(sel).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.ParentsFiltered(TweetArticle).Length() == 1 &&
			s.ParentsFiltered(QuoteFrame).Length() == 0
	})
}

// ownArticle narrows sel to nodes whose nearest article is root. Quote
// frames are allowed, since card images of the post itself sit in one.
func ownArticle(root *goquery.Selection, sel string) *goquery.Selection {
	return root.Find(sel).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.ParentsFiltered(TweetArticle).Length() == 1
	})
}

// statusOf returns the id and URL handle of the post's permalink. The link
// wrapping the timestamp is preferred over any other status link.
func statusOf(root *goquery.Selection) (int64, string) {
	links := own(root, StatusLink)
	link := links.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find("time").Length() > 0
	}).First()
	if link.Length() == 0 {
		link = links.First()
	}
	href, _ := link.Attr("href")
	return parseStatusHref(href)
}

func parseStatusHref(href string) (int64, string) {
	m := statusIDRe.FindStringSubmatchIndex(href)
	if m == nil {
		return 0, ""
	}
	id, err := strconv.ParseInt(href[m[2]:m[3]], 10, 64)
	if err != nil {
		return 0, ""
	}
	prefix := strings.TrimSuffix(href[:m[0]], "/")
	handle := prefix[strings.LastIndex(prefix, "/")+1:]
	return id, handle
}

// authorHandle reads the "@handle" span of the author block.
func authorHandle(root *goquery.Selection) string {
	var handle string
	own(root, TweetAuthor).First().Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := strings.TrimSpace(s.Text())
		if strings.HasPrefix(t, "@") && !strings.ContainsAny(t, " \n") {
			handle = strings.TrimPrefix(t, "@")
			return false
		}
		return true
	})
	return handle
}

// flatten renders text the way it is displayed: emoji images become their
// alt text and <br> becomes a newline.
func flatten(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		switch goquery.NodeName(c) {
		case "#text":
			b.WriteString(c.Text())
		case "img":
			b.WriteString(c.AttrOr("alt", ""))
		case "br":
			b.WriteString("\n")
		default:
			b.WriteString(flatten(c))
		}
	})
	return b.String()
}

// mediaRefs collects photos, card images and video posters of the post itself.
func mediaRefs(root *goquery.Selection) []string {
	var refs []string
	seen := make(map[string]bool)
	add := func(attr string) func(int, *goquery.Selection) {
		return func(_ int, s *goquery.Selection) {
			v, ok := s.Attr(attr)
			if !ok || v == "" || seen[v] {
				return
			}
			seen[v] = true
			refs = append(refs, v)
		}
	}
	own(root, Photo).Each(add("src"))
	ownArticle(root, CardImage).Each(add("src"))
	own(root, VideoPoster).Each(add("poster"))
	return refs
}

// hasNestedPost reports a quote frame that renders another post.
func hasNestedPost(root *goquery.Selection) bool {
	return ownArticle(root, QuoteFrame).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find(TweetArticle).Length() > 0 || s.Find(TweetText).Length() > 0
	}).Length() > 0
}

// hasQuoteMarker reports a container holding both a "Quote" label and a
// quote frame as direct children.
func hasQuoteMarker(root *goquery.Selection) bool {
	return ownArticle(root, "div").FilterFunction(func(_ int, s *goquery.Selection) bool {
		if s.ChildrenFiltered(QuoteFrame).Length() == 0 {
			return false
		}
		return s.ChildrenFiltered("span").FilterFunction(func(_ int, span *goquery.Selection) bool {
			return matchesAny(normalize(span.Text()), quoteMarkers, strings.EqualFold)
		}).Length() > 0
	}).Length() > 0
}

// hasReplyIndicator reports a "Replying to @user" line on the post itself.
func hasReplyIndicator(root *goquery.Selection) bool {
	return own(root, "div, span").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return matchesAny(normalize(s.Text()), replyPrefixes, strings.HasPrefix)
	}).Length() > 0
}

// metrics reads the aria-label of the action group, then fills gaps from
// the individual buttons.
func metrics(root *goquery.Selection) types.RawMetrics {
	var m types.RawMetrics
	if label, ok := own(root, MetricsGroup).First().Attr("aria-label"); ok {
		m = engagement.ParseGroupLabel(label)
	}
	own(root, ActionButton).Each(func(_ int, s *goquery.Selection) {
		if label, ok := s.Attr("aria-label"); ok {
			m = engagement.Merge(m, engagement.ParseGroupLabel(label))
		}
	})
	return m
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\u200b", "")), " ")
}

func matchesAny(s string, candidates []string, match func(s, c string) bool) bool {
	for _, c := range candidates {
		if match(s, c) {
			return true
		}
	}
	return false
}

// ParseUserCell reads an account from one user search result.
func ParseUserCell(outerHTML string) (types.Account, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(outerHTML))
	if err != nil {
		return types.Account{}, false
	}
	a := nameAndHandle(doc.Selection)
	if a.Handle == "" {
		return types.Account{}, false
	}

	// the bio is the last auto-direction block outside the profile links
	doc.Find(`div[dir="auto"]`).Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("a").Length() > 0 {
			return
		}
		if t := normalize(s.Text()); t != "" && t != a.Name && t != "@"+a.Handle {
			a.Bio = strings.TrimSpace(flatten(s))
		}
	})
	return a, true
}

// ParseProfile reads the account header of a profile page.
func ParseProfile(pageHTML string) (types.Account, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return types.Account{}, fmt.Errorf("failed to parse profile html: %w", err)
	}
	a := nameAndHandle(doc.Find(UserName).First())
	a.Bio = strings.TrimSpace(flatten(doc.Find(UserDescription).First()))
	return a, nil
}

// nameAndHandle takes the first plain span as the display name and the
// "@" span as the handle.
func nameAndHandle(s *goquery.Selection) types.Account {
	var a types.Account
	s.Find("span").Each(func(_ int, span *goquery.Selection) {
		if span.ChildrenFiltered("span").Length() > 0 {
			return
		}
		t := normalize(flatten(span))
		switch {
		case t == "":
		case strings.HasPrefix(t, "@"):
			if a.Handle == "" {
				a.Handle = strings.TrimPrefix(t, "@")
			}
		case a.Name == "":
			a.Name = t
		}
	})
	return a
}

// candidateFrom turns a timeline snapshot into a thread origin candidate.
func candidateFrom(p types.PostRecord) types.Candidate {
	return types.Candidate{
		ID:     p.ID,
		Author: p.AuthorHandle,
		URL:    types.PostURL(p.AuthorHandle, p.ID),
	}
}

// pageError returns the first error marker found in the page body text.
func pageError(bodyText string) (string, bool) {
	for _, m := range pageErrorMarkers {
		if strings.Contains(bodyText, m) {
			return m, true
		}
	}
	return "", false
}
