package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/ibeckermayer/threadkeeper/internal/browser"
	"github.com/ibeckermayer/threadkeeper/internal/types"
)

const baseURL = "https://x.com"

// ErrPageUnavailable means X rendered an error page instead of the post.
var ErrPageUnavailable = errors.New("page unavailable")

// Options tune a scraping Session
type Options struct {
	Headless bool

	ArticleTimeout   time.Duration // first article on a page
	TimestampTimeout time.Duration // first timestamp on a detail page
	ScrollPause      time.Duration

	MaxScrolls       int // timelines
	MaxSearchScrolls int // search result pages
	MaxThreadScrolls int // detail pages
	StallThreshold   int // scrolls in a row without an unseen post

	Logger *slog.Logger
}

// DefaultOptions returns the timeouts and scroll bounds used by runs.
func DefaultOptions() Options {
	return Options{
		Headless:         true,
		ArticleTimeout:   15 * time.Second,
		TimestampTimeout: 10 * time.Second,
		ScrollPause:      2500 * time.Millisecond,
		MaxScrolls:       20,
		MaxSearchScrolls: 10,
		MaxThreadScrolls: 5,
		StallThreshold:   3,
	}
}

// Keep decides whether a post read from a listing becomes a candidate.
type Keep func(types.PostRecord) bool

// Session is one logged-in browser shared by every traversal of a run
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
	log    *slog.Logger
}

// Open starts a browser and installs the session cookies.
func Open(ctx context.Context, cookies []*network.Cookie, opts Options) (*Session, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	browserCtx, cancel := browser.New(ctx, opts.Headless)
	s := &Session{ctx: browserCtx, cancel: cancel, opts: opts, log: log}

	if err := chromedp.Run(browserCtx, injectCookies(cookies)); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to inject cookies: %w", err)
	}
	log.Debug("browser session open", "cookies", len(cookies), "headless", opts.Headless)
	return s, nil
}

// Close shuts the browser down.
func (s *Session) Close() {
	s.cancel()
}

func injectCookies(cookies []*network.Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			err := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly).
				WithSameSite(c.SameSite).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("cookie %s: %w", c.Name, err)
			}
		}
		return nil
	})
}

// scope derives a browser context bounded by budget that also ends when the
// caller's ctx does.
func (s *Session) scope(ctx context.Context, budget time.Duration) (context.Context, context.CancelFunc) {
	c, cancel := context.WithTimeout(s.ctx, budget)
	stop := context.AfterFunc(ctx, cancel)
	return c, func() {
		stop()
		cancel()
	}
}

// Timeline collects up to limit thread origins from an author's profile.
func (s *Session) Timeline(ctx context.Context, author string, limit int, keep Keep) ([]types.Candidate, error) {
	ctx, cancel := s.scope(ctx, 5*time.Minute)
	defer cancel()

	u := baseURL + "/" + url.PathEscape(author)
	if err := s.load(ctx, u); err != nil {
		return nil, err
	}
	return s.collect(ctx, u, limit, s.opts.MaxScrolls, keep)
}

// SearchTop collects up to limit candidates from the "Top" results for keyword.
func (s *Session) SearchTop(ctx context.Context, keyword string, limit int, keep Keep) ([]types.Candidate, error) {
	ctx, cancel := s.scope(ctx, 5*time.Minute)
	defer cancel()

	u := searchURL(keyword, "top")
	if err := s.load(ctx, u); err != nil {
		return nil, err
	}
	return s.collect(ctx, u, limit, s.opts.MaxSearchScrolls, keep)
}

// collect scrolls a listing page and turns kept posts into candidates.
func (s *Session) collect(ctx context.Context, pageURL string, limit, maxScrolls int, keep Keep) ([]types.Candidate, error) {
	log := s.log.With("page", pageURL)

	var (
		out   []types.Candidate
		seen  = make(map[int64]bool)
		stall int
	)
	for scroll := 0; scroll < maxScrolls && len(out) < limit; scroll++ {
		page, err := s.snapshot(ctx)
		if err != nil {
			if len(out) > 0 {
				log.Warn("snapshot failed, keeping what was collected", "error", err, "candidates", len(out))
				return out, nil
			}
			return nil, err
		}

		unseen := 0
		for _, snap := range page.Articles {
			r := snap.toResult()
			if !r.OK() || seen[r.Post.ID] {
				continue
			}
			seen[r.Post.ID] = true
			unseen++

			if keep != nil && !keep(r.Post) {
				continue
			}
			out = append(out, candidateFrom(r.Post))
			if len(out) >= limit {
				break
			}
		}
		log.Debug("scrolled listing", "scroll", scroll+1, "unseen", unseen, "candidates", len(out))

		if unseen == 0 {
			stall++
			if stall >= s.opts.StallThreshold {
				log.Debug("listing stalled", "scrolls", scroll+1)
				break
			}
		} else {
			stall = 0
		}
		if len(out) >= limit {
			break
		}
		if err := s.scroll(ctx); err != nil {
			return out, nil
		}
	}
	return out, nil
}

// Thread reads every post on a candidate's detail page until the
// "Discover more" section.
func (s *Session) Thread(ctx context.Context, c types.Candidate) (types.Thread, error) {
	ctx, cancel := s.scope(ctx, 3*time.Minute)
	defer cancel()

	t := types.Thread{Author: c.Author, OriginID: c.ID, URL: c.URL}
	if err := s.load(ctx, c.URL); err != nil {
		return t, err
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, s.opts.TimestampTimeout)
	err := chromedp.Run(waitCtx, chromedp.WaitReady(TweetArticle+" "+Timestamp, chromedp.ByQuery))
	waitCancel()
	if err != nil {
		return t, fmt.Errorf("no timestamp on %s: %w", c.URL, err)
	}

	var body string
	if err := chromedp.Run(ctx, chromedp.Evaluate(`document.body.innerText`, &body)); err == nil {
		if marker, bad := pageError(body); bad {
			return t, fmt.Errorf("%s shows %q: %w", c.URL, marker, ErrPageUnavailable)
		}
	}

	var (
		posts = newPostCollector()
		stall int
	)
	for scroll := 0; scroll < s.opts.MaxThreadScrolls; scroll++ {
		page, err := s.snapshot(ctx)
		if err != nil {
			if len(posts.results) == 0 {
				return t, err
			}
			s.log.Warn("thread snapshot failed, keeping partial traversal", "thread", c.ID, "error", err)
			break
		}

		unseen := 0
		for _, snap := range page.Articles {
			if posts.add(snap.toResult()) {
				unseen++
			}
		}
		if page.End {
			break
		}
		if unseen == 0 {
			if stall++; stall >= s.opts.StallThreshold {
				break
			}
		} else {
			stall = 0
		}
		if err := s.scroll(ctx); err != nil {
			break
		}
	}

	t.Posts = posts.results
	s.log.Debug("read thread", "thread", c.ID, "posts", len(t.Posts))
	return t, nil
}

// postCollector keeps one Result per post id in page order. A post that
// failed on one scroll and reads on a later one keeps only the read.
type postCollector struct {
	results []types.Result
	index   map[int64]int
}

func newPostCollector() *postCollector {
	return &postCollector{index: make(map[int64]int)}
}

// add records r and reports whether it is a newly readable post.
func (c *postCollector) add(r types.Result) bool {
	id := r.Post.ID
	i, known := c.index[id]
	if id != 0 && known {
		if !r.OK() || c.results[i].OK() {
			return false
		}
		c.results[i] = r
		return true
	}
	if id != 0 {
		c.index[id] = len(c.results)
	}
	c.results = append(c.results, r)
	return r.OK()
}

// SearchAccounts lists the accounts found by a people search for keyword.
func (s *Session) SearchAccounts(ctx context.Context, keyword string) ([]types.Account, error) {
	ctx, cancel := s.scope(ctx, 3*time.Minute)
	defer cancel()

	u := searchURL(keyword, "user")
	if err := chromedp.Run(ctx, chromedp.Navigate(u)); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", u, err)
	}
	waitCtx, waitCancel := context.WithTimeout(ctx, s.opts.ArticleTimeout)
	err := chromedp.Run(waitCtx, chromedp.WaitReady(UserCell, chromedp.ByQuery))
	waitCancel()
	if err != nil {
		s.log.Info("no accounts found", "keyword", keyword)
		return nil, nil
	}

	var (
		out   []types.Account
		seen  = make(map[string]bool)
		stall int
	)
	for scroll := 0; scroll < s.opts.MaxSearchScrolls; scroll++ {
		var cells []string
		if err := chromedp.Run(ctx, chromedp.Evaluate(userCellsJS, &cells)); err != nil {
			break
		}
		unseen := 0
		for _, cell := range cells {
			a, ok := ParseUserCell(cell)
			if !ok || seen[a.Handle] {
				continue
			}
			seen[a.Handle] = true
			unseen++
			out = append(out, a)
		}
		if unseen == 0 {
			if stall++; stall >= s.opts.StallThreshold {
				break
			}
		} else {
			stall = 0
		}
		if err := s.scroll(ctx); err != nil {
			break
		}
	}

	s.log.Debug("account search", "keyword", keyword, "accounts", len(out))
	return out, nil
}

// Profile reads the display name and bio from an account's profile page.
func (s *Session) Profile(ctx context.Context, handle string) (types.Account, error) {
	ctx, cancel := s.scope(ctx, time.Minute)
	defer cancel()

	u := baseURL + "/" + url.PathEscape(handle)
	var page string
	err := chromedp.Run(ctx,
		chromedp.Navigate(u),
		chromedp.ActionFunc(func(ctx context.Context) error {
			waitCtx, cancel := context.WithTimeout(ctx, s.opts.TimestampTimeout)
			defer cancel()
			// a missing bio block is not an error
			_ = chromedp.WaitReady(UserName, chromedp.ByQuery).Do(waitCtx)
			return nil
		}),
		chromedp.OuterHTML(PrimaryColumn, &page, chromedp.ByQuery),
	)
	if err != nil {
		return types.Account{Handle: handle}, fmt.Errorf("failed to load profile %s: %w", handle, err)
	}

	a, err := ParseProfile(page)
	if err != nil {
		return types.Account{Handle: handle}, err
	}
	if a.Handle == "" {
		a.Handle = handle
	}
	return a, nil
}

// load navigates and waits for the first article.
func (s *Session) load(ctx context.Context, pageURL string) error {
	if err := chromedp.Run(ctx, chromedp.Navigate(pageURL)); err != nil {
		return fmt.Errorf("failed to load %s: %w", pageURL, err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, s.opts.ArticleTimeout)
	defer cancel()
	if err := chromedp.Run(waitCtx, chromedp.WaitReady(TweetArticle, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("no posts on %s: %w", pageURL, err)
	}
	return nil
}

type pageSnapshot struct {
	Articles []snapshot `json:"articles"`
	End      bool       `json:"end"`
}

func (s *Session) snapshot(ctx context.Context) (pageSnapshot, error) {
	var page pageSnapshot
	if err := chromedp.Run(ctx, chromedp.Evaluate(snapshotJS, &page)); err != nil {
		return page, fmt.Errorf("failed to snapshot articles: %w", err)
	}
	return page, nil
}

func (s *Session) scroll(ctx context.Context) error {
	if err := chromedp.Run(ctx,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
	); err != nil {
		return err
	}
	select {
	case <-time.After(s.opts.ScrollPause):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func searchURL(keyword, filter string) string {
	q := url.Values{}
	q.Set("q", keyword)
	q.Set("src", "typed_query")
	q.Set("f", filter)
	return baseURL + "/search?" + q.Encode()
}

func jsList(values []string) string {
	b, _ := json.Marshal(values)
	return string(b)
}

// snapshotJS captures every top-level article in render order. It stops at
// the "Discover more" heading so recommended posts are never read.
var snapshotJS = fmt.Sprintf(`(() => {
  const stopLabels = %s;
  const replyPrefixes = %s;
  const article = %q;
  const frame = %q;
  const ty = (cell) => {
    const m = (cell.getAttribute('style') || '').match(/translateY\(([\d.]+)px\)/);
    return m ? parseFloat(m[1]) : 0;
  };
  const cells = Array.from(document.querySelectorAll(%q)).sort((a, b) => ty(a) - ty(b));
  const out = [];
  let end = false;
  for (const cell of cells) {
    const flat = (cell.innerText || '').replace(/\s+/g, '');
    if (!cell.querySelector(article) && stopLabels.some((l) => flat.includes(l.replace(/\s+/g, '')))) {
      end = true;
      break;
    }
    for (const art of cell.querySelectorAll(article)) {
      if (art.parentElement && art.parentElement.closest(article)) continue;
      const snap = { y: ty(cell), id: '' };
      try {
        const time = art.querySelector('a[href*="/status/"] time');
        const href = time ? time.closest('a').getAttribute('href') : '';
        const m = (href || '').match(/\/status\/(\d+)/);
        snap.id = m ? m[1] : '';
        snap.html = art.outerHTML;
        try {
          const own = (el) => {
            if (el.closest(article) !== art) return false;
            const q = el.closest(frame);
            return !q || !art.contains(q);
          };
          const ind = Array.from(art.querySelectorAll('div, span')).find((el) => {
            const t = (el.textContent || '').replace(/\s+/g, ' ').trim();
            return own(el) && replyPrefixes.some((p) => t.startsWith(p));
          });
          if (ind) {
            const style = window.getComputedStyle(ind);
            snap.replyVisible = ind.getClientRects().length > 0 && style.visibility !== 'hidden' && style.display !== 'none';
          } else {
            snap.replyVisible = null;
          }
        } catch (e) {
          snap.replyVisibleErr = String(e);
        }
      } catch (e) {
        snap.err = String(e);
      }
      out.push(snap);
    }
  }
  return { articles: out, end };
})()`, jsList(discoverMoreLabels), jsList(replyPrefixes), TweetArticle, QuoteFrame, Cell)

var userCellsJS = fmt.Sprintf(`Array.from(document.querySelectorAll(%q)).map((el) => el.outerHTML)`, UserCell)
