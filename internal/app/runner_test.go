package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/threadkeeper/internal/config"
	"github.com/ibeckermayer/threadkeeper/internal/report"
	"github.com/ibeckermayer/threadkeeper/internal/scraper"
	"github.com/ibeckermayer/threadkeeper/internal/store"
	"github.com/ibeckermayer/threadkeeper/internal/types"
)

func post(id int64, author, text string) types.PostRecord {
	return types.PostRecord{
		ID:           id,
		AuthorHandle: author,
		Text:         text,
		Signals: types.Signals{
			NestedPost:     types.Observed(false),
			QuoteMarker:    types.Observed(false),
			ReplyIndicator: types.Observed(false),
			ReplyVisible:   types.Observed(false),
			ActionButtons:  types.Observed(4),
		},
	}
}

func reply(id int64, author, text string) types.PostRecord {
	p := post(id, author, text)
	p.Signals.ReplyIndicator = types.Observed(true)
	p.Signals.ReplyVisible = types.Observed(true)
	return p
}

func threadOf(author string, posts ...types.PostRecord) types.Thread {
	t := types.Thread{Author: author, OriginID: posts[0].ID}
	for _, p := range posts {
		t.Posts = append(t.Posts, types.Accept(p))
	}
	return t
}

type fakeExtractor struct {
	timelines map[string][]types.PostRecord
	top       map[string][]types.PostRecord
	threads   map[int64]types.Thread
	threadErr map[int64]error
	accounts  map[string][]types.Account
	profiles  map[string]types.Account

	visited  []int64
	profiled []string
	limits   []int
}

func listing(posts []types.PostRecord, limit int, keep scraper.Keep) []types.Candidate {
	var out []types.Candidate
	for _, p := range posts {
		if len(out) >= limit {
			break
		}
		if keep(p) {
			out = append(out, types.Candidate{ID: p.ID, Author: p.AuthorHandle, URL: types.PostURL(p.AuthorHandle, p.ID)})
		}
	}
	return out
}

func (f *fakeExtractor) Timeline(_ context.Context, author string, limit int, keep scraper.Keep) ([]types.Candidate, error) {
	f.limits = append(f.limits, limit)
	return listing(f.timelines[author], limit, keep), nil
}

func (f *fakeExtractor) SearchTop(_ context.Context, kw string, limit int, keep scraper.Keep) ([]types.Candidate, error) {
	f.limits = append(f.limits, limit)
	return listing(f.top[kw], limit, keep), nil
}

func (f *fakeExtractor) Thread(_ context.Context, c types.Candidate) (types.Thread, error) {
	f.visited = append(f.visited, c.ID)
	if err := f.threadErr[c.ID]; err != nil {
		return types.Thread{}, err
	}
	t, ok := f.threads[c.ID]
	if !ok {
		return types.Thread{}, fmt.Errorf("no thread %d", c.ID)
	}
	return t, nil
}

func (f *fakeExtractor) SearchAccounts(_ context.Context, kw string) ([]types.Account, error) {
	return f.accounts[kw], nil
}

func (f *fakeExtractor) Profile(_ context.Context, handle string) (types.Account, error) {
	f.profiled = append(f.profiled, handle)
	return f.profiles[handle], nil
}

type created struct {
	id         int64
	transcript string
}

type memStore struct {
	existing map[string]bool
	fail     map[int64]bool
	created  []created
	finished []store.Run
}

func (m *memStore) Exists(_ context.Context, id string) (bool, error) {
	return m.existing[id], nil
}

func (m *memStore) CreateUnit(_ context.Context, u types.Unit, transcript string) error {
	if m.fail[u.PrimaryID] {
		return errors.New("disk full")
	}
	m.created = append(m.created, created{u.PrimaryID, transcript})
	return nil
}

func (m *memStore) StartRun(_ context.Context, mode, author string) (store.Run, error) {
	return store.Run{ID: "run-1", Mode: mode, Author: author, StartedAt: time.Now()}, nil
}

func (m *memStore) FinishRun(_ context.Context, r store.Run) error {
	m.finished = append(m.finished, r)
	return nil
}

func (m *memStore) ids() []int64 {
	var out []int64
	for _, c := range m.created {
		out = append(out, c.id)
	}
	return out
}

func baseConfig(mode string) *config.Config {
	cfg := config.Default()
	cfg.Target.Mode = mode
	cfg.Target.Author = "alice"
	cfg.OCR.Enabled = false
	return cfg
}

func newRunner(cfg *config.Config, ex *fakeExtractor, st *memStore) *Runner {
	return NewRunner(cfg, Deps{Extractor: ex, Dedup: st, Persister: st, Runs: st})
}

func TestRun_TargetOnlyStopsAtQuota(t *testing.T) {
	cfg := baseConfig(config.ModeTargetOnly)
	cfg.Limits.MaxUnitsToRegister = 2

	ex := &fakeExtractor{
		timelines: map[string][]types.PostRecord{"alice": {
			post(200, "alice", "second"),
			post(300, "alice", "third"),
			reply(150, "alice", "a reply"),
			post(120, "bob", "reposted"),
			post(50, "alice", "oldest"),
		}},
		threads: map[int64]types.Thread{
			300: threadOf("alice", post(300, "alice", "origin"), reply(301, "alice", "more")),
			200: threadOf("alice", post(200, "alice", "first"), post(201, "alice", "standalone")),
			50:  threadOf("alice", post(50, "alice", "never read")),
		},
	}
	st := &memStore{}

	sum, err := newRunner(cfg, ex, st).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{6}, ex.limits)
	assert.Equal(t, []int64{300, 200}, ex.visited, "newest origin first, stop once quota is spent")
	assert.Equal(t, []int64{200, 300}, st.ids(), "registered ascending")

	assert.Equal(t, "run-1", sum.RunID)
	assert.Equal(t, 2, sum.ThreadsVisited)
	assert.Equal(t, 3, sum.Assembled)
	assert.Equal(t, 2, sum.Admitted)
	assert.Equal(t, 2, sum.Persisted)
	assert.Equal(t, 0, sum.QuotaRemaining)
	assert.Equal(t, []int64{301}, sum.Units[1].MergedIDs)

	require.Len(t, st.finished, 1)
	assert.Equal(t, 2, st.finished[0].Persisted)
}

func TestRun_SkipsRegisteredAndFailedThreads(t *testing.T) {
	cfg := baseConfig(config.ModeTargetOnly)

	ex := &fakeExtractor{
		timelines: map[string][]types.PostRecord{"alice": {
			post(40, "alice", "a"), post(30, "alice", "b"), post(20, "alice", "c"), post(10, "alice", "d"),
		}},
		threads: map[int64]types.Thread{
			40: threadOf("alice", post(40, "alice", "registered before")),
			30: threadOf("alice", post(30, "bob", "not hers")),
			10: threadOf("alice", post(10, "alice", "楽天で買える")),
		},
		threadErr: map[int64]error{20: fmt.Errorf("x: %w", scraper.ErrPageUnavailable)},
	}
	st := &memStore{existing: map[string]bool{"40": true}}

	sum, err := newRunner(cfg, ex, st).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, st.created)
	assert.Equal(t, 1, sum.Duplicates)
	assert.Equal(t, 1, sum.AdDropped)
	assert.Equal(t, 1, sum.ThreadsSkipped[SkipPageUnavailable])
	assert.Equal(t, 1, sum.ThreadsSkipped[SkipAuthorMismatch])
	assert.Equal(t, 1, sum.ThreadsSkipped[SkipNoUnits])
	assert.Equal(t, 3, sum.ThreadsVisited)
	assert.Equal(t, 10, sum.QuotaRemaining)
}

type fakeTranscriber struct{}

func (fakeTranscriber) Transcribe(_ context.Context, u types.Unit) string {
	return fmt.Sprintf("[画像1]\nocr %d", u.PrimaryID)
}

type fakeRefiner struct{ fail bool }

func (f fakeRefiner) Refine(_ context.Context, s string) (string, error) {
	if f.fail {
		return "", errors.New("api down")
	}
	return "refined: " + s, nil
}

type fakeNotifier struct{ mails []*report.Email }

func (f *fakeNotifier) SendReport(e *report.Email, _ string) error {
	f.mails = append(f.mails, e)
	return nil
}

func TestRun_PersistsTranscriptsAndCountsFailures(t *testing.T) {
	cfg := baseConfig(config.ModeTargetOnly)
	cfg.Email.Enabled = true
	cfg.Email.SMTPHost = "smtp.example.com"
	cfg.Email.ToAddr = "me@example.com"

	withMedia := post(20, "alice", "photo")
	withMedia.MediaRefs = []string{"https://pbs.twimg.com/media/A.jpg"}

	ex := &fakeExtractor{
		timelines: map[string][]types.PostRecord{"alice": {post(20, "alice", ""), post(10, "alice", "")}},
		threads: map[int64]types.Thread{
			20: threadOf("alice", withMedia),
			10: threadOf("alice", post(10, "alice", "plain")),
		},
	}
	st := &memStore{fail: map[int64]bool{10: true}}
	mail := &fakeNotifier{}

	r := NewRunner(cfg, Deps{
		Extractor:   ex,
		Dedup:       st,
		Persister:   st,
		Transcriber: fakeTranscriber{},
		Refiner:     fakeRefiner{},
		Notifier:    mail,
		Steps:       store.NewStepCache(t.TempDir()),
	})
	sum, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, st.created, 1)
	assert.Equal(t, created{20, "refined: [画像1]\nocr 20"}, st.created[0])
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Persisted)
	assert.Len(t, mail.mails, 1)

	r.deps.Refiner = fakeRefiner{fail: true}
	st.created = nil
	st.existing = nil
	_, err = r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, st.created, 1)
	assert.Equal(t, "[画像1]\nocr 20", st.created[0].transcript, "raw transcript kept when refining fails")
}

func TestRun_SearchFiltered(t *testing.T) {
	cfg := baseConfig(config.ModeSearchFiltered)
	cfg.Filters.NameBioKeywords = []string{"スカウト"}
	cfg.Filters.PostKeywords = []string{"求人"}

	ex := &fakeExtractor{
		accounts: map[string][]types.Account{"スカウト": {
			{Handle: "taro", Name: "太郎", Bio: "新宿でスカウトしています"},
			{Handle: "hanako", Name: "花子", Bio: "cats"},
			{Handle: "taro", Name: "太郎", Bio: "新宿でスカウトしています"},
		}},
		timelines: map[string][]types.PostRecord{
			"taro":   {post(500, "taro", ""), post(400, "taro", "")},
			"hanako": {post(900, "hanako", "")},
		},
		threads: map[int64]types.Thread{
			500: threadOf("taro", post(500, "taro", "求人あります")),
			400: threadOf("taro", post(400, "taro", "hello")),
		},
	}
	st := &memStore{}

	sum, err := newRunner(cfg, ex, st).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int64{500, 400}, ex.visited)
	assert.Equal(t, []int64{500}, st.ids())
	assert.Equal(t, 1, sum.Filtered)

	cfg.Target.Mode = config.ModeSearchAll
	st = &memStore{}
	ex.visited = nil
	_, err = newRunner(cfg, ex, st).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{400, 500}, st.ids(), "search_all keeps every post of matching accounts")
}

func TestRun_KeywordTrendOneThreadPerAuthor(t *testing.T) {
	cfg := baseConfig(config.ModeKeywordTrend)
	cfg.Filters.PostKeywords = []string{"求人"}

	ex := &fakeExtractor{
		top: map[string][]types.PostRecord{"求人": {
			post(700, "carol", "求人1"),
			post(690, "carol", "求人2"),
			reply(685, "erin", "求人 reply"),
			post(680, "dave", "求人3"),
		}},
		threads: map[int64]types.Thread{
			700: threadOf("carol", post(700, "carol", "求人1")),
			680: threadOf("dave", post(680, "dave", "求人3")),
		},
	}
	st := &memStore{}

	_, err := newRunner(cfg, ex, st).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{700, 680}, ex.visited)
	assert.Equal(t, []int64{680, 700}, st.ids())
	assert.Empty(t, ex.profiled)

	cfg.Filters.NameBioKeywords = []string{"スカウト"}
	ex.profiles = map[string]types.Account{"dave": {Handle: "dave", Bio: "スカウト"}}
	ex.visited = nil
	st = &memStore{}
	_, err = newRunner(cfg, ex, st).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "dave"}, ex.profiled)
	assert.Equal(t, []int64{680}, ex.visited)
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := baseConfig(config.ModeTargetOnly)
	cfg.Target.Author = ""
	_, err := newRunner(cfg, &fakeExtractor{}, &memStore{}).Run(context.Background())
	assert.True(t, errors.Is(err, config.ErrInvalid))
}
