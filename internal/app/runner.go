package app

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/ibeckermayer/threadkeeper/internal/classifier"
	"github.com/ibeckermayer/threadkeeper/internal/config"
	"github.com/ibeckermayer/threadkeeper/internal/filter"
	"github.com/ibeckermayer/threadkeeper/internal/gate"
	"github.com/ibeckermayer/threadkeeper/internal/refiner"
	"github.com/ibeckermayer/threadkeeper/internal/report"
	"github.com/ibeckermayer/threadkeeper/internal/scraper"
	"github.com/ibeckermayer/threadkeeper/internal/stats"
	"github.com/ibeckermayer/threadkeeper/internal/store"
	"github.com/ibeckermayer/threadkeeper/internal/thread"
	"github.com/ibeckermayer/threadkeeper/internal/types"
)

// Thread skip reasons reported in the summary.
const (
	SkipLoadFailed      = "load_failed"
	SkipPageUnavailable = "page_unavailable"
	SkipAuthorMismatch  = "author_mismatch"
	SkipAnchorMissing   = "anchor_missing"
	SkipNoUnits         = "no_units"
)

// Extractor reads posts from X
type Extractor interface {
	Timeline(ctx context.Context, author string, limit int, keep scraper.Keep) ([]types.Candidate, error)
	SearchTop(ctx context.Context, keyword string, limit int, keep scraper.Keep) ([]types.Candidate, error)
	Thread(ctx context.Context, c types.Candidate) (types.Thread, error)
	SearchAccounts(ctx context.Context, keyword string) ([]types.Account, error)
	Profile(ctx context.Context, handle string) (types.Account, error)
}

// Persister registers admitted Units
type Persister interface {
	CreateUnit(ctx context.Context, u types.Unit, transcript string) error
}

// RunLog records runs and their final counts
type RunLog interface {
	StartRun(ctx context.Context, mode, author string) (store.Run, error)
	FinishRun(ctx context.Context, r store.Run) error
}

// Transcriber reads the text in a Unit's media
type Transcriber interface {
	Transcribe(ctx context.Context, u types.Unit) string
}

// TextRefiner rewrites a transcript
type TextRefiner interface {
	Refine(ctx context.Context, transcript string) (string, error)
}

// ReportSender mails the run report
type ReportSender interface {
	SendReport(e *report.Email, to string) error
}

// Deps are the collaborators of a Runner. Only Extractor, Dedup and
// Persister are required.
type Deps struct {
	Extractor   Extractor
	Dedup       gate.DedupStore
	Persister   Persister
	Runs        RunLog
	Transcriber Transcriber
	Refiner     TextRefiner
	Steps       *store.StepCache
	Notifier    ReportSender
	Metrics     *stats.Metrics
	Logger      *slog.Logger
}

// Runner executes runs against one configuration
type Runner struct {
	cfg  *config.Config
	deps Deps
	log  *slog.Logger
	now  func() time.Time

	assembler  *thread.Assembler
	adFilter   *filter.AdFilter
	accounts   *filter.Account
	postFilter *filter.Post
}

// NewRunner builds a Runner for cfg.
func NewRunner(cfg *config.Config, deps Deps) *Runner {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	ads := filter.NewAdFilter(cfg.AdKeywords(filter.DefaultAdKeywords))
	return &Runner{
		cfg:  cfg,
		deps: deps,
		log:  log,
		now:  time.Now,
		assembler: thread.New(thread.Options{
			AdFilter:      ads,
			StopAtForeign: cfg.Scraping.StopAtForeignReply,
			Logger:        log,
		}),
		adFilter:   ads,
		accounts:   filter.NewAccount(cfg.Filters.NameBioKeywords),
		postFilter: filter.NewPost(cfg.Filters.PostKeywords),
	}
}

// Run performs one run. It returns an error only when the run could not
// start; failures inside the run are counted in the summary.
func (r *Runner) Run(ctx context.Context) (*report.Summary, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}

	started := r.now()
	run := store.Run{ID: uuid.NewString(), Mode: r.cfg.Target.Mode, Author: r.cfg.Target.Author, StartedAt: started}
	if r.deps.Runs != nil {
		if rec, err := r.deps.Runs.StartRun(ctx, run.Mode, run.Author); err != nil {
			r.log.Warn("failed to record run start", "error", err)
		} else {
			run = rec
		}
	}

	summary := report.NewSummary(run.ID, run.Mode, run.Author, started)
	sess := newSession(r.cfg, run.ID, r.deps.Dedup, summary, r.log)
	sess.Logger.Info("run started", "mode", run.Mode, "quota", sess.Quota.Remaining())

	switch r.cfg.Target.Mode {
	case config.ModeTargetOnly:
		r.harvestAuthor(ctx, sess, r.cfg.Target.Author, nil)
	case config.ModeSearchFiltered:
		r.harvestAccounts(ctx, sess, r.postFilter)
	case config.ModeSearchAll:
		r.harvestAccounts(ctx, sess, nil)
	case config.ModeKeywordTrend:
		r.harvestKeywords(ctx, sess)
	}

	r.persist(ctx, sess)
	r.finish(ctx, sess, run)
	return summary, nil
}

// harvestAuthor walks an author's timeline, newest origin first.
func (r *Runner) harvestAuthor(ctx context.Context, sess *Session, author string, posts *filter.Post) {
	if sess.done() || ctx.Err() != nil {
		return
	}
	log := sess.Logger.With("author", author)

	keep := func(p types.PostRecord) bool {
		return thread.SameAuthor(p.AuthorHandle, author) && r.keepListed(p)
	}
	cands, err := r.deps.Extractor.Timeline(ctx, author, sess.listingLimit(), keep)
	if err != nil {
		log.Warn("timeline failed", "error", err)
		sess.Summary.SkipThread(SkipLoadFailed)
		return
	}
	log.Info("collected timeline", "candidates", len(cands))
	sess.candidates = append(sess.candidates, cands...)

	slices.SortFunc(cands, func(a, b types.Candidate) int { return cmp.Compare(b.ID, a.ID) })
	for _, c := range cands {
		if sess.done() || ctx.Err() != nil {
			return
		}
		r.processThread(ctx, sess, c, author, posts)
	}
}

// harvestAccounts finds authors by name/bio keyword and walks each timeline.
func (r *Runner) harvestAccounts(ctx context.Context, sess *Session, posts *filter.Post) {
	visited := make(map[string]bool)
	for _, kw := range r.cfg.Filters.NameBioKeywords {
		if sess.done() || ctx.Err() != nil {
			return
		}
		accounts, err := r.deps.Extractor.SearchAccounts(ctx, kw)
		if err != nil {
			sess.Logger.Warn("account search failed", "keyword", kw, "error", err)
			continue
		}
		sess.Logger.Info("searched accounts", "keyword", kw, "accounts", len(accounts))

		for _, a := range accounts {
			if sess.done() || ctx.Err() != nil {
				return
			}
			if visited[a.Handle] || !r.accounts.Accept(a) {
				continue
			}
			visited[a.Handle] = true
			r.harvestAuthor(ctx, sess, a.Handle, posts)
		}
	}
}

// harvestKeywords walks the top search results for each post keyword, one
// thread per author.
func (r *Runner) harvestKeywords(ctx context.Context, sess *Session) {
	authors := make(map[string]bool)
	for _, kw := range r.cfg.Filters.PostKeywords {
		if sess.done() || ctx.Err() != nil {
			return
		}
		cands, err := r.deps.Extractor.SearchTop(ctx, kw, sess.listingLimit(), r.keepListed)
		if err != nil {
			sess.Logger.Warn("keyword search failed", "keyword", kw, "error", err)
			continue
		}
		sess.Logger.Info("searched posts", "keyword", kw, "candidates", len(cands))
		sess.candidates = append(sess.candidates, cands...)

		for _, c := range cands {
			if sess.done() || ctx.Err() != nil {
				return
			}
			if c.Author == "" || authors[c.Author] {
				continue
			}
			authors[c.Author] = true

			if len(r.cfg.Filters.NameBioKeywords) > 0 {
				a, err := r.deps.Extractor.Profile(ctx, c.Author)
				if err != nil {
					sess.Logger.Warn("profile failed", "author", c.Author, "error", err)
					continue
				}
				if !r.accounts.Accept(a) {
					continue
				}
			}
			r.processThread(ctx, sess, c, c.Author, nil)
		}
	}
}

// keepListed admits listing posts that can open a Unit.
func (r *Runner) keepListed(p types.PostRecord) bool {
	switch classifier.Classify(p) {
	case types.Reply, types.QuoteShort:
		return false
	}
	if _, ad := r.adFilter.IsAd(p.Text); ad {
		return false
	}
	return true
}

// processThread reads one detail page and feeds its Units to the gate.
func (r *Runner) processThread(ctx context.Context, sess *Session, c types.Candidate, author string, posts *filter.Post) {
	log := sess.Logger.With("thread", c.ID, "author", author)
	sum := sess.Summary

	t, err := r.deps.Extractor.Thread(ctx, c)
	if err != nil {
		reason := SkipLoadFailed
		if errors.Is(err, scraper.ErrPageUnavailable) {
			reason = SkipPageUnavailable
		}
		log.Warn("thread skipped", "reason", reason, "error", err)
		sum.SkipThread(reason)
		return
	}
	sum.ThreadsVisited++
	t.Author = author
	sess.threads = append(sess.threads, t)

	classifier.Apply(t.Posts)
	asm, err := r.assembler.Assemble(t)
	switch {
	case errors.Is(err, thread.ErrAuthorMismatch):
		sum.SkipThread(SkipAuthorMismatch)
		return
	case errors.Is(err, thread.ErrAnchorMissing):
		sum.SkipThread(SkipAnchorMissing)
		return
	case err != nil:
		log.Warn("assembly failed", "error", err)
		sum.SkipThread(SkipLoadFailed)
		return
	}

	sum.SkipPosts(asm.Skipped)
	if asm.Stopped || hasUnavailable(asm.Skipped) {
		sum.ThreadsPartial++
	}
	sum.Assembled += len(asm.Units)
	sum.AdDropped += len(asm.Dropped)

	units := asm.Units[:0:0]
	for _, u := range asm.Units {
		if posts.Accept(u) {
			units = append(units, u)
		} else {
			sum.Filtered++
		}
	}
	if len(units) == 0 {
		sum.SkipThread(SkipNoUnits)
		return
	}

	admitted := sess.Gate.Admit(ctx, units)
	log.Info("thread assembled", "units", len(asm.Units), "admitted", len(admitted), "quota", sess.Quota.Remaining())
}

func hasUnavailable(skipped []types.Result) bool {
	return slices.ContainsFunc(skipped, func(r types.Result) bool {
		return r.Skip == types.SkipUnavailable
	})
}

// persist registers the admitted Units in ascending id order.
func (r *Runner) persist(ctx context.Context, sess *Session) {
	sum := sess.Summary
	admitted := sess.Gate.Admitted()
	st := sess.Gate.Stats()
	sum.Admitted = len(admitted)
	sum.Duplicates = st.Duplicates + st.Claimed
	sum.Units = admitted

	ctx = store.WithRunID(ctx, sess.RunID)
	for _, u := range admitted {
		transcript := r.transcribe(ctx, sess, u)
		if err := r.deps.Persister.CreateUnit(ctx, u, transcript); err != nil {
			sess.Logger.Error("failed to register unit", "post_id", u.PrimaryID, "error", err)
			sum.Failed++
			continue
		}
		sum.Persisted++
	}
}

// transcribe returns the OCR transcript of u, refined when a refiner is set.
// A refiner failure keeps the raw transcript.
func (r *Runner) transcribe(ctx context.Context, sess *Session, u types.Unit) string {
	if r.deps.Transcriber == nil || len(u.Media) == 0 {
		return ""
	}
	raw := r.deps.Transcriber.Transcribe(ctx, u)
	if raw == "" || r.deps.Refiner == nil {
		return raw
	}
	refined, err := r.deps.Refiner.Refine(refiner.WithUnitID(ctx, u.Key()), raw)
	if err != nil || refined == "" {
		sess.Logger.Warn("refiner failed, keeping raw transcript", "post_id", u.PrimaryID, "error", err)
		return raw
	}
	return refined
}

// finish closes the summary and reports it.
func (r *Runner) finish(ctx context.Context, sess *Session, run store.Run) {
	sum := sess.Summary
	sum.FinishedAt = r.now()
	sum.QuotaRemaining = sess.Quota.Remaining()

	if r.deps.Steps != nil {
		r.saveStep(sess, store.StepCandidates, sess.candidates)
		r.saveStep(sess, store.StepThreads, sess.threads)
		r.saveStep(sess, store.StepAdmitted, sum.Units)
	}

	if r.deps.Runs != nil {
		run.FinishedAt = sum.FinishedAt
		run.ThreadsVisited = sum.ThreadsVisited
		run.Admitted = sum.Admitted
		run.Persisted = sum.Persisted
		run.Failed = sum.Failed
		if err := r.deps.Runs.FinishRun(ctx, run); err != nil {
			sess.Logger.Warn("failed to record run finish", "error", err)
		}
	}

	status := "ok"
	if sum.Failed > 0 {
		status = "partial"
	}
	if r.deps.Metrics != nil {
		r.deps.Metrics.ObserveRun(sum, status)
	}

	sess.Logger.Info("run finished",
		"status", status,
		"threads", sum.ThreadsVisited,
		"admitted", sum.Admitted,
		"persisted", sum.Persisted,
		"failed", sum.Failed,
		"took", sum.Duration().Round(time.Millisecond),
	)

	if r.cfg.Email.Enabled && r.deps.Notifier != nil && sum.Admitted > 0 {
		mail, err := report.BuildEmail(sum)
		if err != nil {
			sess.Logger.Warn("failed to build report email", "error", err)
			return
		}
		if err := r.deps.Notifier.SendReport(mail, r.cfg.Email.ToAddr); err != nil {
			sess.Logger.Warn("failed to send report", "error", err)
		}
	}
}

func (r *Runner) saveStep(sess *Session, step store.StepName, data any) {
	path, err := store.SaveStepOutput(r.deps.Steps, step, sess.RunID, data)
	if err != nil {
		sess.Logger.Warn("failed to cache step", "step", step, "error", err)
		return
	}
	sess.Logger.Debug("cached step", "step", step, "path", path)
}
