package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ibeckermayer/threadkeeper/internal/auth"
	"github.com/ibeckermayer/threadkeeper/internal/config"
	"github.com/ibeckermayer/threadkeeper/internal/notifier"
	"github.com/ibeckermayer/threadkeeper/internal/ocr"
	"github.com/ibeckermayer/threadkeeper/internal/refiner"
	"github.com/ibeckermayer/threadkeeper/internal/refiner/providers"
	"github.com/ibeckermayer/threadkeeper/internal/report"
	"github.com/ibeckermayer/threadkeeper/internal/scraper"
	"github.com/ibeckermayer/threadkeeper/internal/stats"
	"github.com/ibeckermayer/threadkeeper/internal/store"
)

// Environment holds what outlives a single run: the database, the step
// cache, the X session cookies and the metrics.
type Environment struct {
	Config  *config.Config
	Store   *store.Store
	Steps   *store.StepCache
	Cookies *auth.CookieStore
	Metrics *stats.Metrics
	Logger  *slog.Logger
}

// OpenEnvironment opens the database under the cache dir. metrics may be nil.
func OpenEnvironment(cfg *config.Config, metrics *stats.Metrics, logger *slog.Logger) (*Environment, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cacheDir, err := config.CacheDir()
	if err != nil {
		return nil, err
	}
	configDir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(store.DefaultPath(cacheDir))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return &Environment{
		Config:  cfg,
		Store:   st,
		Steps:   store.NewStepCache(cacheDir),
		Cookies: auth.NewCookieStore(auth.DefaultCookieStorePath(configDir)),
		Metrics: metrics,
		Logger:  logger,
	}, nil
}

// Close releases the database.
func (e *Environment) Close() error {
	return e.Store.Close()
}

// ScraperOptions maps the config onto browser session options.
func ScraperOptions(cfg *config.Config, logger *slog.Logger) scraper.Options {
	opts := scraper.DefaultOptions()
	opts.Headless = cfg.Scraping.Headless
	if cfg.Scraping.PageTimeoutSeconds > 0 {
		opts.ArticleTimeout = time.Duration(cfg.Scraping.PageTimeoutSeconds) * time.Second
	}
	if cfg.Limits.MaxScrolls > 0 {
		opts.MaxScrolls = cfg.Limits.MaxScrolls
	}
	if cfg.Limits.MaxSearchScrolls > 0 {
		opts.MaxSearchScrolls = cfg.Limits.MaxSearchScrolls
	}
	if cfg.Limits.StallThreshold > 0 {
		opts.StallThreshold = cfg.Limits.StallThreshold
	}
	opts.Logger = logger
	return opts
}

// RunOnce opens a browser with the stored session and performs one run.
func (e *Environment) RunOnce(ctx context.Context) (*report.Summary, error) {
	cfg := e.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cookies, err := e.Cookies.XCookies()
	if err != nil {
		return nil, err
	}

	sess, err := scraper.Open(ctx, cookies, ScraperOptions(cfg, e.Logger))
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	deps := Deps{
		Extractor: sess,
		Dedup:     e.Store,
		Persister: e.Store,
		Runs:      e.Store,
		Steps:     e.Steps,
		Metrics:   e.Metrics,
		Logger:    e.Logger,
	}
	if cfg.OCR.Enabled {
		tess := ocr.NewTesseract(ocr.NewFetcher(), cfg.OCR.Languages, e.Logger)
		deps.Transcriber = ocr.NewTranscriber(tess, cfg.OCR.Concurrency, e.Logger)
	}
	if cfg.Refiner.Enabled {
		provider := providers.NewAnthropicProvider(cfg.Refiner.APIKey, cfg.Refiner.Model)
		deps.Refiner = refiner.New(provider, e.Steps, e.Logger)
	}
	if cfg.Email.Enabled {
		n, err := notifier.NewFromConfig(cfg.Email, e.Logger)
		if err != nil {
			return nil, err
		}
		deps.Notifier = n
	}

	return NewRunner(cfg, deps).Run(ctx)
}
