// Command threadkeeper is the scheduler daemon: it runs collection passes
// on a cron schedule and serves Prometheus metrics.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ibeckermayer/threadkeeper/internal/app"
	"github.com/ibeckermayer/threadkeeper/internal/config"
	"github.com/ibeckermayer/threadkeeper/internal/logging"
	"github.com/ibeckermayer/threadkeeper/internal/scheduler"
	"github.com/ibeckermayer/threadkeeper/internal/stats"
)

func main() {
	if err := run(); err != nil {
		slog.Error("threadkeeper stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if path, perr := config.ConfigPath(); perr == nil {
		if _, serr := os.Stat(path); errors.Is(serr, os.ErrNotExist) {
			// first run: leave a config to edit
			if err := config.Default().SaveFile(path); err != nil {
				slog.Warn("could not save default config", "error", err)
			}
		}
	}
	logger := logging.Init(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := stats.NewMetrics(reg)

	env, err := app.OpenEnvironment(cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer env.Close()

	sched, err := scheduler.New(cfg.Schedule.Timezone, 2*time.Hour, logger)
	if err != nil {
		return err
	}
	job := func(ctx context.Context) error {
		_, err := env.RunOnce(ctx)
		return err
	}
	if err := sched.AddJob("run", cfg.Schedule.Cron, job); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: cfg.Schedule.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving metrics", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	sched.Start()
	for _, j := range sched.ListJobs() {
		logger.Info("next run", "job", j.Name, "at", j.NextRun.Format(time.RFC3339))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownServer(srv, 10*time.Second, logger)
	<-sched.Stop().Done()
	return nil
}

// shutdownServer stops srv, waiting up to timeout for in-flight requests.
func shutdownServer(srv *http.Server, timeout time.Duration, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("metrics server shutdown failed", "error", err)
		return err
	}
	return nil
}
