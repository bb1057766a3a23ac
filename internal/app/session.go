// Package app drives one run: traversal by mode, assembly, gating,
// persistence and the run report.
package app

import (
	"log/slog"

	"github.com/ibeckermayer/threadkeeper/internal/config"
	"github.com/ibeckermayer/threadkeeper/internal/gate"
	"github.com/ibeckermayer/threadkeeper/internal/report"
	"github.com/ibeckermayer/threadkeeper/internal/types"
)

// Session is the state of one run. It is created by Runner.Run and passed
// to every step; nothing about a run lives in package state.
type Session struct {
	Config  *config.Config
	RunID   string
	Quota   *gate.Quota
	Gate    *gate.Gate
	Logger  *slog.Logger
	Summary *report.Summary

	candidates []types.Candidate
	threads    []types.Thread
}

func newSession(cfg *config.Config, runID string, dedup gate.DedupStore, summary *report.Summary, logger *slog.Logger) *Session {
	logger = logger.With("run", runID)
	quota := gate.NewQuota(cfg.Limits.MaxUnitsToRegister)
	return &Session{
		Config:  cfg,
		RunID:   runID,
		Quota:   quota,
		Gate:    gate.NewGate(quota, dedup, logger),
		Logger:  logger,
		Summary: summary,
	}
}

// done reports whether the outer loops should stop.
func (s *Session) done() bool {
	return s.Gate.Exhausted()
}

// listingLimit is how many candidates to collect for the quota left.
func (s *Session) listingLimit() int {
	return s.Quota.Remaining() * s.Config.Limits.URLBufferFactor
}
