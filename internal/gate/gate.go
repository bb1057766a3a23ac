// Package gate admits assembled Units against the store and the run quota.
package gate

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/ibeckermayer/threadkeeper/internal/types"
)

// DedupStore answers whether a Unit is already registered.
type DedupStore interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Stats counts gate decisions over the run.
type Stats struct {
	Admitted    int
	Duplicates  int // already in the store
	Claimed     int // already admitted earlier in this run
	DedupErrors int
	Deferred    int // arrived after the quota ran out
}

// Gate enforces dedup and the quota for the whole run.
// It is not safe for concurrent use.
type Gate struct {
	quota    *Quota
	store    DedupStore
	log      *slog.Logger
	claimed  map[int64]struct{}
	admitted []types.Unit
	stats    Stats
}

// NewGate creates a gate over quota and store.
func NewGate(quota *Quota, store DedupStore, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		quota:   quota,
		store:   store,
		log:     logger,
		claimed: make(map[int64]struct{}),
	}
}

// Admit evaluates a batch in ascending PrimaryID order and returns the Units
// it admitted from this batch.
func (g *Gate) Admit(ctx context.Context, units []types.Unit) []types.Unit {
	batch := slices.Clone(units)
	slices.SortStableFunc(batch, func(a, b types.Unit) int {
		return cmp.Compare(a.PrimaryID, b.PrimaryID)
	})

	var out []types.Unit
	for i, u := range batch {
		if g.quota.Exhausted() {
			g.stats.Deferred += len(batch) - i
			g.log.Info("quota exhausted", "deferred", len(batch)-i)
			break
		}

		log := g.log.With("post_id", u.PrimaryID)

		if _, ok := g.claimed[u.PrimaryID]; ok {
			g.stats.Claimed++
			log.Debug("already claimed in this run")
			continue
		}

		exists, err := g.store.Exists(ctx, u.Key())
		if err != nil {
			g.stats.DedupErrors++
			log.Warn("dedup lookup failed, treating as new", "error", err)
		} else if exists {
			g.stats.Duplicates++
			log.Debug("already registered")
			continue
		}

		if !g.quota.take() {
			g.stats.Deferred += len(batch) - i
			break
		}
		g.claim(u)
		g.admitted = append(g.admitted, u)
		g.stats.Admitted++
		out = append(out, u)
		log.Info("admitted unit", "remaining", g.quota.Remaining())
	}
	return out
}

func (g *Gate) claim(u types.Unit) {
	g.claimed[u.PrimaryID] = struct{}{}
	for _, id := range u.MergedIDs {
		g.claimed[id] = struct{}{}
	}
}

// Exhausted reports whether the quota has run out.
func (g *Gate) Exhausted() bool {
	return g.quota.Exhausted()
}

// Remaining returns the registrations left in the quota.
func (g *Gate) Remaining() int {
	return g.quota.Remaining()
}

// Admitted returns every Unit admitted so far, ascending by PrimaryID.
func (g *Gate) Admitted() []types.Unit {
	out := slices.Clone(g.admitted)
	slices.SortFunc(out, func(a, b types.Unit) int {
		return cmp.Compare(a.PrimaryID, b.PrimaryID)
	})
	return out
}

// Stats returns the decision counts so far.
func (g *Gate) Stats() Stats {
	return g.stats
}
