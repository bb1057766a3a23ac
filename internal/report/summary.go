// Package report summarizes a run for the terminal and for email.
package report

import (
	"maps"
	"slices"
	"time"

	"github.com/ibeckermayer/threadkeeper/internal/types"
)

// Summary counts what happened in one run
type Summary struct {
	RunID      string
	Mode       string
	Author     string
	StartedAt  time.Time
	FinishedAt time.Time

	ThreadsVisited int
	ThreadsPartial int            // traversal stopped early or lost posts
	ThreadsSkipped map[string]int // reason -> count

	PostsSkipped map[types.SkipReason]int

	Assembled  int
	AdDropped  int
	Filtered   int // rejected by the post keyword filter
	Duplicates int
	Admitted   int
	Persisted  int
	Failed     int

	QuotaRemaining int

	Units []types.Unit // admitted, ascending by PrimaryID
}

// NewSummary starts a summary for a run.
func NewSummary(runID, mode, author string, startedAt time.Time) *Summary {
	return &Summary{
		RunID:          runID,
		Mode:           mode,
		Author:         author,
		StartedAt:      startedAt,
		ThreadsSkipped: make(map[string]int),
		PostsSkipped:   make(map[types.SkipReason]int),
	}
}

// SkipThread records a traversal that produced nothing.
func (s *Summary) SkipThread(reason string) {
	s.ThreadsSkipped[reason]++
}

// SkipPosts records per-post skips.
func (s *Summary) SkipPosts(results []types.Result) {
	for _, r := range results {
		if !r.OK() {
			s.PostsSkipped[r.Skip]++
		}
	}
}

// TotalThreadsSkipped sums skipped traversals over every reason.
func (s *Summary) TotalThreadsSkipped() int {
	total := 0
	for _, n := range s.ThreadsSkipped {
		total += n
	}
	return total
}

// Duration is the wall time of the run.
func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	return slices.Sorted(maps.Keys(m))
}
