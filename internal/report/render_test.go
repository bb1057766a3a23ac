package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/threadkeeper/internal/types"
)

func sample() *Summary {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewSummary("run-1", "target_only", "alice", start)
	s.FinishedAt = start.Add(90 * time.Second)
	s.ThreadsVisited = 4
	s.SkipThread("author_mismatch")
	s.SkipThread("author_mismatch")
	s.SkipThread("page_unavailable")
	s.SkipPosts([]types.Result{
		types.Skipped(types.PostRecord{ID: 1}, types.SkipForeignAuthor, nil),
		types.Accept(types.PostRecord{ID: 2}),
	})
	s.Admitted = 1
	views := 34000
	s.Units = []types.Unit{{
		PrimaryID: 100,
		Author:    "alice",
		Text:      "first line\nsecond line",
		URL:       types.PostURL("alice", 100),
		Metrics:   types.Metrics{Likes: 12000, Impressions: &views},
	}}
	return s
}

func TestSummary_Counts(t *testing.T) {
	s := sample()
	assert.Equal(t, 3, s.TotalThreadsSkipped())
	assert.Equal(t, 1, s.PostsSkipped[types.SkipForeignAuthor])
	assert.Len(t, s.PostsSkipped, 1)
	assert.Equal(t, 90*time.Second, s.Duration())
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	Render(&buf, sample())

	out := buf.String()
	assert.Contains(t, out, "run run-1")
	assert.Contains(t, out, "author_mismatch")
	assert.Contains(t, out, "posts skipped: foreign_author")
	assert.Contains(t, out, "first line second line")
	assert.Contains(t, out, "34000")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b", Preview(" a\n\n b ", 10))
	assert.Equal(t, "あいう…", Preview("あいうえおか", 4))
}

func TestBuildEmail(t *testing.T) {
	e, err := BuildEmail(sample())
	require.NoError(t, err)

	assert.Equal(t, "threadkeeper: 1 new from @alice (Mar 1 09:00)", e.Subject)
	assert.Contains(t, e.HTMLBody, "https://x.com/alice/status/100")
	assert.Contains(t, e.HTMLBody, "34000 views")
	assert.Contains(t, e.PlainBody, "admitted")
}
