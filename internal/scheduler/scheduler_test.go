package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunExclusive_SkipsOverlap(t *testing.T) {
	s, err := New("UTC", time.Minute, nil)
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.RunExclusive(context.Background(), "run", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ran := false
	err = s.RunExclusive(context.Background(), "run", func(context.Context) error {
		ran = true
		return nil
	})
	assert.True(t, errors.Is(err, ErrBusy))
	assert.False(t, ran)

	close(release)
	require.NoError(t, <-done)

	err = s.RunExclusive(context.Background(), "run", func(context.Context) error {
		ran = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, ran)
}

func TestRunExclusive_ReturnsJobError(t *testing.T) {
	s, err := New("", 0, nil)
	require.NoError(t, err)

	want := errors.New("boom")
	assert.Equal(t, want, s.RunExclusive(context.Background(), "run", func(context.Context) error { return want }))
}

func TestAddJob(t *testing.T) {
	s, err := New("UTC", time.Minute, nil)
	require.NoError(t, err)

	require.NoError(t, s.AddJob("run", "0 */6 * * *", func(context.Context) error { return nil }))
	assert.Error(t, s.AddJob("bad", "not a schedule", func(context.Context) error { return nil }))

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "run", jobs[0].Name)

	s.RemoveJob("run")
	assert.Empty(t, s.ListJobs())
}

func TestNew_BadTimezone(t *testing.T) {
	_, err := New("Mars/Olympus", time.Minute, nil)
	assert.Error(t, err)
}
