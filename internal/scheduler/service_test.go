package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sacco/pkg/errors"
	"sacco/pkg/logger"
)

func TestScheduleValidation(t *testing.T) {
	s := NewScheduler(time.Millisecond, logger.NewNop())
	run := func(context.Context) error { return nil }

	assert.True(t, errors.IsValidation(s.Schedule(&Job{Interval: time.Second, Run: run})))
	assert.True(t, errors.IsValidation(s.Schedule(&Job{Name: "sweep", Run: run})))
	require.NoError(t, s.Schedule(&Job{Name: "sweep", Interval: time.Second, Run: run}))
	assert.ErrorIs(t, s.Schedule(&Job{Name: "sweep", Interval: time.Second, Run: run}), errors.ErrAlreadyExists)
}

func TestSchedulerRunsDueJobs(t *testing.T) {
	s := NewScheduler(5*time.Millisecond, logger.NewNop())
	var runs, failures int32
	require.NoError(t, s.Schedule(&Job{
		Name:     "sweep",
		Interval: 10 * time.Millisecond,
		NextRun:  time.Now(),
		Run: func(context.Context) error {
			atomic.AddInt32(&runs, 1)
			return nil
		},
	}))
	require.NoError(t, s.Schedule(&Job{
		Name:     "broken",
		Interval: 10 * time.Millisecond,
		NextRun:  time.Now(),
		Run: func(context.Context) error {
			atomic.AddInt32(&failures, 1)
			panic("boom")
		},
	}))

	s.Start(context.Background())
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 2 && atomic.LoadInt32(&failures) >= 2
	}, time.Second, 5*time.Millisecond)
	s.Stop()

	for _, j := range s.Jobs() {
		assert.Equal(t, JobStatusActive, j.Status)
		if j.Name == "broken" {
			assert.Error(t, j.LastErr)
		} else {
			assert.NoError(t, j.LastErr)
		}
	}
}

func TestPausedJobsDoNotRun(t *testing.T) {
	s := NewScheduler(2*time.Millisecond, logger.NewNop())
	var runs int32
	require.NoError(t, s.Schedule(&Job{
		Name:     "sweep",
		Interval: time.Millisecond,
		NextRun:  time.Now(),
		Run: func(context.Context) error {
			atomic.AddInt32(&runs, 1)
			return nil
		},
	}))
	require.True(t, s.Pause("sweep"))
	assert.False(t, s.Pause("missing"))

	s.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&runs))

	require.True(t, s.Resume("sweep"))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) > 0 }, time.Second, 2*time.Millisecond)
	s.Stop()
}
