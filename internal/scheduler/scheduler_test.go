package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(zerolog.Nop(), clockwork.NewFakeClockAt(time.Date(2024, 11, 14, 12, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestScheduler_RegisterTask(t *testing.T) {
	s := newTestScheduler(t)
	noop := func(ctx context.Context) error { return nil }

	require.NoError(t, s.RegisterTask(TaskConfig{ID: "probe", Name: "Probe", Cron: "*/15 * * * *", Func: noop}))
	assert.Error(t, s.RegisterTask(TaskConfig{ID: "probe", Name: "Probe", Cron: "*/15 * * * *", Func: noop}), "duplicate id")
	assert.Error(t, s.RegisterTask(TaskConfig{ID: "bad", Name: "Bad", Cron: "not a cron", Func: noop}))
	assert.Error(t, s.RegisterTask(TaskConfig{ID: "nofunc", Name: "No func", Cron: "* * * * *"}))

	tasks := s.ListTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "probe", tasks[0].ID)
	assert.Equal(t, "*/15 * * * *", tasks[0].Cron)
}

func TestScheduler_RunNowRecordsOutcome(t *testing.T) {
	s := newTestScheduler(t)
	var runs atomic.Int32
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:   "probe",
		Name: "Probe",
		Cron: "0 0 * * *",
		Func: func(ctx context.Context) error {
			runs.Add(1)
			return errors.New("upstream down")
		},
	}))

	require.NoError(t, s.RunNow("probe"))
	require.Eventually(t, func() bool {
		info, err := s.GetTask("probe")
		return err == nil && info.LastRun != nil && !info.Running
	}, 2*time.Second, 5*time.Millisecond)

	info, err := s.GetTask("probe")
	require.NoError(t, err)
	assert.Equal(t, "upstream down", info.LastError)
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_RunNowUnknownTask(t *testing.T) {
	s := newTestScheduler(t)
	assert.ErrorIs(t, s.RunNow("missing"), ErrTaskNotFound)
	_, err := s.GetTask("missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestScheduler_RunOnStart(t *testing.T) {
	s := newTestScheduler(t)
	started := make(chan struct{}, 1)
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:         "probe",
		Name:       "Probe",
		Cron:       "0 0 * * *",
		RunOnStart: true,
		Func: func(ctx context.Context) error {
			started <- struct{}{}
			return nil
		},
	}))
	require.NoError(t, s.Start())

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run on start")
	}
}

func TestScheduler_TimeoutCancelsTask(t *testing.T) {
	s, err := New(zerolog.Nop(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })

	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:      "slow",
		Name:    "Slow",
		Cron:    "0 0 * * *",
		Timeout: 20 * time.Millisecond,
		Func: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}))
	require.NoError(t, s.RunNow("slow"))

	require.Eventually(t, func() bool {
		info, err := s.GetTask("slow")
		return err == nil && info.LastError == context.DeadlineExceeded.Error()
	}, 2*time.Second, 5*time.Millisecond)
}
