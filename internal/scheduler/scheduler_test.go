package scheduler

import (
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()

	s, err := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	return s
}

func TestScheduleResync(t *testing.T) {
	s := newTestScheduler(t)

	var calls atomic.Int32
	id, err := s.ScheduleResync(20*time.Millisecond, func() { calls.Add(1) })
	require.NoError(t, err)
	require.NotEmpty(t, id)

	s.Start()
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Stop())

	stopped := calls.Load()
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, stopped, calls.Load())
}

func TestScheduleResyncRejectsZeroInterval(t *testing.T) {
	s := newTestScheduler(t)

	_, err := s.ScheduleResync(0, func() {})
	require.Error(t, err)
}
