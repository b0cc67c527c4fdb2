package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"billboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMaintainer struct {
	mu    sync.Mutex
	today models.Date
	fails int
	calls int
}

func (f *fakeMaintainer) Today() models.Date {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.today
}

func (f *fakeMaintainer) RunMaintenance(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fails > 0 {
		f.fails--
		return errors.New("database is locked")
	}
	return nil
}

func (f *fakeMaintainer) setToday(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.today = models.MustParseDate(s)
}

func (f *fakeMaintainer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var fastRetry = RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

func TestRetryPolicyNextDelay(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffFactor: 2}
	assert.Equal(t, time.Second, p.NextDelay(0))
	assert.Equal(t, time.Second, p.NextDelay(1))
	assert.Equal(t, 2*time.Second, p.NextDelay(2))
	assert.Equal(t, 4*time.Second, p.NextDelay(3))
	assert.Equal(t, 5*time.Second, p.NextDelay(4), "clamped to MaxDelay")

	assert.Equal(t, time.Second, RetryPolicy{}.NextDelay(1))
}

func TestRunOnceRetries(t *testing.T) {
	m := &fakeMaintainer{fails: 2}
	m.setToday("2025-03-10")
	s := NewScheduler(m, time.Hour, fastRetry, nil)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 3, m.callCount())
	assert.False(t, s.LastRun().IsZero())
	assert.False(t, s.dayChanged())
}

func TestRunOnceGivesUp(t *testing.T) {
	m := &fakeMaintainer{fails: 10}
	m.setToday("2025-03-10")
	s := NewScheduler(m, time.Hour, fastRetry, nil)

	assert.Error(t, s.RunOnce(context.Background()))
	assert.Equal(t, 3, m.callCount())
	assert.True(t, s.LastRun().IsZero())
}

func TestRunOnceStopsOnCancel(t *testing.T) {
	m := &fakeMaintainer{fails: 10}
	s := NewScheduler(m, time.Hour, RetryPolicy{MaxRetries: 10, InitialDelay: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.RunOnce(ctx), context.Canceled)
	assert.Equal(t, 1, m.callCount())
}

func TestSchedulerRunsOnDayChange(t *testing.T) {
	m := &fakeMaintainer{}
	m.setToday("2025-03-10")
	s := NewScheduler(m, time.Hour, fastRetry, nil)
	s.dayCheck = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return m.callCount() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, m.callCount(), "same day, no extra run")

	m.setToday("2025-03-11")
	require.Eventually(t, func() bool { return m.callCount() == 2 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedulerRunsOnInterval(t *testing.T) {
	m := &fakeMaintainer{}
	m.setToday("2025-03-10")
	s := NewScheduler(m, 5*time.Millisecond, fastRetry, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	require.Eventually(t, func() bool { return m.callCount() >= 3 }, time.Second, time.Millisecond)
}

func TestRetryPolicyDefaults(t *testing.T) {
	p := RetryPolicy{MaxRetries: 2}.withDefaults()
	assert.Equal(t, 2, p.MaxRetries)
	assert.Equal(t, DefaultRetryPolicy.InitialDelay, p.InitialDelay)
	assert.Equal(t, DefaultRetryPolicy.MaxDelay, p.MaxDelay)
	assert.Equal(t, DefaultRetryPolicy.BackoffFactor, p.BackoffFactor)
}
