package worker

import (
	"context"
	"sync"
	"time"

	"billboard/internal/models"

	"github.com/rs/zerolog"
)

// Maintainer is the part of the status service the scheduler drives.
type Maintainer interface {
	Today() models.Date
	RunMaintenance(ctx context.Context) error
}

// Scheduler runs maintenance every interval and as soon as the calendar day
// changes, so statuses roll over at midnight without waiting for a write.
type Scheduler struct {
	maint       Maintainer
	interval    time.Duration
	dayCheck    time.Duration
	retryPolicy RetryPolicy
	logger      *zerolog.Logger

	mu      sync.Mutex
	lastDay models.Date
	lastRun time.Time
}

// NewScheduler builds a scheduler with sane defaults.
func NewScheduler(maint Maintainer, interval time.Duration, retry RetryPolicy, logger *zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = models.DefaultReaperInterval
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Scheduler{
		maint:       maint,
		interval:    interval,
		dayCheck:    time.Minute,
		retryPolicy: retry.withDefaults(),
		logger:      logger,
	}
}

// Start runs maintenance once, then on every tick until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("Maintenance scheduler started")
	defer s.logger.Info().Msg("Maintenance scheduler stopped")

	_ = s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	dayTicker := time.NewTicker(s.dayCheck)
	defer dayTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.RunOnce(ctx)
		case <-dayTicker.C:
			if s.dayChanged() {
				s.logger.Info().Str("day", s.maint.Today().String()).Msg("Calendar day changed")
				_ = s.RunOnce(ctx)
			}
		}
	}
}

// RunOnce runs maintenance, retrying with backoff until it succeeds, the
// retries are used up or ctx is done.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	day := s.maint.Today()

	var err error
	for attempt := 1; ; attempt++ {
		err = s.maint.RunMaintenance(ctx)
		if err == nil {
			break
		}
		if attempt >= s.retryPolicy.MaxRetries {
			s.logger.Error().Err(err).Int("attempts", attempt).Msg("Maintenance failed")
			return err
		}

		delay := s.retryPolicy.NextDelay(attempt)
		s.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("Maintenance failed, retrying")
		if !sleep(ctx, delay) {
			return ctx.Err()
		}
	}

	s.mu.Lock()
	s.lastDay = day
	s.lastRun = time.Now()
	s.mu.Unlock()
	return nil
}

// LastRun reports when maintenance last succeeded.
func (s *Scheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

func (s *Scheduler) dayChanged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.lastDay.Equal(s.maint.Today())
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
