package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"billboard/internal/domain"
	"billboard/internal/models"

	"github.com/rs/zerolog"
)

const recoveryProbe = time.Minute

// FailoverSnapshotStore writes to the primary store and falls back to a
// secondary one while the primary is failing. The primary is probed again
// once a minute.
type FailoverSnapshotStore struct {
	primary  domain.SnapshotStore
	fallback domain.SnapshotStore
	logger   *zerolog.Logger
	isDown   atomic.Bool

	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverSnapshotStore(primary, fallback domain.SnapshotStore, logger *zerolog.Logger) *FailoverSnapshotStore {
	return &FailoverSnapshotStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverSnapshotStore) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary snapshot store failed, falling back to memory")
	r.isDown.Store(true)
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

// shouldProbe reports whether a down primary is due for another attempt and
// resets the probe timer when it is.
func (r *FailoverSnapshotStore) shouldProbe() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) <= recoveryProbe {
		return false
	}
	r.lastCheck = time.Now()
	return true
}

func (r *FailoverSnapshotStore) usePrimary() bool {
	return !r.isDown.Load() || r.shouldProbe()
}

func (r *FailoverSnapshotStore) Save(ctx context.Context, snap *models.LocationSnapshot) error {
	// keep the fallback current so a later primary outage still has data
	_ = r.fallback.Save(ctx, snap)

	if r.usePrimary() {
		err := r.primary.Save(ctx, snap)
		if err == nil {
			if r.isDown.Swap(false) {
				r.logger.Info().Msg("Primary snapshot store recovered")
			}
			return nil
		}
		r.markDown(err)
	}
	return nil
}

func (r *FailoverSnapshotStore) Load(ctx context.Context) (*models.LocationSnapshot, error) {
	if r.usePrimary() {
		snap, err := r.primary.Load(ctx)
		if err == nil {
			r.isDown.Store(false)
			if snap != nil {
				return snap, nil
			}
			return r.fallback.Load(ctx)
		}
		r.markDown(err)
	}
	return r.fallback.Load(ctx)
}

func (r *FailoverSnapshotStore) Clear(ctx context.Context) error {
	if err := r.fallback.Clear(ctx); err != nil {
		return err
	}
	if r.usePrimary() {
		err := r.primary.Clear(ctx)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}
	return nil
}
