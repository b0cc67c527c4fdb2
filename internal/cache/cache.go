// Package cache holds the read-mostly snapshot of the location catalog.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"billboard/internal/domain"
	"billboard/internal/events"
	"billboard/internal/metrics"
	"billboard/internal/models"

	"github.com/rs/zerolog"
)

// Refresh triggers, used as metric labels.
const (
	TriggerCommit = "commit"
	TriggerTimer  = "timer"
	TriggerManual = "manual"
	TriggerWarm   = "warm"
)

// ErrNoSnapshot is returned by Warm when neither the database nor the
// snapshot store could provide a catalog.
var ErrNoSnapshot = errors.New("no location snapshot available")

type snapshot struct {
	takenAt   time.Time
	locations []models.Location
	byID      map[int64]int
}

func newSnapshot(takenAt time.Time, locations []models.Location) *snapshot {
	byID := make(map[int64]int, len(locations))
	for i, l := range locations {
		byID[l.ID] = i
	}
	return &snapshot{takenAt: takenAt, locations: locations, byID: byID}
}

// LocationCache serves catalog reads from an immutable snapshot that is
// replaced wholesale on every refresh. A failed refresh keeps the previous
// snapshot.
type LocationCache struct {
	source domain.LocationSource
	store  domain.SnapshotStore
	ttl    time.Duration
	logger *zerolog.Logger
	now    func() time.Time

	mu   sync.Mutex // serializes refreshes so the snapshot never goes back in time
	snap atomic.Pointer[snapshot]
}

// New builds an empty cache. store may be nil.
func New(source domain.LocationSource, store domain.SnapshotStore, ttl time.Duration, logger *zerolog.Logger) *LocationCache {
	if ttl <= 0 {
		ttl = models.DefaultCacheTTL
	}
	c := &LocationCache{
		source: source,
		store:  store,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
	c.snap.Store(newSnapshot(time.Time{}, nil))
	return c
}

// GetAll returns a copy of the current snapshot.
func (c *LocationCache) GetAll() []models.Location {
	s := c.snap.Load()
	out := make([]models.Location, len(s.locations))
	copy(out, s.locations)
	return out
}

func (c *LocationCache) GetByID(id int64) (models.Location, bool) {
	s := c.snap.Load()
	i, ok := s.byID[id]
	if !ok {
		return models.Location{}, false
	}
	return s.locations[i], true
}

// List returns the snapshot rows matching filter.
func (c *LocationCache) List(filter models.LocationFilter) []models.Location {
	s := c.snap.Load()
	out := make([]models.Location, 0, len(s.locations))
	for _, l := range s.locations {
		if filter.Matches(l) {
			out = append(out, l)
		}
	}
	return out
}

// LastRefresh is when the current snapshot was read from the database.
func (c *LocationCache) LastRefresh() time.Time {
	return c.snap.Load().takenAt
}

func (c *LocationCache) Refresh(ctx context.Context) error {
	return c.refresh(ctx, TriggerManual)
}

// MaybeRefresh reloads the snapshot when it is older than ttl and reports
// whether it did.
func (c *LocationCache) MaybeRefresh(ctx context.Context, ttl time.Duration) (bool, error) {
	if c.now().Sub(c.LastRefresh()) < ttl {
		return false, nil
	}
	if err := c.refresh(ctx, TriggerTimer); err != nil {
		return false, err
	}
	return true, nil
}

func (c *LocationCache) refresh(ctx context.Context, trigger string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	locations, err := c.source.ListLocations(ctx)
	if err != nil {
		metrics.IncCacheRefresh(trigger, "error")
		c.logger.Error().Err(err).Str("trigger", trigger).Msg("Location cache refresh failed, keeping previous snapshot")
		return fmt.Errorf("refresh location cache: %w", err)
	}

	s := newSnapshot(c.now(), locations)
	c.snap.Store(s)
	metrics.IncCacheRefresh(trigger, "ok")
	c.logger.Debug().Str("trigger", trigger).Int("locations", len(locations)).Msg("Location cache refreshed")

	if c.store != nil {
		snap := &models.LocationSnapshot{TakenAt: s.takenAt.Unix(), Locations: locations}
		if err := c.store.Save(ctx, snap); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to save location snapshot")
		}
	}
	return nil
}

// Warm fills the cache at startup. When the database cannot be read the
// last stored snapshot is used instead.
func (c *LocationCache) Warm(ctx context.Context) error {
	err := c.refresh(ctx, TriggerWarm)
	if err == nil {
		return nil
	}
	if c.store == nil {
		return err
	}

	stored, serr := c.store.Load(ctx)
	if serr != nil || stored == nil {
		return fmt.Errorf("%w: %v", ErrNoSnapshot, errors.Join(err, serr))
	}

	c.mu.Lock()
	// an older snapshot never replaces one read from the database
	if c.snap.Load().takenAt.IsZero() {
		c.snap.Store(newSnapshot(time.Unix(stored.TakenAt, 0), stored.Locations))
	}
	c.mu.Unlock()

	c.logger.Warn().Err(err).Int("locations", len(stored.Locations)).
		Time("taken_at", time.Unix(stored.TakenAt, 0)).Msg("Location cache warmed from stored snapshot")
	return nil
}

// OnCommit refreshes the cache after a committed write.
func (c *LocationCache) OnCommit(event *events.Event) error {
	if err := c.refresh(context.Background(), TriggerCommit); err != nil {
		return fmt.Errorf("cache refresh after %s: %w", event.Type, err)
	}
	return nil
}

// Subscribe hooks the cache to every write event of the bus.
func (c *LocationCache) Subscribe(bus *events.EventBus) {
	types := append([]string{events.EventStatusesRecomputed}, events.WriteEvents...)
	bus.Subscribe(c.OnCommit, types...)
}

// Start refreshes the cache whenever it gets older than the TTL until ctx is
// done. Refreshes triggered by writes push the next timer refresh back.
func (c *LocationCache) Start(ctx context.Context) {
	interval := c.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info().Dur("ttl", c.ttl).Msg("Location cache refresher started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = c.MaybeRefresh(ctx, c.ttl)
		}
	}
}
