package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"billboard/internal/domain"
	"billboard/internal/events"
	"billboard/internal/metrics"
	"billboard/internal/models"
	"billboard/internal/status"

	"github.com/rs/zerolog"
)

// Clock returns the current calendar day.
type Clock func() models.Date

// ClockIn returns a Clock reading the wall clock in loc.
func ClockIn(loc *time.Location) Clock {
	return func() models.Date { return models.DateOf(time.Now().In(loc)) }
}

// StatusService is the only writer of the derived location columns.
type StatusService struct {
	store    domain.Store
	eventBus domain.EventPublisher
	clock    Clock
	logger   *zerolog.Logger

	mu sync.Mutex // one projection at a time
}

func NewStatusService(store domain.Store, eventBus domain.EventPublisher, clock Clock, logger *zerolog.Logger) *StatusService {
	if clock == nil {
		clock = models.Today
	}
	return &StatusService{
		store:    store,
		eventBus: eventBus,
		clock:    clock,
		logger:   logger,
	}
}

func (s *StatusService) Today() models.Date { return s.clock() }

// Recompute projects every location for today, persists the rows that
// changed and announces the run. It returns how many locations changed.
func (s *StatusService) Recompute(ctx context.Context) (int, error) {
	changed, err := s.recompute(ctx)
	if err != nil {
		return 0, err
	}
	s.publish(events.EventStatusesRecomputed, events.MaintenancePayload{Day: s.clock().String(), Changed: changed})
	return changed, nil
}

func (s *StatusService) recompute(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.clock()
	locations, err := s.store.ListLocations(ctx)
	if err != nil {
		return 0, fmt.Errorf("recompute statuses: %w", err)
	}
	bookings, err := s.store.ListBookings(ctx)
	if err != nil {
		return 0, fmt.Errorf("recompute statuses: %w", err)
	}

	projected := status.Project(today, locations, bookings)
	changed := status.Changed(locations, projected)
	if len(changed) > 0 {
		if err := s.store.ApplyProjections(ctx, changed); err != nil {
			return 0, fmt.Errorf("recompute statuses: %w", err)
		}
	}
	metrics.SetLocationStatuses(status.Counts(projected))

	s.logger.Debug().Str("day", today.String()).Int("locations", len(locations)).
		Int("changed", len(changed)).Msg("Statuses recomputed")
	return len(changed), nil
}

// ReapExpiredHolds deletes holds that ended before today and recomputes the
// statuses they were feeding.
func (s *StatusService) ReapExpiredHolds(ctx context.Context) (int64, error) {
	today := s.clock()
	deleted, err := s.store.DeleteExpiredHolds(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("reap expired holds: %w", err)
	}
	if deleted == 0 {
		return 0, nil
	}

	s.logger.Info().Int64("deleted", deleted).Str("day", today.String()).Msg("Expired holds removed")
	changed, err := s.recompute(ctx)
	if err != nil {
		return deleted, err
	}
	s.publish(events.EventHoldsReaped, events.MaintenancePayload{Day: today.String(), Changed: changed, Deleted: deleted})
	return deleted, nil
}

// RunMaintenance reaps expired holds and makes sure the statuses match
// today, which changes at midnight without any write.
func (s *StatusService) RunMaintenance(ctx context.Context) error {
	deleted, err := s.ReapExpiredHolds(ctx)
	if err != nil {
		return err
	}
	if deleted > 0 {
		return nil
	}
	_, err = s.Recompute(ctx)
	return err
}

func (s *StatusService) publish(eventType string, payload events.MaintenancePayload) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}
