package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"billboard/internal/database"
	"billboard/internal/domain"
	"billboard/internal/models"

	"github.com/rs/zerolog"
)

// LocationService answers catalog reads from the location cache.
type LocationService struct {
	store    domain.Store
	cache    domain.LocationCache
	statuses *StatusService
	logger   *zerolog.Logger
}

func NewLocationService(store domain.Store, cache domain.LocationCache, statuses *StatusService, logger *zerolog.Logger) *LocationService {
	return &LocationService{
		store:    store,
		cache:    cache,
		statuses: statuses,
		logger:   logger,
	}
}

// GetLocation returns the cached view of a location. A location missing from
// the snapshot is looked up in the store once, so a row created by another
// process is not reported missing until the next refresh.
func (s *LocationService) GetLocation(ctx context.Context, id int64) (*models.Location, error) {
	if loc, ok := s.cache.GetByID(id); ok {
		return &loc, nil
	}
	return s.store.GetLocation(ctx, id)
}

func (s *LocationService) ListLocations(filter models.LocationFilter) []models.Location {
	return s.cache.List(filter)
}

func (s *LocationService) RefreshCache(ctx context.Context) error {
	return s.cache.Refresh(ctx)
}

// SeedCatalog inserts the locations whose code is not in the store yet and
// reports how many were added. Mobile units are never seeded.
func (s *LocationService) SeedCatalog(ctx context.Context, locations []models.Location) (int, error) {
	added := 0
	for i := range locations {
		loc := locations[i]
		loc.Code = strings.TrimSpace(loc.Code)
		if loc.Code == "" {
			return added, fmt.Errorf("catalog entry %d has no code", i+1)
		}
		loc.ParentID = nil

		_, err := s.store.GetLocationByCode(ctx, loc.Code)
		if err == nil {
			continue
		}
		if !errors.Is(err, database.ErrNotFound) {
			return added, err
		}
		if err := s.store.CreateLocation(ctx, &loc); err != nil {
			return added, fmt.Errorf("seed location %s: %w", loc.Code, err)
		}
		added++
	}

	if added > 0 {
		s.logger.Info().Int("added", added).Msg("Catalog seeded")
		if _, err := s.statuses.Recompute(ctx); err != nil {
			return added, err
		}
	}
	return added, nil
}

// ListAvailable narrows the cached listing to locations free over the whole
// of [start, end]. Availability is asked of the store, one location at a
// time. Templates are always free since linkage rows never block them.
func (s *LocationService) ListAvailable(ctx context.Context, filter models.LocationFilter, start, end models.Date) ([]models.Location, error) {
	candidates := s.cache.List(filter)
	free := make([]models.Location, 0, len(candidates))
	for _, loc := range candidates {
		a, err := s.store.CheckAvailability(ctx, loc.ID, start, end)
		if errors.Is(err, database.ErrNotFound) {
			// deleted since the snapshot was taken
			continue
		}
		if err != nil {
			return nil, err
		}
		if a.Free {
			free = append(free, loc)
		}
	}
	return free, nil
}

// MobileUnits lists the spawned units of a template together with how much of
// its capacity is taken over a range.
type MobileUnits struct {
	Template models.Location   `json:"template"`
	Units    []models.Location `json:"units"`
	Active   int               `json:"active"`
	Capacity int               `json:"capacity"`
	Start    models.Date       `json:"start"`
	End      models.Date       `json:"end"`
}

// ListUnits returns the units of a mobile template, read from the store. Zero
// dates count the active units of today.
func (s *LocationService) ListUnits(ctx context.Context, templateID int64, start, end models.Date) (*MobileUnits, error) {
	if start.IsZero() && end.IsZero() {
		start = s.statuses.Today()
		end = start
	}
	tpl, err := s.store.GetLocation(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !tpl.IsTemplate() {
		return nil, fmt.Errorf("%w: location %d", database.ErrNotTemplate, templateID)
	}
	units, err := s.store.ListChildren(ctx, templateID)
	if err != nil {
		return nil, err
	}
	active, err := s.store.CountActiveUnits(ctx, templateID, start, end)
	if err != nil {
		return nil, err
	}
	if units == nil {
		units = []models.Location{}
	}
	return &MobileUnits{
		Template: *tpl,
		Units:    units,
		Active:   active,
		Capacity: s.store.MobileCapacity(),
		Start:    start,
		End:      end,
	}, nil
}

// DeleteLocation removes a location from the catalog with everything booked
// on it. deleted reports whether the removal committed; an error alongside
// deleted comes from the recompute that follows.
func (s *LocationService) DeleteLocation(ctx context.Context, id int64) (deleted bool, err error) {
	if err := s.store.DeleteLocation(ctx, id); err != nil {
		return false, err
	}
	s.logger.Info().Int64("location_id", id).Msg("Location deleted")
	_, err = s.statuses.Recompute(ctx)
	return true, err
}
