package service

import (
	"context"
	"fmt"

	"billboard/internal/database"
	"billboard/internal/events"
	"billboard/internal/metrics"
	"billboard/internal/models"
)

// RentMobile rents one unit of a mobile template per installation. Units,
// their rentals and the template's linkage rows are created together or not
// at all.
func (s *BookingService) RentMobile(ctx context.Context, req BookingRequest) ([]models.MobileUnit, error) {
	if req.Amount == nil {
		return nil, fmt.Errorf("%w: mobile units are rented, not held", database.ErrInvalidAmount)
	}
	party, err := s.resolveParty(ctx, req.Client, req.Campaign, req.Firm)
	if err != nil {
		return nil, err
	}

	rental := &models.MobileRental{
		TemplateID:    req.LocationID,
		Client:        party.label,
		ClientID:      party.clientID,
		Campaign:      party.campaign,
		FirmID:        party.firmID,
		Start:         req.Start,
		End:           req.End,
		Amount:        *req.Amount,
		DecorCost:     req.DecorCost,
		ProdCost:      req.ProdCost,
		CreatedBy:     req.CreatedBy,
		CreatedOn:     s.statuses.Today(),
		Installations: req.Installations,
	}

	units, err := s.store.SpawnMobileRentals(ctx, rental)
	if err != nil {
		s.countRefusal(err)
		s.logger.Warn().Err(err).Int64("location_id", req.LocationID).Int("units", len(req.Installations)).
			Str("start", req.Start.String()).Str("end", req.End.String()).Msg("Mobile rental refused")
		return nil, err
	}

	for range units {
		metrics.IncBookingCreated("mobile")
	}
	s.logger.Info().Int64("location_id", req.LocationID).Int("units", len(units)).Str("client", party.label).
		Msg("Mobile units rented")

	_, rerr := s.statuses.recompute(ctx)
	if rerr != nil {
		s.logger.Error().Err(rerr).Int64("location_id", req.LocationID).Msg("Status recompute after write failed")
	}
	// one event per rental, carrying the first unit
	s.publishEvent(events.EventMobileRented, units[0].Booking, req.CreatedBy)
	return units, rerr
}
