package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"billboard/internal/database"
	"billboard/internal/domain"
	"billboard/internal/events"
	"billboard/internal/metrics"
	"billboard/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// BookingRequest is a hold or rental as entered by a user. A nil Amount asks
// for a hold. Installations are required when LocationID is a mobile template.
type BookingRequest struct {
	LocationID    int64                 `json:"location_id"`
	Client        string                `json:"client"`
	Campaign      string                `json:"campaign,omitempty"`
	Firm          string                `json:"firm,omitempty"`
	Start         models.Date           `json:"start"`
	End           models.Date           `json:"end"`
	Amount        *decimal.Decimal      `json:"amount,omitempty"`
	DecorCost     decimal.Decimal       `json:"decor_cost"`
	ProdCost      decimal.Decimal       `json:"prod_cost"`
	CreatedBy     string                `json:"created_by"`
	Installations []models.Installation `json:"installations,omitempty"`
}

// RentalTerms are what a hold becomes when it is converted. Zero dates keep
// the hold's period and an empty client keeps the hold's client.
type RentalTerms struct {
	Amount    decimal.Decimal `json:"amount"`
	Start     models.Date     `json:"start"`
	End       models.Date     `json:"end"`
	Client    string          `json:"client,omitempty"`
	Campaign  string          `json:"campaign,omitempty"`
	Firm      string          `json:"firm,omitempty"`
	DecorCost decimal.Decimal `json:"decor_cost"`
	ProdCost  decimal.Decimal `json:"prod_cost"`
	CreatedBy string          `json:"created_by"`
}

type BookingService struct {
	store    domain.Store
	statuses *StatusService
	eventBus domain.EventPublisher
	holdDays int
	logger   *zerolog.Logger
}

func NewBookingService(store domain.Store, statuses *StatusService, eventBus domain.EventPublisher, holdDays int, logger *zerolog.Logger) *BookingService {
	if holdDays <= 0 {
		holdDays = models.DefaultHoldDays
	}
	return &BookingService{
		store:    store,
		statuses: statuses,
		eventBus: eventBus,
		holdDays: holdDays,
		logger:   logger,
	}
}

// CreateBooking books a location for a client. Rentals of a mobile template
// spawn one unit per installation; the booking of the first unit is returned.
func (s *BookingService) CreateBooking(ctx context.Context, req BookingRequest) (*models.Booking, error) {
	loc, err := s.store.GetLocation(ctx, req.LocationID)
	if err != nil {
		return nil, err
	}
	if loc.IsTemplate() {
		if req.Amount == nil {
			return nil, fmt.Errorf("%w: holds cannot be placed on template %d", database.ErrTemplateBooking, loc.ID)
		}
		units, err := s.RentMobile(ctx, req)
		if len(units) == 0 {
			return nil, err
		}
		return &units[0].Booking, err
	}

	party, err := s.resolveParty(ctx, req.Client, req.Campaign, req.Firm)
	if err != nil {
		return nil, err
	}

	b := &models.Booking{
		LocationID: req.LocationID,
		Client:     party.label,
		ClientID:   party.clientID,
		Start:      req.Start,
		End:        req.End,
		CreatedBy:  req.CreatedBy,
		CreatedOn:  s.statuses.Today(),
		Campaign:   party.campaign,
		FirmID:     party.firmID,
		DecorCost:  models.Paid(req.DecorCost),
		ProdCost:   models.Paid(req.ProdCost),
	}
	if req.Amount != nil {
		b.Amount = models.Paid(*req.Amount)
	}

	if err := s.store.CreateBooking(ctx, b); err != nil {
		s.countRefusal(err)
		s.logger.Warn().Err(err).Int64("location_id", b.LocationID).Str("start", b.Start.String()).
			Str("end", b.End.String()).Msg("Booking refused")
		return nil, err
	}
	metrics.IncBookingCreated(string(b.Kind()))
	s.logger.Info().Int64("booking_id", b.ID).Int64("location_id", b.LocationID).Str("kind", string(b.Kind())).
		Str("client", b.Client).Str("start", b.Start.String()).Str("end", b.End.String()).Msg("Booking created")

	return b, s.afterWrite(ctx, events.EventBookingCreated, *b, req.CreatedBy)
}

// Reserve places a hold of the configured length starting today.
func (s *BookingService) Reserve(ctx context.Context, locationID int64, client, createdBy string) (*models.Booking, error) {
	today := s.statuses.Today()
	return s.CreateBooking(ctx, BookingRequest{
		LocationID: locationID,
		Client:     client,
		Start:      today,
		End:        today.AddDays(s.holdDays - 1),
		CreatedBy:  createdBy,
	})
}

// ConvertHold turns a hold into a rental under one transaction.
func (s *BookingService) ConvertHold(ctx context.Context, holdID int64, terms RentalTerms) (*models.Booking, error) {
	rental := &models.Booking{
		Start:     terms.Start,
		End:       terms.End,
		Amount:    models.Paid(terms.Amount),
		CreatedBy: terms.CreatedBy,
		CreatedOn: s.statuses.Today(),
		DecorCost: models.Paid(terms.DecorCost),
		ProdCost:  models.Paid(terms.ProdCost),
	}
	if strings.TrimSpace(terms.Client) != "" {
		party, err := s.resolveParty(ctx, terms.Client, terms.Campaign, terms.Firm)
		if err != nil {
			return nil, err
		}
		rental.Client, rental.ClientID = party.label, party.clientID
		rental.Campaign, rental.FirmID = party.campaign, party.firmID
	} else if terms.Firm != "" {
		firm, err := s.store.ResolveFirm(ctx, terms.Firm)
		if err != nil {
			return nil, err
		}
		rental.FirmID = &firm.ID
	}

	if err := s.store.ConvertHold(ctx, holdID, rental); err != nil {
		s.countRefusal(err)
		return nil, err
	}
	metrics.IncBookingCreated(string(models.KindRental))
	s.logger.Info().Int64("hold_id", holdID).Int64("booking_id", rental.ID).Int64("location_id", rental.LocationID).
		Msg("Hold converted to rental")

	return rental, s.afterWrite(ctx, events.EventBookingCreated, *rental, terms.CreatedBy)
}

// CancelBooking removes a hold or rental with everything hanging off it: its
// decorations and, for a mobile unit, the linkage row and the unit itself
// once it has nothing booked.
func (s *BookingService) CancelBooking(ctx context.Context, id int64, canceledBy string) (*database.ReleaseResult, error) {
	res, err := s.store.ReleaseBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("booking_id", id).Int64("location_id", res.Booking.LocationID).
		Bool("removed_unit", res.RemovedUnit).Msg("Booking canceled")
	return res, s.afterWrite(ctx, events.EventBookingCanceled, res.Booking, canceledBy)
}

// ReleaseRental ends a paid rental early. Holds are canceled with
// CancelBooking instead.
func (s *BookingService) ReleaseRental(ctx context.Context, id int64, releasedBy string) (*database.ReleaseResult, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Kind() != models.KindRental {
		return nil, fmt.Errorf("%w: booking %d is a %s", database.ErrInvalidAmount, id, b.Kind())
	}
	return s.CancelBooking(ctx, id, releasedBy)
}

// CancelLocation drops every booking of a fixed location or mobile unit.
func (s *BookingService) CancelLocation(ctx context.Context, locationID int64, canceledBy string) ([]database.ReleaseResult, error) {
	results, err := s.store.ReleaseLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return results, nil
	}
	s.logger.Info().Int64("location_id", locationID).Int("bookings", len(results)).Msg("Location bookings canceled")

	var errs []error
	if _, err := s.statuses.recompute(ctx); err != nil {
		errs = append(errs, err)
	}
	for _, r := range results {
		s.publishEvent(events.EventBookingCanceled, r.Booking, canceledBy)
	}
	return results, errors.Join(errs...)
}

// UpdatePeriod moves a booking and, when amount is given, reprices it.
func (s *BookingService) UpdatePeriod(ctx context.Context, id int64, start, end models.Date, amount *decimal.Decimal, changedBy string) (*models.Booking, error) {
	b, err := s.store.UpdateBooking(ctx, id, start, end, amount)
	if err != nil {
		s.countRefusal(err)
		return nil, err
	}
	s.logger.Info().Int64("booking_id", id).Str("start", start.String()).Str("end", end.String()).Msg("Booking period updated")
	return b, s.afterWrite(ctx, events.EventBookingUpdated, *b, changedBy)
}

// CheckAvailability always asks the store, never the cache.
func (s *BookingService) CheckAvailability(ctx context.Context, locationID int64, start, end models.Date) (*models.Availability, error) {
	return s.store.CheckAvailability(ctx, locationID, start, end)
}

func (s *BookingService) ListBookings(ctx context.Context, locationID int64) ([]models.Booking, error) {
	if _, err := s.store.GetLocation(ctx, locationID); err != nil {
		return nil, err
	}
	return s.store.ListBookingsForLocation(ctx, locationID)
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

type party struct {
	label    string
	campaign string
	clientID *int64
	firmID   *int64
}

// resolveParty finds or creates the client and firm and builds the label
// shown on the booking. Agency clients must name a campaign.
func (s *BookingService) resolveParty(ctx context.Context, clientName, campaign, firmName string) (*party, error) {
	clientName = strings.TrimSpace(clientName)
	campaign = strings.TrimSpace(campaign)
	if clientName == "" {
		return nil, database.ErrClientRequired
	}

	client, err := s.store.ResolveClient(ctx, clientName)
	if err != nil {
		return nil, err
	}
	if client.IsAgency() && campaign == "" {
		return nil, fmt.Errorf("%w: %s", database.ErrCampaignRequired, client.Name)
	}

	p := &party{label: client.Label(campaign), campaign: campaign, clientID: &client.ID}
	if strings.TrimSpace(firmName) != "" {
		firm, err := s.store.ResolveFirm(ctx, firmName)
		if err != nil {
			return nil, err
		}
		p.firmID = &firm.ID
	}
	return p, nil
}

// afterWrite brings the derived statuses up to date and announces a
// committed write. A failed recompute is reported even though the write
// itself stands.
func (s *BookingService) afterWrite(ctx context.Context, eventType string, b models.Booking, changedBy string) error {
	_, err := s.statuses.recompute(ctx)
	if err != nil {
		s.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("Status recompute after write failed")
	}
	s.publishEvent(eventType, b, changedBy)
	return err
}

func (s *BookingService) publishEvent(eventType string, b models.Booking, changedBy string) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:  b.ID,
		LocationID: b.LocationID,
		Client:     b.Client,
		Start:      b.Start.String(),
		End:        b.End.String(),
		Kind:       string(b.Kind()),
		ChangedBy:  changedBy,
	}
	if b.Amount.Valid {
		payload.Amount = b.Amount.Decimal.String()
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", b.ID).Msg("publish event error")
	}
}

func (s *BookingService) countRefusal(err error) {
	switch {
	case errors.Is(err, database.ErrOverlap):
		metrics.IncConflict("overlap")
	case errors.Is(err, database.ErrCapacityExceeded):
		metrics.IncConflict("capacity")
	case errors.Is(err, database.ErrTemplateBooking):
		metrics.IncConflict("template")
	}
}
