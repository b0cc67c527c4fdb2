package service

import (
	"context"

	"billboard/internal/models"

	"github.com/shopspring/decimal"
)

// DecorationRequest is a decoration entered by hand on a location. A nil
// BookingID attaches it to the booking running on Date, if any.
type DecorationRequest struct {
	Date      models.Date     `json:"date"`
	BookingID *int64          `json:"booking_id,omitempty"`
	DecorCost decimal.Decimal `json:"decor_cost"`
	ProdCost  decimal.Decimal `json:"prod_cost"`
	CreatedBy string          `json:"created_by"`
}

func (r DecorationRequest) decoration(locationID int64) *models.Decoration {
	return &models.Decoration{
		LocationID: locationID,
		BookingID:  r.BookingID,
		Date:       r.Date,
		DecorCost:  models.Paid(r.DecorCost),
		ProdCost:   models.Paid(r.ProdCost),
		CreatedBy:  r.CreatedBy,
	}
}

func (s *BookingService) AddDecoration(ctx context.Context, locationID int64, req DecorationRequest) (*models.Decoration, error) {
	d := req.decoration(locationID)
	if err := s.store.CreateDecoration(ctx, d); err != nil {
		return nil, err
	}
	ev := s.logger.Info().Int64("decoration_id", d.ID).Int64("location_id", locationID).Str("date", d.Date.String())
	if d.BookingID != nil {
		ev = ev.Int64("booking_id", *d.BookingID)
	}
	ev.Msg("Decoration recorded")
	return d, nil
}

// UpdateDecoration rewrites the date and costs of a decoration.
func (s *BookingService) UpdateDecoration(ctx context.Context, id int64, req DecorationRequest) (*models.Decoration, error) {
	d := req.decoration(0)
	d.ID = id
	if err := s.store.UpdateDecoration(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("decoration_id", id).Str("date", d.Date.String()).Msg("Decoration updated")
	return d, nil
}

func (s *BookingService) DeleteDecoration(ctx context.Context, id int64) error {
	if err := s.store.DeleteDecoration(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("decoration_id", id).Msg("Decoration deleted")
	return nil
}

func (s *BookingService) ListDecorations(ctx context.Context, locationID int64) ([]models.Decoration, error) {
	if _, err := s.store.GetLocation(ctx, locationID); err != nil {
		return nil, err
	}
	decorations, err := s.store.ListDecorations(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if decorations == nil {
		decorations = []models.Decoration{}
	}
	return decorations, nil
}

func (s *BookingService) ListFirms(ctx context.Context) ([]models.Firm, error) {
	return s.store.ListFirms(ctx)
}
