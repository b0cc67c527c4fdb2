package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"billboard/internal/models"

	"github.com/shopspring/decimal"
)

const decorationColumns = `id, loc_id, rez_id, data, decor_cost, prod_cost, COALESCE(created_by, '') AS created_by`

func hasCost(v models.Booking) bool {
	return (v.DecorCost.Valid && !v.DecorCost.Decimal.IsZero()) ||
		(v.ProdCost.Valid && !v.ProdCost.Decimal.IsZero())
}

// recordDecoration stores the decoration/production costs of a rental, dated
// on its first day.
func recordDecoration(ctx context.Context, ex Executor, b *models.Booking) error {
	if b.Kind() != models.KindRental || !hasCost(*b) {
		return nil
	}
	bookingID := b.ID
	d := models.Decoration{
		LocationID: b.LocationID,
		BookingID:  &bookingID,
		Date:       b.Start,
		DecorCost:  b.DecorCost,
		ProdCost:   b.ProdCost,
		CreatedBy:  b.CreatedBy,
	}
	_, err := insertDecoration(ctx, ex, &d)
	return err
}

func insertDecoration(ctx context.Context, ex Executor, d *models.Decoration) (int64, error) {
	id, err := ex.InsertContext(ctx,
		`INSERT INTO decorari (loc_id, rez_id, data, decor_cost, prod_cost, created_by) VALUES (?, ?, ?, ?, ?, ?)`,
		d.LocationID, d.BookingID, d.Date, d.DecorCost, d.ProdCost, nullString(d.CreatedBy))
	if err != nil {
		return 0, fmt.Errorf("failed to record decoration for location %d: %w", d.LocationID, err)
	}
	d.ID = id
	return id, nil
}

// CreateDecoration records a decoration entered by hand, e.g. a re-skin
// during a running campaign. Without a BookingID it is attached to the newest
// booking of the location covering its date, if any.
func (db *DB) CreateDecoration(ctx context.Context, d *models.Decoration) error {
	if err := validateDecoration(d); err != nil {
		return err
	}
	return db.conn.WithTx(ctx, func(ex Executor) error {
		if _, err := getLocation(ctx, ex, d.LocationID, false); err != nil {
			return err
		}
		if d.BookingID == nil {
			id, err := bookingCovering(ctx, ex, d.LocationID, d.Date)
			if err != nil {
				return err
			}
			if id != 0 {
				d.BookingID = &id
			}
		} else {
			b, err := getBooking(ctx, ex, *d.BookingID)
			if err != nil {
				return err
			}
			if b.LocationID != d.LocationID {
				return fmt.Errorf("booking %d of location %d: %w", b.ID, d.LocationID, ErrNotFound)
			}
		}
		_, err := insertDecoration(ctx, ex, d)
		return err
	})
}

// UpdateDecoration changes the date and costs of a decoration. The location
// and booking it belongs to stay.
func (db *DB) UpdateDecoration(ctx context.Context, d *models.Decoration) error {
	if err := validateDecoration(d); err != nil {
		return err
	}
	return db.conn.WithTx(ctx, func(ex Executor) error {
		current, err := getDecoration(ctx, ex, d.ID)
		if err != nil {
			return err
		}
		_, err = ex.ExecContext(ctx,
			`UPDATE decorari SET data = ?, decor_cost = ?, prod_cost = ? WHERE id = ?`,
			d.Date, d.DecorCost, d.ProdCost, d.ID)
		if err != nil {
			return fmt.Errorf("failed to update decoration %d: %w", d.ID, err)
		}
		d.LocationID, d.BookingID, d.CreatedBy = current.LocationID, current.BookingID, current.CreatedBy
		return nil
	})
}

func (db *DB) DeleteDecoration(ctx context.Context, id int64) error {
	return db.conn.WithTx(ctx, func(ex Executor) error {
		if _, err := getDecoration(ctx, ex, id); err != nil {
			return err
		}
		if _, err := ex.ExecContext(ctx, `DELETE FROM decorari WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete decoration %d: %w", id, err)
		}
		return nil
	})
}

func (db *DB) GetDecoration(ctx context.Context, id int64) (*models.Decoration, error) {
	return getDecoration(ctx, db.conn, id)
}

func getDecoration(ctx context.Context, ex Executor, id int64) (*models.Decoration, error) {
	var d models.Decoration
	err := ex.GetContext(ctx, &d, `SELECT `+decorationColumns+` FROM decorari WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("decoration %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get decoration %d: %w", id, err)
	}
	return &d, nil
}

func validateDecoration(d *models.Decoration) error {
	if d.Date.IsZero() {
		return fmt.Errorf("%w: decoration date is required", ErrInvalidRange)
	}
	for _, c := range []decimal.NullDecimal{d.DecorCost, d.ProdCost} {
		if c.Valid && c.Decimal.IsNegative() {
			return fmt.Errorf("%w: decoration costs cannot be negative", ErrInvalidAmount)
		}
	}
	if !hasCost(models.Booking{DecorCost: d.DecorCost, ProdCost: d.ProdCost}) {
		return fmt.Errorf("%w: a decoration needs a decoration or production cost", ErrInvalidAmount)
	}
	return nil
}

// bookingCovering returns the newest non-linkage booking of a location whose
// period contains day, or 0.
func bookingCovering(ctx context.Context, ex Executor, locationID int64, day models.Date) (int64, error) {
	var id int64
	err := ex.GetContext(ctx, &id,
		`SELECT id FROM rezervari
		 WHERE loc_id = ? AND data_start <= ? AND data_end >= ? AND (suma IS NULL OR suma > 0)
		 ORDER BY id DESC LIMIT 1`,
		locationID, day, day)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find booking of location %d on %s: %w", locationID, day, err)
	}
	return id, nil
}

func (db *DB) ListDecorations(ctx context.Context, locationID int64) ([]models.Decoration, error) {
	var decorations []models.Decoration
	err := db.conn.SelectContext(ctx, &decorations,
		`SELECT `+decorationColumns+` FROM decorari WHERE loc_id = ? ORDER BY data, id`, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list decorations of location %d: %w", locationID, err)
	}
	return decorations, nil
}
