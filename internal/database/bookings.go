package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"billboard/internal/models"

	"github.com/shopspring/decimal"
)

const bookingColumns = `id, loc_id, client, client_id, data_start, data_end, suma,
	COALESCE(created_by, '') AS created_by, created_on, COALESCE(campaign, '') AS campaign,
	firma_id, decor_cost, prod_cost`

// CreateBooking validates the range, runs the overlap guard and inserts the
// booking in one transaction. Rentals carrying decoration or production costs
// also get a decorari row.
func (db *DB) CreateBooking(ctx context.Context, b *models.Booking) error {
	if err := validateRange(b.Start, b.End); err != nil {
		return err
	}
	if b.Amount.Valid && !b.Amount.Decimal.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrInvalidAmount, b.Amount.Decimal)
	}

	return db.conn.WithTx(ctx, func(ex Executor) error {
		loc, err := getLocation(ctx, ex, b.LocationID, true)
		if err != nil {
			return err
		}
		if loc.IsTemplate() {
			return fmt.Errorf("%w: location %d", ErrTemplateBooking, loc.ID)
		}
		if err := guardOverlap(ctx, ex, loc, b.Start, b.End, 0); err != nil {
			return err
		}
		rebooksUnit := loc.IsMobileChild() && b.Kind() == models.KindRental
		if rebooksUnit {
			if err := db.guardUnitCapacity(ctx, ex, loc, b.Start, b.End, 0); err != nil {
				return err
			}
		}
		if err := insertBooking(ctx, ex, b); err != nil {
			return err
		}
		if rebooksUnit {
			if _, err := newLinkage(ctx, ex, *loc.ParentID, b); err != nil {
				return err
			}
		}
		return recordDecoration(ctx, ex, b)
	})
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return getBooking(ctx, db.conn, id)
}

// ListBookingsForLocation returns every booking of a location ordered by start.
func (db *DB) ListBookingsForLocation(ctx context.Context, locationID int64) ([]models.Booking, error) {
	var bookings []models.Booking
	err := db.conn.SelectContext(ctx, &bookings,
		`SELECT `+bookingColumns+` FROM rezervari WHERE loc_id = ? ORDER BY data_start, id`, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings of location %d: %w", locationID, err)
	}
	return bookings, nil
}

func (db *DB) ListBookings(ctx context.Context) ([]models.Booking, error) {
	var bookings []models.Booking
	if err := db.conn.SelectContext(ctx, &bookings, `SELECT `+bookingColumns+` FROM rezervari ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// UpdateBooking moves a booking to [start, end] and, when amount is given,
// reprices it, all in one transaction. Only rentals take an amount. The
// overlap guard runs again without the booking itself. For a mobile unit the
// template's linkage row moves with it and the capacity limit is checked for
// the new range.
func (db *DB) UpdateBooking(ctx context.Context, id int64, start, end models.Date, amount *decimal.Decimal) (*models.Booking, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	if amount != nil && !amount.IsPositive() {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidAmount, amount)
	}

	var updated *models.Booking
	err := db.conn.WithTx(ctx, func(ex Executor) error {
		b, err := getBooking(ctx, ex, id)
		if err != nil {
			return err
		}
		if b.Kind() == models.KindLinkage {
			return fmt.Errorf("%w: linkage row %d moves with its unit", ErrTemplateBooking, id)
		}
		if amount != nil && b.Kind() != models.KindRental {
			return fmt.Errorf("%w: booking %d is a %s", ErrInvalidAmount, id, b.Kind())
		}
		loc, err := getLocation(ctx, ex, b.LocationID, true)
		if err != nil {
			return err
		}
		if b.Blocks() {
			if err := guardOverlap(ctx, ex, loc, start, end, id); err != nil {
				return err
			}
		}
		if loc.IsMobileChild() && b.Kind() == models.KindRental {
			if err := db.guardUnitCapacity(ctx, ex, loc, start, end, id); err != nil {
				return err
			}
			if err := moveLinkage(ctx, ex, *loc.ParentID, b.Start, b.End, start, end); err != nil {
				return err
			}
		}

		if _, err := ex.ExecContext(ctx, `UPDATE rezervari SET data_start = ?, data_end = ? WHERE id = ?`, start, end, id); err != nil {
			return fmt.Errorf("failed to update booking %d: %w", id, err)
		}
		b.Start, b.End = start, end
		if amount != nil {
			if _, err := ex.ExecContext(ctx, `UPDATE rezervari SET suma = ? WHERE id = ?`, models.Paid(*amount), id); err != nil {
				return fmt.Errorf("failed to reprice booking %d: %w", id, err)
			}
			b.Amount = models.Paid(*amount)
		}
		updated = b
		return nil
	})
	return updated, err
}

// DeleteBooking removes a booking and its decorations.
func (db *DB) DeleteBooking(ctx context.Context, id int64) error {
	return db.conn.WithTx(ctx, func(ex Executor) error {
		if _, err := getBooking(ctx, ex, id); err != nil {
			return err
		}
		return deleteBookingRows(ctx, ex, id)
	})
}

// ConvertHold replaces a hold with a rental of the same location in one
// transaction. A zero range in rental keeps the hold's period.
func (db *DB) ConvertHold(ctx context.Context, holdID int64, rental *models.Booking) error {
	if !rental.Amount.Valid || !rental.Amount.Decimal.IsPositive() {
		return fmt.Errorf("%w: a rental needs an amount", ErrInvalidAmount)
	}

	return db.conn.WithTx(ctx, func(ex Executor) error {
		hold, err := getBooking(ctx, ex, holdID)
		if err != nil {
			return err
		}
		if hold.Kind() != models.KindHold {
			return fmt.Errorf("%w: booking %d", ErrNotHold, holdID)
		}
		loc, err := getLocation(ctx, ex, hold.LocationID, true)
		if err != nil {
			return err
		}

		rental.LocationID = hold.LocationID
		if rental.Start.IsZero() && rental.End.IsZero() {
			rental.Start, rental.End = hold.Start, hold.End
		}
		if err := validateRange(rental.Start, rental.End); err != nil {
			return err
		}
		if rental.Client == "" {
			rental.Client, rental.ClientID = hold.Client, hold.ClientID
		}

		if err := deleteBookingRows(ctx, ex, holdID); err != nil {
			return err
		}
		if err := guardOverlap(ctx, ex, loc, rental.Start, rental.End, 0); err != nil {
			return err
		}
		if loc.IsMobileChild() {
			if err := db.guardUnitCapacity(ctx, ex, loc, rental.Start, rental.End, 0); err != nil {
				return err
			}
		}
		if err := insertBooking(ctx, ex, rental); err != nil {
			return err
		}
		if loc.IsMobileChild() {
			if _, err := newLinkage(ctx, ex, *loc.ParentID, rental); err != nil {
				return err
			}
		}
		return recordDecoration(ctx, ex, rental)
	})
}

// DeleteExpiredHolds removes holds that ended before today, with their
// decorations, and reports how many holds went. Mobile units left without any
// booking are removed in the same transaction.
func (db *DB) DeleteExpiredHolds(ctx context.Context, today models.Date) (int64, error) {
	var deleted int64
	err := db.conn.WithTx(ctx, func(ex Executor) error {
		_, err := ex.ExecContext(ctx,
			`DELETE FROM decorari WHERE rez_id IN (SELECT id FROM rezervari WHERE suma IS NULL AND data_end < ?)`, today)
		if err != nil {
			return fmt.Errorf("failed to delete decorations of expired holds: %w", err)
		}
		res, err := ex.ExecContext(ctx, `DELETE FROM rezervari WHERE suma IS NULL AND data_end < ?`, today)
		if err != nil {
			return fmt.Errorf("failed to delete expired holds: %w", err)
		}
		if deleted, err = res.RowsAffected(); err != nil {
			return err
		}
		if deleted == 0 {
			return nil
		}
		return deleteEmptyUnits(ctx, ex)
	})
	return deleted, err
}

func deleteEmptyUnits(ctx context.Context, ex Executor) error {
	var ids []int64
	err := ex.SelectContext(ctx, &ids,
		`SELECT id FROM locatii WHERE parent_id IS NOT NULL
		 AND NOT EXISTS (SELECT 1 FROM rezervari WHERE rezervari.loc_id = locatii.id)
		 ORDER BY id`)
	if err != nil {
		return fmt.Errorf("failed to find empty mobile units: %w", err)
	}
	for _, id := range ids {
		if err := deleteLocationRows(ctx, ex, id); err != nil {
			return err
		}
	}
	return nil
}

// CheckAvailability answers whether [start, end] is free on a location, always
// from the store.
func (db *DB) CheckAvailability(ctx context.Context, locationID int64, start, end models.Date) (*models.Availability, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	loc, err := getLocation(ctx, db.conn, locationID, false)
	if err != nil {
		return nil, err
	}
	rows, err := intersecting(ctx, db.conn, locationID, start, end, 0)
	if err != nil {
		return nil, err
	}
	return evaluateAvailability(loc, rows, start, end), nil
}

func evaluateAvailability(loc *models.Location, rows []models.Booking, start, end models.Date) *models.Availability {
	a := &models.Availability{LocationID: loc.ID, Start: start, End: end, Free: true}

	for _, b := range rows {
		if !blocksOn(loc, b) || !b.Overlaps(start, end) {
			continue
		}
		a.Free = false
		a.Conflicts = append(a.Conflicts, b.ID)
		if a.BlockedFrom == nil || b.Start.Before(*a.BlockedFrom) {
			s := b.Start
			a.BlockedFrom = &s
		}
		if a.BlockedUntil == nil || b.End.After(*a.BlockedUntil) {
			e := b.End
			a.BlockedUntil = &e
		}
	}
	if a.Free {
		return a
	}

	if a.BlockedFrom.After(start) {
		a.FreeBefore = &models.DateRange{Start: start, End: a.BlockedFrom.AddDays(-1)}
	}
	if a.BlockedUntil.Before(end) {
		a.FreeAfter = &models.DateRange{Start: a.BlockedUntil.AddDays(1), End: end}
	}
	a.Partial = a.FreeBefore != nil || a.FreeAfter != nil
	return a
}

// blocksOn reports whether b takes loc out of availability. Linkage rows on a
// template never do.
func blocksOn(loc *models.Location, b models.Booking) bool {
	if b.Kind() == models.KindLinkage {
		return !loc.IsTemplate()
	}
	return true
}

func guardOverlap(ctx context.Context, ex Executor, loc *models.Location, start, end models.Date, excludeID int64) error {
	rows, err := intersecting(ctx, ex, loc.ID, start, end, excludeID)
	if err != nil {
		return err
	}
	for _, b := range rows {
		if blocksOn(loc, b) {
			return fmt.Errorf("%w: location %d has booking %d for %s..%s (%s)",
				ErrOverlap, loc.ID, b.ID, b.Start, b.End, b.Client)
		}
	}
	return nil
}

func intersecting(ctx context.Context, ex Executor, locationID int64, start, end models.Date, excludeID int64) ([]models.Booking, error) {
	var rows []models.Booking
	err := ex.SelectContext(ctx, &rows,
		`SELECT `+bookingColumns+` FROM rezervari
		 WHERE loc_id = ? AND id <> ? AND NOT (data_end < ? OR data_start > ?)
		 ORDER BY data_start, id`,
		locationID, excludeID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings of location %d: %w", locationID, err)
	}
	return rows, nil
}

func getBooking(ctx context.Context, ex Executor, id int64) (*models.Booking, error) {
	var b models.Booking
	err := ex.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM rezervari WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking %d: %w", id, err)
	}
	return &b, nil
}

func insertBooking(ctx context.Context, ex Executor, b *models.Booking) error {
	if b.CreatedOn.IsZero() {
		b.CreatedOn = models.Today()
	}
	id, err := ex.InsertContext(ctx, `INSERT INTO rezervari (
			loc_id, client, client_id, data_start, data_end, suma,
			created_by, created_on, campaign, firma_id, decor_cost, prod_cost
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.LocationID, b.Client, b.ClientID, b.Start, b.End, b.Amount,
		nullString(b.CreatedBy), b.CreatedOn, nullString(b.Campaign), b.FirmID, b.DecorCost, b.ProdCost)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	b.ID = id
	return nil
}

func deleteBookingRows(ctx context.Context, ex Executor, id int64) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM decorari WHERE rez_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete decorations of booking %d: %w", id, err)
	}
	if _, err := ex.ExecContext(ctx, `DELETE FROM rezervari WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete booking %d: %w", id, err)
	}
	return nil
}
