package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"billboard/internal/models"

	"github.com/shopspring/decimal"
)

// SpawnMobileRentals rents len(r.Installations) units of a mobile template.
// Under one transaction it checks the capacity over the range, refuses when
// the template itself carries a blocking row, then for every installation
// clones the template into a child, books the child and leaves a zero-amount
// linkage row on the template.
func (db *DB) SpawnMobileRentals(ctx context.Context, r *models.MobileRental) ([]models.MobileUnit, error) {
	if err := validateRange(r.Start, r.End); err != nil {
		return nil, err
	}
	if !r.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidAmount, r.Amount)
	}
	if len(r.Installations) == 0 {
		return nil, ErrNoInstallations
	}
	for i, inst := range r.Installations {
		if strings.TrimSpace(inst.Address) == "" || strings.TrimSpace(inst.GPS) == "" {
			return nil, fmt.Errorf("%w: installation %d", ErrNoInstallations, i+1)
		}
	}
	if r.CreatedOn.IsZero() {
		r.CreatedOn = models.Today()
	}

	var units []models.MobileUnit
	err := db.conn.WithTx(ctx, func(ex Executor) error {
		units = units[:0]
		tpl, err := getLocation(ctx, ex, r.TemplateID, true)
		if err != nil {
			return err
		}
		if !tpl.IsTemplate() {
			return fmt.Errorf("%w: location %d", ErrNotTemplate, tpl.ID)
		}
		if err := guardOverlap(ctx, ex, tpl, r.Start, r.End, 0); err != nil {
			return err
		}
		if err := db.guardCapacity(ctx, ex, tpl.ID, r.Start, r.End, len(r.Installations), 0); err != nil {
			return err
		}

		for _, inst := range r.Installations {
			child := tpl.SpawnChild(inst)
			childID, err := insertLocation(ctx, ex, &child)
			if err != nil {
				return fmt.Errorf("failed to create mobile unit of %d: %w", tpl.ID, err)
			}
			child.ID = childID

			paid := models.Booking{
				LocationID: childID,
				Client:     r.Client,
				ClientID:   r.ClientID,
				Start:      r.Start,
				End:        r.End,
				Amount:     models.Paid(r.Amount),
				CreatedBy:  r.CreatedBy,
				CreatedOn:  r.CreatedOn,
				Campaign:   r.Campaign,
				FirmID:     r.FirmID,
				DecorCost:  models.Paid(r.DecorCost),
				ProdCost:   models.Paid(r.ProdCost),
			}
			if err := insertBooking(ctx, ex, &paid); err != nil {
				return err
			}
			if err := recordDecoration(ctx, ex, &paid); err != nil {
				return err
			}

			linkage, err := newLinkage(ctx, ex, tpl.ID, &paid)
			if err != nil {
				return err
			}

			units = append(units, models.MobileUnit{Location: child, Booking: paid, Linkage: *linkage})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return units, nil
}

func newLinkage(ctx context.Context, ex Executor, templateID int64, paid *models.Booking) (*models.Booking, error) {
	linkage := &models.Booking{
		LocationID: templateID,
		Client:     paid.Client,
		ClientID:   paid.ClientID,
		Start:      paid.Start,
		End:        paid.End,
		Amount:     models.Paid(decimal.Zero),
		CreatedBy:  paid.CreatedBy,
		CreatedOn:  paid.CreatedOn,
		Campaign:   paid.Campaign,
	}
	if err := insertBooking(ctx, ex, linkage); err != nil {
		return nil, err
	}
	return linkage, nil
}

// CountActiveUnits returns how many children of a template hold a paid booking
// intersecting [start, end].
func (db *DB) CountActiveUnits(ctx context.Context, templateID int64, start, end models.Date) (int, error) {
	if err := validateRange(start, end); err != nil {
		return 0, err
	}
	return countActiveUnits(ctx, db.conn, templateID, start, end, 0)
}

func (db *DB) guardCapacity(ctx context.Context, ex Executor, templateID int64, start, end models.Date, adding int, excludeID int64) error {
	active, err := countActiveUnits(ctx, ex, templateID, start, end, excludeID)
	if err != nil {
		return err
	}
	if active+adding > db.mobileCap {
		return fmt.Errorf("%w: template %d has %d of %d units rented for %s..%s, %d more requested",
			ErrCapacityExceeded, templateID, active, db.mobileCap, start, end, adding)
	}
	return nil
}

// guardUnitCapacity checks the template capacity for one more rented unit. It
// locks the template row first, the same row SpawnMobileRentals locks, so a
// spawn and a unit re-rent cannot both pass the count.
func (db *DB) guardUnitCapacity(ctx context.Context, ex Executor, unit *models.Location, start, end models.Date, excludeID int64) error {
	if _, err := getLocation(ctx, ex, *unit.ParentID, true); err != nil {
		return err
	}
	return db.guardCapacity(ctx, ex, *unit.ParentID, start, end, 1, excludeID)
}

func countActiveUnits(ctx context.Context, ex Executor, templateID int64, start, end models.Date, excludeID int64) (int, error) {
	var count int
	err := ex.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM rezervari
		 WHERE loc_id IN (SELECT id FROM locatii WHERE parent_id = ?)
		   AND suma IS NOT NULL AND suma > 0
		   AND id <> ?
		   AND NOT (data_end < ? OR data_start > ?)`,
		templateID, excludeID, start, end)
	if err != nil {
		return 0, fmt.Errorf("failed to count units of template %d: %w", templateID, err)
	}
	return count, nil
}

// ReleaseResult tells what a release removed besides the booking.
type ReleaseResult struct {
	Booking        models.Booking `json:"booking"`
	RemovedUnit    bool           `json:"removed_unit"`
	RemovedLinkage bool           `json:"removed_linkage"`
	TemplateID     *int64         `json:"template_id,omitempty"`
}

// ReleaseBooking deletes a booking with its decorations. When the booking was
// a paid rental of a mobile unit, one matching linkage row on the template
// goes too, and the unit itself is deleted once it has no bookings left.
func (db *DB) ReleaseBooking(ctx context.Context, id int64) (*ReleaseResult, error) {
	var res *ReleaseResult
	err := db.conn.WithTx(ctx, func(ex Executor) error {
		var err error
		res, err = releaseBooking(ctx, ex, id)
		return err
	})
	return res, err
}

// ReleaseLocation releases every booking of a fixed location or mobile unit.
func (db *DB) ReleaseLocation(ctx context.Context, locationID int64) ([]ReleaseResult, error) {
	var results []ReleaseResult
	err := db.conn.WithTx(ctx, func(ex Executor) error {
		results = results[:0]
		loc, err := getLocation(ctx, ex, locationID, true)
		if err != nil {
			return err
		}
		if loc.IsTemplate() {
			return fmt.Errorf("%w: release the units of template %d instead", ErrTemplateBooking, locationID)
		}
		var ids []int64
		if err := ex.SelectContext(ctx, &ids, `SELECT id FROM rezervari WHERE loc_id = ? ORDER BY id`, locationID); err != nil {
			return err
		}
		for _, id := range ids {
			res, err := releaseBooking(ctx, ex, id)
			if err != nil {
				return err
			}
			results = append(results, *res)
		}
		return nil
	})
	return results, err
}

func releaseBooking(ctx context.Context, ex Executor, id int64) (*ReleaseResult, error) {
	b, err := getBooking(ctx, ex, id)
	if err != nil {
		return nil, err
	}
	if b.Kind() == models.KindLinkage {
		return nil, fmt.Errorf("%w: linkage row %d is released with its unit", ErrTemplateBooking, id)
	}
	loc, err := getLocation(ctx, ex, b.LocationID, true)
	if err != nil {
		return nil, err
	}
	if err := deleteBookingRows(ctx, ex, id); err != nil {
		return nil, err
	}

	res := &ReleaseResult{Booking: *b}
	if !loc.IsMobileChild() {
		return res, nil
	}
	res.TemplateID = loc.ParentID

	if b.Kind() == models.KindRental {
		removed, err := deleteLinkage(ctx, ex, *loc.ParentID, b.Start, b.End)
		if err != nil {
			return nil, err
		}
		res.RemovedLinkage = removed
	}

	var remaining int
	if err := ex.GetContext(ctx, &remaining, `SELECT COUNT(*) FROM rezervari WHERE loc_id = ?`, loc.ID); err != nil {
		return nil, err
	}
	if remaining == 0 {
		if err := deleteLocationRows(ctx, ex, loc.ID); err != nil {
			return nil, err
		}
		res.RemovedUnit = true
	}
	return res, nil
}

// deleteLinkage removes one linkage row of the template for the given range.
// Siblings rented for the same range each own one such row.
func deleteLinkage(ctx context.Context, ex Executor, templateID int64, start, end models.Date) (bool, error) {
	id, err := findLinkage(ctx, ex, templateID, start, end)
	if err != nil || id == 0 {
		return false, err
	}
	if _, err := ex.ExecContext(ctx, `DELETE FROM rezervari WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("failed to delete linkage row %d: %w", id, err)
	}
	return true, nil
}

func moveLinkage(ctx context.Context, ex Executor, templateID int64, oldStart, oldEnd, start, end models.Date) error {
	id, err := findLinkage(ctx, ex, templateID, oldStart, oldEnd)
	if err != nil || id == 0 {
		return err
	}
	_, err = ex.ExecContext(ctx, `UPDATE rezervari SET data_start = ?, data_end = ? WHERE id = ?`, start, end, id)
	if err != nil {
		return fmt.Errorf("failed to move linkage row %d: %w", id, err)
	}
	return nil
}

func findLinkage(ctx context.Context, ex Executor, templateID int64, start, end models.Date) (int64, error) {
	var id int64
	err := ex.GetContext(ctx, &id,
		`SELECT id FROM rezervari WHERE loc_id = ? AND data_start = ? AND data_end = ? AND suma = 0 ORDER BY id LIMIT 1`,
		templateID, start, end)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find linkage row of template %d: %w", templateID, err)
	}
	return id, nil
}
