package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"billboard/internal/models"
)

const locationColumns = `id,
	COALESCE(city, '') AS city, COALESCE(county, '') AS county, COALESCE(address, '') AS address,
	COALESCE(gps, '') AS gps, COALESCE(code, '') AS code, COALESCE(type, '') AS type,
	COALESCE(size, '') AS size, COALESCE(face, '') AS face, COALESCE(grup, '') AS grup,
	COALESCE(illumination, '') AS illumination, COALESCE(photo_link, '') AS photo_link,
	COALESCE(observatii, '') AS observatii,
	sqm, ratecard, pret_vanzare, pret_flotant, decoration_cost, is_mobile, parent_id,
	COALESCE(status, 'Disponibil') AS status, COALESCE(client, '') AS client, client_id,
	data_start, data_end`

func (db *DB) GetLocation(ctx context.Context, id int64) (*models.Location, error) {
	return getLocation(ctx, db.conn, id, false)
}

func (db *DB) ListLocations(ctx context.Context) ([]models.Location, error) {
	var locs []models.Location
	err := db.conn.SelectContext(ctx, &locs, `SELECT `+locationColumns+` FROM locatii ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	return locs, nil
}

// ListChildren returns the spawned units of a mobile template.
func (db *DB) ListChildren(ctx context.Context, templateID int64) ([]models.Location, error) {
	var locs []models.Location
	err := db.conn.SelectContext(ctx, &locs,
		`SELECT `+locationColumns+` FROM locatii WHERE parent_id = ? ORDER BY id`, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children of %d: %w", templateID, err)
	}
	return locs, nil
}

func (db *DB) GetLocationByCode(ctx context.Context, code string) (*models.Location, error) {
	var loc models.Location
	err := db.conn.GetContext(ctx, &loc,
		`SELECT `+locationColumns+` FROM locatii WHERE code = ? AND parent_id IS NULL ORDER BY id LIMIT 1`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("location %q: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location %q: %w", code, err)
	}
	return &loc, nil
}

// CreateLocation adds a catalog entry. Derived fields start as Available.
func (db *DB) CreateLocation(ctx context.Context, loc *models.Location) error {
	if loc.Status == "" {
		loc.Status = models.StatusAvailable
	}
	if loc.Face == "" {
		loc.Face = models.DefaultFace
	}
	id, err := insertLocation(ctx, db.conn, loc)
	if err != nil {
		return fmt.Errorf("failed to create location: %w", err)
	}
	loc.ID = id
	return nil
}

// DeleteLocation removes a location with its bookings and decorations.
// Templates that still have children are refused. A mobile unit goes through
// the release path so the template's linkage rows go with it.
func (db *DB) DeleteLocation(ctx context.Context, id int64) error {
	return db.conn.WithTx(ctx, func(ex Executor) error {
		loc, err := getLocation(ctx, ex, id, true)
		if err != nil {
			return err
		}
		if loc.IsTemplate() {
			var children int
			if err := ex.GetContext(ctx, &children, `SELECT COUNT(*) FROM locatii WHERE parent_id = ?`, id); err != nil {
				return err
			}
			if children > 0 {
				return fmt.Errorf("%w: template %d still has %d units", ErrTemplateBooking, id, children)
			}
		}
		if loc.IsMobileChild() {
			var ids []int64
			if err := ex.SelectContext(ctx, &ids, `SELECT id FROM rezervari WHERE loc_id = ? ORDER BY id`, id); err != nil {
				return err
			}
			for _, bookingID := range ids {
				if _, err := releaseBooking(ctx, ex, bookingID); err != nil {
					return err
				}
			}
			if len(ids) > 0 {
				// the last release removed the unit
				return nil
			}
		}
		return deleteLocationRows(ctx, ex, id)
	})
}

func deleteLocationRows(ctx context.Context, ex Executor, id int64) error {
	for _, q := range []string{
		`DELETE FROM decorari WHERE loc_id = ?`,
		`DELETE FROM rezervari WHERE loc_id = ?`,
		`DELETE FROM locatii WHERE id = ?`,
	} {
		if _, err := ex.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("failed to delete location %d: %w", id, err)
		}
	}
	return nil
}

// ApplyProjections writes the derived status fields of the given locations in
// one transaction.
func (db *DB) ApplyProjections(ctx context.Context, changes map[int64]models.Projection) error {
	if len(changes) == 0 {
		return nil
	}
	return db.conn.WithTx(ctx, func(ex Executor) error {
		for id, p := range changes {
			_, err := ex.ExecContext(ctx,
				`UPDATE locatii SET status = ?, client = ?, client_id = ?, data_start = ?, data_end = ? WHERE id = ?`,
				p.Status, nullString(p.Client), p.ClientID, p.PeriodStart, p.PeriodEnd, id)
			if err != nil {
				return fmt.Errorf("failed to update status of location %d: %w", id, err)
			}
		}
		return nil
	})
}

func getLocation(ctx context.Context, ex Executor, id int64, lock bool) (*models.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locatii WHERE id = ?`
	if lock {
		query += ex.Dialect().forUpdate
	}
	var loc models.Location
	err := ex.GetContext(ctx, &loc, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("location %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location %d: %w", id, err)
	}
	return &loc, nil
}

func insertLocation(ctx context.Context, ex Executor, loc *models.Location) (int64, error) {
	return ex.InsertContext(ctx, `INSERT INTO locatii (
			city, county, address, type, gps, code, size, photo_link, sqm, illumination,
			ratecard, pret_vanzare, pret_flotant, decoration_cost, observatii,
			status, client, client_id, data_start, data_end, grup, face, is_mobile, parent_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loc.City, loc.County, loc.Address, loc.Type, loc.GPS, loc.Code, loc.Size, loc.PhotoLink,
		loc.SQM, loc.Illumination, loc.Ratecard, loc.SalePrice, loc.FloatingPrice, loc.DecorationCost,
		loc.Notes, loc.Status, nullString(loc.Client), loc.ClientID, loc.PeriodStart, loc.PeriodEnd,
		loc.Group, loc.Face, loc.IsMobile, loc.ParentID)
}
