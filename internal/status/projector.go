// Package status derives the materialized status columns of locations from
// their bookings.
package status

import (
	"billboard/internal/models"
)

// Project computes the derived fields of every location for the given day.
// The result depends only on its arguments and has one entry per location.
//
// Precedence, lowest to highest: Available, a hold covering today (Reserved),
// a paid rental covering today (Rented). Linkage rows never change the status
// of their template. A mobile unit with nothing current whose last booking
// ended before today is Expired and keeps that booking's client and period.
func Project(today models.Date, locations []models.Location, bookings []models.Booking) map[int64]models.Projection {
	byLocation := make(map[int64][]models.Booking, len(locations))
	for _, b := range bookings {
		byLocation[b.LocationID] = append(byLocation[b.LocationID], b)
	}

	out := make(map[int64]models.Projection, len(locations))
	for _, loc := range locations {
		out[loc.ID] = projectOne(today, loc, byLocation[loc.ID])
	}
	return out
}

func projectOne(today models.Date, loc models.Location, bookings []models.Booking) models.Projection {
	var hold, rental, last *models.Booking
	for i := range bookings {
		b := &bookings[i]
		switch b.Kind() {
		case models.KindLinkage:
			continue
		case models.KindHold:
			if b.Covers(today) && later(b, hold) {
				hold = b
			}
		case models.KindRental:
			if b.Covers(today) && later(b, rental) {
				rental = b
			}
		}
		if last == nil || b.End.After(last.End) || (b.End.Equal(last.End) && b.ID > last.ID) {
			last = b
		}
	}

	switch {
	case rental != nil:
		return from(models.StatusRented, rental)
	case hold != nil:
		return from(models.StatusReserved, hold)
	case loc.IsMobileChild() && last != nil && last.End.Before(today):
		return from(models.StatusExpired, last)
	default:
		return models.Projection{Status: models.StatusAvailable}
	}
}

// later reports whether b should replace cur: most recent start wins, then
// the newer row.
func later(b, cur *models.Booking) bool {
	if cur == nil {
		return true
	}
	if !b.Start.Equal(cur.Start) {
		return b.Start.After(cur.Start)
	}
	return b.ID > cur.ID
}

func from(status string, b *models.Booking) models.Projection {
	return models.Projection{
		Status:      status,
		Client:      b.Client,
		ClientID:    b.ClientID,
		PeriodStart: b.Start,
		PeriodEnd:   b.End,
	}
}

// Changed returns the projections that differ from what the locations
// currently carry.
func Changed(locations []models.Location, projected map[int64]models.Projection) map[int64]models.Projection {
	changed := make(map[int64]models.Projection)
	for _, loc := range locations {
		p, ok := projected[loc.ID]
		if ok && !p.Equal(loc.Projection()) {
			changed[loc.ID] = p
		}
	}
	return changed
}

// Counts tallies projections per status.
func Counts(projected map[int64]models.Projection) map[string]int {
	counts := map[string]int{
		models.StatusAvailable: 0,
		models.StatusReserved:  0,
		models.StatusRented:    0,
		models.StatusExpired:   0,
	}
	for _, p := range projected {
		counts[p.Status]++
	}
	return counts
}
