package status

import (
	"testing"

	"billboard/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = models.MustParseDate("2025-03-10")

func booking(id, loc int64, client, start, end string, amount *int64) models.Booking {
	b := models.Booking{
		ID:         id,
		LocationID: loc,
		Client:     client,
		Start:      models.MustParseDate(start),
		End:        models.MustParseDate(end),
	}
	if amount != nil {
		b.Amount = models.Paid(decimal.NewFromInt(*amount))
	}
	return b
}

func amount(v int64) *int64 { return &v }

func TestProject(t *testing.T) {
	tplID := int64(5)
	locations := []models.Location{
		{ID: 1},
		{ID: 2},
		{ID: 3},
		{ID: 4},
		{ID: tplID, IsMobile: true},
		{ID: 6, IsMobile: true, ParentID: &tplID},
		{ID: 7, IsMobile: true, ParentID: &tplID},
		{ID: 8, Status: models.StatusRented, Client: "Stale"},
	}
	bookings := []models.Booking{
		booking(10, 2, "Acme", "2025-03-08", "2025-03-12", nil),
		booking(11, 3, "Globex", "2025-03-01", "2025-03-31", amount(500)),
		booking(12, 3, "Initech", "2025-03-09", "2025-03-11", nil),
		booking(13, 4, "Past", "2025-01-01", "2025-01-31", amount(100)),
		booking(14, tplID, "Acme", "2025-03-01", "2025-03-31", amount(0)),
		booking(15, 6, "Acme", "2025-03-01", "2025-03-31", amount(200)),
		booking(16, 7, "Umbrella", "2025-02-01", "2025-02-28", amount(200)),
	}

	got := Project(today, locations, bookings)
	require.Len(t, got, len(locations))

	assert.Equal(t, models.Projection{Status: models.StatusAvailable}, got[1])

	assert.Equal(t, models.StatusReserved, got[2].Status)
	assert.Equal(t, "Acme", got[2].Client)
	assert.Equal(t, "2025-03-12", got[2].PeriodEnd.String())

	assert.Equal(t, models.StatusRented, got[3].Status, "a rental outranks a hold")
	assert.Equal(t, "Globex", got[3].Client)

	assert.Equal(t, models.StatusAvailable, got[4].Status, "fixed locations never expire")
	assert.Equal(t, models.StatusAvailable, got[tplID].Status, "templates never show rented")
	assert.Equal(t, models.StatusRented, got[6].Status)

	assert.Equal(t, models.StatusExpired, got[7].Status)
	assert.Equal(t, "Umbrella", got[7].Client)
	assert.Equal(t, "2025-02-28", got[7].PeriodEnd.String())

	assert.Equal(t, models.StatusAvailable, got[8].Status, "stale derived fields are reset")
	assert.Empty(t, got[8].Client)
}

func TestProjectTieBreak(t *testing.T) {
	locations := []models.Location{{ID: 1}}
	bookings := []models.Booking{
		booking(1, 1, "Early", "2025-03-01", "2025-03-20", nil),
		booking(2, 1, "Late", "2025-03-05", "2025-03-15", nil),
		booking(3, 1, "Later row", "2025-03-05", "2025-03-12", nil),
	}

	got := Project(today, locations, bookings)
	assert.Equal(t, "Later row", got[1].Client)
}

func TestProjectInclusiveBounds(t *testing.T) {
	locations := []models.Location{{ID: 1}, {ID: 2}}
	bookings := []models.Booking{
		booking(1, 1, "EndsToday", "2025-03-01", "2025-03-10", amount(10)),
		booking(2, 2, "StartsToday", "2025-03-10", "2025-03-20", amount(10)),
	}

	got := Project(today, locations, bookings)
	assert.Equal(t, models.StatusRented, got[1].Status)
	assert.Equal(t, models.StatusRented, got[2].Status)
}

func TestProjectIsIdempotent(t *testing.T) {
	tplID := int64(1)
	locations := []models.Location{
		{ID: tplID, IsMobile: true},
		{ID: 2, IsMobile: true, ParentID: &tplID},
		{ID: 3},
	}
	bookings := []models.Booking{
		booking(1, 2, "Acme", "2025-01-01", "2025-01-10", amount(10)),
		booking(2, 3, "Acme", "2025-03-09", "2025-03-11", nil),
	}

	first := Project(today, locations, bookings)
	for i := range locations {
		p := first[locations[i].ID]
		locations[i].Status = p.Status
		locations[i].Client = p.Client
		locations[i].ClientID = p.ClientID
		locations[i].PeriodStart = p.PeriodStart
		locations[i].PeriodEnd = p.PeriodEnd
	}

	second := Project(today, locations, bookings)
	assert.Equal(t, first, second)
	assert.Empty(t, Changed(locations, second))
}

func TestChangedAndCounts(t *testing.T) {
	locations := []models.Location{
		{ID: 1, Status: models.StatusAvailable},
		{ID: 2, Status: models.StatusAvailable},
	}
	projected := map[int64]models.Projection{
		1: {Status: models.StatusAvailable},
		2: {Status: models.StatusReserved, Client: "Acme"},
	}

	changed := Changed(locations, projected)
	require.Len(t, changed, 1)
	assert.Equal(t, "Acme", changed[2].Client)

	counts := Counts(projected)
	assert.Equal(t, 1, counts[models.StatusAvailable])
	assert.Equal(t, 1, counts[models.StatusReserved])
	assert.Equal(t, 0, counts[models.StatusRented])
}
