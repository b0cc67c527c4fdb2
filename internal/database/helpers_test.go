package database

import (
	"context"
	"io"
	"testing"

	"billboard/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createFixed(t *testing.T, db *DB, code string) *models.Location {
	t.Helper()
	loc := &models.Location{Code: code, City: "Iasi", County: "Iasi", Address: "Bd. Independentei " + code, Type: "Billboard"}
	require.NoError(t, db.CreateLocation(context.Background(), loc))
	return loc
}

func createTemplate(t *testing.T, db *DB, code string) *models.Location {
	t.Helper()
	loc := &models.Location{Code: code, City: "Cluj", County: "Cluj", Type: "Mobile", IsMobile: true,
		Ratecard: models.Paid(decimal.NewFromInt(350))}
	require.NoError(t, db.CreateLocation(context.Background(), loc))
	return loc
}

func d(s string) models.Date { return models.MustParseDate(s) }

func rental(locID int64, client, start, end string, amount int64) *models.Booking {
	return &models.Booking{
		LocationID: locID,
		Client:     client,
		Start:      d(start),
		End:        d(end),
		Amount:     models.Paid(decimal.NewFromInt(amount)),
		CreatedBy:  "tester",
	}
}

func hold(locID int64, client, start, end string) *models.Booking {
	return &models.Booking{
		LocationID: locID,
		Client:     client,
		Start:      d(start),
		End:        d(end),
		Amount:     models.Unpaid,
		CreatedBy:  "tester",
	}
}

func mobileRental(templateID int64, client, start, end string, addresses ...string) *models.MobileRental {
	r := &models.MobileRental{
		TemplateID: templateID,
		Client:     client,
		Start:      d(start),
		End:        d(end),
		Amount:     decimal.NewFromInt(200),
		CreatedBy:  "tester",
	}
	for _, a := range addresses {
		r.Installations = append(r.Installations, models.Installation{Address: a, GPS: "46.77,23.59"})
	}
	return r
}
