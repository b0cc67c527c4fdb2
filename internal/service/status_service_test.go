package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"billboard/internal/domain"
	"billboard/internal/events"
	"billboard/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenListing fails every full booking scan and passes everything else
// through to the real store.
type brokenListing struct {
	domain.Store
}

func (brokenListing) ListBookings(context.Context) ([]models.Booking, error) {
	return nil, errors.New("disk I/O error")
}

func TestRecomputePublishes(t *testing.T) {
	env := newTestEnv(t, "2025-03-10")
	ctx := context.Background()
	env.fixed(t, "BB-1")

	changed, err := env.statuses.Recompute(ctx)
	require.NoError(t, err)
	assert.Zero(t, changed, "new locations start available")
	assert.Contains(t, env.recorder.seen(), events.EventStatusesRecomputed)
}

func TestRunMaintenanceOnDayChange(t *testing.T) {
	env := newTestEnv(t, "2025-03-10")
	ctx := context.Background()
	loc := env.fixed(t, "BB-1")

	_, err := env.bookings.CreateBooking(ctx, BookingRequest{
		LocationID: loc.ID, Client: "Acme", Start: d("2025-03-11"), End: d("2025-03-20"), Amount: money(250),
	})
	require.NoError(t, err)
	view, _ := env.cache.GetByID(loc.ID)
	assert.Equal(t, models.StatusAvailable, view.Status)

	env.setToday("2025-03-11")
	require.NoError(t, env.statuses.RunMaintenance(ctx))

	view, _ = env.cache.GetByID(loc.ID)
	assert.Equal(t, models.StatusRented, view.Status, "statuses follow the calendar without any write")
	assert.Equal(t, "Acme", view.Client)

	stored, err := env.db.GetLocation(ctx, loc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRented, stored.Status)
}

func TestWriteStandsWhenRecomputeFails(t *testing.T) {
	env := newTestEnv(t, "2025-03-10")
	ctx := context.Background()
	loc := env.fixed(t, "BB-1")

	logger := zerolog.New(io.Discard)
	store := brokenListing{Store: env.db}
	statuses := NewStatusService(store, env.bus, env.clock, &logger)
	bookings := NewBookingService(store, statuses, env.bus, 0, &logger)

	b, err := bookings.CreateBooking(ctx, BookingRequest{
		LocationID: loc.ID, Client: "Acme", Start: d("2025-03-01"), End: d("2025-03-31"), Amount: money(100),
	})
	require.Error(t, err)
	require.NotNil(t, b, "the committed booking is still returned")

	stored, err := env.db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", stored.Client)

	_, err = statuses.Recompute(ctx)
	assert.ErrorContains(t, err, "disk I/O error")
}

func TestClockIn(t *testing.T) {
	clock := ClockIn(models.Today().Time().Location())
	assert.False(t, clock().IsZero())
}
