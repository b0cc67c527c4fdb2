package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"billboard/internal/cache"
	"billboard/internal/database"
	"billboard/internal/events"
	"billboard/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	db        *database.DB
	bus       *events.EventBus
	cache     *cache.LocationCache
	statuses  *StatusService
	bookings  *BookingService
	locations *LocationService
	recorder  *eventRecorder

	mu    sync.Mutex
	today models.Date
}

func (e *testEnv) setToday(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.today = models.MustParseDate(s)
}

func (e *testEnv) clock() models.Date {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.today
}

type eventRecorder struct {
	mu    sync.Mutex
	types []string
}

func (r *eventRecorder) handle(ev *events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, ev.Type)
	return nil
}

func (r *eventRecorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

func newTestEnv(t *testing.T, today string) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	env := &testEnv{db: db, bus: events.NewEventBus(), recorder: &eventRecorder{}}
	env.setToday(today)

	env.cache = cache.New(db, nil, time.Minute, &logger)
	env.cache.Subscribe(env.bus)
	env.bus.Subscribe(env.recorder.handle, append([]string{events.EventStatusesRecomputed}, events.WriteEvents...)...)

	env.statuses = NewStatusService(db, env.bus, env.clock, &logger)
	env.bookings = NewBookingService(db, env.statuses, env.bus, models.DefaultHoldDays, &logger)
	env.locations = NewLocationService(db, env.cache, env.statuses, &logger)
	require.NoError(t, env.cache.Refresh(context.Background()))
	return env
}

func (e *testEnv) fixed(t *testing.T, code string) *models.Location {
	t.Helper()
	loc := &models.Location{Code: code, City: "Iasi", County: "Iasi", Address: "Str. Palat " + code, Type: "Billboard"}
	require.NoError(t, e.db.CreateLocation(context.Background(), loc))
	return loc
}

func (e *testEnv) template(t *testing.T, code string) *models.Location {
	t.Helper()
	loc := &models.Location{Code: code, City: "Cluj", County: "Cluj", Type: "Mobile", IsMobile: true}
	require.NoError(t, e.db.CreateLocation(context.Background(), loc))
	return loc
}

func d(s string) models.Date { return models.MustParseDate(s) }

func money(v int64) *decimal.Decimal {
	m := decimal.NewFromInt(v)
	return &m
}
