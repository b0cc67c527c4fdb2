package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"billboard/internal/cache"
	"billboard/internal/config"
	"billboard/internal/database"
	"billboard/internal/events"
	"billboard/internal/models"
	"billboard/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testToday = models.MustParseDate("2025-03-10")

type testServer struct {
	srv *HTTPServer
	db  *database.DB
}

func openConfig() config.APIConfig {
	return config.APIConfig{Enabled: true}
}

func authConfig() config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{
				{Key: "office", Extra: "office-extra", Name: "office", Permissions: []string{config.PermReadLocations, config.PermWriteBookings}},
				{Key: "viewer", Extra: "viewer-extra", Name: "viewer", Permissions: []string{config.PermReadLocations}},
				{Key: "root", Extra: "root-extra", Name: "root", Permissions: []string{"*"}},
			},
		},
	}
}

func newTestServer(t *testing.T, cfg config.APIConfig) *testServer {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	bus := events.NewEventBus()
	locCache := cache.New(db, nil, time.Minute, &logger)
	locCache.Subscribe(bus)

	clock := func() models.Date { return testToday }
	statuses := service.NewStatusService(db, bus, clock, &logger)
	deps := Deps{
		Bookings:  service.NewBookingService(db, statuses, bus, models.DefaultHoldDays, &logger),
		Locations: service.NewLocationService(db, locCache, statuses, &logger),
		Statuses:  statuses,
		Health:    db.Ping,
	}
	require.NoError(t, locCache.Refresh(context.Background()))

	return &testServer{srv: NewHTTPServer(cfg, deps, &logger), db: db}
}

func (ts *testServer) fixed(t *testing.T, code string) *models.Location {
	t.Helper()
	loc := &models.Location{Code: code, City: "Iasi", County: "Iasi", Address: "Bd. Copou " + code, Type: "Billboard", Group: "Centru"}
	require.NoError(t, ts.db.CreateLocation(context.Background(), loc))
	require.NoError(t, ts.srv.deps.Locations.RefreshCache(context.Background()))
	return loc
}

func (ts *testServer) template(t *testing.T, code string) *models.Location {
	t.Helper()
	loc := &models.Location{Code: code, City: "Cluj", County: "Cluj", Type: "Mobile", IsMobile: true}
	require.NoError(t, ts.db.CreateLocation(context.Background(), loc))
	require.NoError(t, ts.srv.deps.Locations.RefreshCache(context.Background()))
	return loc
}

// do sends a request through the full middleware chain. key, when set, is
// sent with its matching extra header.
func (ts *testServer) do(t *testing.T, method, path string, body any, key string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if key != "" {
		req.Header.Set("X-API-Key", key)
		req.Header.Set("X-API-Extra", key+"-extra")
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v), rec.Body.String())
}

type bookingEnvelope struct {
	Booking struct {
		ID         int64  `json:"id"`
		LocationID int64  `json:"location_id"`
		Client     string `json:"client"`
		Start      string `json:"start"`
		End        string `json:"end"`
	} `json:"booking"`
}


func newRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

func serve(ts *testServer, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}
