package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"billboard/internal/config"
	"billboard/internal/metrics"
	"billboard/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 1 << 20
)

// Deps are the engine services the API exposes.
type Deps struct {
	Bookings  *service.BookingService
	Locations *service.LocationService
	Statuses  *service.StatusService
	// Health reports whether the store is reachable. Optional.
	Health func(ctx context.Context) error
}

// HTTPServer exposes the booking engine over JSON/HTTP.
type HTTPServer struct {
	cfg    config.APIConfig
	deps   Deps
	auth   *HTTPAuth
	logger *zerolog.Logger
	server *http.Server
}

func NewHTTPServer(cfg config.APIConfig, deps Deps, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	srv := &HTTPServer{cfg: cfg, deps: deps, auth: NewHTTPAuth(cfg), logger: logger}

	readTimeout := cfg.HTTP.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 5 * time.Second
	}
	writeTimeout := cfg.HTTP.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 15 * time.Second
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
	}
	return srv
}

func (s *HTTPServer) routes() http.Handler {
	mux := http.NewServeMux()
	read, write, admin := config.PermReadLocations, config.PermWriteBookings, config.PermAdminMaintenance

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /api/v1/locations", s.auth.Require(read, s.handleListLocations))
	mux.HandleFunc("GET /api/v1/locations/{id}", s.auth.Require(read, s.handleGetLocation))
	mux.HandleFunc("GET /api/v1/locations/{id}/availability", s.auth.Require(read, s.handleAvailability))
	mux.HandleFunc("GET /api/v1/locations/{id}/bookings", s.auth.Require(read, s.handleLocationBookings))
	mux.HandleFunc("DELETE /api/v1/locations/{id}/bookings", s.auth.Require(write, s.handleCancelLocation))
	mux.HandleFunc("GET /api/v1/locations/{id}/units", s.auth.Require(read, s.handleListUnits))
	mux.HandleFunc("GET /api/v1/locations/{id}/decorations", s.auth.Require(read, s.handleListDecorations))
	mux.HandleFunc("POST /api/v1/locations/{id}/decorations", s.auth.Require(write, s.handleAddDecoration))
	mux.HandleFunc("PATCH /api/v1/decorations/{id}", s.auth.Require(write, s.handleUpdateDecoration))
	mux.HandleFunc("DELETE /api/v1/decorations/{id}", s.auth.Require(write, s.handleDeleteDecoration))
	mux.HandleFunc("GET /api/v1/firms", s.auth.Require(read, s.handleListFirms))

	mux.HandleFunc("GET /api/v1/bookings/{id}", s.auth.Require(read, s.handleGetBooking))
	mux.HandleFunc("POST /api/v1/bookings", s.auth.Require(write, s.handleCreateBooking))
	mux.HandleFunc("PATCH /api/v1/bookings/{id}", s.auth.Require(write, s.handleUpdateBooking))
	mux.HandleFunc("DELETE /api/v1/bookings/{id}", s.auth.Require(write, s.handleDeleteBooking))
	mux.HandleFunc("POST /api/v1/bookings/{id}/convert", s.auth.Require(write, s.handleConvertHold))
	mux.HandleFunc("POST /api/v1/reservations", s.auth.Require(write, s.handleReserve))
	mux.HandleFunc("POST /api/v1/mobile-rentals", s.auth.Require(write, s.handleRentMobile))

	mux.HandleFunc("POST /api/v1/statuses/recompute", s.auth.Require(admin, s.handleRecompute))
	mux.HandleFunc("POST /api/v1/maintenance", s.auth.Require(admin, s.handleMaintenance))
	mux.HandleFunc("POST /api/v1/cache/refresh", s.auth.Require(admin, s.handleRefreshCache))
	mux.HandleFunc("DELETE /api/v1/locations/{id}", s.auth.Require(admin, s.handleDeleteLocation))

	return s.requestLogger(mux)
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Addr() string {
	return s.server.Addr
}

func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// requestLogger tags every request with an id, counts it per route and
// writes one access log line.
func (s *HTTPServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		reqLogger := s.logger.With().Str("request_id", requestID).Logger()
		r = r.WithContext(reqLogger.WithContext(r.Context()))

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncHTTP(endpoint)

		reqLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
