package api

import (
	"errors"
	"net/http"

	"billboard/internal/database"

	"github.com/rs/zerolog"
)

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, database.ErrOverlap),
		errors.Is(err, database.ErrCapacityExceeded):
		return http.StatusConflict
	case errors.Is(err, database.ErrInvalidRange),
		errors.Is(err, database.ErrInvalidAmount),
		errors.Is(err, database.ErrTemplateBooking),
		errors.Is(err, database.ErrNotTemplate),
		errors.Is(err, database.ErrNotMobileChild),
		errors.Is(err, database.ErrNotHold),
		errors.Is(err, database.ErrNoInstallations),
		errors.Is(err, database.ErrCampaignRequired),
		errors.Is(err, database.ErrClientRequired):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrConnectionLost):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError answers with the mapped status. Unexpected errors are
// logged and hidden from the caller.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, code, "internal error")
		return
	}
	writeError(w, code, err.Error())
}
