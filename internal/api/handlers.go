package api

import (
	"net/http"
	"strconv"
	"strings"

	"billboard/internal/database"
	"billboard/internal/models"
	"billboard/internal/service"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleListLocations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.LocationFilter{
		Status:         strings.TrimSpace(q.Get("status")),
		Group:          strings.TrimSpace(q.Get("group")),
		City:           strings.TrimSpace(q.Get("city")),
		County:         strings.TrimSpace(q.Get("county")),
		Search:         strings.TrimSpace(q.Get("q")),
		IncludeExpired: queryBool(q.Get("include_expired")),
		MobileOnly:     queryBool(q.Get("mobile")),
	}
	if filter.Status != "" && !models.IsKnownStatus(filter.Status) {
		writeError(w, http.StatusBadRequest, "unknown status: "+filter.Status)
		return
	}

	freeFrom, freeTo := strings.TrimSpace(q.Get("free_from")), strings.TrimSpace(q.Get("free_to"))
	if freeFrom == "" && freeTo == "" {
		locations := s.deps.Locations.ListLocations(filter)
		writeJSON(w, http.StatusOK, map[string]any{"locations": locations, "count": len(locations)})
		return
	}

	start, err := models.ParseDate(freeFrom)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid free_from; expected YYYY-MM-DD")
		return
	}
	end, err := models.ParseDate(freeTo)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid free_to; expected YYYY-MM-DD")
		return
	}
	locations, err := s.deps.Locations.ListAvailable(r.Context(), filter, start, end)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": locations, "count": len(locations)})
}

func (s *HTTPServer) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	loc, err := s.deps.Locations.GetLocation(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	start, err := models.ParseDate(strings.TrimSpace(r.URL.Query().Get("start")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start; expected YYYY-MM-DD")
		return
	}
	end, err := models.ParseDate(strings.TrimSpace(r.URL.Query().Get("end")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end; expected YYYY-MM-DD")
		return
	}

	a, err := s.deps.Bookings.CheckAvailability(r.Context(), id, start, end)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *HTTPServer) handleLocationBookings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	bookings, err := s.deps.Bookings.ListBookings(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleCancelLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	results, err := s.deps.Bookings.CancelLocation(r.Context(), id, callerName(r.Context()))
	if err != nil && results == nil {
		writeServiceError(w, r, err)
		return
	}
	writeWithWarning(w, r, http.StatusOK, map[string]any{"released": results}, err)
}

func (s *HTTPServer) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	deleted, err := s.deps.Locations.DeleteLocation(r.Context(), id)
	if !deleted {
		writeServiceError(w, r, err)
		return
	}
	writeWithWarning(w, r, http.StatusOK, map[string]any{"deleted": id}, err)
}

func (s *HTTPServer) handleListUnits(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var start, end models.Date
	if v := strings.TrimSpace(r.URL.Query().Get("start")); v != "" {
		d, err := models.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start; expected YYYY-MM-DD")
			return
		}
		start, end = d, d
	}
	if v := strings.TrimSpace(r.URL.Query().Get("end")); v != "" {
		d, err := models.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end; expected YYYY-MM-DD")
			return
		}
		end = d
		if start.IsZero() {
			start = d
		}
	}

	units, err := s.deps.Locations.ListUnits(r.Context(), id, start, end)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, units)
}

func (s *HTTPServer) handleListDecorations(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	decorations, err := s.deps.Bookings.ListDecorations(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"decorations": decorations})
}

func (s *HTTPServer) handleAddDecoration(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req service.DecorationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CreatedBy == "" {
		req.CreatedBy = callerName(r.Context())
	}
	d, err := s.deps.Bookings.AddDecoration(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *HTTPServer) handleUpdateDecoration(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req service.DecorationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, err := s.deps.Bookings.UpdateDecoration(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *HTTPServer) handleDeleteDecoration(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.deps.Bookings.DeleteDecoration(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (s *HTTPServer) handleListFirms(w http.ResponseWriter, r *http.Request) {
	firms, err := s.deps.Bookings.ListFirms(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"firms": firms})
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b, err := s.deps.Bookings.GetBooking(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req service.BookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CreatedBy == "" {
		req.CreatedBy = callerName(r.Context())
	}

	b, err := s.deps.Bookings.CreateBooking(r.Context(), req)
	if b == nil {
		writeServiceError(w, r, err)
		return
	}
	writeWithWarning(w, r, http.StatusCreated, map[string]any{"booking": b}, err)
}

type reserveRequest struct {
	LocationID int64  `json:"location_id"`
	Client     string `json:"client"`
	CreatedBy  string `json:"created_by"`
}

func (s *HTTPServer) handleReserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CreatedBy == "" {
		req.CreatedBy = callerName(r.Context())
	}

	b, err := s.deps.Bookings.Reserve(r.Context(), req.LocationID, req.Client, req.CreatedBy)
	if b == nil {
		writeServiceError(w, r, err)
		return
	}
	writeWithWarning(w, r, http.StatusCreated, map[string]any{"booking": b}, err)
}

func (s *HTTPServer) handleRentMobile(w http.ResponseWriter, r *http.Request) {
	var req service.BookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CreatedBy == "" {
		req.CreatedBy = callerName(r.Context())
	}

	units, err := s.deps.Bookings.RentMobile(r.Context(), req)
	if len(units) == 0 {
		writeServiceError(w, r, err)
		return
	}
	writeWithWarning(w, r, http.StatusCreated, map[string]any{"units": units}, err)
}

type updateBookingRequest struct {
	Start     models.Date      `json:"start"`
	End       models.Date      `json:"end"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	ChangedBy string           `json:"changed_by"`
}

func (s *HTTPServer) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ChangedBy == "" {
		req.ChangedBy = callerName(r.Context())
	}

	b, err := s.deps.Bookings.UpdatePeriod(r.Context(), id, req.Start, req.End, req.Amount, req.ChangedBy)
	if b == nil {
		writeServiceError(w, r, err)
		return
	}
	writeWithWarning(w, r, http.StatusOK, map[string]any{"booking": b}, err)
}

// handleDeleteBooking cancels a booking. With ?mode=release only paid
// rentals are accepted.
func (s *HTTPServer) handleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	by := callerName(r.Context())

	var (
		res *database.ReleaseResult
		err error
	)
	switch mode := r.URL.Query().Get("mode"); mode {
	case "", "cancel":
		res, err = s.deps.Bookings.CancelBooking(r.Context(), id, by)
	case "release":
		res, err = s.deps.Bookings.ReleaseRental(r.Context(), id, by)
	default:
		writeError(w, http.StatusBadRequest, "unknown mode: "+mode)
		return
	}
	if res == nil {
		writeServiceError(w, r, err)
		return
	}
	writeWithWarning(w, r, http.StatusOK, res, err)
}

func (s *HTTPServer) handleConvertHold(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var terms service.RentalTerms
	if err := decodeJSON(w, r, &terms); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if terms.CreatedBy == "" {
		terms.CreatedBy = callerName(r.Context())
	}

	b, err := s.deps.Bookings.ConvertHold(r.Context(), id, terms)
	if b == nil {
		writeServiceError(w, r, err)
		return
	}
	writeWithWarning(w, r, http.StatusOK, map[string]any{"booking": b}, err)
}

func (s *HTTPServer) handleRecompute(w http.ResponseWriter, r *http.Request) {
	changed, err := s.deps.Statuses.Recompute(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"changed": changed, "day": s.deps.Statuses.Today()})
}

func (s *HTTPServer) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Statuses.RunMaintenance(r.Context()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"day": s.deps.Statuses.Today()})
}

func (s *HTTPServer) handleRefreshCache(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Locations.RefreshCache(r.Context()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// writeWithWarning answers a committed write. err, when set, is a failure
// that came after the commit and is reported alongside the result.
func writeWithWarning(w http.ResponseWriter, r *http.Request, statusCode int, payload any, err error) {
	if err == nil {
		writeJSON(w, statusCode, payload)
		return
	}
	zerolog.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("write committed with follow-up error")
	writeJSON(w, statusCode, map[string]any{"result": payload, "warning": err.Error()})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func queryBool(v string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(v))
	return b
}
