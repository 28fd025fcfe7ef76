package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinician-availability/internal/schedule"
	"github.com/hackgods/clinician-availability/internal/scheduling"
)

// maxRangeDays bounds from/to range queries.
const maxRangeDays = 366

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// handleScheduleError maps domain errors to HTTP responses.
func handleScheduleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, schedule.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, schedule.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, schedule.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, scheduling.ErrScheduleBusy):
		writeError(w, http.StatusConflict, "schedule_busy", "schedule is currently being changed, please retry shortly")
	case errors.Is(err, schedule.ErrUnknownSlot):
		writeError(w, http.StatusBadRequest, "unknown_slot", err.Error())
	case errors.Is(err, schedule.ErrInvalidPeriod):
		writeError(w, http.StatusBadRequest, "invalid_period", err.Error())
	case errors.Is(err, schedule.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
	default:
		log.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func parseDateParam(w http.ResponseWriter, name, value string) (time.Time, bool) {
	if value == "" {
		writeError(w, http.StatusBadRequest, "missing_"+name, name+" is required (YYYY-MM-DD)")
		return time.Time{}, false
	}
	d, err := schedule.ParseDate(value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a YYYY-MM-DD date")
		return time.Time{}, false
	}
	return d, true
}

// parseRange reads the from and to query parameters.
func parseRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	q := r.URL.Query()
	from, ok := parseDateParam(w, "from", q.Get("from"))
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	to, ok := parseDateParam(w, "to", q.Get("to"))
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "invalid_range", "to must not be before from")
		return time.Time{}, time.Time{}, false
	}
	if to.Sub(from) > maxRangeDays*24*time.Hour {
		writeError(w, http.StatusBadRequest, "invalid_range", fmt.Sprintf("range must not exceed %d days", maxRangeDays))
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}
