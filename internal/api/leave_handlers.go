package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinician-availability/internal/schedule"
	"github.com/hackgods/clinician-availability/internal/scheduling"
)

func getLeaveHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicianID := chi.URLParam(r, "clinicianID")

		if raw := r.URL.Query().Get("date"); raw != "" {
			date, ok := parseDateParam(w, "date", raw)
			if !ok {
				return
			}
			res, err := svc.Leave(r.Context(), clinicianID, date)
			if err != nil {
				handleScheduleError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, toLeave(res, svc.Location()))
			return
		}

		from, to, ok := parseRange(w, r)
		if !ok {
			return
		}

		days, err := svc.LeaveDays(r.Context(), clinicianID, from, to)
		if err != nil {
			handleScheduleError(w, r, err)
			return
		}
		resp := LeaveDaysResponse{ClinicianID: clinicianID, Days: make([]LeaveResponse, 0, len(days))}
		for _, d := range days {
			resp.Days = append(resp.Days, toLeaveDay(clinicianID, d))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// leaveCommand is a leave change on one date of the clinician in the URL.
// date is req.Date, already parsed.
type leaveCommand func(r *http.Request, svc *scheduling.Service, clinicianID string, date time.Time, req LeaveRequest) (scheduling.LeaveResult, error)

func leaveHandler(svc *scheduling.Service, cmd leaveCommand) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicianID := chi.URLParam(r, "clinicianID")

		var req LeaveRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		date, ok := parseDateParam(w, "date", req.Date)
		if !ok {
			return
		}

		res, err := cmd(r, svc, clinicianID, date, req)
		if err != nil {
			handleScheduleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toLeave(res, svc.Location()))
	}
}

func toggleFullDayLeave(r *http.Request, svc *scheduling.Service, clinicianID string, date time.Time, _ LeaveRequest) (scheduling.LeaveResult, error) {
	return svc.ToggleFullDayLeave(r.Context(), clinicianID, date)
}

func toggleSlotLeave(r *http.Request, svc *scheduling.Service, clinicianID string, date time.Time, req LeaveRequest) (scheduling.LeaveResult, error) {
	return svc.ToggleSlotLeave(r.Context(), clinicianID, date, req.Slot)
}

func blockPeriod(r *http.Request, svc *scheduling.Service, clinicianID string, date time.Time, req LeaveRequest) (scheduling.LeaveResult, error) {
	period, err := schedule.ParsePeriod(req.Period)
	if err != nil {
		return scheduling.LeaveResult{}, err
	}
	return svc.BlockPeriod(r.Context(), clinicianID, date, period)
}

func clearLeave(r *http.Request, svc *scheduling.Service, clinicianID string, date time.Time, _ LeaveRequest) (scheduling.LeaveResult, error) {
	return svc.ClearLeave(r.Context(), clinicianID, date)
}

// undoLeaveHandler always answers 200 when nothing is pending so the undo
// control stays safe to press.
func undoLeaveHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicianID := chi.URLParam(r, "clinicianID")

		res, err := svc.UndoLeave(r.Context(), clinicianID)
		if errors.Is(err, schedule.ErrNoPendingUndo) {
			writeJSON(w, http.StatusOK, UndoResponse{Undone: false})
			return
		}
		if err != nil {
			handleScheduleError(w, r, err)
			return
		}

		leave := toLeave(res, svc.Location())
		writeJSON(w, http.StatusOK, UndoResponse{Undone: true, Leave: &leave})
	}
}
