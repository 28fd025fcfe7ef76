package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinician-availability/internal/schedule"
	"github.com/hackgods/clinician-availability/internal/scheduling"
)

func parseAppointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func listSlotsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		period, err := schedule.ParsePeriod(q.Get("period"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_period", "period must be morning or afternoon")
			return
		}

		clinicianID := q.Get("clinician_id")
		writeJSON(w, http.StatusOK, SlotsResponse{
			ClinicianID: clinicianID,
			Slots:       toSlots(svc.Slots(clinicianID, period)),
		})
	}
}

func availabilityHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicianID := chi.URLParam(r, "clinicianID")
		q := r.URL.Query()

		date, ok := parseDateParam(w, "date", q.Get("date"))
		if !ok {
			return
		}

		exclude := uuid.Nil
		if raw := q.Get("exclude"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_exclude", "exclude must be a valid UUID")
				return
			}
			exclude = id
		}

		slots, err := svc.AvailableSlots(r.Context(), clinicianID, date, exclude)
		if err != nil {
			handleScheduleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			ClinicianID: clinicianID,
			Date:        schedule.FormatDate(date),
			Slots:       toSlots(slots),
		})
	}
}

func clinicianAppointmentsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicianID := chi.URLParam(r, "clinicianID")

		if raw := r.URL.Query().Get("date"); raw != "" {
			date, ok := parseDateParam(w, "date", raw)
			if !ok {
				return
			}
			appts, err := svc.AppointmentsOn(r.Context(), clinicianID, date)
			if err != nil {
				handleScheduleError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, AppointmentListResponse{
				Appointments: toAppointments(appts, svc.Location()),
			})
			return
		}

		from, to, ok := parseRange(w, r)
		if !ok {
			return
		}
		appts, err := svc.AppointmentsBetween(r.Context(), clinicianID, from, to)
		if err != nil {
			handleScheduleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, AppointmentListResponse{
			Appointments: toAppointments(appts, svc.Location()),
		})
	}
}

func appointmentDatesHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicianID := chi.URLParam(r, "clinicianID")
		from, to, ok := parseRange(w, r)
		if !ok {
			return
		}

		dates, err := svc.DatesWithAppointments(r.Context(), clinicianID, from, to)
		if err != nil {
			handleScheduleError(w, r, err)
			return
		}
		resp := DatesResponse{ClinicianID: clinicianID, Dates: make([]string, 0, len(dates))}
		for _, d := range dates {
			resp.Dates = append(resp.Dates, schedule.FormatDate(d))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func patientAppointmentsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID := chi.URLParam(r, "patientID")
		appts, err := svc.AppointmentsByPatient(r.Context(), patientID)
		if err != nil {
			handleScheduleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, AppointmentListResponse{
			Appointments: toAppointments(appts, svc.Location()),
		})
	}
}

func bookAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if req.ClinicianID == "" {
			writeError(w, http.StatusBadRequest, "missing_clinician_id", "clinician_id is required")
			return
		}
		if req.PatientID == "" {
			writeError(w, http.StatusBadRequest, "missing_patient_id", "patient_id is required")
			return
		}
		if req.Slot == "" {
			writeError(w, http.StatusBadRequest, "missing_slot", "slot is required")
			return
		}
		if req.DurationMinutes < 0 {
			writeError(w, http.StatusBadRequest, "invalid_duration", "duration_minutes must not be negative")
			return
		}
		date, ok := parseDateParam(w, "date", req.Date)
		if !ok {
			return
		}

		appt, err := svc.Book(r.Context(), schedule.BookRequest{
			ClinicianID: req.ClinicianID,
			PatientID:   req.PatientID,
			PatientName: req.PatientName,
			Reason:      req.Reason,
			Date:        date,
			Slot:        req.Slot,
			Duration:    time.Duration(req.DurationMinutes) * time.Minute,
		})
		if err != nil {
			handleScheduleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointment(appt, svc.Location()))
	}
}

func getAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseAppointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleScheduleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointment(appt, svc.Location()))
	}
}

func cancelAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseAppointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Cancel(r.Context(), id)
		if err != nil {
			handleScheduleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointment(appt, svc.Location()))
	}
}

func completeAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseAppointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Complete(r.Context(), id)
		if err != nil {
			handleScheduleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointment(appt, svc.Location()))
	}
}

func rescheduleAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseAppointmentID(w, r)
		if !ok {
			return
		}

		var req RescheduleRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Slot == "" {
			writeError(w, http.StatusBadRequest, "missing_slot", "slot is required")
			return
		}
		date, ok := parseDateParam(w, "date", req.Date)
		if !ok {
			return
		}

		appt, err := svc.Reschedule(r.Context(), id, date, req.Slot)
		if err != nil {
			handleScheduleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointment(appt, svc.Location()))
	}
}
