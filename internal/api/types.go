package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinician-availability/internal/schedule"
	"github.com/hackgods/clinician-availability/internal/scheduling"
)

type BookAppointmentRequest struct {
	ClinicianID     string `json:"clinician_id"`
	PatientID       string `json:"patient_id"`
	PatientName     string `json:"patient_name"`
	Reason          string `json:"reason"`
	Date            string `json:"date"`
	Slot            string `json:"slot"`
	DurationMinutes int    `json:"duration_minutes"`
}

type RescheduleRequest struct {
	Date string `json:"date"`
	Slot string `json:"slot"`
}

type LeaveRequest struct {
	Date   string `json:"date"`
	Slot   string `json:"slot,omitempty"`
	Period string `json:"period,omitempty"`
}

type SlotResponse struct {
	Label  string `json:"label"`
	Period string `json:"period"`
}

type SlotsResponse struct {
	ClinicianID string         `json:"clinician_id,omitempty"`
	Slots       []SlotResponse `json:"slots"`
}

type AvailabilityResponse struct {
	ClinicianID string         `json:"clinician_id"`
	Date        string         `json:"date"`
	Slots       []SlotResponse `json:"slots"`
}

type AppointmentResponse struct {
	ID              uuid.UUID `json:"id"`
	ClinicianID     string    `json:"clinician_id"`
	PatientID       string    `json:"patient_id"`
	PatientName     string    `json:"patient_name,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	Date            string    `json:"date"`
	Slot            string    `json:"slot"`
	Period          string    `json:"period"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	StartsAt        time.Time `json:"starts_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
}

type DatesResponse struct {
	ClinicianID string   `json:"clinician_id"`
	Dates       []string `json:"dates"`
}

type LeaveResponse struct {
	ClinicianID string                `json:"clinician_id"`
	Date        string                `json:"date"`
	FullDay     bool                  `json:"full_day"`
	Blocked     []string              `json:"blocked"`
	State       string                `json:"state"`
	Conflicts   []AppointmentResponse `json:"conflicts,omitempty"`
}

type LeaveDaysResponse struct {
	ClinicianID string          `json:"clinician_id"`
	Days        []LeaveResponse `json:"days"`
}

type UndoResponse struct {
	Undone bool           `json:"undone"`
	Leave  *LeaveResponse `json:"leave,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toSlots(slots []schedule.TimeSlot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{Label: s.Label, Period: string(s.Period)})
	}
	return out
}

// toAppointment reads the slot time in the clinic location loc.
func toAppointment(a schedule.Appointment, loc *time.Location) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		ClinicianID:     a.ClinicianID,
		PatientID:       a.PatientID,
		PatientName:     a.PatientName,
		Reason:          a.Reason,
		Date:            schedule.FormatDate(a.Date),
		Slot:            a.Slot.Label,
		Period:          string(a.Slot.Period),
		DurationMinutes: int(a.Duration / time.Minute),
		Status:          string(a.Status),
		StartsAt:        a.StartsAt(loc),
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func toAppointments(as []schedule.Appointment, loc *time.Location) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(as))
	for _, a := range as {
		out = append(out, toAppointment(a, loc))
	}
	return out
}

func toLeaveDay(clinicianID string, d schedule.LeaveDay) LeaveResponse {
	blocked := d.Blocked
	if blocked == nil {
		blocked = []string{}
	}
	return LeaveResponse{
		ClinicianID: clinicianID,
		Date:        schedule.FormatDate(d.Date),
		FullDay:     d.FullDay,
		Blocked:     blocked,
		State:       string(d.State),
	}
}

func toLeave(res scheduling.LeaveResult, loc *time.Location) LeaveResponse {
	out := toLeaveDay(res.ClinicianID, res.Day)
	if len(res.Conflicts) > 0 {
		out.Conflicts = toAppointments(res.Conflicts, loc)
	}
	return out
}
