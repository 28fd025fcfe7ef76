package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinician-availability/internal/schedule"
)

// LeaveRecord is a stored leave entry.
type LeaveRecord struct {
	ClinicianID string
	Date        time.Time
	Entry       schedule.LeaveEntry
}

// ScheduleSnapshot is the stored state of one clinician over [From, To]:
// every leave entry and every appointment, any status.
type ScheduleSnapshot struct {
	ClinicianID  string
	From         time.Time
	To           time.Time
	Leaves       []LeaveRecord
	Appointments []schedule.Appointment
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	ClinicianID   string
	Payload       []byte
	CreatedAt     time.Time
}

// Repository persists the schedule. The service calls it synchronously
// inside each command, before the command reports success. Every instance
// sharing a repository sees the same schedule.
type Repository interface {
	// SaveAppointment inserts or replaces an appointment by id.
	SaveAppointment(ctx context.Context, a schedule.Appointment) error
	// SaveLeave stores the entry for a date, removing it when empty.
	SaveLeave(ctx context.Context, clinicianID string, date time.Time, e schedule.LeaveEntry) error

	// Read-through. The repository is the source of truth; the service
	// reloads what a command or query touches before evaluating it.
	GetAppointment(ctx context.Context, id uuid.UUID) (schedule.Appointment, error)
	LoadSchedule(ctx context.Context, clinicianID string, from, to time.Time) (ScheduleSnapshot, error)
	LoadPatientAppointments(ctx context.Context, patientID string) ([]schedule.Appointment, error)
	// LoadUpcoming returns upcoming appointments dated on or before day.
	LoadUpcoming(ctx context.Context, day time.Time) ([]schedule.Appointment, error)

	// Startup hydration. Appointments come back in creation order.
	LoadAppointments(ctx context.Context) ([]schedule.Appointment, error)
	LoadLeaves(ctx context.Context) ([]LeaveRecord, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
