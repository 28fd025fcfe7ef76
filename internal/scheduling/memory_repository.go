package scheduling

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinician-availability/internal/schedule"
)

// MemoryRepository keeps everything in process. It backs the service when
// no database is configured.
type MemoryRepository struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]schedule.Appointment
	order        []uuid.UUID
	leaves       map[string]LeaveRecord
	events       []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		appointments: make(map[uuid.UUID]schedule.Appointment),
		leaves:       make(map[string]LeaveRecord),
	}
}

func leaveKey(clinicianID string, date time.Time) string {
	return clinicianID + "|" + schedule.FormatDate(date)
}

func (r *MemoryRepository) SaveAppointment(_ context.Context, a schedule.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// same rule as the partial unique index in Postgres
	if a.Status != schedule.StatusCancelled {
		for id, other := range r.appointments {
			if id != a.ID && other.Status != schedule.StatusCancelled &&
				other.ClinicianID == a.ClinicianID && other.Slot.Label == a.Slot.Label &&
				schedule.Day(other.Date).Equal(schedule.Day(a.Date)) {
				return fmt.Errorf("%w: %s %s", schedule.ErrSlotUnavailable, schedule.FormatDate(a.Date), a.Slot.Label)
			}
		}
	}

	if _, ok := r.appointments[a.ID]; !ok {
		r.order = append(r.order, a.ID)
	}
	r.appointments[a.ID] = a
	return nil
}

func (r *MemoryRepository) SaveLeave(_ context.Context, clinicianID string, date time.Time, e schedule.LeaveEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := leaveKey(clinicianID, date)
	if e.IsEmpty() {
		delete(r.leaves, key)
		return nil
	}
	r.leaves[key] = LeaveRecord{
		ClinicianID: clinicianID,
		Date:        schedule.Day(date),
		Entry:       schedule.NewLeaveEntry(e.FullDay, e.Blocked()...),
	}
	return nil
}

func (r *MemoryRepository) GetAppointment(_ context.Context, id uuid.UUID) (schedule.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return schedule.Appointment{}, schedule.ErrAppointmentNotFound
	}
	return a, nil
}

func (r *MemoryRepository) LoadSchedule(_ context.Context, clinicianID string, from, to time.Time) (ScheduleSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lo, hi := schedule.Day(from), schedule.Day(to)
	inRange := func(d time.Time) bool { return !d.Before(lo) && !d.After(hi) }

	snap := ScheduleSnapshot{ClinicianID: clinicianID, From: lo, To: hi}
	for _, id := range r.order {
		a := r.appointments[id]
		if a.ClinicianID == clinicianID && inRange(schedule.Day(a.Date)) {
			snap.Appointments = append(snap.Appointments, a)
		}
	}
	for _, rec := range r.leaves {
		if rec.ClinicianID == clinicianID && inRange(rec.Date) {
			snap.Leaves = append(snap.Leaves, rec)
		}
	}
	sort.Slice(snap.Leaves, func(i, j int) bool { return snap.Leaves[i].Date.Before(snap.Leaves[j].Date) })
	return snap, nil
}

func (r *MemoryRepository) LoadPatientAppointments(_ context.Context, patientID string) ([]schedule.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []schedule.Appointment
	for _, id := range r.order {
		if a := r.appointments[id]; a.PatientID == patientID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *MemoryRepository) LoadUpcoming(_ context.Context, day time.Time) ([]schedule.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	hi := schedule.Day(day)
	var out []schedule.Appointment
	for _, id := range r.order {
		a := r.appointments[id]
		if a.Status == schedule.StatusUpcoming && !schedule.Day(a.Date).After(hi) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *MemoryRepository) LoadAppointments(context.Context) ([]schedule.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]schedule.Appointment, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.appointments[id])
	}
	return out, nil
}

func (r *MemoryRepository) LoadLeaves(context.Context) ([]LeaveRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]LeaveRecord, 0, len(r.leaves))
	for _, rec := range r.leaves {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return leaveKey(out[i].ClinicianID, out[i].Date) < leaveKey(out[j].ClinicianID, out[j].Date)
	})
	return out, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the event log.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]EventLog, len(r.events))
	copy(out, r.events)
	return out
}
