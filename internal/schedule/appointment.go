package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusUpcoming  AppointmentStatus = "upcoming"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

type Appointment struct {
	ID          uuid.UUID
	ClinicianID string
	PatientID   string
	PatientName string
	Reason      string
	Date        time.Time
	Slot        TimeSlot
	Duration    time.Duration
	Status      AppointmentStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StartsAt is the appointment start as an instant. Slot labels are wall
// clock times of the clinic, so loc is the clinic's location.
func (a Appointment) StartsAt(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := a.Date.Date()
	mins := a.Slot.Minutes()
	return time.Date(y, m, d, mins/60, mins%60, 0, 0, loc)
}

func (a Appointment) EndsAt(loc *time.Location) time.Time {
	return a.StartsAt(loc).Add(a.Duration)
}

// BookRequest carries the inputs of a new booking.
type BookRequest struct {
	ClinicianID string
	PatientID   string
	PatientName string
	Reason      string
	Date        time.Time
	Slot        string
	Duration    time.Duration
}

// AppointmentBook stores appointments. Appointments are never removed once
// committed: cancelling keeps them for history.
type AppointmentBook struct {
	catalogs *Catalogs
	resolver *Resolver
	byID     map[uuid.UUID]*Appointment
	order    []uuid.UUID
	now      func() time.Time
	loc      *time.Location
}

// NewAppointmentBook creates a book whose bookings are checked against
// leaves and its own appointments.
func NewAppointmentBook(catalogs *Catalogs, leaves *LeaveCalendar) *AppointmentBook {
	b := &AppointmentBook{
		catalogs: catalogs,
		byID:     make(map[uuid.UUID]*Appointment),
		now:      time.Now,
		loc:      time.UTC,
	}
	b.resolver = NewResolver(catalogs, leaves, b)
	return b
}

// Resolver returns the availability resolver bound to this book.
func (b *AppointmentBook) Resolver() *Resolver { return b.resolver }

// SetClock replaces the clock used for timestamps.
func (b *AppointmentBook) SetClock(now func() time.Time) { b.now = now }

// SetLocation sets the clinic location slot labels are read in. Defaults
// to UTC.
func (b *AppointmentBook) SetLocation(loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	b.loc = loc
}

func (b *AppointmentBook) Location() *time.Location { return b.loc }

func (b *AppointmentBook) Book(req BookRequest) (Appointment, error) {
	slot, ok := b.catalogs.For(req.ClinicianID).Lookup(req.Slot)
	if !ok {
		return Appointment{}, fmt.Errorf("%w: %q is not offered", ErrSlotUnavailable, req.Slot)
	}
	if !b.resolver.IsAvailable(req.ClinicianID, req.Date, slot.Label, uuid.Nil) {
		return Appointment{}, fmt.Errorf("%w: %s %s", ErrSlotUnavailable, FormatDate(req.Date), slot.Label)
	}

	duration := req.Duration
	if duration <= 0 {
		duration = b.catalogs.For(req.ClinicianID).Step()
	}

	now := b.now().UTC()
	a := &Appointment{
		ID:          uuid.New(),
		ClinicianID: req.ClinicianID,
		PatientID:   req.PatientID,
		PatientName: req.PatientName,
		Reason:      req.Reason,
		Date:        Day(req.Date),
		Slot:        slot,
		Duration:    duration,
		Status:      StatusUpcoming,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	b.byID[a.ID] = a
	b.order = append(b.order, a.ID)

	return *a, nil
}

func (b *AppointmentBook) Get(id uuid.UUID) (Appointment, error) {
	a, ok := b.byID[id]
	if !ok {
		return Appointment{}, ErrAppointmentNotFound
	}
	return *a, nil
}

// Cancel marks the appointment cancelled. Cancelling twice is a no-op.
func (b *AppointmentBook) Cancel(id uuid.UUID) (Appointment, error) {
	a, ok := b.byID[id]
	if !ok {
		return Appointment{}, ErrAppointmentNotFound
	}
	if a.Status != StatusCancelled {
		a.Status = StatusCancelled
		a.UpdatedAt = b.now().UTC()
	}
	return *a, nil
}

// Complete marks a consultation done. Completing twice is a no-op.
func (b *AppointmentBook) Complete(id uuid.UUID) (Appointment, error) {
	a, ok := b.byID[id]
	if !ok {
		return Appointment{}, ErrAppointmentNotFound
	}
	switch a.Status {
	case StatusCompleted:
		return *a, nil
	case StatusCancelled:
		return Appointment{}, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, a.Status, StatusCompleted)
	}
	a.Status = StatusCompleted
	a.UpdatedAt = b.now().UTC()
	return *a, nil
}

// Reschedule moves an upcoming appointment to a new date and slot, keeping
// its id and patient. Its current booking does not conflict with itself.
func (b *AppointmentBook) Reschedule(id uuid.UUID, date time.Time, label string) (Appointment, error) {
	a, ok := b.byID[id]
	if !ok {
		return Appointment{}, ErrAppointmentNotFound
	}
	if a.Status != StatusUpcoming {
		return Appointment{}, fmt.Errorf("%w: cannot reschedule %s appointment", ErrInvalidStatusTransition, a.Status)
	}

	slot, ok := b.catalogs.For(a.ClinicianID).Lookup(label)
	if !ok {
		return Appointment{}, fmt.Errorf("%w: %q is not offered", ErrSlotUnavailable, label)
	}
	if !b.resolver.IsAvailable(a.ClinicianID, date, slot.Label, a.ID) {
		return Appointment{}, fmt.Errorf("%w: %s %s", ErrSlotUnavailable, FormatDate(date), slot.Label)
	}

	a.Date = Day(date)
	a.Slot = slot
	a.UpdatedAt = b.now().UTC()
	return *a, nil
}

// AppointmentsOn returns the clinician's non-cancelled appointments on date,
// earliest slot first.
func (b *AppointmentBook) AppointmentsOn(clinicianID string, date time.Time) []Appointment {
	key := dayKey(date)
	var out []Appointment
	for _, id := range b.order {
		a := b.byID[id]
		if a.ClinicianID == clinicianID && a.Status != StatusCancelled && dayKey(a.Date) == key {
			out = append(out, *a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Slot.Minutes() < out[j].Slot.Minutes()
	})
	return out
}

// Between returns every appointment of the clinician in [from, to], any
// status, ordered by start time.
func (b *AppointmentBook) Between(clinicianID string, from, to time.Time) []Appointment {
	lo, hi := Day(from), Day(to)
	var out []Appointment
	for _, id := range b.order {
		a := b.byID[id]
		if a.ClinicianID != clinicianID || a.Date.Before(lo) || a.Date.After(hi) {
			continue
		}
		out = append(out, *a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartsAt(b.loc).Before(out[j].StartsAt(b.loc))
	})
	return out
}

// DatesWithAppointments lists the dates in [from, to] on which the
// clinician has at least one non-cancelled appointment.
func (b *AppointmentBook) DatesWithAppointments(clinicianID string, from, to time.Time) []time.Time {
	seen := make(map[string]time.Time)
	for _, a := range b.Between(clinicianID, from, to) {
		if a.Status != StatusCancelled {
			seen[dayKey(a.Date)] = a.Date
		}
	}
	out := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// ByPatient returns all of a patient's appointments in booking order.
func (b *AppointmentBook) ByPatient(patientID string) []Appointment {
	var out []Appointment
	for _, id := range b.order {
		if a := b.byID[id]; a.PatientID == patientID {
			out = append(out, *a)
		}
	}
	return out
}

// DueForCompletion returns upcoming appointments that ended before now,
// reading slot times in the clinic location.
func (b *AppointmentBook) DueForCompletion(now time.Time) []Appointment {
	var out []Appointment
	for _, id := range b.order {
		a := b.byID[id]
		if a.Status == StatusUpcoming && a.EndsAt(b.loc).Before(now) {
			out = append(out, *a)
		}
	}
	return out
}

// Restore puts a previously stored appointment back into the book,
// replacing any version with the same id. New ids are appended.
func (b *AppointmentBook) Restore(a Appointment) {
	a.Date = Day(a.Date)
	if existing, ok := b.byID[a.ID]; ok {
		*existing = a
		return
	}
	b.byID[a.ID] = &a
	b.order = append(b.order, a.ID)
}

// Discard drops an appointment whose creation could not be committed.
func (b *AppointmentBook) Discard(id uuid.UUID) {
	if _, ok := b.byID[id]; !ok {
		return
	}
	delete(b.byID, id)
	for i, oid := range b.order {
		if oid == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// occupied returns the labels held by non-cancelled appointments of the
// clinician on date, ignoring the excluded appointment.
func (b *AppointmentBook) occupied(clinicianID string, date time.Time, excluding uuid.UUID) map[string]struct{} {
	key := dayKey(date)
	out := make(map[string]struct{})
	for _, a := range b.byID {
		if a.ID == excluding || a.ClinicianID != clinicianID || a.Status == StatusCancelled {
			continue
		}
		if dayKey(a.Date) == key {
			out[a.Slot.Label] = struct{}{}
		}
	}
	return out
}
