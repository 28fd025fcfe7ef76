package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	redisclient "github.com/hackgods/clinician-availability/internal/redis"
	"github.com/hackgods/clinician-availability/internal/schedule"
)

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventLeaveChanged           = "LEAVE_CHANGED"
	EventLeaveUndone            = "LEAVE_UNDONE"
)

var (
	ErrScheduleBusy = errors.New("schedule is being changed, please retry")
)

// LeaveResult is a date's leave after a change, with the upcoming
// appointments that now sit in blocked slots.
type LeaveResult struct {
	ClinicianID string
	Day         schedule.LeaveDay
	Conflicts   []schedule.Appointment
}

// Service runs schedule commands against a working copy of the schedule.
// The repository is the source of truth: before a command runs, the days it
// touches are reloaded under their day locks, and queries read straight
// from the repository, so instances sharing a repository and a locker
// agree on every slot.
type Service struct {
	mu        sync.Mutex
	catalogs  *schedule.Catalogs
	leaves    *schedule.LeaveCalendar
	book      *schedule.AppointmentBook
	repo      Repository
	locker    redisclient.Locker
	loc       *time.Location
	lastLeave map[string]schedule.LeaveEntry // entry written by the clinician's last undoable change
}

func NewService(catalogs *schedule.Catalogs, repo Repository, locker redisclient.Locker) *Service {
	leaves := schedule.NewLeaveCalendar(catalogs)
	return &Service{
		catalogs:  catalogs,
		leaves:    leaves,
		book:      schedule.NewAppointmentBook(catalogs, leaves),
		repo:      repo,
		locker:    locker,
		loc:       time.UTC,
		lastLeave: make(map[string]schedule.LeaveEntry),
	}
}

// SetClock replaces the clock used for appointment timestamps.
func (s *Service) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.book.SetClock(now)
}

// SetLocation sets the clinic time zone slot labels are read in. Call it
// before serving requests.
func (s *Service) SetLocation(loc *time.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.book.SetLocation(loc)
	s.loc = s.book.Location()
}

func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

// Hydrate warms the working copy with every stored appointment and leave.
func (s *Service) Hydrate(ctx context.Context) error {
	appts, err := s.repo.LoadAppointments(ctx)
	if err != nil {
		return fmt.Errorf("load appointments: %w", err)
	}
	leaves, err := s.repo.LoadLeaves(ctx)
	if err != nil {
		return fmt.Errorf("load leaves: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range appts {
		s.book.Restore(a)
	}
	for _, l := range leaves {
		s.leaves.Restore(l.ClinicianID, l.Date, l.Entry)
	}

	log.Info().Int("appointments", len(appts)).Int("leave_days", len(leaves)).Msg("schedule hydrated")
	return nil
}

func dayLock(clinicianID string, date time.Time) redisclient.DayKey {
	return redisclient.DayKey{ClinicianID: clinicianID, Date: schedule.FormatDate(date)}
}

func (s *Service) withDays(ctx context.Context, days []redisclient.DayKey, fn func(ctx context.Context) error) error {
	err := s.locker.WithDayLock(ctx, days, fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrScheduleBusy
	}
	return err
}

// refresh replaces the working copy of the given days with what the
// repository holds. Callers must hold the day locks.
func (s *Service) refresh(ctx context.Context, clinicianID string, days ...time.Time) error {
	snaps := make([]ScheduleSnapshot, 0, len(days))
	for _, d := range days {
		snap, err := s.repo.LoadSchedule(ctx, clinicianID, d, d)
		if err != nil {
			return fmt.Errorf("load schedule: %w", err)
		}
		snaps = append(snaps, snap)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range snaps {
		s.applyLocked(snap)
	}
	return nil
}

// applyLocked must be called with s.mu held.
func (s *Service) applyLocked(snap ScheduleSnapshot) {
	for _, d := range s.leaves.LeaveDays(snap.ClinicianID, snap.From, snap.To) {
		s.leaves.Restore(snap.ClinicianID, d.Date, schedule.LeaveEntry{})
	}
	for _, l := range snap.Leaves {
		s.leaves.Restore(l.ClinicianID, l.Date, l.Entry)
	}

	stored := make(map[uuid.UUID]struct{}, len(snap.Appointments))
	for _, a := range snap.Appointments {
		s.book.Restore(a)
		stored[a.ID] = struct{}{}
	}
	for _, a := range s.book.Between(snap.ClinicianID, snap.From, snap.To) {
		if _, ok := stored[a.ID]; !ok {
			s.book.Discard(a.ID)
		}
	}
}

// scheduleView is a read-only model built from one repository snapshot.
type scheduleView struct {
	leaves *schedule.LeaveCalendar
	book   *schedule.AppointmentBook
}

func (s *Service) view(ctx context.Context, clinicianID string, from, to time.Time) (scheduleView, error) {
	snap, err := s.repo.LoadSchedule(ctx, clinicianID, from, to)
	if err != nil {
		return scheduleView{}, fmt.Errorf("load schedule: %w", err)
	}

	v := scheduleView{leaves: schedule.NewLeaveCalendar(s.catalogs)}
	v.book = schedule.NewAppointmentBook(s.catalogs, v.leaves)
	v.book.SetLocation(s.Location())
	for _, l := range snap.Leaves {
		v.leaves.Restore(l.ClinicianID, l.Date, l.Entry)
	}
	for _, a := range snap.Appointments {
		v.book.Restore(a)
	}
	return v, nil
}

// Queries

func (s *Service) Slots(clinicianID string, period schedule.Period) []schedule.TimeSlot {
	return s.catalogs.For(clinicianID).Slots(period)
}

// AvailableSlots lists free slots. excluding may be uuid.Nil.
func (s *Service) AvailableSlots(ctx context.Context, clinicianID string, date time.Time, excluding uuid.UUID) ([]schedule.TimeSlot, error) {
	v, err := s.view(ctx, clinicianID, date, date)
	if err != nil {
		return nil, err
	}
	return v.book.Resolver().AvailableSlots(clinicianID, date, excluding), nil
}

func (s *Service) AppointmentsOn(ctx context.Context, clinicianID string, date time.Time) ([]schedule.Appointment, error) {
	v, err := s.view(ctx, clinicianID, date, date)
	if err != nil {
		return nil, err
	}
	return v.book.AppointmentsOn(clinicianID, date), nil
}

func (s *Service) AppointmentsBetween(ctx context.Context, clinicianID string, from, to time.Time) ([]schedule.Appointment, error) {
	v, err := s.view(ctx, clinicianID, from, to)
	if err != nil {
		return nil, err
	}
	return v.book.Between(clinicianID, from, to), nil
}

func (s *Service) DatesWithAppointments(ctx context.Context, clinicianID string, from, to time.Time) ([]time.Time, error) {
	v, err := s.view(ctx, clinicianID, from, to)
	if err != nil {
		return nil, err
	}
	return v.book.DatesWithAppointments(clinicianID, from, to), nil
}

func (s *Service) AppointmentsByPatient(ctx context.Context, patientID string) ([]schedule.Appointment, error) {
	appts, err := s.repo.LoadPatientAppointments(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load patient appointments: %w", err)
	}
	return appts, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (schedule.Appointment, error) {
	return s.repo.GetAppointment(ctx, id)
}

func (s *Service) Leave(ctx context.Context, clinicianID string, date time.Time) (LeaveResult, error) {
	v, err := s.view(ctx, clinicianID, date, date)
	if err != nil {
		return LeaveResult{}, err
	}
	return leaveResult(v.leaves, v.book, clinicianID, date), nil
}

func (s *Service) LeaveDays(ctx context.Context, clinicianID string, from, to time.Time) ([]schedule.LeaveDay, error) {
	v, err := s.view(ctx, clinicianID, from, to)
	if err != nil {
		return nil, err
	}
	return v.leaves.LeaveDays(clinicianID, from, to), nil
}

func leaveResult(leaves *schedule.LeaveCalendar, book *schedule.AppointmentBook, clinicianID string, date time.Time) LeaveResult {
	e := leaves.Entry(clinicianID, date)
	res := LeaveResult{
		ClinicianID: clinicianID,
		Day: schedule.LeaveDay{
			Date:    schedule.Day(date),
			FullDay: e.FullDay,
			Blocked: e.Blocked(),
			State:   leaves.State(clinicianID, date),
		},
	}
	for _, a := range book.AppointmentsOn(clinicianID, date) {
		if a.Status == schedule.StatusUpcoming && leaves.IsBlocked(clinicianID, date, a.Slot.Label) {
			res.Conflicts = append(res.Conflicts, a)
		}
	}
	return res
}

// Appointment commands

// Book reserves a slot for a patient under the clinician's day lock.
func (s *Service) Book(ctx context.Context, req schedule.BookRequest) (schedule.Appointment, error) {
	var booked schedule.Appointment

	err := s.withDays(ctx, []redisclient.DayKey{dayLock(req.ClinicianID, req.Date)}, func(ctx context.Context) error {
		if err := s.refresh(ctx, req.ClinicianID, req.Date); err != nil {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		a, err := s.book.Book(req)
		if err != nil {
			return err
		}
		if err := s.repo.SaveAppointment(ctx, a); err != nil {
			s.book.Discard(a.ID)
			return fmt.Errorf("save appointment: %w", err)
		}

		booked = a
		s.logEvent(ctx, &a.ID, a.ClinicianID, EventAppointmentBooked, map[string]any{
			"patient_id": a.PatientID,
			"date":       schedule.FormatDate(a.Date),
			"slot":       a.Slot.Label,
		})
		return nil
	})
	if err != nil {
		return schedule.Appointment{}, err
	}

	return booked, nil
}

// updateAppointment runs change against one appointment under the lock of
// every day it touches and logs eventType once the change is stored.
// extraDay may be zero.
func (s *Service) updateAppointment(
	ctx context.Context,
	id uuid.UUID,
	extraDay time.Time,
	eventType string,
	change func(prev schedule.Appointment) (schedule.Appointment, bool, error),
	payload func(prev, next schedule.Appointment) map[string]any,
) (schedule.Appointment, error) {
	current, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return schedule.Appointment{}, err
	}

	dates := []time.Time{current.Date}
	days := []redisclient.DayKey{dayLock(current.ClinicianID, current.Date)}
	if !extraDay.IsZero() {
		dates = append(dates, extraDay)
		days = append(days, dayLock(current.ClinicianID, extraDay))
	}

	var updated schedule.Appointment
	err = s.withDays(ctx, days, func(ctx context.Context) error {
		if err := s.refresh(ctx, current.ClinicianID, dates...); err != nil {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		prev, err := s.book.Get(id)
		if errors.Is(err, schedule.ErrAppointmentNotFound) || (err == nil && !prev.Date.Equal(current.Date)) {
			// moved by someone else after we picked the locks
			return ErrScheduleBusy
		}
		if err != nil {
			return err
		}

		next, changed, err := change(prev)
		if err != nil {
			return err
		}
		updated = next
		if !changed {
			return nil
		}

		if err := s.repo.SaveAppointment(ctx, next); err != nil {
			s.book.Restore(prev)
			return fmt.Errorf("save appointment: %w", err)
		}
		s.logEvent(ctx, &next.ID, next.ClinicianID, eventType, payload(prev, next))
		return nil
	})
	if err != nil {
		return schedule.Appointment{}, err
	}

	return updated, nil
}

func slotPayload(_, next schedule.Appointment) map[string]any {
	return map[string]any{
		"date": schedule.FormatDate(next.Date),
		"slot": next.Slot.Label,
	}
}

// Cancel is idempotent: cancelling a cancelled appointment writes nothing.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (schedule.Appointment, error) {
	return s.updateAppointment(ctx, id, time.Time{}, EventAppointmentCancelled,
		func(prev schedule.Appointment) (schedule.Appointment, bool, error) {
			if prev.Status == schedule.StatusCancelled {
				return prev, false, nil
			}
			a, err := s.book.Cancel(id)
			return a, err == nil, err
		},
		slotPayload,
	)
}

// Complete marks a consultation done.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (schedule.Appointment, error) {
	return s.updateAppointment(ctx, id, time.Time{}, EventAppointmentCompleted,
		func(prev schedule.Appointment) (schedule.Appointment, bool, error) {
			if prev.Status == schedule.StatusCompleted {
				return prev, false, nil
			}
			a, err := s.book.Complete(id)
			return a, err == nil, err
		},
		slotPayload,
	)
}

// Reschedule moves an appointment, locking both the old and the new day.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, date time.Time, slot string) (schedule.Appointment, error) {
	return s.updateAppointment(ctx, id, date, EventAppointmentRescheduled,
		func(schedule.Appointment) (schedule.Appointment, bool, error) {
			a, err := s.book.Reschedule(id, date, slot)
			return a, err == nil, err
		},
		func(prev, next schedule.Appointment) map[string]any {
			return map[string]any{
				"from_date": schedule.FormatDate(prev.Date),
				"from_slot": prev.Slot.Label,
				"to_date":   schedule.FormatDate(next.Date),
				"to_slot":   next.Slot.Label,
			}
		},
	)
}

// CompletePastAppointments is intended to be called periodically. It moves
// upcoming appointments that have ended to completed. Days that are locked
// by a concurrent command are left for the next run.
func (s *Service) CompletePastAppointments(ctx context.Context, now time.Time) (int, error) {
	loc := s.Location()
	upcoming, err := s.repo.LoadUpcoming(ctx, schedule.Day(now.In(loc)))
	if err != nil {
		return 0, fmt.Errorf("load upcoming appointments: %w", err)
	}

	pending := schedule.NewAppointmentBook(s.catalogs, schedule.NewLeaveCalendar(s.catalogs))
	pending.SetLocation(loc)
	for _, a := range upcoming {
		pending.Restore(a)
	}
	due := pending.DueForCompletion(now)

	completed := 0
	for _, a := range due {
		if err := ctx.Err(); err != nil {
			return completed, err
		}
		_, err := s.Complete(ctx, a.ID)
		if err != nil {
			if !errors.Is(err, ErrScheduleBusy) && !errors.Is(err, schedule.ErrInvalidStatusTransition) {
				log.Error().Err(err).Str("appointment_id", a.ID.String()).Msg("failed to complete past appointment")
			}
			continue
		}
		completed++
	}

	return completed, nil
}

// Leave commands

// mutateLeave applies change to one date and persists the result. A
// failed write restores both the entry and the pending undo record.
func (s *Service) mutateLeave(
	ctx context.Context,
	clinicianID string,
	date time.Time,
	eventType string,
	change func() error,
) (LeaveResult, error) {
	var res LeaveResult

	err := s.withDays(ctx, []redisclient.DayKey{dayLock(clinicianID, date)}, func(ctx context.Context) error {
		if err := s.refresh(ctx, clinicianID, date); err != nil {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		prevEntry := s.leaves.Entry(clinicianID, date)
		prevUndo, hadUndo := s.leaves.PendingUndo(clinicianID)

		if err := change(); err != nil {
			return err
		}

		entry := s.leaves.Entry(clinicianID, date)
		if err := s.repo.SaveLeave(ctx, clinicianID, date, entry); err != nil {
			s.leaves.Restore(clinicianID, date, prevEntry)
			s.leaves.RestoreUndo(clinicianID, prevUndo, hadUndo)
			return fmt.Errorf("save leave: %w", err)
		}

		if _, ok := s.leaves.PendingUndo(clinicianID); ok {
			s.lastLeave[clinicianID] = entry
		} else {
			delete(s.lastLeave, clinicianID)
		}

		res = leaveResult(s.leaves, s.book, clinicianID, date)
		s.logEvent(ctx, nil, clinicianID, eventType, map[string]any{
			"date":     schedule.FormatDate(date),
			"full_day": entry.FullDay,
			"blocked":  entry.Blocked(),
		})
		return nil
	})
	if err != nil {
		return LeaveResult{}, err
	}

	return res, nil
}

func (s *Service) ToggleFullDayLeave(ctx context.Context, clinicianID string, date time.Time) (LeaveResult, error) {
	return s.mutateLeave(ctx, clinicianID, date, EventLeaveChanged, func() error {
		s.leaves.ToggleFullDayLeave(clinicianID, date)
		return nil
	})
}

func (s *Service) ToggleSlotLeave(ctx context.Context, clinicianID string, date time.Time, slot string) (LeaveResult, error) {
	return s.mutateLeave(ctx, clinicianID, date, EventLeaveChanged, func() error {
		_, err := s.leaves.ToggleSlotLeave(clinicianID, date, slot)
		return err
	})
}

func (s *Service) BlockPeriod(ctx context.Context, clinicianID string, date time.Time, period schedule.Period) (LeaveResult, error) {
	return s.mutateLeave(ctx, clinicianID, date, EventLeaveChanged, func() error {
		_, err := s.leaves.BlockPeriod(clinicianID, date, period)
		return err
	})
}

func (s *Service) ClearLeave(ctx context.Context, clinicianID string, date time.Time) (LeaveResult, error) {
	return s.mutateLeave(ctx, clinicianID, date, EventLeaveChanged, func() error {
		s.leaves.Clear(clinicianID, date)
		return nil
	})
}

// UndoLeave reverts the clinician's last leave change made through this
// Service. With nothing pending it returns schedule.ErrNoPendingUndo and
// changes nothing. A pending undo is dropped, also with ErrNoPendingUndo,
// once the stored entry no longer matches what that change wrote.
func (s *Service) UndoLeave(ctx context.Context, clinicianID string) (LeaveResult, error) {
	s.mu.Lock()
	rec, ok := s.leaves.PendingUndo(clinicianID)
	s.mu.Unlock()
	if !ok {
		return LeaveResult{}, schedule.ErrNoPendingUndo
	}

	return s.mutateLeave(ctx, clinicianID, rec.Date, EventLeaveUndone, func() error {
		pending, ok := s.leaves.PendingUndo(clinicianID)
		if !ok {
			return schedule.ErrNoPendingUndo
		}
		if !pending.Date.Equal(rec.Date) {
			return ErrScheduleBusy
		}
		if last, ok := s.lastLeave[clinicianID]; !ok || !last.Equal(s.leaves.Entry(clinicianID, rec.Date)) {
			// changed elsewhere since
			s.leaves.RestoreUndo(clinicianID, schedule.UndoRecord{}, false)
			delete(s.lastLeave, clinicianID)
			return schedule.ErrNoPendingUndo
		}
		_, err := s.leaves.Undo(clinicianID)
		return err
	})
}

func (s *Service) logEvent(ctx context.Context, appointmentID *uuid.UUID, clinicianID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: appointmentID,
		ClinicianID:   clinicianID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Str("clinician_id", clinicianID).Msg("failed to insert event log")
	}
}
