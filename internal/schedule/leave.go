package schedule

import (
	"fmt"
	"sort"
	"time"
)

type LeaveState string

const (
	LeaveOpen             LeaveState = "open"
	LeavePartiallyBlocked LeaveState = "partially_blocked"
	LeaveFullyBlocked     LeaveState = "fully_blocked"
)

// LeaveEntry is a clinician's leave on one date. FullDay blocks every slot
// regardless of the contents of the blocked set.
type LeaveEntry struct {
	FullDay bool
	blocked map[string]struct{}
}

// NewLeaveEntry builds an entry from a full day flag and blocked slot labels.
func NewLeaveEntry(fullDay bool, labels ...string) LeaveEntry {
	e := LeaveEntry{FullDay: fullDay, blocked: make(map[string]struct{}, len(labels))}
	for _, l := range labels {
		e.blocked[l] = struct{}{}
	}
	return e
}

// Blocked returns the individually blocked slot labels in time order.
func (e LeaveEntry) Blocked() []string {
	out := make([]string, 0, len(e.blocked))
	for l := range e.blocked {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func (e LeaveEntry) Has(label string) bool {
	_, ok := e.blocked[label]
	return ok
}

// IsEmpty reports whether the entry carries no leave at all.
func (e LeaveEntry) IsEmpty() bool {
	return !e.FullDay && len(e.blocked) == 0
}

// Equal reports whether both entries carry the same flag and blocked set.
func (e LeaveEntry) Equal(o LeaveEntry) bool {
	if e.FullDay != o.FullDay || len(e.blocked) != len(o.blocked) {
		return false
	}
	for l := range e.blocked {
		if _, ok := o.blocked[l]; !ok {
			return false
		}
	}
	return true
}

func (e LeaveEntry) clone() LeaveEntry {
	c := LeaveEntry{FullDay: e.FullDay, blocked: make(map[string]struct{}, len(e.blocked))}
	for l := range e.blocked {
		c.blocked[l] = struct{}{}
	}
	return c
}

// UndoRecord is the state of one date captured right before the most
// recent leave change.
type UndoRecord struct {
	Date     time.Time
	Previous LeaveEntry
}

// LeaveDay summarises a date that carries leave.
type LeaveDay struct {
	Date    time.Time
	FullDay bool
	Blocked []string
	State   LeaveState
}

// LeaveCalendar tracks per clinician, per date leave with a single level
// of undo. One undo record is kept per clinician rather than one for the
// whole calendar, so a change to one clinician never discards another
// clinician's pending undo.
type LeaveCalendar struct {
	catalogs *Catalogs
	entries  map[string]map[string]LeaveEntry // clinician -> day -> entry
	undo     map[string]UndoRecord
}

func NewLeaveCalendar(catalogs *Catalogs) *LeaveCalendar {
	return &LeaveCalendar{
		catalogs: catalogs,
		entries:  make(map[string]map[string]LeaveEntry),
		undo:     make(map[string]UndoRecord),
	}
}

// Entry returns a copy of the leave on date. An absent entry is empty.
func (l *LeaveCalendar) Entry(clinicianID string, date time.Time) LeaveEntry {
	e, ok := l.entries[clinicianID][dayKey(date)]
	if !ok {
		return NewLeaveEntry(false)
	}
	return e.clone()
}

func (l *LeaveCalendar) put(clinicianID string, date time.Time, e LeaveEntry) {
	days := l.entries[clinicianID]
	if e.IsEmpty() {
		if days != nil {
			delete(days, dayKey(date))
		}
		return
	}
	if days == nil {
		days = make(map[string]LeaveEntry)
		l.entries[clinicianID] = days
	}
	days[dayKey(date)] = e
}

func (l *LeaveCalendar) capture(clinicianID string, date time.Time) LeaveEntry {
	prev := l.Entry(clinicianID, date)
	l.undo[clinicianID] = UndoRecord{Date: Day(date), Previous: prev.clone()}
	return prev
}

// ToggleFullDayLeave sets full day leave, or lifts it when already set.
// Lifting it reveals whatever slots were blocked individually before,
// instead of clearing the whole date, so toggling twice gives back the
// exact prior entry. Use Clear to drop everything.
func (l *LeaveCalendar) ToggleFullDayLeave(clinicianID string, date time.Time) LeaveEntry {
	e := l.capture(clinicianID, date)
	e.FullDay = !e.FullDay
	l.put(clinicianID, date, e)
	return e.clone()
}

// ToggleSlotLeave flips one slot. While full day leave is active the toggle
// is ignored, though it still replaces the pending undo record.
func (l *LeaveCalendar) ToggleSlotLeave(clinicianID string, date time.Time, label string) (LeaveEntry, error) {
	if _, ok := l.catalogs.For(clinicianID).Lookup(label); !ok {
		return LeaveEntry{}, fmt.Errorf("%w: %q", ErrUnknownSlot, label)
	}

	e := l.capture(clinicianID, date)
	if e.FullDay {
		return e, nil
	}
	if e.Has(label) {
		delete(e.blocked, label)
	} else {
		e.blocked[label] = struct{}{}
	}
	l.put(clinicianID, date, e)
	return e.clone(), nil
}

// BlockPeriod adds every slot of period to the blocked set.
func (l *LeaveCalendar) BlockPeriod(clinicianID string, date time.Time, period Period) (LeaveEntry, error) {
	if period != PeriodMorning && period != PeriodAfternoon {
		return LeaveEntry{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}

	e := l.capture(clinicianID, date)
	for _, s := range l.catalogs.For(clinicianID).Slots(period) {
		e.blocked[s.Label] = struct{}{}
	}
	l.put(clinicianID, date, e)
	return e.clone(), nil
}

// Clear removes all leave on date.
func (l *LeaveCalendar) Clear(clinicianID string, date time.Time) {
	l.capture(clinicianID, date)
	l.put(clinicianID, date, NewLeaveEntry(false))
}

// Undo restores the date touched by the last leave change and consumes the
// record. It returns ErrNoPendingUndo when there is nothing to restore.
func (l *LeaveCalendar) Undo(clinicianID string) (UndoRecord, error) {
	rec, ok := l.undo[clinicianID]
	if !ok {
		return UndoRecord{}, ErrNoPendingUndo
	}
	delete(l.undo, clinicianID)
	l.put(clinicianID, rec.Date, rec.Previous.clone())
	return rec, nil
}

// PendingUndo returns the clinician's pending undo record, if any.
func (l *LeaveCalendar) PendingUndo(clinicianID string) (UndoRecord, bool) {
	rec, ok := l.undo[clinicianID]
	if !ok {
		return UndoRecord{}, false
	}
	return UndoRecord{Date: rec.Date, Previous: rec.Previous.clone()}, true
}

// RestoreUndo reinstates (or, with ok false, drops) a pending undo record.
func (l *LeaveCalendar) RestoreUndo(clinicianID string, rec UndoRecord, ok bool) {
	if !ok {
		delete(l.undo, clinicianID)
		return
	}
	l.undo[clinicianID] = UndoRecord{Date: Day(rec.Date), Previous: rec.Previous.clone()}
}

// Restore overwrites the entry for date without touching undo state.
func (l *LeaveCalendar) Restore(clinicianID string, date time.Time, e LeaveEntry) {
	l.put(clinicianID, date, e.clone())
}

func (l *LeaveCalendar) IsBlocked(clinicianID string, date time.Time, label string) bool {
	e, ok := l.entries[clinicianID][dayKey(date)]
	if !ok {
		return false
	}
	return e.FullDay || e.Has(label)
}

// State classifies date. Blocking every slot one by one reports fully
// blocked without setting the full day flag.
func (l *LeaveCalendar) State(clinicianID string, date time.Time) LeaveState {
	return l.stateOf(clinicianID, l.Entry(clinicianID, date))
}

func (l *LeaveCalendar) stateOf(clinicianID string, e LeaveEntry) LeaveState {
	if e.FullDay {
		return LeaveFullyBlocked
	}
	cat := l.catalogs.For(clinicianID)
	blocked := 0
	for _, s := range cat.Slots("") {
		if e.Has(s.Label) {
			blocked++
		}
	}
	switch {
	case blocked == 0:
		return LeaveOpen
	case blocked == cat.Len():
		return LeaveFullyBlocked
	default:
		return LeavePartiallyBlocked
	}
}

// LeaveDays lists the dates in [from, to] that carry leave.
func (l *LeaveCalendar) LeaveDays(clinicianID string, from, to time.Time) []LeaveDay {
	var out []LeaveDay
	eachDay(from, to, func(d time.Time) {
		e, ok := l.entries[clinicianID][dayKey(d)]
		if !ok {
			return
		}
		out = append(out, LeaveDay{
			Date:    d,
			FullDay: e.FullDay,
			Blocked: e.Blocked(),
			State:   l.stateOf(clinicianID, e),
		})
	})
	return out
}
