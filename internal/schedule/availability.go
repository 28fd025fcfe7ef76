package schedule

import (
	"time"

	"github.com/google/uuid"
)

type occupancy interface {
	occupied(clinicianID string, date time.Time, excluding uuid.UUID) map[string]struct{}
}

// Resolver answers which slots are free. It holds no state of its own.
type Resolver struct {
	catalogs *Catalogs
	leaves   *LeaveCalendar
	bookings occupancy
}

func NewResolver(catalogs *Catalogs, leaves *LeaveCalendar, bookings occupancy) *Resolver {
	return &Resolver{catalogs: catalogs, leaves: leaves, bookings: bookings}
}

// AvailableSlots returns the catalog slots on date that are neither on
// leave nor held by a non-cancelled appointment. Pass uuid.Nil to exclude
// nothing, or the id of an appointment being rescheduled so it does not
// block itself. Catalog order is preserved.
func (r *Resolver) AvailableSlots(clinicianID string, date time.Time, excluding uuid.UUID) []TimeSlot {
	taken := r.bookings.occupied(clinicianID, date, excluding)

	out := []TimeSlot{}
	for _, s := range r.catalogs.For(clinicianID).Slots("") {
		if r.leaves.IsBlocked(clinicianID, date, s.Label) {
			continue
		}
		if _, ok := taken[s.Label]; ok {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (r *Resolver) IsAvailable(clinicianID string, date time.Time, label string, excluding uuid.UUID) bool {
	if _, ok := r.catalogs.For(clinicianID).Lookup(label); !ok {
		return false
	}
	if r.leaves.IsBlocked(clinicianID, date, label) {
		return false
	}
	_, taken := r.bookings.occupied(clinicianID, date, excluding)[label]
	return !taken
}
