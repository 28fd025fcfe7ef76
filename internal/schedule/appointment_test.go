package schedule

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var may2 = time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)

type fixture struct {
	leaves *LeaveCalendar
	book   *AppointmentBook
}

func newFixture() fixture {
	cs := NewCatalogs(DefaultCatalog())
	leaves := NewLeaveCalendar(cs)
	return fixture{leaves: leaves, book: NewAppointmentBook(cs, leaves)}
}

func (f fixture) available(clinicianID string, date time.Time) []string {
	return labels(f.book.Resolver().AvailableSlots(clinicianID, date, uuid.Nil))
}

func TestAvailableSlots_FullDayLeave(t *testing.T) {
	f := newFixture()

	f.leaves.ToggleFullDayLeave("C1", may1)
	assert.Empty(t, f.available("C1", may1))

	f.leaves.ToggleFullDayLeave("C1", may1)
	assert.Equal(t, labels(DefaultCatalog().Slots("")), f.available("C1", may1))
	assert.Len(t, f.available("C1", may1), 12)
}

func TestAvailableSlots_ExcludesLeaveBlockedSlots(t *testing.T) {
	f := newFixture()

	_, err := f.leaves.BlockPeriod("C1", may1, PeriodAfternoon)
	require.NoError(t, err)
	_, err = f.leaves.ToggleSlotLeave("C1", may1, "10:30")
	require.NoError(t, err)

	got := f.available("C1", may1)
	assert.Equal(t, []string{"09:00", "09:30", "10:00", "11:00", "11:30"}, got)
	for _, l := range f.leaves.Entry("C1", may1).Blocked() {
		assert.NotContains(t, got, l)
	}

	// other clinicians and dates are unaffected
	assert.Len(t, f.available("C2", may1), 12)
	assert.Len(t, f.available("C1", may2), 12)
}

func TestBook(t *testing.T) {
	f := newFixture()

	a, err := f.book.Book(BookRequest{
		ClinicianID: "C1",
		PatientID:   "P1",
		PatientName: "Vishal Ara",
		Reason:      "High Fever",
		Date:        may2,
		Slot:        "15:30",
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, StatusUpcoming, a.Status)
	assert.Equal(t, PeriodAfternoon, a.Slot.Period)
	assert.Equal(t, 30*time.Minute, a.Duration)
	assert.Equal(t, time.Date(2025, 5, 2, 15, 30, 0, 0, time.UTC), a.StartsAt(time.UTC))

	got := f.available("C1", may2)
	assert.NotContains(t, got, "15:30")
	assert.Len(t, got, 11)

	on := f.book.AppointmentsOn("C1", may2)
	require.Len(t, on, 1)
	assert.Equal(t, a.ID, on[0].ID)
	assert.Equal(t, "15:30", on[0].Slot.Label)
}

func TestBook_SameSlotTwice(t *testing.T) {
	f := newFixture()
	req := BookRequest{ClinicianID: "C1", PatientID: "P1", Date: may2, Slot: "16:00"}

	_, err := f.book.Book(req)
	require.NoError(t, err)

	req.PatientID = "P2"
	_, err = f.book.Book(req)
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	req.ClinicianID = "C2"
	_, err = f.book.Book(req)
	assert.NoError(t, err, "another clinician's slot is independent")
}

func TestBook_Unavailable(t *testing.T) {
	f := newFixture()
	_, err := f.leaves.ToggleSlotLeave("C1", may2, "09:00")
	require.NoError(t, err)

	_, err = f.book.Book(BookRequest{ClinicianID: "C1", PatientID: "P1", Date: may2, Slot: "09:00"})
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	_, err = f.book.Book(BookRequest{ClinicianID: "C1", PatientID: "P1", Date: may2, Slot: "13:00"})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestCancel(t *testing.T) {
	f := newFixture()
	a, err := f.book.Book(BookRequest{ClinicianID: "C1", PatientID: "P1", Date: may2, Slot: "09:00"})
	require.NoError(t, err)

	c, err := f.book.Cancel(a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, c.Status)
	assert.Contains(t, f.available("C1", may2), "09:00")
	assert.Empty(t, f.book.AppointmentsOn("C1", may2))

	_, err = f.book.Cancel(a.ID)
	assert.NoError(t, err, "cancel is idempotent")

	_, err = f.book.Cancel(uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	// history is retained
	assert.Len(t, f.book.ByPatient("P1"), 1)
}

func TestComplete(t *testing.T) {
	f := newFixture()
	a, err := f.book.Book(BookRequest{ClinicianID: "C1", PatientID: "P1", Date: may2, Slot: "09:00"})
	require.NoError(t, err)

	done, err := f.book.Complete(a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)

	_, err = f.book.Complete(a.ID)
	assert.NoError(t, err)

	b, err := f.book.Book(BookRequest{ClinicianID: "C1", PatientID: "P1", Date: may2, Slot: "09:30"})
	require.NoError(t, err)
	_, err = f.book.Cancel(b.ID)
	require.NoError(t, err)
	_, err = f.book.Complete(b.ID)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, err = f.book.Complete(uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestReschedule(t *testing.T) {
	f := newFixture()
	a, err := f.book.Book(BookRequest{ClinicianID: "C1", PatientID: "P1", PatientName: "Kanav", Date: may1, Slot: "10:00"})
	require.NoError(t, err)

	moved, err := f.book.Reschedule(a.ID, may2, "16:30")
	require.NoError(t, err)
	assert.Equal(t, a.ID, moved.ID)
	assert.Equal(t, "P1", moved.PatientID)
	assert.Equal(t, "Kanav", moved.PatientName)
	assert.Equal(t, may2, moved.Date)
	assert.Equal(t, "16:30", moved.Slot.Label)

	assert.Contains(t, f.available("C1", may1), "10:00")
	assert.NotContains(t, f.available("C1", may2), "16:30")
}

func TestReschedule_SelfExclusion(t *testing.T) {
	f := newFixture()
	a, err := f.book.Book(BookRequest{ClinicianID: "C1", PatientID: "P1", Date: may1, Slot: "10:00"})
	require.NoError(t, err)

	slots := labels(f.book.Resolver().AvailableSlots("C1", may1, a.ID))
	assert.Contains(t, slots, "10:00")

	_, err = f.book.Reschedule(a.ID, may1, "10:00")
	assert.NoError(t, err)
}

func TestReschedule_Failures(t *testing.T) {
	f := newFixture()
	a, err := f.book.Book(BookRequest{ClinicianID: "C1", PatientID: "P1", Date: may1, Slot: "10:00"})
	require.NoError(t, err)
	_, err = f.book.Book(BookRequest{ClinicianID: "C1", PatientID: "P2", Date: may1, Slot: "11:00"})
	require.NoError(t, err)

	_, err = f.book.Reschedule(uuid.New(), may1, "09:00")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	_, err = f.book.Reschedule(a.ID, may1, "11:00")
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	f.leaves.ToggleFullDayLeave("C1", may2)
	_, err = f.book.Reschedule(a.ID, may2, "09:00")
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	got, err := f.book.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, may1, got.Date, "failed reschedule leaves the appointment in place")
	assert.Equal(t, "10:00", got.Slot.Label)

	_, err = f.book.Cancel(a.ID)
	require.NoError(t, err)
	_, err = f.book.Reschedule(a.ID, may1, "09:00")
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestAppointmentsOn_OrderedBySlot(t *testing.T) {
	f := newFixture()
	for _, s := range []string{"16:00", "09:30", "11:00"} {
		_, err := f.book.Book(BookRequest{ClinicianID: "C1", PatientID: "P1", Date: may1, Slot: s})
		require.NoError(t, err)
	}

	on := f.book.AppointmentsOn("C1", may1)
	got := make([]string, 0, len(on))
	for _, a := range on {
		got = append(got, a.Slot.Label)
	}
	assert.Equal(t, []string{"09:30", "11:00", "16:00"}, got)
}

func TestByPatient_InsertionOrder(t *testing.T) {
	f := newFixture()
	first, err := f.book.Book(BookRequest{ClinicianID: "C1", PatientID: "P1", Date: may2, Slot: "17:00"})
	require.NoError(t, err)
	second, err := f.book.Book(BookRequest{ClinicianID: "C2", PatientID: "P1", Date: may1, Slot: "09:00"})
	require.NoError(t, err)
	_, err = f.book.Book(BookRequest{ClinicianID: "C1", PatientID: "P2", Date: may1, Slot: "09:00"})
	require.NoError(t, err)
	_, err = f.book.Cancel(first.ID)
	require.NoError(t, err)

	got := f.book.ByPatient("P1")
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, StatusCancelled, got[0].Status)
	assert.Equal(t, second.ID, got[1].ID)
}

func TestBetweenAndDates(t *testing.T) {
	f := newFixture()
	a, err := f.book.Book(BookRequest{ClinicianID: "C1", PatientID: "P1", Date: may2, Slot: "09:00"})
	require.NoError(t, err)
	_, err = f.book.Book(BookRequest{ClinicianID: "C1", PatientID: "P2", Date: may1, Slot: "15:00"})
	require.NoError(t, err)
	c, err := f.book.Book(BookRequest{ClinicianID: "C1", PatientID: "P3", Date: may1.AddDate(0, 0, 5), Slot: "15:00"})
	require.NoError(t, err)
	_, err = f.book.Cancel(c.ID)
	require.NoError(t, err)

	between := f.book.Between("C1", may1, may2)
	require.Len(t, between, 2)
	assert.Equal(t, a.ID, between[1].ID)

	dates := f.book.DatesWithAppointments("C1", may1, may1.AddDate(0, 0, 10))
	assert.Equal(t, []time.Time{may1, may2}, dates)
}

func TestDueForCompletion(t *testing.T) {
	f := newFixture()
	a, err := f.book.Book(BookRequest{ClinicianID: "C1", PatientID: "P1", Date: may1, Slot: "09:00"})
	require.NoError(t, err)
	_, err = f.book.Book(BookRequest{ClinicianID: "C1", PatientID: "P1", Date: may1, Slot: "15:00"})
	require.NoError(t, err)

	due := f.book.DueForCompletion(time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC))
	require.Len(t, due, 1)
	assert.Equal(t, a.ID, due[0].ID)
}

func TestDueForCompletion_ClinicLocation(t *testing.T) {
	clinic := time.FixedZone("UTC-4", -4*60*60)

	f := newFixture()
	f.book.SetLocation(clinic)
	a, err := f.book.Book(BookRequest{ClinicianID: "C1", PatientID: "P1", PatientName: "Vishal Ara", Date: may2, Slot: "15:30"})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 5, 2, 19, 30, 0, 0, time.UTC), a.StartsAt(clinic).UTC())

	// 13:00 at the clinic is 17:00 UTC, still before a 15:30 local slot
	assert.Empty(t, f.book.DueForCompletion(time.Date(2025, 5, 2, 13, 0, 0, 0, clinic)))
	assert.Empty(t, f.book.DueForCompletion(time.Date(2025, 5, 2, 15, 45, 0, 0, clinic)))

	due := f.book.DueForCompletion(time.Date(2025, 5, 2, 16, 5, 0, 0, clinic))
	require.Len(t, due, 1)
	assert.Equal(t, a.ID, due[0].ID)
}

func TestRestoreAndDiscard(t *testing.T) {
	f := newFixture()
	a, err := f.book.Book(BookRequest{ClinicianID: "C1", PatientID: "P1", Date: may1, Slot: "09:00"})
	require.NoError(t, err)

	f.book.Discard(a.ID)
	_, err = f.book.Get(a.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.Contains(t, f.available("C1", may1), "09:00")

	stored := Appointment{
		ID:          uuid.New(),
		ClinicianID: "C1",
		PatientID:   "P9",
		Date:        may1.Add(9 * time.Hour),
		Slot:        TimeSlot{Label: "11:30", Period: PeriodMorning},
		Duration:    30 * time.Minute,
		Status:      StatusUpcoming,
	}
	f.book.Restore(stored)
	assert.NotContains(t, f.available("C1", may1), "11:30")

	stored.Status = StatusCancelled
	f.book.Restore(stored)
	assert.Contains(t, f.available("C1", may1), "11:30")
	assert.Len(t, f.book.ByPatient("P9"), 1)
}
