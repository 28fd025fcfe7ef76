package scheduling_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinician-availability/internal/schedule"
	"github.com/hackgods/clinician-availability/internal/scheduling"
)

func memAppointment(clinicianID string, date time.Time, slot string) schedule.Appointment {
	return schedule.Appointment{
		ID:          uuid.New(),
		ClinicianID: clinicianID,
		PatientID:   "P1",
		Date:        date,
		Slot:        schedule.TimeSlot{Label: slot, Period: schedule.PeriodMorning},
		Duration:    30 * time.Minute,
		Status:      schedule.StatusUpcoming,
	}
}

func TestMemoryRepository_ActiveSlotIsUnique(t *testing.T) {
	repo := scheduling.NewMemoryRepository()
	ctx := context.Background()

	first := memAppointment("C1", may1, "09:00")
	require.NoError(t, repo.SaveAppointment(ctx, first))
	require.NoError(t, repo.SaveAppointment(ctx, first), "saving the same id again is an update")

	second := memAppointment("C1", may1, "09:00")
	assert.ErrorIs(t, repo.SaveAppointment(ctx, second), schedule.ErrSlotUnavailable)
	require.NoError(t, repo.SaveAppointment(ctx, memAppointment("C2", may1, "09:00")))

	first.Status = schedule.StatusCancelled
	require.NoError(t, repo.SaveAppointment(ctx, first))
	require.NoError(t, repo.SaveAppointment(ctx, second))
}

func TestMemoryRepository_LoadSchedule(t *testing.T) {
	repo := scheduling.NewMemoryRepository()
	ctx := context.Background()

	inRange := memAppointment("C1", may2, "10:00")
	require.NoError(t, repo.SaveAppointment(ctx, inRange))
	require.NoError(t, repo.SaveAppointment(ctx, memAppointment("C1", may2.AddDate(0, 0, 1), "10:00")))
	require.NoError(t, repo.SaveAppointment(ctx, memAppointment("C2", may2, "10:00")))
	require.NoError(t, repo.SaveLeave(ctx, "C1", may2, schedule.NewLeaveEntry(false, "11:00")))
	require.NoError(t, repo.SaveLeave(ctx, "C1", may1, schedule.NewLeaveEntry(true)))

	snap, err := repo.LoadSchedule(ctx, "C1", may1, may2.Add(20*time.Hour))
	require.NoError(t, err)
	require.Len(t, snap.Appointments, 1)
	assert.Equal(t, inRange.ID, snap.Appointments[0].ID)
	require.Len(t, snap.Leaves, 2)
	assert.Equal(t, may1, snap.Leaves[0].Date)
	assert.Equal(t, []string{"11:00"}, snap.Leaves[1].Entry.Blocked())

	got, err := repo.GetAppointment(ctx, inRange.ID)
	require.NoError(t, err)
	assert.Equal(t, "10:00", got.Slot.Label)
	_, err = repo.GetAppointment(ctx, uuid.New())
	assert.ErrorIs(t, err, schedule.ErrAppointmentNotFound)
}

func TestMemoryRepository_LoadUpcoming(t *testing.T) {
	repo := scheduling.NewMemoryRepository()
	ctx := context.Background()

	due := memAppointment("C1", may1, "09:00")
	later := memAppointment("C1", may2, "09:00")
	done := memAppointment("C1", may1, "09:30")
	done.Status = schedule.StatusCompleted
	for _, a := range []schedule.Appointment{due, later, done} {
		require.NoError(t, repo.SaveAppointment(ctx, a))
	}

	upcoming, err := repo.LoadUpcoming(ctx, may1)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, due.ID, upcoming[0].ID)
}
