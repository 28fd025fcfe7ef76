//go:build integration

package scheduling_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinician-availability/internal/db"
	"github.com/hackgods/clinician-availability/internal/schedule"
	"github.com/hackgods/clinician-availability/internal/scheduling"
)

// newPgRepository connects to TEST_POSTGRES_DSN and returns a clinician id
// unique to this test. Rows for that clinician are removed afterwards.
func newPgRepository(t *testing.T) (*scheduling.PgRepository, string) {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, db.EnsureSchema(ctx, pool))

	clinicianID := "T-" + uuid.NewString()
	t.Cleanup(func() {
		cleanup(pool, clinicianID)
		pool.Close()
	})

	return scheduling.NewPgRepository(pool), clinicianID
}

func cleanup(pool *pgxpool.Pool, clinicianID string) {
	ctx := context.Background()
	_, _ = pool.Exec(ctx, `DELETE FROM appointments WHERE clinician_id = $1`, clinicianID)
	_, _ = pool.Exec(ctx, `DELETE FROM leave_entries WHERE clinician_id = $1`, clinicianID)
	_, _ = pool.Exec(ctx, `DELETE FROM event_logs WHERE clinician_id = $1`, clinicianID)
}

func pgAppointment(clinicianID, slot string, status schedule.AppointmentStatus) schedule.Appointment {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return schedule.Appointment{
		ID:          uuid.New(),
		ClinicianID: clinicianID,
		PatientID:   "P1",
		PatientName: "Vishal Ara",
		Reason:      "Follow-up",
		Date:        may1,
		Slot:        schedule.TimeSlot{Label: slot, Period: schedule.PeriodMorning},
		Duration:    30 * time.Minute,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestPgRepository_ActiveSlotIsUnique(t *testing.T) {
	repo, clinicianID := newPgRepository(t)
	ctx := context.Background()

	first := pgAppointment(clinicianID, "09:00", schedule.StatusUpcoming)
	require.NoError(t, repo.SaveAppointment(ctx, first))

	second := pgAppointment(clinicianID, "09:00", schedule.StatusUpcoming)
	err := repo.SaveAppointment(ctx, second)
	assert.ErrorIs(t, err, schedule.ErrSlotUnavailable)

	// a cancelled booking frees the slot
	first.Status = schedule.StatusCancelled
	require.NoError(t, repo.SaveAppointment(ctx, first))
	require.NoError(t, repo.SaveAppointment(ctx, second))

	got, err := repo.GetAppointment(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, may1, got.Date)
	assert.Equal(t, "09:00", got.Slot.Label)
	assert.Equal(t, 30*time.Minute, got.Duration)

	_, err = repo.GetAppointment(ctx, uuid.New())
	assert.ErrorIs(t, err, schedule.ErrAppointmentNotFound)
}

func TestPgRepository_LeaveRoundTrip(t *testing.T) {
	repo, clinicianID := newPgRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveLeave(ctx, clinicianID, may1, schedule.NewLeaveEntry(true, "09:00", "16:30")))
	require.NoError(t, repo.SaveLeave(ctx, clinicianID, may2, schedule.NewLeaveEntry(false, "10:00")))

	snap, err := repo.LoadSchedule(ctx, clinicianID, may1, may2)
	require.NoError(t, err)
	require.Len(t, snap.Leaves, 2)
	assert.Equal(t, may1, snap.Leaves[0].Date)
	assert.True(t, snap.Leaves[0].Entry.Equal(schedule.NewLeaveEntry(true, "09:00", "16:30")), "full day keeps the blocked set")
	assert.True(t, snap.Leaves[1].Entry.Equal(schedule.NewLeaveEntry(false, "10:00")))

	require.NoError(t, repo.SaveLeave(ctx, clinicianID, may2, schedule.NewLeaveEntry(false)))

	snap, err = repo.LoadSchedule(ctx, clinicianID, may1, may2)
	require.NoError(t, err)
	require.Len(t, snap.Leaves, 1, "an empty entry removes the row")
	assert.Equal(t, may1, snap.Leaves[0].Date)
}

func TestPgRepository_ServiceReadsThrough(t *testing.T) {
	repo, clinicianID := newPgRepository(t)
	ctx := context.Background()

	a := newService(repo)
	b := newService(repo)

	_, err := a.ToggleFullDayLeave(ctx, clinicianID, may1)
	require.NoError(t, err)

	free, err := b.AvailableSlots(ctx, clinicianID, may1, uuid.Nil)
	require.NoError(t, err)
	assert.Empty(t, free)

	booked, err := a.Book(ctx, schedule.BookRequest{ClinicianID: clinicianID, PatientID: "P1", Date: may2, Slot: "09:00"})
	require.NoError(t, err)

	upcoming, err := repo.LoadUpcoming(ctx, may2)
	require.NoError(t, err)
	var ids []uuid.UUID
	for _, u := range upcoming {
		ids = append(ids, u.ID)
	}
	assert.Contains(t, ids, booked.ID)
}
