package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinician-availability/internal/schedule"
)

const uniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Helpers

func scanAppointment(row pgx.Row) (*schedule.Appointment, error) {
	var a schedule.Appointment
	var durationSecs int

	err := row.Scan(
		&a.ID,
		&a.ClinicianID,
		&a.PatientID,
		&a.PatientName,
		&a.Reason,
		&a.Date,
		&a.Slot.Label,
		&a.Slot.Period,
		&durationSecs,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, schedule.ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = schedule.Day(a.Date)
	a.Duration = time.Duration(durationSecs) * time.Second
	return &a, nil
}

// Interface methods

func (r *PgRepository) SaveAppointment(ctx context.Context, a schedule.Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (id, clinician_id, patient_id, patient_name, reason, day,
		                          slot_label, slot_period, duration_secs, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE
		SET day = EXCLUDED.day,
		    slot_label = EXCLUDED.slot_label,
		    slot_period = EXCLUDED.slot_period,
		    duration_secs = EXCLUDED.duration_secs,
		    status = EXCLUDED.status,
		    updated_at = EXCLUDED.updated_at
	`, a.ID, a.ClinicianID, a.PatientID, a.PatientName, a.Reason, schedule.Day(a.Date),
		a.Slot.Label, string(a.Slot.Period), int(a.Duration/time.Second), string(a.Status),
		a.CreatedAt, a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			// another instance holds the slot
			return fmt.Errorf("%w: %s", schedule.ErrSlotUnavailable, pgErr.Detail)
		}
		return fmt.Errorf("upsert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) SaveLeave(ctx context.Context, clinicianID string, date time.Time, e schedule.LeaveEntry) error {
	if e.IsEmpty() {
		_, err := r.pool.Exec(ctx, `
			DELETE FROM leave_entries
			WHERE clinician_id = $1 AND day = $2
		`, clinicianID, schedule.Day(date))
		if err != nil {
			return fmt.Errorf("delete leave entry: %w", err)
		}
		return nil
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO leave_entries (clinician_id, day, full_day, blocked, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (clinician_id, day) DO UPDATE
		SET full_day = EXCLUDED.full_day,
		    blocked = EXCLUDED.blocked,
		    updated_at = now()
	`, clinicianID, schedule.Day(date), e.FullDay, e.Blocked())
	if err != nil {
		return fmt.Errorf("upsert leave entry: %w", err)
	}
	return nil
}

const appointmentColumns = `
	id, clinician_id, patient_id, patient_name, reason, day,
	slot_label, slot_period, duration_secs, status, created_at, updated_at`

func queryAppointments(ctx context.Context, q querier, where string, args ...any) ([]schedule.Appointment, error) {
	rows, err := q.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	var result []schedule.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func queryLeaves(ctx context.Context, q querier, where string, args ...any) ([]LeaveRecord, error) {
	rows, err := q.Query(ctx, `
		SELECT clinician_id, day, full_day, blocked
		FROM leave_entries `+where+`
		ORDER BY clinician_id, day
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query leave entries: %w", err)
	}
	defer rows.Close()

	var result []LeaveRecord
	for rows.Next() {
		var (
			rec     LeaveRecord
			fullDay bool
			blocked []string
		)
		if err := rows.Scan(&rec.ClinicianID, &rec.Date, &fullDay, &blocked); err != nil {
			return nil, err
		}
		rec.Date = schedule.Day(rec.Date)
		rec.Entry = schedule.NewLeaveEntry(fullDay, blocked...)
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetAppointment(ctx context.Context, id uuid.UUID) (schedule.Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, schedule.ErrAppointmentNotFound) {
			return schedule.Appointment{}, err
		}
		return schedule.Appointment{}, fmt.Errorf("get appointment: %w", err)
	}
	return *a, nil
}

// LoadSchedule reads both tables in one repeatable-read transaction so the
// leave and the appointments describe the same moment.
func (r *PgRepository) LoadSchedule(ctx context.Context, clinicianID string, from, to time.Time) (ScheduleSnapshot, error) {
	lo, hi := schedule.Day(from), schedule.Day(to)
	snap := ScheduleSnapshot{ClinicianID: clinicianID, From: lo, To: hi}

	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		appts, err := queryAppointments(ctx, tx, `WHERE clinician_id = $1 AND day BETWEEN $2 AND $3`, clinicianID, lo, hi)
		if err != nil {
			return err
		}
		leaves, err := queryLeaves(ctx, tx, `WHERE clinician_id = $1 AND day BETWEEN $2 AND $3`, clinicianID, lo, hi)
		if err != nil {
			return err
		}
		snap.Appointments = appts
		snap.Leaves = leaves
		return nil
	})
	if err != nil {
		return ScheduleSnapshot{}, fmt.Errorf("load schedule: %w", err)
	}
	return snap, nil
}

func (r *PgRepository) LoadPatientAppointments(ctx context.Context, patientID string) ([]schedule.Appointment, error) {
	return queryAppointments(ctx, r.pool, `WHERE patient_id = $1`, patientID)
}

func (r *PgRepository) LoadUpcoming(ctx context.Context, day time.Time) ([]schedule.Appointment, error) {
	return queryAppointments(ctx, r.pool, `WHERE status = $1 AND day <= $2`, string(schedule.StatusUpcoming), schedule.Day(day))
}

func (r *PgRepository) LoadAppointments(ctx context.Context) ([]schedule.Appointment, error) {
	return queryAppointments(ctx, r.pool, "")
}

func (r *PgRepository) LoadLeaves(ctx context.Context) ([]LeaveRecord, error) {
	return queryLeaves(ctx, r.pool, "")
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	var clinicianID *string
	if ev.ClinicianID != "" {
		clinicianID = &ev.ClinicianID
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, clinician_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.EventType, ev.AppointmentID, clinicianID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
