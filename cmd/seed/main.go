package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinician-availability/internal/config"
	"github.com/hackgods/clinician-availability/internal/db"
	"github.com/hackgods/clinician-availability/internal/logging"
	redisclient "github.com/hackgods/clinician-availability/internal/redis"
	"github.com/hackgods/clinician-availability/internal/schedule"
	"github.com/hackgods/clinician-availability/internal/scheduling"
)

var reasons = []string{
	"High Fever",
	"Follow-up",
	"Skin Rash",
	"Back Pain",
	"Routine Checkup",
	"Migraine",
	"Blood Test Review",
	"Allergy Consultation",
	"Vaccination",
	"Sore Throat",
}

type seedOptions struct {
	dsn        string
	clinicians int
	patients   int
	days       int
	start      string
	leaveRatio float64
	fillRatio  float64
	seed       int64
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	logging.Init("seed", cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd(cfg).ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
}

func rootCmd(cfg config.Config) *cobra.Command {
	opts := seedOptions{dsn: cfg.PostgresDSN}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill Postgres with clinicians, leave and appointments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.dsn, "dsn", opts.dsn, "Postgres DSN (defaults to POSTGRES_DSN)")
	cmd.Flags().IntVar(&opts.clinicians, "clinicians", 20, "Number of clinicians")
	cmd.Flags().IntVar(&opts.patients, "patients", 500, "Number of distinct patients")
	cmd.Flags().IntVar(&opts.days, "days", 14, "Number of days to fill")
	cmd.Flags().StringVar(&opts.start, "start", "", "First day to fill, YYYY-MM-DD (defaults to today)")
	cmd.Flags().Float64Var(&opts.leaveRatio, "leave-ratio", 0.1, "Chance that a clinician takes some leave on a day")
	cmd.Flags().Float64Var(&opts.fillRatio, "fill-ratio", 0.4, "Chance that an open slot gets booked")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "Random seed (0 picks one from the clock)")

	return cmd
}

type patient struct {
	id   string
	name string
}

func run(ctx context.Context, cfg config.Config, opts seedOptions) error {
	if opts.dsn == "" {
		return errors.New("a Postgres DSN is required (--dsn or POSTGRES_DSN)")
	}
	if opts.clinicians <= 0 || opts.patients <= 0 || opts.days <= 0 {
		return errors.New("--clinicians, --patients and --days must be positive")
	}

	start := schedule.Day(time.Now())
	if opts.start != "" {
		d, err := schedule.ParseDate(opts.start)
		if err != nil {
			return err
		}
		start = d
	}

	seed := opts.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(connCtx, opts.dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(connCtx, pool); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	catalog, err := schedule.GenerateCatalog(cfg.MorningStart, cfg.AfternoonStart, cfg.SlotsPerPeriod, cfg.SlotStep)
	if err != nil {
		return err
	}

	svc := scheduling.NewService(
		schedule.NewCatalogs(catalog),
		scheduling.NewPgRepository(pool),
		redisclient.NewLocalDayLocker(),
	)
	svc.SetLocation(cfg.ClinicLocation)

	patients := make([]patient, opts.patients)
	for i := range patients {
		patients[i] = patient{id: fmt.Sprintf("P%05d", i+1), name: gofakeit.Name()}
	}

	log.Info().
		Int("clinicians", opts.clinicians).
		Int("patients", opts.patients).
		Int("days", opts.days).
		Str("start", schedule.FormatDate(start)).
		Int64("seed", seed).
		Msg("seed starting")

	var booked, leaveDays int
	for c := 1; c <= opts.clinicians; c++ {
		clinicianID := fmt.Sprintf("C%03d", c)

		n, leave, err := seedClinician(ctx, svc, clinicianID, start, opts, patients)
		if err != nil {
			return err
		}
		booked += n
		leaveDays += leave

		log.Info().Str("clinician_id", clinicianID).Int("booked", n).Int("leave_days", leave).Msg("clinician seeded")
	}

	log.Info().Int("appointments", booked).Int("leave_days", leaveDays).Msg("seed complete")
	return nil
}

// seedClinician fills opts.days days from start for one clinician and
// reports how many appointments and leave days it added for that clinician.
func seedClinician(ctx context.Context, svc *scheduling.Service, clinicianID string, start time.Time, opts seedOptions, patients []patient) (booked, leaveDays int, err error) {
	for i := 0; i < opts.days; i++ {
		date := start.AddDate(0, 0, i)

		if gofakeit.Float64Range(0, 1) < opts.leaveRatio {
			if err := seedLeave(ctx, svc, clinicianID, date); err != nil {
				return booked, leaveDays, fmt.Errorf("seed leave %s %s: %w", clinicianID, schedule.FormatDate(date), err)
			}
			leaveDays++
		}

		slots, err := svc.AvailableSlots(ctx, clinicianID, date, uuid.Nil)
		if err != nil {
			return booked, leaveDays, fmt.Errorf("availability %s %s: %w", clinicianID, schedule.FormatDate(date), err)
		}
		for _, slot := range slots {
			if gofakeit.Float64Range(0, 1) >= opts.fillRatio {
				continue
			}
			p := patients[gofakeit.Number(0, len(patients)-1)]
			_, err := svc.Book(ctx, schedule.BookRequest{
				ClinicianID: clinicianID,
				PatientID:   p.id,
				PatientName: p.name,
				Reason:      gofakeit.RandomString(reasons),
				Date:        date,
				Slot:        slot.Label,
			})
			if errors.Is(err, schedule.ErrSlotUnavailable) {
				// already taken by an earlier run
				continue
			}
			if err != nil {
				return booked, leaveDays, fmt.Errorf("book %s %s %s: %w", clinicianID, schedule.FormatDate(date), slot.Label, err)
			}
			booked++
		}
	}
	return booked, leaveDays, nil
}

// seedLeave applies one of the three kinds of leave a clinician can take.
func seedLeave(ctx context.Context, svc *scheduling.Service, clinicianID string, date time.Time) error {
	current, err := svc.Leave(ctx, clinicianID, date)
	if err != nil {
		return err
	}

	switch gofakeit.Number(0, 2) {
	case 0:
		if current.Day.FullDay {
			return nil
		}
		_, err = svc.ToggleFullDayLeave(ctx, clinicianID, date)
		return err
	case 1:
		period := schedule.PeriodMorning
		if gofakeit.Bool() {
			period = schedule.PeriodAfternoon
		}
		_, err = svc.BlockPeriod(ctx, clinicianID, date, period)
		return err
	default:
		slots := svc.Slots(clinicianID, "")
		slot := slots[gofakeit.Number(0, len(slots)-1)]
		if current.Day.State != schedule.LeaveOpen {
			return nil
		}
		_, err = svc.ToggleSlotLeave(ctx, clinicianID, date, slot.Label)
		return err
	}
}
