package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinician-availability/internal/api"
	"github.com/hackgods/clinician-availability/internal/config"
	"github.com/hackgods/clinician-availability/internal/db"
	"github.com/hackgods/clinician-availability/internal/logging"
	redisclient "github.com/hackgods/clinician-availability/internal/redis"
	"github.com/hackgods/clinician-availability/internal/schedule"
	"github.com/hackgods/clinician-availability/internal/scheduling"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	logging.Init("api-server", cfg.Env, cfg.LogLevel)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Str("lock_backend", cfg.LockBackend).Str("clinic_tz", cfg.ClinicTimezone).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog, err := schedule.GenerateCatalog(cfg.MorningStart, cfg.AfternoonStart, cfg.SlotsPerPeriod, cfg.SlotStep)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid slot catalog")
	}

	var (
		pgPool *pgxpool.Pool
		repo   scheduling.Repository
	)
	if cfg.PostgresDSN != "" {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		if err == nil {
			err = db.EnsureSchema(pgCtx, pgPool)
		}
		cancelPg()
		if err != nil {
			log.Fatal().Err(err).Msg("postgres connection error")
		}
		defer pgPool.Close()
		log.Info().Msg("connected to Postgres")
		repo = scheduling.NewPgRepository(pgPool)
	} else {
		log.Warn().Msg("POSTGRES_DSN not set, schedule is kept in memory only")
		repo = scheduling.NewMemoryRepository()
	}

	var (
		rdb    *redis.Client
		locker redisclient.Locker
	)
	switch cfg.LockBackend {
	case config.LockBackendRedis:
		rdb, err = redisclient.NewRedisClient(rootCtx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Msg("error closing redis")
			}
		}()
		log.Info().Msg("connected to Redis")
		locker = redisclient.NewRedisDayLocker(rdb, cfg.LockTTL)
	default:
		locker = redisclient.NewLocalDayLocker()
	}

	svc := scheduling.NewService(schedule.NewCatalogs(catalog), repo, locker)
	svc.SetLocation(cfg.ClinicLocation)

	hydrateCtx, cancelHydrate := context.WithTimeout(rootCtx, 30*time.Second)
	err = svc.Hydrate(hydrateCtx)
	cancelHydrate()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load schedule")
	}

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(api.RouterConfig{
			Service: svc,
			PgPool:  pgPool,
			Redis:   rdb,
			Env:     cfg.Env,
			Version: version,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go runSweeper(rootCtx, svc, cfg.SweepInterval)

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
}

// runSweeper completes appointments whose consultation time has passed.
func runSweeper(ctx context.Context, svc *scheduling.Service, interval time.Duration) {
	if interval <= 0 {
		log.Info().Msg("completion sweeper disabled")
		return
	}

	runOnce(ctx, svc)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping completion sweeper")
			return
		case <-ticker.C:
			runOnce(ctx, svc)
		}
	}
}

func runOnce(ctx context.Context, svc *scheduling.Service) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.CompletePastAppointments(runCtx, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("completion sweep error")
		return
	}
	log.Debug().Int("completed", n).Dur("took", time.Since(start)).Msg("completion sweep done")
}
