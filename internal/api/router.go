package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinician-availability/internal/scheduling"
)

type RouterConfig struct {
	Service *scheduling.Service
	PgPool  *pgxpool.Pool // nil when running on the memory repository
	Redis   *redis.Client // nil with the local lock backend
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	svc := cfg.Service

	r.Get("/slots", listSlotsHandler(svc))

	r.Post("/appointments", bookAppointmentHandler(svc))
	r.Get("/appointments/{id}", getAppointmentHandler(svc))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(svc))
	r.Post("/appointments/{id}/complete", completeAppointmentHandler(svc))
	r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(svc))

	r.Get("/patients/{patientID}/appointments", patientAppointmentsHandler(svc))

	r.Route("/clinicians/{clinicianID}", func(r chi.Router) {
		r.Get("/availability", availabilityHandler(svc))
		r.Get("/appointments", clinicianAppointmentsHandler(svc))
		r.Get("/appointment-dates", appointmentDatesHandler(svc))

		r.Get("/leave", getLeaveHandler(svc))
		r.Post("/leave/full-day", leaveHandler(svc, toggleFullDayLeave))
		r.Post("/leave/slot", leaveHandler(svc, toggleSlotLeave))
		r.Post("/leave/period", leaveHandler(svc, blockPeriod))
		r.Post("/leave/clear", leaveHandler(svc, clearLeave))
		r.Post("/leave/undo", undoLeaveHandler(svc))
	})

	return r
}
