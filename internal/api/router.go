package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/petssecrets/veterinaria-core/internal/adoption"
	"github.com/petssecrets/veterinaria-core/internal/appointment"
	"github.com/petssecrets/veterinaria-core/internal/auth"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Adoptions    *adoption.Service
	Tokens       *auth.Tokens
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Broker       BrokerStatus
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(chimw.Recoverer)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Broker, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Tokens))

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", scheduleAppointmentHandler(cfg.Appointments))
			r.Get("/", searchAppointmentsHandler(cfg.Appointments))
			r.Get("/mine", listMyAppointmentsHandler(cfg.Appointments))
			r.Get("/upcoming", listUpcomingAppointmentsHandler(cfg.Appointments))
			r.Get("/availability", availabilityHandler(cfg.Appointments))
			r.Get("/{id}", getAppointmentHandler(cfg.Appointments))
			r.Patch("/{id}/status", updateAppointmentStatusHandler(cfg.Appointments))
			r.Post("/{id}/reschedule", rescheduleAppointmentHandler(cfg.Appointments))
			r.Post("/{id}/cancel", cancelAppointmentHandler(cfg.Appointments))
		})

		r.Route("/adoptions", func(r chi.Router) {
			r.Post("/", createAdoptionHandler(cfg.Adoptions))
			r.Get("/", searchAdoptionsHandler(cfg.Adoptions))
			r.Get("/mine", listMyAdoptionsHandler(cfg.Adoptions))
			r.Get("/can-adopt/{petID}", canAdoptHandler(cfg.Adoptions))
			r.Get("/{id}", getAdoptionHandler(cfg.Adoptions))
			r.Patch("/{id}/status", updateAdoptionStatusHandler(cfg.Adoptions))
			r.Post("/{id}/cancel", cancelAdoptionHandler(cfg.Adoptions))
		})

		r.Patch("/pets/{id}/adoption-status", setPetStatusHandler(cfg.Adoptions))
	})

	return r
}
