package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"relief.org/internal/auth"
	"relief.org/internal/events"
	"relief.org/internal/obs"
	"relief.org/internal/relief"
)

const serviceName = "relief-api"

type readinessChecker interface {
	Check(ctx context.Context) error
}

// ReadyCheck pings the backing stores that are configured.
type ReadyCheck struct {
	DB    *sql.DB
	Redis redis.Cmdable
}

func (rp ReadyCheck) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	if rp.Redis != nil {
		return rp.Redis.Ping(ctx).Err()
	}
	return nil
}

// Options wires the HTTP layer to the services behind it.
type Options struct {
	Version         string
	Ready           readinessChecker
	Auth            *auth.Service
	Relief          *relief.Service
	Events          *events.Broker
	AllowQueryToken bool
	RateBurst       int
	RatePerSec      int
	MaxBodyBytes    int64
	CORSOrigins     []string
}

// API is the HTTP layer.
type API struct {
	readiness       readinessChecker
	version         string
	auth            *auth.Service
	tokens          *auth.TokenService
	relief          *relief.Service
	events          *events.Broker
	allowQueryToken bool
	rateBurst       int
	ratePerSec      int
	maxBodyBytes    int64
	corsOrigins     []string
}

func New(opts Options) *API {
	a := &API{
		readiness:       opts.Ready,
		version:         opts.Version,
		auth:            opts.Auth,
		relief:          opts.Relief,
		events:          opts.Events,
		allowQueryToken: opts.AllowQueryToken,
		rateBurst:       opts.RateBurst,
		ratePerSec:      opts.RatePerSec,
		maxBodyBytes:    opts.MaxBodyBytes,
		corsOrigins:     opts.CORSOrigins,
	}
	if a.readiness == nil {
		a.readiness = ReadyCheck{}
	}
	if a.auth != nil {
		a.tokens = a.auth.Tokens()
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 20
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 10
	}
	if a.maxBodyBytes <= 0 {
		a.maxBodyBytes = 1 << 20
	}
	return a
}

// Handler builds the router with the full middleware chain.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		RequestID,
		chimw.RealIP,
		obs.Instrument,
		LoggingJSON,
		chimw.Recoverer,
		SecurityHeaders,
		CORS(a.corsOrigins),
		func(next http.Handler) http.Handler { return RateLimit(next, a.rateBurst, a.ratePerSec) },
		func(next http.Handler) http.Handler { return MaxBodyBytes(next, a.maxBodyBytes) },
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Get("/v1/info", a.Info)
	r.Handle("/metrics", obs.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", a.register)
			r.Post("/login", a.login)
			r.With(a.requireAuth).Get("/me", a.me)
		})
		r.Route("/incidents", func(r chi.Router) {
			r.Get("/", a.listIncidents)
			r.Get("/export", a.exportIncidents)
			r.Get("/{id}", a.getIncident)
			r.With(a.requireAuth).Post("/", a.createIncident)
			r.With(a.requireAuth).Put("/{id}/status", a.updateIncidentStatus)
		})
		r.Route("/volunteers", func(r chi.Router) {
			r.Get("/", a.listVolunteers)
			r.Get("/{id}", a.getVolunteer)
			r.With(a.requireAuth).Post("/", a.createVolunteer)
		})
		r.Route("/donations", func(r chi.Router) {
			r.Get("/", a.listDonations)
			r.Get("/{id}", a.getDonation)
			r.With(a.requireAuth).Post("/", a.createDonation)
			r.With(a.requireAuth).Put("/{id}/status", a.updateDonationStatus)
		})
		r.Route("/assignments", func(r chi.Router) {
			r.Get("/{id}", a.getAssignment)
			r.Get("/by-volunteer/{volunteerId}", a.listAssignmentsByVolunteer)
			r.With(a.requireAuth).Post("/", a.createAssignment)
			r.With(a.requireAuth).Put("/{id}/complete", a.completeAssignment)
		})
		r.With(a.requireAuth).Get("/events", a.streamEvents)
	})
	return r
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readiness.Check(r.Context()); err != nil {
		obs.Logger().Warn("readiness check failed", "request_id", RequestIDFromContext(r.Context()), "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
