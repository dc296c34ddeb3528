package api

import (
	"context"
	"net/http"
	"time"

	"github.com/alecgard/orgbook/internal/auth"
	"github.com/alecgard/orgbook/internal/metrics"
	"github.com/alecgard/orgbook/internal/organisation"
	"github.com/alecgard/orgbook/internal/ratelimit"
	"github.com/alecgard/orgbook/internal/user"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UserService registers and signs in users.
type UserService interface {
	Register(ctx context.Context, in user.RegisterInput) (*user.AuthResult, error)
	Login(ctx context.Context, email, password string) (*user.AuthResult, error)
}

// UserReader loads user records.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

// OrganisationService implements the organisation endpoints.
type OrganisationService interface {
	List(ctx context.Context, userID string) ([]*organisation.Organisation, error)
	Get(ctx context.Context, userID, orgID string) (*organisation.Organisation, error)
	Create(ctx context.Context, userID string, in organisation.CreateOrganisationInput) (*organisation.Organisation, error)
	AddMember(ctx context.Context, requesterID, orgID, targetUserID string) (bool, error)
	CanView(ctx context.Context, viewerID, userID string) (bool, error)
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps holds all dependencies for the API router.
type RouterDeps struct {
	Users          UserService
	UserReader     UserReader
	Orgs           OrganisationService
	Tokens         auth.TokenValidator
	Limiter        ratelimit.Decider // nil disables rate limiting
	Metrics        *metrics.Metrics  // nil uses a private registry
	DB             Pinger            // nil skips the database health check
	AllowedOrigins []string
}

// healthTimeout bounds the database ping in /health.
const healthTimeout = 2 * time.Second

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.New(0, time.Minute)
	}
	m := deps.Metrics

	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(requestIDMiddleware)
	r.Use(m.Middleware)
	r.Use(slogRequestLogger)
	r.Use(secureHeaders)
	r.Use(corsMiddleware(deps.AllowedOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "error", "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "error", "Method not allowed")
	})

	authH := newAuthHandler(deps.Users, m)
	usersH := newUsersHandler(deps.UserReader, deps.Orgs)
	orgsH := newOrganisationsHandler(deps.Orgs, m)

	r.Get("/health", healthHandler(deps.DB))
	r.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	r.Get("/metrics/summary", m.Handler())

	// Public auth routes, rate limited per client IP.
	r.Route("/auth", func(ar chi.Router) {
		ar.Use(ratelimit.Middleware(deps.Limiter, "auth", nil, func() {
			m.IncRateLimitRejection("auth")
		}))
		ar.Post("/register", authH.Register)
		ar.Post("/login", authH.Login)
	})

	// Bearer-authenticated routes.
	r.Group(func(pr chi.Router) {
		pr.Use(auth.Middleware(deps.Tokens, func(reason string) {
			m.IncAuthFailure("bearer", reason)
		}))

		pr.Get("/users/{id}", usersH.GetUser)

		pr.Get("/organisations", orgsH.List)
		pr.Post("/organisations", orgsH.Create)
		pr.Get("/organisations/{orgId}", orgsH.Get)
		pr.Post("/organisations/{orgId}/users", orgsH.AddMember)
	})

	return r
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "unavailable",
				"database": "unreachable",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":   "ok",
			"database": "connected",
		})
	}
}
