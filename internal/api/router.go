package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crewkit/crewkit/internal/auth"
	"github.com/crewkit/crewkit/internal/catalog"
	"github.com/crewkit/crewkit/internal/metrics"
	"github.com/crewkit/crewkit/internal/ratelimit"
	"github.com/crewkit/crewkit/internal/signup"
	"github.com/crewkit/crewkit/internal/team"
	"github.com/crewkit/crewkit/internal/user"
)

// RouterDeps holds all dependencies for the API router.
type RouterDeps struct {
	Users      *user.Store
	Teams      *team.Store
	Lifecycle  *team.Lifecycle
	Membership *team.Membership
	Pro        *team.Pro
	Binder     *signup.Binder
	Catalog    *catalog.Store
	Limiter    *ratelimit.Limiter
	Metrics    *metrics.Metrics

	AllowedOrigins []string
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(secureHeaders)
	r.Use(corsMiddleware(deps.AllowedOrigins))
	r.Use(slogRequestLogger)
	r.Use(metricsMiddleware(deps.Metrics))

	// Handlers.
	authH := newAuthHandler(deps.Users, deps.Binder, deps.Metrics)
	teamsH := newTeamsHandler(deps.Lifecycle, deps.Membership, deps.Teams, deps.Metrics)
	membersH := newMembersHandler(deps.Membership, deps.Teams, deps.Metrics)
	proH := newProHandler(deps.Pro, deps.Teams, deps.Metrics)
	productsH := newProductsHandler(deps.Catalog)
	usersH := newUsersHandler(deps.Users)

	// Health check.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Prometheus metrics.
	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(deps.Metrics.Registry(), promhttp.HandlerOpts{}))

	// Well-known manifest.
	r.Get("/.well-known/crewkit.json", WellKnownHandler)

	r.Route("/api/v1", func(api chi.Router) {
		// Anonymous auth endpoints, rate limited by client IP.
		api.Group(func(pub chi.Router) {
			pub.Use(ratelimit.Middleware(deps.Limiter, deps.Metrics.RateLimitRejectionsTotal.Inc))

			pub.Post("/auth/register", authH.Register)
			pub.Post("/auth/login", authH.Login)
		})

		// Session-authed routes.
		api.Group(func(priv chi.Router) {
			priv.Use(auth.SessionMiddleware(deps.Users))

			priv.Get("/auth/me", authH.Me)
			priv.Post("/auth/logout", authH.Logout)

			// Leader (or admin) team management.
			priv.Route("/teams/{teamID}", func(tr chi.Router) {
				tr.Get("/", teamsH.GetTeam)
				tr.Post("/members", membersH.AddMember)
				tr.Delete("/members/{userID}", membersH.RemoveMember)
				tr.Post("/members/{userID}/pro", proH.Upgrade)
				tr.Delete("/members/{userID}/pro", proH.Downgrade)
			})

			// Admin routes.
			priv.Route("/admin", func(ar chi.Router) {
				ar.Use(auth.RequireAdmin)

				ar.Post("/teams", teamsH.CreateTeam)
				ar.Get("/teams", teamsH.ListTeams)
				ar.Get("/teams/{teamID}", teamsH.GetTeamAdmin)
				ar.Put("/teams/{teamID}", teamsH.SaveTeamDetails)
				ar.Delete("/teams/{teamID}", teamsH.DeleteTeam)

				ar.Get("/users", usersH.ListUsers)

				ar.Post("/products", productsH.CreateProduct)
				ar.Get("/products", productsH.ListProducts)
				ar.Get("/products/{productID}", productsH.GetProduct)
				ar.Delete("/products/{productID}", productsH.DeleteProduct)
			})
		})
	})

	return r
}

// slogRequestLogger is a simple structured logging middleware using slog.
func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", ww.BytesWritten(),
			"request_id", RequestIDFromContext(r.Context()),
		)
	})
}
