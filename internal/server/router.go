package server

import (
	"net/http"
	"time"

	"github.com/dhruvspathak/Songify/internal/envutil"
	jsonwriter "github.com/dhruvspathak/Songify/internal/json"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RateLimits configures the per-IP limiters. Zero requests disables a limiter.
type RateLimits struct {
	Requests     int
	Window       time.Duration
	AuthRequests int
	AuthWindow   time.Duration
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Environment    envutil.Environment
	AllowedOrigins []string
	RateLimits     RateLimits
	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	TrustProxy bool
}

func passthrough(next http.Handler) http.Handler { return next }

func limiterMiddleware(name string, requests int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 || window <= 0 {
		return passthrough
	}
	return NewRateLimiter(name, requests, window).Middleware
}

// NewRouter wires the auth and health handlers. Auth routes are served under
// /auth, under /api/auth and at the root.
func NewRouter(auth *AuthHandlers, health *HealthHandler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	if opts.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(
		NewRequestIDMiddleware(),
		NewRecoverMiddleware("http"),
		NewLoggerMiddleware("http"),
		NewSecurityHeadersMiddleware(opts.Environment.IsProduction()),
		NewCORSMiddleware(opts.AllowedOrigins),
		limiterMiddleware("general", opts.RateLimits.Requests, opts.RateLimits.Window),
	)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		jsonwriter.WriteNotFound(w, "Endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		jsonwriter.WriteMethodNotAllowed(w, "Method not allowed")
	})

	// One limiter shared by every mount so the budget is per client.
	strict := limiterMiddleware("auth", opts.RateLimits.AuthRequests, opts.RateLimits.AuthWindow)

	authRoutes := func(r chi.Router) {
		r.Use(NewNoStoreMiddleware())
		r.With(strict).Get("/login", auth.LoginHandler)
		r.With(strict).Post("/callback", auth.CallbackHandler)
		r.With(strict).Post("/refresh", auth.RefreshHandler)
		r.Get("/me", auth.MeHandler)
		r.Get("/token", auth.TokenHandler)
		r.Get("/debug", auth.DebugHandler)
		r.Post("/logout", auth.LogoutHandler)
	}
	healthRoutes := func(r chi.Router) {
		r.Get("/", health.Health)
		r.Get("/status", health.Status)
		r.Get("/ready", health.Ready)
		r.Get("/live", health.Live)
	}

	r.Get("/", health.Root)
	r.Route("/health", healthRoutes)
	r.Route("/auth", authRoutes)
	r.Route("/api", func(r chi.Router) {
		r.Get("/", health.Root)
		r.Route("/health", healthRoutes)
		r.Route("/auth", authRoutes)
	})
	r.Group(authRoutes)

	return r
}
