package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/sertdev/reachd/internal/config"
	"github.com/sertdev/reachd/internal/ratelimit"
)

// Opts holds optional collaborators of the HTTP surface.
type Opts struct {
	RateLimiter       *ratelimit.Limiter
	MetricsMiddleware func(http.Handler) http.Handler
	MetricsHandler    http.Handler
	DB                Pinger // nil when the journal is disabled
}

// New creates and configures the chi router with all routes mounted.
func New(cfg *config.Config, apiRouter chi.Router, opts *Opts) *chi.Mux {
	if opts == nil {
		opts = &Opts{}
	}
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if opts.MetricsMiddleware != nil {
		r.Use(opts.MetricsMiddleware)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if opts.RateLimiter != nil {
			r.Use(rateLimit(opts.RateLimiter))
		}
		r.Mount("/", apiRouter)
	})

	r.Get("/health", HealthHandler())
	r.Get("/ready", ReadinessHandler(opts.DB))
	if opts.MetricsHandler != nil {
		r.Handle("/metrics", opts.MetricsHandler)
	}

	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}
