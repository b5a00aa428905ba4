package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/civicmap/requestmap/pkg/health"
	"github.com/civicmap/requestmap/pkg/logging"
	"github.com/civicmap/requestmap/pkg/telemetry"
)

// RouterConfig holds the router dependencies. Nil observability and rate
// limiting collaborators are skipped.
type RouterConfig struct {
	Handler        *Handler
	Health         *health.Checker
	Logger         *logging.Logger
	AllowedOrigins []string
	RateLimiter    *RateLimiter
	Tracer         trace.Tracer
	Metrics        *telemetry.HTTPMetrics
	RequestTimeout time.Duration
}

// NewRouter builds the API routes and middleware chain.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("info")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RealIP)
	r.Use(Logger(cfg.Logger))
	r.Use(Recoverer(cfg.Logger))
	r.Use(SecurityHeaders)
	r.Use(CORS(cfg.AllowedOrigins))
	if cfg.Tracer != nil {
		r.Use(telemetry.TracingMiddleware(cfg.Tracer))
	}
	if cfg.Metrics != nil {
		r.Use(telemetry.MetricsMiddleware(cfg.Metrics))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware)
	}

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.LivenessHandler())
		r.Get("/health/ready", cfg.Health.ReadinessHandler())
		r.Get("/healthz", cfg.Health.HealthHandler())
	}

	h := cfg.Handler
	r.Route("/v1", func(r chi.Router) {
		r.Use(Timeout(cfg.RequestTimeout))
		r.Use(Compress(5))

		r.Get("/types", h.Types)
		r.Post("/counts", h.Counts)
		r.Post("/circle", h.Circle)
		r.Get("/locate", h.Locate)

		r.Route("/boundaries/{kind}", func(r chi.Router) {
			r.Get("/", h.Boundaries)
			r.Get("/extent", h.Extent)
			r.Get("/{id}", h.Boundary)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.CreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Delete("/", h.DeleteSession)
				r.Post("/events", h.SessionEvent)
				r.Post("/click", h.SessionClick)
				r.Post("/select", h.SessionSelect)
				r.Post("/reset", h.SessionReset)
				r.Put("/region-type", h.SessionRegionType)
				r.Put("/center", h.SessionCenter)
				r.Put("/radius", h.SessionRadius)
				r.Put("/types", h.SessionTypes)
			})
		})
	})

	return r
}
