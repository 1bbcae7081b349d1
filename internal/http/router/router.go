package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"courier-dispatch/internal/auth"
	"courier-dispatch/internal/http/handlers"
	obs "courier-dispatch/internal/http/middleware"
	"courier-dispatch/internal/http/middleware/ratelimit"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/metrics"
)

// DefaultRequestTimeout bounds every API request except realtime channels.
const DefaultRequestTimeout = 5 * time.Second

// Deps are the handlers and middleware the router mounts. Realtime, Metrics,
// RateLimit and HTTPMetrics may be nil.
type Deps struct {
	Base        *handlers.Handlers
	Deliveries  *handlers.DeliveryHandler
	Locations   *handlers.LocationHandler
	Realtime    http.Handler
	Metrics     http.Handler
	HTTPMetrics *metrics.HTTP
	RateLimit   *ratelimit.Middleware
	Verifier    *auth.Verifier
	Logger      logx.Logger
	Timeout     time.Duration
}

// New constructs a chi-based http.Handler with base middleware and routes.
func New(d Deps) http.Handler {
	if d.Timeout <= 0 {
		d.Timeout = DefaultRequestTimeout
	}
	if d.Logger == nil {
		d.Logger = logx.Nop()
	}
	limit := func(next http.Handler) http.Handler { return next }
	if d.RateLimit != nil {
		limit = d.RateLimit.Handler()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(obs.Observability(d.HTTPMetrics, d.Logger))
	r.Use(middleware.Recoverer)

	r.NotFound(d.Base.NotFound)
	r.MethodNotAllowed(d.Base.MethodNotAllowed)

	r.Get("/ping", d.Base.Ping)
	r.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(d.Base.HealthcheckHead))
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}
	// channels are long-lived, so no request timeout here
	if d.Realtime != nil {
		r.With(limit).Method(http.MethodGet, "/ws", d.Realtime)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(d.Timeout))
		r.Use(auth.Middleware(d.Verifier, d.Logger))
		r.Use(limit)

		r.Route("/deliveries", func(r chi.Router) {
			r.Post("/", d.Deliveries.Create)
			r.Get("/", d.Deliveries.List)
			r.Get("/{id}", d.Deliveries.Get)
			r.Put("/{id}/status", d.Deliveries.UpdateStatus)
		})
		r.Put("/couriers/me/location", d.Locations.PutMine)
	})

	return r
}
