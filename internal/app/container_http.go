package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"courier-dispatch/internal/auth"
	"courier-dispatch/internal/config"
	"courier-dispatch/internal/http/handlers"
	"courier-dispatch/internal/http/middleware/ratelimit"
	"courier-dispatch/internal/http/pprofserver"
	"courier-dispatch/internal/http/router"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/metrics"
	"courier-dispatch/internal/notify"
	"courier-dispatch/internal/repository"
	"courier-dispatch/internal/service/delivery"
	"courier-dispatch/internal/transport/ws"
)

type rateLimitIn struct {
	dig.In

	Cfg     *config.Config
	Logger  logx.Logger
	Counter prometheus.Counter `name:"rate_limit_exceeded_total"`
}

func provideRateLimit(in rateLimitIn) *ratelimit.Middleware {
	var limiter ratelimit.Limiter = ratelimit.NopLimiter{}
	if in.Cfg.RateLimit.Enabled {
		limiter = ratelimit.NewTokenBucketLimiter(ratelimit.RealClock{}, ratelimit.Config{
			Rate:       in.Cfg.RateLimit.Rate,
			Burst:      in.Cfg.RateLimit.Burst,
			TTL:        in.Cfg.RateLimit.TTL,
			MaxBuckets: in.Cfg.RateLimit.MaxBuckets,
		})
	}
	return ratelimit.New(in.Logger, in.Counter, limiter)
}

func provideLocationHandler(cfg *config.Config, locations *repository.LocationRepo, router *notify.Router, logger logx.Logger) *handlers.LocationHandler {
	if !cfg.Notify.BroadcastLocations {
		return handlers.NewLocationHandler(logger, locations, nil)
	}
	return handlers.NewLocationHandler(logger, locations, router)
}

type routerIn struct {
	dig.In

	Cfg         *config.Config
	Logger      logx.Logger
	Base        *handlers.Handlers
	Deliveries  *handlers.DeliveryHandler
	Locations   *handlers.LocationHandler
	Realtime    *ws.Handler
	Verifier    *auth.Verifier
	RateLimit   *ratelimit.Middleware
	HTTPMetrics *metrics.HTTP
	Metrics     http.Handler `name:"metrics_handler"`
}

func provideRouter(in routerIn) http.Handler {
	return router.New(router.Deps{
		Base:        in.Base,
		Deliveries:  in.Deliveries,
		Locations:   in.Locations,
		Realtime:    in.Realtime,
		Metrics:     in.Metrics,
		HTTPMetrics: in.HTTPMetrics,
		RateLimit:   in.RateLimit,
		Verifier:    in.Verifier,
		Logger:      in.Logger,
	})
}

type pprofOut struct {
	dig.Out

	Server *http.Server `name:"pprof_server"`
}

func providePprof(cfg *config.Config) pprofOut {
	if !cfg.Pprof.Enabled {
		return pprofOut{}
	}
	return pprofOut{Server: pprofserver.New(pprofserver.Config{
		Addr: cfg.Pprof.Addr,
		User: cfg.Pprof.User,
		Pass: cfg.Pprof.Pass,
	})}
}

func provideServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func registerHTTP(container *dig.Container) error {
	return provideAll(container,
		handlers.New,
		func(svc *delivery.Service, logger logx.Logger) *handlers.DeliveryHandler {
			return handlers.NewDeliveryHandler(logger, svc)
		},
		provideLocationHandler,
		func(cfg *config.Config) *auth.Verifier { return auth.NewVerifier(cfg.Auth.JWTSecret) },
		func(router *notify.Router, verifier *auth.Verifier, logger logx.Logger) *ws.Handler {
			return ws.NewHandler(router, verifier, ws.DefaultConfig(), logger)
		},
		provideRateLimit,
		provideRouter,
		provideServer,
		providePprof,
	)
}
