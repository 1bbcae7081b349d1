package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/dig"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/metrics"
	"courier-dispatch/internal/repository"
)

const (
	dbConnectRetries = 10
	dbConnectDelay   = time.Second
)

// ContainerBuilder builds the dig container of the API process.
type ContainerBuilder struct {
	loadConfig func() (*config.Config, error)
	dbConnect  DBConnectFunc
	migrate    MigrateFunc
	logFatalf  func(string, ...interface{})
}

// NewContainerBuilder returns a builder with production dependencies.
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		loadConfig: config.Load,
		dbConnect:  connectDbWithRetry,
		migrate:    repository.Migrate,
		logFatalf:  log.Fatalf,
	}
}

// WithConfig replaces configuration loading.
func (b *ContainerBuilder) WithConfig(fn func() (*config.Config, error)) *ContainerBuilder {
	if fn != nil {
		b.loadConfig = fn
	}
	return b
}

// WithDBConnect sets the database connection function.
func (b *ContainerBuilder) WithDBConnect(fn DBConnectFunc) *ContainerBuilder {
	if fn != nil {
		b.dbConnect = fn
	}
	return b
}

// WithMigrate sets the migration function.
func (b *ContainerBuilder) WithMigrate(fn MigrateFunc) *ContainerBuilder {
	if fn != nil {
		b.migrate = fn
	}
	return b
}

// WithLogFatalf sets the log.Fatalf function.
func (b *ContainerBuilder) WithLogFatalf(fn func(string, ...interface{})) *ContainerBuilder {
	if fn != nil {
		b.logFatalf = fn
	}
	return b
}

// MustBuild builds the API container or exits.
func (b *ContainerBuilder) MustBuild(ctx context.Context) *dig.Container {
	container, err := b.build(ctx)
	if err != nil {
		b.logFatalf("failed to build container: %v", err)
	}
	return container
}

func (b *ContainerBuilder) build(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	if err := registerCore(container, ctx, b.loadConfig); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	if err := registerMetrics(container); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if err := registerDb(container, b.dbConnect, b.migrate); err != nil {
		return nil, fmt.Errorf("DB: %w", err)
	}
	if err := registerNotify(container); err != nil {
		return nil, fmt.Errorf("notify: %w", err)
	}
	if err := registerDispatch(container); err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	if err := registerHTTP(container); err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	return container, nil
}

// MustBuildContainer builds the API container with production dependencies.
func MustBuildContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuild(ctx)
}

func provideAll(container *dig.Container, providers ...any) error {
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return fmt.Errorf("provide %T: %w", provider, err)
		}
	}
	return nil
}

func registerCore(container *dig.Container, ctx context.Context, loadConfig func() (*config.Config, error)) error {
	return provideAll(container,
		func() context.Context { return ctx },
		loadConfig,
		NewLogger,
	)
}

type metricsOut struct {
	dig.Out

	Registry       *prometheus.Registry
	Dispatch       *metrics.Dispatch
	Notify         *metrics.Notify
	HTTP           *metrics.HTTP
	RateLimit      prometheus.Counter `name:"rate_limit_exceeded_total"`
	GatewayRetries prometheus.Counter `name:"notify_gateway_retries_total"`
	Handler        http.Handler       `name:"metrics_handler"`
}

func provideMetrics() (metricsOut, error) {
	out := metricsOut{
		Registry:       metrics.NewRegistry(),
		Dispatch:       metrics.NewDispatch(),
		Notify:         metrics.NewNotify(),
		HTTP:           metrics.NewHTTP(),
		RateLimit:      metrics.NewRateLimitExceededTotal(),
		GatewayRetries: metrics.NewNotifyGatewayRetriesTotal(),
	}
	cs := append(out.Dispatch.Collectors(), out.Notify.Collectors()...)
	cs = append(cs, out.HTTP.Collectors()...)
	cs = append(cs, out.RateLimit, out.GatewayRetries)
	if err := metrics.Register(out.Registry, cs...); err != nil {
		return metricsOut{}, err
	}
	out.Handler = promhttp.HandlerFor(out.Registry, promhttp.HandlerOpts{Registry: out.Registry})
	return out, nil
}

func registerMetrics(container *dig.Container) error {
	return provideAll(container, provideMetrics)
}

func registerDb(container *dig.Container, dbConnect DBConnectFunc, migrate MigrateFunc) error {
	providerDB := func(ctx context.Context, cfg *config.Config, logger logx.Logger) (*pgxpool.Pool, error) {
		pool, err := dbConnect(ctx, logger, cfg.DB.DSN(), dbConnectRetries, dbConnectDelay)
		if err != nil {
			return nil, err
		}
		if err := migrate(cfg.DB.DSN()); err != nil {
			if pool != nil {
				pool.Close()
			}
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return pool, nil
	}
	return provideAll(container,
		providerDB,
		repository.NewDeliveryRepo,
		repository.NewLocationRepo,
	)
}
