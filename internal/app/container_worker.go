package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"
	"google.golang.org/grpc"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/gateway/notifier"
	"courier-dispatch/internal/http/handlers"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/service/delivery"
	"courier-dispatch/internal/service/matching"
	"courier-dispatch/internal/transport/kafka"
)

// ErrKafkaRequired is returned when the worker is started without brokers.
var ErrKafkaRequired = errors.New("match worker requires KAFKA_BROKERS")

// WorkerContainerBuilder builds the dig container of the match worker.
type WorkerContainerBuilder struct {
	base *ContainerBuilder
}

// NewWorkerContainerBuilder returns a builder with production dependencies.
func NewWorkerContainerBuilder() *WorkerContainerBuilder {
	return &WorkerContainerBuilder{base: NewContainerBuilder()}
}

// WithConfig replaces configuration loading.
func (b *WorkerContainerBuilder) WithConfig(fn func() (*config.Config, error)) *WorkerContainerBuilder {
	b.base.WithConfig(fn)
	return b
}

// WithDBConnect sets the database connection function.
func (b *WorkerContainerBuilder) WithDBConnect(fn DBConnectFunc) *WorkerContainerBuilder {
	b.base.WithDBConnect(fn)
	return b
}

// WithMigrate sets the migration function.
func (b *WorkerContainerBuilder) WithMigrate(fn MigrateFunc) *WorkerContainerBuilder {
	b.base.WithMigrate(fn)
	return b
}

// WithLogFatalf sets the log.Fatalf function.
func (b *WorkerContainerBuilder) WithLogFatalf(fn func(string, ...interface{})) *WorkerContainerBuilder {
	b.base.WithLogFatalf(fn)
	return b
}

// MustBuild builds the worker container or exits.
func (b *WorkerContainerBuilder) MustBuild(ctx context.Context) *dig.Container {
	container, err := b.build(ctx)
	if err != nil {
		b.base.logFatalf("failed to build worker container: %v", err)
	}
	return container
}

func (b *WorkerContainerBuilder) build(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	if err := registerCore(container, ctx, b.base.loadConfig); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	if err := registerMetrics(container); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if err := registerDb(container, b.base.dbConnect, b.base.migrate); err != nil {
		return nil, fmt.Errorf("DB: %w", err)
	}
	if err := registerWorker(container); err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}
	return container, nil
}

// MustBuildWorkerContainer builds the worker container with production dependencies.
func MustBuildWorkerContainer(ctx context.Context) *dig.Container {
	return NewWorkerContainerBuilder().MustBuild(ctx)
}

type gatewayIn struct {
	dig.In

	Cfg     *config.Config
	Logger  logx.Logger
	Conn    *grpc.ClientConn
	Retries prometheus.Counter `name:"notify_gateway_retries_total"`
}

func provideWorkerNotifier(in gatewayIn) delivery.Notifier {
	gw := notifier.NewGRPCGateway(in.Conn, in.Cfg.Notify.Token)
	return notifier.NewRetryingGateway(gw, in.Logger, in.Retries, retryConfig(in.Cfg.Notify.Retry))
}

func provideWorkerProducer(cfg *config.Config, logger logx.Logger) (*kafka.Producer, error) {
	if !cfg.Kafka.Enabled() {
		return nil, ErrKafkaRequired
	}
	return kafka.NewProducer(logger, cfg.Kafka.Brokers, cfg.Kafka.MatchTopic)
}

func provideConsumer(cfg *config.Config, handler matching.Handler, logger logx.Logger) (*kafka.Consumer, error) {
	c, err := kafka.NewConsumer(logger, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.MatchTopic, handler.Handle)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrKafkaRequired
	}
	return c, nil
}

type workerServerIn struct {
	dig.In

	Cfg     *config.Config
	Logger  logx.Logger
	Metrics http.Handler `name:"metrics_handler"`
}

// provideWorkerServer exposes liveness and metrics of the worker.
func provideWorkerServer(in workerServerIn) *http.Server {
	h := handlers.New(in.Logger)
	r := chi.NewRouter()
	r.Get("/ping", h.Ping)
	r.Head("/healthcheck", h.HealthcheckHead)
	r.Handle("/metrics", in.Metrics)
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", in.Cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func registerWorker(container *dig.Container) error {
	return provideAll(container,
		func(cfg *config.Config) (*grpc.ClientConn, error) { return notifier.Dial(cfg.Notify.Target) },
		provideWorkerNotifier,
		provideWorkerProducer,
		func(p *kafka.Producer) delivery.Scheduler { return p },
		provideMatcher,
		provideDeliveryService,
		provideMatchHandler,
		provideConsumer,
		provideWorkerServer,
	)
}
