package app

import (
	"go.uber.org/dig"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/metrics"
	"courier-dispatch/internal/notify"
	"courier-dispatch/internal/repository"
	"courier-dispatch/internal/retry"
	"courier-dispatch/internal/scheduler"
	"courier-dispatch/internal/service/delivery"
	"courier-dispatch/internal/service/dispatch"
	"courier-dispatch/internal/service/matching"
	"courier-dispatch/internal/transport/kafka"
)

// dispatchRuntime is the match pipeline of the API process. Local is nil
// when jobs go through Kafka.
type dispatchRuntime struct {
	Local     *scheduler.Local
	Producer  *kafka.Producer
	Rescanner *scheduler.Rescanner
}

func retryConfig(r config.Retry) retry.Config {
	return retry.Config{MaxAttempts: r.MaxAttempts, BaseDelay: r.BaseDelay, MaxDelay: r.MaxDelay}
}

func provideMatcher(cfg *config.Config, deliveries *repository.DeliveryRepo, locations *repository.LocationRepo, logger logx.Logger) *dispatch.Matcher {
	gate := dispatch.NewCapacityGate(deliveries, cfg.Dispatch.CapacityLimit)
	return dispatch.NewMatcher(locations, gate, logger)
}

func provideProducer(cfg *config.Config, logger logx.Logger) (*kafka.Producer, error) {
	if !cfg.Kafka.Enabled() {
		return nil, nil
	}
	return kafka.NewProducer(logger, cfg.Kafka.Brokers, cfg.Kafka.MatchTopic)
}

func provideLocal(cfg *config.Config, logger logx.Logger) *scheduler.Local {
	if cfg.Kafka.Enabled() {
		return nil
	}
	return scheduler.NewLocal(nil, scheduler.LocalConfig{
		Workers:    cfg.Dispatch.Workers,
		QueueSize:  cfg.Dispatch.QueueSize,
		JobTimeout: cfg.Dispatch.JobTimeout,
	}, logger)
}

func provideScheduler(producer *kafka.Producer, local *scheduler.Local) delivery.Scheduler {
	if producer != nil {
		return producer
	}
	return local
}

func provideDeliveryService(
	cfg *config.Config,
	repo *repository.DeliveryRepo,
	sched delivery.Scheduler,
	notifier delivery.Notifier,
	m *metrics.Dispatch,
	logger logx.Logger,
) *delivery.Service {
	return delivery.NewDeliveryService(repo, sched, notifier, logger, delivery.Options{
		CapacityLimit: cfg.Dispatch.CapacityLimit,
		NotifyTimeout: cfg.Notify.SendTimeout,
		Transitions:   m.Transitions,
	})
}

func provideMatchHandler(
	cfg *config.Config,
	repo *repository.DeliveryRepo,
	matcher *dispatch.Matcher,
	svc *delivery.Service,
	m *metrics.Dispatch,
	logger logx.Logger,
) matching.Handler {
	processor := matching.NewProcessor(repo, matcher, svc, m, logger)
	return matching.WithRetry(processor, retryConfig(cfg.Dispatch.Retry), m, logger)
}

func provideDispatchRuntime(
	cfg *config.Config,
	local *scheduler.Local,
	producer *kafka.Producer,
	handler matching.Handler,
	svc *delivery.Service,
	logger logx.Logger,
) (*dispatchRuntime, error) {
	if local != nil {
		local.SetHandler(handler)
	}
	rescanner, err := scheduler.NewRescanner(cfg.Dispatch.RescanSpec, svc, cfg.Dispatch.JobTimeout, logger)
	if err != nil {
		return nil, err
	}
	return &dispatchRuntime{Local: local, Producer: producer, Rescanner: rescanner}, nil
}

func registerDispatch(container *dig.Container) error {
	return provideAll(container,
		provideMatcher,
		provideProducer,
		provideLocal,
		provideScheduler,
		func(router *notify.Router) delivery.Notifier { return router },
		provideDeliveryService,
		provideMatchHandler,
		provideDispatchRuntime,
	)
}
