package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/dig"
	"google.golang.org/grpc"

	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/transport/kafka"
)

// WorkerRunner runs the match worker.
type WorkerRunner struct {
	runFn func(*dig.Container) error
}

// NewWorkerRunner returns a new WorkerRunner.
func NewWorkerRunner() *WorkerRunner {
	return &WorkerRunner{runFn: runWorker}
}

// MustRun consumes match jobs until the container context ends.
func (r *WorkerRunner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	panic(err)
}

func runWorker(container *dig.Container) error {
	return container.Invoke(workerRun)
}

type workerIn struct {
	dig.In

	Ctx      context.Context
	Logger   logx.Logger
	Pool     *pgxpool.Pool
	Consumer *kafka.Consumer
	Producer *kafka.Producer
	Conn     *grpc.ClientConn
	Server   *http.Server
}

func workerRun(in workerIn) error {
	if in.Consumer == nil {
		return fmt.Errorf("kafka consumer is nil: worker container misconfigured")
	}
	defer closeWorker(in)

	errCh := make(chan error, 1)
	if in.Server != nil {
		if err := serveHTTP(in.Server, "worker http", in.Logger, errCh); err != nil {
			return err
		}
	}

	in.Logger.Info("match worker started")
	runErr := make(chan error, 1)
	go func() { runErr <- in.Consumer.Run(in.Ctx) }()

	select {
	case err := <-runErr:
		return err
	case err := <-errCh:
		return err
	}
}

func closeWorker(in workerIn) {
	logger := in.Logger
	if in.Server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := in.Server.Shutdown(ctx); err != nil {
			logger.Error("worker http shutdown error", logx.Err(err))
		}
		cancel()
	}
	if err := in.Consumer.Close(); err != nil {
		logger.Error("kafka consumer close error", logx.Err(err))
	}
	if in.Producer != nil {
		if err := in.Producer.Close(); err != nil {
			logger.Error("kafka producer close error", logx.Err(err))
		}
	}
	if in.Conn != nil {
		if err := in.Conn.Close(); err != nil {
			logger.Error("notify connection close error", logx.Err(err))
		}
	}
	if in.Pool != nil {
		in.Pool.Close()
	}
	logger.Info("match worker stopped")
	_ = logger.Sync()
}
