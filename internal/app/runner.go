package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/dig"
	"google.golang.org/grpc"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/notify"
)

const shutdownTimeout = 15 * time.Second

// Runner runs the API process.
type Runner struct {
	runFn     func(*dig.Container) error
	logFatalf func(string, ...interface{})
}

// NewRunner returns a Runner.
func NewRunner() *Runner {
	return &Runner{runFn: run, logFatalf: log.Fatalf}
}

// MustRun runs until the container context ends. A cancelled context is a
// normal shutdown; any other error is fatal.
func (r *Runner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		log.Println("shutdown requested, exiting")
	case errors.Is(err, context.DeadlineExceeded):
		log.Println("startup aborted: startup timeout exceeded")
	default:
		r.logFatalf("run error: %v", err)
	}
}

func run(container *dig.Container) error {
	return container.Invoke(apiRun)
}

type apiIn struct {
	dig.In

	Ctx     context.Context
	Cfg     *config.Config
	Logger  logx.Logger
	Pool    *pgxpool.Pool
	Server  *http.Server
	GRPC    *grpc.Server
	Router  *notify.Router
	Runtime *dispatchRuntime
	Pprof   *http.Server `name:"pprof_server" optional:"true"`
}

func apiRun(in apiIn) error {
	ctx, logger := in.Ctx, in.Logger
	errCh := make(chan error, 3)

	if in.Runtime.Local != nil {
		in.Runtime.Local.Start(ctx)
	}
	if err := in.Runtime.Rescanner.Start(); err != nil {
		return err
	}
	if in.Runtime.Rescanner.Enabled() {
		go in.Runtime.Rescanner.RunOnce()
	}

	grpcLis, err := net.Listen("tcp", in.Cfg.Notify.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", in.Cfg.Notify.GRPCAddr, err)
	}
	go func() {
		logger.Info("notify rpc listening", logx.String("addr", grpcLis.Addr().String()))
		if err := in.GRPC.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()

	if err := serveHTTP(in.Server, "http", logger, errCh); err != nil {
		in.GRPC.Stop()
		return err
	}
	if in.Pprof != nil {
		if err := serveHTTP(in.Pprof, "pprof", logger, errCh); err != nil {
			logger.Warn("pprof server not started", logx.Err(err))
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
		logger.Info("shutdown signal received")
	case runErr = <-errCh:
		logger.Error("server failed", logx.Err(runErr))
	}

	gracefulShutdown(in, shutdownTimeout)
	return runErr
}

func serveHTTP(srv *http.Server, name string, logger logx.Logger, errCh chan<- error) error {
	lis, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s %s: %w", name, srv.Addr, err)
	}
	go func() {
		logger.Info(name+" server listening", logx.String("addr", lis.Addr().String()))
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s serve: %w", name, err)
		}
	}()
	return nil
}

func gracefulShutdown(in apiIn, timeout time.Duration) {
	logger := in.Logger
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := in.Server.Shutdown(ctx); err != nil {
		logger.Error("http shutdown error", logx.Err(err))
	}
	if in.Pprof != nil {
		if err := in.Pprof.Shutdown(ctx); err != nil {
			logger.Error("pprof shutdown error", logx.Err(err))
		}
	}
	in.Runtime.Rescanner.Stop(ctx)
	in.GRPC.GracefulStop()
	if in.Runtime.Local != nil {
		in.Runtime.Local.Stop()
	}
	in.Router.Close()
	if in.Runtime.Producer != nil {
		if err := in.Runtime.Producer.Close(); err != nil {
			logger.Error("kafka producer close error", logx.Err(err))
		}
	}
	if in.Pool != nil {
		in.Pool.Close()
	}
	logger.Info("shutdown complete")
	_ = logger.Sync()
}
