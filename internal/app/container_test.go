package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"
	"google.golang.org/grpc"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/http/handlers"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/notify"
	"courier-dispatch/internal/service/delivery"
	"courier-dispatch/internal/transport/kafka"
)

func testConfig() *config.Config {
	return &config.Config{
		Port: 8080,
		Log:  config.Log{Level: "error", Backend: config.LogBackendSlog},
		Dispatch: config.Dispatch{
			CapacityLimit: 2,
			Workers:       1,
			QueueSize:     8,
			JobTimeout:    time.Second,
			Retry:         config.Retry{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		},
		Notify: config.Notify{GRPCAddr: "127.0.0.1:0", SendTimeout: time.Second},
	}
}

func stubConnect(pool *pgxpool.Pool, err error) DBConnectFunc {
	return func(context.Context, logx.Logger, string, int, time.Duration) (*pgxpool.Pool, error) {
		return pool, err
	}
}

func noMigrate(string) error { return nil }

func newTestBuilder(cfg *config.Config) *ContainerBuilder {
	return NewContainerBuilder().
		WithConfig(func() (*config.Config, error) { return cfg, nil }).
		WithDBConnect(stubConnect(&pgxpool.Pool{}, nil)).
		WithMigrate(noMigrate).
		WithLogFatalf(func(format string, args ...interface{}) {
			panic("unexpected fatal: " + format)
		})
}

func TestBuild_ProvidesAPIGraph(t *testing.T) {
	t.Parallel()

	c, err := newTestBuilder(testConfig()).build(context.Background())
	require.NoError(t, err)

	err = c.Invoke(func(
		srv *http.Server,
		gs *grpc.Server,
		router *notify.Router,
		rt *dispatchRuntime,
		sched delivery.Scheduler,
		deliveries *handlers.DeliveryHandler,
		locations *handlers.LocationHandler,
	) {
		require.NotNil(t, srv)
		require.Equal(t, ":8080", srv.Addr)
		require.Greater(t, srv.ReadHeaderTimeout, time.Duration(0))
		require.NotNil(t, gs)
		require.NotNil(t, router)
		require.NotNil(t, deliveries)
		require.NotNil(t, locations)

		require.NotNil(t, rt.Local, "local queue is used without kafka")
		require.Nil(t, rt.Producer)
		require.False(t, rt.Rescanner.Enabled())
		require.Same(t, rt.Local, sched)
	})
	require.NoError(t, err)
}

func TestBuild_PprofDisabledByDefault(t *testing.T) {
	t.Parallel()

	c, err := newTestBuilder(testConfig()).build(context.Background())
	require.NoError(t, err)

	type in struct {
		dig.In
		Pprof *http.Server `name:"pprof_server" optional:"true"`
	}
	require.NoError(t, c.Invoke(func(p in) { require.Nil(t, p.Pprof) }))
}

func TestBuild_PprofEnabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Pprof = config.Pprof{Enabled: true, Addr: "127.0.0.1:0"}
	c, err := newTestBuilder(cfg).build(context.Background())
	require.NoError(t, err)

	type in struct {
		dig.In
		Pprof *http.Server `name:"pprof_server" optional:"true"`
	}
	require.NoError(t, c.Invoke(func(p in) {
		require.NotNil(t, p.Pprof)
		require.Equal(t, "127.0.0.1:0", p.Pprof.Addr)
	}))
}

func TestBuild_InvalidRescanScheduleFails(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Dispatch.RescanSpec = "not a schedule"
	c, err := newTestBuilder(cfg).build(context.Background())
	require.NoError(t, err)

	err = c.Invoke(func(*dispatchRuntime) {})
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse rescan schedule")
}

func TestBuild_ConfigErrorSurfacesOnInvoke(t *testing.T) {
	t.Parallel()

	boom := errors.New("bad config")
	c, err := newTestBuilder(nil).
		WithConfig(func() (*config.Config, error) { return nil, boom }).
		build(context.Background())
	require.NoError(t, err)

	err = c.Invoke(func(*http.Server) {})
	require.Error(t, err)
	require.ErrorIs(t, dig.RootCause(err), boom)
}

func TestRegisterDb(t *testing.T) {
	t.Parallel()

	newContainer := func(t *testing.T, connect DBConnectFunc, migrate MigrateFunc) *dig.Container {
		t.Helper()
		c := dig.New()
		require.NoError(t, provideAll(c,
			func() context.Context { return context.Background() },
			func() *config.Config { return testConfig() },
			func() logx.Logger { return logx.Nop() },
		))
		require.NoError(t, registerDb(c, connect, migrate))
		return c
	}

	t.Run("connect error", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("db down")
		c := newContainer(t, stubConnect(nil, boom), noMigrate)
		err := c.Invoke(func(*pgxpool.Pool) {})
		require.ErrorIs(t, dig.RootCause(err), boom)
	})

	t.Run("migrate error", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("dirty schema")
		c := newContainer(t, stubConnect(nil, nil), func(string) error { return boom })
		err := c.Invoke(func(*pgxpool.Pool) {})
		require.Error(t, err)
		require.Contains(t, err.Error(), "migrate")
		require.ErrorIs(t, dig.RootCause(err), boom)
	})

	t.Run("passes dsn to both steps", func(t *testing.T) {
		t.Parallel()
		var connectDSN, migrateDSN string
		connect := func(_ context.Context, _ logx.Logger, dsn string, retries int, _ time.Duration) (*pgxpool.Pool, error) {
			connectDSN = dsn
			require.Equal(t, dbConnectRetries, retries)
			return &pgxpool.Pool{}, nil
		}
		c := newContainer(t, connect, func(dsn string) error { migrateDSN = dsn; return nil })
		require.NoError(t, c.Invoke(func(p *pgxpool.Pool) { require.NotNil(t, p) }))
		require.Equal(t, testConfig().DB.DSN(), connectDSN)
		require.Equal(t, connectDSN, migrateDSN)
	})
}

func TestProvideMetrics_ServesRegistry(t *testing.T) {
	t.Parallel()

	out, err := provideMetrics()
	require.NoError(t, err)
	out.RateLimit.Inc()

	rec := httptest.NewRecorder()
	out.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "rate_limit_exceeded_total 1")
	require.Contains(t, body, "notify_channels_open 0")
	require.Contains(t, body, "go_goroutines")
}

func TestWorkerBuild_RequiresKafka(t *testing.T) {
	t.Parallel()

	c, err := NewWorkerContainerBuilder().
		WithConfig(func() (*config.Config, error) { return testConfig(), nil }).
		WithDBConnect(stubConnect(&pgxpool.Pool{}, nil)).
		WithMigrate(noMigrate).
		build(context.Background())
	require.NoError(t, err)

	err = c.Invoke(func(*kafka.Producer) {})
	require.ErrorIs(t, dig.RootCause(err), ErrKafkaRequired)
}

func TestWorkerBuild_ProvidesNotifierAndServer(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Notify.Target = "127.0.0.1:9090"
	c, err := NewWorkerContainerBuilder().
		WithConfig(func() (*config.Config, error) { return cfg, nil }).
		WithDBConnect(stubConnect(&pgxpool.Pool{}, nil)).
		WithMigrate(noMigrate).
		build(context.Background())
	require.NoError(t, err)

	err = c.Invoke(func(n delivery.Notifier, srv *http.Server, conn *grpc.ClientConn) {
		require.NotNil(t, n)
		require.NotNil(t, srv)
		require.NoError(t, conn.Close())

		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})
	require.NoError(t, err)
}
