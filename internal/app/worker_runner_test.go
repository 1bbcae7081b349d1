package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	"courier-dispatch/internal/logx"
)

func TestWorkerRunner_MustRun_IgnoresCancel(t *testing.T) {
	t.Parallel()

	r := &WorkerRunner{runFn: func(*dig.Container) error { return context.Canceled }}
	require.NotPanics(t, func() { r.MustRun(dig.New()) })

	r = &WorkerRunner{runFn: func(*dig.Container) error { return nil }}
	require.NotPanics(t, func() { r.MustRun(dig.New()) })
}

func TestWorkerRunner_MustRun_PanicsOnError(t *testing.T) {
	t.Parallel()

	boom := errors.New("consumer group failed")
	r := &WorkerRunner{runFn: func(*dig.Container) error { return boom }}
	require.PanicsWithError(t, boom.Error(), func() { r.MustRun(dig.New()) })
}

func TestWorkerRun_NilConsumer(t *testing.T) {
	t.Parallel()

	err := workerRun(workerIn{Ctx: context.Background(), Logger: logx.Nop()})
	require.Error(t, err)
	require.Contains(t, err.Error(), "misconfigured")
}
