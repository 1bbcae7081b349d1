package kafka

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"

	"courier-dispatch/internal/domain"
	testlog "courier-dispatch/internal/testutil"
)

type fakeGroup struct {
	consume func(context.Context) error
	closed  atomic.Bool
}

func (g *fakeGroup) Consume(ctx context.Context, _ []string, _ sarama.ConsumerGroupHandler) error {
	return g.consume(ctx)
}
func (g *fakeGroup) Errors() <-chan error {
	ch := make(chan error)
	close(ch)
	return ch
}
func (g *fakeGroup) Close() error              { g.closed.Store(true); return nil }
func (g *fakeGroup) Pause(map[string][]int32)  {}
func (g *fakeGroup) Resume(map[string][]int32) {}
func (g *fakeGroup) PauseAll()                 {}
func (g *fakeGroup) ResumeAll()                {}

func TestNewConsumer_SkipsWhenNoKafkaConfig(t *testing.T) {
	t.Parallel()

	rec := testlog.New()

	got, err := NewConsumer(rec.Logger(), nil, "gid", "topic", func(context.Context, domain.MatchJob) error { return nil })
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = NewConsumer(rec.Logger(), []string{"b:9092"}, "", "topic", nil)
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = NewConsumer(rec.Logger(), []string{"b:9092"}, "gid", "   ", nil)
	require.NoError(t, err)
	require.Nil(t, got)

	// a nil consumer is safe to run and close
	require.NoError(t, got.Run(context.Background()))
	require.NoError(t, got.Close())
}

// Not parallel: swaps the package-level constructor.
func TestNewConsumer_ReturnsErrorWhenSaramaFails(t *testing.T) {
	orig := newConsumerGroup
	t.Cleanup(func() { newConsumerGroup = orig })

	sentinel := errors.New("boom")
	newConsumerGroup = func(_ []string, _ string, _ *sarama.Config) (sarama.ConsumerGroup, error) {
		return nil, sentinel
	}

	got, err := NewConsumer(testlog.New().Logger(), []string{"b:9092"}, "gid", "topic", nil)
	require.ErrorIs(t, err, sentinel)
	require.Nil(t, got)
}

func TestConsumer_Run_RetriesConsumeErrorsUntilCancelled(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	g := &fakeGroup{consume: func(context.Context) error {
		if calls.Add(1) == 3 {
			cancel()
			return nil
		}
		return errors.New("broker gone")
	}}
	c := &Consumer{group: g, topic: "t", logger: rec.Logger(), backoff: time.Millisecond}

	err := c.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, int32(3), calls.Load())
	require.True(t, rec.Has("error", "kafka consume error"))

	require.NoError(t, c.Close())
	require.True(t, g.closed.Load())
}
