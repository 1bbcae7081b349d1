package matching_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/metrics"
	"courier-dispatch/internal/retry"
	"courier-dispatch/internal/service/dispatch"
	"courier-dispatch/internal/service/matching"
)

type stubReader struct {
	fn func(context.Context, string) (*domain.Delivery, error)
}

func (s stubReader) Get(ctx context.Context, id string) (*domain.Delivery, error) {
	return s.fn(ctx, id)
}

type stubFinder struct {
	fn    func(context.Context, domain.Coordinate) (dispatch.Match, bool, error)
	calls int
}

func (s *stubFinder) FindCourier(ctx context.Context, p domain.Coordinate) (dispatch.Match, bool, error) {
	s.calls++
	return s.fn(ctx, p)
}

type stubAssigner struct {
	fn    func(context.Context, string, string) (bool, error)
	calls int
}

func (s *stubAssigner) Assign(ctx context.Context, deliveryID, courierID string) (bool, error) {
	s.calls++
	return s.fn(ctx, deliveryID, courierID)
}

func pending(id string) *domain.Delivery {
	return &domain.Delivery{ID: id, Status: domain.StatusPending, Pickup: domain.Coordinate{Lat: 1, Lng: 1}}
}

func readerOf(d *domain.Delivery) stubReader {
	return stubReader{fn: func(context.Context, string) (*domain.Delivery, error) { return d, nil }}
}

func found(id string) *stubFinder {
	return &stubFinder{fn: func(context.Context, domain.Coordinate) (dispatch.Match, bool, error) {
		return dispatch.Match{CourierID: id, DistanceKm: 1}, true, nil
	}}
}

func job(id string) domain.MatchJob {
	return domain.MatchJob{DeliveryID: id, Reason: domain.MatchReasonCreated, EnqueuedAt: time.Now()}
}

func TestProcessor_Assigns(t *testing.T) {
	t.Parallel()

	m := metrics.NewDispatch()
	assigner := &stubAssigner{fn: func(_ context.Context, did, cid string) (bool, error) {
		require.Equal(t, "d1", did)
		require.Equal(t, "c1", cid)
		return true, nil
	}}
	p := matching.NewProcessor(readerOf(pending("d1")), found("c1"), assigner, m, nil)

	require.NoError(t, p.Handle(context.Background(), job("d1")))
	require.Equal(t, 1, assigner.calls)
	require.Equal(t, 1.0, testutil.ToFloat64(m.Matches.WithLabelValues(metrics.OutcomeAssigned)))
}

func TestProcessor_MissingDeliveryIsPermanent(t *testing.T) {
	t.Parallel()

	p := matching.NewProcessor(readerOf(nil), found("c1"), &stubAssigner{}, nil, nil)

	err := p.Handle(context.Background(), job("gone"))
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.True(t, retry.IsPermanent(err))

	err = p.Handle(context.Background(), job(""))
	require.True(t, retry.IsPermanent(err))
}

func TestProcessor_InvalidPickupIsPermanent(t *testing.T) {
	t.Parallel()

	d := pending("d1")
	d.Pickup = domain.Coordinate{Lat: 100, Lng: 0}
	finder := found("c1")
	p := matching.NewProcessor(readerOf(d), finder, &stubAssigner{}, nil, nil)

	err := p.Handle(context.Background(), job("d1"))
	require.ErrorIs(t, err, apperr.ErrInvalid)
	require.True(t, retry.IsPermanent(err))
	require.Zero(t, finder.calls)
}

func TestProcessor_NotPendingIsSkipped(t *testing.T) {
	t.Parallel()

	m := metrics.NewDispatch()
	d := pending("d1")
	d.Status = domain.StatusAccepted
	finder := found("c1")
	p := matching.NewProcessor(readerOf(d), finder, &stubAssigner{}, m, nil)

	require.NoError(t, p.Handle(context.Background(), job("d1")))
	require.Zero(t, finder.calls)
	require.Equal(t, 1.0, testutil.ToFloat64(m.Matches.WithLabelValues(metrics.OutcomeSkipped)))
}

func TestProcessor_NoMatchLeavesPending(t *testing.T) {
	t.Parallel()

	m := metrics.NewDispatch()
	finder := &stubFinder{fn: func(context.Context, domain.Coordinate) (dispatch.Match, bool, error) {
		return dispatch.Match{}, false, nil
	}}
	assigner := &stubAssigner{}
	p := matching.NewProcessor(readerOf(pending("d1")), finder, assigner, m, nil)

	require.NoError(t, p.Handle(context.Background(), job("d1")))
	require.Zero(t, assigner.calls)
	require.Equal(t, 1.0, testutil.ToFloat64(m.Matches.WithLabelValues(metrics.OutcomeNoMatch)))
}

func TestProcessor_ConflictIsRetryable(t *testing.T) {
	t.Parallel()

	m := metrics.NewDispatch()
	assigner := &stubAssigner{fn: func(context.Context, string, string) (bool, error) {
		return false, apperr.ErrConflict
	}}
	p := matching.NewProcessor(readerOf(pending("d1")), found("c1"), assigner, m, nil)

	err := p.Handle(context.Background(), job("d1"))
	require.ErrorIs(t, err, apperr.ErrConflict)
	require.False(t, retry.IsPermanent(err))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Matches.WithLabelValues(metrics.OutcomeConflict)))
}

func TestProcessor_TransientErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("db down")
	p := matching.NewProcessor(
		stubReader{fn: func(context.Context, string) (*domain.Delivery, error) { return nil, boom }},
		found("c1"), &stubAssigner{}, nil, nil,
	)
	err := p.Handle(context.Background(), job("d1"))
	require.ErrorIs(t, err, boom)
	require.False(t, retry.IsPermanent(err))

	finder := &stubFinder{fn: func(context.Context, domain.Coordinate) (dispatch.Match, bool, error) {
		return dispatch.Match{}, false, boom
	}}
	p = matching.NewProcessor(readerOf(pending("d1")), finder, &stubAssigner{}, nil, nil)
	require.ErrorIs(t, p.Handle(context.Background(), job("d1")), boom)
}
