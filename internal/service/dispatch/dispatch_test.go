package dispatch_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/service/dispatch"
	testlog "courier-dispatch/internal/testutil"
)

type stubCounter struct {
	active map[string]int
	err    error
	calls  []string
}

func (s *stubCounter) CountActive(_ context.Context, courierID string) (int, error) {
	s.calls = append(s.calls, courierID)
	if s.err != nil {
		return 0, s.err
	}
	return s.active[courierID], nil
}

type stubLocations struct {
	fn func(context.Context) ([]domain.CourierLocation, error)
}

func (s stubLocations) List(ctx context.Context) ([]domain.CourierLocation, error) {
	if s.fn == nil {
		return nil, nil
	}
	return s.fn(ctx)
}

func locations(locs ...domain.CourierLocation) stubLocations {
	return stubLocations{fn: func(context.Context) ([]domain.CourierLocation, error) { return locs, nil }}
}

func at(id string, lat, lng float64) domain.CourierLocation {
	return domain.CourierLocation{CourierID: id, Point: domain.Coordinate{Lat: lat, Lng: lng}}
}

// 1 degree of latitude is ~111.19 km.
const kmPerDegree = 2 * math.Pi * domain.EarthRadiusKm / 360

var pickup = domain.Coordinate{Lat: 10, Lng: 20}

func TestCapacityGate(t *testing.T) {
	t.Parallel()

	counter := &stubCounter{active: map[string]int{"free": 0, "one": 1, "full": 2, "over": 3}}
	gate := dispatch.NewCapacityGate(counter, 2)
	require.Equal(t, 2, gate.Limit())

	for id, want := range map[string]bool{"free": true, "one": true, "full": false, "over": false, "unknown": true} {
		ok, err := gate.IsEligible(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, want, ok, id)
	}
}

func TestCapacityGate_ConfigurableLimit(t *testing.T) {
	t.Parallel()

	counter := &stubCounter{active: map[string]int{"c": 2}}

	ok, err := dispatch.NewCapacityGate(counter, 3).IsEligible(context.Background(), "c")
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, dispatch.DefaultCapacityLimit, dispatch.NewCapacityGate(counter, 0).Limit())
}

func TestCapacityGate_Error(t *testing.T) {
	t.Parallel()

	boom := errors.New("db down")
	gate := dispatch.NewCapacityGate(&stubCounter{err: boom}, 2)

	ok, err := gate.IsEligible(context.Background(), "c")
	require.ErrorIs(t, err, boom)
	require.False(t, ok)
}

func TestMatcher_NearestWins(t *testing.T) {
	t.Parallel()

	counter := &stubCounter{}
	m := dispatch.NewMatcher(
		locations(
			at("far", pickup.Lat+5/kmPerDegree, pickup.Lng),
			at("near", pickup.Lat+1/kmPerDegree, pickup.Lng),
		),
		dispatch.NewCapacityGate(counter, 2),
		nil,
	)

	match, ok, err := m.FindCourier(context.Background(), pickup)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "near", match.CourierID)
	require.InDelta(t, 1.0, match.DistanceKm, 1e-6)
	require.Equal(t, []string{"near"}, counter.calls)
}

func TestMatcher_SkipsFullCouriers(t *testing.T) {
	t.Parallel()

	counter := &stubCounter{active: map[string]int{"near": 2}}
	m := dispatch.NewMatcher(
		locations(
			at("near", pickup.Lat+1/kmPerDegree, pickup.Lng),
			at("far", pickup.Lat+5/kmPerDegree, pickup.Lng),
		),
		dispatch.NewCapacityGate(counter, 2),
		nil,
	)

	match, ok, err := m.FindCourier(context.Background(), pickup)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "far", match.CourierID)
	require.Equal(t, []string{"near", "far"}, counter.calls)
}

func TestMatcher_NoneEligible(t *testing.T) {
	t.Parallel()

	counter := &stubCounter{active: map[string]int{"a": 2, "b": 5}}
	m := dispatch.NewMatcher(
		locations(at("a", 10, 20), at("b", 11, 20)),
		dispatch.NewCapacityGate(counter, 2),
		nil,
	)

	match, ok, err := m.FindCourier(context.Background(), pickup)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, dispatch.Match{}, match)
}

func TestMatcher_NoCouriers(t *testing.T) {
	t.Parallel()

	m := dispatch.NewMatcher(locations(), dispatch.NewCapacityGate(&stubCounter{}, 2), nil)

	_, ok, err := m.FindCourier(context.Background(), pickup)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMatcher_TieGoesToSmallestID(t *testing.T) {
	t.Parallel()

	m := dispatch.NewMatcher(
		locations(at("c-9", 11, 20), at("c-2", 11, 20), at("c-5", 11, 20)),
		dispatch.NewCapacityGate(&stubCounter{}, 2),
		nil,
	)

	for i := 0; i < 5; i++ {
		match, ok, err := m.FindCourier(context.Background(), pickup)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "c-2", match.CourierID)
	}
}

func TestMatcher_SkipsInvalidLocations(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	m := dispatch.NewMatcher(
		locations(
			at("broken", 95, 20),
			at("nan", math.NaN(), 20),
			at("ok", 12, 20),
		),
		dispatch.NewCapacityGate(&stubCounter{}, 2),
		rec.Logger(),
	)

	match, ok, err := m.FindCourier(context.Background(), pickup)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "ok", match.CourierID)
	require.Equal(t, 2, rec.Count("warn", "skipping courier with invalid location"))
}

func TestMatcher_Errors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	m := dispatch.NewMatcher(
		stubLocations{fn: func(context.Context) ([]domain.CourierLocation, error) { return nil, boom }},
		dispatch.NewCapacityGate(&stubCounter{}, 2),
		nil,
	)
	_, _, err := m.FindCourier(context.Background(), pickup)
	require.ErrorIs(t, err, boom)

	m = dispatch.NewMatcher(locations(at("a", 10, 20)), dispatch.NewCapacityGate(&stubCounter{err: boom}, 2), nil)
	_, ok, err := m.FindCourier(context.Background(), pickup)
	require.ErrorIs(t, err, boom)
	require.False(t, ok)
}
