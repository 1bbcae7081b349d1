package notifier_test

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/gateway/notifier"
	"courier-dispatch/internal/notify"
	"courier-dispatch/internal/transport/notifyrpc"
)

type memChannel struct {
	id   string
	msgs chan []byte
}

func (c *memChannel) ID() string { return c.id }
func (c *memChannel) Send(_ context.Context, b []byte) error {
	c.msgs <- b
	return nil
}
func (c *memChannel) Close() error { return nil }

func dialRouter(t *testing.T, router *notify.Router, serverToken, clientToken string) *notifier.GRPCGateway {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := notifyrpc.NewGRPCServer(notifyrpc.NewServer(router, nil), serverToken, nil)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := notifier.Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return notifier.NewGRPCGateway(conn, clientToken)
}

func TestGRPCGateway_DeliversThroughRouter(t *testing.T) {
	t.Parallel()

	router := notify.NewRouter(0, nil, nil)
	t.Cleanup(router.Close)
	ch := &memChannel{id: "ws-1", msgs: make(chan []byte, 1)}
	require.NoError(t, router.Register(ch, "courier-1"))

	gw := dialRouter(t, router, "secret", "secret")

	n, err := gw.Deliver(context.Background(), "courier-1", domain.DeliveryStatusUpdated(&domain.Delivery{
		ID: "d1", Status: domain.StatusAccepted, AssignedCourier: "courier-1",
	}))
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.JSONEq(t,
		`{"event":"delivery_status_updated","delivery_id":"d1","status":"accepted","courier_id":"courier-1"}`,
		string(<-ch.msgs))

	n, err = gw.Deliver(context.Background(), "nobody", domain.Notification{Event: "x"})
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestGRPCGateway_WrongToken(t *testing.T) {
	t.Parallel()

	router := notify.NewRouter(0, nil, nil)
	t.Cleanup(router.Close)
	gw := dialRouter(t, router, "secret", "other")

	err := gw.Notify(context.Background(), "u1", domain.Notification{Event: "x"})
	require.Error(t, err)
	require.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestNewGRPCGateway_NilConn(t *testing.T) {
	t.Parallel()

	require.Nil(t, notifier.NewGRPCGateway(nil, ""))
}
