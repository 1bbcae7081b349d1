package notifier

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/transport/notifyrpc"
)

// Dial opens a client connection to the notify endpoint of the API process.
func Dial(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("notify gateway: dial %s: %w", target, err)
	}
	return conn, nil
}

// GRPCGateway forwards notifications to the process that holds the
// realtime channels.
type GRPCGateway struct {
	conn  grpc.ClientConnInterface
	token string
}

// NewGRPCGateway creates a gateway over conn. token is sent as a bearer
// credential when non-empty.
func NewGRPCGateway(conn grpc.ClientConnInterface, token string) *GRPCGateway {
	if conn == nil {
		return nil
	}
	return &GRPCGateway{conn: conn, token: token}
}

// Deliver sends n to userID and returns the number of channels reached.
func (g *GRPCGateway) Deliver(ctx context.Context, userID string, n domain.Notification) (int, error) {
	req, err := notifyrpc.EncodeRequest(userID, n)
	if err != nil {
		return 0, fmt.Errorf("notify gateway: %w", err)
	}
	if g.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, notifyrpc.MetadataAuthorization, "Bearer "+g.token)
	}
	resp := new(structpb.Struct)
	if err := g.conn.Invoke(ctx, notifyrpc.MethodNotify, req, resp); err != nil {
		return 0, fmt.Errorf("notify gateway: Notify: %w", err)
	}
	return notifyrpc.DecodeResponse(resp), nil
}

// Notify implements the delivery service notifier.
func (g *GRPCGateway) Notify(ctx context.Context, userID string, n domain.Notification) error {
	_, err := g.Deliver(ctx, userID, n)
	return err
}
