package notifyrpc

import (
	"context"
	"crypto/subtle"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "courierdispatch.notify.v1.Notifier"

// MethodNotify is the full method name of the Notify RPC.
const MethodNotify = "/" + ServiceName + "/Notify"

// MetadataAuthorization carries the shared token.
const MetadataAuthorization = "authorization"

// NotifierServer is the server API of the Notifier service.
type NotifierServer interface {
	Notify(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the Notifier service. Messages are
// google.protobuf.Struct, so no generated code is needed on either side.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*NotifierServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Notify", Handler: notifyHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "courierdispatch/notify/v1/notify.proto",
}

func notifyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NotifierServer).Notify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodNotify}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(NotifierServer).Notify(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Deliverer sends a notification to every live channel of a user.
type Deliverer interface {
	Deliver(ctx context.Context, userID string, n domain.Notification) (int, error)
}

// Server exposes a Deliverer over gRPC so that processes without live
// channels can reach them.
type Server struct {
	deliverer Deliverer
	logger    logx.Logger
}

// NewServer creates a Server.
func NewServer(d Deliverer, logger logx.Logger) *Server {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Server{deliverer: d, logger: logger}
}

// Notify implements NotifierServer.
func (s *Server) Notify(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, n, err := DecodeRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	delivered, err := s.deliverer.Deliver(ctx, userID, n)
	if err != nil {
		s.logger.Error("notify rpc failed",
			logx.String("user_id", userID),
			logx.String("event", n.Event),
			logx.Err(err),
		)
		return nil, status.Error(codes.Internal, "deliver notification")
	}
	return EncodeResponse(delivered), nil
}

// Register adds the Notifier service to gs.
func Register(gs grpc.ServiceRegistrar, srv NotifierServer) {
	gs.RegisterService(&ServiceDesc, srv)
}

// NewGRPCServer builds a gRPC server with the Notifier service, request
// logging and, when token is set, shared token authentication.
func NewGRPCServer(srv NotifierServer, token string, logger logx.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = logx.Nop()
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(
		LoggingInterceptor(logger),
		TokenInterceptor(token),
	))
	gs := grpc.NewServer(opts...)
	Register(gs, srv)
	return gs
}

// TokenInterceptor rejects calls without "authorization: Bearer <token>".
// An empty token disables the check.
func TokenInterceptor(token string) grpc.UnaryServerInterceptor {
	want := []byte("Bearer " + token)
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if token == "" {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		for _, v := range md.Get(MetadataAuthorization) {
			if subtle.ConstantTimeCompare([]byte(v), want) == 1 {
				return handler(ctx, req)
			}
		}
		return nil, status.Error(codes.Unauthenticated, "invalid notify token")
	}
}

// LoggingInterceptor logs failed calls and the latency of every call at debug level.
func LoggingInterceptor(logger logx.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []logx.Field{
			logx.String("method", info.FullMethod),
			logx.String("code", status.Code(err).String()),
			logx.Duration("duration", time.Since(start)),
		}
		if err != nil {
			logger.Warn("grpc call failed", append(fields, logx.Err(err))...)
		} else {
			logger.Debug("grpc call", fields...)
		}
		return resp, err
	}
}
