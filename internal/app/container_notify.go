package app

import (
	"go.uber.org/dig"
	"google.golang.org/grpc"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/metrics"
	"courier-dispatch/internal/notify"
	"courier-dispatch/internal/transport/notifyrpc"
)

func registerNotify(container *dig.Container) error {
	return provideAll(container,
		func(cfg *config.Config, m *metrics.Notify, logger logx.Logger) *notify.Router {
			return notify.NewRouter(cfg.Notify.SendTimeout, m, logger)
		},
		func(cfg *config.Config, router *notify.Router, logger logx.Logger) *grpc.Server {
			return notifyrpc.NewGRPCServer(notifyrpc.NewServer(router, logger), cfg.Notify.Token, logger)
		},
	)
}
