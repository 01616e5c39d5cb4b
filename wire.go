//go:build wireinject

package main

import (
	"context"

	"erp2mirror/ioc"
	"erp2mirror/pkg/server"
	"github.com/google/wire"
)

func InitApp(ctx context.Context, path ioc.ConfigPath) (*server.HTTPServer, func(), error) {
	panic(wire.Build(
		ioc.SyncSet,
		ioc.InitMetrics,
		ioc.InitSyncHandler,
		ioc.InitGinEngine,
		ioc.InitScheduler,
		ioc.InitStatusReporter,
		server.NewHTTPServer,
	))
}
