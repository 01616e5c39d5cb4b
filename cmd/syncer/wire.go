//go:build wireinject

package main

import (
	"context"

	"erp2mirror/internal/app"
	"erp2mirror/ioc"
	"github.com/google/wire"
)

func InitSyncer(ctx context.Context, path ioc.ConfigPath) (*app.Service, func(), error) {
	panic(wire.Build(ioc.SyncSet))
}
