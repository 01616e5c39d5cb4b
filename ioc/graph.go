package ioc

import (
	"context"

	"erp2mirror/internal/app"
	"erp2mirror/internal/graph"
	"go.uber.org/zap"
)

// InitGraphClient 构建图数据库客户端，未启用投影时返回 nil。
func InitGraphClient(ctx context.Context, cfg app.Config, logger *zap.Logger) (*graph.Client, func(), error) {
	if !cfg.Neo4j.Enabled {
		return nil, func() {}, nil
	}
	client, err := graph.NewClient(ctx, graph.Config{
		URI:                  cfg.Neo4j.URI,
		Username:             cfg.Neo4j.Username,
		Password:             cfg.Neo4j.Password,
		Database:             cfg.Neo4j.Database,
		MaxConnectionPool:    cfg.Neo4j.MaxConnectionPool,
		ConnectionTimeoutSec: cfg.Neo4j.ConnectTimeoutSecond,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := graph.NewSchemaManager(client).Ensure(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, nil, err
	}
	cleanup := func() {
		if err := client.Close(context.Background()); err != nil {
			logger.Warn("close neo4j client failed", zap.Error(err))
		}
	}
	return client, cleanup, nil
}

// InitProjector 构建资格图投影，未启用时返回 nil，对账器跳过投影。
func InitProjector(cfg app.Config, client *graph.Client, logger *zap.Logger) app.Sink {
	if client == nil {
		return nil
	}
	return graph.NewProjector(client, cfg.Neo4j.BatchSize, logger.Named("graph"))
}
