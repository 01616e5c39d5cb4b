package ioc

import (
	"context"
	"time"

	"erp2mirror/internal/app"
	"erp2mirror/internal/mirror"
	"go.uber.org/zap"
)

// InitMirrorStore 打开镜像库并确保表存在，driver=memory 时使用进程内实现。
func InitMirrorStore(ctx context.Context, cfg app.Config, logger *zap.Logger) (mirror.Store, func(), error) {
	if cfg.Mirror.Driver == "memory" {
		logger.Warn("mirror uses in-process memory store, data is lost on exit")
		return mirror.NewMemoryStore(), func() {}, nil
	}
	store, err := mirror.Open(ctx, mirror.Config{
		Driver:          cfg.Mirror.Driver,
		DSN:             cfg.Mirror.DSN,
		MaxOpenConns:    cfg.Mirror.MaxOpenConns,
		ConnectAttempts: cfg.Mirror.ConnectAttempts,
		ConnectBackoff:  time.Duration(cfg.Mirror.ConnectBackoffSeconds) * time.Second,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := mirror.NewSchemaManager(store).Ensure(ctx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("close mirror store failed", zap.Error(err))
		}
	}
	logger.Info("mirror store ready", zap.String("driver", cfg.Mirror.Driver))
	return store, cleanup, nil
}
