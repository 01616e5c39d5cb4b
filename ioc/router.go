package ioc

import (
	"erp2mirror/internal/app"
	"erp2mirror/internal/router"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// InitSyncHandler 构建同步 HTTP 处理器。
func InitSyncHandler(svc *app.Service, logger *zap.Logger) *router.SyncHandler {
	return router.NewSyncHandler(svc, logger.Named("http"))
}

// InitGinEngine 构建 gin 引擎。
func InitGinEngine(syncHandler *router.SyncHandler, gatherer prometheus.Gatherer) *gin.Engine {
	return router.NewEngine(syncHandler, gatherer)
}
