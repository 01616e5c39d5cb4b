package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"erp2mirror/internal/app"
	"erp2mirror/internal/job"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// HTTPServer 封装 HTTP 服务运行所需的依赖。
type HTTPServer struct {
	Engine    *gin.Engine
	Logger    *zap.Logger
	Config    app.Config
	Service   *app.Service
	Job       *job.Scheduler
	Heartbeat *job.StatusReporter
}

// NewHTTPServer 构建 HTTPServer。
func NewHTTPServer(engine *gin.Engine, logger *zap.Logger, cfg app.Config, svc *app.Service, scheduler *job.Scheduler, heartbeat *job.StatusReporter) *HTTPServer {
	return &HTTPServer{
		Engine:    engine,
		Logger:    logger,
		Config:    cfg,
		Service:   svc,
		Job:       scheduler,
		Heartbeat: heartbeat,
	}
}

// Run 启动 HTTP 服务及相关后台任务，ctx 取消后优雅退出。
func (s *HTTPServer) Run(ctx context.Context) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	listen := strings.TrimSpace(s.Config.HTTP.Addr)
	if listen == "" {
		listen = ":8080"
	}

	if s.Job != nil {
		cancelJob := s.Job.Start(ctx)
		defer cancelJob()
	}
	if s.Heartbeat != nil {
		cancelHeartbeat := s.Heartbeat.Start(ctx)
		defer cancelHeartbeat()
	}

	if s.Config.Sync.InitialSync && s.Service != nil {
		// 后台执行，服务先开始监听
		job.RunInitial(ctx, s.Service.TriggerFullPass, logger)
	} else {
		logger.Info("initial sync skipped by configuration")
	}

	srv := &http.Server{Addr: listen, Handler: s.Engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("listen", listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

// Shutdown 刷新日志缓冲，镜像库等资源由 wire 的 cleanup 释放。
func (s *HTTPServer) Shutdown(context.Context) {
	if s.Logger != nil {
		_ = s.Logger.Sync()
	}
}
