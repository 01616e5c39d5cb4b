package job

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"erp2mirror/internal/app"
	"erp2mirror/internal/domain"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const defaultCronSpec = "0 */5 * * * *"

const (
	TriggerCron    = "cron"
	TriggerInitial = "initial"
)

// TriggerFunc 执行一次完整同步，与手动触发走同一条路径。
type TriggerFunc func(ctx context.Context, trigger string) domain.SyncResult

// parser 与配置校验使用同一套字段，秒字段可选。
var parser = cron.NewParser(app.CronFields)

// Scheduler 按 cron 表达式触发同步，开关可在运行时切换而无需重启。
type Scheduler struct {
	cronExpr string
	logger   *zap.Logger
	cron     *cron.Cron
	trigger  TriggerFunc
	parent   context.Context
	enabled  atomic.Bool
}

// NewScheduler 构建调度器，spec 为空时使用每 5 分钟一次。
func NewScheduler(spec string, enabled bool, trigger TriggerFunc, logger *zap.Logger) *Scheduler {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = defaultCronSpec
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{cronExpr: spec, logger: logger, trigger: trigger}
	s.enabled.Store(enabled)
	return s
}

func (s *Scheduler) Spec() string { return s.cronExpr }

func (s *Scheduler) Enabled() bool { return s.enabled.Load() }

// SetEnabled 关闭后 cron 仍在运行，只是到点时跳过。
func (s *Scheduler) SetEnabled(enabled bool) {
	s.enabled.Store(enabled)
	s.logger.Info("sync schedule switched", zap.Bool("enabled", enabled))
}

// Start 启动调度器，返回用于停止任务的函数。
func (s *Scheduler) Start(parent context.Context) context.CancelFunc {
	if s == nil {
		return func() {}
	}
	s.parent = parent
	c := newCron(s.logger, cron.WithParser(parser))
	id, err := c.AddFunc(s.cronExpr, s.runOnce)
	if err != nil {
		s.logger.Error("failed to register cron job", zap.String("cron", s.cronExpr), zap.Error(err))
		return func() {}
	}
	s.cron = c
	c.Start()
	entry := c.Entry(id)
	s.logger.Info("sync scheduler started",
		zap.String("cron", s.cronExpr),
		zap.Bool("enabled", s.Enabled()),
		zap.Time("next", entry.Next))

	var once sync.Once
	stop := func() {
		once.Do(func() {
			ctx := s.cron.Stop()
			<-ctx.Done()
			s.logger.Info("sync scheduler stopped")
		})
	}

	go func() {
		<-parent.Done()
		stop()
	}()

	return stop
}

func (s *Scheduler) runOnce() {
	if !s.Enabled() {
		s.logger.Debug("sync schedule disabled, skip tick")
		return
	}
	if s.trigger == nil {
		s.logger.Warn("sync trigger not configured")
		return
	}
	runCtx := context.Background()
	if s.parent != nil {
		if s.parent.Err() != nil {
			s.logger.Info("scheduler context cancelled, skip sync")
			return
		}
		runCtx = s.parent
	}
	start := time.Now()
	result := s.trigger(runCtx, TriggerCron)
	elapsed := time.Since(start)
	if result.Success {
		s.logger.Info("scheduled sync completed", zap.String("run_id", result.RunID), zap.Duration("duration", elapsed))
	} else {
		s.logger.Warn("scheduled sync did not succeed",
			zap.String("run_id", result.RunID),
			zap.String("message", result.Message),
			zap.Duration("duration", elapsed))
	}
}

// RunInitial 在后台执行一次启动同步，返回的 channel 在完成后关闭。
func RunInitial(ctx context.Context, trigger TriggerFunc, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if logger == nil {
		logger = zap.NewNop()
	}
	go func() {
		defer close(done)
		logger.Info("initial sync started")
		result := trigger(ctx, TriggerInitial)
		logger.Info("initial sync finished", zap.Bool("success", result.Success), zap.String("message", result.Message))
	}()
	return done
}
