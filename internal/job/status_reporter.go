package job

import (
	"context"
	"sync"

	"erp2mirror/internal/app"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StatusReporter 每小时输出一次同步状态，作为心跳日志。
type StatusReporter struct {
	status func() app.Status
	logger *zap.Logger
	cron   *cron.Cron
}

func NewStatusReporter(status func() app.Status, logger *zap.Logger) *StatusReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusReporter{status: status, logger: logger}
}

// Start 启动按小时执行的状态日志，返回停止函数。
func (r *StatusReporter) Start(parent context.Context) context.CancelFunc {
	if r == nil {
		return func() {}
	}
	c := newCron(r.logger)
	if _, err := c.AddFunc("@hourly", r.Report); err != nil {
		r.logger.Error("failed to register status heartbeat", zap.Error(err))
		return func() {}
	}
	r.cron = c
	c.Start()
	r.logger.Info("status heartbeat started")

	var once sync.Once
	stop := func() {
		once.Do(func() {
			ctx := r.cron.Stop()
			<-ctx.Done()
			r.logger.Info("status heartbeat stopped")
		})
	}

	go func() {
		<-parent.Done()
		stop()
	}()

	return stop
}

// Report 立即输出一次状态。
func (r *StatusReporter) Report() {
	if r.status == nil {
		return
	}
	st := r.status()
	fields := []zap.Field{
		zap.Bool("running", st.Running),
		zap.Bool("schedule_enabled", st.ScheduleEnabled),
		zap.String("schedule", st.Schedule),
	}
	if last := st.LastResult; last != nil {
		fields = append(fields,
			zap.String("run_id", last.RunID),
			zap.Bool("last_success", last.Success),
			zap.Time("last_finished_at", last.FinishedAt))
		for _, es := range last.Entities {
			fields = append(fields, zap.Int(string(es.Entity)+"_writes", es.Writes()))
		}
	}
	r.logger.Info("sync status heartbeat", fields...)
}
