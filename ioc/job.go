package ioc

import (
	"erp2mirror/internal/app"
	"erp2mirror/internal/job"
	"go.uber.org/zap"
)

// InitScheduler 构建定时任务调度器并关联到服务，使状态接口可以切换开关。
func InitScheduler(cfg app.Config, svc *app.Service, logger *zap.Logger) *job.Scheduler {
	scheduler := job.NewScheduler(cfg.Sync.Cron, cfg.Sync.ScheduleEnabled, svc.TriggerFullPass, logger.Named("scheduler"))
	svc.AttachSchedule(scheduler)
	return scheduler
}

// InitStatusReporter 构建每小时状态心跳。
func InitStatusReporter(svc *app.Service, logger *zap.Logger) *job.StatusReporter {
	return job.NewStatusReporter(svc.Status, logger.Named("heartbeat"))
}
