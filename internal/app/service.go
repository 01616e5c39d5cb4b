package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"erp2mirror/internal/domain"
	"erp2mirror/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrSyncInProgress 已有同步在执行时拒绝新的触发。
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrUnknownEntity 实体类型没有注册对应的流程。
	ErrUnknownEntity = errors.New("unknown entity type")
)

// ScheduleControl 是定时任务对外暴露的开关，由 job.Scheduler 实现。
type ScheduleControl interface {
	Enabled() bool
	SetEnabled(enabled bool)
	Spec() string
}

// Probe 是 validate 命令执行的一项连通性检查。
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Status 是编排器的当前状态。
type Status struct {
	Running         bool               `json:"running"`
	LastResult      *domain.SyncResult `json:"last_result"`
	ScheduleEnabled bool               `json:"schedule_enabled"`
	Schedule        string             `json:"schedule"`
}

// Service 编排各实体类型的同步流程，同一时间最多只有一次同步在执行。
type Service struct {
	passes []Pass
	probes []Probe
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	running  bool
	last     *domain.SyncResult
	stats    map[domain.EntityType]domain.SyncStats
	schedule ScheduleControl
}

// NewService 按注册顺序保存流程，全量同步时依次执行。
func NewService(passes []Pass, probes []Probe, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		passes: passes,
		probes: probes,
		logger: logger,
		now:    time.Now,
		stats:  make(map[domain.EntityType]domain.SyncStats),
	}
}

// AttachSchedule 关联定时任务，状态接口据此返回开关和 cron 表达式。
func (s *Service) AttachSchedule(control ScheduleControl) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedule = control
}

func (s *Service) tryStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Service) finish() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// TriggerFullPass 依次执行全部流程并汇总结果，从不返回 error。
// 已有同步在执行时立即返回 success=false 且没有 RunID，不改变任何状态。
func (s *Service) TriggerFullPass(ctx context.Context, trigger string) domain.SyncResult {
	started := s.now()
	if !s.tryStart() {
		metrics.SyncPasses.WithLabelValues("rejected").Inc()
		s.logger.Warn("sync trigger rejected, pass already running", zap.String("trigger", trigger))
		return domain.SyncResult{
			Trigger:    trigger,
			StartedAt:  started,
			FinishedAt: started,
			Success:    false,
			Message:    ErrSyncInProgress.Error(),
		}
	}
	defer s.finish()

	result := domain.SyncResult{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: started,
		Success:   true,
		Entities:  make([]domain.SyncStats, 0, len(s.passes)),
	}
	logger := s.logger.With(zap.String("run_id", result.RunID))
	logger.Info("sync pass started", zap.String("trigger", trigger))

	var failed []string
	for _, pass := range s.passes {
		stats := s.runPass(ctx, pass, logger)
		if !stats.Success {
			result.Success = false
			failed = append(failed, string(pass.Entity()))
		}
		result.Entities = append(result.Entities, stats)
	}

	result.FinishedAt = s.now()
	result.DurationMS = result.FinishedAt.Sub(started).Milliseconds()
	if len(failed) > 0 {
		result.Message = fmt.Sprintf("failed entities: %v", failed)
	} else {
		result.Message = "ok"
	}

	s.mu.Lock()
	last := result
	s.last = &last
	s.mu.Unlock()

	outcome := "success"
	if !result.Success {
		outcome = "failure"
	}
	metrics.SyncPasses.WithLabelValues(outcome).Inc()
	metrics.SyncDuration.Observe(result.FinishedAt.Sub(started).Seconds())
	logger.Info("sync pass finished",
		zap.Bool("success", result.Success),
		zap.Duration("duration", result.FinishedAt.Sub(started)))
	return result
}

// TriggerEntityPass 只同步一种实体，更新该类型的统计但不改变 last result。
// 拉取失败体现在返回的 stats 中，error 只用于拒绝触发。
func (s *Service) TriggerEntityPass(ctx context.Context, entity domain.EntityType) (domain.SyncStats, error) {
	pass, ok := s.passFor(entity)
	if !ok {
		return domain.SyncStats{}, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	if !s.tryStart() {
		metrics.SyncPasses.WithLabelValues("rejected").Inc()
		return domain.SyncStats{}, ErrSyncInProgress
	}
	defer s.finish()
	logger := s.logger.With(zap.String("run_id", uuid.NewString()))
	return s.runPass(ctx, pass, logger), nil
}

func (s *Service) runPass(ctx context.Context, pass Pass, logger *zap.Logger) domain.SyncStats {
	entity := pass.Entity()
	stats, err := safeRun(ctx, pass)
	stats.Entity = entity
	if stats.StartedAt.IsZero() {
		stats.StartedAt = s.now()
	}
	stats.Finish(s.now(), err)
	if err != nil {
		logger.Error("entity pass failed", zap.String("entity", string(entity)), zap.Error(err))
	} else {
		logger.Info("entity pass finished",
			zap.String("entity", string(entity)),
			zap.Int("fetched", stats.Fetched),
			zap.Int("created", stats.Created),
			zap.Int("updated", stats.Updated),
			zap.Int("unchanged", stats.Unchanged),
			zap.Int("skipped", stats.Skipped),
			zap.Int("filtered", stats.Filtered),
			zap.Int("errors", stats.Errors))
	}
	observe(stats)
	s.mu.Lock()
	s.stats[entity] = stats
	s.mu.Unlock()
	return stats
}

// safeRun 把流程中的 panic 转成该实体的失败，其余实体照常执行。
func safeRun(ctx context.Context, pass Pass) (stats domain.SyncStats, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s 流程 panic: %v", pass.Entity(), r)
		}
	}()
	return pass.Run(ctx)
}

// observe 按最终统计记录指标，包含转换阶段的 skipped 和 filtered。
func observe(stats domain.SyncStats) {
	entity := string(stats.Entity)
	metrics.EntityOutcomes.WithLabelValues(entity, "created").Add(float64(stats.Created))
	metrics.EntityOutcomes.WithLabelValues(entity, "updated").Add(float64(stats.Updated))
	metrics.EntityOutcomes.WithLabelValues(entity, "unchanged").Add(float64(stats.Unchanged))
	metrics.EntityOutcomes.WithLabelValues(entity, "skipped").Add(float64(stats.Skipped))
	metrics.EntityOutcomes.WithLabelValues(entity, "filtered").Add(float64(stats.Filtered))
	metrics.EntityOutcomes.WithLabelValues(entity, "errors").Add(float64(stats.Errors))
}

func (s *Service) passFor(entity domain.EntityType) (Pass, bool) {
	for _, p := range s.passes {
		if p.Entity() == entity {
			return p, true
		}
	}
	return nil, false
}

// Status 返回当前状态的快照。
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{Running: s.running}
	if s.last != nil {
		last := *s.last
		st.LastResult = &last
	}
	if s.schedule != nil {
		st.ScheduleEnabled = s.schedule.Enabled()
		st.Schedule = s.schedule.Spec()
	}
	return st
}

// SetScheduleEnabled 运行时打开或关闭定时同步，没有关联定时任务时返回 error。
func (s *Service) SetScheduleEnabled(enabled bool) error {
	s.mu.Lock()
	control := s.schedule
	s.mu.Unlock()
	if control == nil {
		return errors.New("未配置定时任务")
	}
	control.SetEnabled(enabled)
	s.logger.Info("sync schedule toggled", zap.Bool("enabled", enabled))
	return nil
}

// Stats 返回某一实体类型最近一次同步的统计。
func (s *Service) Stats(entity domain.EntityType) (domain.SyncStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats, ok := s.stats[entity]
	return stats, ok
}

// Validate 依次执行全部连通性检查，返回第一个失败。
func (s *Service) Validate(ctx context.Context) error {
	for _, probe := range s.probes {
		if err := probe.Check(ctx); err != nil {
			return fmt.Errorf("%s 检查失败: %w", probe.Name, err)
		}
		s.logger.Info("validate check passed", zap.String("check", probe.Name))
	}
	return nil
}
