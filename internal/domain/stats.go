package domain

import "time"

// SyncStats 单个实体类型一次对账的计数，每次执行前重置。
type SyncStats struct {
	Entity     EntityType `json:"entity"`
	Fetched    int        `json:"fetched"`
	Created    int        `json:"created"`
	Updated    int        `json:"updated"`
	Unchanged  int        `json:"unchanged"`
	Skipped    int        `json:"skipped"`
	Filtered   int        `json:"filtered"`
	Errors     int        `json:"errors"`
	Success    bool       `json:"success"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	DurationMS int64      `json:"duration_ms"`
}

// NewSyncStats 返回已标记开始时间的空计数。
func NewSyncStats(entity EntityType, now time.Time) SyncStats {
	return SyncStats{Entity: entity, StartedAt: now}
}

// Finish 记录结束时间并根据 err 设置成功标记。
func (s *SyncStats) Finish(now time.Time, err error) {
	s.FinishedAt = now
	s.DurationMS = now.Sub(s.StartedAt).Milliseconds()
	s.Success = err == nil
	if err != nil {
		s.Error = err.Error()
	}
}

// Writes 返回本次实际写入镜像的行数。
func (s SyncStats) Writes() int {
	return s.Created + s.Updated
}

// SyncResult 一次完整同步的结果，仅保留最近一次。
type SyncResult struct {
	RunID      string      `json:"run_id"`
	Trigger    string      `json:"trigger"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	DurationMS int64       `json:"duration_ms"`
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Entities   []SyncStats `json:"entities"`
}

// Stats 查找指定实体的计数。
func (r SyncResult) Stats(entity EntityType) (SyncStats, bool) {
	for _, s := range r.Entities {
		if s.Entity == entity {
			return s, true
		}
	}
	return SyncStats{}, false
}
