package app

import (
	"context"
	"fmt"
	"time"

	"erp2mirror/internal/diff"
	"erp2mirror/internal/domain"
	"erp2mirror/internal/mirror"
	"go.uber.org/zap"
)

// Sink 接收本次对账实际写入镜像的实体，例如图投影。
type Sink interface {
	Project(ctx context.Context, entity domain.EntityType, written []domain.Entity) error
}

// Reconciler 把一批转换后的实体与镜像表比较，只写入新增和有变化的行。
type Reconciler struct {
	Entity domain.EntityType
	Store  mirror.Store
	Table  diff.Table
	Sink   Sink
	Logger *zap.Logger
	Now    func() time.Time
}

// NewReconciler 按实体类型选择比较表。
func NewReconciler(entity domain.EntityType, store mirror.Store, sink Sink, logger *zap.Logger) (*Reconciler, error) {
	table, ok := diff.TableFor(entity)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{Entity: entity, Store: store, Table: table, Sink: sink, Logger: logger, Now: time.Now}, nil
}

// Reconcile 一次性读取镜像全表，然后逐个实体决定新增、更新或跳过。
// 单行写入失败计入 Errors 并继续，只有读取镜像失败才返回 error。
func (r *Reconciler) Reconcile(ctx context.Context, entities []domain.Entity) (domain.SyncStats, error) {
	now := r.now()
	stats := domain.NewSyncStats(r.Entity, now)
	stats.Fetched = len(entities)

	existing, err := r.Store.LoadAll(ctx, r.Entity)
	if err != nil {
		return stats, fmt.Errorf("读取 %s 镜像失败: %w", r.Entity, err)
	}

	seen := make(map[int64]struct{}, len(entities))
	written := make([]domain.Entity, 0)
	for _, e := range entities {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		id := e.EntityID()
		if id <= 0 {
			stats.Skipped++
			continue
		}
		if _, dup := seen[id]; dup {
			r.Logger.Warn("duplicate id in one pass, keeping first", zap.String("entity", string(r.Entity)), zap.Int64("id", id))
			stats.Skipped++
			continue
		}
		seen[id] = struct{}{}

		cols := e.Columns()
		row, found := existing[id]
		var (
			mismatch diff.Mismatch
			changed  bool
		)
		if found {
			mismatch, changed = diff.FirstDiff(r.Table, cols, row.Columns)
		}
		switch {
		case !found:
			if err := r.Store.Insert(ctx, r.Entity, id, cols, r.now()); err != nil {
				r.Logger.Error("insert mirror row failed", zap.String("entity", string(r.Entity)), zap.Int64("id", id), zap.Error(err))
				stats.Errors++
				continue
			}
			stats.Created++
			written = append(written, e)
		case changed:
			r.Logger.Debug("mirror row changed", zap.String("entity", string(r.Entity)), zap.Int64("id", id), zap.Stringer("diff", mismatch))
			if err := r.Store.Update(ctx, r.Entity, id, cols, r.now()); err != nil {
				r.Logger.Error("update mirror row failed", zap.String("entity", string(r.Entity)), zap.Int64("id", id), zap.Error(err))
				stats.Errors++
				continue
			}
			stats.Updated++
			written = append(written, e)
		default:
			stats.Unchanged++
		}
	}

	if r.Sink != nil && len(written) > 0 {
		if err := r.Sink.Project(ctx, r.Entity, written); err != nil {
			r.Logger.Warn("projection failed", zap.String("entity", string(r.Entity)), zap.Error(err))
		}
	}
	return stats, nil
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
