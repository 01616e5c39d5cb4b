package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"erp2mirror/internal/domain"
	"erp2mirror/internal/erp"
	"erp2mirror/internal/transform"
	"go.uber.org/zap"
)

// Pass 是某一实体类型的完整流程：拉取 -> 转换 -> 对账。
type Pass interface {
	Entity() domain.EntityType
	// Run 拉取失败时返回 error，stats 中已记录到失败前的计数。
	Run(ctx context.Context) (domain.SyncStats, error)
}

// ProductPass 同步商品。
type ProductPass struct {
	ERP         erp.Fetcher
	Endpoint    string
	Transformer *transform.Transformer
	Reconciler  *Reconciler
	Logger      *zap.Logger
}

func (p *ProductPass) Entity() domain.EntityType { return domain.EntityProducts }

func (p *ProductPass) Run(ctx context.Context) (domain.SyncStats, error) {
	logger := nopIfNil(p.Logger)
	if p.ERP == nil || p.Transformer == nil || p.Reconciler == nil {
		return domain.NewSyncStats(domain.EntityProducts, time.Now()), errors.New("product pass 依赖未注入完整")
	}
	stats := domain.NewSyncStats(domain.EntityProducts, p.Reconciler.now())

	rows, err := p.ERP.FetchAll(ctx, p.Endpoint)
	if err != nil {
		return stats, fmt.Errorf("拉取商品失败: %w", err)
	}
	logger.Info("fetched products", zap.Int("rows", len(rows)))

	entities := make([]domain.Entity, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		product, err := p.Transformer.Product(row)
		if err != nil {
			skipped++
			logger.Debug("skip product row", zap.Error(err))
			continue
		}
		entities = append(entities, product)
	}

	result, err := p.Reconciler.Reconcile(ctx, entities)
	result.StartedAt = stats.StartedAt
	result.Fetched = len(rows)
	result.Skipped += skipped
	return result, err
}

// LoyaltyPass 同步促销方案：扁平行先按 program 聚合，再按类型白名单过滤。
type LoyaltyPass struct {
	ERP          erp.Fetcher
	Endpoint     string
	Grouper      *transform.Grouper
	Transformer  *transform.Transformer
	AllowedTypes []string
	Reconciler   *Reconciler
	Logger       *zap.Logger
}

func (p *LoyaltyPass) Entity() domain.EntityType { return domain.EntityLoyalty }

func (p *LoyaltyPass) Run(ctx context.Context) (domain.SyncStats, error) {
	logger := nopIfNil(p.Logger)
	if p.ERP == nil || p.Grouper == nil || p.Transformer == nil || p.Reconciler == nil {
		return domain.NewSyncStats(domain.EntityLoyalty, time.Now()), errors.New("loyalty pass 依赖未注入完整")
	}
	stats := domain.NewSyncStats(domain.EntityLoyalty, p.Reconciler.now())

	rows, err := p.ERP.FetchAll(ctx, p.Endpoint)
	if err != nil {
		return stats, fmt.Errorf("拉取促销方案失败: %w", err)
	}
	groups := p.Grouper.Group(rows)
	kept, filtered := transform.FilterTypes(groups.Entities(), p.AllowedTypes)
	logger.Info("fetched loyalty rows",
		zap.Int("rows", len(rows)),
		zap.Int("programs", len(groups.Order)),
		zap.Int("filtered", filtered))

	entities := make([]domain.Entity, 0, len(kept))
	skipped := groups.Skipped
	for _, g := range kept {
		program, err := p.Transformer.Loyalty(g)
		if err != nil {
			skipped++
			logger.Debug("skip loyalty program", zap.String("key", g.Key), zap.Error(err))
			continue
		}
		entities = append(entities, program)
	}

	result, err := p.Reconciler.Reconcile(ctx, entities)
	result.StartedAt = stats.StartedAt
	result.Fetched = len(rows)
	result.Skipped += skipped
	result.Filtered = filtered
	return result, err
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
