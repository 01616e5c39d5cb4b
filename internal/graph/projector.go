package graph

import (
	"context"
	"fmt"
	"time"

	"erp2mirror/internal/cypher"
	"erp2mirror/internal/domain"
	"erp2mirror/pkg/util"
	"go.uber.org/zap"
)

// Projector 把写入镜像的商品和促销方案投影为资格图：
// (:LoyaltyProgram)-[:TRIGGERED_BY]->(:Product)、(:LoyaltyProgram)-[:REWARDS]->(:Product)。
type Projector struct {
	client    Writer
	batchSize int
	logger    *zap.Logger
	now       func() time.Time
}

func NewProjector(client Writer, batchSize int, logger *zap.Logger) *Projector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Projector{client: client, batchSize: batchSize, logger: logger, now: time.Now}
}

// Project 只处理本次新增或更新的实体，未变化的节点保持原样。
func (p *Projector) Project(ctx context.Context, entity domain.EntityType, written []domain.Entity) error {
	if len(written) == 0 {
		return nil
	}
	switch entity {
	case domain.EntityProducts:
		return p.upsertNodes(ctx, domain.PrefixProduct, []string{domain.LabelProduct, domain.LabelMirrored}, written)
	case domain.EntityLoyalty:
		if err := p.upsertNodes(ctx, domain.PrefixProgram, []string{domain.LabelLoyaltyProgram, domain.LabelMirrored}, written); err != nil {
			return err
		}
		return p.replaceMemberships(ctx, written)
	}
	return fmt.Errorf("未知实体类型 %q", entity)
}

func (p *Projector) upsertNodes(ctx context.Context, prefix string, labels []string, entities []domain.Entity) error {
	query, err := cypher.Render("upsert_nodes.cql", map[string]string{"LabelPattern": domain.LabelPattern(labels)})
	if err != nil {
		return err
	}
	projectedAt := p.now().UTC().Format(time.RFC3339)
	rows := make([]map[string]any, 0, len(entities))
	for _, e := range entities {
		rows = append(rows, map[string]any{
			"mirror_key":   domain.MakeKey(prefix, e.EntityID()),
			"entity_id":    e.EntityID(),
			"properties":   e.Columns(),
			"projected_at": projectedAt,
		})
	}
	err = util.EachChunk(rows, p.batchSize, func(chunk []map[string]any) error {
		return p.client.RunWrite(ctx, query, map[string]any{"rows": chunk})
	})
	if err != nil {
		return fmt.Errorf("写入节点失败 labels=%v: %w", labels, err)
	}
	p.logger.Debug("projected nodes", zap.Strings("labels", labels), zap.Int("count", len(rows)))
	return nil
}

// replaceMemberships 让方案的出边与当前成员集合一致，多余的边删除，缺失的商品节点先占位。
func (p *Projector) replaceMemberships(ctx context.Context, entities []domain.Entity) error {
	projectedAt := p.now().UTC().Format(time.RFC3339)
	triggers := make([]map[string]any, 0, len(entities))
	rewards := make([]map[string]any, 0, len(entities))
	for _, e := range entities {
		program, ok := e.(domain.LoyaltyProgram)
		if !ok {
			continue
		}
		key := domain.MakeKey(domain.PrefixProgram, program.ID)
		triggers = append(triggers, membershipRow(key, program.TriggerProductIDs, projectedAt))
		rewards = append(rewards, membershipRow(key, program.RewardProductIDs, projectedAt))
	}
	for relType, rows := range map[string][]map[string]any{
		domain.RelTriggeredBy: triggers,
		domain.RelRewards:     rewards,
	} {
		query, err := cypher.Render("replace_rels.cql", map[string]string{"RelType": ":" + relType})
		if err != nil {
			return err
		}
		err = util.EachChunk(rows, p.batchSize, func(chunk []map[string]any) error {
			return p.client.RunWrite(ctx, query, map[string]any{"rows": chunk})
		})
		if err != nil {
			return fmt.Errorf("写入关系失败 type=%s: %w", relType, err)
		}
	}
	return nil
}

func membershipRow(programKey, members, projectedAt string) map[string]any {
	ids := domain.ParseMembers(members)
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, domain.MakeKey(domain.PrefixProduct, id))
	}
	return map[string]any{
		"program_key":  programKey,
		"product_keys": keys,
		"projected_at": projectedAt,
	}
}
