package transform

import (
	"strconv"
	"strings"

	"erp2mirror/internal/domain"
	"erp2mirror/internal/erp"
	"erp2mirror/pkg/util"
	"go.uber.org/zap"
)

// GroupedEntity 是同一分组键下多行记录的聚合：标量取首次出现的行，成员累加去重。
type GroupedEntity struct {
	Key      string
	Fields   erp.RemoteRow
	Members  domain.MemberSet
	Rewards  domain.MemberSet
	Rows     int
	Diverged bool

	fallback    domain.MemberSet
	fingerprint string
}

// Groups 保存分组结果，Order 为分组键首次出现的顺序。
type Groups struct {
	Order   []string
	ByKey   map[string]*GroupedEntity
	Skipped int
}

// Entities 按首次出现顺序返回全部分组。
func (g *Groups) Entities() []*GroupedEntity {
	out := make([]*GroupedEntity, 0, len(g.Order))
	for _, key := range g.Order {
		out = append(out, g.ByKey[key])
	}
	return out
}

// Grouper 把每个符合条件的子项一行的扁平记录折叠成按分组键聚合的实体。
type Grouper struct {
	KeyFields    []string
	MemberFields []string
	RewardFields []string
	// FallbackFields 只在整个分组都没有成员时使用。
	FallbackFields []string
	// ScalarFields 参与一致性校验的标量字段，为空时使用除成员字段外的全部字段。
	ScalarFields []string
	Logger       *zap.Logger
}

// NewLoyaltyGrouper 返回按 program_id 聚合促销规则行的 Grouper。
func NewLoyaltyGrouper(logger *zap.Logger) *Grouper {
	return &Grouper{
		KeyFields:      []string{"program_id", "id"},
		MemberFields:   []string{"eligible_product_id", "eligible_products", "eligible_product_ids"},
		RewardFields:   []string{"reward_product_id", "reward_product", "reward_product_ids"},
		FallbackFields: []string{"main_product_id", "main_product"},
		ScalarFields: []string{
			"name", "program_name", "type", "program_type",
			"active", "program_active", "rule_active",
			"buy_quantity", "free_quantity", "discount_percent", "rule_discount",
			"discount_code", "min_quantity", "rule_min_qty", "min_amount", "rule_min_amount",
			"date_from", "date_to",
		},
		Logger: logger,
	}
}

// Group 单次遍历 rows 完成聚合，没有分组键的行计入 Skipped。
func (g *Grouper) Group(rows []erp.RemoteRow) *Groups {
	logger := g.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	out := &Groups{ByKey: make(map[string]*GroupedEntity)}
	for _, row := range rows {
		key, ok := g.keyOf(row)
		if !ok {
			out.Skipped++
			continue
		}
		fp := g.fingerprint(row)
		entity, seen := out.ByKey[key]
		if !seen {
			entity = &GroupedEntity{
				Key:         key,
				Fields:      row,
				Members:     domain.MemberSet{},
				Rewards:     domain.MemberSet{},
				fallback:    domain.MemberSet{},
				fingerprint: fp,
			}
			out.ByKey[key] = entity
			out.Order = append(out.Order, key)
		} else if fp != entity.fingerprint && !entity.Diverged {
			entity.Diverged = true
			logger.Warn("group scalar fields diverge across rows, keeping first-seen values", zap.String("key", key))
		}
		entity.Rows++
		for _, f := range g.MemberFields {
			addMembers(entity.Members, row[f])
		}
		for _, f := range g.RewardFields {
			addMembers(entity.Rewards, row[f])
		}
		for _, f := range g.FallbackFields {
			addMembers(entity.fallback, row[f])
		}
	}
	for _, entity := range out.ByKey {
		if len(entity.Members) == 0 {
			for id := range entity.fallback {
				entity.Members[id] = struct{}{}
			}
		}
	}
	return out
}

func (g *Grouper) keyOf(row erp.RemoteRow) (string, bool) {
	for _, f := range g.KeyFields {
		if id, ok := ID(row[f]); ok {
			return strconv.FormatInt(id, 10), true
		}
	}
	return "", false
}

func (g *Grouper) fingerprint(row erp.RemoteRow) string {
	scalars := make(map[string]any)
	if len(g.ScalarFields) > 0 {
		for _, f := range g.ScalarFields {
			if v, ok := row[f]; ok {
				scalars[f] = v
			}
		}
		return util.Fingerprint(scalars)
	}
	skip := make(map[string]struct{})
	for _, list := range [][]string{g.MemberFields, g.RewardFields, g.FallbackFields} {
		for _, f := range list {
			skip[f] = struct{}{}
		}
	}
	for k, v := range row {
		if _, ok := skip[k]; !ok {
			scalars[k] = v
		}
	}
	return util.Fingerprint(scalars)
}

// addMembers 接受标量 id、id 列表、{"id": ...} 对象或对象列表。
func addMembers(set domain.MemberSet, v any) {
	switch t := v.(type) {
	case nil:
		return
	case []any:
		if isMany2One(t) {
			set.Add(t[0])
			return
		}
		for _, item := range t {
			addMembers(set, item)
		}
	case map[string]any:
		set.Add(t["id"])
	case string:
		for _, part := range domain.ParseMembers(t) {
			set.Add(part)
		}
	default:
		set.Add(t)
	}
}

// isMany2One 识别 ERP 的 [id, "display name"] 引用形式。
func isMany2One(list []any) bool {
	if len(list) != 2 {
		return false
	}
	name, ok := list[1].(string)
	if !ok {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(name), 64)
	return err != nil
}

// FilterTypes 丢弃类型不在白名单中的分组，allow 为空时全部保留。
func FilterTypes(groups []*GroupedEntity, allow []string) ([]*GroupedEntity, int) {
	if len(allow) == 0 {
		return groups, 0
	}
	allowed := make(map[string]struct{}, len(allow))
	for _, a := range allow {
		allowed[strings.ToUpper(strings.TrimSpace(a))] = struct{}{}
	}
	kept := make([]*GroupedEntity, 0, len(groups))
	filtered := 0
	for _, g := range groups {
		if _, ok := allowed[ProgramType(g.Fields)]; !ok {
			filtered++
			continue
		}
		kept = append(kept, g)
	}
	return kept, filtered
}
