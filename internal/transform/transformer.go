package transform

import (
	"fmt"
	"strings"

	"erp2mirror/internal/domain"
	"erp2mirror/internal/erp"
)

const (
	TypeBOGO     = "BOGO"
	TypeDiscount = "DISCOUNT"
)

// ValidationError 远端记录缺少可用主键等不可修复的问题，调用方计入 skipped。
type ValidationError struct {
	Entity domain.EntityType
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s 记录无效: %s %s", e.Entity, e.Field, e.Reason)
}

// Options 控制转换默认值。
type Options struct {
	Locales        []string
	DefaultName    string
	DefaultTaxRate float64
}

// DefaultOptions 提供默认配置。
func DefaultOptions() Options {
	return Options{
		Locales:        []string{"ar_001", "en_US"},
		DefaultName:    "Unknown",
		DefaultTaxRate: 0.15,
	}
}

// Transformer 把原始记录转换为镜像表结构，不做任何 I/O。
type Transformer struct {
	opts Options
}

func NewTransformer(opts Options) *Transformer {
	if len(opts.Locales) == 0 {
		opts.Locales = DefaultOptions().Locales
	}
	if strings.TrimSpace(opts.DefaultName) == "" {
		opts.DefaultName = DefaultOptions().DefaultName
	}
	return &Transformer{opts: opts}
}

// Product 转换一条商品记录。
func (t *Transformer) Product(row erp.RemoteRow) (domain.Product, error) {
	id, ok := ID(row["id"])
	if !ok {
		return domain.Product{}, &ValidationError{Entity: domain.EntityProducts, Field: "id", Reason: "缺失或非法"}
	}
	uom := first(row, "uom_name")
	if obj, isObj := row["uom_id"].(map[string]any); isObj && uom == nil {
		uom = obj["name"]
	} else if list, isList := row["uom_id"].([]any); isList && uom == nil {
		uom = list
	}

	return domain.Product{
		ID:          id,
		ProductID:   OptionalID(row["product_id"]),
		Name:        LocalizedText(row["name"], t.opts.Locales, t.opts.DefaultName),
		Barcode:     Text(row["barcode"]),
		SKU:         Text(first(row, "sku", "default_code")),
		Price:       Decimal(first(row, "list_price", "price"), 0),
		TaxRate:     Decimal(row["tax_rate"], t.opts.DefaultTaxRate),
		Description: LocalizedText(first(row, "description", "description_sale"), t.opts.Locales, ""),
		Category:    LocalizedText(first(row, "category", "category_name"), t.opts.Locales, ""),
		CategoryID:  OptionalID(row["category_id"]),
		UOMName:     LocalizedText(uom, t.opts.Locales, ""),
		Volume:      Decimal(row["volume"], 0),
		Weight:      Decimal(row["weight"], 0),
		Active:      Active(row["active"]),
	}, nil
}

// Loyalty 转换一个已聚合的促销方案。
func (t *Transformer) Loyalty(g *GroupedEntity) (domain.LoyaltyProgram, error) {
	id, ok := ID(g.Key)
	if !ok {
		return domain.LoyaltyProgram{}, &ValidationError{Entity: domain.EntityLoyalty, Field: "program_id", Reason: fmt.Sprintf("非法分组键 %q", g.Key)}
	}
	f := g.Fields

	buy := Int(first(f, "buy_quantity", "rule_min_qty", "min_quantity"), 1)
	if buy < 1 {
		buy = 1
	}
	free := Int(f["free_quantity"], 1)

	trigger := g.Members.Canonical()
	reward := trigger
	if len(g.Rewards) > 0 {
		reward = g.Rewards.Canonical()
	}

	return domain.LoyaltyProgram{
		ID:   id,
		Name: LocalizedText(first(f, "name", "program_name"), t.opts.Locales, t.opts.DefaultName),
		Type: ProgramType(f),
		// 方案和规则两级的 active 都为真才算启用
		Active:            CombinedActive(f["active"], f["program_active"], f["rule_active"]),
		BuyQuantity:       buy,
		FreeQuantity:      free,
		DiscountPercent:   Decimal(first(f, "discount_percent", "rule_discount", "discount"), 0),
		DiscountCode:      Text(first(f, "discount_code", "code")),
		MinQuantity:       Decimal(first(f, "min_quantity", "rule_min_qty"), 0),
		MinAmount:         Decimal(first(f, "min_amount", "rule_min_amount"), 0),
		TriggerProductIDs: trigger,
		RewardProductIDs:  reward,
		DateFrom:          DateText(first(f, "date_from", "start_date")),
		DateTo:            DateText(first(f, "date_to", "end_date")),
	}, nil
}

// ProgramType 优先取声明的类型，缺失时按折扣推断：折扣大于 0 为 DISCOUNT，否则 BOGO。
func ProgramType(row erp.RemoteRow) string {
	if declared := strings.ToUpper(Text(first(row, "type", "program_type"))); declared != "" {
		return declared
	}
	if Decimal(first(row, "discount_percent", "rule_discount", "discount"), 0) > 0 {
		return TypeDiscount
	}
	return TypeBOGO
}
