package domain

import (
	"strings"
	"time"
)

// EntityType 标识一种需要镜像的 ERP 实体。
type EntityType string

const (
	EntityProducts EntityType = "products"
	EntityLoyalty  EntityType = "loyalty"
)

// EntityTypes 按编排顺序列出全部实体类型。
var EntityTypes = []EntityType{EntityProducts, EntityLoyalty}

// ParseEntityType 解析路由或命令行传入的实体名。
func ParseEntityType(raw string) (EntityType, bool) {
	switch EntityType(strings.ToLower(strings.TrimSpace(raw))) {
	case EntityProducts, "product":
		return EntityProducts, true
	case EntityLoyalty, "programs", "loyalty_programs":
		return EntityLoyalty, true
	}
	return "", false
}

// Entity 是转换后与镜像表同构的实体。
type Entity interface {
	EntityID() int64
	Columns() map[string]any
}

// Product 对应镜像表 products 的一行。
type Product struct {
	ID          int64
	ProductID   *int64
	Name        string
	Barcode     string
	SKU         string
	Price       float64
	TaxRate     float64
	Description string
	Category    string
	CategoryID  *int64
	UOMName     string
	Volume      float64
	Weight      float64
	Active      bool
}

func (p Product) EntityID() int64 { return p.ID }

func (p Product) Columns() map[string]any {
	return map[string]any{
		"product_id":  nullableInt(p.ProductID),
		"name":        p.Name,
		"barcode":     p.Barcode,
		"sku":         p.SKU,
		"price":       p.Price,
		"tax_rate":    p.TaxRate,
		"description": p.Description,
		"category":    p.Category,
		"category_id": nullableInt(p.CategoryID),
		"uom_name":    p.UOMName,
		"volume":      p.Volume,
		"weight":      p.Weight,
		"active":      p.Active,
	}
}

// LoyaltyProgram 对应镜像表 loyalty_programs 的一行，由同一 program 的多行聚合而来。
type LoyaltyProgram struct {
	ID                int64
	Name              string
	Type              string
	Active            bool
	BuyQuantity       int64
	FreeQuantity      int64
	DiscountPercent   float64
	DiscountCode      string
	MinQuantity       float64
	MinAmount         float64
	TriggerProductIDs string
	RewardProductIDs  string
	DateFrom          string
	DateTo            string
}

func (p LoyaltyProgram) EntityID() int64 { return p.ID }

func (p LoyaltyProgram) Columns() map[string]any {
	return map[string]any{
		"name":                p.Name,
		"program_type":        p.Type,
		"active":              p.Active,
		"buy_quantity":        p.BuyQuantity,
		"free_quantity":       p.FreeQuantity,
		"discount_percent":    p.DiscountPercent,
		"discount_code":       p.DiscountCode,
		"min_quantity":        p.MinQuantity,
		"min_amount":          p.MinAmount,
		"trigger_product_ids": p.TriggerProductIDs,
		"reward_product_ids":  p.RewardProductIDs,
		"date_from":           p.DateFrom,
		"date_to":             p.DateTo,
	}
}

// MirrorRow 是镜像库中已持久化的一行。
type MirrorRow struct {
	ID         int64
	Columns    map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
	LastSyncAt time.Time
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
