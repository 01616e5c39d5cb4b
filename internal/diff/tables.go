package diff

import "erp2mirror/internal/domain"

// ProductFields 商品的比较表。
var ProductFields = Table{
	{Remote: "product_id", Local: "product_id", Class: Integer},
	{Remote: "name", Local: "name", Class: Identity},
	{Remote: "barcode", Local: "barcode", Class: Identity},
	{Remote: "sku", Local: "sku", Class: Identity},
	{Remote: "price", Local: "price", Class: Decimal},
	{Remote: "tax_rate", Local: "tax_rate", Class: Decimal, Default: 0.15},
	{Remote: "description", Local: "description", Class: Identity},
	{Remote: "category", Local: "category", Class: Identity},
	{Remote: "category_id", Local: "category_id", Class: Integer},
	{Remote: "uom_name", Local: "uom_name", Class: Identity},
	{Remote: "volume", Local: "volume", Class: Decimal},
	{Remote: "weight", Local: "weight", Class: Decimal},
	{Remote: "active", Local: "active", Class: Boolean},
}

// LoyaltyFields 促销方案的比较表。
var LoyaltyFields = Table{
	{Remote: "name", Local: "name", Class: Identity},
	{Remote: "program_type", Local: "program_type", Class: Identity},
	{Remote: "active", Local: "active", Class: Boolean},
	{Remote: "buy_quantity", Local: "buy_quantity", Class: Integer},
	{Remote: "free_quantity", Local: "free_quantity", Class: Integer},
	{Remote: "discount_percent", Local: "discount_percent", Class: Decimal},
	{Remote: "discount_code", Local: "discount_code", Class: Identity},
	{Remote: "min_quantity", Local: "min_quantity", Class: Decimal},
	{Remote: "min_amount", Local: "min_amount", Class: Decimal},
	{Remote: "trigger_product_ids", Local: "trigger_product_ids", Class: MemberSet},
	{Remote: "reward_product_ids", Local: "reward_product_ids", Class: MemberSet},
	{Remote: "date_from", Local: "date_from", Class: Identity},
	{Remote: "date_to", Local: "date_to", Class: Identity},
}

// TableFor 返回实体类型对应的比较表。
func TableFor(entity domain.EntityType) (Table, bool) {
	switch entity {
	case domain.EntityProducts:
		return ProductFields, true
	case domain.EntityLoyalty:
		return LoyaltyFields, true
	}
	return nil, false
}
