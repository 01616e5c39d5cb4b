package diff

import (
	"testing"

	"erp2mirror/internal/domain"
	json "github.com/goccy/go-json"
)

func TestHasChangesNormalizesPerClass(t *testing.T) {
	table := Table{
		{Remote: "price", Local: "price", Class: Decimal},
		{Remote: "active", Local: "active", Class: Boolean},
		{Remote: "qty", Local: "qty", Class: Integer},
		{Remote: "members", Local: "members", Class: MemberSet},
		{Remote: "name", Local: "name", Class: Identity},
	}
	remote := map[string]any{
		"price":   json.Number("10.0"),
		"active":  true,
		"qty":     "2",
		"members": "9,7",
		"name":    " Water ",
	}
	local := map[string]any{
		"price":   []byte("10.000000"),
		"active":  int64(1),
		"qty":     int64(2),
		"members": "7,9",
		"name":    "Water",
	}
	if m, changed := FirstDiff(table, remote, local); changed {
		t.Fatalf("expected no change, got %s", m)
	}
}

func TestDecimalRoundsToSixPlaces(t *testing.T) {
	table := Table{{Remote: "price", Class: Decimal}}
	if HasChanges(table, map[string]any{"price": 1.0000001}, map[string]any{"price": 1.0}) {
		t.Fatalf("sub-scale difference should be ignored")
	}
	if !HasChanges(table, map[string]any{"price": 1.00001}, map[string]any{"price": 1.0}) {
		t.Fatalf("difference within scale should be detected")
	}
}

func TestDecimalBeyondInt64RangeStillCompared(t *testing.T) {
	table := Table{{Remote: "amount", Class: Decimal}}
	if !HasChanges(table, map[string]any{"amount": 2e13}, map[string]any{"amount": 3e13}) {
		t.Fatalf("large distinct amounts should differ")
	}
	if !HasChanges(table, map[string]any{"amount": -2e13}, map[string]any{"amount": 2e13}) {
		t.Fatalf("sign flip on large amount should differ")
	}
	if HasChanges(table, map[string]any{"amount": json.Number("20000000000000")}, map[string]any{"amount": 2e13}) {
		t.Fatalf("equal large amounts should match")
	}
}

func TestIntegerNullIsNotZero(t *testing.T) {
	table := Table{{Remote: "category_id", Local: "category_id", Class: Integer}}
	if !HasChanges(table, map[string]any{"category_id": nil}, map[string]any{"category_id": int64(0)}) {
		t.Fatalf("null must differ from 0")
	}
	if HasChanges(table, map[string]any{"category_id": nil}, map[string]any{"category_id": nil}) {
		t.Fatalf("null equals null")
	}
	if HasChanges(table, map[string]any{"category_id": ""}, map[string]any{}) {
		t.Fatalf("blank string is null")
	}
}

func TestBooleanFlip(t *testing.T) {
	table := Table{{Remote: "active", Class: Boolean}}
	if !HasChanges(table, map[string]any{"active": false}, map[string]any{"active": true}) {
		t.Fatalf("active flip not detected")
	}
	if HasChanges(table, map[string]any{"active": false}, map[string]any{"active": "0"}) {
		t.Fatalf("stored 0 equals false")
	}
}

func TestMemberSetReportsFirstMismatch(t *testing.T) {
	table := LoyaltyFields
	remote := domain.LoyaltyProgram{ID: 1, Name: "p", TriggerProductIDs: "7,9,11", RewardProductIDs: "7,9,11"}.Columns()
	local := domain.LoyaltyProgram{ID: 1, Name: "p", TriggerProductIDs: "7,9", RewardProductIDs: "7,9,11"}.Columns()
	m, changed := FirstDiff(table, remote, local)
	if !changed || m.Field != "trigger_product_ids" || m.Class != MemberSet {
		t.Fatalf("unexpected mismatch %+v", m)
	}
}

func TestTableFor(t *testing.T) {
	if _, ok := TableFor(domain.EntityProducts); !ok {
		t.Fatalf("products table missing")
	}
	if _, ok := TableFor("customers"); ok {
		t.Fatalf("unknown entity should have no table")
	}
}
