package transform

import (
	"testing"

	"erp2mirror/internal/erp"
	json "github.com/goccy/go-json"
)

func TestGroupCollectsMembersAcrossRows(t *testing.T) {
	rows := []erp.RemoteRow{
		{"program_id": json.Number("501"), "name": "Buy 2", "eligible_product_id": json.Number("9")},
		{"program_id": json.Number("502"), "name": "Other", "eligible_product_id": json.Number("1")},
		{"program_id": json.Number("501"), "name": "Buy 2", "eligible_product_id": json.Number("7")},
		{"program_id": json.Number("501"), "name": "Buy 2", "eligible_product_id": json.Number("9")},
		{"name": "orphan"},
	}
	groups := NewLoyaltyGrouper(nil).Group(rows)
	if groups.Skipped != 1 {
		t.Fatalf("skipped = %d", groups.Skipped)
	}
	if len(groups.Order) != 2 || groups.Order[0] != "501" {
		t.Fatalf("order = %v", groups.Order)
	}
	g := groups.ByKey["501"]
	if g.Rows != 3 || g.Members.Canonical() != "7,9" || g.Diverged {
		t.Fatalf("unexpected group %+v members=%s", g, g.Members.Canonical())
	}
}

func TestGroupKeepsFirstSeenScalarsOnDivergence(t *testing.T) {
	rows := []erp.RemoteRow{
		{"program_id": 1, "name": "First", "eligible_product_id": 3},
		{"program_id": 1, "name": "Second", "eligible_product_id": 4},
	}
	g := NewLoyaltyGrouper(nil).Group(rows).ByKey["1"]
	if !g.Diverged || g.Fields["name"] != "First" {
		t.Fatalf("diverged=%v name=%v", g.Diverged, g.Fields["name"])
	}
	if g.Members.Canonical() != "3,4" {
		t.Fatalf("members = %s", g.Members.Canonical())
	}
}

func TestGroupFallbackMembersAndMany2One(t *testing.T) {
	rows := []erp.RemoteRow{
		{"program_id": []any{json.Number("8"), "Summer"}, "main_product_id": []any{json.Number("42"), "Juice"}},
		{"program_id": 9, "eligible_products": []any{map[string]any{"id": 5}, map[string]any{"id": 6}}, "main_product_id": 99},
		{"program_id": 10, "eligible_product_ids": "12, 11", "reward_product_ids": []any{json.Number("20")}},
	}
	groups := NewLoyaltyGrouper(nil).Group(rows)
	if got := groups.ByKey["8"].Members.Canonical(); got != "42" {
		t.Fatalf("fallback members = %q", got)
	}
	if got := groups.ByKey["9"].Members.Canonical(); got != "5,6" {
		t.Fatalf("fallback must not apply when members exist, got %q", got)
	}
	g := groups.ByKey["10"]
	if g.Members.Canonical() != "11,12" || g.Rewards.Canonical() != "20" {
		t.Fatalf("members=%s rewards=%s", g.Members.Canonical(), g.Rewards.Canonical())
	}
}

func TestFilterTypes(t *testing.T) {
	groups := NewLoyaltyGrouper(nil).Group([]erp.RemoteRow{
		{"program_id": 1, "type": "bogo"},
		{"program_id": 2, "discount_percent": "15"},
		{"program_id": 3, "type": "coupon"},
	}).Entities()
	kept, filtered := FilterTypes(groups, []string{"BOGO", "discount"})
	if len(kept) != 2 || filtered != 1 {
		t.Fatalf("kept=%d filtered=%d", len(kept), filtered)
	}
	all, none := FilterTypes(groups, nil)
	if len(all) != 3 || none != 0 {
		t.Fatalf("empty allow list should keep everything")
	}
}
