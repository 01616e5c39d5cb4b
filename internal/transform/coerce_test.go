package transform

import (
	"testing"

	json "github.com/goccy/go-json"
)

func TestActive(t *testing.T) {
	truthy := []any{nil, true, "true", "1", "yes", 1, int64(1), json.Number("1"), "2.5", "-1"}
	for _, v := range truthy {
		if !Active(v) {
			t.Fatalf("Active(%#v) = false", v)
		}
	}
	falsy := []any{false, "false", "False", " 0 ", "off", 0, 0.0, json.Number("0"), "0.0", "0.00", " -0.0 ", json.Number("0.0"), []byte("0.000")}
	for _, v := range falsy {
		if Active(v) {
			t.Fatalf("Active(%#v) = true", v)
		}
	}
}

func TestCombinedActive(t *testing.T) {
	if !CombinedActive(true, nil, "1") {
		t.Fatalf("missing flags count as active")
	}
	if CombinedActive(true, "false") {
		t.Fatalf("inactive child must deactivate the entity")
	}
}

func TestDecimalDefaults(t *testing.T) {
	cases := []struct {
		in   any
		def  float64
		want float64
	}{
		{json.Number("10.0"), 0, 10},
		{"12.5", 0, 12.5},
		{"abc", 0.15, 0.15},
		{"", 0.15, 0.15},
		{nil, 0.15, 0.15},
		{false, 3, 3},
		{"NaN", 1, 1},
		{int64(4), 0, 4},
	}
	for _, c := range cases {
		if got := Decimal(c.in, c.def); got != c.want {
			t.Fatalf("Decimal(%#v, %v) = %v, want %v", c.in, c.def, got, c.want)
		}
	}
}

func TestIntAndID(t *testing.T) {
	if Int("3.0", 1) != 3 || Int("3.5", 1) != 1 || Int("x", 7) != 7 {
		t.Fatalf("Int coercion wrong")
	}
	if id, ok := ID([]any{json.Number("12"), "Bottle"}); !ok || id != 12 {
		t.Fatalf("many2one id = %d %v", id, ok)
	}
	if id, ok := ID(map[string]any{"id": "5"}); !ok || id != 5 {
		t.Fatalf("object id = %d %v", id, ok)
	}
	for _, bad := range []any{nil, false, 0, -3, "abc", []any{}} {
		if _, ok := ID(bad); ok {
			t.Fatalf("ID(%#v) should be invalid", bad)
		}
	}
	if OptionalID(false) != nil {
		t.Fatalf("OptionalID(false) should be nil")
	}
}

func TestLocalizedText(t *testing.T) {
	locales := []string{"ar_001", "en_US"}
	if got := LocalizedText(map[string]any{"en_US": "Water", "ar_001": "ماء"}, locales, "Unknown"); got != "ماء" {
		t.Fatalf("preferred locale not used: %q", got)
	}
	if got := LocalizedText(map[string]any{"fr_FR": "Eau", "de_DE": "Wasser"}, locales, "Unknown"); got != "Wasser" {
		t.Fatalf("fallback should pick first key in sorted order, got %q", got)
	}
	if got := LocalizedText(map[string]any{"en_US": ""}, locales, "Unknown"); got != "Unknown" {
		t.Fatalf("empty map should use default, got %q", got)
	}
	if got := LocalizedText(false, locales, "Unknown"); got != "Unknown" {
		t.Fatalf("false should use default, got %q", got)
	}
	if got := LocalizedText([]any{json.Number("3"), "Units"}, locales, ""); got != "Units" {
		t.Fatalf("many2one display name = %q", got)
	}
}

func TestDateText(t *testing.T) {
	if got := DateText("2024-03-01 10:00:00"); got != "2024-03-01" {
		t.Fatalf("DateText = %q", got)
	}
	if got := DateText(false); got != "" {
		t.Fatalf("false date = %q", got)
	}
	if got := DateText("next week"); got != "next week" {
		t.Fatalf("unparsable date should be kept, got %q", got)
	}
}
