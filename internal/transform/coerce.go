package transform

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// falsy 是布尔字段的显式假值集合，其余取值一律视为真。
var falsy = map[string]struct{}{
	"0": {}, "false": {}, "f": {}, "no": {}, "off": {},
}

// Active 归一化启用状态：true/1/"1"/"true" 为真，false/0/"0"/"0.0"/"false" 为假，缺省为真。
// 数字形式的字符串按数值判断。
func Active(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return t
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f != 0
		}
		_, isFalse := falsy[s]
		return !isFalse
	case []byte:
		return Active(string(t))
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case fmt.Stringer:
		return Active(t.String())
	}
	return true
}

// CombinedActive 父子两个启用标记都为真时才算启用，缺失的一方按真处理。
func CombinedActive(flags ...any) bool {
	for _, f := range flags {
		if !Active(f) {
			return false
		}
	}
	return true
}

// Decimal 解析数值，缺失或非法时返回 def 而不是 0。
func Decimal(v any, def float64) float64 {
	var f float64
	switch t := v.(type) {
	case nil, bool:
		return def
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string, []byte, fmt.Stringer:
		s := strings.TrimSpace(Text(t))
		if s == "" {
			return def
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return def
		}
		f = parsed
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

// Int 解析整数，允许 "3.0" 这类整值小数，非法时返回 def。
func Int(v any, def int64) int64 {
	switch t := v.(type) {
	case nil, bool:
		return def
	case int:
		return int64(t)
	case int64:
		return t
	}
	f := Decimal(v, math.NaN())
	if math.IsNaN(f) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64/2 {
		return def
	}
	return int64(f)
}

// ID 解析远端主键，只接受正整数。兼容 many2one 的 [id, "name"] 和 {"id": ...} 形式。
func ID(v any) (int64, bool) {
	switch t := v.(type) {
	case []any:
		if len(t) == 0 {
			return 0, false
		}
		return ID(t[0])
	case map[string]any:
		return ID(t["id"])
	}
	n := Int(v, 0)
	if n <= 0 {
		return 0, false
	}
	return n, true
}

// OptionalID 与 ID 相同，但缺失时返回 nil。
func OptionalID(v any) *int64 {
	if id, ok := ID(v); ok {
		return &id
	}
	return nil
}

// Text 把标量转为去空白字符串，ERP 对空字段返回 false，按空串处理。
func Text(v any) string {
	switch t := v.(type) {
	case nil, bool:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return ""
}

// LocalizedText 多语言字段取值：先按 locales 顺序，再按 key 排序取第一个非空值，最后用 fallback。
func LocalizedText(v any, locales []string, fallback string) string {
	switch t := v.(type) {
	case map[string]any:
		for _, loc := range locales {
			if s := Text(t[loc]); s != "" {
				return s
			}
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s := Text(t[k]); s != "" {
				return s
			}
		}
		return fallback
	case []any:
		// many2one: [id, "display name"]
		if len(t) > 1 {
			return LocalizedText(t[1], locales, fallback)
		}
		return fallback
	}
	if s := Text(v); s != "" {
		return s
	}
	return fallback
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// DateText 把日期归一为 YYYY-MM-DD，无法解析时保留原文本。
func DateText(v any) string {
	s := Text(v)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.Format("2006-01-02")
		}
	}
	return s
}

// first 返回 row 中第一个存在且非 nil 的字段。
func first(row map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != nil {
			return v
		}
	}
	return nil
}
