package diff

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"erp2mirror/internal/domain"
	"erp2mirror/internal/transform"
)

// Class 字段比较前使用的归一化方式。
type Class int

const (
	Identity Class = iota
	Boolean
	Integer
	Decimal
	MemberSet
)

func (c Class) String() string {
	switch c {
	case Identity:
		return "identity"
	case Boolean:
		return "boolean"
	case Integer:
		return "integer"
	case Decimal:
		return "decimal"
	case MemberSet:
		return "member-set"
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// decimalScale 小数比较保留的位数，与镜像表 NUMERIC(18,6) 对齐。
const decimalScale = 1e6

// Field 声明一个需要比较的字段：远端字段、本地列和归一化方式。
type Field struct {
	Remote  string
	Local   string
	Class   Class
	Default float64
}

// Table 是某一实体类型的比较表。
type Table []Field

// Mismatch 描述第一个不一致的字段。
type Mismatch struct {
	Field  string
	Class  Class
	Remote any
	Local  any
}

// HasChanges 比较转换后的远端实体与镜像行，任一字段归一化后不同即返回 true。
func HasChanges(table Table, remote map[string]any, local map[string]any) bool {
	_, changed := FirstDiff(table, remote, local)
	return changed
}

// FirstDiff 返回第一个不一致的字段，表的顺序只影响报告哪个字段。
func FirstDiff(table Table, remote map[string]any, local map[string]any) (Mismatch, bool) {
	for _, f := range table {
		localKey := f.Local
		if localKey == "" {
			localKey = f.Remote
		}
		r, l := remote[f.Remote], local[localKey]
		if !equal(f, r, l) {
			return Mismatch{Field: localKey, Class: f.Class, Remote: r, Local: l}, true
		}
	}
	return Mismatch{}, false
}

func equal(f Field, r, l any) bool {
	switch f.Class {
	case Boolean:
		return transform.Active(r) == transform.Active(l)
	case Integer:
		a, aok := normalizeInt(r)
		b, bok := normalizeInt(l)
		if !aok || !bok {
			return aok == bok
		}
		return a == b
	case Decimal:
		return roundDecimal(transform.Decimal(r, f.Default)) == roundDecimal(transform.Decimal(l, f.Default))
	case MemberSet:
		return canonicalMembers(r) == canonicalMembers(l)
	default:
		return transform.Text(r) == transform.Text(l)
	}
}

// normalizeInt 解析整数，缺失和非法都视为 null；null 只与 null 相等，不等于 0。
func normalizeInt(v any) (int64, bool) {
	if v == nil {
		return 0, false
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return 0, false
	}
	const sentinel = math.MinInt64
	n := transform.Int(v, sentinel)
	if n == sentinel {
		return 0, false
	}
	return n, true
}

// roundDecimal 保持 float64，超出 int64 范围的大数也能正确比较。
func roundDecimal(f float64) float64 {
	return math.Round(f * decimalScale)
}

func canonicalMembers(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []string:
		return domain.CanonicalMembers(t)
	case domain.MemberSet:
		return t.Canonical()
	}
	return domain.CanonicalMembers(domain.ParseMembers(transform.Text(v)))
}

// String 便于日志输出。
func (m Mismatch) String() string {
	return fmt.Sprintf("%s(%s): remote=%s local=%s", m.Field, m.Class, strconv.Quote(fmt.Sprint(m.Remote)), strconv.Quote(fmt.Sprint(m.Local)))
}
