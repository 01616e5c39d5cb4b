package domain

import (
	"sort"
	"strconv"
	"strings"
)

// MemberSet 是成员 id 的去重集合，与插入顺序无关。
type MemberSet map[string]struct{}

// Add 规范化后加入集合，空值被忽略。
func (s MemberSet) Add(raw any) {
	if id, ok := NormalizeMemberID(raw); ok {
		s[id] = struct{}{}
	}
}

// Canonical 返回集合的规范字符串。
func (s MemberSet) Canonical() string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	return CanonicalMembers(ids)
}

// NormalizeMemberID 把各种来源的 id 统一成字符串，数字去掉前导零和小数部分。
func NormalizeMemberID(raw any) (string, bool) {
	var s string
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		s = v
	case []byte:
		s = string(v)
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case float64:
		if v != float64(int64(v)) {
			s = strconv.FormatFloat(v, 'f', -1, 64)
		} else {
			s = strconv.FormatInt(int64(v), 10)
		}
	case interface{ String() string }:
		s = v.String()
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" || s == "0" || strings.EqualFold(s, "false") {
		return "", false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(n, 10), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10), true
	}
	return s, true
}

// CanonicalMembers 排序、去重并以逗号拼接。全部为整数时按数值排序，否则按字典序。
func CanonicalMembers(ids []string) string {
	seen := make(map[string]struct{}, len(ids))
	uniq := make([]string, 0, len(ids))
	numeric := true
	for _, raw := range ids {
		id, ok := NormalizeMemberID(raw)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
		if _, err := strconv.ParseInt(id, 10, 64); err != nil {
			numeric = false
		}
	}
	if numeric {
		sort.Slice(uniq, func(i, j int) bool {
			a, _ := strconv.ParseInt(uniq[i], 10, 64)
			b, _ := strconv.ParseInt(uniq[j], 10, 64)
			return a < b
		})
	} else {
		sort.Strings(uniq)
	}
	return strings.Join(uniq, ",")
}

// ParseMembers 拆分逗号分隔的成员串。
func ParseMembers(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
