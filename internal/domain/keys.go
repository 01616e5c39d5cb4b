package domain

import (
	"fmt"
	"sort"
	"strings"
)

const (
	LabelProduct        = "Product"
	LabelLoyaltyProgram = "LoyaltyProgram"
	LabelMirrored       = "Mirrored"

	RelTriggeredBy = "TRIGGERED_BY"
	RelRewards     = "REWARDS"
)

const (
	PrefixProduct = "PRD"
	PrefixProgram = "LP"
)

// MakeKey 统一生成图节点的 mirror_key，带上前缀以避免不同实体冲突。
func MakeKey(prefix string, rawID any) string {
	return fmt.Sprintf("%s_%v", prefix, rawID)
}

// LabelPattern 根据标签集合拼成 Cypher 模板所需的字符串，如 ":A:B"。
func LabelPattern(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)
	return ":" + strings.Join(sorted, ":")
}
