package util

import (
	"fmt"
	"hash/fnv"
	"slices"
	"strconv"

	json "github.com/goccy/go-json"
)

// Fingerprint 计算字段集合的稳定指纹，只用于判断两行的标量字段是否一致。
// 键按字典序参与计算，值按 JSON 编码，json.Number("1") 与 1 得到相同结果。
func Fingerprint(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	h := fnv.New64a()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write(encodeValue(fields[k]))
		h.Write([]byte{0x1f})
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

func encodeValue(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(fmt.Sprintf("%T:%v", v, v))
	}
	return b
}
