package erp

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// RemoteRow 是 ERP 返回的一条原始记录，结构随实体类型变化。
type RemoteRow map[string]any

// Fetcher 抽象 ERP 数据源。
type Fetcher interface {
	FetchAll(ctx context.Context, endpoint string) ([]RemoteRow, error)
}

// StaticClient 用于测试或离线运行，直接返回内存中的数据。
type StaticClient struct {
	Rows   map[string][]RemoteRow
	Errors map[string]error
}

// FetchAll 返回预设数据。
func (c *StaticClient) FetchAll(_ context.Context, endpoint string) ([]RemoteRow, error) {
	if err, ok := c.Errors[endpoint]; ok && err != nil {
		return nil, err
	}
	return c.Rows[endpoint], nil
}

// page 是一次分页请求解析后的结果。
type page struct {
	rows     []RemoteRow
	envelope bool
	hasMore  *bool
	total    *int
}

// signature 用首尾两行的 id 和行数标识一页，用于发现忽略 offset 的上游。
func (p page) signature() string {
	if len(p.rows) == 0 {
		return ""
	}
	first, last := p.rows[0], p.rows[len(p.rows)-1]
	return fmt.Sprintf("%d:%v:%v", len(p.rows), first["id"], last["id"])
}

// decodeJSON 以 UseNumber 方式解析，保留数字的原始写法交给转换层处理。
func decodeJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// unwrapRPC 兼容 type='json' 路由返回的 {"jsonrpc": "2.0", "result": {...}} 包装。
func unwrapRPC(v any) (any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return v, nil
	}
	if _, isRPC := obj["jsonrpc"]; !isRPC {
		return v, nil
	}
	if rpcErr, ok := obj["error"]; ok && rpcErr != nil {
		return nil, fmt.Errorf("jsonrpc error: %s", describe(rpcErr))
	}
	return obj["result"], nil
}

// envelopeStatus 读取信封中的数字 status，ERP 对过期 token 返回 200 + {"status": 401}。
func envelopeStatus(body []byte) (int, bool) {
	v, err := decodeJSON(body)
	if err != nil {
		return 0, false
	}
	v, err = unwrapRPC(v)
	if err != nil {
		return 0, false
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return 0, false
	}
	code, ok := toInt(obj["status"])
	return code, ok
}

func parsePage(endpoint string, body []byte) (page, error) {
	v, err := decodeJSON(body)
	if err != nil {
		return page{}, &UpstreamError{Endpoint: endpoint, Message: fmt.Sprintf("解析响应失败: %v", err)}
	}
	v, err = unwrapRPC(v)
	if err != nil {
		return page{}, &UpstreamError{Endpoint: endpoint, Message: err.Error()}
	}

	switch payload := v.(type) {
	case []any:
		return page{rows: toRows(payload)}, nil
	case map[string]any:
		return parseEnvelope(endpoint, payload)
	case nil:
		return page{}, &UpstreamError{Endpoint: endpoint, Message: "empty response"}
	default:
		return page{}, &UpstreamError{Endpoint: endpoint, Message: fmt.Sprintf("unexpected response type %T", v)}
	}
}

func parseEnvelope(endpoint string, obj map[string]any) (page, error) {
	status, hasStatus := obj["status"]
	if hasStatus {
		if s, ok := status.(string); !ok || !strings.EqualFold(s, "success") {
			return page{}, &UpstreamError{Endpoint: endpoint, Message: envelopeMessage(obj, status)}
		}
	} else if obj["error"] != nil || obj["message"] != nil {
		return page{}, &UpstreamError{Endpoint: endpoint, Message: envelopeMessage(obj, nil)}
	}

	p := page{envelope: true}
	switch data := obj["data"].(type) {
	case []any:
		p.rows = toRows(data)
	case map[string]any:
		// */changed 接口把数据拆成 created/updated/deleted 三组
		for _, key := range []string{"created", "updated"} {
			if list, ok := data[key].([]any); ok {
				p.rows = append(p.rows, toRows(list)...)
			}
		}
	case nil:
		if !hasStatus {
			return page{}, &UpstreamError{Endpoint: endpoint, Message: "response has no data"}
		}
	default:
		return page{}, &UpstreamError{Endpoint: endpoint, Message: fmt.Sprintf("unexpected data type %T", data)}
	}

	if raw, ok := obj["has_more"]; ok && raw != nil {
		more := truthy(raw)
		p.hasMore = &more
	}
	if n, ok := toInt(obj["total"]); ok {
		p.total = &n
	} else if n, ok := toInt(obj["count"]); ok {
		// 原始接口不分页，只返回 count
		p.total = &n
	}
	return p, nil
}

func toRows(list []any) []RemoteRow {
	rows := make([]RemoteRow, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			// 非对象元素保留为空行，由下游计入 skipped
			rows = append(rows, RemoteRow{})
			continue
		}
		rows = append(rows, RemoteRow(obj))
	}
	return rows
}

func envelopeMessage(obj map[string]any, status any) string {
	for _, key := range []string{"message", "error"} {
		if v, ok := obj[key]; ok && v != nil {
			return describe(v)
		}
	}
	return fmt.Sprintf("status=%v", status)
}

func describe(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if msg, ok := t["message"].(string); ok {
			return msg
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case float64:
		return int(t), true
	case int:
		return t, true
	}
	return 0, false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true") || t == "1"
	case json.Number:
		return t.String() != "0"
	}
	return false
}
