package erp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"erp2mirror/internal/metrics"
	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultPageSize = 200
	maxPages        = 10000
	maxErrorBody    = 512
)

// TokenSource 提供调用 ERP 接口所需的 Token。
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	// Invalidate 丢弃 stale 对应的缓存，缓存已被换掉时不做任何事。
	Invalidate(stale string)
}

// StaticTokenSource 返回固定 Token，适用于测试或简易场景。
type StaticTokenSource struct {
	Value string
}

// Token 返回固定值。
func (s *StaticTokenSource) Token(context.Context) (string, error) {
	return s.Value, nil
}

func (s *StaticTokenSource) Invalidate(string) {}

// PasswordTokenSource 通过账号/密码调用认证接口换取 Token，只缓存在进程内存里。
// Token 不主动过期，仅在收到 401 后由 HTTPClient 失效并按需重新获取。
type PasswordTokenSource struct {
	endpoint   string
	login      string
	password   string
	database   string
	httpClient *http.Client

	// mu 在刷新期间一直持有，同一时间最多只有一个刷新请求在途。
	mu       sync.Mutex
	token    string
	acquired int
}

// PasswordTokenConfig 配置基于账号/密码的 TokenSource。
type PasswordTokenConfig struct {
	Endpoint   string
	Login      string
	Password   string
	Database   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewPasswordTokenSource 创建一个 PasswordTokenSource。
func NewPasswordTokenSource(cfg PasswordTokenConfig) (*PasswordTokenSource, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("token endpoint 不能为空")
	}
	if cfg.Login == "" || cfg.Password == "" {
		return nil, errors.New("账号和密码不能为空")
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &PasswordTokenSource{
		endpoint:   cfg.Endpoint,
		login:      cfg.Login,
		password:   cfg.Password,
		database:   cfg.Database,
		httpClient: client,
	}, nil
}

// Token 实现 TokenSource 接口，没有缓存时获取新 Token。
func (s *PasswordTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" {
		return s.token, nil
	}
	return s.refresh(ctx)
}

// Invalidate 仅当缓存仍是 stale 时才清除，并发的 401 只会触发一次重新认证。
func (s *PasswordTokenSource) Invalidate(stale string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == stale {
		s.token = ""
	}
}

// Acquired 返回累计获取 Token 的次数。
func (s *PasswordTokenSource) Acquired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired
}

func (s *PasswordTokenSource) refresh(ctx context.Context) (string, error) {
	body := map[string]string{
		"login":    s.login,
		"password": s.password,
	}
	if s.database != "" {
		body["db"] = s.database
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", &AuthError{Op: "acquire", Err: fmt.Errorf("编码 token 请求失败: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &AuthError{Op: "acquire", Err: fmt.Errorf("构建 token 请求失败: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &AuthError{Op: "acquire", Err: fmt.Errorf("获取 token 失败: %w", err)}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &AuthError{Op: "acquire", Err: fmt.Errorf("读取 token 响应失败: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &AuthError{Op: "acquire", StatusCode: resp.StatusCode, Err: fmt.Errorf("token 接口返回 %s", snippet(raw))}
	}

	token, err := extractToken(raw)
	if err != nil {
		return "", &AuthError{Op: "acquire", Err: err}
	}
	s.token = token
	s.acquired++
	return s.token, nil
}

// extractToken 兼容 {"token"}、{"access_token"}、{"data": {"token"}} 以及 jsonrpc 包装。
func extractToken(raw []byte) (string, error) {
	v, err := decodeJSON(raw)
	if err != nil {
		return "", fmt.Errorf("解析 token 响应失败: %w", err)
	}
	if v, err = unwrapRPC(v); err != nil {
		return "", err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return "", errors.New("token 响应不是对象")
	}
	candidates := []map[string]any{obj}
	if data, ok := obj["data"].(map[string]any); ok {
		candidates = append(candidates, data)
	}
	for _, c := range candidates {
		for _, key := range []string{"token", "access_token"} {
			if s, ok := c[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s), nil
			}
		}
	}
	return "", errors.New("token 响应中缺少 token")
}

// BreakerConfig 控制上游熔断，MaxFailures 为 0 时使用默认值。
type BreakerConfig struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

// HTTPConfig 配置 HTTP 客户端。
type HTTPConfig struct {
	BaseURL        string
	TokenSource    TokenSource
	Timeout        time.Duration
	CustomClient   *http.Client
	AuthHeaderName string
	// AuthScheme 为空字符串时直接发送原始 token。
	AuthScheme string
	Method     string
	PageSize   int
	RateLimit  float64
	RateBurst  int
	Breaker    BreakerConfig
	Logger     *zap.Logger
}

// Response 是一次成功调用的原始响应。
type Response struct {
	StatusCode int
	Body       []byte
}

// HTTPClient 实现 Fetcher，通过 HTTP 与 ERP 通信。
type HTTPClient struct {
	baseURL     string
	httpClient  *http.Client
	tokenSource TokenSource
	authHeader  string
	authScheme  string
	method      string
	pageSize    int
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker[*Response]
	logger      *zap.Logger
}

// NewHTTPClient 根据配置创建 ERP HTTP 客户端。
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("erp base url 不能为空")
	}
	client := cfg.CustomClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	authHeader := cfg.AuthHeaderName
	if strings.TrimSpace(authHeader) == "" {
		authHeader = "Authorization"
	}
	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = http.MethodGet
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HTTPClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  client,
		tokenSource: cfg.TokenSource,
		authHeader:  authHeader,
		authScheme:  cfg.AuthScheme,
		method:      method,
		pageSize:    pageSize,
		limiter:     rate.NewLimiter(limit, burst),
		breaker:     newBreaker(cfg.Breaker, logger),
		logger:      logger,
	}, nil
}

func newBreaker(cfg BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker[*Response] {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	name := "erp-upstream"
	metrics.BreakerState.WithLabelValues(name).Set(0)
	return gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:    name,
		Timeout: timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// 401 由重新认证处理，不计入熔断失败
		IsSuccessful: func(err error) bool {
			return err == nil || isUnauthorized(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("erp circuit breaker state changed", zap.String("from", from.String()), zap.String("to", to.String()))
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
}

// Do 带鉴权执行一次调用。收到 401 时失效当前 Token，重新获取一次并重试一次；
// 第二次 401 直接返回 AuthError。其余错误不重试，由调用方决定。
func (c *HTTPClient) Do(ctx context.Context, method, endpoint string, body any) (*Response, error) {
	if c == nil {
		return nil, errors.New("erp http client 未初始化")
	}
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := c.attempt(ctx, method, endpoint, body, token)
	if err == nil || !isUnauthorized(err) {
		return resp, err
	}

	if c.tokenSource == nil {
		return nil, &AuthError{Op: "call", StatusCode: http.StatusUnauthorized, Err: err}
	}
	metrics.Reauthentications.Inc()
	c.logger.Info("erp credential rejected, re-authenticating", zap.String("endpoint", endpoint))
	c.tokenSource.Invalidate(token)
	token, err = c.token(ctx)
	if err != nil {
		return nil, err
	}
	resp, err = c.attempt(ctx, method, endpoint, body, token)
	if isUnauthorized(err) {
		return nil, &AuthError{Op: "retry", StatusCode: http.StatusUnauthorized, Err: err}
	}
	return resp, err
}

// FetchAll 按 offset/limit 翻页拉取 endpoint 的全部记录，直到 has_more 为 false
// 或达到 total（缺失时取 count）。信封里两者都没有时视为只有一页；
// 某一页与上一页相同说明上游忽略了 offset，此时丢弃重复页并结束。
func (c *HTTPClient) FetchAll(ctx context.Context, endpoint string) ([]RemoteRow, error) {
	var (
		all     []RemoteRow
		offset  int
		lastSig string
	)
	for pageNo := 0; pageNo < maxPages; pageNo++ {
		target, err := c.pagedEndpoint(endpoint, offset)
		if err != nil {
			return nil, err
		}
		var body any
		if c.method != http.MethodGet {
			body = map[string]any{"params": map[string]any{"offset": offset, "limit": c.pageSize}}
		}
		resp, err := c.Do(ctx, c.method, target, body)
		if err != nil {
			return nil, err
		}
		p, err := parsePage(endpoint, resp.Body)
		if err != nil {
			return nil, err
		}
		sig := p.signature()
		if pageNo > 0 && sig == lastSig {
			c.logger.Warn("erp returned the same page twice, stop paging", zap.String("endpoint", endpoint), zap.Int("offset", offset))
			return all, nil
		}
		lastSig = sig
		all = append(all, p.rows...)

		if !p.envelope || len(p.rows) == 0 {
			return all, nil
		}
		offset += len(p.rows)
		switch {
		case p.hasMore != nil:
			if !*p.hasMore {
				return all, nil
			}
		case p.total != nil:
			if offset >= *p.total {
				return all, nil
			}
		default:
			return all, nil
		}
	}
	return nil, &UpstreamError{Endpoint: endpoint, Message: fmt.Sprintf("超过最大分页数 %d", maxPages)}
}

func (c *HTTPClient) pagedEndpoint(endpoint string, offset int) (string, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("解析请求地址失败: %w", err)
	}
	query := parsed.Query()
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(c.pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (c *HTTPClient) token(ctx context.Context) (string, error) {
	if c.tokenSource == nil {
		return "", nil
	}
	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return "", err
		}
		return "", &AuthError{Op: "acquire", Err: err}
	}
	return token, nil
}

func (c *HTTPClient) attempt(ctx context.Context, method, endpoint string, body any, token string) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &NetworkError{Endpoint: endpoint, Err: err}
	}
	resp, err := c.breaker.Execute(func() (*Response, error) {
		return c.send(ctx, method, endpoint, body, token)
	})
	switch {
	case err == nil:
		metrics.UpstreamRequests.WithLabelValues("success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.UpstreamRequests.WithLabelValues("rejected").Inc()
		return nil, &NetworkError{Endpoint: endpoint, Err: err}
	case isUnauthorized(err):
		metrics.UpstreamRequests.WithLabelValues("unauthorized").Inc()
	default:
		metrics.UpstreamRequests.WithLabelValues("failure").Inc()
	}
	return resp, err
}

func (c *HTTPClient) send(ctx context.Context, method, endpoint string, body any, token string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("编码请求失败: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(endpoint), reader)
	if err != nil {
		return nil, fmt.Errorf("构建请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		value := token
		if c.authScheme != "" {
			value = c.authScheme + " " + token
		}
		req.Header.Set(c.authHeader, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Endpoint: endpoint, Err: err}
	}
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, &NetworkError{Endpoint: endpoint, Err: fmt.Errorf("读取 ERP 响应失败: %w", err)}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &unauthorizedError{endpoint: endpoint, status: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: snippet(raw)}
	}
	if code, ok := envelopeStatus(raw); ok && code == http.StatusUnauthorized {
		return nil, &unauthorizedError{endpoint: endpoint, status: code}
	}
	return &Response{StatusCode: resp.StatusCode, Body: raw}, nil
}

func (c *HTTPClient) resolve(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}
