package ioc

import (
	"fmt"
	"strings"
	"time"

	"erp2mirror/internal/app"
	"erp2mirror/internal/erp"
	"go.uber.org/zap"
)

// InitTokenSource 根据配置选择账号密码换取 Token 或固定 Token。
func InitTokenSource(cfg app.Config) (erp.TokenSource, error) {
	src := cfg.ERP
	if src.Login != "" && src.Password != "" {
		endpoint := strings.TrimSpace(src.AuthEndpoint)
		if endpoint == "" {
			endpoint = "/api/auth/token"
		}
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = strings.TrimRight(src.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
		}
		return erp.NewPasswordTokenSource(erp.PasswordTokenConfig{
			Endpoint: endpoint,
			Login:    src.Login,
			Password: src.Password,
			Database: src.Database,
			Timeout:  src.Timeout(),
		})
	}
	if src.Token != "" {
		return &erp.StaticTokenSource{Value: src.Token}, nil
	}
	return nil, fmt.Errorf("erp 认证信息未配置")
}

// InitERPClient 构建 ERP 数据源客户端。
func InitERPClient(cfg app.Config, tokens erp.TokenSource, logger *zap.Logger) (erp.Fetcher, error) {
	src := cfg.ERP
	client, err := erp.NewHTTPClient(erp.HTTPConfig{
		BaseURL:        src.BaseURL,
		TokenSource:    tokens,
		Timeout:        src.Timeout(),
		AuthHeaderName: src.AuthHeader,
		AuthScheme:     src.AuthScheme,
		Method:         src.Method,
		PageSize:       src.PageSize,
		RateLimit:      src.RateLimit,
		RateBurst:      src.RateBurst,
		Breaker: erp.BreakerConfig{
			MaxFailures: src.Breaker.MaxFailures,
			OpenTimeout: time.Duration(src.Breaker.OpenTimeoutSeconds) * time.Second,
		},
		Logger: logger.Named("erp"),
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
