package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewZapLogger 按级别和编码构建 logger，encoding 为 json 时使用生产配置。
func NewZapLogger(level, encoding string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return nil, fmt.Errorf("非法日志级别 %q: %w", level, err)
	}
	cfg := zap.NewDevelopmentConfig()
	if strings.EqualFold(encoding, "json") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg.Encoding = "console"
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
