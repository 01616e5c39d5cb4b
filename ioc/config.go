package ioc

import (
	"os"
	"strings"

	"erp2mirror/internal/app"
)

const defaultConfigPath = "configs/config.yaml"

// ConfigPath 是配置文件路径，空值时依次回退到 ERP2MIRROR_CONFIG 和默认路径。
type ConfigPath string

// InitConfig 读取应用配置。
func InitConfig(path ConfigPath) (app.Config, error) {
	p := strings.TrimSpace(string(path))
	if p == "" {
		p = os.Getenv("ERP2MIRROR_CONFIG")
	}
	if p == "" {
		p = defaultConfigPath
	}
	return app.LoadConfig(p)
}
