package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr string `yaml:"addr" validate:"required"`
}

type Log struct {
	Level    string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Encoding string `yaml:"encoding" validate:"omitempty,oneof=console json"`
}

type Breaker struct {
	MaxFailures        uint32 `yaml:"max_failures"`
	OpenTimeoutSeconds int    `yaml:"open_timeout_seconds" validate:"gte=0"`
}

type Endpoints struct {
	Products string `yaml:"products" validate:"required"`
	Loyalty  string `yaml:"loyalty" validate:"required"`
}

type ERP struct {
	BaseURL        string    `yaml:"base_url" validate:"required,url"`
	AuthEndpoint   string    `yaml:"auth_endpoint"`
	Login          string    `yaml:"login"`
	Password       string    `yaml:"password"`
	Database       string    `yaml:"database"`
	Token          string    `yaml:"token"`
	AuthHeader     string    `yaml:"auth_header"`
	AuthScheme     string    `yaml:"auth_scheme"`
	Method         string    `yaml:"method" validate:"omitempty,oneof=GET POST get post"`
	TimeoutSeconds int       `yaml:"timeout_seconds" validate:"gte=0"`
	PageSize       int       `yaml:"page_size" validate:"gte=0"`
	RateLimit      float64   `yaml:"rate_limit" validate:"gte=0"`
	RateBurst      int       `yaml:"rate_burst" validate:"gte=0"`
	Breaker        Breaker   `yaml:"breaker"`
	Endpoints      Endpoints `yaml:"endpoints"`
}

type Mirror struct {
	Driver                string `yaml:"driver" validate:"required,oneof=postgres sqlite3 memory"`
	DSN                   string `yaml:"dsn" validate:"required_unless=Driver memory"`
	MaxOpenConns          int    `yaml:"max_open_conns" validate:"gte=0"`
	ConnectAttempts       int    `yaml:"connect_attempts" validate:"gte=0"`
	ConnectBackoffSeconds int    `yaml:"connect_backoff_seconds" validate:"gte=0"`
}

type Neo4j struct {
	Enabled              bool   `yaml:"enabled"`
	URI                  string `yaml:"uri" validate:"required_if=Enabled true"`
	Username             string `yaml:"username"`
	Password             string `yaml:"password"`
	Database             string `yaml:"database"`
	MaxConnectionPool    int    `yaml:"max_connections" validate:"gte=0"`
	ConnectTimeoutSecond int    `yaml:"connect_timeout_second" validate:"gte=0"`
	BatchSize            int    `yaml:"batch_size" validate:"gte=0"`
}

type Loyalty struct {
	AllowedTypes []string `yaml:"allowed_types"`
}

type Sync struct {
	Cron            string   `yaml:"cron"`
	ScheduleEnabled bool     `yaml:"schedule_enabled"`
	InitialSync     bool     `yaml:"initial_sync"`
	Locales         []string `yaml:"locales"`
	DefaultName     string   `yaml:"default_name"`
	DefaultTaxRate  *float64 `yaml:"default_tax_rate" validate:"omitempty,gte=0,lte=1"`
	Loyalty         Loyalty  `yaml:"loyalty"`
}

type Config struct {
	HTTP   HTTP   `yaml:"http"`
	Log    Log    `yaml:"log"`
	ERP    ERP    `yaml:"erp"`
	Mirror Mirror `yaml:"mirror"`
	Neo4j  Neo4j  `yaml:"neo4j"`
	Sync   Sync   `yaml:"sync"`
}

// LoadConfig 从文件加载配置，${VAR} 形式的引用在解析前按环境变量展开。
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("读取配置失败: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig 解析、补默认值并校验配置。
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, fmt.Errorf("解析配置失败: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Encoding == "" {
		c.Log.Encoding = "console"
	}
	if c.ERP.AuthHeader == "" {
		c.ERP.AuthHeader = "Authorization"
	}
	if c.ERP.TimeoutSeconds == 0 {
		c.ERP.TimeoutSeconds = 30
	}
	if c.ERP.Endpoints.Products == "" {
		c.ERP.Endpoints.Products = "/api/products/all"
	}
	if c.ERP.Endpoints.Loyalty == "" {
		c.ERP.Endpoints.Loyalty = "/api/loyalty/all"
	}
	if c.Mirror.Driver == "" {
		c.Mirror.Driver = "sqlite3"
	}
	if c.Mirror.ConnectAttempts == 0 {
		c.Mirror.ConnectAttempts = 5
	}
	if c.Mirror.ConnectBackoffSeconds == 0 {
		c.Mirror.ConnectBackoffSeconds = 1
	}
	if c.Neo4j.BatchSize == 0 {
		c.Neo4j.BatchSize = 500
	}
	if c.Sync.Cron == "" {
		c.Sync.Cron = "0 */5 * * * *"
	}
	if c.Sync.DefaultName == "" {
		c.Sync.DefaultName = "Unknown"
	}
	if len(c.Sync.Locales) == 0 {
		c.Sync.Locales = []string{"ar_001", "en_US"}
	}
}

var validate = validator.New()

// CronFields 是同步 cron 表达式支持的字段，秒字段可选。
const CronFields = cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor

// Validate 校验字段约束以及字段之间的组合约束。
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s(%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("配置校验失败: %s", strings.Join(msgs, ", "))
		}
		return fmt.Errorf("配置校验失败: %w", err)
	}
	if _, err := cron.NewParser(CronFields).Parse(c.Sync.Cron); err != nil {
		return fmt.Errorf("配置校验失败: sync.cron %q 非法: %w", c.Sync.Cron, err)
	}
	if c.ERP.Token == "" && (c.ERP.Login == "" || c.ERP.Password == "") {
		return errors.New("配置校验失败: erp.token 或 erp.login/erp.password 至少需要一组")
	}
	return nil
}

// Timeout 返回 ERP 请求超时。
func (e ERP) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// TaxRate 返回商品税率缺省值，未配置时为 0.15。
func (s Sync) TaxRate() float64 {
	if s.DefaultTaxRate == nil {
		return 0.15
	}
	return *s.DefaultTaxRate
}
