// Package config 自动交易机配置：YAML 文件 + AUTOTRADER_* 环境变量覆盖。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// 默认值。四个交易所限额的默认来自比赛规则，但始终可由配置覆盖，
// 核心组件只认注入值。
const (
	DefaultPositionLimit   = 100
	DefaultOrderCountLimit = 10
	DefaultVolumeLimit     = 200
	DefaultRateLimit       = 20
	DefaultRateIntervalMs  = 1000

	DefaultTickSize        = 100
	DefaultHalfSpreadCents = 200
	DefaultSkewPerLotCents = 100
	DefaultQuoteSize       = 10
	DefaultHedgeWindowMs   = 5000
	DefaultEventBuffer     = 1024
)

// Config 会话配置。核心组件把它当作会话期内不可变。
type Config struct {
	// ===== 交易所限额 =====
	PositionLimit   int `yaml:"positionLimit" json:"positionLimit"`     // ETF 持仓绝对值上限
	OrderCountLimit int `yaml:"orderCountLimit" json:"orderCountLimit"` // 活跃订单数上限
	VolumeLimit     int `yaml:"volumeLimit" json:"volumeLimit"`         // 活跃挂单量上限（lots）
	RateLimit       int `yaml:"rateLimit" json:"rateLimit"`             // 滚动窗口内操作数上限
	RateIntervalMs  int `yaml:"rateIntervalMs" json:"rateIntervalMs"`   // 滚动窗口长度（毫秒）

	// ===== 报价参数 =====
	TickSize        int `yaml:"tickSize" json:"tickSize"`               // 价格最小变动（分）
	HalfSpreadCents int `yaml:"halfSpreadCents" json:"halfSpreadCents"` // 半价差（分）
	SkewPerLotCents int `yaml:"skewPerLotCents" json:"skewPerLotCents"` // 每 lot 持仓的报价偏移（分）
	QuoteSize       int `yaml:"quoteSize" json:"quoteSize"`             // 目标单侧报价量（lots）

	// ===== 对冲核对 =====
	HedgeWindowMs int `yaml:"hedgeWindowMs" json:"hedgeWindowMs"` // 对冲确认预期窗口（毫秒）

	// ===== 熔断 =====
	MaxConsecutiveRejects int   `yaml:"maxConsecutiveRejects" json:"maxConsecutiveRejects"` // 连续拒单熔断阈值（0 关闭）
	SessionLossLimitCents int64 `yaml:"sessionLossLimitCents" json:"sessionLossLimitCents"` // 本场亏损熔断（分，0 关闭）

	// ===== 会话 =====
	ExchangeURL string `yaml:"exchangeURL" json:"exchangeURL"` // WS 网关地址
	TraderName  string `yaml:"traderName" json:"traderName"`   // 登录名
	Secret      string `yaml:"secret" json:"secret"`           // 登录密钥（建议走环境变量）
	EventBuffer int    `yaml:"eventBuffer" json:"eventBuffer"` // 引擎事件队列长度

	// ===== 旁路 =====
	JournalDir       string `yaml:"journalDir" json:"journalDir"`             // journal 目录（空 = 关闭）
	ControlPlaneAddr string `yaml:"controlPlaneAddr" json:"controlPlaneAddr"` // 状态页监听地址（空 = 关闭）
	EnableDashboard  bool   `yaml:"enableDashboard" json:"enableDashboard"`   // 终端 dashboard

	// ===== 日志 =====
	LogLevel string `yaml:"logLevel" json:"logLevel"`
	LogFile  string `yaml:"logFile" json:"logFile"`
}

// Load 读配置文件（可为空路径）→ 默认值 → 环境变量覆盖 → 校验。
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析YAML配置失败: %w", err)
		}
	}

	cfg.ApplyDefaults()
	cfg.applyEnvironmentOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults 应用默认值。
func (c *Config) ApplyDefaults() {
	if c.PositionLimit == 0 {
		c.PositionLimit = DefaultPositionLimit
	}
	if c.OrderCountLimit == 0 {
		c.OrderCountLimit = DefaultOrderCountLimit
	}
	if c.VolumeLimit == 0 {
		c.VolumeLimit = DefaultVolumeLimit
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.RateIntervalMs == 0 {
		c.RateIntervalMs = DefaultRateIntervalMs
	}
	if c.TickSize == 0 {
		c.TickSize = DefaultTickSize
	}
	if c.HalfSpreadCents == 0 {
		c.HalfSpreadCents = DefaultHalfSpreadCents
	}
	if c.SkewPerLotCents == 0 {
		c.SkewPerLotCents = DefaultSkewPerLotCents
	}
	if c.QuoteSize == 0 {
		c.QuoteSize = DefaultQuoteSize
	}
	if c.HedgeWindowMs == 0 {
		c.HedgeWindowMs = DefaultHedgeWindowMs
	}
	if c.EventBuffer == 0 {
		c.EventBuffer = DefaultEventBuffer
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate 验证配置有效性。
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config不能为空")
	}
	if c.PositionLimit <= 0 {
		return fmt.Errorf("positionLimit必须大于0，当前值: %d", c.PositionLimit)
	}
	if c.OrderCountLimit <= 0 {
		return fmt.Errorf("orderCountLimit必须大于0，当前值: %d", c.OrderCountLimit)
	}
	if c.VolumeLimit <= 0 {
		return fmt.Errorf("volumeLimit必须大于0，当前值: %d", c.VolumeLimit)
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("rateLimit必须大于0，当前值: %d", c.RateLimit)
	}
	if c.RateIntervalMs <= 0 {
		return fmt.Errorf("rateIntervalMs必须大于0，当前值: %d", c.RateIntervalMs)
	}
	if c.TickSize <= 0 {
		return fmt.Errorf("tickSize必须大于0，当前值: %d", c.TickSize)
	}
	if c.HalfSpreadCents < 0 {
		return fmt.Errorf("halfSpreadCents不能为负数，当前值: %d", c.HalfSpreadCents)
	}
	if c.SkewPerLotCents < 0 {
		return fmt.Errorf("skewPerLotCents不能为负数，当前值: %d", c.SkewPerLotCents)
	}
	if c.QuoteSize <= 0 {
		return fmt.Errorf("quoteSize必须大于0，当前值: %d", c.QuoteSize)
	}
	if c.QuoteSize > c.PositionLimit {
		return fmt.Errorf("quoteSize不能大于positionLimit，当前值: quote=%d, position=%d",
			c.QuoteSize, c.PositionLimit)
	}
	if c.HedgeWindowMs <= 0 {
		return fmt.Errorf("hedgeWindowMs必须大于0，当前值: %d", c.HedgeWindowMs)
	}
	return nil
}

// RateInterval 滚动窗口时长。
func (c *Config) RateInterval() time.Duration {
	return time.Duration(c.RateIntervalMs) * time.Millisecond
}

// HedgeWindow 对冲确认预期窗口。
func (c *Config) HedgeWindow() time.Duration {
	return time.Duration(c.HedgeWindowMs) * time.Millisecond
}

// applyEnvironmentOverrides 应用环境变量覆盖。
// 环境变量格式: AUTOTRADER_FIELD_NAME
func (c *Config) applyEnvironmentOverrides() {
	prefix := "AUTOTRADER_"

	overrideInt := func(key string, dst *int) {
		if val := os.Getenv(prefix + key); val != "" {
			if i, err := strconv.Atoi(val); err == nil {
				*dst = i
			}
		}
	}
	overrideString := func(key string, dst *string) {
		if val := os.Getenv(prefix + key); val != "" {
			*dst = val
		}
	}

	overrideInt("POSITION_LIMIT", &c.PositionLimit)
	overrideInt("ORDER_COUNT_LIMIT", &c.OrderCountLimit)
	overrideInt("VOLUME_LIMIT", &c.VolumeLimit)
	overrideInt("RATE_LIMIT", &c.RateLimit)
	overrideInt("RATE_INTERVAL_MS", &c.RateIntervalMs)

	overrideInt("TICK_SIZE", &c.TickSize)
	overrideInt("HALF_SPREAD_CENTS", &c.HalfSpreadCents)
	overrideInt("SKEW_PER_LOT_CENTS", &c.SkewPerLotCents)
	overrideInt("QUOTE_SIZE", &c.QuoteSize)
	overrideInt("HEDGE_WINDOW_MS", &c.HedgeWindowMs)

	overrideString("EXCHANGE_URL", &c.ExchangeURL)
	overrideString("TRADER_NAME", &c.TraderName)
	overrideString("SECRET", &c.Secret)
	overrideString("JOURNAL_DIR", &c.JournalDir)
	overrideString("CONTROL_PLANE_ADDR", &c.ControlPlaneAddr)
	overrideString("LOG_LEVEL", &c.LogLevel)
	overrideString("LOG_FILE", &c.LogFile)

	if val := os.Getenv(prefix + "SESSION_LOSS_LIMIT_CENTS"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.SessionLossLimitCents = i
		}
	}
	if val := os.Getenv(prefix + "MAX_CONSECUTIVE_REJECTS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			c.MaxConsecutiveRejects = i
		}
	}
	if val := os.Getenv(prefix + "ENABLE_DASHBOARD"); val != "" {
		c.EnableDashboard = strings.ToLower(val) == "true"
	}
}
