package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig 应用基础信息
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	// CommandRatePerSec 控制类接口的每客户端令牌桶速率
	CommandRatePerSec int `mapstructure:"commandRatePerSec"`
	CommandBurst      int `mapstructure:"commandBurst"`
}

// TransportConfig 耳机字节流连接配置。
// kind: rfcomm（直接打开蓝牙 RFCOMM socket）| tty（已绑定的 /dev/rfcommN）
// | tcp（开发用桥接）。
type TransportConfig struct {
	Kind string `mapstructure:"kind"`
	// Addr 按 kind 解释：rfcomm 为耳机 MAC，tty 为设备路径，tcp 为 host:port
	Addr        string        `mapstructure:"addr"`
	Channel     uint8         `mapstructure:"channel"`
	DialTimeout time.Duration `mapstructure:"dialTimeout"`
	// Bluez 为 true 时先经 BlueZ 确认适配器上电、设备已连接
	Bluez bool `mapstructure:"bluez"`
}

// SessionConfig 协议会话参数
type SessionConfig struct {
	HandshakeTimeout time.Duration `mapstructure:"handshakeTimeout"`
	HandshakeRetries int           `mapstructure:"handshakeRetries"`
	ReadBufSize      int           `mapstructure:"readBufSize"`
}

// LumberjackConfig 日志滚动（lumberjack）配置
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig 日志级别与输出配置
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// Config 顶层配置结构
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Transport TransportConfig `mapstructure:"transport"`
	Session   SessionConfig   `mapstructure:"session"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// Load 从 YAML/TOML/JSON 文件与环境变量加载配置。
// 若 path 为空则尝试 configs/example.yaml，允许文件缺失（靠默认值与环境变量跑起来）。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("example")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	// 环境变量覆盖：前缀 XM5_，点号替换为下划线
	v.SetEnvPrefix("XM5")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if fmt.Sprintf("%T", err) != fmt.Sprintf("%T", notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "xm5ctl")
	v.SetDefault("app.env", "dev")

	v.SetDefault("http.addr", "127.0.0.1:8385")
	v.SetDefault("http.readTimeout", "10s")
	v.SetDefault("http.writeTimeout", "10s")
	v.SetDefault("http.commandRatePerSec", 5)
	v.SetDefault("http.commandBurst", 10)

	v.SetDefault("transport.kind", "rfcomm")
	v.SetDefault("transport.channel", 9)
	v.SetDefault("transport.dialTimeout", "10s")
	v.SetDefault("transport.bluez", true)

	// 握手 1.5s 超时、3 次重发，与抓包观察到的官方客户端行为一致
	v.SetDefault("session.handshakeTimeout", "1500ms")
	v.SetDefault("session.handshakeRetries", 3)
	v.SetDefault("session.readBufSize", 1024)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "logs/xm5ctl.log")
	v.SetDefault("logging.file.maxSize", 50)
	v.SetDefault("logging.file.maxBackups", 5)
	v.SetDefault("logging.file.maxAge", 14)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")
}

func (c *Config) validate() error {
	switch c.Transport.Kind {
	case "rfcomm", "tty", "tcp":
	default:
		return fmt.Errorf("transport.kind %q not one of rfcomm/tty/tcp", c.Transport.Kind)
	}
	if c.Session.HandshakeRetries < 0 {
		return fmt.Errorf("session.handshakeRetries must be >= 0")
	}
	if c.Session.ReadBufSize <= 0 {
		return fmt.Errorf("session.readBufSize must be > 0")
	}
	return nil
}
