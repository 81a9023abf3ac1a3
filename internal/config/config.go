// Package config 负责集中式配置加载 (文件 + 环境变量 + 命令行参数)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix 是环境变量前缀，例如 LITELENS_SERVER_PORT
const EnvPrefix = "LITELENS"

const defaultPort = 10224

// ServerConfig HTTP/gRPC 服务相关配置
type ServerConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	GRPCPort  int    `mapstructure:"grpc_port"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	PprofAddr string `mapstructure:"pprof_addr"`
	// AllowRemoteWithoutAuth 为 true 时，即使未启用认证也允许非本机地址访问数据库接口
	AllowRemoteWithoutAuth bool `mapstructure:"allow_remote_without_auth"`
}

// DatabaseConfig 数据库句柄相关配置
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
	Watch           bool          `mapstructure:"watch"`
	SchemaCacheSize int           `mapstructure:"schema_cache_size"`
	SchemaCacheTTL  time.Duration `mapstructure:"schema_cache_ttl"`
}

// LimitsConfig 速率限制配置
type LimitsConfig struct {
	GlobalRate  float64 `mapstructure:"global_rate"`
	GlobalBurst int     `mapstructure:"global_burst"`
	IPRate      float64 `mapstructure:"ip_rate"`
	IPBurst     int     `mapstructure:"ip_burst"`
}

// UserConfig 是一个可登录用户，密码以 bcrypt 哈希保存
type UserConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

// AuthConfig 认证配置；JWTSecret 为空时关闭认证
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	Users     []UserConfig  `mapstructure:"users"`
}

// OutputConfig 命令行输出配置
type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// Config 结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Output   OutputConfig   `mapstructure:"output"`
}

// AuthEnabled 报告是否启用了 JWT 认证
func (c *Config) AuthEnabled() bool {
	return c.Auth.JWTSecret != ""
}

// ListenAddr 返回 HTTP 服务的监听地址。
// 未配置 host 时，启用认证或显式允许远程访问才监听所有网卡，否则只监听本机回环地址。
func (c *Config) ListenAddr() string {
	host := c.Server.Host
	if host == "" && !c.AuthEnabled() && !c.Server.AllowRemoteWithoutAuth {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, strconv.Itoa(c.Server.Port))
}

// AllowRemote 报告数据库接口是否接受来自非本机地址的请求
func (c *Config) AllowRemote() bool {
	return c.AuthEnabled() || c.Server.AllowRemoteWithoutAuth
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", defaultPort)
	v.SetDefault("server.grpc_port", 0)
	v.SetDefault("server.log_level", "INFO")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.pprof_addr", "")
	v.SetDefault("server.allow_remote_without_auth", false)

	v.SetDefault("database.path", "")
	v.SetDefault("database.busy_timeout", 5*time.Second)
	v.SetDefault("database.watch", true)
	v.SetDefault("database.schema_cache_size", 16)
	v.SetDefault("database.schema_cache_ttl", 5*time.Minute)

	v.SetDefault("limits.global_rate", 50.0)
	v.SetDefault("limits.global_burst", 100)
	v.SetDefault("limits.ip_rate", 10.0)
	v.SetDefault("limits.ip_burst", 20)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("output.format", "table")
}

// flagKeys 把命令行参数名映射到配置键
var flagKeys = map[string]string{
	"host":      "server.host",
	"port":      "server.port",
	"grpc-port": "server.grpc_port",
	"log-level": "server.log_level",
	"db":        "database.path",
	"output":    "output.format",
}

// Load 按 默认值 < 配置文件 < 环境变量 < 命令行参数 的优先级加载配置。
// cfgFile 为空时在 ./configs 与当前目录中查找可选的 config.yaml；flags 可以为 nil。
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		slog.Debug("配置文件已加载", "path", v.ConfigFileUsed())
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for flagName, key := range flagKeys {
			if f := flags.Lookup(flagName); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("绑定参数 --%s 失败: %w", flagName, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置到结构体失败: %w", err)
	}
	cfg.sanitize()
	return &cfg, nil
}

// sanitize 把非法值回退为默认值
func (c *Config) sanitize() {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		slog.Warn("server.port 非法，回退默认值", "value", c.Server.Port, "default", defaultPort)
		c.Server.Port = defaultPort
	}
	if !c.AuthEnabled() && c.Server.AllowRemoteWithoutAuth {
		slog.Warn("未启用认证且允许远程访问，任何能连到本服务的人都可以打开文件并执行 SQL")
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		slog.Warn("server.grpc_port 非法，已禁用 gRPC", "value", c.Server.GRPCPort)
		c.Server.GRPCPort = 0
	}
	if c.Database.BusyTimeout <= 0 {
		c.Database.BusyTimeout = 5 * time.Second
	}
	if c.Limits.GlobalRate <= 0 {
		c.Limits.GlobalRate = 50
	}
	if c.Limits.GlobalBurst <= 0 {
		c.Limits.GlobalBurst = 100
	}
	if c.Limits.IPRate <= 0 {
		c.Limits.IPRate = 10
	}
	if c.Limits.IPBurst <= 0 {
		c.Limits.IPBurst = 20
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	switch strings.ToLower(c.Output.Format) {
	case "table", "json", "csv", "md", "markdown":
		c.Output.Format = strings.ToLower(c.Output.Format)
	default:
		slog.Warn("output.format 非法，回退为 table", "value", c.Output.Format)
		c.Output.Format = "table"
	}
}
