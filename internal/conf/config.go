package conf

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/factory"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/database"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/logger"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/redis"
)

// EnvPrefix 环境变量前缀，如 AICHAT_SERVER_PORT
const EnvPrefix = "AICHAT"

// 会话存储驱动
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Log       logger.Config             `mapstructure:"log"`
	Chat      ChatConfig                `mapstructure:"chat"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Store     StoreConfig               `mapstructure:"store"`
	Redis     redis.Config              `mapstructure:"redis"`
	Database  database.Config           `mapstructure:"database"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ChatConfig 对话核心参数
type ChatConfig struct {
	MaxMessages     int           `mapstructure:"max_messages"`
	ReserveTokens   int           `mapstructure:"reserve_tokens"`
	ParallelWorkers int           `mapstructure:"parallel_workers"`
	DefaultTimeout  time.Duration `mapstructure:"default_timeout"`
	ModelsTTL       time.Duration `mapstructure:"models_ttl"`
	Tokenizer       string        `mapstructure:"tokenizer"` // chars, tiktoken
}

// ProviderConfig 单个服务商配置，未填写 api_key 的服务商不会启用
type ProviderConfig struct {
	APIKey            string               `mapstructure:"api_key"`
	BaseURL           string               `mapstructure:"base_url"`
	Model             string               `mapstructure:"model"`
	Timeout           time.Duration        `mapstructure:"timeout"`
	MaxAttempts       int                  `mapstructure:"max_attempts"`
	Headers           map[string]string    `mapstructure:"headers"`
	RequestsPerMinute int                  `mapstructure:"requests_per_minute"`
	TokensPerMinute   int                  `mapstructure:"tokens_per_minute"`
	Status            types.ProviderStatus `mapstructure:"status"`
	Aliases           []string             `mapstructure:"aliases"`
}

// StoreConfig 会话存储
type StoreConfig struct {
	Driver string        `mapstructure:"driver"` // memory, redis, postgres
	TTL    time.Duration `mapstructure:"ttl"`    // 仅 redis
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Mode:            "release",
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: *logger.DefaultConfig(),
		Chat: ChatConfig{
			MaxMessages:     50,
			ReserveTokens:   500,
			ParallelWorkers: 16,
			DefaultTimeout:  types.DefaultTimeout,
			ModelsTTL:       10 * time.Minute,
			Tokenizer:       "chars",
		},
		Providers: map[string]ProviderConfig{},
		Store:     StoreConfig{Driver: StoreMemory},
		Redis:     *redis.DefaultConfig(),
		Database:  *database.DefaultConfig(),
	}
}

// LoadConfig 读取配置文件并应用环境变量覆盖，path 为空时只使用默认值与环境变量
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	config := Default()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// bindEnv 绑定环境变量，未出现在配置文件中的键也能被覆盖
func bindEnv(v *viper.Viper) {
	keys := []string{
		"server.host", "server.port", "server.mode",
		"log.level", "log.format", "log.output",
		"chat.max_messages", "chat.reserve_tokens", "chat.parallel_workers",
		"chat.default_timeout", "chat.models_ttl", "chat.tokenizer",
		"store.driver", "store.ttl",
		"redis.mode", "redis.addrs", "redis.password", "redis.db", "redis.key_prefix",
		"database.host", "database.port", "database.user", "database.password",
		"database.dbname", "database.sslmode",
	}
	for _, id := range types.ProviderIDs() {
		keys = append(keys,
			"providers."+id+".api_key",
			"providers."+id+".base_url",
			"providers."+id+".model",
			"providers."+id+".status",
		)
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("server port must be between 1 and 65535")
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if c.Chat.MaxMessages < 0 || c.Chat.ReserveTokens < 0 || c.Chat.ParallelWorkers < 0 {
		return errors.New("chat limits must be >= 0")
	}
	if c.Chat.Tokenizer != "" && c.Chat.Tokenizer != "chars" && c.Chat.Tokenizer != "tiktoken" {
		return fmt.Errorf("unknown tokenizer %q", c.Chat.Tokenizer)
	}

	for id, p := range c.Providers {
		if !slices.Contains(types.ProviderIDs(), id) {
			return fmt.Errorf("unknown provider %q", id)
		}
		switch p.Status {
		case "", types.ProviderOnline, types.ProviderMaintenance, types.ProviderOffline:
		default:
			return fmt.Errorf("provider %s: invalid status %q", id, p.Status)
		}
	}

	switch c.Store.Driver {
	case StoreMemory, "":
	case StoreRedis:
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	case StorePostgres:
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// EnabledProviders 返回配置了 api_key 的服务商，按 ID 排序
func (c *Config) EnabledProviders() []string {
	var ids []string
	for id, p := range c.Providers {
		if p.APIKey != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ProviderConfig 转换为适配器配置，未单独设置的超时使用 chat.default_timeout
func (c *Config) ProviderConfig(id string) (*types.Config, error) {
	p, ok := c.Providers[id]
	if !ok {
		return nil, types.NewConfigError(id, "provider not configured", types.ErrProviderNotRegistered)
	}
	if p.APIKey == "" {
		return nil, types.NewConfigError(id, "provider not configured", types.ErrMissingAPIKey)
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = c.Chat.DefaultTimeout
	}
	return factory.NewConfig(id).
		WithAPIKey(p.APIKey).
		WithBaseURL(p.BaseURL).
		WithModel(p.Model).
		WithTimeout(timeout).
		WithMaxAttempts(p.MaxAttempts).
		WithRequestsPerMinute(p.RequestsPerMinute).
		WithHeaders(p.Headers).
		Build(), nil
}

// Features 服务商限流信息
func (p ProviderConfig) Features() types.Features {
	return types.Features{
		RateLimits: types.RateLimits{
			RequestsPerMinute: p.RequestsPerMinute,
			TokensPerMinute:   p.TokensPerMinute,
		},
	}
}
