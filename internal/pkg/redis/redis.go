package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/logger"
)

// Client Redis 客户端封装，单机、哨兵与集群统一为 UniversalClient
type Client struct {
	redis.UniversalClient
	config *Config
	logger *logger.Logger
}

// New 创建客户端并检查连通性
func New(cfg *Config, l *logger.Logger) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if l == nil {
		l = logger.L()
	}

	c := &Client{
		UniversalClient: redis.NewUniversalClient(cfg.options()),
		config:          cfg,
		logger:          l.Named("redis"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		_ = c.UniversalClient.Close()
		return nil, err
	}

	c.logger.Info("redis connected",
		zap.String("mode", string(cfg.Mode)),
		zap.Strings("addrs", cfg.Addrs),
		zap.Int("db", cfg.DB),
	)
	return c, nil
}

// NewFromClient 包装已有客户端，不做连通性检查
func NewFromClient(rdb redis.UniversalClient, cfg *Config, l *logger.Logger) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if l == nil {
		l = logger.L()
	}
	return &Client{UniversalClient: rdb, config: cfg, logger: l.Named("redis")}
}

// options 转换为 go-redis 选项
func (c *Config) options() *redis.UniversalOptions {
	opts := &redis.UniversalOptions{
		Addrs:        c.Addrs,
		Username:     c.Username,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		MaxRetries:   c.MaxRetries,
	}
	switch c.Mode {
	case ModeSentinel:
		opts.MasterName = c.MasterName
	case ModeCluster:
		opts.IsClusterMode = true
	default:
		if len(c.Addrs) > 1 {
			opts.Addrs = c.Addrs[:1]
		}
	}
	return opts
}

// Key 拼接带前缀的键，如 aichat:conv:123
func (c *Client) Key(parts ...string) string {
	if c.config.KeyPrefix == "" {
		return strings.Join(parts, ":")
	}
	return c.config.KeyPrefix + ":" + strings.Join(parts, ":")
}

// Ping 健康检查
func (c *Client) Ping(ctx context.Context) error {
	if err := c.UniversalClient.Ping(ctx).Err(); err != nil {
		c.logger.Error("redis ping failed", zap.Error(err))
		return err
	}
	return nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if err := c.UniversalClient.Close(); err != nil {
		c.logger.Error("close redis client failed", zap.Error(err))
		return err
	}
	c.logger.Info("redis client closed")
	return nil
}
