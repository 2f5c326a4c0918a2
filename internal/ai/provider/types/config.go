package types

import (
	"errors"
	"time"
)

// 默认值
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxAttempts = 3
)

var (
	ErrMissingAPIKey  = errors.New("API key is required")
	ErrMissingBaseURL = errors.New("base URL is required")
)

// Config Provider 通用配置
type Config struct {
	APIKey  string            // API Key
	BaseURL string            // API 基础 URL
	Timeout time.Duration     // 单次请求超时
	Model   string            // 默认模型
	Headers map[string]string // 自定义 HTTP Headers

	MaxAttempts       int // 最大尝试次数（含首次）
	RequestsPerMinute int // 客户端限流，0 表示不限
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.BaseURL == "" {
		return ErrMissingBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	return nil
}
