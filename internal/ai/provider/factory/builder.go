package factory

import (
	"time"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
)

// ConfigBuilder 配置构建器（Builder 模式）
type ConfigBuilder struct {
	config *types.Config
}

// NewConfig 创建配置构建器，providerID 决定默认 Base URL
func NewConfig(providerID string) *ConfigBuilder {
	return &ConfigBuilder{
		config: &types.Config{
			BaseURL: DefaultBaseURL(providerID),
			Timeout: types.DefaultTimeout,
			Headers: make(map[string]string),
		},
	}
}

// WithAPIKey 设置 API Key
func (b *ConfigBuilder) WithAPIKey(apiKey string) *ConfigBuilder {
	b.config.APIKey = apiKey
	return b
}

// WithBaseURL 设置 Base URL，空值保留默认地址
func (b *ConfigBuilder) WithBaseURL(baseURL string) *ConfigBuilder {
	if baseURL != "" {
		b.config.BaseURL = baseURL
	}
	return b
}

// WithModel 设置默认模型
func (b *ConfigBuilder) WithModel(model string) *ConfigBuilder {
	b.config.Model = model
	return b
}

// WithTimeout 设置超时时间，非正值保留默认
func (b *ConfigBuilder) WithTimeout(timeout time.Duration) *ConfigBuilder {
	if timeout > 0 {
		b.config.Timeout = timeout
	}
	return b
}

// WithMaxAttempts 设置最大尝试次数
func (b *ConfigBuilder) WithMaxAttempts(n int) *ConfigBuilder {
	b.config.MaxAttempts = n
	return b
}

// WithRequestsPerMinute 设置客户端限流
func (b *ConfigBuilder) WithRequestsPerMinute(n int) *ConfigBuilder {
	b.config.RequestsPerMinute = n
	return b
}

// WithHeader 添加单个 Header
func (b *ConfigBuilder) WithHeader(key, value string) *ConfigBuilder {
	b.config.Headers[key] = value
	return b
}

// WithHeaders 批量设置 Headers
func (b *ConfigBuilder) WithHeaders(headers map[string]string) *ConfigBuilder {
	for key, value := range headers {
		b.config.Headers[key] = value
	}
	return b
}

// Build 构建最终配置
func (b *ConfigBuilder) Build() *types.Config {
	return b.config
}
