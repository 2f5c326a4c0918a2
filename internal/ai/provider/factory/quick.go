package factory

import (
	"time"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/anthropic"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/cohere"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/google"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/mistral"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/openai"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/openrouter"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
)

// Option 配置选项函数
type Option func(*types.Config)

// WithModel 返回设置模型的 Option
func WithModel(model string) Option {
	return func(c *types.Config) {
		c.Model = model
	}
}

// WithBaseURL 返回覆盖 Base URL 的 Option，用于代理或自建网关
func WithBaseURL(baseURL string) Option {
	return func(c *types.Config) {
		if baseURL != "" {
			c.BaseURL = baseURL
		}
	}
}

// WithTimeout 返回设置超时的 Option
func WithTimeout(timeout time.Duration) Option {
	return func(c *types.Config) {
		c.Timeout = timeout
	}
}

// WithRequestsPerMinute 返回设置限流的 Option
func WithRequestsPerMinute(n int) Option {
	return func(c *types.Config) {
		c.RequestsPerMinute = n
	}
}

// WithHeader 返回添加单个 Header 的 Option
func WithHeader(key, value string) Option {
	return func(c *types.Config) {
		if c.Headers == nil {
			c.Headers = make(map[string]string)
		}
		c.Headers[key] = value
	}
}

// DefaultBaseURL 返回服务商的官方地址，未知服务商返回空串
func DefaultBaseURL(providerID string) string {
	switch providerID {
	case types.ProviderIDOpenAI:
		return openai.DefaultBaseURL
	case types.ProviderIDAnthropic:
		return anthropic.DefaultBaseURL
	case types.ProviderIDGoogle:
		return google.DefaultBaseURL
	case types.ProviderIDOpenRouter:
		return openrouter.DefaultBaseURL
	case types.ProviderIDCohere:
		return cohere.DefaultBaseURL
	case types.ProviderIDMistral:
		return mistral.DefaultBaseURL
	}
	return ""
}

func quick(providerID, apiKey string, opts []Option) *types.Config {
	config := NewConfig(providerID).WithAPIKey(apiKey).Build()
	for _, opt := range opts {
		opt(config)
	}
	return config
}

// OpenAI 快速创建 OpenAI 配置
func OpenAI(apiKey string, opts ...Option) *types.Config {
	return quick(types.ProviderIDOpenAI, apiKey, opts)
}

// Anthropic 快速创建 Anthropic 配置
func Anthropic(apiKey string, opts ...Option) *types.Config {
	return quick(types.ProviderIDAnthropic, apiKey, opts)
}

// Google 快速创建 Gemini 配置
func Google(apiKey string, opts ...Option) *types.Config {
	return quick(types.ProviderIDGoogle, apiKey, opts)
}

// OpenRouter 快速创建 OpenRouter 配置，appURL、appTitle 可为空
func OpenRouter(apiKey, appURL, appTitle string, opts ...Option) *types.Config {
	config := quick(types.ProviderIDOpenRouter, apiKey, opts)
	if appURL != "" {
		config.Headers[openrouter.HeaderReferer] = appURL
	}
	if appTitle != "" {
		config.Headers[openrouter.HeaderTitle] = appTitle
	}
	return config
}

// Cohere 快速创建 Cohere 配置
func Cohere(apiKey string, opts ...Option) *types.Config {
	return quick(types.ProviderIDCohere, apiKey, opts)
}

// Mistral 快速创建 Mistral 配置
func Mistral(apiKey string, opts ...Option) *types.Config {
	return quick(types.ProviderIDMistral, apiKey, opts)
}
