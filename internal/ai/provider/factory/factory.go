package factory

import (
	"fmt"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/anthropic"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/cohere"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/google"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/mistral"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/openai"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/openrouter"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/transport"
)

// New 按服务商 ID 创建适配器，未填写的 Base URL 使用官方地址
func New(providerID string, cfg types.Config, opts ...transport.Option) (types.Adapter, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL(providerID)
	}

	switch providerID {
	case types.ProviderIDOpenAI:
		return adapt(openai.New(cfg, opts...))
	case types.ProviderIDAnthropic:
		return adapt(anthropic.New(cfg, opts...))
	case types.ProviderIDGoogle:
		return adapt(google.New(cfg, opts...))
	case types.ProviderIDOpenRouter:
		return adapt(openrouter.New(cfg, opts...))
	case types.ProviderIDCohere:
		return adapt(cohere.New(cfg, opts...))
	case types.ProviderIDMistral:
		return adapt(mistral.New(cfg, opts...))
	}
	return nil, types.NewConfigError(providerID, "unknown provider",
		fmt.Errorf("%w: %q", types.ErrProviderNotRegistered, providerID))
}

// adapt 避免把 nil 指针包装成非 nil 接口
func adapt[T types.Adapter](p T, err error) (types.Adapter, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}
