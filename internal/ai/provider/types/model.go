package types

import "fmt"

// Capability 模型能力
type Capability string

const (
	CapabilityChat            Capability = "chat"
	CapabilityCode            Capability = "code"
	CapabilityVision          Capability = "vision"
	CapabilityStreaming       Capability = "streaming"
	CapabilityFunctionCalling Capability = "function_calling"
	CapabilityAttachments     Capability = "attachments"
)

// Pricing 每 1000 tokens 的价格
type Pricing struct {
	Prompt     float64 `json:"prompt"`
	Completion float64 `json:"completion"`
}

// Model 表示可调用的模型
type Model struct {
	ID               string       `json:"id"`                // 服务商模型 ID
	Provider         string       `json:"provider"`          // 所属 Provider ID
	Name             string       `json:"name"`              // 显示名称
	ContextWindow    int          `json:"context_window"`    // 上下文窗口（prompt + completion）
	MaxOutputTokens  int          `json:"max_output_tokens"` // 最大输出 tokens
	Pricing          *Pricing     `json:"pricing,omitempty"`
	Capabilities     []Capability `json:"capabilities"`
	StreamingSupport bool         `json:"streaming_support"`
}

// Validate 校验模型定义
func (m *Model) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: empty model id", ErrInvalidModel)
	}
	if m.ContextWindow <= 0 {
		return fmt.Errorf("%w: %s context window must be positive", ErrInvalidModel, m.ID)
	}
	if m.Pricing != nil && (m.Pricing.Prompt < 0 || m.Pricing.Completion < 0) {
		return fmt.Errorf("%w: %s pricing must be non-negative", ErrInvalidModel, m.ID)
	}
	return nil
}

// HasCapability 判断模型是否具备某项能力
func (m *Model) HasCapability(c Capability) bool {
	for _, capability := range m.Capabilities {
		if capability == c {
			return true
		}
	}
	return false
}

// Cost 按定价估算一次调用的费用，未配置定价时返回 0
func (m *Model) Cost(usage Usage) float64 {
	if m.Pricing == nil {
		return 0
	}
	return float64(usage.PromptTokens)/1000*m.Pricing.Prompt +
		float64(usage.CompletionTokens)/1000*m.Pricing.Completion
}

// ProviderStatus Provider 状态
type ProviderStatus string

const (
	ProviderOnline      ProviderStatus = "online"
	ProviderMaintenance ProviderStatus = "maintenance"
	ProviderOffline     ProviderStatus = "offline"
)

// RateLimits 速率限制
type RateLimits struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	TokensPerMinute   int `json:"tokens_per_minute"`
}

// Features Provider 能力与限流
type Features struct {
	Capabilities []Capability `json:"capabilities"`
	RateLimits   RateLimits   `json:"rate_limits"`
}

// Provider 已配置的服务商
type Provider struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Models   []Model        `json:"models"`
	Status   ProviderStatus `json:"status"`
	Features Features       `json:"features"`
}

// FindModel 按 ID 查找模型
func (p *Provider) FindModel(id string) (Model, bool) {
	for _, m := range p.Models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// ModelsResponse OpenAI 风格的模型列表响应
type ModelsResponse struct {
	Object string `json:"object"`
	Data   []struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		Created int64  `json:"created"`
		OwnedBy string `json:"owned_by"`
	} `json:"data"`
}
