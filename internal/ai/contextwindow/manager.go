package contextwindow

import (
	"strconv"
	"sync"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
)

// 默认值
const (
	DefaultReserveTokens = 500
	DefaultMaxMessages   = 50
)

// Manager 按模型上下文窗口裁剪消息历史
// token 估算结果按消息 ID 缓存，Manager 应在进程内只创建一次并共享
type Manager struct {
	mu    sync.RWMutex
	cache map[string]int

	estimator   Estimator
	maxMessages int
	reserve     int
}

// Option Manager 选项
type Option func(*Manager)

// WithEstimator 替换估算器
func WithEstimator(e Estimator) Option {
	return func(m *Manager) { m.estimator = e }
}

// WithMaxMessages 设置消息条数上限
func WithMaxMessages(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxMessages = n
		}
	}
}

// WithReserveTokens 设置默认为回复预留的 token 数
func WithReserveTokens(n int) Option {
	return func(m *Manager) {
		if n >= 0 {
			m.reserve = n
		}
	}
}

// NewManager 创建 Manager
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		cache:       make(map[string]int),
		estimator:   CharEstimator{CharsPerToken: DefaultCharsPerToken},
		maxMessages: DefaultMaxMessages,
		reserve:     DefaultReserveTokens,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MaxMessages 返回条数上限
func (m *Manager) MaxMessages() int {
	return m.maxMessages
}

// ReserveTokens 返回默认预留
func (m *Manager) ReserveTokens() int {
	return m.reserve
}

// Estimate 估算单条消息的 token 数，消息自带的 Tokens 优先
func (m *Manager) Estimate(msg types.Message) int {
	if msg.Tokens > 0 {
		return msg.Tokens
	}
	key := cacheKey(msg)
	if key == "" {
		return m.estimator.Estimate(msg.Content)
	}

	m.mu.RLock()
	n, ok := m.cache[key]
	m.mu.RUnlock()
	if ok {
		return n
	}

	n = m.estimator.Estimate(msg.Content)
	m.mu.Lock()
	m.cache[key] = n
	m.mu.Unlock()
	return n
}

// TotalTokens 估算消息列表的 token 总数
func (m *Manager) TotalTokens(messages []types.Message) int {
	total := 0
	for _, msg := range messages {
		total += m.Estimate(msg)
	}
	return total
}

// LimitCount 消息条数超过 max 时保留全部 system 消息与最近 max 条非 system 消息
// max <= 0 使用 Manager 的默认上限
func (m *Manager) LimitCount(messages []types.Message, max int) []types.Message {
	if max <= 0 {
		max = m.maxMessages
	}
	if len(messages) <= max {
		return append([]types.Message(nil), messages...)
	}

	keep := make([]bool, len(messages))
	remaining := max
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].IsSystem() {
			keep[i] = true
			continue
		}
		if remaining > 0 {
			keep[i] = true
			remaining--
		}
	}
	return pick(messages, keep)
}

// Trim 选出满足 ContextWindow - reserveTokens 预算的消息子集
//
// 规则：
//  1. 全部 system 消息与最后一条消息必定保留，即使超出预算
//  2. 其余消息从新到旧累加，首次超出预算即停止
//  3. 结果保持原有顺序
//
// reserveTokens < 0 时使用 Manager 的默认预留
func (m *Manager) Trim(messages []types.Message, model types.Model, reserveTokens int) []types.Message {
	if len(messages) == 0 {
		return []types.Message{}
	}
	if reserveTokens < 0 {
		reserveTokens = m.reserve
	}
	budget := model.ContextWindow - reserveTokens

	estimates := make([]int, len(messages))
	total := 0
	for i, msg := range messages {
		estimates[i] = m.Estimate(msg)
		total += estimates[i]
	}
	if total <= budget {
		return append([]types.Message(nil), messages...)
	}

	last := len(messages) - 1
	keep := make([]bool, len(messages))
	used := 0
	for i, msg := range messages {
		if msg.IsSystem() || i == last {
			keep[i] = true
			used += estimates[i]
		}
	}

	for i := last - 1; i >= 0; i-- {
		if keep[i] {
			continue
		}
		if used+estimates[i] > budget {
			break
		}
		keep[i] = true
		used += estimates[i]
	}
	return pick(messages, keep)
}

// Prepare 先按条数再按 token 裁剪，使用 Manager 的默认参数
func (m *Manager) Prepare(messages []types.Message, model types.Model) []types.Message {
	return m.Trim(m.LimitCount(messages, m.maxMessages), model, m.reserve)
}

// Reset 清空估算缓存
func (m *Manager) Reset() {
	m.mu.Lock()
	m.cache = make(map[string]int)
	m.mu.Unlock()
}

// CacheSize 返回缓存条目数
func (m *Manager) CacheSize() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cache)
}

// cacheKey 编辑过的消息使用新的键，避免沿用旧内容的估算
func cacheKey(msg types.Message) string {
	if msg.ID == "" {
		return ""
	}
	if msg.Edited && msg.EditedAt != nil {
		return msg.ID + "@" + strconv.FormatInt(msg.EditedAt.UnixNano(), 10)
	}
	return msg.ID
}

func pick(messages []types.Message, keep []bool) []types.Message {
	out := make([]types.Message, 0, len(messages))
	for i, msg := range messages {
		if keep[i] {
			out = append(out, msg)
		}
	}
	return out
}
