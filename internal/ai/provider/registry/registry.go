package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/logger"
)

const (
	// DefaultModelsTTL 模型目录缓存时长
	DefaultModelsTTL = 10 * time.Minute
	// DefaultFetchTimeout 合并后的模型目录请求上限，与单个调用方的 ctx 无关
	DefaultFetchTimeout = types.DefaultTimeout * types.DefaultMaxAttempts
)

// DefaultAliases 内置别名
var DefaultAliases = map[string]string{
	"gemini": types.ProviderIDGoogle,
	"claude": types.ProviderIDAnthropic,
}

var displayNames = map[string]string{
	types.ProviderIDOpenAI:     "OpenAI",
	types.ProviderIDAnthropic:  "Anthropic",
	types.ProviderIDGoogle:     "Google Gemini",
	types.ProviderIDOpenRouter: "OpenRouter",
	types.ProviderIDCohere:     "Cohere",
	types.ProviderIDMistral:    "Mistral AI",
}

type entry struct {
	adapter  types.Adapter
	status   types.ProviderStatus
	features types.Features
}

type modelsCache struct {
	models    []types.Model
	expiresAt time.Time
}

// Registry Provider ID 到适配器实例的映射，支持别名与状态
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	aliases map[string]string // alias -> real name

	cacheMu sync.RWMutex
	cache   map[string]modelsCache
	group   singleflight.Group
	ttl     time.Duration
	fetch   time.Duration

	logger *logger.Logger
}

// Option Registry 选项
type Option func(*Registry)

// WithModelsTTL 设置模型目录缓存时长，0 表示不缓存
func WithModelsTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.ttl = ttl }
}

// WithFetchTimeout 设置模型目录请求超时
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Registry) { r.fetch = d }
}

// WithLogger 设置日志
func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// New 创建 Registry，并注册内置别名
func New(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]*entry),
		aliases: make(map[string]string),
		cache:   make(map[string]modelsCache),
		ttl:     DefaultModelsTTL,
		fetch:   DefaultFetchTimeout,
		logger:  logger.L(),
	}
	for alias, name := range DefaultAliases {
		r.aliases[alias] = name
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register 注册适配器（支持别名），同名注册会替换旧实例
func (r *Registry) Register(adapter types.Adapter, aliasNames ...string) {
	name := adapter.Name()

	r.mu.Lock()
	old, ok := r.entries[name]
	r.entries[name] = &entry{adapter: adapter, status: types.ProviderOnline}
	if ok {
		r.entries[name].status = old.status
		r.entries[name].features = old.features
	}
	for _, alias := range aliasNames {
		r.aliases[alias] = name
	}
	r.mu.Unlock()

	r.invalidate(name)
	r.logger.Info("provider registered", zap.String("provider", name), zap.Strings("aliases", aliasNames))

	if ok && old.adapter != adapter {
		if err := old.adapter.Close(); err != nil {
			r.logger.Warn("close replaced provider failed", zap.String("provider", name), zap.Error(err))
		}
	}
}

// Get 获取可调用的适配器（支持别名）
// 未注册或已下线都返回配置错误
func (r *Registry) Get(nameOrAlias string) (types.Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name := r.resolveLocked(nameOrAlias)
	e, ok := r.entries[name]
	if !ok {
		return nil, types.NewConfigError(nameOrAlias, "no adapter registered",
			fmt.Errorf("%w: %s", types.ErrProviderNotRegistered, nameOrAlias))
	}
	if e.status == types.ProviderOffline {
		return nil, types.NewConfigError(name, "provider is offline", types.ErrProviderOffline)
	}
	return e.adapter, nil
}

// Resolve 解析别名为真实名称
func (r *Registry) Resolve(nameOrAlias string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveLocked(nameOrAlias)
}

func (r *Registry) resolveLocked(nameOrAlias string) string {
	if name, ok := r.aliases[nameOrAlias]; ok {
		return name
	}
	return nameOrAlias
}

// Aliases 获取指定 Provider 的所有别名
func (r *Registry) Aliases(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []string{}
	for alias, real := range r.aliases {
		if real == name {
			result = append(result, alias)
		}
	}
	sort.Strings(result)
	return result
}

// List 列出已注册的 Provider 名称（不含别名），按名称排序
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetStatus 更新 Provider 状态
func (r *Registry) SetStatus(nameOrAlias string, status types.ProviderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := r.resolveLocked(nameOrAlias)
	e, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrProviderNotRegistered, nameOrAlias)
	}
	if e.status != status {
		r.logger.Warn("provider status changed",
			zap.String("provider", name),
			zap.String("from", string(e.status)),
			zap.String("to", string(status)),
		)
	}
	e.status = status
	return nil
}

// Status 返回 Provider 状态
func (r *Registry) Status(nameOrAlias string) (types.ProviderStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[r.resolveLocked(nameOrAlias)]
	if !ok {
		return "", false
	}
	return e.status, true
}

// SetFeatures 设置 Provider 能力与限流信息
func (r *Registry) SetFeatures(nameOrAlias string, features types.Features) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[r.resolveLocked(nameOrAlias)]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrProviderNotRegistered, nameOrAlias)
	}
	e.features = features
	return nil
}

// Models 获取模型目录，并发请求合并为一次，结果按 TTL 缓存
// 合并请求不继承调用方的取消，每个调用方只等待自己的 ctx
func (r *Registry) Models(ctx context.Context, nameOrAlias string) ([]types.Model, error) {
	adapter, err := r.Get(nameOrAlias)
	if err != nil {
		return nil, err
	}
	name := adapter.Name()

	if models, ok := r.cached(name); ok {
		return models, nil
	}

	ch := r.group.DoChan(name, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.fetch)
		defer cancel()

		models, err := adapter.GetModels(fetchCtx)
		if err != nil {
			return nil, err
		}
		if r.ttl > 0 {
			r.cacheMu.Lock()
			r.cache[name] = modelsCache{models: models, expiresAt: time.Now().Add(r.ttl)}
			r.cacheMu.Unlock()
		}
		return models, nil
	})

	select {
	case <-ctx.Done():
		return nil, types.NewCanceledError(name, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			r.logger.Warn("list models failed", zap.String("provider", name), zap.Error(res.Err))
			return nil, res.Err
		}
		if res.Shared {
			r.logger.Debug("list models shared", zap.String("provider", name))
		}
		return res.Val.([]types.Model), nil
	}
}

// FindModel 在 Provider 的模型目录中按 ID 查找
func (r *Registry) FindModel(ctx context.Context, nameOrAlias, modelID string) (types.Model, error) {
	models, err := r.Models(ctx, nameOrAlias)
	if err != nil {
		return types.Model{}, err
	}
	for _, m := range models {
		if m.ID == modelID {
			return m, nil
		}
	}
	return types.Model{}, fmt.Errorf("%w: %s/%s not found", types.ErrInvalidModel, r.Resolve(nameOrAlias), modelID)
}

// Provider 返回 Provider 快照，模型目录取自缓存或适配器
func (r *Registry) Provider(ctx context.Context, nameOrAlias string) (types.Provider, error) {
	r.mu.RLock()
	name := r.resolveLocked(nameOrAlias)
	e, ok := r.entries[name]
	var snapshot types.Provider
	if ok {
		snapshot = types.Provider{ID: name, Name: displayName(name), Status: e.status, Features: e.features}
	}
	r.mu.RUnlock()

	if !ok {
		return types.Provider{}, fmt.Errorf("%w: %s", types.ErrProviderNotRegistered, nameOrAlias)
	}
	if snapshot.Status == types.ProviderOffline {
		return snapshot, nil
	}

	models, err := r.Models(ctx, name)
	if err != nil {
		return snapshot, err
	}
	snapshot.Models = models
	return snapshot, nil
}

// InvalidateModels 清除模型目录缓存
func (r *Registry) InvalidateModels(nameOrAlias string) {
	r.invalidate(r.Resolve(nameOrAlias))
}

func (r *Registry) invalidate(name string) {
	r.cacheMu.Lock()
	delete(r.cache, name)
	r.cacheMu.Unlock()
}

func (r *Registry) cached(name string) ([]types.Model, bool) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	c, ok := r.cache[name]
	if !ok || time.Now().After(c.expiresAt) {
		return nil, false
	}
	return c.models, true
}

// Unregister 注销 Provider（同时删除自定义别名），并关闭适配器
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	e, ok := r.entries[name]
	delete(r.entries, name)
	for alias, real := range r.aliases {
		if real == name {
			if _, builtin := DefaultAliases[alias]; !builtin {
				delete(r.aliases, alias)
			}
		}
	}
	r.mu.Unlock()

	r.invalidate(name)
	if !ok {
		return nil
	}
	return e.adapter.Close()
}

// Close 关闭全部适配器
func (r *Registry) Close() error {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	var firstErr error
	for name, e := range entries {
		if err := e.adapter.Close(); err != nil {
			r.logger.Warn("close provider failed", zap.String("provider", name), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func displayName(id string) string {
	if name, ok := displayNames[id]; ok {
		return name
	}
	return id
}
