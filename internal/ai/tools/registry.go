package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/logger"
)

// Handler 工具执行函数
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Tool 可被模型调用的工具
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema
	Handler     Handler
}

// Definition 返回发送给服务商的工具定义
func (t Tool) Definition() types.ToolDefinition {
	return types.ToolDefinition{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
}

// Result 工具执行结果
type Result struct {
	CallID  string `json:"call_id,omitempty"`
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Executor 执行模型返回的工具调用
type Executor interface {
	Execute(ctx context.Context, call types.ToolCall) Result
}

// Registry 进程内工具注册表，按名称覆盖写入
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger *logger.Logger
}

// NewRegistry 创建注册表
func NewRegistry(l *logger.Logger) *Registry {
	if l == nil {
		l = logger.L()
	}
	return &Registry{tools: make(map[string]Tool), logger: l.Named("tools")}
}

// Register 注册工具，同名工具被替换
func (r *Registry) Register(tool Tool) error {
	if tool.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if tool.Handler == nil {
		return fmt.Errorf("tool %s has no handler", tool.Name)
	}

	r.mu.Lock()
	r.tools[tool.Name] = tool
	r.mu.Unlock()
	return nil
}

// Unregister 注销工具
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	delete(r.tools, name)
	r.mu.Unlock()
}

// Get 按名称获取工具
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names 返回全部工具名，按名称排序
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions 返回指定工具的定义，names 为空时返回全部
func (r *Registry) Definitions(names ...string) ([]types.ToolDefinition, error) {
	if len(names) == 0 {
		names = r.Names()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]types.ToolDefinition, 0, len(names))
	for _, name := range names {
		t, ok := r.tools[name]
		if !ok {
			return nil, types.NewConfigError("tools", "unknown tool "+name, types.ErrToolNotRegistered)
		}
		defs = append(defs, t.Definition())
	}
	return defs, nil
}

// Execute 执行工具调用，错误与 panic 都转换为失败结果
func (r *Registry) Execute(ctx context.Context, call types.ToolCall) (result Result) {
	result = Result{CallID: call.ID, Name: call.Name}

	tool, ok := r.Get(call.Name)
	if !ok {
		result.Error = types.ErrToolNotRegistered.Error() + ": " + call.Name
		return result
	}

	defer func() {
		if v := recover(); v != nil {
			r.logger.Error("tool panic", zap.String("tool", call.Name), zap.Any("error", v))
			result.Success = false
			result.Data = nil
			result.Error = fmt.Sprintf("tool panic: %v", v)
		}
	}()

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	data, err := tool.Handler(ctx, args)
	if err != nil {
		r.logger.Warn("tool failed", zap.String("tool", call.Name), zap.Error(err))
		result.Error = err.Error()
		return result
	}
	result.Success = true
	result.Data = data
	return result
}

var _ Executor = (*Registry)(nil)
