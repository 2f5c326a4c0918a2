package chat

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/contextwindow"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/conversation"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/registry"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/tools"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/logger"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/workerpool"
)

// Service 对话编排：选择适配器、裁剪上下文、发起调用并归一化结果
//
// 两种错误约定并存：
//   - Chat / ChatStream 直接返回 error
//   - Parallel 把单个模型的失败写入结果消息（Metadata.Error = true），不返回 error
type Service struct {
	providers *registry.Registry
	window    *contextwindow.Manager
	pool      *workerpool.Pool
	store     conversation.Store
	tools     *tools.Registry
	logger    *logger.Logger
}

// FallbackContextWindow 模型不在目录中时使用的上下文窗口
const FallbackContextWindow = 8192

// Option 服务选项
type Option func(*Service)

// WithStore 设置会话存储，ChatConversation 需要
func WithStore(store conversation.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithTools 设置工具注册表，Options.ToolNames 需要
func WithTools(reg *tools.Registry) Option {
	return func(s *Service) { s.tools = reg }
}

// WithLogger 设置日志
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService 创建对话服务，pool 用于并行模式
func NewService(providers *registry.Registry, window *contextwindow.Manager, pool *workerpool.Pool, opts ...Option) *Service {
	if window == nil {
		window = contextwindow.NewManager()
	}
	s := &Service{
		providers: providers,
		window:    window,
		pool:      pool,
		logger:    logger.L(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("chat")
	return s
}

// ResolveModel 按 Provider 与模型 ID 查找模型定义
// 目录中没有该模型（或目录暂不可用）时返回使用 FallbackContextWindow 的最小定义，
// Provider 未注册或已下线时返回配置错误
func (s *Service) ResolveModel(ctx context.Context, provider, modelID string) (types.Model, error) {
	if s.providers == nil {
		return types.Model{}, types.NewConfigError(provider, "no provider registry configured", types.ErrProviderNotRegistered)
	}
	if _, err := s.providers.Get(provider); err != nil {
		return types.Model{}, err
	}
	name := s.providers.Resolve(provider)

	model, err := s.providers.FindModel(ctx, name, modelID)
	if err == nil {
		return model, nil
	}
	if types.IsCanceled(err) || ctx.Err() != nil {
		return types.Model{}, types.NewCanceledError(name, ctx.Err())
	}

	s.logger.WithContext(ctx).Debug("model not in catalog, using fallback",
		zap.String("provider", name),
		zap.String("model", modelID),
		zap.Error(err),
	)
	return types.Model{
		ID:               modelID,
		Provider:         name,
		Name:             modelID,
		ContextWindow:    FallbackContextWindow,
		StreamingSupport: true,
	}, nil
}

// Chat 阻塞调用，返回附带 usage 与元信息的助手消息
func (s *Service) Chat(ctx context.Context, messages []types.Message, model types.Model, opts Options) (*types.Message, error) {
	return s.NewCall(model).Do(ctx, messages, opts)
}

// ChatStream 流式调用，块内容原样来自适配器，调用方负责 Close
// 流由一次 Call 承载，读完、出错或提前 Close 时进入对应终态
func (s *Service) ChatStream(ctx context.Context, messages []types.Message, model types.Model, opts Options) (types.ChunkStream, error) {
	return s.NewCall(model).Stream(ctx, messages, opts)
}

func (s *Service) openStream(ctx context.Context, messages []types.Message, model types.Model, opts Options) (types.ChunkStream, error) {
	adapter, req, err := s.prepare(messages, model, opts)
	if err != nil {
		return nil, err
	}
	req.Stream = true

	s.logger.WithContext(ctx).Debug("stream chat",
		zap.String("provider", model.Provider),
		zap.String("model", model.ID),
		zap.Int("messages", len(req.Messages)),
	)
	return adapter.StreamChatCompletion(ctx, req)
}

// complete 执行一次调用并把首个选择项转换为消息
func (s *Service) complete(ctx context.Context, messages []types.Message, model types.Model, opts Options) (*types.Message, error) {
	if opts.Stream {
		stream, err := s.openStream(ctx, messages, model, opts)
		if err != nil {
			return nil, err
		}
		msg, err := Collect(stream)
		if err != nil {
			return nil, err
		}
		msg.Metadata.Model = model.ID
		msg.Metadata.Provider = model.Provider
		return msg, nil
	}

	adapter, req, err := s.prepare(messages, model, opts)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithContext(ctx)
	log.Debug("chat",
		zap.String("provider", model.Provider),
		zap.String("model", model.ID),
		zap.Int("messages", len(req.Messages)),
		zap.Int("dropped", len(messages)-len(req.Messages)),
	)

	resp, err := adapter.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	choice, ok := resp.FirstChoice()
	if !ok {
		return nil, types.NewParseError(model.Provider, "response has no choices", types.ErrEmptyResponse)
	}

	msg := types.NewMessage(types.RoleAssistant, choice.Message.Content)
	usage := resp.Usage
	msg.Usage = &usage
	msg.Tokens = usage.CompletionTokens

	modelID := resp.Model
	if modelID == "" {
		modelID = model.ID
	}
	msg.Metadata = &types.Metadata{
		Model:        modelID,
		Provider:     model.Provider,
		ToolCalls:    choice.Message.ToolCalls,
		FinishReason: choice.FinishReason,
	}
	return &msg, nil
}

// prepare 查找适配器并构造裁剪后的请求
func (s *Service) prepare(messages []types.Message, model types.Model, opts Options) (types.Adapter, types.ChatCompletionRequest, error) {
	if s.providers == nil {
		return nil, types.ChatCompletionRequest{}, types.NewConfigError(model.Provider, "no provider registry configured", types.ErrProviderNotRegistered)
	}
	adapter, err := s.providers.Get(model.Provider)
	if err != nil {
		return nil, types.ChatCompletionRequest{}, err
	}

	toolDefs, err := s.toolDefinitions(model.Provider, opts)
	if err != nil {
		return nil, types.ChatCompletionRequest{}, err
	}

	limited := s.window.LimitCount(messages, opts.MaxMessages)
	trimmed := s.window.Trim(limited, model, opts.reserve())
	return adapter, opts.request(model.ID, trimmed, toolDefs), nil
}

func (s *Service) toolDefinitions(provider string, opts Options) ([]types.ToolDefinition, error) {
	defs := append([]types.ToolDefinition(nil), opts.Tools...)
	if len(opts.ToolNames) == 0 {
		return defs, nil
	}
	if s.tools == nil {
		return nil, types.NewConfigError(provider, "no tool registry configured",
			fmt.Errorf("%w: %v", types.ErrToolNotRegistered, opts.ToolNames))
	}
	named, err := s.tools.Definitions(opts.ToolNames...)
	if err != nil {
		return nil, err
	}
	return append(defs, named...), nil
}

// ChatConversation 读取会话历史，追加用户消息并调用，成功后保存助手回复
// 调用失败时用户消息仍保留在会话中
func (s *Service) ChatConversation(ctx context.Context, conversationID, content string, model types.Model, opts Options) (*types.Message, error) {
	if s.store == nil {
		return nil, types.NewConfigError(model.Provider, "no conversation store configured", nil)
	}
	ctx = logger.WithConversationID(ctx, conversationID)

	history, err := s.store.History(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation history: %w", err)
	}

	user := types.NewMessage(types.RoleUser, content)
	if err := s.store.Append(ctx, conversationID, user); err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}

	reply, err := s.Chat(ctx, append(history, user), model, opts)
	if err != nil {
		s.logger.WithContext(ctx).Warn("conversation call failed",
			zap.String("provider", model.Provider),
			zap.String("model", model.ID),
			zap.Error(err),
		)
		return nil, err
	}

	if err := s.store.Append(ctx, conversationID, *reply); err != nil {
		return nil, fmt.Errorf("append assistant message: %w", err)
	}
	return reply, nil
}
