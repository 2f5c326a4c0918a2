package server

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/chat"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/registry"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
	apperrors "github.com/lk2023060901/ai-chat-dashboard/internal/pkg/errors"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/logger"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/response"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/sse"
)

// heartbeatInterval SSE 心跳间隔
const heartbeatInterval = 15 * time.Second

// ChatHandler 对话相关的 HTTP 接口
type ChatHandler struct {
	service   *chat.Service
	providers *registry.Registry
	logger    *logger.Logger
}

// NewChatHandler 创建处理器
func NewChatHandler(service *chat.Service, providers *registry.Registry, log *logger.Logger) *ChatHandler {
	return &ChatHandler{service: service, providers: providers, logger: log.Named("chat-handler")}
}

// RegisterRoutes 注册路由
func (h *ChatHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/chat", h.Chat)
	r.POST("/chat/parallel", h.Parallel)
	r.GET("/models", h.Models)
	r.GET("/providers", h.Providers)
}

type messageDTO struct {
	Role    types.Role `json:"role" binding:"required"`
	Content string     `json:"content"`
}

type optionsDTO struct {
	Temperature      *float32 `json:"temperature"`
	TopP             *float32 `json:"top_p"`
	FrequencyPenalty *float32 `json:"frequency_penalty"`
	PresencePenalty  *float32 `json:"presence_penalty"`
	MaxTokens        int      `json:"max_tokens"`
	Stop             []string `json:"stop"`
	Tools            []string `json:"tools"`
	ReserveTokens    int      `json:"reserve_tokens"`
	MaxMessages      int      `json:"max_messages"`
}

func (o optionsDTO) options(stream bool) chat.Options {
	return chat.Options{
		Stream:           stream,
		Temperature:      o.Temperature,
		TopP:             o.TopP,
		FrequencyPenalty: o.FrequencyPenalty,
		PresencePenalty:  o.PresencePenalty,
		MaxTokens:        o.MaxTokens,
		Stop:             o.Stop,
		ToolNames:        o.Tools,
		ReserveTokens:    o.ReserveTokens,
		MaxMessages:      o.MaxMessages,
	}
}

// ChatRequest POST /api/v1/chat
// 使用 conversation_id + message 时历史由服务端会话存储提供
type ChatRequest struct {
	Provider       string       `json:"provider" binding:"required"`
	Model          string       `json:"model" binding:"required"`
	Messages       []messageDTO `json:"messages"`
	ConversationID string       `json:"conversation_id"`
	Message        string       `json:"message"`
	Stream         bool         `json:"stream"`
	optionsDTO
}

// ParallelRequest POST /api/v1/chat/parallel
type ParallelRequest struct {
	Models []struct {
		Provider string `json:"provider" binding:"required"`
		Model    string `json:"model" binding:"required"`
	} `json:"models" binding:"required,min=1,dive"`
	Messages []messageDTO `json:"messages" binding:"required,min=1"`
	Stream   bool         `json:"stream"`
	optionsDTO
}

func toMessages(in []messageDTO) ([]types.Message, error) {
	out := make([]types.Message, 0, len(in))
	for _, m := range in {
		if !m.Role.Valid() {
			return nil, apperrors.NewValidationError("messages.role")
		}
		out = append(out, types.NewMessage(m.Role, m.Content))
	}
	return out, nil
}

// Chat 单模型对话，stream=true 时以 SSE 返回
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := logger.WithRequestID(c.Request.Context(), c.GetHeader("X-Request-ID"))

	model, err := h.service.ResolveModel(ctx, req.Provider, req.Model)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	opts := req.options(req.Stream)

	if req.ConversationID != "" {
		if req.Stream {
			response.BadRequest(c, "streaming is not supported for stored conversations")
			return
		}
		if req.Message == "" {
			response.HandleError(c, apperrors.NewValidationError("message"))
			return
		}
		reply, err := h.service.ChatConversation(ctx, req.ConversationID, req.Message, model, opts)
		if err != nil {
			response.HandleError(c, err)
			return
		}
		response.Success(c, reply)
		return
	}

	messages, err := toMessages(req.Messages)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	if len(messages) == 0 {
		response.HandleError(c, apperrors.NewValidationError("messages"))
		return
	}

	if req.Stream {
		h.stream(ctx, c, messages, model, opts)
		return
	}

	reply, err := h.service.Chat(ctx, messages, model, opts)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, reply)
}

// stream 把适配器的增量转发为 SSE chunk 事件，结束时发送聚合后的 done 事件
func (h *ChatHandler) stream(ctx context.Context, c *gin.Context, messages []types.Message, model types.Model, opts chat.Options) {
	start := time.Now()
	stream, err := h.service.ChatStream(ctx, messages, model, opts)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	defer stream.Close()

	w, err := sse.NewWriter(c)
	if err != nil {
		return
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w.KeepAlive(ctx, heartbeatInterval)

	var collector chat.Collector
	for stream.Next() {
		chunk := stream.Current()
		collector.Add(chunk)
		if err := w.Send(sse.EventChunk, chunk); err != nil {
			h.logger.WithContext(ctx).Debug("client went away", zap.String("client_id", w.ID()), zap.Error(err))
			return
		}
	}

	if err := stream.Err(); err != nil {
		code := apperrors.ExtractCode(err)
		h.logger.WithContext(ctx).Warn("stream failed",
			zap.String("provider", model.Provider),
			zap.String("model", model.ID),
			zap.Int("chunks", collector.Chunks()),
			zap.Error(err),
		)
		_ = w.Send(sse.EventError, gin.H{"code": code, "message": apperrors.FormatError(code, err.Error())})
		return
	}

	msg := collector.Message()
	msg.Metadata.Model = model.ID
	msg.Metadata.Provider = model.Provider
	msg.Metadata.ProcessingTime = time.Since(start)
	_ = w.Send(sse.EventDone, msg)
}

// Parallel 同一组消息并发请求多个模型，单个模型失败体现在结果中
func (h *ChatHandler) Parallel(c *gin.Context) {
	var req ParallelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := logger.WithRequestID(c.Request.Context(), c.GetHeader("X-Request-ID"))

	messages, err := toMessages(req.Messages)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	models := make([]types.Model, 0, len(req.Models))
	for _, m := range req.Models {
		model, err := h.service.ResolveModel(ctx, m.Provider, m.Model)
		if err != nil {
			// 交给 Parallel 把错误写入该模型的结果
			model = types.Model{ID: m.Model, Provider: m.Provider, ContextWindow: chat.FallbackContextWindow}
		}
		models = append(models, model)
	}

	results, err := h.service.Parallel(ctx, messages, models, req.options(req.Stream))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, results)
}

// Models GET /api/v1/models?provider=openai
func (h *ChatHandler) Models(c *gin.Context) {
	provider := c.Query("provider")
	if provider == "" {
		response.HandleError(c, apperrors.NewValidationError("provider"))
		return
	}
	models, err := h.providers.Models(c.Request.Context(), provider)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, models)
}

// Providers GET /api/v1/providers，模型目录拉取失败的服务商仍会列出
func (h *ChatHandler) Providers(c *gin.Context) {
	ctx := c.Request.Context()
	ids := h.providers.List()
	out := make([]types.Provider, 0, len(ids))
	for _, id := range ids {
		p, err := h.providers.Provider(ctx, id)
		if err != nil {
			h.logger.WithContext(ctx).Warn("provider snapshot incomplete", zap.String("provider", id), zap.Error(err))
		}
		out = append(out, p)
	}
	response.Success(c, out)
}
