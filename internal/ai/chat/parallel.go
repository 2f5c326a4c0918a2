package chat

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
)

// Parallel 用同一组消息并发调用多个模型，结果按模型 ID 索引
//
// 单个模型的失败不会影响其他模型，失败结果是一条 Metadata.Error = true 的助手消息。
// 只有选项本身非法（如 Stream）时才返回 error，此时不会发起任何网络请求。
// 重复的模型 ID 只调用一次。
func (s *Service) Parallel(ctx context.Context, messages []types.Message, models []types.Model, opts Options) (map[string]*types.Message, error) {
	if opts.Stream {
		return nil, types.NewConfigError("", "invalid option combination", types.ErrStreamInParallel)
	}
	if s.pool == nil {
		return nil, types.NewConfigError("", "no worker pool configured for parallel mode", nil)
	}

	unique := make([]types.Model, 0, len(models))
	seen := make(map[string]struct{}, len(models))
	for _, m := range models {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		unique = append(unique, m)
	}

	results := make([]*types.Message, len(unique))
	tasks := make([]func(), len(unique))
	for i, model := range unique {
		tasks[i] = func() {
			results[i] = s.parallelOne(ctx, messages, model, opts)
		}
	}

	for i, err := range s.pool.RunAll(tasks...) {
		if err != nil {
			results[i] = errorMessage(unique[i], err, 0)
		}
	}

	out := make(map[string]*types.Message, len(unique))
	failed := 0
	for i, model := range unique {
		out[model.ID] = results[i]
		if results[i].Metadata.Error {
			failed++
		}
	}

	s.logger.WithContext(ctx).Info("parallel chat finished",
		zap.Int("models", len(unique)),
		zap.Int("failed", failed),
	)
	return out, nil
}

func (s *Service) parallelOne(ctx context.Context, messages []types.Message, model types.Model, opts Options) (msg *types.Message) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithContext(ctx).Error("parallel call panicked",
				zap.String("provider", model.Provider),
				zap.String("model", model.ID),
				zap.Any("panic", r),
			)
			msg = errorMessage(model, fmt.Errorf("panic: %v", r), time.Since(start))
		}
	}()

	// 每个模型使用独立的消息切片与请求
	own := append([]types.Message(nil), messages...)
	reply, err := s.Chat(ctx, own, model, opts)
	if err != nil {
		s.logger.WithContext(ctx).Warn("parallel call failed",
			zap.String("provider", model.Provider),
			zap.String("model", model.ID),
			zap.Error(err),
		)
		return errorMessage(model, err, time.Since(start))
	}
	return reply
}

// errorMessage 把失败包装为助手消息
func errorMessage(model types.Model, err error, elapsed time.Duration) *types.Message {
	msg := types.NewMessage(types.RoleAssistant, "Error: "+err.Error())
	msg.Metadata = &types.Metadata{
		Model:          model.ID,
		Provider:       model.Provider,
		ProcessingTime: elapsed,
		Error:          true,
	}
	return &msg
}
