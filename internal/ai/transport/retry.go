package transport

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
)

// 退避参数（毫秒）
const (
	backoffBase   = 1000
	backoffJitter = 1000
	backoffMax    = 10000
)

// BackoffFunc 返回第 attempt 次重试前的等待时间，attempt 从 0 开始
type BackoffFunc func(attempt int) time.Duration

// DefaultBackoff min(1000*2^attempt + jitter[0,1000), 10000) 毫秒
func DefaultBackoff(attempt int) time.Duration {
	ms := float64(backoffBase)*math.Pow(2, float64(attempt)) + float64(rand.IntN(backoffJitter))
	return time.Duration(math.Min(ms, backoffMax)) * time.Millisecond
}

// retry 带退避的重试
// 调用方取消与 4xx 立即返回，取消优先于任何已排期的重试
func (c *Client) retry(ctx context.Context, operation func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return types.NewCanceledError(c.provider, err)
		}

		err := operation(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return types.NewCanceledError(c.provider, ctxErr)
		}
		lastErr = err
		if !types.IsRetryable(err) || attempt == c.maxAttempts-1 {
			break
		}

		delay := c.backoff(attempt)
		c.logger.Warn("request failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", c.maxAttempts),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return types.NewCanceledError(c.provider, ctx.Err())
		case <-timer.C:
		}
	}
	return lastErr
}
