package workerpool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/logger"
)

var (
	ErrPoolClosed = errors.New("worker pool is closed")
	ErrPoolBusy   = errors.New("worker pool is busy")
)

// TaskResult 任务结果
type TaskResult[T any] struct {
	Data  T
	Error error
}

// Config Worker Pool 配置
type Config struct {
	Workers        int           `mapstructure:"workers"`         // worker 数量
	Nonblocking    bool          `mapstructure:"nonblocking"`     // 满载时立即返回 ErrPoolBusy
	ExpiryDuration time.Duration `mapstructure:"expiry_duration"` // 空闲 worker 回收间隔
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Workers:        16,
		ExpiryDuration: time.Minute,
	}
}

// Statistics 统计信息
type Statistics struct {
	Submitted int64 // 已提交
	Completed int64 // 已完成
	Panicked  int64 // panic
	Running   int64 // 运行中
}

type counters struct {
	submitted atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64
	running   atomic.Int64
}

// Pool 基于 ants 的 Worker Pool
type Pool struct {
	pool   *ants.Pool
	config *Config
	stats  counters
	logger *logger.Logger
}

// New 创建 Worker Pool
func New(config *Config, l *logger.Logger) (*Pool, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Workers <= 0 {
		config.Workers = DefaultConfig().Workers
	}
	if l == nil {
		l = logger.L()
	}

	p := &Pool{config: config, logger: l.Named("workerpool")}

	opts := []ants.Option{
		ants.WithNonblocking(config.Nonblocking),
		ants.WithPanicHandler(func(v any) {
			p.stats.panicked.Add(1)
			p.logger.Error("worker panic", zap.Any("error", v), zap.Stack("stack"))
		}),
	}
	if config.ExpiryDuration > 0 {
		opts = append(opts, ants.WithExpiryDuration(config.ExpiryDuration))
	}

	antsPool, err := ants.NewPool(config.Workers, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}
	p.pool = antsPool
	return p, nil
}

// Submit 提交任务
func (p *Pool) Submit(task func()) error {
	err := p.pool.Submit(func() {
		p.stats.running.Add(1)
		defer func() {
			p.stats.running.Add(-1)
			p.stats.completed.Add(1)
		}()
		task()
	})
	switch {
	case err == nil:
		p.stats.submitted.Add(1)
		return nil
	case errors.Is(err, ants.ErrPoolClosed):
		return ErrPoolClosed
	case errors.Is(err, ants.ErrPoolOverload):
		return ErrPoolBusy
	}
	return err
}

// SubmitWithResult 提交任务并通过 channel 获取结果
func SubmitWithResult[T any](p *Pool, task func() (T, error)) <-chan TaskResult[T] {
	resultCh := make(chan TaskResult[T], 1)

	err := p.Submit(func() {
		defer close(resultCh)
		data, err := task()
		resultCh <- TaskResult[T]{Data: data, Error: err}
	})
	if err != nil {
		resultCh <- TaskResult[T]{Error: err}
		close(resultCh)
	}
	return resultCh
}

// RunAll 并发执行全部任务并等待结束，提交失败的任务返回对应错误
func (p *Pool) RunAll(tasks ...func()) []error {
	errs := make([]error, len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		task := task
		if err := p.Submit(func() {
			defer wg.Done()
			task()
		}); err != nil {
			wg.Done()
			errs[i] = err
		}
	}
	wg.Wait()
	return errs
}

// Running 获取运行中的 worker 数量
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Free 获取空闲 worker 数量
func (p *Pool) Free() int {
	return p.pool.Free()
}

// Cap 获取容量
func (p *Pool) Cap() int {
	return p.pool.Cap()
}

// Tune 调整 worker 数量
func (p *Pool) Tune(size int) {
	if size <= 0 || size == p.pool.Cap() {
		return
	}
	p.logger.Info("tune workers", zap.Int("from", p.pool.Cap()), zap.Int("to", size))
	p.pool.Tune(size)
}

// Stats 获取统计信息
func (p *Pool) Stats() Statistics {
	return Statistics{
		Submitted: p.stats.submitted.Load(),
		Completed: p.stats.completed.Load(),
		Panicked:  p.stats.panicked.Load(),
		Running:   p.stats.running.Load(),
	}
}

// Shutdown 关闭，最多等待 timeout 让运行中的任务结束
func (p *Pool) Shutdown(timeout time.Duration) error {
	if timeout <= 0 {
		p.pool.Release()
		return nil
	}
	return p.pool.ReleaseTimeout(timeout)
}
