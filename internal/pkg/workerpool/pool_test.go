package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/logger"
)

func newTestPool(t *testing.T, cfg *Config) *Pool {
	t.Helper()
	p, err := New(cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(time.Second) })
	return p
}

func TestPool_Submit(t *testing.T) {
	p := newTestPool(t, &Config{Workers: 4})

	var count atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			count.Add(1)
		}))
	}
	wg.Wait()

	assert.Equal(t, int32(20), count.Load())
	assert.Eventually(t, func() bool { return p.Stats().Completed == 20 }, time.Second, time.Millisecond)
	assert.Equal(t, int64(20), p.Stats().Submitted)
}

func TestPool_SubmitWithResult(t *testing.T) {
	p := newTestPool(t, nil)

	res := <-SubmitWithResult(p, func() (string, error) { return "ok", nil })
	require.NoError(t, res.Error)
	assert.Equal(t, "ok", res.Data)
}

func TestPool_RunAll(t *testing.T) {
	p := newTestPool(t, &Config{Workers: 2})

	results := make([]int, 5)
	tasks := make([]func(), len(results))
	for i := range tasks {
		i := i
		tasks[i] = func() {
			time.Sleep(5 * time.Millisecond)
			results[i] = i * i
		}
	}

	errs := p.RunAll(tasks...)
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, []int{0, 1, 4, 9, 16}, results)
}

func TestPool_PanicIsContained(t *testing.T) {
	p := newTestPool(t, &Config{Workers: 1})

	errs := p.RunAll(func() { panic("boom") }, func() {})
	assert.Equal(t, []error{nil, nil}, errs)
	assert.Eventually(t, func() bool { return p.Stats().Panicked == 1 }, time.Second, time.Millisecond)
}

func TestPool_Closed(t *testing.T) {
	p, err := New(&Config{Workers: 1}, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, p.Shutdown(0))

	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)

	res := <-SubmitWithResult(p, func() (int, error) { return 1, nil })
	assert.ErrorIs(t, res.Error, ErrPoolClosed)

	errs := p.RunAll(func() {})
	assert.ErrorIs(t, errs[0], ErrPoolClosed)
}

func TestPool_NonblockingBusy(t *testing.T) {
	p := newTestPool(t, &Config{Workers: 1, Nonblocking: true})

	block := make(chan struct{})
	require.NoError(t, p.Submit(func() { <-block }))
	require.Eventually(t, func() bool { return p.Running() == 1 }, time.Second, time.Millisecond)

	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolBusy)
	close(block)
}
