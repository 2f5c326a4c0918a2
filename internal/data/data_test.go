package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/conversation/memory"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
	"github.com/lk2023060901/ai-chat-dashboard/internal/conf"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/logger"
)

func TestNewData_Memory(t *testing.T) {
	cfg := conf.Default()
	d, cleanup, err := NewData(cfg, logger.Nop())
	require.NoError(t, err)
	defer cleanup()

	assert.IsType(t, &memory.Store{}, d.Store)
	assert.Nil(t, d.Redis)
	assert.Nil(t, d.DB)

	require.NoError(t, d.Store.Append(context.Background(), "c", types.NewMessage(types.RoleUser, "hi")))
}

func TestNewData_RedisUnavailable(t *testing.T) {
	cfg := conf.Default()
	cfg.Store.Driver = conf.StoreRedis
	cfg.Redis.Addrs = []string{"127.0.0.1:1"}
	cfg.Redis.MaxRetries = 0
	cfg.Redis.DialTimeout = 200 * time.Millisecond

	_, _, err := NewData(cfg, logger.Nop())
	assert.Error(t, err)
}
