package data

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/conversation"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/conversation/gormstore"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/conversation/memory"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/conversation/redisstore"
	"github.com/lk2023060901/ai-chat-dashboard/internal/conf"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/database"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/logger"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/redis"
)

// Data holds the conversation store and the backend clients behind it
type Data struct {
	Store conversation.Store
	Redis *redis.Client
	DB    *database.DB
}

// NewData opens the backend selected by store.driver
func NewData(config *conf.Config, log *logger.Logger) (*Data, func(), error) {
	d := &Data{}

	switch config.Store.Driver {
	case conf.StoreRedis:
		client, err := redis.New(&config.Redis, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init redis: %w", err)
		}
		d.Redis = client
		d.Store = redisstore.New(client, redisstore.WithTTL(config.Store.TTL))

	case conf.StorePostgres:
		db, err := database.New(&config.Database, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init database: %w", err)
		}
		store, err := gormstore.New(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to init conversation store: %w", err)
		}
		d.DB = db
		d.Store = store

	default:
		d.Store = memory.New()
	}

	log.Info("conversation store initialized", zap.String("driver", driverName(config.Store.Driver)))

	cleanup := func() {
		log.Info("cleaning up data resources")
		if d.DB != nil {
			if err := d.DB.Close(); err != nil {
				log.Warn("close database failed", zap.Error(err))
			}
		}
		if d.Redis != nil {
			if err := d.Redis.Close(); err != nil {
				log.Warn("close redis failed", zap.Error(err))
			}
		}
	}
	return d, cleanup, nil
}

func driverName(driver string) string {
	if driver == "" {
		return conf.StoreMemory
	}
	return driver
}
