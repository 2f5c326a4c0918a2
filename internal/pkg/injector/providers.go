package injector

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/chat"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/contextwindow"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/conversation"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/factory"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/registry"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/tools"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/transport"
	"github.com/lk2023060901/ai-chat-dashboard/internal/conf"
	"github.com/lk2023060901/ai-chat-dashboard/internal/data"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/logger"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/workerpool"
)

// provideRegistry creates one adapter per provider that has an API key
func provideRegistry(config *conf.Config, log *logger.Logger) (*registry.Registry, func(), error) {
	reg := registry.New(
		registry.WithModelsTTL(config.Chat.ModelsTTL),
		registry.WithLogger(log.Named("registry")),
	)

	for _, id := range config.EnabledProviders() {
		pc := config.Providers[id]
		cfg, err := config.ProviderConfig(id)
		if err != nil {
			_ = reg.Close()
			return nil, nil, err
		}
		adapter, err := factory.New(id, *cfg, transport.WithLogger(log.Named("transport")))
		if err != nil {
			_ = reg.Close()
			return nil, nil, fmt.Errorf("init provider %s: %w", id, err)
		}
		reg.Register(adapter, pc.Aliases...)
		if pc.Status != "" {
			if err := reg.SetStatus(id, pc.Status); err != nil {
				_ = reg.Close()
				return nil, nil, err
			}
		}
		if err := reg.SetFeatures(id, pc.Features()); err != nil {
			_ = reg.Close()
			return nil, nil, err
		}
	}

	if len(reg.List()) == 0 {
		log.Warn("no providers configured, set providers.<id>.api_key or AICHAT_PROVIDERS_<ID>_API_KEY")
	}
	cleanup := func() {
		if err := reg.Close(); err != nil {
			log.Warn("close providers failed", zap.Error(err))
		}
	}
	return reg, cleanup, nil
}

// provideContextWindow selects the token estimator from chat.tokenizer
func provideContextWindow(config *conf.Config, log *logger.Logger) *contextwindow.Manager {
	opts := []contextwindow.Option{
		contextwindow.WithMaxMessages(config.Chat.MaxMessages),
		contextwindow.WithReserveTokens(config.Chat.ReserveTokens),
	}
	if config.Chat.Tokenizer == "tiktoken" {
		est, err := contextwindow.NewTiktokenEstimator("cl100k_base")
		if err != nil {
			log.Warn("tiktoken unavailable, falling back to character estimate", zap.Error(err))
		} else {
			opts = append(opts, contextwindow.WithEstimator(est))
		}
	}
	return contextwindow.NewManager(opts...)
}

func provideWorkerPool(config *conf.Config, log *logger.Logger) (*workerpool.Pool, func(), error) {
	cfg := workerpool.DefaultConfig()
	if config.Chat.ParallelWorkers > 0 {
		cfg.Workers = config.Chat.ParallelWorkers
	}
	pool, err := workerpool.New(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := pool.Shutdown(5 * time.Second); err != nil {
			log.Warn("worker pool shutdown timed out", zap.Error(err))
		}
	}
	return pool, cleanup, nil
}

func provideStore(d *data.Data) conversation.Store {
	return d.Store
}

func provideTools(log *logger.Logger) *tools.Registry {
	return tools.NewRegistry(log)
}

func provideChatService(
	providers *registry.Registry,
	window *contextwindow.Manager,
	pool *workerpool.Pool,
	store conversation.Store,
	toolReg *tools.Registry,
	log *logger.Logger,
) *chat.Service {
	return chat.NewService(providers, window, pool,
		chat.WithStore(store),
		chat.WithTools(toolReg),
		chat.WithLogger(log),
	)
}
