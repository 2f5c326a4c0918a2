//go:build wireinject
// +build wireinject

package injector

import (
	"github.com/google/wire"

	"github.com/lk2023060901/ai-chat-dashboard/internal/conf"
	"github.com/lk2023060901/ai-chat-dashboard/internal/data"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/logger"
	"github.com/lk2023060901/ai-chat-dashboard/internal/server"
)

// coreProviderSet builds the chat core
var coreProviderSet = wire.NewSet(
	data.NewData,
	provideStore,
	provideRegistry,
	provideContextWindow,
	provideWorkerPool,
	provideTools,
	provideChatService,
	newCore,
)

// serverProviderSet builds the HTTP front door
var serverProviderSet = wire.NewSet(
	server.NewChatHandler,
	server.NewHTTPServer,
)

// InitializeApp initializes the HTTP application with Wire
func InitializeApp(config *conf.Config, log *logger.Logger) (*App, func(), error) {
	wire.Build(coreProviderSet, serverProviderSet, newApp)
	return nil, nil, nil
}

// InitializeCore initializes the chat core only
func InitializeCore(config *conf.Config, log *logger.Logger) (*Core, func(), error) {
	wire.Build(coreProviderSet)
	return nil, nil, nil
}
