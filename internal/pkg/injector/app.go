package injector

import (
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/chat"
	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/registry"
	"github.com/lk2023060901/ai-chat-dashboard/internal/conf"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/logger"
	"github.com/lk2023060901/ai-chat-dashboard/internal/server"
)

// App encapsulates all application dependencies
type App struct {
	Config     *conf.Config
	Logger     *logger.Logger
	HTTPServer *server.HTTPServer
	Core       *Core
}

// Core is the chat core without any transport in front of it, used by the CLI
type Core struct {
	Chat      *chat.Service
	Providers *registry.Registry
}

func newApp(config *conf.Config, log *logger.Logger, httpServer *server.HTTPServer, core *Core) *App {
	return &App{
		Config:     config,
		Logger:     log,
		HTTPServer: httpServer,
		Core:       core,
	}
}

func newCore(service *chat.Service, providers *registry.Registry) *Core {
	return &Core{Chat: service, Providers: providers}
}
