package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lk2023060901/ai-chat-dashboard/internal/conf"
	"github.com/lk2023060901/ai-chat-dashboard/internal/pkg/logger"
)

type HTTPServer struct {
	server *http.Server
	logger *logger.Logger
}

// NewRouter 构建路由，测试中直接使用
func NewRouter(log *logger.Logger, chatHandler *ChatHandler) *gin.Engine {
	router := gin.New()
	router.Use(logger.GinRecovery(log))
	router.Use(logger.GinLogger(log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api/v1")
	chatHandler.RegisterRoutes(api)
	return router
}

func NewHTTPServer(config *conf.Config, log *logger.Logger, chatHandler *ChatHandler) *HTTPServer {
	if config.Server.Mode != "" {
		gin.SetMode(config.Server.Mode)
	}

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	return &HTTPServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(log, chatHandler),
			ReadHeaderTimeout: config.Server.ReadTimeout,
		},
		logger: log.Named("http"),
	}
}

func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}
