// Package http 提供churn预测服务的HTTP接口
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"churnguard/config"
	"churnguard/service"
)

// Server HTTP服务器
type Server struct {
	server  *http.Server
	config  ServerConfig
	svc     *service.Service
	metrics *Metrics
	feed    *Feed
	logger  *zap.Logger
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port           int
	Timeout        time.Duration
	MaxBodyBytes   int64
	AllowedOrigins []string
}

// DefaultServerConfig 默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfigFrom(config.Default())
}

// ServerConfigFrom 从应用配置中提取HTTP部分
func ServerConfigFrom(cfg *config.Config) ServerConfig {
	return ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		MaxBodyBytes:   cfg.Http.MaxBodyBytes,
		AllowedOrigins: cfg.Http.AllowedOrigins,
	}
}

// NewServer 创建HTTP服务器
func NewServer(cfg ServerConfig, svc *service.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	s := &Server{
		config:  cfg,
		svc:     svc,
		metrics: NewMetrics(svc.Ready),
		feed:    NewFeed(cfg.AllowedOrigins, logger),
		logger:  logger,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	// 创建中间件链
	chain := Chain(
		RecoveryMiddleware(logger),              // 1. 恢复中间件（最先执行，捕获panic）
		LoggerMiddleware(logger),                // 2. 日志中间件
		SecurityHeadersMiddleware,               // 3. 安全头中间件
		CORSMiddleware(cfg.AllowedOrigins),      // 4. CORS中间件
		TimeoutMiddleware(cfg.Timeout),          // 5. 超时中间件
		RequestSizeMiddleware(cfg.MaxBodyBytes), // 6. 请求大小限制
	)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           chain(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Timeout,
		WriteTimeout:      cfg.Timeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler 返回带中间件的根处理器
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Feed 返回预测事件广播中心
func (s *Server) Feed() *Feed {
	return s.feed
}

// Start 启动服务器，阻塞直到服务器关闭
func (s *Server) Start() error {
	go s.feed.Run()

	s.logger.Info("starting HTTP server",
		zap.String("addr", s.server.Addr),
		zap.String("feed", "/ws/predictions"))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop 优雅停止服务器
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	s.feed.Stop()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
