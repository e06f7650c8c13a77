// Package http serves the upload pages, the JSON API, the result feed and
// metrics.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"fuzzyscore/config"
)

type Server struct {
	server *http.Server
	config ServerConfig
	logger *zap.Logger
}

type ServerConfig struct {
	Port           int
	Timeout        time.Duration
	MaxUploadBytes int64
	AllowedOrigins []string
}

func DefaultServerConfig() ServerConfig {
	return ServerConfigFrom(config.Default().HTTP)
}

func ServerConfigFrom(c config.HTTPConfig) ServerConfig {
	return ServerConfig{
		Port:           c.Port,
		Timeout:        c.Timeout,
		MaxUploadBytes: c.MaxUploadBytes,
		AllowedOrigins: c.AllowedOrigins,
	}
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(cfg ServerConfig, h *Handlers, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)

	chain := Chain(
		RecoveryMiddleware(logger),
		LoggerMiddleware(logger),
		SecurityHeadersMiddleware,
		CORSMiddleware(cfg.AllowedOrigins),
		TimeoutMiddleware(cfg.Timeout),
		RequestSizeMiddleware(cfg.MaxUploadBytes),
	)
	return chain(mux)
}

func NewServer(cfg ServerConfig, h *Handlers, logger *zap.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewHandler(cfg, h, logger),
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout + 5*time.Second,
			IdleTimeout:  120 * time.Second,
		},
		config: cfg,
		logger: logger,
	}
}

// Start blocks until the server stops. A graceful Stop is not an error.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		zap.String("addr", s.server.Addr),
		zap.String("feed", "/api/ws/results"))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func (s *Server) Addr() string {
	return s.server.Addr
}
