package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cutdesk/cutdesk-agent/internal/playback"
	"github.com/cutdesk/cutdesk-agent/internal/session"
	"github.com/cutdesk/cutdesk-agent/internal/validation"
)

// ConfigStore is the key/value store holding the agent's bearer token.
type ConfigStore interface {
	GetConfig(ctx context.Context, key string) (string, error)
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port     int
	Sessions *session.Service
	Store    ConfigStore
	// Media serves segments and locally published playlists; nil disables /media.
	Media       *playback.MediaServer
	Validator   *validation.Validator
	CORSOrigins []string
	Logger      *slog.Logger
	StartTime   time.Time
	DeviceID    string
	Version     string
}

func NewServer(cfg ServerConfig) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      NewRouter(cfg),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
