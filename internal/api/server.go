// Package api serves a small authenticated HTTP status surface for the bot
// operator: health, live state and processing history.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/heimdex/scenebot/internal/access"
	"github.com/heimdex/scenebot/internal/jobs"
	"github.com/heimdex/scenebot/internal/media"
)

// AuthTokenKey is the config key holding the bearer token.
const AuthTokenKey = "api_token"

// SessionCounter reports live conversations.
type SessionCounter interface {
	ActiveSessions() int
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port       int
	Repository jobs.Repository
	Sessions   SessionCounter
	Roster     *access.Roster
	Tools      []media.ToolStatus
	OnFailure  string
	Logger     *slog.Logger
	StartTime  time.Time
	Version    string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
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
