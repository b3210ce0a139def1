// Package server provides the HTTP server for browser-driven gradebook
// merges. Uploaded CSVs are reconciled in a per-request workspace whose
// outputs stay downloadable until the workspace expires.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/gradekeep/gradekeep/cmd/application"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	app        application.Application
	workspaces *workspaceStore
	logger     *zerolog.Logger
	config     Config
	ctx        context.Context
	cancel     context.CancelFunc
	startTime  time.Time
}

// New creates a new server instance with the given configuration.
func New(app application.Application, cfg Config) *Server {
	logger := app.Logger()

	if cfg.WorkspaceTTL <= 0 {
		cfg.WorkspaceTTL = DefaultConfig().WorkspaceTTL
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		app:        app,
		workspaces: newWorkspaceStore(cfg.WorkspaceTTL, logger),
		logger:     logger,
		config:     cfg,
		ctx:        ctx,
		cancel:     cancel,
		startTime:  time.Now(),
	}
}

// Start starts the workspace sweeper.
func (s *Server) Start() {
	go s.workspaces.Run(s.ctx)
}

// Handler returns the configured http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.setupRouter()
}

// Shutdown stops background services and removes remaining workspaces.
func (s *Server) Shutdown(_ context.Context) error {
	s.logger.Info().Msg("Shutting down server background services")
	s.cancel()
	return nil
}

// StartTime returns the server start time for uptime reporting.
func (s *Server) StartTime() time.Time {
	return s.startTime
}
