// ABOUTME: MCP server setup for the health reconciliation store.
// ABOUTME: Wraps the MCP server with storage, the freshness engine, and the ingest pipeline.
package mcp

import (
	"context"

	"github.com/harperreed/health/internal/audit"
	"github.com/harperreed/health/internal/freshness"
	"github.com/harperreed/health/internal/ingest"
	"github.com/harperreed/health/internal/logging"
	"github.com/harperreed/health/internal/models"
	"github.com/harperreed/health/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

// LockStore reads and writes per-user data lock settings.
type LockStore interface {
	freshness.LockSettingsReader
	SetDataLock(ctx context.Context, userID string, lock models.DataLock) error
}

// Config wires the server to the rest of the application. Zero fields get
// defaults built on the repository.
type Config struct {
	UserID    string
	Locks     LockStore
	Guard     freshness.LockChecker
	Engine    *freshness.Engine
	Pipeline  []ingest.Option
	StaleDays int
	Logger    zerolog.Logger
}

// Server wraps the MCP server with storage access.
type Server struct {
	mcpServer *mcp.Server
	repo      storage.Repository
	locks     LockStore
	engine    *freshness.Engine
	pipeline  *ingest.Pipeline
	userID    string
	staleDays int
	logger    zerolog.Logger
}

// NewServer creates a new MCP server with the given storage.
func NewServer(repo storage.Repository, cfg Config) (*Server, error) {
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "health",
			Version: "2.0.0",
		},
		nil,
	)

	if cfg.UserID == "" {
		cfg.UserID = "default"
	}
	if cfg.StaleDays <= 0 {
		cfg.StaleDays = 7
	}
	if cfg.Locks == nil {
		cfg.Locks = repo
	}
	if cfg.Guard == nil {
		cfg.Guard = freshness.NewGuard(cfg.Locks, freshness.WithGuardLogger(cfg.Logger))
	}
	if cfg.Engine == nil {
		cfg.Engine = freshness.NewEngine(
			freshness.WithLockChecker(cfg.Guard),
			freshness.WithSnapshotReader(repo),
			freshness.WithLogger(cfg.Logger),
		)
	}

	logger := logging.Component(cfg.Logger, "mcp")
	opts := append([]ingest.Option{
		ingest.WithRecorder(audit.Multi{repo, audit.LogRecorder{Logger: logger}}),
		ingest.WithSessions(repo),
		ingest.WithLogger(cfg.Logger),
	}, cfg.Pipeline...)

	s := &Server{
		mcpServer: mcpServer,
		repo:      repo,
		locks:     cfg.Locks,
		engine:    cfg.Engine,
		pipeline:  ingest.New(cfg.Engine, repo, cfg.Guard, opts...),
		userID:    cfg.UserID,
		staleDays: cfg.StaleDays,
		logger:    logger,
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Serve starts the MCP server using stdio transport.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info().Str("user", s.userID).Msg("serving MCP over stdio")
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) user(id string) string {
	if id == "" {
		return s.userID
	}
	return id
}
