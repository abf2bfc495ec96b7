// Package mcp provides an MCP (Model Context Protocol) server for mcsolve.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/mcsolve/internal/config"
	"github.com/nvandessel/mcsolve/internal/logging"
	"github.com/nvandessel/mcsolve/internal/montecarlo"
	"github.com/nvandessel/mcsolve/internal/ratelimit"
	"github.com/nvandessel/mcsolve/internal/store"
)

// Server wraps the MCP SDK server and provides mcsolve-specific functionality.
type Server struct {
	server       *sdk.Server
	store        *store.RunStore
	settings     *config.Config
	estimator    *montecarlo.Estimator
	logger       *slog.Logger
	events       *logging.EventLogger
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "mcsolve")
	Version string // Server version

	// Settings supplies generator params, the default grid and the store
	// path. Nil means config.Default().
	Settings *config.Config

	// DBPath overrides Settings.Store.Path.
	DBPath string

	// AuditDir receives audit.jsonl; empty disables auditing.
	AuditDir string

	Logger *slog.Logger
	Events *logging.EventLogger
}

// NewServer creates a new MCP server with mcsolve tools.
func NewServer(cfg *Config) (*Server, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = settings.Store.Path
	}
	if dbPath == "" {
		p, err := store.DefaultPath()
		if err != nil {
			return nil, err
		}
		dbPath = p
	}

	runStore, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		server:   mcpServer,
		store:    runStore,
		settings: settings,
		estimator: montecarlo.New(montecarlo.Options{
			Params: settings.Generator,
			Logger: logger,
			Events: cfg.Events,
		}),
		logger:       logger,
		events:       cfg.Events,
		toolLimiters: ratelimit.NewToolLimiters(),
	}
	if cfg.AuditDir != "" {
		s.auditLogger = NewAuditLogger(cfg.AuditDir)
	}

	s.registerTools()

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle OS signals
	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info("mcp server starting", "db", s.store.Path())

	// Run server (blocks)
	err := s.server.Run(ctx, &sdk.StdioTransport{})

	// Clean up
	s.Close()

	return err
}

// Close closes the server and releases resources.
func (s *Server) Close() error {
	s.auditLogger.Close()
	return s.store.Close()
}
