package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/contactimport/internal/importer"
	"github.com/fyrsmithlabs/contactimport/internal/logging"
	"github.com/fyrsmithlabs/contactimport/internal/mapping"
	"github.com/fyrsmithlabs/contactimport/internal/store"
)

// Server is an MCP server backed by the mapping engine and import executor.
type Server struct {
	mcp      *mcp.Server
	engine   *mapping.Engine
	executor *importer.Executor
	fields   store.FieldStore
	metrics  *Metrics
	logger   *logging.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "contactimport")
	Name string

	// Version is the server version (default: "dev")
	Version string

	// Logger for structured logging
	Logger *logging.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "contactimport",
		Version: "dev",
		Logger:  logging.NewNop(),
	}
}

// NewServer creates a new MCP server with its tools registered.
func NewServer(cfg *Config, engine *mapping.Engine, executor *importer.Executor, fields store.FieldStore) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if engine == nil {
		return nil, fmt.Errorf("mapping engine is required")
	}
	if executor == nil {
		return nil, fmt.Errorf("import executor is required")
	}
	if fields == nil {
		return nil, fmt.Errorf("field store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("mcp")

	name, version := cfg.Name, cfg.Version
	if name == "" {
		name = "contactimport"
	}
	if version == "" {
		version = "dev"
	}

	s := &Server{
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    name,
				Version: version,
			},
			nil,
		),
		engine:   engine,
		executor: executor,
		fields:   fields,
		metrics:  NewMetrics(logger),
		logger:   logger,
	}
	s.registerTools()
	return s, nil
}

// Run serves MCP on the stdio transport until ctx is done or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info(ctx, "starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
