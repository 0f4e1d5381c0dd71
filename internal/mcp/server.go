package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/solvdai/solvd/internal/logging"
	"github.com/solvdai/solvd/internal/quote"
	"github.com/solvdai/solvd/internal/secrets"
	"github.com/solvdai/solvd/internal/tax"
)

// Server exposes quoting tools over MCP.
type Server struct {
	mcp      *mcp.Server
	quotes   *quote.Generator
	taxes    *tax.Table
	scrubber secrets.Scrubber
	tools    *ToolRegistry
	metrics  *Metrics
	logger   *logging.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the implementation name reported to clients (default "solvd").
	Name    string
	Version string
	Logger  *logging.Logger
	// Scrubber redacts secrets from model text returned to clients.
	Scrubber secrets.Scrubber
	Metrics  *Metrics
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:     "solvd",
		Version:  "dev",
		Logger:   logging.NewNop(),
		Scrubber: secrets.Noop{},
	}
}

// NewServer creates an MCP server over the quote generator. taxes defaults
// to the generator's table.
func NewServer(cfg *Config, quotes *quote.Generator, taxes *tax.Table) (*Server, error) {
	if quotes == nil {
		return nil, errors.New("quote generator is required")
	}
	def := DefaultConfig()
	if cfg == nil {
		cfg = def
	}
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.Version == "" {
		cfg.Version = def.Version
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	if cfg.Scrubber == nil {
		cfg.Scrubber = def.Scrubber
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(cfg.Logger)
	}
	if taxes == nil {
		taxes = quotes.Taxes()
	}

	s := &Server{
		mcp:      mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil),
		quotes:   quotes,
		taxes:    taxes,
		scrubber: cfg.Scrubber,
		tools:    NewToolRegistry(),
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
	s.registerTools()
	return s, nil
}

// Tools returns the registry of served tools.
func (s *Server) Tools() *ToolRegistry {
	return s.tools
}

// Run serves on stdio until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.RunTransport(ctx, &mcp.StdioTransport{})
}

// RunTransport serves a single session on t.
func (s *Server) RunTransport(ctx context.Context, t mcp.Transport) error {
	s.logger.Info(ctx, "starting MCP server")
	if err := s.mcp.Run(ctx, t); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Connect starts a session on t without blocking.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}
