// Package mcp exposes chunking as Model Context Protocol tools over stdio.
package mcp

import (
	"context"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ricesearch/rice-chunk/internal/index"
	"github.com/ricesearch/rice-chunk/internal/pkg/logger"
	"github.com/ricesearch/rice-chunk/internal/profile"
)

const (
	// ServerName is the MCP server name.
	ServerName = "rice-chunk"
	// DefaultVersion is reported when no build version is set.
	DefaultVersion = "dev"
)

// ServerConfig configures the MCP server.
type ServerConfig struct {
	// Chunker is the base configuration; tool arguments override it per
	// call.
	Chunker  index.ChunkerConfig
	Registry *profile.Registry
	Logger   *logger.Logger

	// Root resolves relative chunk_file paths. Empty uses the working
	// directory.
	Root    string
	Version string
}

// Server wraps the MCP server with the chunking configuration.
type Server struct {
	mcp      *server.MCPServer
	base     index.ChunkerConfig
	registry *profile.Registry
	root     string
	log      *logger.Logger
}

// NewServer creates a server with all tools registered.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Registry == nil {
		cfg.Registry = profile.NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	root := cfg.Root
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}

	s := &Server{
		mcp: server.NewMCPServer(
			ServerName,
			cfg.Version,
			server.WithToolCapabilities(false),
		),
		base:     cfg.Chunker,
		registry: cfg.Registry,
		root:     root,
		log:      cfg.Logger.WithComponent("mcp"),
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Serve runs the server on stdin/stdout until the client disconnects.
func (s *Server) Serve(ctx context.Context) error {
	s.log.Info("MCP server listening on stdio", "tools", len(toolNames))
	stdio := server.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(chunkCodeTool(), s.handleChunkCode)
	s.mcp.AddTool(chunkFileTool(), s.handleChunkFile)
	s.mcp.AddTool(listLanguagesTool(), s.handleListLanguages)
}
