// Package mcp exposes read access to workspaces, datasets and fine-tuning
// exports over the Model Context Protocol, so agents can pull training data
// without going through the REST API. Callers are identified by client IP,
// exactly like HTTP callers.
package mcp

import (
	"context"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/TuneForge/internal/domain/dataset"
	"github.com/Strob0t/TuneForge/internal/domain/user"
	"github.com/Strob0t/TuneForge/internal/domain/workspace"
	"github.com/Strob0t/TuneForge/internal/middleware"
	"github.com/Strob0t/TuneForge/internal/service"
)

// ServerConfig holds the identity the server reports during initialization.
type ServerConfig struct {
	Name    string
	Version string
}

// UserResolver maps a client IP to a registered user.
type UserResolver interface {
	Resolve(ctx context.Context, ip string) (*user.User, error)
}

// WorkspaceLister lists the workspaces a user owns.
type WorkspaceLister interface {
	List(ctx context.Context, callerID string) ([]workspace.Summary, error)
}

// DatasetLister lists the datasets of a workspace the user owns.
type DatasetLister interface {
	List(ctx context.Context, callerID, workspaceID string) ([]dataset.Summary, error)
}

// Exporter encodes a dataset as a fine-tuning file.
type Exporter interface {
	Export(ctx context.Context, datasetID, format string) (*service.ExportFile, error)
}

// ServerDeps are the services backing the MCP tools. Nil dependencies make
// the corresponding tools return an error result.
type ServerDeps struct {
	Users      UserResolver
	Workspaces WorkspaceLister
	Datasets   DatasetLister
	Exports    Exporter
}

// Server wraps an mcp-go server with TuneForge's tools registered.
type Server struct {
	mcpServer *mcpserver.MCPServer
	deps      ServerDeps
}

// NewServer creates the MCP server and registers its tools.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithRecovery(),
		),
		deps: deps,
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer { return s.mcpServer }

// Handler serves the streamable HTTP transport. It must sit behind the
// ClientIP middleware; the request's client IP is carried into tool calls.
func (s *Server) Handler() http.Handler {
	return mcpserver.NewStreamableHTTPServer(s.mcpServer,
		mcpserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return withClientIP(ctx, middleware.RequestIP(r))
		}),
	)
}

type clientIPKey struct{}

func withClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func clientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
