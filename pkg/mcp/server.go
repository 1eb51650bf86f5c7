package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/rulesync/pkg/catalog"
	"github.com/macropower/rulesync/pkg/httpserver"
	"github.com/macropower/rulesync/pkg/version"
)

// Server serves read-only catalog tools over MCP.
type Server struct {
	rules   catalog.Reader
	server  *mcp.Server
	tracer  trace.Tracer
	address string
}

// NewServer creates a [Server] for rules. An empty address serves over
// stdio, anything else is a listen address for streamable HTTP.
func NewServer(address string, rules catalog.Reader) *Server {
	impl := &mcp.Implementation{
		Name:    name,
		Version: version.GetVersion(),
	}

	s := &Server{
		rules:   rules,
		server:  mcp.NewServer(impl, &mcp.ServerOptions{Instructions: instructions}),
		tracer:  otel.Tracer("mcp-server"),
		address: address,
	}

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_rules",
		Description: "List the rules currently in the catalog, sorted by name.",
	}, WithTracing(s.tracer, s.handleListRules))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_rule",
		Description: "Get the full definition of a rule. You MUST use a name from the list_rules output EXACTLY.",
	}, WithTracing(s.tracer, s.handleGetRule))
}

// Server returns the underlying [*mcp.Server].
func (s *Server) Server() *mcp.Server {
	return s.server
}

// Serve serves until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	slog.InfoContext(ctx, "starting MCP server", slog.String("address", s.address))

	if s.address == "" {
		err := s.server.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("serve stdio: %w", err)
		}

		return nil
	}

	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)

	err := httpserver.Serve(ctx, s.address, handler)
	if err != nil {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	return nil
}
