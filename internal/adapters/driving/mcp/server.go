package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/ragchat/internal/logger"
)

// Version is the MCP server version.
const Version = "0.1.0"

// instructions is sent to clients on initialisation.
const instructions = `ragchat answers questions from a private collection of PDF documents.
Call "ask" with a question to get an answer grounded in the documents, with
file and page citations. When the documents do not contain the answer the
reply says so; do not treat that as an error. Use "status" and
"list_sources" to see what is indexed.`

// shutdownTimeout bounds how long in-flight HTTP requests may take to finish.
const shutdownTimeout = 5 * time.Second

// Server exposes the answer and collection services over MCP.
type Server struct {
	ports  *Ports
	server *mcp.Server
}

// NewServer validates ports and registers the tools and resources.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{
		ports: ports,
		server: mcp.NewServer(
			&mcp.Implementation{Name: "ragchat", Version: Version},
			&mcp.ServerOptions{Instructions: instructions},
		),
	}
	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
// Nothing else may write to stdout while it runs.
func (s *Server) Run(ctx context.Context) error {
	logger.Debug("MCP server on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns the streamable HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}

// RunHTTP serves on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("MCP server shutdown: %v", err)
		}
	}()

	logger.Debug("MCP server on http %s", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		<-stopped
		return nil
	}
	return err
}
