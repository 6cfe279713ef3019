// internal/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/internal/config"
	"github.com/xkilldash9x/pagewright/internal/orchestrator"
)

// Transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "streamable-http"
)

const shutdownGrace = 10 * time.Second

// Server exposes the orchestrator as MCP tools.
type Server struct {
	orch   *orchestrator.Orchestrator
	cfg    config.ServerConfig
	logger *zap.Logger
	mcp    *mcpserver.MCPServer
}

// New creates a Server with every tool registered.
func New(orch *orchestrator.Orchestrator, cfg config.ServerConfig, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		orch:   orch,
		cfg:    cfg,
		logger: logger.Named("mcp"),
		mcp: mcpserver.NewMCPServer("pagewright", version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithRecovery(),
		),
	}
	s.registerTools()
	return s
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *mcpserver.MCPServer { return s.mcp }

// Serve runs the configured transport until ctx ends or the transport fails.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	switch s.cfg.Transport {
	case TransportStdio, "":
		s.logger.Info("Serving MCP over stdio.")
		err := mcpserver.NewStdioServer(s.mcp).Listen(ctx, in, out)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
			return fmt.Errorf("stdio transport: %w", err)
		}
		return nil

	case TransportHTTP:
		httpServer := mcpserver.NewStreamableHTTPServer(s.mcp)
		errCh := make(chan error, 1)
		go func() {
			s.logger.Info("Serving MCP over streamable HTTP.", zap.String("address", s.cfg.Address))
			errCh <- httpServer.Start(s.cfg.Address)
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http transport: %w", err)
			}
			return nil
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http transport shutdown: %w", err)
		}
		<-errCh
		return nil
	}
	return fmt.Errorf("unsupported transport: %s (use %s or %s)", s.cfg.Transport, TransportStdio, TransportHTTP)
}

func (s *Server) registerTools() {
	format := mcp.WithString("format", mcp.Description("Output format: json (default) or yaml"), mcp.Enum("json", "yaml"))

	s.mcp.AddTool(
		mcp.NewTool("open_page",
			mcp.WithDescription("Open a URL in a new page context and wait until it is ready"),
			mcp.WithString("url", mcp.Description("URL to open; bare hosts get https://"), mcp.Required()),
			format,
		),
		s.handleOpenPage,
	)

	s.mcp.AddTool(
		mcp.NewTool("run_command",
			mcp.WithDescription("Run a natural-language command such as 'click Sign in' or 'type hello into search and press enter' against a page"),
			mcp.WithString("page_id", mcp.Description("Page context id returned by open_page"), mcp.Required()),
			mcp.WithString("command", mcp.Description("The instruction to run"), mcp.Required()),
			format,
		),
		s.handleRunCommand,
	)

	s.mcp.AddTool(
		mcp.NewTool("analyze_page",
			mcp.WithDescription("Scan a page and list its interactive elements, best automation candidates first"),
			mcp.WithString("page_id", mcp.Description("Page context id"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Max elements to list (default 20)")),
			format,
		),
		s.handleAnalyzePage,
	)

	s.mcp.AddTool(
		mcp.NewTool("resolve_element",
			mcp.WithDescription("Find the element a description refers to without acting on it"),
			mcp.WithString("page_id", mcp.Description("Page context id"), mcp.Required()),
			mcp.WithString("description", mcp.Description("Element description, visible text or structural path"), mcp.Required()),
			mcp.WithString("action", mcp.Description("Action the element is for (default click)")),
			format,
		),
		s.handleResolveElement,
	)

	s.mcp.AddTool(
		mcp.NewTool("plan_command",
			mcp.WithDescription("Parse a command and show the step plan it would run, without touching a page"),
			mcp.WithString("command", mcp.Description("The instruction to plan"), mcp.Required()),
			format,
		),
		s.handlePlanCommand,
	)

	s.mcp.AddTool(
		mcp.NewTool("list_pages",
			mcp.WithDescription("List open page contexts"),
			format,
		),
		s.handleListPages,
	)

	s.mcp.AddTool(
		mcp.NewTool("close_page",
			mcp.WithDescription("Close a page context"),
			mcp.WithString("page_id", mcp.Description("Page context id"), mcp.Required()),
		),
		s.handleClosePage,
	)

	s.mcp.AddTool(
		mcp.NewTool("run_batch",
			mcp.WithDescription("Run command sequences on several pages concurrently. Each job is {page_id, commands[]}; a job stops at its first failed command"),
			mcp.WithArray("jobs", mcp.Description("Array of {page_id, commands} objects"), mcp.Required()),
			format,
		),
		s.handleRunBatch,
	)
}
