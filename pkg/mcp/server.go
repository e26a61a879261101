package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/joblint/internal/linter"
	"github.com/rendis/joblint/internal/store"
)

// ServerDeps holds the dependencies for creating a Server.
type ServerDeps struct {
	// Store backs the registry tools. Without it they report an error.
	Store store.Store
	// Resolver answers for stages a linted job does not declare.
	Resolver linter.StageResolver
	Logger   *slog.Logger
	Version  string
}

// Server wraps an MCP server with the joblint tool handlers.
type Server struct {
	store     store.Store
	resolver  linter.StageResolver
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a Server with every tool registered.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		store:    deps.Store,
		resolver: deps.Resolver,
		logger:   logger,
	}

	mcpSrv := server.NewMCPServer(
		"joblint",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("joblint checks CI job definitions before they are submitted. Use joblint.verify to lint a job document, joblint.diagram to draw its sequence, joblint.stages to list the stages a job may reference without declaring them, and joblint.register_stage or joblint.delete_stage to maintain that registry."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: verifyTool(), Handler: s.handleVerify},
		{Tool: diagramTool(), Handler: s.handleDiagram},
		{Tool: stagesTool(), Handler: s.handleStages},
		{Tool: registerStageTool(), Handler: s.handleRegisterStage},
		{Tool: deleteStageTool(), Handler: s.handleDeleteStage},
	}
}

// --- Tool definitions ---

func verifyTool() mcp.Tool {
	return mcp.NewTool("joblint.verify",
		mcp.WithDescription("Lint a CI job definition and return its findings"),
		mcp.WithString("document", mcp.Required(), mcp.Description("The job document as YAML or JSON text")),
		mcp.WithString("format",
			mcp.Enum("yaml", "json"),
			mcp.Description("Encoding of document (default: yaml, which also reads JSON)"),
		),
		mcp.WithString("source", mcp.Description("Name shown for the document in the report (default: -)")),
		mcp.WithBoolean("strict", mcp.Description("Also run the JSON Schema, duplicate and branch-cycle checks")),
		mcp.WithString("select", mcp.Description("jq query locating the job inside a larger document")),
		mcp.WithString("filter", mcp.Description(`expr predicate over kind and text choosing which findings to show, e.g. kind == "error"`)),
		mcp.WithString("fail_on", mcp.Description("CEL policy over errors, warnings, findings and job deciding failure (default: errors > 0)")),
	)
}

func diagramTool() mcp.Tool {
	return mcp.NewTool("joblint.diagram",
		mcp.WithDescription("Draw the sequence of a job. Returns ASCII art, Mermaid flowchart syntax, graphviz DOT, SVG, or a base64-encoded PNG image"),
		mcp.WithString("document", mcp.Required(), mcp.Description("The job document as YAML or JSON text")),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("ascii", "mermaid", "dot", "svg", "png"),
			mcp.Description("Output format"),
		),
		mcp.WithString("select", mcp.Description("jq query locating the job inside a larger document")),
	)
}

func stagesTool() mcp.Tool {
	return mcp.NewTool("joblint.stages",
		mcp.WithDescription("List registered stages, newest version first"),
		mcp.WithString("name", mcp.Description("Only list versions of this stage")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of stages to return (default: 50)")),
	)
}

func registerStageTool() mcp.Tool {
	return mcp.NewTool("joblint.register_stage",
		mcp.WithDescription("Register a stage so jobs may run it without declaring it"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Stage name, matched exactly")),
		mcp.WithString("version", mcp.Description("Stage version (default: 1.0.0)")),
		mcp.WithString("description", mcp.Description("What the stage does")),
		mcp.WithArray("steps", mcp.Description("The stage's steps"), mcp.Items(map[string]any{"type": "object"})),
	)
}

func deleteStageTool() mcp.Tool {
	return mcp.NewTool("joblint.delete_stage",
		mcp.WithDescription("Remove a stage from the registry"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Stage name")),
		mcp.WithString("version", mcp.Description("Version to remove (default: every version)")),
	)
}
