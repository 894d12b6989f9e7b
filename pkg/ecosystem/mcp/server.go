package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server with flowlens tools registered.
func NewServer(version string) *server.MCPServer {
	s := server.NewMCPServer(
		"flowlens",
		version,
		server.WithToolCapabilities(true),
	)

	// Register tools
	s.AddTool(
		mcp.NewTool("flowlens/flows",
			mcp.WithDescription("Analyze the working-tree diff of a repo and report changed functions, their call graph, and the root functions worth tracing"),
			mcp.WithString("repo", mcp.Required(), mcp.Description("Path to the git repo to analyze")),
		),
		HandleFlows,
	)

	s.AddTool(
		mcp.NewTool("flowlens/tree",
			mcp.WithDescription("Return the folder/file tree of a directory as JSON"),
			mcp.WithString("root", mcp.Required(), mcp.Description("Directory to walk")),
		),
		HandleTree,
	)

	s.AddTool(
		mcp.NewTool("flowlens/trace",
			mcp.WithDescription("Run one function under the tracer and return its state at the requested line (or its completion)"),
			mcp.WithString("repo", mcp.Required(), mcp.Description("Path to the repo containing the target file")),
			mcp.WithString("entry", mcp.Required(), mcp.Description("Entry id in <path>::<function> form")),
			mcp.WithString("args_json", mcp.Description(`Call arguments as {"args": [...], "kwargs": {...}}`)),
			mcp.WithNumber("stop_line", mcp.Description("Line to pause at; omit to run to completion")),
		),
		HandleTrace,
	)

	s.AddTool(
		mcp.NewTool("flowlens/schema",
			mcp.WithDescription("Export the JSON Schema for trace requests"),
		),
		HandleSchema,
	)

	return s
}
