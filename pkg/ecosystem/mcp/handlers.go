package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"math"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flowlens/flowlens/pkg/filetree"
	"github.com/flowlens/flowlens/pkg/impact"
	"github.com/flowlens/flowlens/pkg/providers"
	"github.com/flowlens/flowlens/pkg/schema"
	"github.com/flowlens/flowlens/pkg/tracer"
)

// HandleFlows implements the flowlens/flows MCP tool.
func HandleFlows(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	repo, _ := args["repo"].(string)
	if repo == "" {
		return errorResult("repo argument is required"), nil
	}

	analyzer := &impact.Analyzer{Repo: repo, Executor: &providers.RealExecutor{}}
	report, err := analyzer.Analyze(ctx)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	data, _ := json.MarshalIndent(map[string]any{
		"parents":    report.Parents,
		"call_graph": report.Graph,
		"changed":    report.Changed,
	}, "", "  ")
	return textResult(string(data)), nil
}

// HandleTree implements the flowlens/tree MCP tool.
func HandleTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	root, _ := args["root"].(string)
	if root == "" {
		return errorResult("root argument is required"), nil
	}

	tree, err := filetree.Build(root)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	data, _ := json.MarshalIndent(tree, "", "  ")
	return textResult(string(data)), nil
}

// HandleTrace implements the flowlens/trace MCP tool. It runs a single
// cycle: continue to stop_line (or to completion) and return the one
// event that produces.
func HandleTrace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	repo, _ := args["repo"].(string)
	entryID, _ := args["entry"].(string)
	if repo == "" || entryID == "" {
		return errorResult("repo and entry arguments are required"), nil
	}
	argsJSON, _ := args["args_json"].(string)
	stopLine := math.MaxInt32
	if raw, ok := args["stop_line"].(float64); ok && raw > 0 {
		stopLine = int(raw)
	}

	var out, diag bytes.Buffer
	session, err := tracer.NewSession(schema.TraceRequest{
		RepoRoot:    repo,
		EntryFullID: entryID,
		ArgsJSON:    argsJSON,
	}, &out, &diag)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	defer session.Close()

	if err := session.ContinueUntil(stopLine, ""); err != nil {
		return errorResult(err.Error()), nil
	}
	snap := session.WaitForEvent()
	if err := session.Emit(snap); err != nil {
		return errorResult(err.Error()), nil
	}

	data, _ := json.MarshalIndent(snap, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: snap.Event == schema.EventError,
	}, nil
}

// HandleSchema implements the flowlens/schema MCP tool.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := schema.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
