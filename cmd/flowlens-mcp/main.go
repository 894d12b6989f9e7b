// Package main provides the flowlens-mcp binary — MCP server for AI agents.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	fmcp "github.com/flowlens/flowlens/pkg/ecosystem/mcp"
)

var version = "dev"

func main() {
	s := fmcp.NewServer(version)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
