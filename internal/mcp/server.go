// Package mcp exposes the read-only catalog tools over the Model
// Context Protocol so external agents can query the inventory without
// going through the chat orchestrator. Mutating tools are deliberately
// not registered: MCP clients have no approval surface.
package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/synssins/homebox-companion/internal/chat"
)

// NewServer builds an MCP server over the tool registry, registering
// only read-only tools.
func NewServer(registry *chat.Registry, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"homebox-companion",
		version,
		server.WithToolCapabilities(true),
	)

	for _, tool := range registry.List() {
		if tool.Permission() != chat.PermissionReadOnly {
			continue
		}
		def := mcp.NewToolWithRawSchema(tool.Name(), tool.Description(), tool.Schema())
		s.AddTool(def, handlerFor(tool))
	}
	return s
}

func handlerFor(tool chat.Tool) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError("failed to encode arguments: " + err.Error()), nil
		}

		payload, err := tool.Execute(ctx, args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		body, err := json.Marshal(payload)
		if err != nil {
			return mcp.NewToolResultError("failed to encode result: " + err.Error()), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}

// Run starts the MCP server on stdio.
func Run(registry *chat.Registry, version string) error {
	return server.ServeStdio(NewServer(registry, version))
}
