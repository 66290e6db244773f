// Package testserver builds a small MCP server with a fixed tool set. It backs
// the integration tests and the mcprobe-testserver command.
package testserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	Name    = "mcprobe-testserver"
	Version = "1.0.0"
)

// New returns an MCP server exposing the echo, add, echo_params and fail tools.
func New() *server.MCPServer {
	s := server.NewMCPServer(Name, Version,
		server.WithToolCapabilities(false),
		server.WithInstructions("Tools for exercising MCP clients."),
	)

	s.AddTool(
		mcp.NewTool("echo",
			mcp.WithDescription("Echoes the given text"),
			mcp.WithString("text", mcp.Required(), mcp.Description("Text to echo")),
		),
		echoHandler,
	)

	s.AddTool(
		mcp.NewTool("add",
			mcp.WithDescription("Adds two numbers"),
			mcp.WithNumber("a", mcp.Required(), mcp.Description("First operand")),
			mcp.WithNumber("b", mcp.Required(), mcp.Description("Second operand")),
		),
		addHandler,
	)

	// echo_params returns every argument it received, so callers can assert
	// exactly what was sent.
	s.AddTool(
		mcp.NewTool("echo_params",
			mcp.WithDescription("Echoes all received params as JSON"),
			mcp.WithString("org_id", mcp.Description("Organization ID")),
			mcp.WithString("query", mcp.Description("Search query")),
			mcp.WithBoolean("verbose", mcp.Description("Verbose output")),
		),
		echoParamsHandler,
	)

	s.AddTool(
		mcp.NewTool("fail",
			mcp.WithDescription("Always returns a tool error"),
		),
		failHandler,
	)

	return s
}

// NewSSE starts an HTTP+SSE test server. The caller must Close it.
func NewSSE() *httptest.Server {
	return server.NewTestServer(New())
}

// NewStreamableHTTP starts a Streamable HTTP test server. The caller must
// Close it. The MCP endpoint is the server root.
func NewStreamableHTTP() *httptest.Server {
	return httptest.NewServer(server.NewStreamableHTTPServer(New()))
}

func echoHandler(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func addHandler(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, err := request.RequireFloat("a")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, err := request.RequireFloat("b")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%g", a+b)), nil
}

func echoParamsHandler(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(request.GetArguments())
	if err != nil {
		return nil, fmt.Errorf("marshal args: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func failHandler(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError("this tool always fails"), nil
}
