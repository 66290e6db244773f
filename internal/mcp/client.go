package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// Client is a high-level MCP protocol client that uses a Transport to
// communicate with an MCP server. It is safe for concurrent use when the
// underlying transport is.
type Client struct {
	transport Transport
	lastID    atomic.Int64
}

// NewClient creates a new MCP client using the given transport.
func NewClient(transport Transport) *Client {
	return &Client{transport: transport}
}

// connectionState is implemented by transports that carry requests only
// after Connect. The client checks it before allocating an id.
type connectionState interface {
	Connected() bool
}

// allocID returns the next request ID. IDs start at 1 and are never reused.
func (c *Client) allocID() int {
	return int(c.lastID.Add(1))
}

// Connect runs the transport handshake if the transport needs one.
func (c *Client) Connect(ctx context.Context) error {
	if conn, ok := c.transport.(Connector); ok {
		return conn.Connect(ctx)
	}
	return nil
}

// SendRequest sends a JSON-RPC request for method and returns the raw
// response envelope. A nil params is sent as an empty object. JSON-RPC error
// responses are returned as-is; only transport failures produce an error.
func (c *Client) SendRequest(ctx context.Context, method string, params any) (*JSONRPCResponse, error) {
	if st, ok := c.transport.(connectionState); ok && !st.Connected() {
		return nil, fmt.Errorf("%s: %w", method, ErrNotConnected)
	}
	if params == nil {
		params = map[string]any{}
	}
	resp, err := c.transport.Send(ctx, newRequest(c.allocID(), method, params))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return resp, nil
}

// Initialize performs the MCP initialize handshake. It sends an initialize
// request with the given client name and version, then sends a
// notifications/initialized notification.
func (c *Client) Initialize(ctx context.Context, clientName, clientVersion string) (*InitializeResult, error) {
	params := InitializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{"tools": map[string]any{}},
		ClientInfo: ClientInfo{
			Name:    clientName,
			Version: clientVersion,
		},
	}

	var result InitializeResult
	if err := c.call(ctx, "initialize", params, &result); err != nil {
		return nil, err
	}

	// Some servers never acknowledge the notification; its failure is not
	// fatal to the session.
	_ = c.transport.Notify(ctx, newRequest(0, "notifications/initialized", nil))

	return &result, nil
}

// ListTools sends a tools/list request and returns the available tools.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	var result ToolsListResult
	if err := c.call(ctx, "tools/list", nil, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// CallTool sends a tools/call request and returns the raw response envelope.
// The caller decides how to treat result versus error; see
// DecodeCallToolResult.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (*JSONRPCResponse, error) {
	if arguments == nil {
		arguments = map[string]any{}
	}
	return c.SendRequest(ctx, "tools/call", CallToolParams{Name: name, Arguments: arguments})
}

// DecodeCallToolResult interprets a tools/call response. A JSON-RPC error
// becomes an *RPCError.
func DecodeCallToolResult(resp *JSONRPCResponse) (*CallToolResult, error) {
	if resp.Error != nil {
		return nil, rpcError("tools/call", resp.Error)
	}
	var result CallToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("tools/call: unmarshal result: %w", err)
	}
	return &result, nil
}

// call sends a request and decodes a successful result into out.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	resp, err := c.SendRequest(ctx, method, params)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return rpcError(method, resp.Error)
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("%s: unmarshal result: %w", method, err)
	}
	return nil
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}
