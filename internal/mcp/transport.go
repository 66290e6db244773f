package mcp

import "context"

// Transport defines the interface for sending JSON-RPC requests to an MCP server.
type Transport interface {
	// Send sends a JSON-RPC request and returns the response with the same id.
	Send(ctx context.Context, req *JSONRPCRequest) (*JSONRPCResponse, error)
	// Notify sends a JSON-RPC notification. No response is awaited.
	Notify(ctx context.Context, req *JSONRPCRequest) error
	// Close releases any resources held by the transport.
	Close() error
}

// Connector is implemented by transports that need a handshake before the
// first request, such as the SSE transport.
type Connector interface {
	Connect(ctx context.Context) error
}

// HeaderSource supplies extra HTTP headers (usually authentication) for every
// request a transport makes.
type HeaderSource interface {
	GetHeaders(ctx context.Context) (map[string]string, error)
}

// applyHeaders copies the headers from src onto set. A nil src is a no-op.
func applyHeaders(ctx context.Context, src HeaderSource, set func(key, value string)) error {
	if src == nil {
		return nil
	}
	headers, err := src.GetHeaders(ctx)
	if err != nil {
		return err
	}
	for k, v := range headers {
		set(k, v)
	}
	return nil
}
