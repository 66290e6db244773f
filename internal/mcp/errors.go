package mcp

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when a request is sent before the session
	// has been established.
	ErrNotConnected = errors.New("not connected to MCP server")
	// ErrNoSessionID is returned when the endpoint event carries no session id.
	ErrNoSessionID = errors.New("endpoint event has no sessionId")
	// ErrStreamClosed is returned when the event stream ends before the
	// expected event arrives.
	ErrStreamClosed = errors.New("event stream closed")
	// ErrResponseTimeout is returned when no response with a matching id
	// arrives within the request timeout.
	ErrResponseTimeout = errors.New("response timeout")
	// ErrConnectTimeout is returned when the endpoint event does not arrive
	// within the connect timeout.
	ErrConnectTimeout = errors.New("timed out waiting for endpoint event")
)

// HTTPStatusError reports a non-2xx HTTP status from the server. Op names the
// exchange that failed ("connect" for the event stream, the JSON-RPC method
// for a POST).
type HTTPStatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s: http status %d: %s", e.Op, e.StatusCode, e.Body)
}

// RPCError wraps a JSON-RPC error object returned for a request.
type RPCError struct {
	Method  string
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s: server error %d: %s", e.Method, e.Code, e.Message)
}

func rpcError(method string, e *JSONRPCError) error {
	return &RPCError{Method: method, Code: e.Code, Message: e.Message}
}
