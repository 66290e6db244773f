package mcp

import (
	"encoding/json"
	"fmt"
)

const (
	// ProtocolVersion is the MCP revision offered in initialize.
	ProtocolVersion = "2024-11-05"
	jsonrpcVersion  = "2.0"
)

// JSONRPCRequest is an outgoing JSON-RPC 2.0 message. ID 0 marks a
// notification: the id is left off the wire and nothing is awaited.
type JSONRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

func newRequest(id int, method string, params any) *JSONRPCRequest {
	return &JSONRPCRequest{JSONRPC: jsonrpcVersion, ID: id, Method: method, Params: params}
}

// IsNotification reports whether no response should be awaited for r.
func (r *JSONRPCRequest) IsNotification() bool { return r.ID == 0 }

// JSONRPCResponse is the reply matched to a request by ID. Exactly one of
// Result and Error is set by a well behaved server.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError is the error member of a response.
type JSONRPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// envelope is the minimal shape needed to route an incoming message before
// decoding it fully. A nil ID means the peer sent a notification.
type envelope struct {
	ID     *int   `json:"id"`
	Method string `json:"method,omitempty"`
}

// responseFor decodes data as the response to request id. ok is false for
// notifications, server-initiated requests, replies to other ids and
// anything that is not JSON.
func responseFor(data []byte, id int) (resp *JSONRPCResponse, ok bool, err error) {
	var env envelope
	if json.Unmarshal(data, &env) != nil || env.Method != "" || env.ID == nil || *env.ID != id {
		return nil, false, nil
	}
	resp = new(JSONRPCResponse)
	if err := json.Unmarshal(data, resp); err != nil {
		return nil, false, fmt.Errorf("unmarshal response: %w", err)
	}
	return resp, true, nil
}

// InitializeParams is sent once per session before any other request.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      ClientInfo     `json:"clientInfo"`
}

type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult describes the server that answered the handshake.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
	Instructions    string         `json:"instructions,omitempty"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// Tool is one entry of tools/list. InputSchema is kept raw and decoded by
// the schema package.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Content is a single content block in a tool result. Only text blocks are
// interpreted; other types keep their raw fields.
type Content struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

// CallToolResult is a tools/call outcome. IsError marks a failure reported
// by the tool itself, as opposed to a JSON-RPC error.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}
