package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTransport answers each method with a fixed result, error object or
// transport failure, and records everything it was sent.
type scriptedTransport struct {
	results  map[string]string
	rpcErrs  map[string]*JSONRPCError
	failures map[string]error

	sent      []*JSONRPCRequest
	notified  []*JSONRPCRequest
	connected bool
	closed    bool
}

func (s *scriptedTransport) Send(_ context.Context, req *JSONRPCRequest) (*JSONRPCResponse, error) {
	s.sent = append(s.sent, req)
	if err := s.failures[req.Method]; err != nil {
		return nil, err
	}
	resp := &JSONRPCResponse{JSONRPC: jsonrpcVersion, ID: req.ID}
	if e := s.rpcErrs[req.Method]; e != nil {
		resp.Error = e
		return resp, nil
	}
	result, ok := s.results[req.Method]
	if !ok {
		return nil, errors.New("unscripted method " + req.Method)
	}
	resp.Result = json.RawMessage(result)
	return resp, nil
}

func (s *scriptedTransport) Notify(_ context.Context, req *JSONRPCRequest) error {
	s.notified = append(s.notified, req)
	return nil
}

func (s *scriptedTransport) Connect(context.Context) error { s.connected = true; return nil }
func (s *scriptedTransport) Close() error                  { s.closed = true; return nil }

func marshalled(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestClientInitialize(t *testing.T) {
	st := &scriptedTransport{results: map[string]string{
		"initialize": `{"protocolVersion":"2024-11-05","capabilities":{"tools":{}},"serverInfo":{"name":"matrix-mcp","version":"1.0.0"},"instructions":"be nice"}`,
	}}
	client := NewClient(st)

	result, err := client.Initialize(context.Background(), "mcprobe", "0.1.0")
	require.NoError(t, err)
	assert.Equal(t, "2024-11-05", result.ProtocolVersion)
	assert.Equal(t, ServerInfo{Name: "matrix-mcp", Version: "1.0.0"}, result.ServerInfo)
	assert.Equal(t, "be nice", result.Instructions)

	require.Len(t, st.sent, 1)
	assert.Equal(t, 1, st.sent[0].ID)
	assert.JSONEq(t,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{"tools":{}},"clientInfo":{"name":"mcprobe","version":"0.1.0"}}}`,
		marshalled(t, st.sent[0]))

	require.Len(t, st.notified, 1)
	assert.True(t, st.notified[0].IsNotification())
	assert.JSONEq(t, `{"jsonrpc":"2.0","method":"notifications/initialized"}`, marshalled(t, st.notified[0]))
}

func TestClientListTools(t *testing.T) {
	st := &scriptedTransport{results: map[string]string{
		"tools/list": `{"tools":[
			{"name":"send_message","description":"Send a message to a room","inputSchema":{"type":"object","properties":{"room_id":{"type":"string"}},"required":["room_id"]}},
			{"name":"list_rooms","inputSchema":{"type":"object"}}
		]}`,
	}}

	tools, err := NewClient(st).ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "send_message", tools[0].Name)
	assert.Equal(t, "Send a message to a room", tools[0].Description)
	assert.JSONEq(t, `{"type":"object","properties":{"room_id":{"type":"string"}},"required":["room_id"]}`, string(tools[0].InputSchema))
	assert.Equal(t, "list_rooms", tools[1].Name)
	assert.Empty(t, tools[1].Description)
	assert.Equal(t, "tools/list", st.sent[0].Method)
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		st      *scriptedTransport
		run     func(*Client) error
		wantErr string
	}{
		{
			name: "initialize rpc error",
			st:   &scriptedTransport{rpcErrs: map[string]*JSONRPCError{"initialize": {Code: -32600, Message: "invalid request"}}},
			run: func(c *Client) error {
				_, err := c.Initialize(context.Background(), "mcprobe", "0.1.0")
				return err
			},
			wantErr: "initialize: server error -32600: invalid request",
		},
		{
			name: "tools/list rpc error",
			st:   &scriptedTransport{rpcErrs: map[string]*JSONRPCError{"tools/list": {Code: -32601, Message: "method not found"}}},
			run: func(c *Client) error {
				_, err := c.ListTools(context.Background())
				return err
			},
			wantErr: "tools/list: server error -32601: method not found",
		},
		{
			name: "initialize transport failure",
			st:   &scriptedTransport{failures: map[string]error{"initialize": errors.New("connection refused")}},
			run: func(c *Client) error {
				_, err := c.Initialize(context.Background(), "mcprobe", "0.1.0")
				return err
			},
			wantErr: "initialize: connection refused",
		},
		{
			name: "malformed result",
			st:   &scriptedTransport{results: map[string]string{"tools/list": `{"tools":"nope"}`}},
			run: func(c *Client) error {
				_, err := c.ListTools(context.Background())
				return err
			},
			wantErr: "tools/list: unmarshal result",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.run(NewClient(tc.st))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestClientRPCErrorIsTyped(t *testing.T) {
	st := &scriptedTransport{rpcErrs: map[string]*JSONRPCError{"tools/list": {Code: -32601, Message: "method not found"}}}
	_, err := NewClient(st).ListTools(context.Background())

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "tools/list", rpcErr.Method)
	assert.Equal(t, -32601, rpcErr.Code)
}

func TestClientIDsIncrease(t *testing.T) {
	st := &scriptedTransport{results: map[string]string{"ping": `{}`, "tools/list": `{"tools":[]}`}}
	client := NewClient(st)
	ctx := context.Background()

	for range 3 {
		_, err := client.SendRequest(ctx, "ping", nil)
		require.NoError(t, err)
	}
	_, err := client.ListTools(ctx)
	require.NoError(t, err)

	var ids []int
	for _, req := range st.sent {
		ids = append(ids, req.ID)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, ids)
}

func TestSendRequestDefaultsParams(t *testing.T) {
	st := &scriptedTransport{results: map[string]string{"ping": `{}`}}

	resp, err := NewClient(st).SendRequest(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.ID)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"method":"ping","params":{}}`, marshalled(t, st.sent[0]))
}

func TestCallTool(t *testing.T) {
	st := &scriptedTransport{results: map[string]string{
		"tools/call": `{"content":[{"type":"text","text":"hello"},{"type":"image","mimeType":"image/png","data":"AAAA"}],"isError":true}`,
	}}

	resp, err := NewClient(st).CallTool(context.Background(), "echo", map[string]any{"text": "hello"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"echo","arguments":{"text":"hello"}}`, marshalled(t, st.sent[0].Params))

	result, err := DecodeCallToolResult(resp)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, []Content{
		{Type: "text", Text: "hello"},
		{Type: "image", MimeType: "image/png", Data: "AAAA"},
	}, result.Content)
}

func TestCallToolNilArguments(t *testing.T) {
	st := &scriptedTransport{results: map[string]string{"tools/call": `{"content":[]}`}}

	_, err := NewClient(st).CallTool(context.Background(), "noop", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"noop","arguments":{}}`, marshalled(t, st.sent[0].Params))
}

func TestDecodeCallToolResultRPCError(t *testing.T) {
	_, err := DecodeCallToolResult(&JSONRPCResponse{
		JSONRPC: jsonrpcVersion,
		ID:      3,
		Error:   &JSONRPCError{Code: -32602, Message: "unknown tool"},
	})

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32602, rpcErr.Code)
	assert.EqualError(t, err, "tools/call: server error -32602: unknown tool")
}

func TestClientConnectAndClose(t *testing.T) {
	st := &scriptedTransport{}
	client := NewClient(st)

	require.NoError(t, client.Connect(context.Background()))
	assert.True(t, st.connected)
	require.NoError(t, client.Close())
	assert.True(t, st.closed)
}
