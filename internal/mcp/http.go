package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// HTTPTransport implements the Transport interface using Streamable HTTP.
// It sends JSON-RPC requests as HTTP POST requests and handles both
// application/json and text/event-stream responses.
type HTTPTransport struct {
	URL        string
	headers    HeaderSource
	httpClient *http.Client

	mu        sync.Mutex
	sessionID string
}

// NewHTTPTransport creates a new HTTPTransport targeting the given URL.
// headers may be nil.
func NewHTTPTransport(url string, headers HeaderSource) *HTTPTransport {
	return &HTTPTransport{
		URL:        url,
		headers:    headers,
		httpClient: &http.Client{},
	}
}

// SessionID returns the Mcp-Session-Id assigned by the server, if any.
func (t *HTTPTransport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// Send sends a JSON-RPC request over HTTP and returns the response.
func (t *HTTPTransport) Send(ctx context.Context, req *JSONRPCRequest) (*JSONRPCResponse, error) {
	resp, err := t.post(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "text/event-stream") {
		return t.parseSSE(ctx, resp.Body, req.ID)
	}

	// Default: parse as application/json.
	var rpcResp JSONRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &rpcResp, nil
}

// Notify posts a notification. Servers answer 202 Accepted with no body.
func (t *HTTPTransport) Notify(ctx context.Context, req *JSONRPCRequest) error {
	resp, err := t.post(ctx, req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (t *HTTPTransport) post(ctx context.Context, req *JSONRPCRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	if err := applyHeaders(ctx, t.headers, httpReq.Header.Set); err != nil {
		return nil, fmt.Errorf("auth headers: %w", err)
	}
	if sid := t.SessionID(); sid != "" {
		httpReq.Header.Set("Mcp-Session-Id", sid)
	}

	zerolog.Ctx(ctx).Debug().Str("method", req.Method).Int("id", req.ID).Str("url", t.URL).Msg("posting request")
	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}

	// Capture session ID from the response if present.
	if sid := resp.Header.Get("Mcp-Session-Id"); sid != "" {
		t.mu.Lock()
		t.sessionID = sid
		t.mu.Unlock()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, &HTTPStatusError{Op: req.Method, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return resp, nil
}

// parseSSE reads an SSE stream and extracts the JSON-RPC response matching the
// given request ID.
func (t *HTTPTransport) parseSSE(ctx context.Context, r io.Reader, requestID int) (*JSONRPCResponse, error) {
	events := newEventReader(r)
	for {
		ev, err := events.Next()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: no response for id %d", ErrStreamClosed, requestID)
		}
		if err != nil {
			return nil, fmt.Errorf("read sse stream: %w", err)
		}
		if ev.Name != "message" {
			continue
		}

		if resp, ok, err := responseFor([]byte(ev.Data), requestID); err != nil || ok {
			return resp, err
		}
		zerolog.Ctx(ctx).Debug().Str("data", ev.Data).Msg("skipping event")
	}
}

// Close ends the server session with a DELETE when one was assigned.
// Servers that do not support explicit termination answer 405, which is
// ignored like any other failure here.
func (t *HTTPTransport) Close() error {
	sid := t.SessionID()
	if sid == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, t.URL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Mcp-Session-Id", sid)
	_ = applyHeaders(ctx, t.headers, req.Header.Set)
	if resp, err := t.httpClient.Do(req); err == nil {
		resp.Body.Close()
	}
	t.mu.Lock()
	t.sessionID = ""
	t.mu.Unlock()
	return nil
}
