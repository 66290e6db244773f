package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultTimeout bounds both the wait for the endpoint event and the
	// wait for each response.
	DefaultTimeout = 30 * time.Second

	defaultSSEPath      = "/sse"
	defaultMessagesPath = "/messages"

	maxErrorBody = 64 * 1024
	closeTimeout = 5 * time.Second
)

// SSETransport implements the Transport interface over the HTTP+SSE MCP
// transport. A long-lived GET on the SSE path carries every server message;
// requests are POSTed to the messages path with the session id the server
// announced in its first "endpoint" event.
//
// A single background goroutine owns the event stream. Responses are routed
// to waiting callers by JSON-RPC id, so arrival order does not matter and
// several requests may be in flight at once.
type SSETransport struct {
	BaseURL string
	// SSEPath and MessagesPath default to "/sse" and "/messages".
	SSEPath      string
	MessagesPath string
	// Timeout bounds the wait for the endpoint event and for each response.
	// Zero means DefaultTimeout.
	Timeout time.Duration

	headers    HeaderSource
	httpClient *http.Client
	pending    *pendingCalls

	mu        sync.Mutex
	sessionID string
	endpoint  *url.URL
	cancel    context.CancelFunc
	done      chan struct{}
	readErr   error
	connected atomic.Bool
	log       *zerolog.Logger
}

// NewSSETransport creates a new SSETransport for the server at baseURL.
// headers may be nil.
func NewSSETransport(baseURL string, headers HeaderSource) *SSETransport {
	return &SSETransport{
		BaseURL:    baseURL,
		headers:    headers,
		httpClient: &http.Client{},
		pending:    newPendingCalls(),
	}
}

func (t *SSETransport) timeout() time.Duration {
	if t.Timeout > 0 {
		return t.Timeout
	}
	return DefaultTimeout
}

func (t *SSETransport) ssePath() string {
	if t.SSEPath != "" {
		return t.SSEPath
	}
	return defaultSSEPath
}

func (t *SSETransport) messagesPath() string {
	if t.MessagesPath != "" {
		return t.MessagesPath
	}
	return defaultMessagesPath
}

// SessionID returns the session id assigned by the server, or "" before Connect.
func (t *SSETransport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// MessageEndpoint returns the URL requests are posted to, or "" before Connect.
func (t *SSETransport) MessageEndpoint() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.endpoint == nil {
		return ""
	}
	return t.endpoint.String()
}

// Connected reports whether Connect has completed and Close has not run.
func (t *SSETransport) Connected() bool {
	return t.connected.Load()
}

// Connect opens the event stream and blocks until the server announces the
// session in an "endpoint" event. It fails if the stream closes first, if the
// event has no session id, or if the timeout expires.
func (t *SSETransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connected.Load() {
		return nil
	}

	base, err := url.Parse(t.BaseURL)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	t.log = zerolog.Ctx(ctx)

	ctx, cancelWait := context.WithTimeout(ctx, t.timeout())
	defer cancelWait()

	// The stream must outlive the connect deadline, so it gets its own
	// context that only Close cancels.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, cancel)

	sseURL := base.JoinPath(t.ssePath()).String()
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, sseURL, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("create sse request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if err := applyHeaders(ctx, t.headers, req.Header.Set); err != nil {
		cancel()
		return fmt.Errorf("auth headers: %w", err)
	}

	t.log.Debug().Str("url", sseURL).Msg("opening event stream")
	resp, err := t.httpClient.Do(req)
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return connectCtxErr(ctx)
		}
		return fmt.Errorf("open event stream: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		cancel()
		return &HTTPStatusError{Op: "connect", StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	endpointCh := make(chan Event, 1)
	done := make(chan struct{})
	go t.readLoop(streamCtx, resp.Body, endpointCh, done)

	var ev Event
	select {
	case ev = <-endpointCh:
	case <-done:
		// An endpoint event read just before the stream ended still counts;
		// the next request then reports the closed stream.
		select {
		case ev = <-endpointCh:
		default:
			cancel()
			if ctx.Err() != nil {
				return connectCtxErr(ctx)
			}
			return t.streamErr(done)
		}
	case <-ctx.Done():
		cancel()
		<-done
		return connectCtxErr(ctx)
	}
	if !stop() {
		// The deadline fired while the endpoint event was being handed over.
		<-done
		return connectCtxErr(ctx)
	}

	sessionID, endpoint, err := parseEndpoint(base, t.messagesPath(), ev.Data)
	if err != nil {
		cancel()
		<-done
		return err
	}

	t.sessionID = sessionID
	t.endpoint = endpoint
	t.cancel = cancel
	t.done = done
	t.connected.Store(true)
	t.log.Debug().Str("session_id", sessionID).Str("endpoint", endpoint.String()).Msg("session established")
	return nil
}

func connectCtxErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrConnectTimeout
	}
	return ctx.Err()
}

// readLoop consumes the event stream until it ends or ctx is cancelled. The
// first endpoint event is handed to endpointCh; message events are routed
// to pending callers.
func (t *SSETransport) readLoop(ctx context.Context, body io.ReadCloser, endpointCh chan<- Event, done chan<- struct{}) {
	defer close(done)
	defer body.Close()

	r := newEventReader(body)
	sawEndpoint := false
	for {
		ev, err := r.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				t.readErr = err
			}
			t.log.Debug().Err(err).Msg("event stream ended")
			return
		}

		switch ev.Name {
		case "endpoint":
			if sawEndpoint {
				t.log.Debug().Str("data", ev.Data).Msg("ignoring repeated endpoint event")
				continue
			}
			sawEndpoint = true
			endpointCh <- ev
		case "message":
			t.route(ev.Data)
		default:
			t.log.Debug().Str("event", ev.Name).Msg("ignoring event")
		}
	}
}

// route decodes a message event and delivers it to the caller waiting for
// its id. Notifications and responses nobody waits for are dropped.
func (t *SSETransport) route(data string) {
	var env envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		t.log.Debug().Err(err).Msg("skipping undecodable message")
		return
	}
	if env.ID == nil {
		t.log.Debug().Str("method", env.Method).Msg("server notification")
		return
	}
	if env.Method != "" {
		t.log.Debug().Str("method", env.Method).Int("id", *env.ID).Msg("ignoring server request")
		return
	}

	var resp JSONRPCResponse
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		t.log.Debug().Err(err).Msg("skipping undecodable response")
		return
	}
	if !t.pending.deliver(&resp) {
		t.log.Debug().Int("id", resp.ID).Msg("dropping unmatched response")
	}
}

// streamErr describes why the stream ended. It must only be called after
// done is closed.
func (t *SSETransport) streamErr(done <-chan struct{}) error {
	<-done
	if t.readErr != nil {
		return fmt.Errorf("%w: %w", ErrStreamClosed, t.readErr)
	}
	return ErrStreamClosed
}

// Send posts req to the message endpoint and waits for the response with the
// same id to arrive on the event stream.
func (t *SSETransport) Send(ctx context.Context, req *JSONRPCRequest) (*JSONRPCResponse, error) {
	if !t.connected.Load() {
		return nil, ErrNotConnected
	}

	respCh := t.pending.register(req.ID)
	if err := t.post(ctx, req); err != nil {
		t.pending.cancel(req.ID)
		return nil, err
	}

	timer := time.NewTimer(t.timeout())
	defer timer.Stop()

	select {
	case resp := <-respCh:
		return resp, nil
	case <-t.done:
		// The response may have been routed just before the stream ended.
		select {
		case resp := <-respCh:
			return resp, nil
		default:
		}
		t.pending.cancel(req.ID)
		return nil, t.streamErr(t.done)
	case <-timer.C:
		t.pending.cancel(req.ID)
		return nil, fmt.Errorf("%w: no response for id %d after %s", ErrResponseTimeout, req.ID, t.timeout())
	case <-ctx.Done():
		t.pending.cancel(req.ID)
		return nil, ctx.Err()
	}
}

// Notify posts a notification without waiting for anything on the stream.
func (t *SSETransport) Notify(ctx context.Context, req *JSONRPCRequest) error {
	if !t.connected.Load() {
		return ErrNotConnected
	}
	return t.post(ctx, req)
}

func (t *SSETransport) post(ctx context.Context, req *JSONRPCRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	t.mu.Lock()
	endpoint := t.endpoint.String()
	t.mu.Unlock()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if err := applyHeaders(ctx, t.headers, httpReq.Header.Set); err != nil {
		return fmt.Errorf("auth headers: %w", err)
	}

	ev := t.log.Debug().Str("method", req.Method)
	if !req.IsNotification() {
		ev = ev.Int("id", req.ID)
	}
	ev.Msg("posting message")
	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPStatusError{Op: req.Method, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return nil
}

// Close stops the background reader and closes the event stream. Callers
// still waiting for a response get ErrStreamClosed.
func (t *SSETransport) Close() error {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel = nil
	t.connected.Store(false)
	t.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// parseEndpoint extracts the session id from an endpoint event and resolves
// the URL that requests must be posted to. The payload is either a JSON
// object with a sessionId field, which addresses {base}{messagesPath}, or a
// URI carrying a sessionId query parameter, which is used as-is.
func parseEndpoint(base *url.URL, messagesPath, data string) (string, *url.URL, error) {
	data = strings.TrimSpace(data)

	if strings.HasPrefix(data, "{") {
		var payload struct {
			SessionID string `json:"sessionId"`
			Endpoint  string `json:"endpoint"`
		}
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return "", nil, fmt.Errorf("decode endpoint event: %w", err)
		}
		if payload.SessionID == "" {
			return "", nil, ErrNoSessionID
		}
		endpoint := base.JoinPath(messagesPath)
		endpoint.RawQuery = url.Values{"sessionId": {payload.SessionID}}.Encode()
		return payload.SessionID, endpoint, nil
	}

	ref, err := url.Parse(data)
	if err != nil {
		return "", nil, fmt.Errorf("parse endpoint event: %w", err)
	}
	endpoint := base.ResolveReference(ref)
	sessionID := endpoint.Query().Get("sessionId")
	if sessionID == "" {
		return "", nil, ErrNoSessionID
	}
	return sessionID, endpoint, nil
}
