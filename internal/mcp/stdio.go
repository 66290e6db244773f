package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const maxStdioLine = 16 << 20

// StdioTransport speaks line-delimited JSON-RPC over the stdin and stdout
// of a child process. Its stderr is passed through to ours.
type StdioTransport struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	started atomic.Bool

	lines   chan []byte
	readErr error
	stop    chan struct{}
	once    sync.Once

	// mu serialises requests; only one may be reading stdout at a time.
	mu sync.Mutex
}

// NewStdioTransport prepares command without starting it. env entries are
// KEY=VALUE pairs layered over the current environment.
func NewStdioTransport(command string, args []string, env []string) *StdioTransport {
	cmd := exec.Command(command, args...)
	cmd.Env = mergeEnv(os.Environ(), env)
	cmd.Stderr = os.Stderr
	return &StdioTransport{cmd: cmd, stop: make(chan struct{})}
}

// Connect spawns the child process. Calling it again is a no-op.
func (t *StdioTransport) Connect(_ context.Context) error {
	if t.cmd.Process != nil {
		return nil
	}
	stdin, err := t.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := t.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := t.cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", t.cmd.Path, err)
	}
	t.stdin = stdin
	t.lines = make(chan []byte)
	go t.readLoop(stdout)
	t.started.Store(true)
	return nil
}

// Connected reports whether the child process has been started.
func (t *StdioTransport) Connected() bool {
	return t.started.Load()
}

func (t *StdioTransport) readLoop(stdout io.Reader) {
	defer close(t.lines)
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 64<<10), maxStdioLine)
	for sc.Scan() {
		line := append([]byte(nil), sc.Bytes()...)
		select {
		case t.lines <- line:
		case <-t.stop:
			return
		}
	}
	t.readErr = sc.Err()
}

// Send writes req and waits for the line carrying its response. Anything
// else the server prints in between, log output and notifications included,
// is skipped.
func (t *StdioTransport) Send(ctx context.Context, req *JSONRPCRequest) (*JSONRPCResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin == nil {
		return nil, ErrNotConnected
	}
	if err := t.write(req); err != nil {
		return nil, err
	}

	log := zerolog.Ctx(ctx)
	for {
		var line []byte
		select {
		case l, ok := <-t.lines:
			if !ok {
				if t.readErr != nil {
					return nil, fmt.Errorf("read from stdout: %w", t.readErr)
				}
				return nil, fmt.Errorf("%w: process stdout closed", ErrStreamClosed)
			}
			line = l
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		if !json.Valid(line) {
			log.Debug().Str("line", strings.TrimSpace(string(line))).Msg("skipping non-JSON output")
			continue
		}
		if resp, ok, err := responseFor(line, req.ID); err != nil || ok {
			return resp, err
		}
	}
}

// Notify writes req without waiting for anything back.
func (t *StdioTransport) Notify(_ context.Context, req *JSONRPCRequest) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin == nil {
		return ErrNotConnected
	}
	return t.write(req)
}

func (t *StdioTransport) write(req *JSONRPCRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	if _, err := t.stdin.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write to stdin: %w", err)
	}
	return nil
}

// Close kills the child process and reaps it.
func (t *StdioTransport) Close() error {
	t.once.Do(func() { close(t.stop) })
	if t.stdin != nil {
		_ = t.stdin.Close()
	}
	if t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
		_ = t.cmd.Wait()
	}
	return nil
}

// mergeEnv layers overrides on base. Keys keep their first position; the
// last value wins. Entries without '=' are dropped.
func mergeEnv(base, overrides []string) []string {
	var keys []string
	values := make(map[string]string)
	for _, entry := range append(slices.Clone(base), overrides...) {
		key, _, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if _, seen := values[key]; !seen {
			keys = append(keys, key)
		}
		values[key] = entry
	}
	merged := make([]string, len(keys))
	for i, key := range keys {
		merged[i] = values[key]
	}
	return merged
}
