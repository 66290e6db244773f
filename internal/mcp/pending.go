package mcp

import "sync"

// pendingCalls routes responses read from the event stream to the callers
// waiting on them, keyed by request id.
type pendingCalls struct {
	mu    sync.Mutex
	calls map[int]chan *JSONRPCResponse
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{calls: make(map[int]chan *JSONRPCResponse)}
}

// register reserves a slot for id. It must be called before the request is
// posted so that a fast response cannot be missed.
func (p *pendingCalls) register(id int) <-chan *JSONRPCResponse {
	ch := make(chan *JSONRPCResponse, 1)
	p.mu.Lock()
	p.calls[id] = ch
	p.mu.Unlock()
	return ch
}

// cancel drops the slot for id. Later responses for it are treated as unmatched.
func (p *pendingCalls) cancel(id int) {
	p.mu.Lock()
	delete(p.calls, id)
	p.mu.Unlock()
}

// deliver hands resp to its waiter. It reports false when nobody is waiting
// for that id.
func (p *pendingCalls) deliver(resp *JSONRPCResponse) bool {
	p.mu.Lock()
	ch, ok := p.calls[resp.ID]
	if ok {
		delete(p.calls, resp.ID)
	}
	p.mu.Unlock()
	if ok {
		ch <- resp
	}
	return ok
}

func (p *pendingCalls) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
