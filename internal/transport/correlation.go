package transport

import (
	"sync"

	"github.com/harborhq/harbor-helper/pkg/harbor"
)

// Pending is one in-flight request's delivery channels. Stream frames are
// forwarded as they're produced; exactly one Response arrives last and
// closes out the entry.
type Pending struct {
	Events   chan StreamEvent
	Response chan Response
}

// Correlator tracks in-flight requests by request_id so that responses
// completing out of order — the agent.run for one request_id can still be
// streaming tool calls while a concurrent session.prompt finishes — are
// routed back to the right caller by matching on request_id.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]*Pending
}

// NewCorrelator creates an empty correlation registry.
func NewCorrelator() *Correlator {
	return &Correlator{pending: make(map[string]*Pending)}
}

// Register begins tracking requestID and returns its Pending entry. It is
// an error to register the same requestID twice concurrently.
func (c *Correlator) Register(requestID string) (*Pending, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.pending[requestID]; exists {
		return nil, harbor.NewError(harbor.ErrInvalidMessage, "duplicate request_id "+requestID)
	}

	p := &Pending{
		Events:   make(chan StreamEvent, 16),
		Response: make(chan Response, 1),
	}
	c.pending[requestID] = p
	return p, nil
}

// Forward routes a stream event to its request's Pending entry, if still
// registered. A late event for an already-resolved or unknown request_id
// is silently dropped — the caller has moved on.
func (c *Correlator) Forward(event StreamEvent) {
	c.mu.Lock()
	p, ok := c.pending[event.RequestID]
	c.mu.Unlock()
	if !ok {
		return
	}
	p.Events <- event
}

// Resolve delivers the terminal response for a request and stops tracking
// it. Resolving an unknown request_id is a no-op.
func (c *Correlator) Resolve(resp Response) {
	c.mu.Lock()
	p, ok := c.pending[resp.RequestID]
	if ok {
		delete(c.pending, resp.RequestID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	p.Response <- resp
	close(p.Events)
}

// Cancel stops tracking requestID without delivering a response, used when
// the connection breaks and every in-flight caller must unblock.
func (c *Correlator) Cancel(requestID string) {
	c.mu.Lock()
	p, ok := c.pending[requestID]
	if ok {
		delete(c.pending, requestID)
	}
	c.mu.Unlock()
	if ok {
		close(p.Events)
		close(p.Response)
	}
}

// CancelAll aborts every in-flight request, used on transport shutdown.
func (c *Correlator) CancelAll() {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]*Pending)
	c.mu.Unlock()

	for _, p := range pending {
		close(p.Events)
		close(p.Response)
	}
}

// Len reports the number of in-flight requests, mainly for tests and
// diagnostics.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
