package transport

import "testing"

func TestCorrelator_ForwardAndResolve(t *testing.T) {
	c := NewCorrelator()
	p, err := c.Register("req-1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	c.Forward(StreamEvent{Type: TypeAgentRun, RequestID: "req-1", Event: []byte(`{"kind":"thinking"}`)})
	c.Resolve(Response{Type: TypeAgentRun, RequestID: "req-1", OK: true})

	select {
	case evt := <-p.Events:
		if evt.RequestID != "req-1" {
			t.Fatalf("unexpected event: %+v", evt)
		}
	default:
		t.Fatal("expected a buffered stream event")
	}

	resp := <-p.Response
	if !resp.OK {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if c.Len() != 0 {
		t.Fatalf("expected registry to be empty after resolve, got %d", c.Len())
	}
}

func TestCorrelator_DuplicateRegisterFails(t *testing.T) {
	c := NewCorrelator()
	if _, err := c.Register("req-1"); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if _, err := c.Register("req-1"); err == nil {
		t.Fatal("expected error registering a duplicate request_id")
	}
}

func TestCorrelator_ForwardToUnknownRequestIsNoop(t *testing.T) {
	c := NewCorrelator()
	c.Forward(StreamEvent{RequestID: "missing"})
}

func TestCorrelator_ResolveUnknownRequestIsNoop(t *testing.T) {
	c := NewCorrelator()
	c.Resolve(Response{RequestID: "missing"})
}

func TestCorrelator_CancelAllUnblocksWaiters(t *testing.T) {
	c := NewCorrelator()
	p, err := c.Register("req-1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	c.CancelAll()

	if _, open := <-p.Response; open {
		t.Fatal("expected response channel to be closed")
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty registry after CancelAll, got %d", c.Len())
	}
}
