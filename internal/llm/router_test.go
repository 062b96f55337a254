package llm

import (
	"context"
	"testing"
)

type stubProvider struct {
	name string
}

func (s *stubProvider) Name() string                         { return s.name }
func (s *stubProvider) Models() []ModelInfo                   { return nil }
func (s *stubProvider) SupportsNativeTools(model string) bool { return true }
func (s *stubProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	ch := make(chan *CompletionChunk, 1)
	ch <- &CompletionChunk{Text: "from " + s.name, Done: true}
	close(ch)
	return ch, nil
}

func TestRouterResolveExplicit(t *testing.T) {
	r := NewRouter("")
	r.Register(&stubProvider{name: "anthropic"})
	r.Register(&stubProvider{name: "openai"})

	p, err := r.Resolve("openai")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.Name() != "openai" {
		t.Errorf("Resolve(%q) = %q, want openai", "openai", p.Name())
	}
}

func TestRouterResolveFallsBackToDefault(t *testing.T) {
	r := NewRouter("openai")
	r.Register(&stubProvider{name: "anthropic"})
	r.Register(&stubProvider{name: "openai"})

	p, err := r.Resolve("")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.Name() != "openai" {
		t.Errorf("Resolve(\"\") = %q, want configured default openai", p.Name())
	}
}

func TestRouterResolveFallsBackToFirstRegistered(t *testing.T) {
	r := NewRouter("nonexistent")
	r.Register(&stubProvider{name: "anthropic"})
	r.Register(&stubProvider{name: "openai"})

	p, err := r.Resolve("")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.Name() != "anthropic" {
		t.Errorf("Resolve(\"\") = %q, want first-registered anthropic", p.Name())
	}
}

func TestRouterResolveUnknownNameErrors(t *testing.T) {
	r := NewRouter("")
	r.Register(&stubProvider{name: "anthropic"})

	if _, err := r.Resolve("bedrock"); err == nil {
		t.Fatal("expected error resolving unregistered provider")
	}
}

func TestRouterResolveEmptyErrors(t *testing.T) {
	r := NewRouter("")
	if _, err := r.Resolve(""); err == nil {
		t.Fatal("expected error resolving with no providers registered")
	}
}

func TestRouterComplete(t *testing.T) {
	r := NewRouter("")
	r.Register(&stubProvider{name: "anthropic"})

	chunks, err := r.Complete(context.Background(), "anthropic", &CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	chunk := <-chunks
	if chunk.Text != "from anthropic" {
		t.Errorf("Complete() chunk text = %q", chunk.Text)
	}
}

func TestRouterProvidersPreservesOrder(t *testing.T) {
	r := NewRouter("")
	r.Register(&stubProvider{name: "openai"})
	r.Register(&stubProvider{name: "anthropic"})

	got := r.Providers()
	want := []string{"openai", "anthropic"}
	if len(got) != len(want) {
		t.Fatalf("Providers() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Providers()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
