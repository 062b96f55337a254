package agentloop

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/harborhq/harbor-helper/internal/llm"
	"github.com/harborhq/harbor-helper/pkg/harbor"
)

// fakeProvider streams a scripted sequence of completions, one per Complete
// call, mirroring the teacher's loopTestProvider pattern.
type fakeProvider struct {
	name      string
	native    bool
	responses [][]llm.CompletionChunk
	call      int
}

func (p *fakeProvider) Name() string                          { return p.name }
func (p *fakeProvider) Models() []llm.ModelInfo                { return []llm.ModelInfo{{ID: "fake-model"}} }
func (p *fakeProvider) SupportsNativeTools(model string) bool  { return p.native }

func (p *fakeProvider) Complete(ctx context.Context, req *llm.CompletionRequest) (<-chan *llm.CompletionChunk, error) {
	idx := p.call
	p.call++
	ch := make(chan *llm.CompletionChunk, 8)
	go func() {
		defer close(ch)
		if idx >= len(p.responses) {
			return
		}
		for _, c := range p.responses[idx] {
			chunk := c
			select {
			case ch <- &chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// fakeTool is a scripted Tool used across the orchestrator tests.
type fakeTool struct {
	name   string
	result string
	calls  int
}

func (t *fakeTool) Name() string               { return t.name }
func (t *fakeTool) Description() string        { return "fake tool for tests" }
func (t *fakeTool) Schema() json.RawMessage     { return json.RawMessage(`{"type":"object"}`) }
func (t *fakeTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	t.calls++
	return &ToolResult{Content: t.result}, nil
}

func newRouter(p llm.Provider) *llm.Router {
	r := llm.NewRouter(p.Name())
	r.Register(p)
	return r
}

func drain(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxToolCalls != DefaultMaxToolCalls {
		t.Errorf("MaxToolCalls = %d, want %d", cfg.MaxToolCalls, DefaultMaxToolCalls)
	}
	if cfg.MaxTokens != DefaultMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", cfg.MaxTokens, DefaultMaxTokens)
	}
}

func TestRun_NativeToolCallThenFinal(t *testing.T) {
	provider := &fakeProvider{
		name:   "anthropic",
		native: true,
		responses: [][]llm.CompletionChunk{
			{
				{ToolCall: &llm.ToolCall{ID: "c1", Name: "weather", Input: json.RawMessage(`{"city":"nyc"}`)}, Done: true},
			},
			{
				{Text: "It's sunny in NYC.", Done: true},
			},
		},
	}

	registry := NewToolRegistry()
	tool := &fakeTool{name: "weather", result: "sunny, 72F"}
	registry.Register(tool)

	orch := NewOrchestrator(newRouter(provider), registry, nil, DefaultConfig(), nil)
	events, err := orch.Run(context.Background(), RunRequest{Task: "what's the weather in nyc?"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := drain(t, events)
	if tool.calls != 1 {
		t.Fatalf("tool called %d times, want 1", tool.calls)
	}

	var sawToolCall, sawToolResult, sawFinal bool
	for _, e := range got {
		switch e.Type {
		case EventToolCall:
			sawToolCall = true
			if e.ToolName != "weather" {
				t.Errorf("ToolName = %q, want weather", e.ToolName)
			}
		case EventToolResult:
			sawToolResult = true
			if e.ToolResult != "sunny, 72F" {
				t.Errorf("ToolResult = %q", e.ToolResult)
			}
		case EventFinal:
			sawFinal = true
			if e.Final != "It's sunny in NYC." {
				t.Errorf("Final = %q", e.Final)
			}
		}
	}
	if !sawToolCall || !sawToolResult || !sawFinal {
		t.Fatalf("missing expected events: %+v", got)
	}
}

func TestRun_TextEmulatedToolCall(t *testing.T) {
	provider := &fakeProvider{
		name:   "local",
		native: false,
		responses: [][]llm.CompletionChunk{
			{{Text: `{"name":"lookup","parameters":{"q":"go"}}`, Done: true}},
			{{Text: "Go is a programming language.", Done: true}},
		},
	}

	registry := NewToolRegistry()
	tool := &fakeTool{name: "lookup", result: "a language"}
	registry.Register(tool)

	orch := NewOrchestrator(newRouter(provider), registry, nil, DefaultConfig(), nil)
	events, err := orch.Run(context.Background(), RunRequest{Task: "what is go?"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := drain(t, events)
	if tool.calls != 1 {
		t.Fatalf("tool called %d times, want 1", tool.calls)
	}
	last := got[len(got)-1]
	if last.Type != EventFinal || last.Final != "Go is a programming language." {
		t.Fatalf("last event = %+v, want final answer", last)
	}
}

func TestRun_FuzzyToolNameResolution(t *testing.T) {
	provider := &fakeProvider{
		name:   "local",
		native: false,
		responses: [][]llm.CompletionChunk{
			{{Text: `{"tool":"search","args":{"q":"x"}}`, Done: true}},
			{{Text: "done", Done: true}},
		},
	}

	registry := NewToolRegistry()
	tool := &fakeTool{name: "web/search", result: "results"}
	registry.Register(tool)

	orch := NewOrchestrator(newRouter(provider), registry, nil, DefaultConfig(), nil)
	events, err := orch.Run(context.Background(), RunRequest{Task: "search for x"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := drain(t, events)
	if tool.calls != 1 {
		t.Fatalf("tool called %d times, want 1 (fuzzy resolution should have matched web/search)", tool.calls)
	}
}

func TestRun_DuplicateCallSuppressed(t *testing.T) {
	callJSON := `{"name":"ping","parameters":{}}`
	provider := &fakeProvider{
		name:   "local",
		native: false,
		responses: [][]llm.CompletionChunk{
			{{Text: callJSON, Done: true}},
			{{Text: callJSON, Done: true}}, // same call again
			{{Text: "all set", Done: true}},
		},
	}

	registry := NewToolRegistry()
	tool := &fakeTool{name: "ping", result: "pong"}
	registry.Register(tool)

	orch := NewOrchestrator(newRouter(provider), registry, nil, DefaultConfig(), nil)
	events, err := orch.Run(context.Background(), RunRequest{Task: "ping twice"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := drain(t, events)
	if tool.calls != 1 {
		t.Fatalf("tool dispatched %d times, want 1 (second identical call should be suppressed)", tool.calls)
	}

	toolCalls := 0
	for _, e := range got {
		if e.Type == EventToolCall {
			toolCalls++
		}
	}
	if toolCalls != 1 {
		t.Errorf("emitted %d tool_call events, want 1", toolCalls)
	}
}

func TestRun_BudgetExhaustionEmitsApology(t *testing.T) {
	callJSON := `{"name":"loop","parameters":{}}`
	// Every turn asks for a *different* input so none collide via lastCallKey,
	// exhausting the iteration budget without ever reaching a final answer.
	responses := make([][]llm.CompletionChunk, 3)
	for i := range responses {
		responses[i] = []llm.CompletionChunk{{Text: callJSON, Done: true}}
	}
	provider := &fakeProvider{name: "local", native: false, responses: responses}

	registry := NewToolRegistry()
	tool := &fakeTool{name: "loop", result: "still going"}
	registry.Register(tool)

	orch := NewOrchestrator(newRouter(provider), registry, nil, Config{MaxToolCalls: 1, MaxTokens: 100}, nil)
	events, err := orch.Run(context.Background(), RunRequest{Task: "loop forever", MaxToolCalls: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := drain(t, events)
	last := got[len(got)-1]
	if last.Type != EventFinal {
		t.Fatalf("last event type = %v, want final apology", last.Type)
	}
	if last.Final == "" {
		t.Error("expected a non-empty apology")
	}
}

type denyAllPerms struct{}

func (denyAllPerms) CheckTool(origin harbor.Origin, toolName string) error {
	return harbor.NewError(harbor.ErrPermissionDenied, "denied in test")
}

func TestRun_PermissionDenied(t *testing.T) {
	provider := &fakeProvider{
		name:   "anthropic",
		native: true,
		responses: [][]llm.CompletionChunk{
			{{ToolCall: &llm.ToolCall{ID: "c1", Name: "danger", Input: json.RawMessage(`{}`)}, Done: true}},
			{{Text: "couldn't do that", Done: true}},
		},
	}

	registry := NewToolRegistry()
	tool := &fakeTool{name: "danger", result: "should not run"}
	registry.Register(tool)

	orch := NewOrchestrator(newRouter(provider), registry, denyAllPerms{}, DefaultConfig(), nil)
	events, err := orch.Run(context.Background(), RunRequest{Task: "do the dangerous thing"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := drain(t, events)
	if tool.calls != 0 {
		t.Fatalf("tool executed despite denied permission")
	}

	var sawErrorResult bool
	for _, e := range got {
		if e.Type == EventToolResult && e.ToolIsError {
			sawErrorResult = true
		}
	}
	if !sawErrorResult {
		t.Fatalf("expected an error tool_result event, got %+v", got)
	}
}

func TestRun_ContextCanceledAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &fakeProvider{
		name:   "anthropic",
		native: true,
		responses: [][]llm.CompletionChunk{
			{{Text: "should not get here", Done: true}},
		},
	}

	orch := NewOrchestrator(newRouter(provider), NewToolRegistry(), nil, DefaultConfig(), nil)
	events, err := orch.Run(ctx, RunRequest{Task: "anything"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := drain(t, events)
	if len(got) != 1 || got[0].Type != EventError {
		t.Fatalf("events = %+v, want single EventError", got)
	}
}
