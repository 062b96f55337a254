package llm

import (
	"encoding/json"
	"testing"
)

func TestNewAnthropicProviderRequiresAPIKey(t *testing.T) {
	if _, err := NewAnthropicProvider(AnthropicConfig{}); err == nil {
		t.Fatal("expected error when APIKey is empty")
	}
}

func TestNewAnthropicProviderDefaults(t *testing.T) {
	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.defaultModel != "claude-sonnet-4-20250514" {
		t.Errorf("defaultModel = %q, want claude-sonnet-4-20250514", p.defaultModel)
	}
}

func TestConvertMessagesToAnthropic(t *testing.T) {
	messages := []Message{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "hi", ToolCalls: []ToolCall{
			{ID: "call_1", Name: "search", Input: json.RawMessage(`{"q":"go"}`)},
		}},
		{Role: RoleTool, ToolResults: []ToolCallResult{
			{ToolCallID: "call_1", Content: "results", IsError: false},
		}},
	}

	out, err := convertMessagesToAnthropic(messages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d messages, want 3", len(out))
	}
}

func TestConvertMessagesToAnthropicInvalidToolInput(t *testing.T) {
	messages := []Message{
		{Role: RoleAssistant, ToolCalls: []ToolCall{
			{ID: "call_1", Name: "search", Input: json.RawMessage(`{not json`)},
		}},
	}
	if _, err := convertMessagesToAnthropic(messages); err == nil {
		t.Fatal("expected error for malformed tool input JSON")
	}
}

func TestConvertToolsToAnthropic(t *testing.T) {
	tools := []ToolSpec{
		{Name: "search", Description: "search the web", Schema: json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}}}`)},
	}
	out, err := convertToolsToAnthropic(tools)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d tools, want 1", len(out))
	}
	if out[0].OfTool == nil {
		t.Fatal("expected OfTool to be set")
	}
	if out[0].OfTool.Name != "search" {
		t.Errorf("tool name = %q, want search", out[0].OfTool.Name)
	}
}

func TestConvertToolsToAnthropicInvalidSchema(t *testing.T) {
	tools := []ToolSpec{{Name: "bad", Schema: json.RawMessage(`{not json`)}}
	if _, err := convertToolsToAnthropic(tools); err == nil {
		t.Fatal("expected error for malformed schema JSON")
	}
}

func TestMaxTokensOrDefault(t *testing.T) {
	if got := maxTokensOrDefault(0); got != 4096 {
		t.Errorf("maxTokensOrDefault(0) = %d, want 4096", got)
	}
	if got := maxTokensOrDefault(-5); got != 4096 {
		t.Errorf("maxTokensOrDefault(-5) = %d, want 4096", got)
	}
	if got := maxTokensOrDefault(1000); got != 1000 {
		t.Errorf("maxTokensOrDefault(1000) = %d, want 1000", got)
	}
}
