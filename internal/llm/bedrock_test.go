package llm

import (
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

func TestConvertMessagesToBedrockSkipsSystemRole(t *testing.T) {
	messages := []Message{
		{Role: RoleSystem, Content: "ignored"},
		{Role: RoleUser, Content: "hello"},
	}
	out, err := convertMessagesToBedrock(messages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d messages, want 1 (system skipped)", len(out))
	}
	if out[0].Role != types.ConversationRoleUser {
		t.Errorf("role = %v, want user", out[0].Role)
	}
}

func TestConvertMessagesToBedrockToolCallsAndResults(t *testing.T) {
	messages := []Message{
		{Role: RoleAssistant, ToolCalls: []ToolCall{
			{ID: "call_1", Name: "search", Input: json.RawMessage(`{"q":"go"}`)},
		}},
		{Role: RoleUser, ToolResults: []ToolCallResult{
			{ToolCallID: "call_1", Content: "results"},
		}},
	}
	out, err := convertMessagesToBedrock(messages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d messages, want 2", len(out))
	}
}

func TestConvertMessagesToBedrockInvalidToolInput(t *testing.T) {
	messages := []Message{
		{Role: RoleAssistant, ToolCalls: []ToolCall{
			{ID: "call_1", Name: "search", Input: json.RawMessage(`{not json`)},
		}},
	}
	if _, err := convertMessagesToBedrock(messages); err == nil {
		t.Fatal("expected error for malformed tool input JSON")
	}
}

func TestConvertToolsToBedrock(t *testing.T) {
	tools := []ToolSpec{
		{Name: "search", Description: "search the web", Schema: json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}}}`)},
	}
	cfg, err := convertToolsToBedrock(tools)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Tools) != 1 {
		t.Fatalf("got %d tools, want 1", len(cfg.Tools))
	}
}

func TestConvertToolsToBedrockInvalidSchema(t *testing.T) {
	tools := []ToolSpec{{Name: "bad", Schema: json.RawMessage(`{not json`)}}
	if _, err := convertToolsToBedrock(tools); err == nil {
		t.Fatal("expected error for malformed schema JSON")
	}
}
