package agentloop

import "encoding/json"

// EventType is the closed set of event kinds a Run emits.
type EventType string

const (
	EventThinking   EventType = "thinking"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventFinal      EventType = "final"
	EventError      EventType = "error"
)

// Event is one item in a run's event sequence. Exactly one of EventFinal or
// EventError terminates the sequence; the channel is closed immediately
// after.
type Event struct {
	Type EventType `json:"type"`

	// Thinking holds incremental assistant text for EventThinking.
	Thinking string `json:"thinking,omitempty"`

	// ToolCallID, ToolName, ToolInput describe the dispatched call for
	// EventToolCall.
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	ToolInput  json.RawMessage `json:"toolInput,omitempty"`

	// ToolResult/ToolIsError carry the dispatch outcome for EventToolResult.
	ToolResult  string `json:"toolResult,omitempty"`
	ToolIsError bool   `json:"toolIsError,omitempty"`

	// Final carries the completed answer for EventFinal.
	Final string `json:"final,omitempty"`

	// Error carries the failure message for EventError.
	Error string `json:"error,omitempty"`
}
