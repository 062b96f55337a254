package agentloop

import (
	"context"
	"encoding/json"
)

// ToolResult is what a tool execution returns to the orchestrator loop,
// which serializes it back into the model's context for the next turn.
type ToolResult struct {
	Content string
	IsError bool
}

// Tool is anything the orchestrator can dispatch a resolved tool call to —
// an MCP tool bridge, a resource-list bridge, or a prompt bridge.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}
