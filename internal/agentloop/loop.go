// Package agentloop implements the reason-act loop that drives an LLM
// through zero or more tool calls to produce a final answer: the
// orchestrator behind agent.run. It decides per-turn whether to read a
// provider's native structured tool_calls or to extract one from free text,
// resolves the requested name against the permitted tool list with
// increasing fuzziness, suppresses immediate duplicate calls, and bounds
// the whole run by an iteration budget.
package agentloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harborhq/harbor-helper/internal/llm"
	"github.com/harborhq/harbor-helper/pkg/harbor"
)

// DefaultMaxToolCalls bounds a run's iterations when neither the request
// nor Config names one.
const DefaultMaxToolCalls = 10

// DefaultMaxTokens is the per-turn completion token budget used when the
// caller doesn't override it.
const DefaultMaxTokens = 4096

// Config is the orchestrator's run-independent defaults.
type Config struct {
	// MaxToolCalls bounds run iterations when a RunRequest doesn't set its
	// own. Default: DefaultMaxToolCalls.
	MaxToolCalls int

	// MaxTokens is the per-turn completion token budget.
	MaxTokens int

	// MaxWallTime bounds a run's total duration (0 = no limit).
	MaxWallTime time.Duration
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		MaxToolCalls: DefaultMaxToolCalls,
		MaxTokens:    DefaultMaxTokens,
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.MaxToolCalls <= 0 {
		cfg.MaxToolCalls = DefaultMaxToolCalls
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return cfg
}

// PermissionChecker enforces mcp:tools.call for one resolved tool name. It
// is the same contract broker.Broker.CheckTool implements; agentloop
// depends only on this narrow interface so it never imports broker.
type PermissionChecker interface {
	CheckTool(origin harbor.Origin, toolName string) error
}

// RunRequest is one agent.run invocation.
type RunRequest struct {
	Task         string
	SystemPrompt string
	Provider     string
	Model        string
	MaxToolCalls int
	Origin       harbor.Origin
	// AllowedTools restricts which registered tools this run may see and
	// call. Nil means every registered tool is visible.
	AllowedTools []string
}

// Orchestrator drives agent.run calls against a registered LLM provider set
// and tool registry.
type Orchestrator struct {
	router   *llm.Router
	registry *ToolRegistry
	perms    PermissionChecker
	config   Config
	logger   *slog.Logger
}

// NewOrchestrator creates an Orchestrator. perms may be nil, in which case
// tool dispatch is never permission-checked (used in tests and for a
// router wired with its own pre-dispatch enforcement).
func NewOrchestrator(router *llm.Router, registry *ToolRegistry, perms PermissionChecker, config Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		router:   router,
		registry: registry,
		perms:    perms,
		config:   sanitizeConfig(config),
		logger:   logger.With("component", "agentloop"),
	}
}

// Run starts one agent.run and streams its events. The channel is closed
// after exactly one of EventFinal or EventError is sent. Canceling ctx
// aborts the run at its next safe boundary (between provider turns, or
// between completion chunks) and emits EventError.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (<-chan Event, error) {
	if o.router == nil {
		return nil, errors.New("agentloop: no provider router configured")
	}
	if o.registry == nil {
		o.registry = NewToolRegistry()
	}

	provider, err := o.router.Resolve(req.Provider)
	if err != nil {
		return nil, err
	}

	maxToolCalls := req.MaxToolCalls
	if maxToolCalls <= 0 {
		maxToolCalls = o.config.MaxToolCalls
	}

	model := req.Model
	if model == "" {
		if models := provider.Models(); len(models) > 0 {
			model = models[0].ID
		}
	}

	native := provider.SupportsNativeTools(model)
	tools := o.registry.Filtered(req.AllowedTools)
	toolNames := make([]string, len(tools))
	for i, t := range tools {
		toolNames[i] = t.Name()
	}

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = BuildSystemPrompt(native, tools)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if o.config.MaxWallTime > 0 {
		runCtx, cancel = context.WithTimeout(ctx, o.config.MaxWallTime)
	}

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		if cancel != nil {
			defer cancel()
		}
		o.run(runCtx, &runState{
			provider:     provider,
			model:        model,
			native:       native,
			tools:        tools,
			toolNames:    toolNames,
			systemPrompt: systemPrompt,
			maxToolCalls: maxToolCalls,
			origin:       req.Origin,
		}, req.Task, events)
	}()
	return events, nil
}

type runState struct {
	provider     llm.Provider
	model        string
	native       bool
	tools        []Tool
	toolNames    []string
	systemPrompt string
	maxToolCalls int
	origin       harbor.Origin
}

func (o *Orchestrator) run(ctx context.Context, st *runState, task string, events chan<- Event) {
	messages := []llm.Message{{Role: llm.RoleUser, Content: task}}
	toolSpecs := ToolSpecs(st.tools)

	var lastCallKey string
	var lastAssistantText string

	for iteration := 0; iteration < st.maxToolCalls; iteration++ {
		if err := ctx.Err(); err != nil {
			events <- Event{Type: EventError, Error: err.Error()}
			return
		}

		req := &llm.CompletionRequest{
			Model:     st.model,
			System:    st.systemPrompt,
			Messages:  messages,
			Tools:     toolSpecs,
			MaxTokens: o.config.MaxTokens,
		}

		chunks, err := st.provider.Complete(ctx, req)
		if err != nil {
			events <- Event{Type: EventError, Error: err.Error()}
			return
		}

		assistantText, nativeCall, err := o.collectTurn(ctx, chunks, events)
		if err != nil {
			events <- Event{Type: EventError, Error: err.Error()}
			return
		}
		lastAssistantText = assistantText

		call := o.extractCall(st, assistantText, nativeCall)
		if call == nil {
			events <- Event{Type: EventFinal, Final: assistantText}
			return
		}

		resolved, ok := ResolveToolName(call.Name, st.toolNames)
		if !ok {
			messages = append(messages,
				llm.Message{Role: llm.RoleAssistant, Content: assistantText, ToolCalls: []llm.ToolCall{*call}},
				toolNotFoundMessage(*call),
			)
			continue
		}

		callKey := resolved + ":" + string(call.Input)
		if callKey == lastCallKey {
			messages = append(messages,
				llm.Message{Role: llm.RoleAssistant, Content: assistantText, ToolCalls: []llm.ToolCall{*call}},
				duplicateCallMessage(*call),
			)
			continue
		}
		lastCallKey = callKey

		events <- Event{Type: EventToolCall, ToolCallID: call.ID, ToolName: resolved, ToolInput: call.Input}

		content, isError := o.dispatch(ctx, st, resolved, *call)
		events <- Event{Type: EventToolResult, ToolCallID: call.ID, ToolResult: content, ToolIsError: isError}

		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: assistantText, ToolCalls: []llm.ToolCall{*call}},
			toolResultMessage(*call, content, isError),
		)
	}

	events <- Event{Type: EventFinal, Final: synthesizeApology(lastAssistantText)}
}

// collectTurn drains one provider completion, forwarding text as thinking
// events and returning the accumulated text plus any native tool call.
func (o *Orchestrator) collectTurn(ctx context.Context, chunks <-chan *llm.CompletionChunk, events chan<- Event) (string, *llm.ToolCall, error) {
	var text strings.Builder
	var toolCall *llm.ToolCall

	for chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return text.String(), toolCall, err
		}
		if chunk.Error != nil {
			return text.String(), toolCall, chunk.Error
		}
		if chunk.Text != "" {
			text.WriteString(chunk.Text)
			events <- Event{Type: EventThinking, Thinking: chunk.Text}
		}
		if chunk.ToolCall != nil {
			toolCall = chunk.ToolCall
		}
	}
	return text.String(), toolCall, nil
}

// extractCall picks the native tool call when the model supports native
// tool calling, otherwise tries to parse one out of the turn's text.
func (o *Orchestrator) extractCall(st *runState, assistantText string, nativeCall *llm.ToolCall) *llm.ToolCall {
	if st.native {
		return nativeCall
	}
	extracted, ok := ExtractTextToolCall(assistantText)
	if !ok {
		return nil
	}
	return &llm.ToolCall{ID: uuid.NewString(), Name: extracted.Name, Input: extracted.Input}
}

// dispatch enforces the permission check (if configured) and executes the
// resolved tool, collapsing any failure into an error-result string rather
// than aborting the run — a failed tool call is something the model should
// see and react to, not a run-ending fault.
func (o *Orchestrator) dispatch(ctx context.Context, st *runState, resolved string, call llm.ToolCall) (content string, isError bool) {
	if o.perms != nil {
		if err := o.perms.CheckTool(st.origin, resolved); err != nil {
			return err.Error(), true
		}
	}

	tool, ok := o.registry.Get(resolved)
	if !ok {
		return fmt.Sprintf("tool %q is no longer registered", resolved), true
	}

	result, err := tool.Execute(ctx, call.Input)
	if err != nil {
		o.logger.Warn("tool execution failed", "tool", resolved, "error", err)
		return err.Error(), true
	}
	if result == nil {
		return "", false
	}
	return result.Content, result.IsError
}

func toolNotFoundMessage(call llm.ToolCall) llm.Message {
	return llm.Message{
		Role: llm.RoleTool,
		ToolResults: []llm.ToolCallResult{{
			ToolCallID: call.ID,
			Content:    fmt.Sprintf("tool-not-found: no tool matches %q. Check the tool list and try again, or answer without it.", call.Name),
			IsError:    true,
		}},
	}
}

func duplicateCallMessage(call llm.ToolCall) llm.Message {
	return llm.Message{
		Role: llm.RoleTool,
		ToolResults: []llm.ToolCallResult{{
			ToolCallID: call.ID,
			Content:    "you already received the result for this exact call. Answer the user from it instead of calling it again.",
			IsError:    false,
		}},
	}
}

func toolResultMessage(call llm.ToolCall, content string, isError bool) llm.Message {
	note := "\n\nRespond to the user now with a final answer. Only call another tool if it is strictly necessary."
	return llm.Message{
		Role: llm.RoleTool,
		ToolResults: []llm.ToolCallResult{{
			ToolCallID: call.ID,
			Content:    content + note,
			IsError:    isError,
		}},
	}
}

// synthesizeApology derives a final message for a run that exhausted its
// tool-call budget without reaching one, from whatever the model last said.
func synthesizeApology(lastAssistantText string) string {
	lastAssistantText = strings.TrimSpace(lastAssistantText)
	if lastAssistantText == "" {
		return "I wasn't able to finish this within the allotted number of tool calls."
	}
	return "I ran out of tool-call budget before finishing. Here's where I got to: " + lastAssistantText
}

// BuildSystemPrompt chooses a minimal instruction for native-tool-calling
// models, or a detailed JSON-format tool specification for text-emulated
// ones, per spec: weak models need the exact call shape spelled out.
func BuildSystemPrompt(native bool, tools []Tool) string {
	if native {
		if len(tools) == 0 {
			return "You are a helpful assistant running inside a browser extension's native helper. Answer directly."
		}
		return "You are a helpful assistant running inside a browser extension's native helper. Use the available tools when they help answer the user's task, then respond with a final answer."
	}

	var b strings.Builder
	b.WriteString("You are a helpful assistant running inside a browser extension's native helper. ")
	b.WriteString("This model has no native tool-calling support, so tools are called by emitting a single ")
	b.WriteString("JSON object of the exact shape {\"name\": \"<tool name>\", \"parameters\": {...}} as the ")
	b.WriteString("entirety of your response when you want to call a tool. Do not wrap it in prose or code fences. ")
	b.WriteString("If you do not need a tool, respond normally in plain text.\n\nAvailable tools:\n")
	for _, t := range tools {
		schema := strings.TrimSpace(string(t.Schema()))
		if schema == "" {
			schema = "{}"
		}
		fmt.Fprintf(&b, "- %s: %s\n  parameters schema: %s\n", t.Name(), t.Description(), schema)
	}
	return b.String()
}
