package router

import (
	"context"
	"encoding/json"
	"time"

	"github.com/harborhq/harbor-helper/internal/agentloop"
	"github.com/harborhq/harbor-helper/internal/mcpmgr"
	"github.com/harborhq/harbor-helper/internal/transport"
	"github.com/harborhq/harbor-helper/pkg/harbor"
)

type requestPermissionsPayload struct {
	Origin harbor.Origin  `json:"origin"`
	Scopes []harbor.Scope `json:"scopes"`
}

func handleAgentRequestPermissions(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	var payload requestPermissionsPayload
	if err := decodePayload(req, &payload); err != nil {
		return nil, err
	}
	grants, err := deps.Broker.RequestPermissions(ctx, payload.Origin, payload.Scopes)
	if err != nil {
		return nil, err
	}
	return map[string][]harbor.PermissionGrant{"grants": grants}, nil
}

func handleAgentPermissionsList(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	var payload struct {
		Origin harbor.Origin `json:"origin"`
	}
	if err := decodePayload(req, &payload); err != nil {
		return nil, err
	}
	return map[string][]harbor.PermissionGrant{"grants": deps.Broker.ListGrants(payload.Origin)}, nil
}

func handleAgentToolsList(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	var payload struct {
		Origin harbor.Origin `json:"origin"`
	}
	if err := decodePayload(req, &payload); err != nil {
		return nil, err
	}
	if err := deps.Broker.Check(payload.Origin, harbor.ScopeMCPToolsList); err != nil {
		return nil, err
	}
	return map[string][]harbor.ToolSummary{"tools": mcpmgr.ToolSummaries(deps.MCP)}, nil
}

type agentToolsCallPayload struct {
	Origin    harbor.Origin   `json:"origin"`
	SessionID string          `json:"sessionId"`
	Tool      string          `json:"tool"`
	Input     json.RawMessage `json:"input"`
}

type agentToolsCallResult struct {
	Content string `json:"content"`
	IsError bool   `json:"isError"`
}

func handleAgentToolsCall(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	var payload agentToolsCallPayload
	if err := decodePayload(req, &payload); err != nil {
		return nil, err
	}
	if err := deps.Broker.CheckTool(payload.Origin, payload.Tool); err != nil {
		return nil, err
	}

	if payload.SessionID != "" {
		if _, err := deps.Sessions.CheckActive(payload.SessionID, time.Now()); err != nil {
			return nil, err
		}
		if exceeded, err := deps.Sessions.RecordToolCall(payload.SessionID); err != nil {
			return nil, err
		} else if exceeded {
			return nil, harbor.NewError(harbor.ErrPermissionDenied, "session tool-call quota exceeded")
		}
	}

	tool, ok := deps.ToolRegistry.Get(payload.Tool)
	if !ok {
		return nil, harbor.NewError(harbor.ErrToolNotFound, "no tool named "+payload.Tool)
	}

	result, err := tool.Execute(ctx, payload.Input)
	if err != nil {
		return nil, harbor.Wrap(harbor.ErrToolFailed, "execute "+payload.Tool, err)
	}
	return agentToolsCallResult{Content: result.Content, IsError: result.IsError}, nil
}

type agentRunPayload struct {
	Origin       harbor.Origin `json:"origin"`
	SessionID    string        `json:"sessionId,omitempty"`
	Task         string        `json:"task"`
	Provider     string        `json:"provider,omitempty"`
	Model        string        `json:"model,omitempty"`
	MaxToolCalls int           `json:"maxToolCalls,omitempty"`
	AllowedTools []string      `json:"allowedTools,omitempty"`
}

type agentRunResult struct {
	Final string `json:"final,omitempty"`
	Error string `json:"error,omitempty"`
}

// handleAgentRun streams every agentloop.Event as a StreamEvent and folds
// the terminal final/error event into the Response, so a caller that only
// wants the end state can ignore the stream entirely.
func handleAgentRun(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	var payload agentRunPayload
	if err := decodePayload(req, &payload); err != nil {
		return nil, err
	}
	if err := deps.Broker.Check(payload.Origin, harbor.ScopeModelPrompt); err != nil {
		return nil, err
	}

	events, err := deps.Orchestrator.Run(ctx, agentloop.RunRequest{
		Task:         payload.Task,
		Provider:     payload.Provider,
		Model:        payload.Model,
		MaxToolCalls: payload.MaxToolCalls,
		Origin:       payload.Origin,
		AllowedTools: payload.AllowedTools,
	})
	if err != nil {
		return nil, harbor.Wrap(harbor.ErrLLMFailed, "start agent run", err)
	}

	var result agentRunResult
	for event := range events {
		if emitErr := emit(event); emitErr != nil {
			return nil, emitErr
		}
		switch event.Type {
		case agentloop.EventFinal:
			result.Final = event.Final
		case agentloop.EventError:
			result.Error = event.Error
		}
	}

	if payload.SessionID != "" {
		deps.Sessions.RecordPrompt(payload.SessionID)
	}
	if result.Error != "" {
		return nil, harbor.NewError(harbor.ErrLLMFailed, result.Error)
	}
	return result, nil
}

type createSessionPayload struct {
	Origin       harbor.Origin              `json:"origin"`
	Capabilities harbor.SessionCapabilities `json:"capabilities"`
}

func handleAgentSessionsCreate(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	var payload createSessionPayload
	if err := decodePayload(req, &payload); err != nil {
		return nil, err
	}
	session := deps.Sessions.CreateExplicit(payload.Origin, payload.Capabilities, time.Now())
	return session, nil
}

func handleAgentSessionsGet(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	var payload struct {
		SessionID string `json:"sessionId"`
	}
	if err := decodePayload(req, &payload); err != nil {
		return nil, err
	}
	session, ok := deps.Sessions.Get(payload.SessionID, time.Now())
	if !ok {
		return nil, harbor.NewError(harbor.ErrNotFound, "no session "+payload.SessionID)
	}
	return session, nil
}

func handleAgentSessionsList(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	return map[string][]harbor.Session{"sessions": deps.Sessions.List(time.Now())}, nil
}

func handleAgentSessionsTerminate(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	var payload struct {
		SessionID string `json:"sessionId"`
	}
	if err := decodePayload(req, &payload); err != nil {
		return nil, err
	}
	if err := deps.Sessions.Terminate(payload.SessionID); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}
