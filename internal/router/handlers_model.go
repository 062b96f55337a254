package router

import (
	"context"
	"strings"
	"time"

	"github.com/harborhq/harbor-helper/internal/llm"
	"github.com/harborhq/harbor-helper/internal/transport"
	"github.com/harborhq/harbor-helper/pkg/harbor"
)

// createTextSessionPayload is shared by ai.createTextSession and
// ai.languageModel.create: both just stand up an implicit, LLM-capable
// session scoped to the calling origin.
type createTextSessionPayload struct {
	Origin       harbor.Origin `json:"origin"`
	SystemPrompt string        `json:"systemPrompt,omitempty"`
	Temperature  float64       `json:"temperature,omitempty"`
}

type createTextSessionResult struct {
	SessionID string `json:"sessionId"`
}

func handleCanCreateTextSession(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	available := "no"
	if deps.LLMRouter != nil {
		if _, err := deps.LLMRouter.Resolve(""); err == nil {
			available = "readily"
		}
	}
	return map[string]string{"available": available}, nil
}

func handleCreateTextSession(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	var payload createTextSessionPayload
	if err := decodePayload(req, &payload); err != nil {
		return nil, err
	}
	if err := deps.Broker.Check(payload.Origin, harbor.ScopeModelPrompt); err != nil {
		return nil, err
	}

	caps := harbor.SessionCapabilities{
		LLM:          true,
		SystemPrompt: payload.SystemPrompt,
		Temperature:  payload.Temperature,
	}
	session := deps.Sessions.CreateImplicit(payload.Origin, caps, time.Now())
	return createTextSessionResult{SessionID: session.ID}, nil
}

func handleLanguageModelCreate(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	return handleCreateTextSession(ctx, deps, req, emit)
}

type languageModelCapabilitiesResult struct {
	Available string          `json:"available"`
	Models    []llm.ModelInfo `json:"models"`
}

func handleLanguageModelCapabilities(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	var payload struct {
		Provider string `json:"provider,omitempty"`
	}
	if err := decodePayload(req, &payload); err != nil {
		return nil, err
	}

	if deps.LLMRouter == nil {
		return languageModelCapabilitiesResult{Available: "no"}, nil
	}
	provider, err := deps.LLMRouter.Resolve(payload.Provider)
	if err != nil {
		return languageModelCapabilitiesResult{Available: "no"}, nil
	}
	return languageModelCapabilitiesResult{Available: "readily", Models: provider.Models()}, nil
}

func handleProvidersList(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	if deps.LLMRouter == nil {
		return map[string][]string{"providers": nil}, nil
	}
	return map[string][]string{"providers": deps.LLMRouter.Providers()}, nil
}

func handleProvidersGetActive(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	if deps.LLMRouter == nil {
		return map[string]string{"provider": ""}, nil
	}
	provider, err := deps.LLMRouter.Resolve("")
	if err != nil {
		return map[string]string{"provider": ""}, nil
	}
	return map[string]string{"provider": provider.Name()}, nil
}

// sessionPromptPayload is session.prompt / session.promptStreaming's
// shared request shape: a single free-text turn against an already
// created session, with no tool access (that's agent.run's job).
type sessionPromptPayload struct {
	SessionID string `json:"sessionId"`
	Prompt    string `json:"prompt"`
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
}

type sessionPromptResult struct {
	Text string `json:"text"`
}

func handleSessionPrompt(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	var payload sessionPromptPayload
	if err := decodePayload(req, &payload); err != nil {
		return nil, err
	}

	session, err := deps.Sessions.CheckActive(payload.SessionID, time.Now())
	if err != nil {
		return nil, err
	}
	if err := deps.Broker.Check(session.Origin, harbor.ScopeModelPrompt); err != nil {
		return nil, err
	}

	text, err := completeOnce(ctx, deps, payload, session)
	if err != nil {
		return nil, err
	}
	deps.Sessions.RecordPrompt(payload.SessionID)
	return sessionPromptResult{Text: text}, nil
}

func handleSessionPromptStreaming(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
	var payload sessionPromptPayload
	if err := decodePayload(req, &payload); err != nil {
		return nil, err
	}

	session, err := deps.Sessions.CheckActive(payload.SessionID, time.Now())
	if err != nil {
		return nil, err
	}
	if err := deps.Broker.Check(session.Origin, harbor.ScopeModelPrompt); err != nil {
		return nil, err
	}

	completionReq := &llm.CompletionRequest{
		Model:       payload.Model,
		System:      session.Capabilities.SystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: payload.Prompt}},
		Temperature: session.Capabilities.Temperature,
	}
	chunks, err := deps.LLMRouter.Complete(ctx, payload.Provider, completionReq)
	if err != nil {
		return nil, harbor.Wrap(harbor.ErrLLMFailed, "complete", err)
	}

	var text strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			return nil, harbor.Wrap(harbor.ErrLLMFailed, "stream", chunk.Error)
		}
		if chunk.Text != "" {
			text.WriteString(chunk.Text)
			if emitErr := emit(map[string]string{"text": chunk.Text}); emitErr != nil {
				return nil, emitErr
			}
		}
	}

	deps.Sessions.RecordPrompt(payload.SessionID)
	return sessionPromptResult{Text: text.String()}, nil
}

func completeOnce(ctx context.Context, deps *Deps, payload sessionPromptPayload, session *harbor.Session) (string, error) {
	completionReq := &llm.CompletionRequest{
		Model:       payload.Model,
		System:      session.Capabilities.SystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: payload.Prompt}},
		Temperature: session.Capabilities.Temperature,
	}
	chunks, err := deps.LLMRouter.Complete(ctx, payload.Provider, completionReq)
	if err != nil {
		return "", harbor.Wrap(harbor.ErrLLMFailed, "complete", err)
	}

	var text strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			return "", harbor.Wrap(harbor.ErrLLMFailed, "stream", chunk.Error)
		}
		text.WriteString(chunk.Text)
	}
	return text.String(), nil
}

func handleSessionDestroy(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error) {
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
