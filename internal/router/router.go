package router

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/harborhq/harbor-helper/internal/transport"
	"github.com/harborhq/harbor-helper/pkg/harbor"
)

// Emit streams one event of a streaming operation (agent.run,
// session.promptStreaming) back to the caller before the terminal
// Response is written. Handlers that never stream simply never call it.
type Emit func(event any) error

// Handler serves one decoded Request and returns the value that becomes
// the terminal Response's result, or an error that becomes its WireError.
type Handler func(ctx context.Context, deps *Deps, req *transport.Request, emit Emit) (any, error)

// Router holds the dispatch table: one Handler per transport.MessageType,
// mirroring the full request-message surface.
type Router struct {
	deps     *Deps
	handlers map[transport.MessageType]Handler
}

// New builds a Router wired to deps, with every message type in
// transport's closed enum registered to its handler.
func New(deps *Deps) *Router {
	r := &Router{deps: deps, handlers: make(map[transport.MessageType]Handler)}
	r.register()
	return r
}

func (r *Router) register() {
	r.handlers[transport.TypeCanCreateTextSession] = handleCanCreateTextSession
	r.handlers[transport.TypeCreateTextSession] = handleCreateTextSession
	r.handlers[transport.TypeLanguageModelCapabilities] = handleLanguageModelCapabilities
	r.handlers[transport.TypeLanguageModelCreate] = handleLanguageModelCreate
	r.handlers[transport.TypeProvidersList] = handleProvidersList
	r.handlers[transport.TypeProvidersGetActive] = handleProvidersGetActive
	r.handlers[transport.TypeSessionPrompt] = handleSessionPrompt
	r.handlers[transport.TypeSessionPromptStreaming] = handleSessionPromptStreaming
	r.handlers[transport.TypeSessionDestroy] = handleSessionDestroy

	r.handlers[transport.TypeAgentRequestPermissions] = handleAgentRequestPermissions
	r.handlers[transport.TypeAgentPermissionsList] = handleAgentPermissionsList
	r.handlers[transport.TypeAgentToolsList] = handleAgentToolsList
	r.handlers[transport.TypeAgentToolsCall] = handleAgentToolsCall
	r.handlers[transport.TypeAgentRun] = handleAgentRun
	r.handlers[transport.TypeAgentSessionsCreate] = handleAgentSessionsCreate
	r.handlers[transport.TypeAgentSessionsGet] = handleAgentSessionsGet
	r.handlers[transport.TypeAgentSessionsList] = handleAgentSessionsList
	r.handlers[transport.TypeAgentSessionsTerminate] = handleAgentSessionsTerminate

	r.handlers[transport.TypeCatalogGet] = handleCatalogGet
	r.handlers[transport.TypeCatalogRefresh] = handleCatalogRefresh
	r.handlers[transport.TypeCatalogSearch] = handleCatalogSearch
	r.handlers[transport.TypeCheckRuntimes] = handleCheckRuntimes
	r.handlers[transport.TypeInstallServer] = handleInstallServer
	r.handlers[transport.TypeUninstallServer] = handleUninstallServer
	r.handlers[transport.TypeListInstalled] = handleListInstalled
	r.handlers[transport.TypeStartInstalled] = handleStartInstalled
	r.handlers[transport.TypeStopInstalled] = handleStopInstalled
	r.handlers[transport.TypeSetServerSecrets] = handleSetServerSecrets
	r.handlers[transport.TypeGetServerStatus] = handleGetServerStatus
}

// Dispatch runs the handler registered for req.Type and folds its outcome
// into a terminal Response. An unregistered type is itself a wire-level
// invalid_message, not an internal_error: the request was well-formed
// JSON naming a type outside the closed enum.
func (r *Router) Dispatch(ctx context.Context, req *transport.Request, emit Emit) transport.Response {
	handler, ok := r.handlers[req.Type]
	if !ok {
		err := harbor.NewError(harbor.ErrInvalidMessage, fmt.Sprintf("unknown message type %q", req.Type))
		return transport.NewErrorResponse(req.RequestID, err)
	}

	result, err := r.runHandler(ctx, handler, req, emit)
	if err != nil {
		return transport.NewErrorResponse(req.RequestID, normalizeError(err))
	}

	resp, err := transport.NewResultResponse(req.Type, req.RequestID, result)
	if err != nil {
		return transport.NewErrorResponse(req.RequestID, harbor.Wrap(harbor.ErrInternal, "marshal result", err))
	}
	return resp
}

// runHandler recovers a handler panic into an internal_error response
// rather than letting one bad request take down the whole helper process.
func (r *Router) runHandler(ctx context.Context, handler Handler, req *transport.Request, emit Emit) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = harbor.NewError(harbor.ErrInternal, fmt.Sprintf("handler panic: %v", rec))
		}
	}()
	return handler(ctx, r.deps, req, emit)
}

// normalizeError ensures every handler failure reaches the wire as a
// harbor.Error, collapsing anything else to internal_error.
func normalizeError(err error) error {
	if _, ok := err.(*harbor.Error); ok {
		return err
	}
	return harbor.Wrap(harbor.ErrInternal, err.Error(), err)
}

// decodePayload unmarshals req.Payload into v, reporting invalid_message
// rather than a raw json error.
func decodePayload(req *transport.Request, v any) error {
	if len(req.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Payload, v); err != nil {
		return harbor.Wrap(harbor.ErrInvalidMessage, "decode payload", err)
	}
	return nil
}
