// Package transport implements the native-messaging wire protocol between
// the browser extension's background service worker and the native helper
// process: length-prefixed JSON framing, the closed set of request message
// types, and the correlation registry that matches streamed responses back
// to their originating request_id.
package transport

import (
	"encoding/json"

	"github.com/harborhq/harbor-helper/pkg/harbor"
)

// MessageType is the closed set of request types the router dispatches.
type MessageType string

const (
	TypeCanCreateTextSession       MessageType = "ai.canCreateTextSession"
	TypeCreateTextSession          MessageType = "ai.createTextSession"
	TypeLanguageModelCapabilities  MessageType = "ai.languageModel.capabilities"
	TypeLanguageModelCreate        MessageType = "ai.languageModel.create"
	TypeProvidersList              MessageType = "ai.providers.list"
	TypeProvidersGetActive         MessageType = "ai.providers.getActive"
	TypeSessionPrompt              MessageType = "session.prompt"
	TypeSessionPromptStreaming     MessageType = "session.promptStreaming"
	TypeSessionDestroy             MessageType = "session.destroy"
	TypeAgentRequestPermissions    MessageType = "agent.requestPermissions"
	TypeAgentPermissionsList       MessageType = "agent.permissions.list"
	TypeAgentToolsList             MessageType = "agent.tools.list"
	TypeAgentToolsCall             MessageType = "agent.tools.call"
	TypeAgentRun                   MessageType = "agent.run"
	TypeAgentSessionsCreate        MessageType = "agent.sessions.create"
	TypeAgentSessionsGet           MessageType = "agent.sessions.get"
	TypeAgentSessionsList          MessageType = "agent.sessions.list"
	TypeAgentSessionsTerminate     MessageType = "agent.sessions.terminate"
	TypeCatalogGet                 MessageType = "catalog_get"
	TypeCatalogRefresh             MessageType = "catalog_refresh"
	TypeCatalogSearch              MessageType = "catalog_search"
	TypeCheckRuntimes              MessageType = "check_runtimes"
	TypeInstallServer              MessageType = "install_server"
	TypeUninstallServer            MessageType = "uninstall_server"
	TypeListInstalled              MessageType = "list_installed"
	TypeStartInstalled             MessageType = "start_installed"
	TypeStopInstalled              MessageType = "stop_installed"
	TypeSetServerSecrets           MessageType = "set_server_secrets"
	TypeGetServerStatus            MessageType = "get_server_status"

	// TypeError is the type of an error response; it never appears on a request.
	TypeError MessageType = "error"
)

// Request is one decoded native-messaging frame sent by the background
// service worker.
type Request struct {
	Type      MessageType     `json:"type"`
	RequestID string          `json:"request_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Response is one frame sent back to the background service worker, either
// a terminal result or a terminal error. Streaming operations (agent.run,
// session.promptStreaming) send zero or more StreamEvent frames before
// exactly one Response.
type Response struct {
	Type      MessageType     `json:"type"`
	RequestID string          `json:"request_id"`
	OK        bool            `json:"ok"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *WireError      `json:"error,omitempty"`
}

// StreamEvent is one event in a streaming response's event sequence.
type StreamEvent struct {
	Type      MessageType     `json:"type"`
	RequestID string          `json:"request_id"`
	Event     json.RawMessage `json:"event"`
	Done      bool            `json:"done,omitempty"`
}

// WireError is the on-wire shape of a harbor.Error.
type WireError struct {
	Code    harbor.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Details any              `json:"details,omitempty"`
}

// NewErrorResponse builds a terminal error response for a request, or for
// an unsolicited framing fault (requestID may be empty in that case).
func NewErrorResponse(requestID string, err error) Response {
	werr := &WireError{Code: harbor.CodeOf(err), Message: err.Error()}
	var herr *harbor.Error
	if e, ok := err.(*harbor.Error); ok {
		herr = e
		werr.Details = herr.Details
	}
	return Response{Type: TypeError, RequestID: requestID, OK: false, Error: werr}
}

// NewResultResponse builds a terminal success response carrying result,
// which must already be JSON-marshalable.
func NewResultResponse(msgType MessageType, requestID string, result any) (Response, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return Response{}, err
	}
	return Response{Type: msgType, RequestID: requestID, OK: true, Result: data}, nil
}
