package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting helper-process
// metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Native-messaging request flow by message type and outcome
//   - LLM request performance, token usage, and estimated cost
//   - MCP tool call patterns and latencies
//   - Permission grant decisions and session lifecycle
//   - Catalog refresh runs and OAuth token refreshes
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.RequestReceived("agent.run")
//	defer metrics.LLMRequestDuration("anthropic", "claude-sonnet-4").Observe(time.Since(start).Seconds())
type Metrics struct {
	// RequestCounter tracks native-messaging requests by message type and
	// outcome. Labels: message_type, outcome (ok|error)
	RequestCounter *prometheus.CounterVec

	// RequestDuration measures request handling latency in seconds.
	// Labels: message_type
	// Buckets: 0.005s, 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s, 30s
	RequestDuration *prometheus.HistogramVec

	// LLMRequestDuration measures LLM API call latency in seconds.
	// Labels: provider, model
	// Buckets: 0.1s, 0.5s, 1s, 2s, 5s, 10s, 30s, 60s
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests by provider and model.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// LLMCostUSD tracks estimated cost in USD.
	// Labels: provider, model
	LLMCostUSD *prometheus.CounterVec

	// ToolExecutionCounter counts MCP tool invocations.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	// Buckets: 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s, 10s, 30s, 60s
	ToolExecutionDuration *prometheus.HistogramVec

	// ErrorCounter tracks errors by component and wire error code.
	// Labels: component (broker|mcpmgr|catalog|llm|oauthbroker), error_code
	ErrorCounter *prometheus.CounterVec

	// ActiveSessions is a gauge tracking current active agent sessions.
	// Labels: kind (implicit|explicit)
	ActiveSessions *prometheus.GaugeVec

	// SessionDuration measures session lifetime in seconds, recorded on
	// termination.
	// Labels: kind
	// Buckets: 60s, 300s, 600s, 1800s, 3600s, 7200s
	SessionDuration *prometheus.HistogramVec

	// PermissionDecisions counts permission prompt outcomes.
	// Labels: scope, state (granted-once|granted-always|denied)
	PermissionDecisions *prometheus.CounterVec

	// MCPConnectedServers is a gauge of currently connected MCP child
	// processes.
	MCPConnectedServers prometheus.Gauge

	// CatalogRefreshDuration measures a full catalog fetch-all run.
	// Buckets: 0.5s, 1s, 2s, 5s, 10s, 30s, 60s
	CatalogRefreshDuration prometheus.Histogram

	// CatalogEntriesTotal is a gauge of entries currently in the catalog.
	CatalogEntriesTotal prometheus.Gauge

	// OAuthRefreshCounter counts OAuth token refresh attempts.
	// Labels: server_id, status (success|error)
	OAuthRefreshCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at application startup.
//
// All metrics are automatically registered with Prometheus's default
// registry and are available wherever the process exposes a /metrics
// handler.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harbor_requests_total",
				Help: "Total number of native-messaging requests by message type and outcome",
			},
			[]string{"message_type", "outcome"},
		),

		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harbor_request_duration_seconds",
				Help:    "Duration of native-messaging request handling in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"message_type"},
		),

		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harbor_llm_request_duration_seconds",
				Help:    "Duration of LLM API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harbor_llm_requests_total",
				Help: "Total number of LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harbor_llm_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),

		LLMCostUSD: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harbor_llm_cost_usd_total",
				Help: "Estimated LLM API cost in USD",
			},
			[]string{"provider", "model"},
		),

		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harbor_tool_executions_total",
				Help: "Total number of MCP tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harbor_tool_execution_duration_seconds",
				Help:    "Duration of MCP tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harbor_errors_total",
				Help: "Total number of errors by component and wire error code",
			},
			[]string{"component", "error_code"},
		),

		ActiveSessions: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "harbor_active_sessions",
				Help: "Current number of active agent sessions by kind",
			},
			[]string{"kind"},
		),

		SessionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harbor_session_duration_seconds",
				Help:    "Duration of agent sessions in seconds",
				Buckets: []float64{60, 300, 600, 1800, 3600, 7200},
			},
			[]string{"kind"},
		),

		PermissionDecisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harbor_permission_decisions_total",
				Help: "Total number of permission prompt decisions by scope and state",
			},
			[]string{"scope", "state"},
		),

		MCPConnectedServers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harbor_mcp_connected_servers",
				Help: "Current number of connected MCP child processes",
			},
		),

		CatalogRefreshDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harbor_catalog_refresh_duration_seconds",
				Help:    "Duration of a full catalog fetch-all run",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
			},
		),

		CatalogEntriesTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harbor_catalog_entries",
				Help: "Current number of entries in the catalog",
			},
		),

		OAuthRefreshCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harbor_oauth_refresh_total",
				Help: "Total number of OAuth token refresh attempts by server and status",
			},
			[]string{"server_id", "status"},
		),
	}
}

// RequestReceived records a native-messaging request's dispatch outcome and
// handling latency.
//
// Example:
//
//	start := time.Now()
//	// ... dispatch request ...
//	metrics.RequestReceived("agent.run", "ok", time.Since(start).Seconds())
func (m *Metrics) RequestReceived(messageType, outcome string, durationSeconds float64) {
	m.RequestCounter.WithLabelValues(messageType, outcome).Inc()
	m.RequestDuration.WithLabelValues(messageType).Observe(durationSeconds)
}

// RecordLLMRequest records metrics for an LLM API request.
//
// Example:
//
//	start := time.Now()
//	// ... make LLM request ...
//	metrics.RecordLLMRequest("anthropic", "claude-sonnet-4", "success", time.Since(start).Seconds(), 100, 500)
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordLLMCost records estimated API cost.
//
// Example:
//
//	metrics.RecordLLMCost("anthropic", "claude-sonnet-4", 0.015)
func (m *Metrics) RecordLLMCost(provider, model string, costUSD float64) {
	m.LLMCostUSD.WithLabelValues(provider, model).Add(costUSD)
}

// RecordToolExecution records metrics for an MCP tool call.
//
// Example:
//
//	start := time.Now()
//	// ... execute tool ...
//	metrics.RecordToolExecution("web_search", "success", time.Since(start).Seconds())
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordError increments the error counter for a given component and wire
// error code.
//
// Example:
//
//	metrics.RecordError("mcpmgr", "ERR_TOOL_FAILED")
//	metrics.RecordError("broker", "ERR_PERMISSION_DENIED")
func (m *Metrics) RecordError(component, errorCode string) {
	m.ErrorCounter.WithLabelValues(component, errorCode).Inc()
}

// SessionStarted increments the active sessions gauge.
//
// Example:
//
//	metrics.SessionStarted("implicit")
func (m *Metrics) SessionStarted(kind string) {
	m.ActiveSessions.WithLabelValues(kind).Inc()
}

// SessionEnded decrements the active sessions gauge and records session
// duration.
//
// Example:
//
//	metrics.SessionEnded("explicit", time.Since(created).Seconds())
func (m *Metrics) SessionEnded(kind string, durationSeconds float64) {
	m.ActiveSessions.WithLabelValues(kind).Dec()
	m.SessionDuration.WithLabelValues(kind).Observe(durationSeconds)
}

// RecordPermissionDecision records a permission prompt's resolved state.
//
// Example:
//
//	metrics.RecordPermissionDecision("llm", "granted-always")
func (m *Metrics) RecordPermissionDecision(scope, state string) {
	m.PermissionDecisions.WithLabelValues(scope, state).Inc()
}

// SetMCPConnectedServers sets the current count of connected MCP children.
func (m *Metrics) SetMCPConnectedServers(count int) {
	m.MCPConnectedServers.Set(float64(count))
}

// RecordCatalogRefresh records a completed catalog fetch-all run.
func (m *Metrics) RecordCatalogRefresh(durationSeconds float64, entryCount int) {
	m.CatalogRefreshDuration.Observe(durationSeconds)
	m.CatalogEntriesTotal.Set(float64(entryCount))
}

// RecordOAuthRefresh records an OAuth token refresh attempt.
//
// Example:
//
//	metrics.RecordOAuthRefresh("github-mcp", "success")
func (m *Metrics) RecordOAuthRefresh(serverID, status string) {
	m.OAuthRefreshCounter.WithLabelValues(serverID, status).Inc()
}
