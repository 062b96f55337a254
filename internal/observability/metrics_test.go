package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// newTestMetrics builds a Metrics instance against an isolated registry so
// tests can run independently of whatever calls NewMetrics() against the
// default registry elsewhere in the process.
func newTestMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		RequestCounter:         prometheus.NewCounterVec(prometheus.CounterOpts{Name: "requests_total"}, []string{"message_type", "outcome"}),
		RequestDuration:        prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "request_duration_seconds"}, []string{"message_type"}),
		LLMRequestDuration:     prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "llm_request_duration_seconds"}, []string{"provider", "model"}),
		LLMRequestCounter:      prometheus.NewCounterVec(prometheus.CounterOpts{Name: "llm_requests_total"}, []string{"provider", "model", "status"}),
		LLMTokensUsed:          prometheus.NewCounterVec(prometheus.CounterOpts{Name: "llm_tokens_total"}, []string{"provider", "model", "type"}),
		LLMCostUSD:             prometheus.NewCounterVec(prometheus.CounterOpts{Name: "llm_cost_usd_total"}, []string{"provider", "model"}),
		ToolExecutionCounter:   prometheus.NewCounterVec(prometheus.CounterOpts{Name: "tool_executions_total"}, []string{"tool_name", "status"}),
		ToolExecutionDuration:  prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "tool_execution_duration_seconds"}, []string{"tool_name"}),
		ErrorCounter:           prometheus.NewCounterVec(prometheus.CounterOpts{Name: "errors_total"}, []string{"component", "error_code"}),
		ActiveSessions:         prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "active_sessions"}, []string{"kind"}),
		SessionDuration:        prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "session_duration_seconds", Buckets: []float64{60, 300, 600}}, []string{"kind"}),
		PermissionDecisions:    prometheus.NewCounterVec(prometheus.CounterOpts{Name: "permission_decisions_total"}, []string{"scope", "state"}),
		MCPConnectedServers:    prometheus.NewGauge(prometheus.GaugeOpts{Name: "mcp_connected_servers"}),
		CatalogRefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Name: "catalog_refresh_duration_seconds"}),
		CatalogEntriesTotal:    prometheus.NewGauge(prometheus.GaugeOpts{Name: "catalog_entries"}),
		OAuthRefreshCounter:    prometheus.NewCounterVec(prometheus.CounterOpts{Name: "oauth_refresh_total"}, []string{"server_id", "status"}),
	}
	registry.MustRegister(
		m.RequestCounter, m.RequestDuration, m.LLMRequestDuration, m.LLMRequestCounter,
		m.LLMTokensUsed, m.LLMCostUSD, m.ToolExecutionCounter, m.ToolExecutionDuration,
		m.ErrorCounter, m.ActiveSessions, m.SessionDuration, m.PermissionDecisions,
		m.MCPConnectedServers, m.CatalogRefreshDuration, m.CatalogEntriesTotal, m.OAuthRefreshCounter,
	)
	return m
}

func TestRequestReceived(t *testing.T) {
	m := newTestMetrics(prometheus.NewRegistry())
	m.RequestReceived("agent.run", "ok", 0.05)
	m.RequestReceived("agent.run", "error", 0.01)

	if count := testutil.CollectAndCount(m.RequestCounter); count != 2 {
		t.Errorf("RequestCounter label combinations = %d, want 2", count)
	}
}

func TestRecordLLMRequest(t *testing.T) {
	m := newTestMetrics(prometheus.NewRegistry())
	m.RecordLLMRequest("anthropic", "claude-sonnet-4", "success", 1.2, 100, 500)

	if got := testutil.ToFloat64(m.LLMRequestCounter.WithLabelValues("anthropic", "claude-sonnet-4", "success")); got != 1 {
		t.Errorf("LLMRequestCounter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.LLMTokensUsed.WithLabelValues("anthropic", "claude-sonnet-4", "prompt")); got != 100 {
		t.Errorf("prompt tokens = %v, want 100", got)
	}
	if got := testutil.ToFloat64(m.LLMTokensUsed.WithLabelValues("anthropic", "claude-sonnet-4", "completion")); got != 500 {
		t.Errorf("completion tokens = %v, want 500", got)
	}
}

func TestRecordLLMCost(t *testing.T) {
	m := newTestMetrics(prometheus.NewRegistry())
	m.RecordLLMCost("openai", "gpt-4o", 0.02)
	m.RecordLLMCost("openai", "gpt-4o", 0.03)

	if got := testutil.ToFloat64(m.LLMCostUSD.WithLabelValues("openai", "gpt-4o")); got != 0.05 {
		t.Errorf("LLMCostUSD = %v, want 0.05", got)
	}
}

func TestRecordToolExecution(t *testing.T) {
	m := newTestMetrics(prometheus.NewRegistry())
	m.RecordToolExecution("web_search", "success", 0.2)
	m.RecordToolExecution("web_search", "error", 0.05)

	if got := testutil.ToFloat64(m.ToolExecutionCounter.WithLabelValues("web_search", "success")); got != 1 {
		t.Errorf("tool success count = %v, want 1", got)
	}
}

func TestRecordError(t *testing.T) {
	m := newTestMetrics(prometheus.NewRegistry())
	m.RecordError("mcpmgr", "ERR_TOOL_FAILED")
	m.RecordError("mcpmgr", "ERR_TOOL_FAILED")
	m.RecordError("broker", "ERR_PERMISSION_DENIED")

	if got := testutil.ToFloat64(m.ErrorCounter.WithLabelValues("mcpmgr", "ERR_TOOL_FAILED")); got != 2 {
		t.Errorf("ErrorCounter = %v, want 2", got)
	}
}

func TestSessionLifecycle(t *testing.T) {
	m := newTestMetrics(prometheus.NewRegistry())
	m.SessionStarted("implicit")
	m.SessionStarted("implicit")
	m.SessionStarted("explicit")

	if got := testutil.ToFloat64(m.ActiveSessions.WithLabelValues("implicit")); got != 2 {
		t.Errorf("ActiveSessions[implicit] = %v, want 2", got)
	}

	m.SessionEnded("implicit", 300)
	if got := testutil.ToFloat64(m.ActiveSessions.WithLabelValues("implicit")); got != 1 {
		t.Errorf("ActiveSessions[implicit] after end = %v, want 1", got)
	}
	if testutil.CollectAndCount(m.SessionDuration) < 1 {
		t.Error("expected session duration histogram to have an observation")
	}
}

func TestRecordPermissionDecision(t *testing.T) {
	m := newTestMetrics(prometheus.NewRegistry())
	m.RecordPermissionDecision("llm", "granted-always")
	m.RecordPermissionDecision("tabs.read", "denied")

	if got := testutil.ToFloat64(m.PermissionDecisions.WithLabelValues("llm", "granted-always")); got != 1 {
		t.Errorf("PermissionDecisions[llm,granted-always] = %v, want 1", got)
	}
}

func TestSetMCPConnectedServers(t *testing.T) {
	m := newTestMetrics(prometheus.NewRegistry())
	m.SetMCPConnectedServers(3)

	if got := testutil.ToFloat64(m.MCPConnectedServers); got != 3 {
		t.Errorf("MCPConnectedServers = %v, want 3", got)
	}
}

func TestRecordCatalogRefresh(t *testing.T) {
	m := newTestMetrics(prometheus.NewRegistry())
	m.RecordCatalogRefresh(2.5, 140)

	if got := testutil.ToFloat64(m.CatalogEntriesTotal); got != 140 {
		t.Errorf("CatalogEntriesTotal = %v, want 140", got)
	}
	if testutil.CollectAndCount(m.CatalogRefreshDuration) < 1 {
		t.Error("expected catalog refresh duration histogram to have an observation")
	}
}

func TestRecordOAuthRefresh(t *testing.T) {
	m := newTestMetrics(prometheus.NewRegistry())
	m.RecordOAuthRefresh("github-mcp", "success")
	m.RecordOAuthRefresh("github-mcp", "error")

	if got := testutil.ToFloat64(m.OAuthRefreshCounter.WithLabelValues("github-mcp", "success")); got != 1 {
		t.Errorf("OAuthRefreshCounter[success] = %v, want 1", got)
	}
}
