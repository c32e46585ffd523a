package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters, histograms, and gauges exposed on cmd/octo's
// optional /metrics endpoint. Constructed once at startup by cmd/octo,
// which records each turn through RecordTurn; the agent loop, provider
// adapter, tool dispatcher, and team substrate neither import this
// package nor receive a Metrics value.
type Metrics struct {
	// TurnCounter counts completed agent loop turns, labeled by outcome
	// (cmd/octo records finished or error).
	TurnCounter *prometheus.CounterVec

	// TurnDuration observes wall-clock time for a single turn, from
	// provider dispatch through tool execution to the next prompt.
	TurnDuration *prometheus.HistogramVec

	// ProviderRequestDuration observes latency of a single streamed
	// completion request, labeled by model.
	ProviderRequestDuration *prometheus.HistogramVec

	// ProviderRequestCounter counts completion requests, labeled by
	// model and outcome (ok, retry, error).
	ProviderRequestCounter *prometheus.CounterVec

	// ProviderRetryCounter counts retry attempts the provider adapter
	// issued after a retryable stream failure, labeled by reason.
	ProviderRetryCounter *prometheus.CounterVec

	// ProviderTokensUsed tracks prompt/completion tokens reported on
	// each response, labeled by model and token kind (prompt, completion).
	ProviderTokensUsed *prometheus.CounterVec

	// ToolDispatchCounter counts tool invocations, labeled by tool name
	// and outcome (ok, error, denied).
	ToolDispatchCounter *prometheus.CounterVec

	// ToolDispatchDuration observes tool execution latency, labeled by
	// tool name.
	ToolDispatchDuration *prometheus.HistogramVec

	// PermissionDecisionCounter counts permission gate decisions,
	// labeled by tool name and decision (allow, deny, prompt).
	PermissionDecisionCounter *prometheus.CounterVec

	// TeamFileIOCounter counts filesystem operations against the team
	// substrate's inbox/task-board directories, labeled by op
	// (read, write, watch).
	TeamFileIOCounter *prometheus.CounterVec

	// TeamFileIODuration observes latency of those filesystem
	// operations, labeled by op.
	TeamFileIODuration *prometheus.HistogramVec

	// ActiveSubAgents tracks the number of currently spawned sub-agent
	// processes under a lead's team directory.
	ActiveSubAgents prometheus.Gauge

	// ContextWindowUsed tracks the fraction of the model's context
	// window consumed at the start of the most recent turn, labeled by
	// model.
	ContextWindowUsed *prometheus.GaugeVec
}

// NewMetrics registers and returns the full metric set against the
// default Prometheus registry.
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

// newMetrics registers the metric set against reg. Split out from
// NewMetrics so tests can register against an isolated registry
// instead of polluting the global default on every run.
func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TurnCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "octo_agent_turns_total",
			Help: "Total agent loop turns, labeled by outcome",
		}, []string{"outcome"}),

		TurnDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "octo_agent_turn_duration_seconds",
			Help:    "Duration of a single agent loop turn",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),

		ProviderRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "octo_provider_request_duration_seconds",
			Help:    "Duration of a streamed completion request",
			Buckets: prometheus.DefBuckets,
		}, []string{"model"}),

		ProviderRequestCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "octo_provider_requests_total",
			Help: "Total completion requests, labeled by model and outcome",
		}, []string{"model", "outcome"}),

		ProviderRetryCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "octo_provider_retries_total",
			Help: "Total retry attempts after a retryable stream failure",
		}, []string{"reason"}),

		ProviderTokensUsed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "octo_provider_tokens_total",
			Help: "Total tokens reported by the provider, labeled by model and kind",
		}, []string{"model", "kind"}),

		ToolDispatchCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "octo_tool_dispatch_total",
			Help: "Total tool invocations, labeled by tool name and outcome",
		}, []string{"tool", "outcome"}),

		ToolDispatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "octo_tool_dispatch_duration_seconds",
			Help:    "Duration of a single tool invocation",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),

		PermissionDecisionCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "octo_permission_decisions_total",
			Help: "Total permission gate decisions, labeled by tool name and decision",
		}, []string{"tool", "decision"}),

		TeamFileIOCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "octo_team_file_io_total",
			Help: "Total team substrate filesystem operations, labeled by op",
		}, []string{"op"}),

		TeamFileIODuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "octo_team_file_io_duration_seconds",
			Help:    "Duration of a team substrate filesystem operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),

		ActiveSubAgents: factory.NewGauge(prometheus.GaugeOpts{
			Name: "octo_team_active_subagents",
			Help: "Number of currently spawned sub-agent processes",
		}),

		ContextWindowUsed: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "octo_agent_context_window_used_ratio",
			Help: "Fraction of the model's context window used at turn start",
		}, []string{"model"}),
	}
}

// RecordTurn records the outcome and duration of a completed agent loop turn.
func (m *Metrics) RecordTurn(outcome string, seconds float64) {
	m.TurnCounter.WithLabelValues(outcome).Inc()
	m.TurnDuration.WithLabelValues(outcome).Observe(seconds)
}

// RecordProviderRequest records a completion request's latency and outcome.
func (m *Metrics) RecordProviderRequest(model, outcome string, seconds float64) {
	m.ProviderRequestCounter.WithLabelValues(model, outcome).Inc()
	m.ProviderRequestDuration.WithLabelValues(model).Observe(seconds)
}

// RecordProviderRetry records a single retry attempt by the provider adapter.
func (m *Metrics) RecordProviderRetry(reason string) {
	m.ProviderRetryCounter.WithLabelValues(reason).Inc()
}

// RecordProviderTokens records prompt and completion token counts from a response.
func (m *Metrics) RecordProviderTokens(model string, promptTokens, completionTokens int) {
	m.ProviderTokensUsed.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	m.ProviderTokensUsed.WithLabelValues(model, "completion").Add(float64(completionTokens))
}

// RecordToolDispatch records a tool invocation's outcome and duration.
func (m *Metrics) RecordToolDispatch(toolName, outcome string, seconds float64) {
	m.ToolDispatchCounter.WithLabelValues(toolName, outcome).Inc()
	m.ToolDispatchDuration.WithLabelValues(toolName).Observe(seconds)
}

// RecordPermissionDecision records a permission gate decision for a tool call.
func (m *Metrics) RecordPermissionDecision(toolName, decision string) {
	m.PermissionDecisionCounter.WithLabelValues(toolName, decision).Inc()
}

// RecordTeamFileIO records a team substrate filesystem operation's latency.
func (m *Metrics) RecordTeamFileIO(op string, seconds float64) {
	m.TeamFileIOCounter.WithLabelValues(op).Inc()
	m.TeamFileIODuration.WithLabelValues(op).Observe(seconds)
}

// SubAgentSpawned increments the active sub-agent gauge.
func (m *Metrics) SubAgentSpawned() {
	m.ActiveSubAgents.Inc()
}

// SubAgentExited decrements the active sub-agent gauge.
func (m *Metrics) SubAgentExited() {
	m.ActiveSubAgents.Dec()
}

// SetContextWindowUsed records the fraction of context window consumed
// at the start of a turn.
func (m *Metrics) SetContextWindowUsed(model string, ratio float64) {
	m.ContextWindowUsed.WithLabelValues(model).Set(ratio)
}
