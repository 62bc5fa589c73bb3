package metrics

import "github.com/prometheus/client_golang/prometheus"

// ToolMetrics exposes counters/histograms for voice-agent tool calls.
type ToolMetrics struct {
	callsTotal     *prometheus.CounterVec
	gatewayLatency *prometheus.HistogramVec
	slotLocksTotal *prometheus.CounterVec
}

func NewToolMetrics(reg prometheus.Registerer) *ToolMetrics {
	m := &ToolMetrics{
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Subsystem: "scheduler",
			Name:      "tool_calls_total",
			Help:      "Tool calls handled, by tool and outcome reason",
		}, []string{"tool", "reason"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dental",
			Subsystem: "scheduler",
			Name:      "gateway_latency_seconds",
			Help:      "Latency of calendar gateway round trips",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		slotLocksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Subsystem: "scheduler",
			Name:      "slot_lock_total",
			Help:      "Booking slot lock attempts by result",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.callsTotal, m.gatewayLatency, m.slotLocksTotal)
	return m
}

// ObserveToolCall counts one finished tool call. reason is "ok" on success.
func (m *ToolMetrics) ObserveToolCall(tool, reason string) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(tool, reason).Inc()
}

func (m *ToolMetrics) ObserveGatewayLatency(operation string, failed bool, seconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	m.gatewayLatency.WithLabelValues(operation, status).Observe(seconds)
}

// ObserveSlotLock records acquired, contended or error.
func (m *ToolMetrics) ObserveSlotLock(result string) {
	if m == nil {
		return
	}
	m.slotLocksTotal.WithLabelValues(result).Inc()
}
