package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/laissez/laissez/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus text exposition format.
//
// GET /metrics
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "laissez_webhooks_received_total %d\n", snap.WebhooksReceived)
	writeLabeled(w, "laissez_webhooks_ignored_total", "reason", metrics.IgnoreReasons, snap.WebhooksIgnored)
	writeMetric(w, "laissez_agent_not_configured_total %d\n", snap.AgentNotConfigured)

	writeMetric(w, "laissez_agent_calls_total{status=\"success\"} %d\n", snap.AgentCallsSucceeded)
	writeMetric(w, "laissez_agent_calls_total{status=\"failed\"} %d\n", snap.AgentCallsFailed)
	writeMetric(w, "laissez_agent_call_duration_seconds_count %d\n", snap.AgentCallsSucceeded+snap.AgentCallsFailed)
	writeMetric(w, "laissez_agent_call_duration_seconds_sum %.6f\n", float64(snap.AgentCallTotalNs)/1e9)

	writeLabeled(w, "laissez_fallbacks_total", "reason", metrics.FallbackReasons, snap.Fallbacks)
	writeMetric(w, "laissez_replies_failed_total %d\n", snap.RepliesFailed)

	writeMetric(w, "laissez_links_issued_total %d\n", snap.LinksIssued)
	writeMetric(w, "laissez_links_completed_total %d\n", snap.LinksCompleted)
	writeMetric(w, "laissez_agents_created_total %d\n", snap.AgentsCreated)
}

// writeLabeled writes one series per known label in order, then "other".
func writeLabeled(w io.Writer, name, label string, known []string, values map[string]uint64) {
	for _, v := range append(known[:len(known):len(known)], "other") {
		writeMetric(w, "%s{%s=%q} %d\n", name, label, v, values[v])
	}
}

func writeMetric(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
