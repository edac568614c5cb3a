package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	WebhooksReceived    uint64
	WebhooksIgnored     map[string]uint64
	AgentNotConfigured  uint64
	AgentCallsSucceeded uint64
	AgentCallsFailed    uint64
	AgentCallTotalNs    int64
	Fallbacks           map[string]uint64
	RepliesFailed       uint64
	LinksIssued         uint64
	LinksCompleted      uint64
	AgentsCreated       uint64
}

// IgnoreReasons lists the reasons tracked by IncWebhookIgnored, in exposition order.
var IgnoreReasons = []string{IgnoreNoText, IgnoreDuplicate, IgnoreBadSecret, IgnoreInvalidPayload}

// FallbackReasons lists the reasons tracked by IncFallback, in exposition order.
var FallbackReasons = []string{FallbackStatus, FallbackMalformed, FallbackTimeout, FallbackTransport, FallbackStore}

// otherReason collects labels outside the known sets.
const otherReason = "other"

// labeled is a fixed set of counters keyed by label. The map is never
// written after construction, so concurrent reads are safe.
type labeled map[string]*atomic.Uint64

func newLabeled(labels []string) labeled {
	l := make(labeled, len(labels)+1)
	for _, name := range labels {
		l[name] = new(atomic.Uint64)
	}
	l[otherReason] = new(atomic.Uint64)
	return l
}

func (l labeled) inc(label string) {
	c, ok := l[label]
	if !ok {
		c = l[otherReason]
	}
	c.Add(1)
}

func (l labeled) snapshot() map[string]uint64 {
	out := make(map[string]uint64, len(l))
	for name, c := range l {
		out[name] = c.Load()
	}
	return out
}

// InMemoryRecorder stores metrics in memory. It backs the /metrics endpoint
// and is used directly by tests.
type InMemoryRecorder struct {
	webhooksReceived    atomic.Uint64
	webhooksIgnored     labeled
	agentNotConfigured  atomic.Uint64
	agentCallsSucceeded atomic.Uint64
	agentCallsFailed    atomic.Uint64
	agentCallTotalNs    atomic.Int64
	fallbacks           labeled
	repliesFailed       atomic.Uint64
	linksIssued         atomic.Uint64
	linksCompleted      atomic.Uint64
	agentsCreated       atomic.Uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		webhooksIgnored: newLabeled(IgnoreReasons),
		fallbacks:       newLabeled(FallbackReasons),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		WebhooksReceived:    m.webhooksReceived.Load(),
		WebhooksIgnored:     m.webhooksIgnored.snapshot(),
		AgentNotConfigured:  m.agentNotConfigured.Load(),
		AgentCallsSucceeded: m.agentCallsSucceeded.Load(),
		AgentCallsFailed:    m.agentCallsFailed.Load(),
		AgentCallTotalNs:    m.agentCallTotalNs.Load(),
		Fallbacks:           m.fallbacks.snapshot(),
		RepliesFailed:       m.repliesFailed.Load(),
		LinksIssued:         m.linksIssued.Load(),
		LinksCompleted:      m.linksCompleted.Load(),
		AgentsCreated:       m.agentsCreated.Load(),
	}
}

// IncWebhookReceived increments the inbound webhook counter.
func (m *InMemoryRecorder) IncWebhookReceived() {
	m.webhooksReceived.Add(1)
}

// IncWebhookIgnored counts an acknowledged but unprocessed webhook.
func (m *InMemoryRecorder) IncWebhookIgnored(reason string) {
	m.webhooksIgnored.inc(reason)
}

// IncAgentNotConfigured counts messages for bots with no agent.
func (m *InMemoryRecorder) IncAgentNotConfigured() {
	m.agentNotConfigured.Add(1)
}

// ObserveAgentCall records an agent proxy call.
func (m *InMemoryRecorder) ObserveAgentCall(duration time.Duration, success bool) {
	if success {
		m.agentCallsSucceeded.Add(1)
	} else {
		m.agentCallsFailed.Add(1)
	}
	m.agentCallTotalNs.Add(duration.Nanoseconds())
}

// IncFallback counts replies produced by the fallback responder.
func (m *InMemoryRecorder) IncFallback(reason string) {
	m.fallbacks.inc(reason)
}

// IncReplyFailed counts replies the chat platform refused.
func (m *InMemoryRecorder) IncReplyFailed() {
	m.repliesFailed.Add(1)
}

// IncLinkIssued increments link codes issued.
func (m *InMemoryRecorder) IncLinkIssued() {
	m.linksIssued.Add(1)
}

// IncLinkCompleted increments completed links.
func (m *InMemoryRecorder) IncLinkCompleted() {
	m.linksCompleted.Add(1)
}

// IncAgentCreated increments agent created counter.
func (m *InMemoryRecorder) IncAgentCreated() {
	m.agentsCreated.Add(1)
}
