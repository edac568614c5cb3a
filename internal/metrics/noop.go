package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncWebhookReceived is a no-op.
func (n *NoopRecorder) IncWebhookReceived() {}

// IncWebhookIgnored is a no-op.
func (n *NoopRecorder) IncWebhookIgnored(reason string) {}

// IncAgentNotConfigured is a no-op.
func (n *NoopRecorder) IncAgentNotConfigured() {}

// ObserveAgentCall is a no-op.
func (n *NoopRecorder) ObserveAgentCall(duration time.Duration, success bool) {}

// IncFallback is a no-op.
func (n *NoopRecorder) IncFallback(reason string) {}

// IncReplyFailed is a no-op.
func (n *NoopRecorder) IncReplyFailed() {}

// IncLinkIssued is a no-op.
func (n *NoopRecorder) IncLinkIssued() {}

// IncLinkCompleted is a no-op.
func (n *NoopRecorder) IncLinkCompleted() {}

// IncAgentCreated is a no-op.
func (n *NoopRecorder) IncAgentCreated() {}
