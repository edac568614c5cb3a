// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Webhook ignore reasons.
const (
	IgnoreNoText         = "no_text"
	IgnoreDuplicate      = "duplicate"
	IgnoreBadSecret      = "bad_secret"
	IgnoreInvalidPayload = "invalid_payload"
)

// Fallback reasons. Agent call failures use the agentproxy reason names.
const (
	FallbackStatus    = "status"
	FallbackMalformed = "malformed"
	FallbackTimeout   = "timeout"
	FallbackTransport = "transport"
	FallbackStore     = "store"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Webhook relay metrics
	IncWebhookReceived()
	IncWebhookIgnored(reason string)
	IncAgentNotConfigured()
	ObserveAgentCall(duration time.Duration, success bool)
	IncFallback(reason string)
	IncReplyFailed()

	// Account linking metrics
	IncLinkIssued()
	IncLinkCompleted()

	// Agent management metrics
	IncAgentCreated()
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
