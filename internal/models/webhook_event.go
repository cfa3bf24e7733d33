package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const WebhookProviderPolar = "polar"

// Webhook event outcomes.
const (
	OutcomeReceived  = "received"
	OutcomeApplied   = "applied"
	OutcomeUnmatched = "unmatched"
	OutcomeIgnored   = "ignored"
	// OutcomeDuplicate is reported for a redelivery of an event that was
	// already applied or ignored. It is never stored.
	OutcomeDuplicate = "duplicate"
)

// WebhookEvent is one received provider event, keyed by (Provider, EventID).
type WebhookEvent struct {
	ID          uuid.UUID       `json:"id"`
	Provider    string          `json:"provider"`
	EventID     string          `json:"event_id"`
	EventType   string          `json:"event_type"`
	Outcome     string          `json:"outcome"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	AlertedAt   *time.Time      `json:"alerted_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
}

// Settled reports whether a stored outcome makes a redelivery a no-op.
func (e *WebhookEvent) Settled() bool {
	return e.Outcome == OutcomeApplied || e.Outcome == OutcomeIgnored
}
