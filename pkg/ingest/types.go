package ingest

import (
	"context"
	"time"

	"pagedesk/pkg/models"
	"pagedesk/pkg/webhook"
)

// Status is the outcome of applying one event.
type Status string

const (
	StatusApplied Status = "applied"
	StatusIgnored Status = "ignored"
	StatusFailed  Status = "failed"
)

// Result describes what applying one event did to page state.
type Result struct {
	PageID     string
	SenderID   string
	DeliveryID string
	Kind       webhook.Kind
	Status     Status
	// MessageID is set when a record was appended.
	MessageID string
	// Updated counts records whose status changed.
	Updated int
	Evicted bool
	// FallbackProfile is set when the sender could not be resolved.
	FallbackProfile bool
	// Event describes the event when it was not applied.
	Event    string
	Err      error
	Duration time.Duration
}

// SenderResolver resolves a sender profile. It must not fail.
type SenderResolver interface {
	Resolve(ctx context.Context, senderID, pageID string) models.Profile
}

// DeliveryRecorder receives per-event outcomes for a webhook delivery.
type DeliveryRecorder interface {
	RecordResult(deliveryID string, ok bool, errMsg string) error
}
