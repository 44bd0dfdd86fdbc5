package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit event types written by the payment pipeline.
const (
	AuditEventCallbackMismatch    = "callback_mismatch"
	AuditEventPaymentCompleted    = "payment_completed"
	AuditEventPaymentFailed       = "payment_failed"
	AuditEventCallbackError       = "callback_processing_error"
	AuditEventWithdrawalRequested = "withdrawal_requested"
	AuditEventWithdrawalCompleted = "withdrawal_completed"
)

// Audit severities.
const (
	AuditSeverityLow      = "low"
	AuditSeverityMedium   = "medium"
	AuditSeverityHigh     = "high"
	AuditSeverityCritical = "critical"
)

// AuditEntry is an append-only record of a security-relevant event.
// This service only writes entries; monitoring consumes them.
type AuditEntry struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	EventType string          `db:"event_type" json:"event_type"`
	CreatorID *uuid.UUID      `db:"creator_id" json:"creator_id,omitempty"`
	Details   json.RawMessage `db:"details" json:"details,omitempty"`
	Severity  string          `db:"severity" json:"severity"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
