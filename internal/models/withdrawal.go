package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	WithdrawalStatusPending      = "PENDING"
	WithdrawalStatusCompleted    = "COMPLETED"
	WithdrawalStatusFailed       = "FAILED"
	WithdrawalStatusManualReview = "MANUAL_REVIEW"
)

// Withdrawal is one payout request. The idempotency key is generated by
// the caller once per user action, so a retried submission maps onto the
// same row instead of creating a second one.
type Withdrawal struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	CreatorID      uuid.UUID  `db:"creator_id" json:"creator_id"`
	Amount         float64    `db:"amount" json:"amount"`
	Status         string     `db:"status" json:"status"`
	IdempotencyKey string     `db:"idempotency_key" json:"-"`
	MpesaReference *string    `db:"mpesa_reference" json:"mpesa_reference,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	ProcessedAt    *time.Time `db:"processed_at" json:"processed_at,omitempty"`
}
