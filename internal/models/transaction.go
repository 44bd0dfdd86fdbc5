package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Statuses of a payment attempt. COMPLETED and FAILED are terminal.
// REVIEW is terminal for the automatic pipeline: a flagged transaction
// never advances to COMPLETED without manual intervention.
const (
	TransactionStatusPending   = "PENDING"
	TransactionStatusCompleted = "COMPLETED"
	TransactionStatusFailed    = "FAILED"
	TransactionStatusReview    = "REVIEW"
)

// IsTerminalStatus reports whether the automatic pipeline may still
// mutate a transaction in the given status.
func IsTerminalStatus(status string) bool {
	switch status {
	case TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusReview:
		return true
	}
	return false
}

// Transaction is one STK push payment attempt. Rows are append-only:
// the callback processor transitions the status exactly once and nothing
// ever deletes them.
type Transaction struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	CreatorID         uuid.UUID       `db:"creator_id" json:"creator_id"`
	CheckoutRequestID string          `db:"checkout_request_id" json:"checkout_request_id"`
	MerchantRequestID string          `db:"merchant_request_id" json:"merchant_request_id"`
	Amount            float64         `db:"amount" json:"amount"`
	PlatformFee       float64         `db:"platform_fee" json:"platform_fee"`
	NetAmount         float64         `db:"net_amount" json:"net_amount"`
	PhoneNumber       string          `db:"phone_number" json:"phone_number"`
	SupporterName     string          `db:"supporter_name" json:"supporter_name"`
	SupporterMessage  string          `db:"supporter_message" json:"supporter_message"`
	MpesaCode         *string         `db:"mpesa_code" json:"mpesa_code,omitempty"`
	Status            string          `db:"status" json:"status"`
	IsSuspicious      bool            `db:"is_suspicious" json:"is_suspicious"`
	Metadata          json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}
