package dto

import (
	"time"

	"github.com/google/uuid"
)

// ErrorResponse is the error envelope of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse wraps a message plus optional payload.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// StkPushResponse acknowledges a submitted charge. The client uses
// CheckoutRequestID to watch the attempt over websocket or polling.
type StkPushResponse struct {
	CheckoutRequestID string  `json:"checkout_request_id"`
	MerchantRequestID string  `json:"merchant_request_id"`
	Amount            float64 `json:"amount"`
	Status            string  `json:"status"`
}

// PaymentStatusResponse is the polling view of one payment attempt.
type PaymentStatusResponse struct {
	CheckoutRequestID string    `json:"checkout_request_id"`
	Status            string    `json:"status"`
	Amount            float64   `json:"amount"`
	MpesaCode         *string   `json:"mpesa_code,omitempty"`
	SupporterName     string    `json:"supporter_name"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// BalanceResponse mirrors the creator_balances aggregate.
type BalanceResponse struct {
	CreatorID        uuid.UUID `json:"creator_id"`
	AvailableBalance float64   `json:"available_balance"`
	PendingBalance   float64   `json:"pending_balance"`
	LifetimeEarnings float64   `json:"lifetime_earnings"`
	UpdatedAt        time.Time `json:"updated_at"`
}
