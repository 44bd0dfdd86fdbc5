package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// LedgerRepository invokes the atomic balance-mutating procedures. The
// procedures own the exactly-once guarantee: each performs a conditional
// update keyed on the row's current status, so concurrent invocations for
// the same key cannot both move money. Application code never updates
// creator_balances directly.
type LedgerRepository struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// ProcedureResult is the {success, error} envelope every ledger procedure
// returns.
type ProcedureResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	// AlreadyProcessed is set when the guarded update matched no rows,
	// i.e. another delivery won the race. Not an error.
	AlreadyProcessed bool `json:"already_processed,omitempty"`
	// WithdrawalID is populated by request_withdrawal.
	WithdrawalID *uuid.UUID `json:"withdrawal_id,omitempty"`
}

func (r *LedgerRepository) call(ctx context.Context, query string, args ...interface{}) (*ProcedureResult, error) {
	var raw json.RawMessage
	if err := r.db.GetContext(ctx, &raw, query, args...); err != nil {
		return nil, fmt.Errorf("ledger procedure: %w", err)
	}

	var result ProcedureResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("ledger procedure: malformed result: %w", err)
	}
	return &result, nil
}

// ProcessPaymentCallback credits a settled payment. Idempotent keyed on
// the checkout request id: the procedure only credits while the
// transaction row is still PENDING.
func (r *LedgerRepository) ProcessPaymentCallback(ctx context.Context, checkoutID, receiptNumber string, amount float64, phone string) (*ProcedureResult, error) {
	return r.call(ctx,
		`SELECT process_payment_callback($1, $2, $3, $4)`,
		checkoutID, receiptNumber, amount, phone)
}

// RequestWithdrawal creates a PENDING withdrawal, enforcing the idempotency
// key and the available-balance guard inside one statement.
func (r *LedgerRepository) RequestWithdrawal(ctx context.Context, creatorID uuid.UUID, amount float64, idempotencyKey string) (*ProcedureResult, error) {
	return r.call(ctx,
		`SELECT request_withdrawal($1, $2, $3)`,
		creatorID, amount, idempotencyKey)
}

// CompleteWithdrawal settles one PENDING withdrawal: status CAS plus the
// balance debit happen in the same guarded update, so a concurrent second
// approval is reported as AlreadyProcessed instead of double-debiting.
func (r *LedgerRepository) CompleteWithdrawal(ctx context.Context, withdrawalID uuid.UUID, mpesaReference *string) (*ProcedureResult, error) {
	return r.call(ctx,
		`SELECT complete_withdrawal($1, $2)`,
		withdrawalID, mpesaReference)
}
