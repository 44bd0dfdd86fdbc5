package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tumalove/tumalove-backend/internal/models"
)

var ErrTransactionNotFound = errors.New("transaction not found")

type TransactionRepository struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts a PENDING transaction immediately after Daraja accepts
// the charge request, keyed by the checkout request id the callback will
// carry.
func (r *TransactionRepository) Create(ctx context.Context, t *models.Transaction) (*models.Transaction, error) {
	var created models.Transaction
	err := r.db.GetContext(ctx, &created, `
		INSERT INTO transactions (
			creator_id, checkout_request_id, merchant_request_id,
			amount, platform_fee, net_amount, phone_number,
			supporter_name, supporter_message, status, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING *
	`, t.CreatorID, t.CheckoutRequestID, t.MerchantRequestID,
		t.Amount, t.PlatformFee, t.NetAmount, t.PhoneNumber,
		t.SupporterName, t.SupporterMessage, models.TransactionStatusPending, t.Metadata)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// GetByCheckoutID looks up the transaction a callback refers to.
func (r *TransactionRepository) GetByCheckoutID(ctx context.Context, checkoutID string) (*models.Transaction, error) {
	var t models.Transaction
	err := r.db.GetContext(ctx, &t, `SELECT * FROM transactions WHERE checkout_request_id = $1`, checkoutID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	return &t, err
}

// MarkFailed transitions PENDING -> FAILED. The status guard in the WHERE
// clause makes a redelivered failure callback a no-op.
func (r *TransactionRepository) MarkFailed(ctx context.Context, checkoutID, reason string, resultCode int) (bool, error) {
	details, _ := json.Marshal(map[string]any{
		"failure_reason": reason,
		"failure_code":   resultCode,
	})

	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = $2,
		    supporter_message = 'Failed: ' || $3,
		    metadata = COALESCE(metadata, '{}'::jsonb) || $4::jsonb,
		    updated_at = NOW()
		WHERE checkout_request_id = $1 AND status = $5
	`, checkoutID, models.TransactionStatusFailed, reason, details, models.TransactionStatusPending)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

// MarkReview flags a mismatched callback for manual review. The requested
// amount and phone stay authoritative; only the metadata and the audit log
// record what the callback claimed.
func (r *TransactionRepository) MarkReview(ctx context.Context, checkoutID string, callbackAmount float64, callbackPhone string) (bool, error) {
	details, _ := json.Marshal(map[string]any{
		"marked_for_review": true,
		"callback_mismatch": map[string]any{
			"callback_amount": callbackAmount,
			"callback_phone":  callbackPhone,
		},
	})

	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = $2,
		    is_suspicious = TRUE,
		    metadata = COALESCE(metadata, '{}'::jsonb) || $3::jsonb,
		    updated_at = NOW()
		WHERE checkout_request_id = $1 AND status = $4
	`, checkoutID, models.TransactionStatusReview, details, models.TransactionStatusPending)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

// AppendMetadata merges supplementary callback data (raw payload, formatted
// settlement timestamp) into the metadata column. The ledger credit does
// not depend on it.
func (r *TransactionRepository) AppendMetadata(ctx context.Context, checkoutID string, patch json.RawMessage) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET metadata = COALESCE(metadata, '{}'::jsonb) || $2::jsonb,
		    updated_at = NOW()
		WHERE checkout_request_id = $1
	`, checkoutID, patch)
	return err
}

// ListByCreator returns recent transactions for a creator's dashboard.
func (r *TransactionRepository) ListByCreator(ctx context.Context, creatorID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	var list []models.Transaction
	err := r.db.SelectContext(ctx, &list, `
		SELECT * FROM transactions WHERE creator_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, creatorID, limit, offset)
	return list, err
}
