package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tumalove/tumalove-backend/internal/models"
)

// BalanceRepository reads the materialized ledger aggregate. It has no
// write methods on purpose: balances move only through the ledger
// procedures.
type BalanceRepository struct {
	db *sqlx.DB
}

func NewBalanceRepository(db *sqlx.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

func (r *BalanceRepository) GetByCreator(ctx context.Context, creatorID uuid.UUID) (*models.CreatorBalance, error) {
	var b models.CreatorBalance
	err := r.db.GetContext(ctx, &b, `
		SELECT creator_id, available_balance, pending_balance, lifetime_earnings, updated_at
		FROM creator_balances WHERE creator_id = $1
	`, creatorID)
	if errors.Is(err, sql.ErrNoRows) {
		// A creator without a row simply has not earned yet.
		return &models.CreatorBalance{CreatorID: creatorID}, nil
	}
	return &b, err
}
