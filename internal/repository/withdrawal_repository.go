package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tumalove/tumalove-backend/internal/models"
)

var ErrWithdrawalNotFound = errors.New("withdrawal not found")

type WithdrawalRepository struct {
	db *sqlx.DB
}

func NewWithdrawalRepository(db *sqlx.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := r.db.GetContext(ctx, &w, `SELECT * FROM withdrawals WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWithdrawalNotFound
	}
	return &w, err
}

// ListByCreator returns a creator's withdrawal history, newest first.
// withinDays <= 0 lists everything; the dashboard default is a 30-day
// window.
func (r *WithdrawalRepository) ListByCreator(ctx context.Context, creatorID uuid.UUID, withinDays int) ([]models.Withdrawal, error) {
	var withdrawals []models.Withdrawal
	if withinDays > 0 {
		err := r.db.SelectContext(ctx, &withdrawals, `
			SELECT * FROM withdrawals
			WHERE creator_id = $1 AND created_at >= NOW() - ($2 || ' days')::interval
			ORDER BY created_at DESC
		`, creatorID, withinDays)
		return withdrawals, err
	}

	err := r.db.SelectContext(ctx, &withdrawals, `
		SELECT * FROM withdrawals WHERE creator_id = $1 ORDER BY created_at DESC
	`, creatorID)
	return withdrawals, err
}

// ListPending returns the approval queue, oldest first.
func (r *WithdrawalRepository) ListPending(ctx context.Context) ([]models.Withdrawal, error) {
	var withdrawals []models.Withdrawal
	err := r.db.SelectContext(ctx, &withdrawals, `
		SELECT * FROM withdrawals WHERE status = $1 ORDER BY created_at ASC
	`, models.WithdrawalStatusPending)
	return withdrawals, err
}
