package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tumalove/tumalove-backend/internal/models"
)

var ErrCreatorNotFound = errors.New("creator not found")

type CreatorRepository struct {
	db *sqlx.DB
}

func NewCreatorRepository(db *sqlx.DB) *CreatorRepository {
	return &CreatorRepository{db: db}
}

func (r *CreatorRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Creator, error) {
	var c models.Creator
	err := r.db.GetContext(ctx, &c, `SELECT * FROM creators WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCreatorNotFound
	}
	return &c, err
}

func (r *CreatorRepository) GetByUsername(ctx context.Context, username string) (*models.Creator, error) {
	var c models.Creator
	err := r.db.GetContext(ctx, &c, `SELECT * FROM creators WHERE username = $1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCreatorNotFound
	}
	return &c, err
}
