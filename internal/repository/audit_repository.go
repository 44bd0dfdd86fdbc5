package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// AuditRepository appends security-relevant events. Write-only from this
// service's perspective; external monitoring reads the table.
type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Insert(ctx context.Context, eventType string, creatorID *uuid.UUID, details any, severity string) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO security_audit_log (event_type, creator_id, details, severity)
		VALUES ($1, $2, $3, $4)
	`, eventType, creatorID, raw, severity)
	return err
}
