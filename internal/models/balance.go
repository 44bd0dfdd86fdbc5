package models

import (
	"time"

	"github.com/google/uuid"
)

// CreatorBalance is the materialized ledger aggregate for one creator.
// It is mutated only by the ledger procedures (payment credit, withdrawal
// debit), never directly by application code.
type CreatorBalance struct {
	CreatorID        uuid.UUID `db:"creator_id" json:"creator_id"`
	AvailableBalance float64   `db:"available_balance" json:"available_balance"`
	PendingBalance   float64   `db:"pending_balance" json:"pending_balance"`
	LifetimeEarnings float64   `db:"lifetime_earnings" json:"lifetime_earnings"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}
