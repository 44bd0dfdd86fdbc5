package models

import (
	"time"

	"github.com/google/uuid"
)

// Creator is the recipient of tips. Profile management lives in a separate
// service; this backend only needs to know the creator exists and where
// payouts go.
type Creator struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	Username           string    `db:"username" json:"username"`
	FullName           string    `db:"full_name" json:"full_name"`
	MpesaNumber        *string   `db:"mpesa_number" json:"mpesa_number,omitempty"`
	Role               string    `db:"role" json:"role"`
	VerificationStatus string    `db:"verification_status" json:"verification_status"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}
