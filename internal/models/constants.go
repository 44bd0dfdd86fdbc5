package models

import "math"

// Business limits for the M-Pesa rail, in KES. The amount bounds are hard
// limits, not warnings.
const (
	MinTipAmount        = 10.0
	MaxTipAmount        = 150000.0
	MinWithdrawalAmount = 100.0

	// PlatformFeeRate is the cut retained from every completed tip.
	PlatformFeeRate = 0.05
)

// Roles carried in access tokens. Only roles above viewer may approve
// withdrawals.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

// ComputePlatformFee returns the fee for a gross amount using floor
// semantics: fee(999) = 49, not 50.
func ComputePlatformFee(amount float64) float64 {
	return math.Floor(amount * PlatformFeeRate)
}
