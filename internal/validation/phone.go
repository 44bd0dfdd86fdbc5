package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/tumalove/tumalove-backend/internal/models"
)

// NormalizePhone converts a Kenyan phone number to the 2547XX/2541XX form
// the Daraja API expects. Handles 07XX/01XX, +2547XX, 2547XX and bare
// 9-digit 7XX/1XX inputs; spaces, dashes and the plus sign are stripped.
// "0712345678", "+254 712 345 678" and "254712345678" all normalize to
// the same value.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	switch {
	case strings.HasPrefix(cleaned, "0"):
		return "254" + cleaned[1:]
	case strings.HasPrefix(cleaned, "254"):
		return cleaned
	case len(cleaned) == 9 && (cleaned[0] == '7' || cleaned[0] == '1'):
		return "254" + cleaned
	}

	// Unknown shape: return the digits and let ValidatePhone reject it.
	return cleaned
}

// ValidatePhone normalizes and validates a payer phone number, returning
// the canonical form.
func ValidatePhone(phone string) (string, error) {
	normalized := NormalizePhone(phone)
	if len(normalized) != 12 || !strings.HasPrefix(normalized, "254") {
		return "", fmt.Errorf("invalid Kenyan phone number: use 07XXXXXXXX or +2547XXXXXXXX")
	}
	if normalized[3] != '7' && normalized[3] != '1' {
		return "", fmt.Errorf("invalid Kenyan phone number: use 07XXXXXXXX or +2547XXXXXXXX")
	}
	return normalized, nil
}

// ValidateTipAmount enforces the hard business limits on a tip.
func ValidateTipAmount(amount float64) error {
	if amount < models.MinTipAmount {
		return fmt.Errorf("minimum amount is KES %.0f", models.MinTipAmount)
	}
	if amount > models.MaxTipAmount {
		return fmt.Errorf("maximum amount is KES %.0f", models.MaxTipAmount)
	}
	return nil
}
