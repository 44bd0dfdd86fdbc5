package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone_EquivalentForms(t *testing.T) {
	forms := []string{
		"0712345678",
		"+254712345678",
		"254712345678",
		"254 712 345 678",
		"0712 345 678",
		"712345678",
	}

	for _, form := range forms {
		assert.Equal(t, "254712345678", NormalizePhone(form), "input %q", form)
	}
}

func TestNormalizePhone_LocalZeroOne(t *testing.T) {
	assert.Equal(t, "254110123456", NormalizePhone("0110123456"))
}

func TestValidatePhone(t *testing.T) {
	got, err := ValidatePhone("0712345678")
	assert.NoError(t, err)
	assert.Equal(t, "254712345678", got)

	_, err = ValidatePhone("12345")
	assert.Error(t, err)

	_, err = ValidatePhone("254912345678")
	assert.Error(t, err)

	_, err = ValidatePhone("")
	assert.Error(t, err)
}

func TestValidateTipAmount(t *testing.T) {
	assert.Error(t, ValidateTipAmount(9))
	assert.NoError(t, ValidateTipAmount(10))
	assert.NoError(t, ValidateTipAmount(150000))
	assert.Error(t, ValidateTipAmount(150001))
}
