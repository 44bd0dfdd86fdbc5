package mpesa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCallback_Success(t *testing.T) {
	raw := []byte(`{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": "ws_CO_191220191020363925",
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": 1000.00},
						{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
						{"Name": "TransactionDate", "Value": 20191219102115},
						{"Name": "PhoneNumber", "Value": 254708374149}
					]
				}
			}
		}
	}`)

	notice, err := ParseCallback(raw)
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_191220191020363925", notice.CheckoutRequestID)
	assert.True(t, notice.Succeeded())
	assert.Equal(t, "NLJ7RT61SV", notice.ReceiptNumber)
	assert.Equal(t, float64(1000), notice.Amount)
	assert.Equal(t, "254708374149", notice.PhoneNumber)
	assert.Equal(t, "20191219102115", notice.TransactionDate)
	assert.JSONEq(t, string(raw), string(notice.RawPayload))
}

func TestParseCallback_Failure(t *testing.T) {
	raw := []byte(`{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": "ws_CO_191220191020363925",
				"ResultCode": 1032,
				"ResultDesc": "Request cancelled by user."
			}
		}
	}`)

	notice, err := ParseCallback(raw)
	require.NoError(t, err)
	assert.False(t, notice.Succeeded())
	assert.Equal(t, 1032, notice.ResultCode)
	assert.Equal(t, "Request cancelled by user.", notice.ResultDesc)
	assert.Empty(t, notice.ReceiptNumber)
}

func TestParseCallback_StringMetadataValues(t *testing.T) {
	// Some gateways stringify numeric metadata; both forms must parse.
	raw := []byte(`{
		"Body": {
			"stkCallback": {
				"CheckoutRequestID": "ws_CO_1",
				"ResultCode": 0,
				"ResultDesc": "ok",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": "1500"},
						{"Name": "MpesaReceiptNumber", "Value": "SIK7RIW2N1"},
						{"Name": "PhoneNumber", "Value": "254712345678"},
						{"Name": "TransactionDate", "Value": "20260901143022"}
					]
				}
			}
		}
	}`)

	notice, err := ParseCallback(raw)
	require.NoError(t, err)
	assert.Equal(t, float64(1500), notice.Amount)
	assert.Equal(t, "254712345678", notice.PhoneNumber)
	assert.Equal(t, "20260901143022", notice.TransactionDate)
}

func TestParseCallback_MalformedJSON(t *testing.T) {
	_, err := ParseCallback([]byte(`{not json`))
	assert.Error(t, err)
}

func TestParseCallback_MissingCheckoutID(t *testing.T) {
	_, err := ParseCallback([]byte(`{"Body": {"stkCallback": {"ResultCode": 0}}}`))
	assert.Error(t, err)
}

func TestFormatTransactionDate(t *testing.T) {
	assert.Equal(t, "2026-09-01T14:30:22Z", FormatTransactionDate("20260901143022"))

	// Unparseable input falls back to a current timestamp rather than
	// failing the pipeline.
	assert.NotEmpty(t, FormatTransactionDate("garbage"))
}
