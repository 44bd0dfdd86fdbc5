package mpesa

import (
	"encoding/json"
	"fmt"
	"time"
)

// CallbackEnvelope is the exact shape Daraja POSTs to the webhook:
// {Body: {stkCallback: {...}}}. Nothing outside this package should touch
// these field names; the rest of the pipeline consumes SettlementNotice.
type CallbackEnvelope struct {
	Body struct {
		StkCallback StkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

type MetadataItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value,omitempty"`
}

// SettlementNotice is the provider-neutral intent extracted from a
// callback. ResultCode zero means the charge settled on the payer's side.
type SettlementNotice struct {
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	ReceiptNumber     string
	Amount            float64
	PhoneNumber       string
	TransactionDate   string
	RawPayload        json.RawMessage
}

// Succeeded reports whether the payer-side charge settled successfully.
func (n *SettlementNotice) Succeeded() bool {
	return n.ResultCode == 0
}

// ParseCallback decodes the webhook body and flattens the metadata items.
// It does not judge the business outcome; malformed JSON is the only
// parse-level failure.
func ParseCallback(raw []byte) (*SettlementNotice, error) {
	var envelope CallbackEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("mpesa: malformed callback payload: %w", err)
	}

	cb := envelope.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return nil, fmt.Errorf("mpesa: callback missing CheckoutRequestID")
	}

	notice := &SettlementNotice{
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
		RawPayload:        json.RawMessage(raw),
	}

	if cb.CallbackMetadata != nil {
		for _, item := range cb.CallbackMetadata.Item {
			switch item.Name {
			case "MpesaReceiptNumber":
				if s, ok := item.Value.(string); ok {
					notice.ReceiptNumber = s
				}
			case "Amount":
				switch v := item.Value.(type) {
				case float64:
					notice.Amount = v
				case string:
					fmt.Sscanf(v, "%f", &notice.Amount)
				}
			case "PhoneNumber":
				switch v := item.Value.(type) {
				case float64:
					notice.PhoneNumber = fmt.Sprintf("%.0f", v)
				case string:
					notice.PhoneNumber = v
				}
			case "TransactionDate":
				switch v := item.Value.(type) {
				case float64:
					notice.TransactionDate = fmt.Sprintf("%.0f", v)
				case string:
					notice.TransactionDate = v
				}
			}
		}
	}

	return notice, nil
}

// FormatTransactionDate converts the M-Pesa timestamp (YYYYMMDDHHMMSS)
// to RFC3339 for audit metadata. Falls back to now for missing or
// unparseable values.
func FormatTransactionDate(raw string) string {
	if t, err := time.Parse("20060102150405", raw); err == nil {
		return t.UTC().Format(time.RFC3339)
	}
	return time.Now().UTC().Format(time.RFC3339)
}
