package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	c := NewClient(Config{
		BaseURL:        baseURL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		Passkey:        "passkey123",
		Shortcode:      "174379",
		CallbackURL:    "https://example.com/api/payments/mpesa/callback",
	})
	c.now = func() time.Time {
		return time.Date(2026, 9, 1, 14, 30, 22, 0, time.UTC)
	}
	return c
}

func tokenResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"access_token": "test-token",
		"expires_in":   "3599",
	})
}

func TestClient_RequestCharge_Success(t *testing.T) {
	var captured stkPushRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "key", user)
			assert.Equal(t, "secret", pass)
			tokenResponse(w)
		case "/mpesa/stkpush/v1/processrequest":
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			json.NewEncoder(w).Encode(map[string]string{
				"ResponseCode":      "0",
				"CheckoutRequestID": "ws_CO_010920261430221234",
				"MerchantRequestID": "29115-34620561-1",
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	result, err := c.RequestCharge(context.Background(), "254712345678", 1000, "tip_abc_1", "Tip Payment")
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_010920261430221234", result.CheckoutRequestID)
	assert.Equal(t, "29115-34620561-1", result.MerchantRequestID)

	assert.Equal(t, "174379", captured.BusinessShortCode)
	assert.Equal(t, "20260901143022", captured.Timestamp)
	assert.Equal(t, "CustomerPayBillOnline", captured.TransactionType)
	assert.Equal(t, int64(1000), captured.Amount)
	assert.Equal(t, "254712345678", captured.PhoneNumber)
	assert.Equal(t, "254712345678", captured.PartyA)
	assert.Equal(t, "174379", captured.PartyB)
	assert.Equal(t, "tip_abc_1", captured.AccountReference)

	wantPassword := base64.StdEncoding.EncodeToString([]byte("174379" + "passkey123" + "20260901143022"))
	assert.Equal(t, wantPassword, captured.Password)
}

func TestClient_RequestCharge_TokenCached(t *testing.T) {
	var tokenCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			atomic.AddInt32(&tokenCalls, 1)
			tokenResponse(w)
		case "/mpesa/stkpush/v1/processrequest":
			json.NewEncoder(w).Encode(map[string]string{
				"ResponseCode":      "0",
				"CheckoutRequestID": "ws_CO_1",
			})
		}
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	ctx := context.Background()

	_, err := c.RequestCharge(ctx, "254712345678", 100, "r1", "Tip Payment")
	require.NoError(t, err)
	_, err = c.RequestCharge(ctx, "254712345678", 200, "r2", "Tip Payment")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))
}

func TestClient_RequestCharge_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			tokenResponse(w)
		case "/mpesa/stkpush/v1/processrequest":
			json.NewEncoder(w).Encode(map[string]string{
				"ResponseCode": "1",
				"errorMessage": "Invalid MSISDN",
			})
		}
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.RequestCharge(context.Background(), "254712345678", 100, "r1", "Tip Payment")
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "Invalid MSISDN")
}

func TestClient_RequestCharge_StaleTokenRefreshedOnce(t *testing.T) {
	var pushCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			tokenResponse(w)
		case "/mpesa/stkpush/v1/processrequest":
			if atomic.AddInt32(&pushCalls, 1) == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{
				"ResponseCode":      "0",
				"CheckoutRequestID": "ws_CO_retry",
			})
		}
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	result, err := c.RequestCharge(context.Background(), "254712345678", 100, "r1", "Tip Payment")
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_retry", result.CheckoutRequestID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&pushCalls))
}

func TestClient_RequestCharge_AmountTruncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			tokenResponse(w)
		case "/mpesa/stkpush/v1/processrequest":
			var req stkPushRequest
			json.NewDecoder(r.Body).Decode(&req)
			// Daraja only accepts whole shillings.
			assert.Equal(t, int64(999), req.Amount)
			json.NewEncoder(w).Encode(map[string]string{
				"ResponseCode":      "0",
				"CheckoutRequestID": "ws_CO_1",
			})
		}
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.RequestCharge(context.Background(), "254712345678", 999.75, "r1", "Tip Payment")
	assert.NoError(t, err)
}

func TestClient_TokenRequestFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.RequestCharge(context.Background(), "254712345678", 100, "r1", "Tip Payment")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "token request returned 403")
}
