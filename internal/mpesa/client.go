package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"
)

// ErrRejected is returned when Daraja refuses a charge request. The payer
// never received a prompt, so the caller may safely retry with corrected
// input.
var ErrRejected = errors.New("mpesa: request rejected")

// tokenSkew refreshes the cached access token slightly before Daraja
// expires it.
const tokenSkew = 60 * time.Second

// Client talks to the Safaricom Daraja API: OAuth token issuance and the
// STK push charge request. It never retries a charge on its own, since a
// duplicate push would raise a second prompt on the payer's device.
type Client struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	passkey        string
	shortcode      string
	callbackURL    string
	httpClient     *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time

	// now is swappable in tests to pin the password timestamp.
	now func() time.Time
}

// Config carries the Daraja credentials and endpoints.
type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Passkey        string
	Shortcode      string
	CallbackURL    string
}

// NewClient creates a Daraja client.
func NewClient(cfg Config) *Client {
	return &Client{
		baseURL:        cfg.BaseURL,
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		passkey:        cfg.Passkey,
		shortcode:      cfg.Shortcode,
		callbackURL:    cfg.CallbackURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

// ChargeResult is the pair of identifiers Daraja issues for an accepted
// charge. CheckoutRequestID correlates the eventual callback.
type ChargeResult struct {
	CheckoutRequestID string
	MerchantRequestID string
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	ResponseCode      string `json:"ResponseCode"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	MerchantRequestID string `json:"MerchantRequestID"`
	ErrorMessage      string `json:"errorMessage"`
}

// RequestCharge submits an STK push for the given normalized phone and
// amount. A non-zero response code means the provider rejected the request
// and no transaction should be recorded.
func (c *Client) RequestCharge(ctx context.Context, phone string, amount float64, reference, description string) (*ChargeResult, error) {
	token, err := c.accessTokenValue(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString([]byte(c.shortcode + c.passkey + timestamp))

	payload := stkPushRequest{
		BusinessShortCode: c.shortcode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            int64(math.Floor(amount)),
		PartyA:            phone,
		PartyB:            c.shortcode,
		PhoneNumber:       phone,
		CallBackURL:       c.callbackURL,
		AccountReference:  reference,
		TransactionDesc:   description,
	}

	resp, err := c.postJSON(ctx, "/mpesa/stkpush/v1/processrequest", token, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// A 401 means the cached token went stale early; refresh once and retry
	// the submission. Daraja has not queued a prompt at this point.
	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		token, err = c.refreshToken(ctx)
		if err != nil {
			return nil, err
		}
		resp, err = c.postJSON(ctx, "/mpesa/stkpush/v1/processrequest", token, payload)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
	}

	var result stkPushResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("mpesa: malformed stk push response: %w", err)
	}

	if result.ResponseCode != "0" {
		reason := result.ErrorMessage
		if reason == "" {
			reason = "charge request not accepted"
		}
		return nil, fmt.Errorf("%w: %s", ErrRejected, reason)
	}
	if result.CheckoutRequestID == "" {
		return nil, fmt.Errorf("mpesa: accepted response missing CheckoutRequestID")
	}

	return &ChargeResult{
		CheckoutRequestID: result.CheckoutRequestID,
		MerchantRequestID: result.MerchantRequestID,
	}, nil
}

func (c *Client) postJSON(ctx context.Context, path, token string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("mpesa: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mpesa: charge request: %w", err)
	}
	return resp, nil
}

// accessTokenValue returns the cached token, fetching a fresh one when the
// cache is empty or near expiry.
func (c *Client) accessTokenValue(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.accessToken != "" && c.now().Before(c.tokenExpiry.Add(-tokenSkew)) {
		token := c.accessToken
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	return c.refreshToken(ctx)
}

func (c *Client) refreshToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("mpesa: token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mpesa: token request returned %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("mpesa: malformed token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("mpesa: token response missing access_token")
	}

	// Daraja reports expiry in seconds as a string ("3599").
	ttl := time.Hour
	if d, err := time.ParseDuration(body.ExpiresIn + "s"); err == nil && d > 0 {
		ttl = d
	}

	c.mu.Lock()
	c.accessToken = body.AccessToken
	c.tokenExpiry = c.now().Add(ttl)
	c.mu.Unlock()

	return body.AccessToken, nil
}
