package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/tumalove/tumalove-backend/internal/models"
	"github.com/tumalove/tumalove-backend/internal/repository"
	"github.com/tumalove/tumalove-backend/internal/service"
)

func TestPaymentHandler_InitiateStkPush_MissingFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &PaymentHandler{payments: nil}
	r.POST("/payments/stk-push", handler.InitiateStkPush)

	req, _ := http.NewRequest("POST", "/payments/stk-push", strings.NewReader(`{"amount": 100}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentHandler_InitiateStkPush_InvalidCreatorID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &PaymentHandler{payments: nil}
	r.POST("/payments/stk-push", handler.InitiateStkPush)

	body := `{"phone_number": "0712345678", "amount": 100, "creator_id": "not-a-uuid"}`
	req, _ := http.NewRequest("POST", "/payments/stk-push", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "creator_id")
}

func TestPaymentHandler_ListTransactions_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &PaymentHandler{payments: nil}
	r.GET("/payments/transactions", handler.ListTransactions)

	req, _ := http.NewRequest("GET", "/payments/transactions", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWithdrawalHandler_Request_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &WithdrawalHandler{withdrawals: nil}
	r.POST("/withdrawals", handler.Request)

	req, _ := http.NewRequest("POST", "/withdrawals", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWithdrawalHandler_Balance_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &WithdrawalHandler{withdrawals: nil}
	r.GET("/balance", handler.Balance)

	req, _ := http.NewRequest("GET", "/balance", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWSHandler_MissingCheckoutID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &WSHandler{}
	r.GET("/ws", handler.Handle)

	req, _ := http.NewRequest("GET", "/ws", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// stubTransactionSource backs a real PaymentService in handler tests.
type stubTransactionSource struct {
	tx  *models.Transaction
	err error
}

func (s *stubTransactionSource) Create(ctx context.Context, t *models.Transaction) (*models.Transaction, error) {
	return t, nil
}

func (s *stubTransactionSource) ListByCreator(ctx context.Context, creatorID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	return nil, nil
}

func (s *stubTransactionSource) GetByCheckoutID(ctx context.Context, checkoutID string) (*models.Transaction, error) {
	return s.tx, s.err
}

func newStatusRouter(source *stubTransactionSource) *gin.Engine {
	gin.SetMode(gin.TestMode)
	payments := service.NewPaymentService(nil, source, nil, nil)
	handler := NewPaymentHandler(payments, nil)
	r := gin.New()
	r.GET("/payments/:checkoutId/status", handler.GetStatus)
	return r
}

func TestPaymentHandler_GetStatus_UnknownCheckoutID(t *testing.T) {
	r := newStatusRouter(&stubTransactionSource{err: repository.ErrTransactionNotFound})

	req, _ := http.NewRequest("GET", "/payments/ws_CO_missing/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "transaction not found")
}

func TestPaymentHandler_GetStatus_ReviewShownAsPending(t *testing.T) {
	r := newStatusRouter(&stubTransactionSource{tx: &models.Transaction{
		CheckoutRequestID: "ws_CO_flagged",
		Status:            models.TransactionStatusReview,
		IsSuspicious:      true,
		Amount:            1000,
	}})

	req, _ := http.NewRequest("GET", "/payments/ws_CO_flagged/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), models.TransactionStatusPending)
	assert.NotContains(t, w.Body.String(), models.TransactionStatusReview)
	assert.NotContains(t, w.Body.String(), "is_suspicious")
}
