package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tumalove/tumalove-backend/internal/dto"
	"github.com/tumalove/tumalove-backend/internal/http/handlers/common"
	"github.com/tumalove/tumalove-backend/internal/models"
	"github.com/tumalove/tumalove-backend/internal/observer"
	"github.com/tumalove/tumalove-backend/internal/pkg/apperror"
	"github.com/tumalove/tumalove-backend/internal/service"
)

type PaymentHandler struct {
	payments *service.PaymentService
	watcher  *observer.Observer
}

func NewPaymentHandler(payments *service.PaymentService, watcher *observer.Observer) *PaymentHandler {
	return &PaymentHandler{payments: payments, watcher: watcher}
}

// InitiateStkPush POST /api/payments/stk-push
func (h *PaymentHandler) InitiateStkPush(c *gin.Context) {
	var req struct {
		PhoneNumber      string  `json:"phone_number" binding:"required"`
		Amount           float64 `json:"amount" binding:"required,gt=0"`
		CreatorID        string  `json:"creator_id" binding:"required"`
		SupporterName    string  `json:"supporter_name"`
		SupporterMessage string  `json:"supporter_message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "phone_number, amount and creator_id are required")
		return
	}

	creatorID, err := uuid.Parse(req.CreatorID)
	if err != nil {
		common.RespondBadRequest(c, "invalid creator_id")
		return
	}

	tx, err := h.payments.InitiateTip(c.Request.Context(), service.TipRequest{
		PhoneNumber:   req.PhoneNumber,
		Amount:        req.Amount,
		CreatorID:     creatorID,
		SupporterName: req.SupporterName,
		Message:       req.SupporterMessage,
		ClientKey:     c.ClientIP(),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.StkPushResponse{
		CheckoutRequestID: tx.CheckoutRequestID,
		MerchantRequestID: tx.MerchantRequestID,
		Amount:            tx.Amount,
		Status:            tx.Status,
	})
}

// GetStatus GET /api/payments/:checkoutId/status
func (h *PaymentHandler) GetStatus(c *gin.Context) {
	checkoutID := c.Param("checkoutId")
	if checkoutID == "" {
		common.RespondBadRequest(c, "checkout id is required")
		return
	}

	tx, err := h.payments.GetStatus(c.Request.Context(), checkoutID)
	if err != nil {
		if apperror.IsNotFound(err) {
			common.RespondNotFound(c, "transaction not found")
			return
		}
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, statusResponse(tx))
}

// statusResponse shapes a transaction for the payer-facing status
// surfaces. REVIEW is an internal state: to the payer a flagged attempt
// is indistinguishable from one still pending.
func statusResponse(tx *models.Transaction) dto.PaymentStatusResponse {
	status := tx.Status
	if status == models.TransactionStatusReview {
		status = models.TransactionStatusPending
	}
	return dto.PaymentStatusResponse{
		CheckoutRequestID: tx.CheckoutRequestID,
		Status:            status,
		Amount:            tx.Amount,
		MpesaCode:         tx.MpesaCode,
		SupporterName:     tx.SupporterName,
		UpdatedAt:         tx.UpdatedAt,
	}
}

// AwaitStatus GET /api/payments/:checkoutId/await
//
// Long poll: blocks until the attempt reaches a terminal status or the
// watch window closes. A closed window is not an error; the payment may
// still settle and the client is told to keep checking.
func (h *PaymentHandler) AwaitStatus(c *gin.Context) {
	checkoutID := c.Param("checkoutId")
	if checkoutID == "" {
		common.RespondBadRequest(c, "checkout id is required")
		return
	}

	// The attempt must exist before a watch is opened.
	if _, err := h.payments.GetStatus(c.Request.Context(), checkoutID); err != nil {
		if apperror.IsNotFound(err) {
			common.RespondNotFound(c, "transaction not found")
			return
		}
		respondServiceError(c, err)
		return
	}

	result, err := h.watcher.Await(c.Request.Context(), checkoutID)
	if err != nil && result.Outcome != observer.OutcomeUnknown {
		respondServiceError(c, err)
		return
	}

	resp := gin.H{"outcome": result.Outcome}
	if result.Transaction != nil {
		resp["transaction"] = statusResponse(result.Transaction)
	}
	c.JSON(http.StatusOK, resp)
}

// ListTransactions GET /api/payments/transactions
func (h *PaymentHandler) ListTransactions(c *gin.Context) {
	creatorID, err := common.CurrentCreatorID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)

	transactions, err := h.payments.ListCreatorTransactions(c.Request.Context(), creatorID, limit, offset)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}
