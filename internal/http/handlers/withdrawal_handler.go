package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tumalove/tumalove-backend/internal/dto"
	"github.com/tumalove/tumalove-backend/internal/http/handlers/common"
	"github.com/tumalove/tumalove-backend/internal/service"
)

type WithdrawalHandler struct {
	withdrawals *service.WithdrawalService
}

func NewWithdrawalHandler(withdrawals *service.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawals: withdrawals}
}

// Request POST /api/withdrawals
//
// The idempotency key comes from the Idempotency-Key header, generated
// once per user action on the client. A retried submission with the same
// key returns the original withdrawal.
func (h *WithdrawalHandler) Request(c *gin.Context) {
	creatorID, err := common.CurrentCreatorID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		Amount float64 `json:"amount" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "amount must be positive")
		return
	}

	idempotencyKey := c.GetHeader("Idempotency-Key")
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	withdrawal, err := h.withdrawals.Request(c.Request.Context(), service.WithdrawalRequest{
		CreatorID:      creatorID,
		Amount:         req.Amount,
		IdempotencyKey: idempotencyKey,
		ClientKey:      creatorID.String(),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, withdrawal)
}

// History GET /api/withdrawals?days=30
func (h *WithdrawalHandler) History(c *gin.Context) {
	creatorID, err := common.CurrentCreatorID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	days := common.ParseIntQuery(c, "days", 30)

	withdrawals, err := h.withdrawals.History(c.Request.Context(), creatorID, days)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"withdrawals": withdrawals})
}

// Balance GET /api/balance
func (h *WithdrawalHandler) Balance(c *gin.Context) {
	creatorID, err := common.CurrentCreatorID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	balance, err := h.withdrawals.Balance(c.Request.Context(), creatorID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BalanceResponse{
		CreatorID:        balance.CreatorID,
		AvailableBalance: balance.AvailableBalance,
		PendingBalance:   balance.PendingBalance,
		LifetimeEarnings: balance.LifetimeEarnings,
		UpdatedAt:        balance.UpdatedAt,
	})
}

// Approve POST /api/admin/withdrawals/:id/approve
func (h *WithdrawalHandler) Approve(c *gin.Context) {
	role, err := common.CurrentRole(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	withdrawalID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		MpesaReference *string `json:"mpesa_reference"`
	}
	// The body is optional: approval without a reference is valid.
	_ = c.ShouldBindJSON(&req)

	withdrawal, err := h.withdrawals.Approve(c.Request.Context(), role, withdrawalID, req.MpesaReference)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, withdrawal)
}

// Pending GET /api/admin/withdrawals/pending
func (h *WithdrawalHandler) Pending(c *gin.Context) {
	queue, err := h.withdrawals.Queue(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"withdrawals": queue})
}
