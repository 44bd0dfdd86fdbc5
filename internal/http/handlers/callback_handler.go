package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tumalove/tumalove-backend/internal/http/handlers/common"
	"github.com/tumalove/tumalove-backend/internal/logger"
	"github.com/tumalove/tumalove-backend/internal/pkg/apperror"
	"github.com/tumalove/tumalove-backend/internal/service"
)

// maxCallbackBody bounds the webhook body; real Daraja callbacks are
// well under 4KB.
const maxCallbackBody = 64 * 1024

type CallbackHandler struct {
	callbacks *service.CallbackService
}

func NewCallbackHandler(callbacks *service.CallbackService) *CallbackHandler {
	return &CallbackHandler{callbacks: callbacks}
}

// HandleMpesaCallback POST /api/payments/mpesa/callback
//
// Response codes steer the provider's redelivery: 200 acknowledges the
// callback (durably handled or permanently unprocessable), 404 marks a
// checkout id this system never issued, and 5xx asks for a retry after a
// transient failure.
func (h *CallbackHandler) HandleMpesaCallback(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil {
		common.RespondBadRequest(c, "failed to read request body")
		return
	}

	outcome, err := h.callbacks.HandleCallback(c.Request.Context(), raw)
	if err != nil {
		switch {
		case apperror.IsValidation(err):
			// Malformed payloads never become processable; acknowledge so
			// the provider stops retrying. The audit trail has the details.
			c.JSON(http.StatusOK, gin.H{"ResultCode": 1, "ResultDesc": "Rejected"})
		case apperror.IsNotFound(err):
			common.RespondNotFound(c, "transaction not found")
		default:
			logger.Log.WithError(err).Error("callback processing failed")
			common.RespondError(c, http.StatusServiceUnavailable, "temporarily unable to process callback")
		}
		return
	}

	logger.Log.WithField("outcome", string(outcome)).Info("mpesa callback handled")
	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}
