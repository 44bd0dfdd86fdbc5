package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/tumalove/tumalove-backend/internal/http/handlers/common"
	"github.com/tumalove/tumalove-backend/internal/pkg/apperror"
)

// respondServiceError maps a service error onto an HTTP response. AppError
// carries its own status; anything else is masked as a 500.
func respondServiceError(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		common.RespondError(c, appErr.HTTPStatus, appErr.Message)
		return
	}
	common.RespondInternalError(c, "")
}
