package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tumalove/tumalove-backend/internal/logger"
	"github.com/tumalove/tumalove-backend/internal/pkg/apperror"
	"github.com/tumalove/tumalove-backend/internal/repository"
)

// ErrorHandler turns errors attached to the gin context into JSON
// responses, masking anything that smells internal.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last()

		logger.Log.WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("request error")

		statusCode := http.StatusInternalServerError
		message := "internal server error"

		var appErr *apperror.AppError
		switch {
		case errors.As(err.Err, &appErr):
			statusCode = appErr.HTTPStatus
			message = appErr.Message
		case errors.Is(err.Err, repository.ErrTransactionNotFound):
			statusCode = http.StatusNotFound
			message = "transaction not found"
		case errors.Is(err.Err, repository.ErrWithdrawalNotFound):
			statusCode = http.StatusNotFound
			message = "withdrawal not found"
		case errors.Is(err.Err, repository.ErrCreatorNotFound):
			statusCode = http.StatusNotFound
			message = "creator not found"
		default:
			if msg := err.Error(); msg != "" && !containsInternalKeywords(msg) {
				message = msg
			}
		}

		c.JSON(statusCode, gin.H{"error": message})
	}
}

// containsInternalKeywords reports whether an error message leaks
// infrastructure detail that must not reach clients.
func containsInternalKeywords(s string) bool {
	keywords := []string{
		"sql:",
		"database",
		"connection",
		"timeout",
		"internal",
		"panic",
		"runtime",
	}

	lowered := strings.ToLower(s)
	for _, keyword := range keywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}
