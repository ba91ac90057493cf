package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"packcore/internal/core/apperror"
	"packcore/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		status, body := errorResponse(c, err)
		failIdempotency(c, status, body)
		c.JSON(status, body)
	}
}

func errorResponse(c *gin.Context, err error) (int, gin.H) {
	if appErr, ok := apperror.AsAppError(err); ok {
		if appErr.Err != nil {
			logger.Error(c.Request.Context(), "request error",
				"code", appErr.Code,
				"cause", appErr.Err,
			)
		}
		return appErr.HTTPStatus, gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
			"details": appErr.Details,
		}
	}

	logger.Error(c.Request.Context(), "unhandled error", "error", err)

	return http.StatusInternalServerError, gin.H{
		"code":    apperror.CodeInternal,
		"message": "Internal server error",
		"details": map[string]any{
			"request_id": c.GetString(ctxKeyRequestID),
		},
	}
}

// failIdempotency records the error response for replay (best-effort).
func failIdempotency(c *gin.Context, status int, body any) {
	key, store, ok := idempotencyFrom(c)
	if !ok {
		return
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return
	}
	if err := store.FailKey(c.Request.Context(), key, status, "application/json", raw); err != nil {
		logger.Warn(c.Request.Context(), "failed to store idempotent error response", "key", key, "error", err)
	}
}
