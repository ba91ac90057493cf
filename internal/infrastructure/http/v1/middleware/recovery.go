// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"packcore/internal/core/apperror"
	"packcore/pkg/logger"
)

// Recovery turns a handler panic into a 500 JSON response.
// The stack trace is logged, never returned.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					"method", c.Request.Method,
					"path", c.FullPath(),
					"panic", r,
					"stack", string(debug.Stack()),
				)

				err := apperror.NewInternal(fmt.Errorf("panic: %v", r)).
					WithDetail("request_id", c.GetString(ctxKeyRequestID))
				_ = c.Error(err)
				if c.Writer.Written() {
					c.Abort()
					return
				}
				status, body := errorResponse(c, err)
				failIdempotency(c, status, body)
				c.AbortWithStatusJSON(status, body)
			}
		}()
		c.Next()
	}
}
