package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "packcore/internal/core/context"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

// UserContext copies the operator identity set by the upstream gateway into
// the request context, where audit and cost history read it.
// Requests without the header stay anonymous.
func UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid := c.GetHeader(HeaderUserID); uid != "" {
			ctx := appctx.WithUser(c.Request.Context(), &appctx.UserContext{
				UserID: uid,
				Name:   c.GetHeader(HeaderUserName),
			})
			c.Request = c.Request.WithContext(ctx)
			c.Set("user_id", uid)
		}
		c.Next()
	}
}
