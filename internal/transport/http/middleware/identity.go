package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pleader/internal/transport/http/response"
)

const (
	// UserIDHeader carries the caller identity. Authentication is handled
	// upstream; the service trusts this header.
	UserIDHeader = "X-User-ID"

	ContextUserIDKey = "userID"
)

// Identity resolves the caller's user id from the request header and puts
// it on the gin context for handlers.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(UserIDHeader)
		if raw == "" {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing "+UserIDHeader+" header")
			c.Abort()
			return
		}
		userID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || userID == 0 {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid "+UserIDHeader+" header")
			c.Abort()
			return
		}
		c.Set(ContextUserIDKey, uint(userID))
		c.Next()
	}
}
