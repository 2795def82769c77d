package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header names set by the upstream API gateway after it has
// authenticated the request. Authentication itself happens outside this
// service; we only trust the forwarded identity.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
)

// Identity extracts the caller identity forwarded by the gateway and
// stores it on the gin context for GetUserID.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderUserID)
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if _, err := uuid.Parse(id); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid user identity"})
			return
		}

		c.Set("userID", id)
		if email := c.GetHeader(HeaderUserEmail); email != "" {
			c.Set("userEmail", email)
		}

		c.Next()
	}
}
