package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/apperror"
)

// ErrUnauthenticated is returned when a handler behind the Identity
// middleware somehow has no user on the context.
var ErrUnauthenticated = apperror.New(http.StatusUnauthorized, "unauthorized")

// GetUserID returns the authenticated user's ID.
func GetUserID(c *gin.Context) (string, error) {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, nil
		}
	}
	return "", ErrUnauthenticated
}

// GetUserEmail returns the authenticated user's email or empty string.
func GetUserEmail(c *gin.Context) string {
	if v, ok := c.Get("userEmail"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
