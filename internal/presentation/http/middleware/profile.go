// Package middleware provides HTTP middleware for the presentation layer.
package middleware

import (
	"github.com/gin-gonic/gin"
)

const profileIDKey = "profileId"

// ProfileMiddleware extracts the visitor profile ID from the
// X-Profile-ID header. A missing header is not an error; the handler
// mints a fresh profile and echoes its ID back on the response so the
// caller can persist it.
func ProfileMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		profileID := c.GetHeader("X-Profile-ID")
		if profileID == "" {
			profileID = c.Query("pid")
		}
		c.Set(profileIDKey, profileID)
		c.Next()
	}
}

// GetProfileID retrieves the raw profile ID from gin context. Empty
// means the caller has no profile yet.
func GetProfileID(c *gin.Context) string {
	id, _ := c.Get(profileIDKey)
	s, _ := id.(string)
	return s
}
