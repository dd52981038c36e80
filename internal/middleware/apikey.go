package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/ecm-agenda-api/pkg/errors"
	"github.com/noah-isme/ecm-agenda-api/pkg/response"
)

// APIKeyHeader carries the shared client key.
const APIKeyHeader = "X-API-Key"

// APIKey rejects requests whose X-API-Key header does not match key. An
// empty key disables the check.
func APIKey(key string) gin.HandlerFunc {
	expected := []byte(key)
	return func(c *gin.Context) {
		if len(expected) == 0 {
			c.Next()
			return
		}
		provided := c.GetHeader(APIKeyHeader)
		if provided == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing X-API-Key header"))
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}
