package middleware

import (
	"crypto/subtle"
	"net/http"
	"time"

	"content-market/internal/response"

	"github.com/gin-gonic/gin"
)

// OperatorAuthMiddleware admits requests carrying the operator API key in the
// X-API-Key header or the api_key query parameter. With no key configured
// every request is refused.
func OperatorAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			response.AbortWithError(c, http.StatusServiceUnavailable, "Operator API key is not configured")
			return
		}

		provided := c.GetHeader("X-API-Key")
		if provided == "" {
			provided = c.Query("api_key")
		}
		if provided == "" {
			response.AbortWithError(c, http.StatusUnauthorized, "Missing api_key")
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			response.AbortWithError(c, http.StatusUnauthorized, "Invalid api_key")
			return
		}

		c.Set("request_time", time.Now())
		c.Next()
	}
}
