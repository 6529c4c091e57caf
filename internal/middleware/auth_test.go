package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(apiKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ping", OperatorAuthMiddleware(apiKey), func(c *gin.Context) {
		if _, ok := c.Get("request_time"); !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestOperatorAuthMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		target string
		header string
		want   int
	}{
		{"header key", "secret", "/ping", "secret", http.StatusNoContent},
		{"query key", "secret", "/ping?api_key=secret", "", http.StatusNoContent},
		{"missing key", "secret", "/ping", "", http.StatusUnauthorized},
		{"wrong key", "secret", "/ping", "nope", http.StatusUnauthorized},
		{"not configured", "", "/ping", "secret", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			w := httptest.NewRecorder()
			newRouter(tt.key).ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
