package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopan-drive/config"
	"gopan-drive/internal/auth"
)

func newRouter(cfg *config.JWTConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(cfg), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("username"))
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.JWTConfig{Secret: "secret", Expiration: "1h"}
	r := newRouter(cfg)
	token, err := auth.GenerateToken("u1", "alice", cfg)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		query  string
		status int
		body   string
	}{
		{"missing", "", "", http.StatusUnauthorized, "Authorization header required"},
		{"bad format", "Token " + token, "", http.StatusUnauthorized, "Invalid authorization header format"},
		{"bad token", "Bearer nope", "", http.StatusUnauthorized, "Invalid token"},
		{"bearer", "Bearer " + token, "", http.StatusOK, "alice"},
		{"query", "", "?token=" + token, http.StatusOK, "alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestAuthMiddlewareExpired(t *testing.T) {
	cfg := &config.JWTConfig{Secret: "secret", Expiration: "-1h"}
	token, err := auth.GenerateToken("u1", "alice", cfg)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	newRouter(cfg).ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Token expired")
}
