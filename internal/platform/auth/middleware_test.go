package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return s
}

func newGuardedRouter(secret []byte) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/api")
	g.Use(RequireAuth(secret))
	g.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	g.DELETE("/admin-only", RequireRole("admin"), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func doRequest(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	secret := []byte("test-secret")
	r := newGuardedRouter(secret)

	claims := jwt.MapClaims{
		"sub":  "alice",
		"role": "staff",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}

	t.Run("missing header is rejected", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/api/ping", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/api/ping", "not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("token signed with another secret is rejected", func(t *testing.T) {
		token := signToken(t, []byte("other-secret"), claims)
		w := doRequest(r, http.MethodGet, "/api/ping", token)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		expired := jwt.MapClaims{
			"sub": "alice", "role": "staff",
			"exp": time.Now().Add(-time.Hour).Unix(),
		}
		w := doRequest(r, http.MethodGet, "/api/ping", signToken(t, secret, expired))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token passes", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/api/ping", signToken(t, secret, claims))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "pong", w.Body.String())
	})
}

func TestRequireRole(t *testing.T) {
	secret := []byte("test-secret")
	r := newGuardedRouter(secret)

	staff := signToken(t, secret, jwt.MapClaims{
		"sub": "alice", "role": "staff", "exp": time.Now().Add(time.Hour).Unix(),
	})
	admin := signToken(t, secret, jwt.MapClaims{
		"sub": "bob", "role": "admin", "exp": time.Now().Add(time.Hour).Unix(),
	})

	w := doRequest(r, http.MethodDelete, "/api/admin-only", staff)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(r, http.MethodDelete, "/api/admin-only", admin)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
