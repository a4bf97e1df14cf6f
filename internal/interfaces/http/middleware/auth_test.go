package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pricing/backend/internal/infrastructure/auth"
	"github.com/pricing/backend/internal/infrastructure/config"
	"github.com/pricing/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAuth(t *testing.T) {
	tokens := auth.NewTokenService(config.AuthConfig{
		JWTSecret: "0123456789abcdef0123456789abcdef",
		Issuer:    "pricing",
		TokenTTL:  time.Hour,
	})
	valid, _, err := tokens.Issue("billing-export", 0)
	require.NoError(t, err)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "pricing",
		Subject:   "billing-export",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}}).SignedString([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	core, logs := observer.New(zapcore.InfoLevel)
	router := gin.New()
	router.Use(RequestID())
	router.Use(logger.GinMiddleware(zap.New(core)))
	router.Use(Auth(AuthConfig{Validator: tokens, SkipPaths: []string{"/api/v1/system/health"}}))
	router.GET("/api/v1/system/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/v1/ventures/:id/assets", func(c *gin.Context) {
		logger.GetGinLogger(c).Info("report served")
		c.Status(http.StatusOK)
	})

	serve := func(path, authorization string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("health probe needs no token", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, serve("/api/v1/system/health", "").Code)
	})

	t.Run("missing token", func(t *testing.T) {
		w := serve("/api/v1/ventures/1/assets", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), `"code":"ERR_UNAUTHORIZED"`)
		assert.Equal(t, `Bearer realm="pricing"`, w.Header().Get("WWW-Authenticate"))
	})

	t.Run("wrong scheme", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve("/api/v1/ventures/1/assets", "Basic "+valid).Code)
	})

	t.Run("expired token", func(t *testing.T) {
		w := serve("/api/v1/ventures/1/assets", "Bearer "+expired)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), `"code":"ERR_TOKEN_EXPIRED"`)
	})

	t.Run("valid token tags the request logger", func(t *testing.T) {
		w := serve("/api/v1/ventures/1/assets", "Bearer "+valid)
		assert.Equal(t, http.StatusOK, w.Code)

		served := logs.FilterMessage("report served").All()
		require.Len(t, served, 1)
		assert.Equal(t, "billing-export", served[0].ContextMap()["subject"])
	})
}
