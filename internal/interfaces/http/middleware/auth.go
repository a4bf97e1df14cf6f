package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pricing/backend/internal/infrastructure/auth"
	"github.com/pricing/backend/internal/infrastructure/logger"
	"github.com/pricing/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

const (
	// ClaimsKey is the gin context key of the validated token claims
	ClaimsKey    = "auth_claims"
	bearerPrefix = "Bearer "
)

// TokenValidator checks a bearer token
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// AuthConfig holds the bearer token middleware configuration
type AuthConfig struct {
	Validator TokenValidator
	// SkipPaths are served without a token, typically health probes.
	SkipPaths []string
}

// Auth rejects requests without a valid bearer token with 401. The token
// subject is added to the request logger.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) || strings.TrimSpace(header[len(bearerPrefix):]) == "" {
			unauthorized(c, dto.ErrCodeUnauthorized, "Missing bearer token")
			return
		}

		claims, err := cfg.Validator.Validate(strings.TrimSpace(header[len(bearerPrefix):]))
		if err != nil {
			logger.GetGinLogger(c).Debug("Rejected bearer token", zap.Error(err))
			if errors.Is(err, auth.ErrExpiredToken) {
				unauthorized(c, dto.ErrCodeTokenExpired, "Token has expired")
				return
			}
			unauthorized(c, dto.ErrCodeUnauthorized, "Invalid bearer token")
			return
		}

		c.Set(ClaimsKey, claims)
		logger.SetGinLogger(c, logger.GetGinLogger(c).With(zap.String("subject", claims.Subject)))
		c.Next()
	}
}

func unauthorized(c *gin.Context, code, message string) {
	c.Header("WWW-Authenticate", `Bearer realm="pricing"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}
