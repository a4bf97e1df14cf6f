package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const ginLoggerKey = "logger"

// AccessLogOption tunes the request logging middleware.
type AccessLogOption func(*accessLog)

type accessLog struct {
	quietPrefixes []string
	pathParams    []string
}

// WithQuietPaths logs requests whose path starts with one of prefixes at
// debug level. Probes hit the health endpoints every few seconds.
func WithQuietPaths(prefixes ...string) AccessLogOption {
	return func(a *accessLog) {
		a.quietPrefixes = append(a.quietPrefixes, prefixes...)
	}
}

// WithPathParams copies the named route parameters onto the request logger,
// e.g. "id" for /ventures/:id/assets.
func WithPathParams(names ...string) AccessLogOption {
	return func(a *accessLog) {
		a.pathParams = append(a.pathParams, names...)
	}
}

func (a *accessLog) quiet(path string) bool {
	for _, p := range a.quietPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// GinMiddleware logs one access line per request and publishes a request
// scoped logger on both the gin context and the request context, so
// allocation and collection code pick it up through FromContext.
func GinMiddleware(logger *zap.Logger, opts ...AccessLogOption) gin.HandlerFunc {
	cfg := &accessLog{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *gin.Context) {
		start := time.Now()

		fields := []zap.Field{
			zap.String("request_id", GetRequestID(c.Request.Context())),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		}
		if route := c.FullPath(); route != "" {
			fields = append(fields, zap.String("route", route))
		}
		for _, name := range cfg.pathParams {
			if v := c.Param(name); v != "" {
				fields = append(fields, zap.String(name, v))
			}
		}
		reqLogger := logger.With(fields...)
		SetGinLogger(c, reqLogger)

		c.Next()

		status := c.Writer.Status()
		out := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			out = append(out, zap.String("query", q))
		}
		if len(c.Errors) > 0 {
			out = append(out, zap.Strings("errors", c.Errors.Errors()))
		}

		if ce := reqLogger.Check(accessLevel(status, cfg.quiet(c.Request.URL.Path)), "HTTP Request"); ce != nil {
			ce.Write(out...)
		}
	}
}

func accessLevel(status int, quiet bool) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	case quiet:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// Recovery turns a panic in a handler into a 500 with the standard error
// envelope and logs the stack.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			requestID := GetRequestID(c.Request.Context())
			logger.Error("Panic recovered",
				zap.String("request_id", requestID),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", rec),
				zap.Stack("stacktrace"),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":       "ERR_INTERNAL",
					"message":    "internal server error",
					"request_id": requestID,
				},
			})
		}()
		c.Next()
	}
}

// SetGinLogger makes l the request logger of c and of its request context.
func SetGinLogger(c *gin.Context, l *zap.Logger) {
	c.Set(ginLoggerKey, l)
	c.Request = c.Request.WithContext(WithContext(c.Request.Context(), l))
}

// GetGinLogger returns the request logger set by GinMiddleware, or a no-op
// logger outside of it.
func GetGinLogger(c *gin.Context) *zap.Logger {
	if v, ok := c.Get(ginLoggerKey); ok {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	return zap.NewNop()
}
