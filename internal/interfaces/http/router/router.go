package router

import (
	"github.com/gin-gonic/gin"
	"github.com/pricing/backend/internal/infrastructure/logger"
	"github.com/pricing/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
		registrars: make([]RouteRegistrar, 0),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes under /api/<version>
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// EngineConfig holds the middleware settings of the HTTP engine
type EngineConfig struct {
	Mode           string // gin mode: debug, release or test
	TrustedProxies []string
	CORS           middleware.CORSConfig
	Tracing        middleware.TracingConfig
	// QuietPaths are access-logged at debug level, typically health probes.
	QuietPaths     []string
	// Auth requires bearer tokens when set.
	Auth           *middleware.AuthConfig
}

// NewEngine creates a gin engine with the standard middleware chain:
// recovery, request ID, tracing, request logging, CORS and optionally
// bearer authentication.
func NewEngine(cfg EngineConfig, log *zap.Logger) (*gin.Engine, error) {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(logger.Recovery(log))
	engine.Use(middleware.RequestID())
	if cfg.Tracing.Enabled {
		engine.Use(middleware.Tracing(cfg.Tracing))
		engine.Use(middleware.SpanEnricher())
	}
	engine.Use(logger.GinMiddleware(log,
		logger.WithQuietPaths(cfg.QuietPaths...),
		logger.WithPathParams("id"),
	))
	engine.Use(middleware.CORSWithConfig(cfg.CORS))
	if cfg.Auth != nil {
		engine.Use(middleware.Auth(*cfg.Auth))
	}

	return engine, nil
}
