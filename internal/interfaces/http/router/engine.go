package router

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/erp/fulfillment/internal/infrastructure/auth"
	"github.com/erp/fulfillment/internal/infrastructure/logger"
	"github.com/erp/fulfillment/internal/infrastructure/telemetry"
	"github.com/erp/fulfillment/internal/interfaces/http/dto"
	"github.com/erp/fulfillment/internal/interfaces/http/handler"
	"github.com/erp/fulfillment/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// EngineConfig holds everything needed to build the HTTP engine
type EngineConfig struct {
	Logger         *zap.Logger
	JWTService     *auth.JWTService
	Tracing        middleware.TracingConfig
	Metrics        *telemetry.FulfillmentMetrics // nil disables /metrics
	MetricsPath    string
	MaxBodySize    int64
	TrustedProxies []string
	System         *handler.SystemHandler
	Handlers       Handlers
}

// NewEngine builds the gin engine with the middleware chain and every route.
// The chain runs recovery, request ID, security headers, body limit, tracing,
// access log, metrics, JWT and span enrichment, in that order.
func NewEngine(cfg EngineConfig) (*gin.Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.JWTService == nil {
		return nil, errors.New("router: JWT service is required")
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if err := middleware.SetupValidator(); err != nil {
		return nil, fmt.Errorf("register validators: %w", err)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("set trusted proxies: %w", err)
	}

	opsPaths := []string{"/health", "/api/v1/health", cfg.MetricsPath}

	engine.Use(
		logger.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.Secure(),
		middleware.BodyLimit(cfg.MaxBodySize),
		middleware.Tracing(cfg.Tracing),
		logger.GinMiddleware(cfg.Logger, opsPaths...),
	)
	if cfg.Metrics != nil {
		engine.Use(cfg.Metrics.GinMiddleware())
	}

	jwtCfg := middleware.DefaultJWTConfig(cfg.JWTService)
	jwtCfg.SkipPaths = append(jwtCfg.SkipPaths, cfg.MetricsPath)
	jwtCfg.Logger = cfg.Logger
	engine.Use(
		middleware.JWTAuthMiddlewareWithConfig(jwtCfg),
		middleware.SpanEnricher(),
	)

	if cfg.System != nil {
		engine.GET("/health", cfg.System.Health)
		engine.GET("/api/v1/health", cfg.System.Health)
	}
	if cfg.Metrics != nil {
		engine.GET(cfg.MetricsPath, gin.WrapH(cfg.Metrics.Handler()))
	}
	engine.NoRoute(func(c *gin.Context) {
		var h handler.BaseHandler
		h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, "Route not found")
	})

	var groups []*DomainGroup
	h := cfg.Handlers
	if h.Order != nil {
		groups = append(groups, OrderRoutes(h.Order))
	}
	if h.Payment != nil {
		groups = append(groups, PaymentRoutes(h.Payment))
	}
	if h.Inventory != nil {
		groups = append(groups, InventoryRoutes(h.Inventory))
	}
	if h.Admin != nil {
		groups = append(groups, AdminRoutes(h.Admin))
	}
	for _, r := range Mount(engine, "v1", groups...) {
		cfg.Logger.Debug("Route mounted",
			zap.String("domain", r.Domain),
			zap.String("method", r.Method),
			zap.String("path", r.Path),
		)
	}

	return engine, nil
}
