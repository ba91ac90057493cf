// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"packcore/internal/app"
	"packcore/internal/infrastructure/http/v1/handlers"
	"packcore/internal/infrastructure/http/v1/middleware"
	"packcore/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Services are the wired domain services
	Services *app.Services

	// Logger for request logging
	Logger *logger.Logger

	// HealthChecks are probed by /health/ready
	HealthChecks map[string]handlers.Check

	// Idempotency enables X-Idempotency-Key handling when set
	Idempotency middleware.IdempotencyStore

	// AuditHistory exposes the audit trail when set
	AuditHistory handlers.AuditHistory

	// Debug switches gin to debug mode
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.HealthChecks)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.UserContext())
	if cfg.Idempotency != nil {
		v1.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()
	registerCatalogRoutes(v1, base, cfg)
	registerInventoryRoutes(v1, base, cfg)
	registerOrderRoutes(v1, base, cfg)
	registerAuditRoutes(v1, base, cfg)

	return router
}

// registerCatalogRoutes registers materials and products.
func registerCatalogRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	svc := cfg.Services

	materials := handlers.NewMaterialHandler(base, svc.Materials, svc.Lots, svc.Costing)
	mg := rg.Group("/materials")
	{
		mg.GET("", materials.List)
		mg.POST("", materials.Create)
		mg.GET("/:id", materials.Get)
		mg.GET("/:id/lots", materials.Lots)
		mg.GET("/:id/fifo-preview", materials.FIFOPreview)
		mg.GET("/:id/conservation", materials.Conservation)
		mg.POST("/:id/admin-cost", materials.ApplyAdminCost)
		mg.GET("/:id/cost-divergence", materials.CostDivergence)
		mg.GET("/:id/cost-history", materials.CostHistory)
	}

	products := handlers.NewProductHandler(base, svc.Products)
	pg := rg.Group("/products")
	{
		pg.POST("", products.Create)
		pg.GET("/:id", products.Get)
		pg.GET("/:id/recipe", products.Recipe)
		pg.POST("/:id/recipe", products.AddRecipeLine)
	}
}

// registerInventoryRoutes registers purchases and the movement journal.
func registerInventoryRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	purchases := handlers.NewPurchaseHandler(base, cfg.Services.Purchases)
	rg.POST("/purchases/receipts", purchases.Receive)

	mv := handlers.NewMovementHandler(base, cfg.Services.Movements)
	rg.GET("/movements", mv.List)
	rg.GET("/movements/turnover", mv.Turnover)
}

// registerOrderRoutes registers sales and production orders.
func registerOrderRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	orders := handlers.NewOrderHandler(base, cfg.Services.SalesOrders)
	og := rg.Group("/orders")
	{
		og.POST("", orders.Create)
		og.GET("/:id", orders.Get)
		og.GET("/:id/provision", orders.Provision)
		og.POST("/:id/approve", orders.Approve)
		og.POST("/:id/transition", orders.Transition)
	}

	production := handlers.NewProductionOrderHandler(base, cfg.Services.ProductionOrders)
	pg := rg.Group("/production-orders")
	{
		pg.GET("", production.List)
		pg.GET("/:id", production.Get)
		pg.POST("/:id/drawdown", production.Drawdown)
		pg.POST("/:id/status", production.Status)
	}
}

// registerAuditRoutes registers the audit trail when a reader is configured.
func registerAuditRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.AuditHistory == nil {
		return
	}
	h := handlers.NewAuditHandler(base, cfg.AuditHistory)
	rg.GET("/audit/:entityType/:id", h.History)
}
