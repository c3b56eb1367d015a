package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/meschain/marketsync/internal/bootstrap"
	"github.com/meschain/marketsync/internal/infrastructure/auth"
	"github.com/meschain/marketsync/internal/infrastructure/logger"
	"github.com/meschain/marketsync/internal/infrastructure/scheduler"
	"github.com/meschain/marketsync/internal/interfaces/http/handler"
	"github.com/meschain/marketsync/internal/interfaces/http/middleware"
	"github.com/meschain/marketsync/internal/interfaces/http/router"
)

// routes builds the gin engine with the public webhook and health routes and
// the JWT protected /api/v1 routes
func routes(a *bootstrap.App) *gin.Engine {
	cfg := a.Config
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		a.Logger.Warn("Invalid trusted proxies, trusting none", zap.Error(err))
		_ = engine.SetTrustedProxies(nil)
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.AccessLog(a.Logger))
	engine.Use(logger.Recovery(a.Logger))
	if a.Telemetry.Enabled() {
		engine.Use(middleware.Tracing(cfg.Telemetry.ServiceName))
		engine.Use(middleware.SpanEnricher())
	}
	engine.Use(middleware.HTTPMetrics(a.Telemetry.Meter("marketsync/http")))
	engine.Use(middleware.Profiling(a.Profiler.Enabled()))
	engine.Use(middleware.Secure())

	cors := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORSWithConfig(cors))

	systemHandler := handler.NewSystemHandler(cfg.App.Name, a.Version()).
		AddCheck("database", a.DB.Ping).
		AddCheck("orchestrator", func(context.Context) error {
			if !a.Orchestrator.IsRunning() {
				return scheduler.ErrSchedulerNotRunning
			}
			return nil
		}).
		AddInfo("database", func() (any, error) { return a.DB.PoolStats() }).
		AddInfo("rate_limits", func() (any, error) { return a.Limiter.Stats(), nil }).
		AddInfo("orchestrator", func() (any, error) { return a.Orchestrator.Stats(), nil })
	if cfg.Webhook.DedupeEnabled && cfg.Webhook.DedupeBackend != "memory" {
		systemHandler.AddCheck("redis", func(ctx context.Context) error {
			client, err := a.Caches.Client(ctx)
			if err != nil {
				return err
			}
			return client.Ping(ctx).Err()
		})
	}
	webhookHandler := handler.NewWebhookHandler(a.Ingestor, cfg.Webhook.MaxBodySize)
	syncHandler := handler.NewSyncHandler(a.Reporting, a.Orchestrator)
	mappingHandler := handler.NewCategoryMappingHandler(a.Mapping, a.Orchestrator)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Health checks and webhooks sit outside /api/v1: marketplaces authenticate by
	// signature, not by bearer token.
	health := router.NewDomainGroup("health", "")
	health.GET("/health", systemHandler.Health)
	health.GET("/ready", systemHandler.Ready)

	webhooks := router.NewDomainGroup("webhooks", "/webhooks").
		Use(middleware.BodyLimit(cfg.Webhook.MaxBodySize))
	webhooks.POST("/:marketplace", webhookHandler.Receive)

	r.RegisterPublic(health).RegisterPublic(webhooks)

	engine.GET("/swagger/*any", middleware.SwaggerProtection(middleware.SwaggerConfig{
		Enabled:     cfg.Swagger.Enabled,
		RequireAuth: cfg.Swagger.RequireAuth,
		AllowedIPs:  cfg.Swagger.AllowedIPs,
	}, middleware.BearerAuth(a.JWT, a.Logger)), ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.Use(middleware.BearerAuth(a.JWT, a.Logger))
	r.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		r.Use(middleware.RateLimitByKey(limiter, apiRateLimitKey))
	}

	read := middleware.RequireScope(auth.ScopeSyncRead)
	write := middleware.RequireScope(auth.ScopeSyncWrite)

	syncRoutes := router.NewDomainGroup("sync", "/sync")
	syncRoutes.GET("/stats", read, syncHandler.GetStats)
	syncRoutes.GET("/logs", read, syncHandler.GetLogs)
	syncRoutes.GET("/jobs", read, syncHandler.ListJobs)
	syncRoutes.GET("/jobs/:id", read, syncHandler.GetJob)
	syncRoutes.POST("/jobs/:id/cancel", write, syncHandler.CancelJob)
	syncRoutes.POST("/marketplaces/:marketplace/test-connection", write, syncHandler.TestConnection)
	syncRoutes.POST("/marketplaces/:marketplace/jobs/:jobType", write, syncHandler.TriggerJob)
	syncRoutes.POST("/marketplaces/:marketplace/resume", write, syncHandler.ResumeMarketplace)

	mappingRoutes := router.NewDomainGroup("category-mappings", "/category-mappings")
	mappingRoutes.GET("", read, mappingHandler.List)
	mappingRoutes.POST("", write, mappingHandler.Create)
	mappingRoutes.POST("/refresh/:marketplace", write, mappingHandler.Refresh)

	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", read, systemHandler.GetSystemInfo)

	manifest := r.Register(syncRoutes).
		Register(mappingRoutes).
		Register(systemRoutes).
		Setup()

	for group, count := range router.CountByGroup(manifest) {
		a.Logger.Debug("Route group mounted", zap.String("group", group), zap.Int("routes", count))
	}
	a.Logger.Info("Routes registered",
		zap.Int("count", len(manifest)),
		zap.Strings("groups", router.GroupNames(manifest)),
		zap.String("api_prefix", r.APIPrefix()),
	)
	return engine
}

// apiRateLimitKey limits per token subject, falling back to the client IP
func apiRateLimitKey(c *gin.Context) string {
	if subject := middleware.GetJWTSubject(c); subject != "" {
		return fmt.Sprintf("sub:%s", subject)
	}
	return "ip:" + c.ClientIP()
}
