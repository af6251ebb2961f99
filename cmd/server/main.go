package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	feesapp "github.com/sims/backend/internal/application/fees"
	"github.com/sims/backend/internal/infrastructure/cache"
	"github.com/sims/backend/internal/infrastructure/config"
	"github.com/sims/backend/internal/infrastructure/logger"
	"github.com/sims/backend/internal/infrastructure/persistence"
	"github.com/sims/backend/internal/interfaces/http/handler"
	"github.com/sims/backend/internal/interfaces/http/middleware"
	"github.com/sims/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting SIMS Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	structureRepo := persistence.NewGormFeeStructureRepository(db.DB)
	assignmentRepo := persistence.NewGormFeeAssignmentRepository(db.DB)
	discountRepo := persistence.NewGormDiscountDefinitionRepository(db.DB)
	fundingRepo := persistence.NewGormFundingArrangementRepository(db.DB)
	adjustmentRepo := persistence.NewGormFeeAdjustmentRepository(db.DB)
	paymentRepo := persistence.NewGormFeePaymentRepository(db.DB)
	txManager := persistence.NewGormTxManager(db.DB)

	// Idempotency store: Redis when reachable, in-memory otherwise
	storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
	idempotencyStore, err := storeFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	// Initialize application services
	catalogService := feesapp.NewCatalogService(structureRepo, discountRepo, fundingRepo)
	assignmentService := feesapp.NewAssignmentService(
		assignmentRepo, structureRepo, discountRepo, fundingRepo, adjustmentRepo, txManager,
	)
	paymentService := feesapp.NewPaymentService(
		assignmentRepo, paymentRepo, txManager, idempotencyStore, log,
	)

	// Initialize handlers
	catalogHandler := handler.NewCatalogHandler(catalogService)
	assignmentHandler := handler.NewAssignmentHandler(assignmentService)
	paymentHandler := handler.NewPaymentHandler(paymentService)

	// Set gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Register custom validators
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Attach a request ID to every request
	// 2. Recovery - Recover from panics with structured logging
	// 3. Request logging - Log every request with zap
	// 4. Secure - Security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. RateLimit - Apply rate limiting (if enabled)
	// 8. Tenant - Resolve the tenant from the X-Tenant-ID header
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (per client IP)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Tenant resolution for all API routes; health and system endpoints are
	// exempt via the skip list
	tenantConfig := middleware.DefaultTenantConfig()
	tenantConfig.Logger = log
	tenantConfig.SkipPaths = append(tenantConfig.SkipPaths, "/api/v1/ping", "/api/v1/fees/ping")
	engine.Use(middleware.TenantMiddlewareWithConfig(tenantConfig))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Fees domain
	feesRoutes := router.NewDomainGroup("fees", "/fees")
	feesRoutes.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "fees service ready"})
	})

	// Fee structure routes
	feesRoutes.POST("/structures", catalogHandler.CreateFeeStructure)
	feesRoutes.GET("/structures", catalogHandler.ListFeeStructures)
	feesRoutes.GET("/structures/:id", catalogHandler.GetFeeStructure)
	feesRoutes.PUT("/structures/:id", catalogHandler.UpdateFeeStructure)
	feesRoutes.POST("/structures/:id/deactivate", catalogHandler.DeactivateFeeStructure)

	// Discount definition routes
	feesRoutes.POST("/discounts", catalogHandler.CreateDiscount)
	feesRoutes.GET("/discounts", catalogHandler.ListDiscounts)
	feesRoutes.PUT("/discounts/:id", catalogHandler.UpdateDiscount)
	feesRoutes.POST("/discounts/:id/deactivate", catalogHandler.DeactivateDiscount)

	// Funding arrangement routes
	feesRoutes.POST("/funding", catalogHandler.CreateFunding)
	feesRoutes.GET("/funding", catalogHandler.ListFunding)
	feesRoutes.POST("/funding/:id/deactivate", catalogHandler.DeactivateFunding)

	// Assignment routes
	feesRoutes.POST("/assignments", assignmentHandler.AssignFee)
	feesRoutes.GET("/assignments", assignmentHandler.ListAssignments)
	feesRoutes.GET("/assignments/pending-balance", assignmentHandler.GetPendingBalance)
	feesRoutes.GET("/assignments/:id", assignmentHandler.GetAssignment)
	feesRoutes.GET("/assignments/:id/adjustments", assignmentHandler.ListAdjustments)
	feesRoutes.POST("/assignments/:id/discount", assignmentHandler.ApplyDiscount)
	feesRoutes.POST("/assignments/:id/waive-late-fee", assignmentHandler.WaiveLateFee)
	feesRoutes.POST("/assignments/:id/deactivate", assignmentHandler.DeactivateAssignment)

	// Payment routes
	feesRoutes.POST("/payments", paymentHandler.Pay)
	feesRoutes.GET("/payments", paymentHandler.ListPayments)
	feesRoutes.GET("/receipts/:receipt_no", paymentHandler.GetReceipt)

	r.Register(feesRoutes)

	// System routes
	systemHandler := handler.NewSystemHandler()
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)
	r.Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
