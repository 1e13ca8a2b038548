package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"jastip/internal/config"
	"jastip/internal/database"
	"jastip/internal/handler"
	"jastip/internal/middleware"
	"jastip/internal/monitor"
	"jastip/internal/notify"
	"jastip/internal/redis"
	"jastip/internal/repository"
	"jastip/internal/service/pricing"
	"jastip/internal/service/stocklock"
	"jastip/internal/service/validation"
	iutils "jastip/internal/utils"
	"jastip/pkg/log"
	"jastip/pkg/queue"
)

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Fatal("Failed to load config")
	}

	if err := log.Init(log.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxAge:     cfg.Log.MaxAge,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Fatal("Failed to initialize logger")
	}

	config.WatchConfig(func(newCfg *config.Config) {
		log.WithFields(map[string]interface{}{
			"log_level": newCfg.Log.Level,
		}).Info("Config reloaded")
	})

	if err := database.Init(cfg); err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Fatal("Failed to initialize database")
	}
	defer database.Close()

	if err := redis.Init(cfg); err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Fatal("Failed to initialize redis")
	}
	defer redis.Close()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	tracer, err := monitor.NewTracer(&monitor.TracerConfig{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: "1.0.0",
		Environment:    cfg.Server.Mode,
		JaegerEndpoint: cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Fatal("Failed to initialize tracer")
	}

	db := database.GetDB()
	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	// Negative-lookup guard for product reads.
	if err := productRepo.WarmLookupFilter(context.Background()); err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Warn("Failed to warm product lookup filter")
	}

	rateProvider, err := pricing.NewRedisRateProvider(redis.GetClient(), cfg.Order.Pricing.RateCacheTTL)
	if err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Fatal("Failed to create commission rate provider")
	}
	engine := pricing.NewEngineWithConfig(rateProvider, pricing.EngineConfig{
		FallbackCommissionPercent: cfg.Order.Pricing.CommissionFallbackPercent,
		MinDPAmount:               cfg.Order.Pricing.MinDPAmount,
		DefaultDPPercent:          cfg.Order.Pricing.DefaultDPPercent,
	})

	locker := stocklock.NewMemoryLocker(productRepo, cfg.Order.StockLock.TTL)

	metrics := monitor.NewMetricsCollector(cfg.Metrics.Namespace)

	messageQueue := queue.NewMemoryQueue(nil)
	defer messageQueue.Close()

	notifier := notify.NewQueueNotifier(messageQueue, metrics)
	consumer := notify.NewConsumer(messageQueue)

	validationSvc := validation.NewService(orderRepo, engine, locker, notifier, validation.Config{
		PaymentBase:   cfg.Order.Validation.PaymentBase,
		SLA:           cfg.Order.Validation.SLA,
		LockExtension: cfg.Order.StockLock.ExtendBy,
		Metrics:       metrics,
		Tracer:        tracer,
	})

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	if err := consumer.Start(rootCtx); err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Fatal("Failed to start notification consumer")
	}

	sweeper := stocklock.NewSweeper(locker, cfg.Order.StockLock.SweepInterval, metrics)
	go sweeper.Start(rootCtx)

	jwtManager := iutils.NewJWTManager(
		cfg.Security.JWT.Secret,
		cfg.Security.JWT.Issuer,
		cfg.Security.JWT.Expire,
	)

	router := setupRouter(cfg, metrics, jwtManager, validationSvc, locker)

	server := &http.Server{
		Addr:           cfg.Server.GetAddr(),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.WithFields(map[string]interface{}{
			"addr": server.Addr,
			"mode": cfg.Server.Mode,
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithFields(map[string]interface{}{
				"error": err.Error(),
			}).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	rootCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Fatal("Server forced to shutdown")
	}

	if err := tracer.Shutdown(ctx); err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Error("Failed to shut down tracer")
	}

	log.Info("Server exited")
}

func setupRouter(cfg *config.Config, metrics *monitor.MetricsCollector, jwtManager *iutils.JWTManager, validationSvc validation.Service, locker stocklock.Locker) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS(cfg.Security))
	router.Use(metrics.HTTPMetrics())
	if cfg.RateLimit.Enabled {
		router.Use(middleware.IPRateLimit(cfg.RateLimit.PerIP.RPS, cfg.RateLimit.PerIP.Burst))
	}

	router.GET("/health", healthCheck)
	router.GET("/ping", ping)
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, monitor.Handler())
	}

	validationHandler := handler.NewValidationHandler(validationSvc)
	stockLockHandler := handler.NewStockLockHandler(locker)

	api := router.Group("/api")
	{
		v1 := api.Group("/v1")
		v1.Use(middleware.SellerAuth(jwtManager))
		{
			orders := v1.Group("/orders")
			{
				orders.POST("/:id/validate", validationHandler.Validate)
				orders.POST("/:id/validate-final", validationHandler.ValidateFinal)
				orders.GET("/overdue-validations", validationHandler.ListOverdue)
			}

			locks := v1.Group("/stock-locks")
			{
				locks.GET("", stockLockHandler.ListLocks)
				locks.GET("/health", stockLockHandler.Health)
				locks.GET("/:orderID", stockLockHandler.GetLock)
				locks.POST("/sweep", stockLockHandler.Sweep)
			}
		}
	}

	return router
}

func healthCheck(c *gin.Context) {
	dbErr := database.Health()
	redisErr := redis.Health()

	services := map[string]interface{}{
		"database": healthEntry(dbErr),
		"redis":    healthEntry(redisErr),
	}

	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"version":   "1.0.0",
		"services":  services,
	}

	if dbErr != nil || redisErr != nil {
		health["status"] = "error"
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}

	c.JSON(http.StatusOK, health)
}

func healthEntry(err error) map[string]interface{} {
	if err != nil {
		return map[string]interface{}{
			"healthy": false,
			"error":   err.Error(),
		}
	}
	return map[string]interface{}{
		"healthy": true,
	}
}

func ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "pong",
		"timestamp": time.Now().Unix(),
	})
}
