package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	alertapp "github.com/pharmacy/backend/internal/application/alert"
	catalogapp "github.com/pharmacy/backend/internal/application/catalog"
	"github.com/pharmacy/backend/internal/application/ledger"
	salesapp "github.com/pharmacy/backend/internal/application/sales"
	stockapp "github.com/pharmacy/backend/internal/application/stock"
	"github.com/pharmacy/backend/internal/infrastructure/cache"
	"github.com/pharmacy/backend/internal/infrastructure/config"
	"github.com/pharmacy/backend/internal/infrastructure/lock"
	"github.com/pharmacy/backend/internal/infrastructure/logger"
	"github.com/pharmacy/backend/internal/infrastructure/persistence"
	"github.com/pharmacy/backend/internal/infrastructure/scheduler"
	"github.com/pharmacy/backend/internal/infrastructure/telemetry"
	"github.com/pharmacy/backend/internal/interfaces/http/handler"
	"github.com/pharmacy/backend/internal/interfaces/http/middleware"
	"github.com/pharmacy/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const (
	maxBodyBytes   = 1 << 20
	requestTimeout = 10 * time.Second
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

	log.Info("Starting pharmacy ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Telemetry providers stay no-op when telemetry is disabled
	telemetryCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
	}
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer shutdownTelemetry(log, tracerProvider, meterProvider)

	ledgerMetrics, err := telemetry.NewLedgerMetrics(meterProvider.Meter(cfg.Telemetry.ServiceName))
	if err != nil {
		log.Fatal("Failed to create ledger metrics", zap.Error(err))
	}

	// Initialize database connection
	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Database.Driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
	}
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:    cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL: cfg.Telemetry.DBLogFullSQL,
		DBSystem:   dbSystem(cfg.Database.Driver),
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	locker, closeLocker, err := lock.NewItemLocker(cfg.Stock, cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to initialize item locker", zap.Error(err))
	}
	defer func() {
		if err := closeLocker(); err != nil {
			log.Error("Error closing item locker", zap.Error(err))
		}
	}()

	// Initialize repositories
	itemRepo := persistence.NewGormItemRepository(db.DB)
	purchaserRepo := persistence.NewGormPurchaserRepository(db.DB)
	lotRepo := persistence.NewGormLotRepository(db.DB)
	movementRepo := persistence.NewGormMovementRepository(db.DB)
	saleRepo := persistence.NewGormSaleRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Initialize application services
	ledgerOpts := []ledger.Option{
		ledger.WithMetrics(ledgerMetrics),
		ledger.WithMaxConflictRetries(cfg.Stock.MaxConflictRetries),
		ledger.WithLabelAttempts(cfg.Stock.LabelAttempts),
	}
	stockService := stockapp.NewStockService(itemRepo, lotRepo, movementRepo, txScope, locker, ledgerOpts...)
	saleService := salesapp.NewSaleService(itemRepo, purchaserRepo, saleRepo, txScope, locker, ledgerOpts...)
	alertService := alertapp.NewAlertService(itemRepo, lotRepo, alertapp.Limits{
		LowStockLimit:  cfg.Stock.LowStockLimit,
		NearExpiryDays: cfg.Stock.NearExpiryDays,
	}, ledgerOpts...)
	retirementService := catalogapp.NewRetirementService(itemRepo, txScope, locker, ledgerOpts...)

	var sweeper *scheduler.AlertSweeper
	if cfg.Stock.AlertSweepInterval > 0 {
		sweepCfg := scheduler.DefaultSweepConfig()
		sweepCfg.Interval = cfg.Stock.AlertSweepInterval
		sweeper = scheduler.NewAlertSweeper(sweepCfg, alertService, ledgerMetrics, log)
		if err := sweeper.Start(context.Background()); err != nil {
			log.Fatal("Failed to start alert sweeper", zap.Error(err))
		}
	}

	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.Idempotency.RedisFallback),
	).CreateStore(cfg.Idempotency.Backend)
	if err != nil {
		log.Fatal("Failed to initialize idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()
	idempotentSales := salesapp.NewIdempotentSaleService(saleService, idempotencyStore, cfg.Idempotency.TTL)

	// Setup Gin
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		logger.GinMiddleware(log),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		middleware.TracingAttributeInjector(),
		middleware.SpanErrorMarker(),
		middleware.CORSWithConfig(corsCfg),
		middleware.Secure(),
		middleware.BodyLimit(maxBodyBytes),
		middleware.Timeout(requestTimeout),
	)

	router.Mount(engine, router.Handlers{
		Stock:  handler.NewStockHandler(stockService, retirementService),
		Sales:  handler.NewSalesHandler(saleService, idempotentSales),
		Alerts: handler.NewAlertHandler(alertService),
		Health: handler.NewHealthHandler(db, version),
	})

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
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}
	if sweeper != nil {
		if err := sweeper.Stop(ctx); err != nil {
			log.Error("Alert sweeper did not stop in time", zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}

func dbSystem(driver string) string {
	if driver == "sqlite" {
		return "sqlite"
	}
	return "postgresql"
}

func shutdownTelemetry(log *zap.Logger, tp *telemetry.TracerProvider, mp *telemetry.MeterProvider) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mp.Shutdown(ctx); err != nil {
		log.Error("Failed to shutdown meter provider", zap.Error(err))
	}
	if err := tp.Shutdown(ctx); err != nil {
		log.Error("Failed to shutdown tracer provider", zap.Error(err))
	}
}
