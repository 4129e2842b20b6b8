package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/yourorg/market-refresh/internal/client"
	"github.com/yourorg/market-refresh/internal/config"
	"github.com/yourorg/market-refresh/internal/handler"
	"github.com/yourorg/market-refresh/internal/kafka"
	"github.com/yourorg/market-refresh/internal/middleware"
	"github.com/yourorg/market-refresh/internal/model"
	"github.com/yourorg/market-refresh/internal/repository"
	"github.com/yourorg/market-refresh/internal/scheduler"
	"github.com/yourorg/market-refresh/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Set up logger
	logger, err := createLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	registerValidations(logger)

	// Validated at config load, so this parse cannot fail here
	historyStart, err := time.Parse(model.DateOnly, cfg.Market.HistoryStartDate)
	if err != nil {
		logger.Fatal("Invalid history start date", zap.Error(err))
	}

	// Open the run ledger database
	db, err := openRunDB(cfg.Storage.RunsDB)
	if err != nil {
		logger.Fatal("Failed to open run database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repositories
	runRepo := repository.NewRunRepository(db, logger)
	if err := runRepo.Migrate(context.Background()); err != nil {
		logger.Fatal("Failed to migrate run database", zap.Error(err))
	}
	priceStore := repository.NewPriceStore(cfg.Storage.PricesDir, logger)
	listingStore := repository.NewListingStore(cfg.Storage.ListingsDir, logger)

	// Initialize provider clients
	primaryClient := client.NewChartQuoteClient(cfg.Providers.Primary.BaseURL, cfg.Providers.Primary.Timeout, logger)
	secondaryClient := client.NewCSVQuoteClient(cfg.Providers.Secondary.BaseURL, cfg.Market.Name, cfg.Providers.Secondary.Timeout, logger)
	catalogClient := client.NewCatalogClient(cfg.Providers.Catalog.URLTemplate, cfg.Providers.Catalog.Timeout, logger)

	// Initialize event publishing
	var events service.EventPublisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(strings.Split(cfg.Kafka.Brokers, ","), cfg.Kafka.Topic, "market-refresh", logger)
		defer producer.Close()
		events = producer
	}

	// Initialize services
	primary := service.NewRetrySource("primary", primaryClient, cfg.Refresh.RetryCount, cfg.Refresh.RetryInterval, logger)
	secondary := service.NewRetrySource("secondary", secondaryClient, cfg.Refresh.RetryCount, cfg.Refresh.RetryInterval, logger)
	refreshService := service.NewRefreshService(
		cfg.Market.Name,
		historyStart,
		cfg.Refresh.Concurrency,
		primary,
		secondary,
		listingStore,
		priceStore,
		runRepo,
		events,
		logger,
	)
	listingService := service.NewListingService(
		cfg.Market.Name,
		cfg.Market.Exchanges,
		catalogClient,
		listingStore,
		runRepo,
		events,
		logger,
	)

	// Initialize handlers
	refreshHandler := handler.NewRefreshHandler(refreshService, listingService, logger)
	runHandler := handler.NewRunHandler(refreshService, logger)

	// Start the daily refresh scheduler
	if cfg.Scheduler.Enabled {
		sched := scheduler.NewScheduler(refreshService, listingService, cfg.Scheduler.DailyAt, cfg.Scheduler.RefreshListings, logger)
		if err := sched.Start(); err != nil {
			logger.Fatal("Failed to start scheduler", zap.Error(err))
		}
		defer sched.Stop()
	}

	// Set up HTTP server with Gin
	router := setupRouter(refreshHandler, runHandler, logger, cfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Create a deadline for server shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited properly")
}

func createLogger(level, format string) (*zap.Logger, error) {
	// Parse log level
	var zapLevel zap.AtomicLevel
	switch level {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	encoding := format
	if encoding == "" {
		encoding = "json"
	}

	// Create logger config
	config := zap.Config{
		Level:            zapLevel,
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}

// registerValidations installs the custom binding validators used by
// request models.
func registerValidations(logger *zap.Logger) {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	err := v.RegisterValidation("symbol", func(fl validator.FieldLevel) bool {
		return model.ValidSymbol(fl.Field().String())
	})
	if err != nil {
		logger.Fatal("Failed to register symbol validation", zap.Error(err))
	}
}

func openRunDB(path string) (*sqlx.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return sqlx.Connect("sqlite3", path)
}

func setupRouter(
	refreshHandler *handler.RefreshHandler,
	runHandler *handler.RunHandler,
	logger *zap.Logger,
	cfg *config.Config,
) *gin.Engine {
	router := gin.New()

	// Use middlewares
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// API routes
	v1 := router.Group("/api/v1")
	{
		// Run history routes
		runs := v1.Group("/runs")
		{
			runs.GET("", runHandler.ListRuns)
			runs.GET("/latest", runHandler.LatestRun)
		}

		// Refresh routes
		refresh := v1.Group("/refresh")
		{
			refresh.GET("/status", refreshHandler.Status)

			// Protected refresh triggers
			refreshAuth := refresh.Group("")
			refreshAuth.Use(middleware.JWTAuth(cfg.Auth.JWTSecret, logger))
			refreshAuth.POST("/prices", refreshHandler.RefreshPrices)
			refreshAuth.POST("/listings", refreshHandler.RefreshListings)
		}
	}
	return router
}
