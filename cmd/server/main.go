package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/nba-projections/internal/api"
	"github.com/jstittsworth/nba-projections/internal/api/middleware"
	"github.com/jstittsworth/nba-projections/internal/ingest"
	"github.com/jstittsworth/nba-projections/internal/projection"
	"github.com/jstittsworth/nba-projections/internal/services"
	"github.com/jstittsworth/nba-projections/internal/train"
	"github.com/jstittsworth/nba-projections/pkg/config"
	"github.com/jstittsworth/nba-projections/pkg/database"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Setup logging
	if cfg.IsDevelopment() {
		logrus.SetLevel(logrus.DebugLevel)
		gin.SetMode(gin.DebugMode)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
		gin.SetMode(gin.ReleaseMode)
	}
	logger := logrus.StandardLogger()

	// Connect to database
	db, err := database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Connect to Redis
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logrus.Fatalf("Failed to parse Redis URL: %v", err)
	}
	redisClient := redis.NewClient(opt)
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logrus.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Initialize services
	cacheService := services.NewCacheService(redisClient)
	ingestor := ingest.NewIngestor(db, cfg.DataDir, logger)
	trainer := train.NewTrainer(db, cfg.ArtifactsDir, cfg.ArtifactKeep, logger)

	engine := projection.NewEngine()
	if err := engine.LoadFromDir(cfg.ArtifactsDir); err != nil {
		logrus.Warnf("Failed to load artifacts from %s: %v", cfg.ArtifactsDir, err)
	}
	if !engine.Ready() {
		logrus.Warn("No trained artifacts on disk; projections unavailable until first upload or retrain")
	}

	minutesStore, err := services.NewMinutesStore(cfg.ArtifactsDir)
	if err != nil {
		logrus.Fatalf("Failed to load minutes overrides: %v", err)
	}

	var feed *services.FeedFetcher
	if cfg.CSVFeedURL != "" {
		feed = services.NewFeedFetcher(cfg.CSVFeedURL, cfg.FeedTimeout,
			cfg.CircuitBreakerThreshold, cfg.FeedRatePerMinute, logger)
	}

	retrain := services.NewRetrainService(trainer, engine, ingestor, feed, cacheService,
		logger, cfg.RetrainSchedule, train.Options{
			WindowDays: cfg.TrainWindowDays,
			MinMinutes: cfg.TrainMinMinutes,
		})
	if err := retrain.Start(); err != nil {
		logrus.Errorf("Failed to start retrain service: %v", err)
	}
	defer retrain.Stop()

	uploadLimiter := services.NewUploadRateLimiter(cfg.UploadRateLimit, cfg.UploadRateWindow)

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS(cfg.CorsOrigins))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC(),
		})
	})

	// Setup API routes under /api/v1
	apiV1 := router.Group("/api/v1")
	api.SetupRoutes(apiV1, api.Deps{
		DB:       db,
		Cache:    cacheService,
		Engine:   engine,
		Ingestor: ingestor,
		Retrain:  retrain,
		Minutes:  minutesStore,
		Limiter:  uploadLimiter,
		Logger:   logger,
		Config:   cfg,
	})

	// Setup server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logrus.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}
