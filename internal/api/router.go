package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/nba-projections/internal/api/handlers"
	"github.com/jstittsworth/nba-projections/internal/api/middleware"
	"github.com/jstittsworth/nba-projections/internal/ingest"
	"github.com/jstittsworth/nba-projections/internal/projection"
	"github.com/jstittsworth/nba-projections/internal/services"
	"github.com/jstittsworth/nba-projections/pkg/config"
	"github.com/jstittsworth/nba-projections/pkg/database"
)

// Deps carries everything the route handlers need.
type Deps struct {
	DB       *database.DB
	Cache    *services.CacheService
	Engine   *projection.Engine
	Ingestor *ingest.Ingestor
	Retrain  *services.RetrainService
	Minutes  *services.MinutesStore
	Limiter  *services.UploadRateLimiter
	Logger   *logrus.Logger
	Config   *config.Config
}

// SetupRoutes configures all API routes on the given router group
func SetupRoutes(group *gin.RouterGroup, deps Deps) {
	cacheTTL := deps.Config.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	projectionHandler := handlers.NewProjectionHandler(deps.Engine, deps.Minutes, deps.Cache, cacheTTL)
	uploadHandler := handlers.NewUploadHandler(deps.Ingestor, deps.Retrain, deps.Logger, deps.Config.MaxUploadBytes)
	libraryHandler := handlers.NewLibraryHandler(deps.DB, deps.Cache, deps.Config.DataDir, deps.Retrain.ArtifactsDir(), cacheTTL)
	trainHandler := handlers.NewTrainHandler(deps.DB, deps.Retrain)
	minutesHandler := handlers.NewMinutesHandler(deps.Minutes)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Engine)

	// Projection endpoints
	group.GET("/projections", projectionHandler.GetProjection)
	group.POST("/projections/batch", projectionHandler.BatchProjections)
	group.GET("/players", projectionHandler.ListPlayers)
	group.GET("/players/:name/rates", projectionHandler.GetPlayerRates)
	group.GET("/opponents", projectionHandler.ListOpponents)
	group.GET("/opponents/:team/adjustments", projectionHandler.GetOpponentAdjustments)

	// Daily data endpoints
	daily := group.Group("/daily")
	{
		daily.POST("/upload", middleware.UploadRateLimit(deps.Limiter), uploadHandler.UploadDaily)
		daily.GET("/library", libraryHandler.ListLibrary)
		daily.GET("/download/:date", libraryHandler.DownloadDay)
		daily.GET("/projections/latest.csv", libraryHandler.LatestProjectionsCSV)
	}

	// Training endpoints
	group.POST("/train", trainHandler.TriggerTrain)
	group.GET("/train/runs", trainHandler.ListRuns)

	// Minutes override endpoints
	minutes := group.Group("/minutes")
	{
		minutes.GET("/overrides", minutesHandler.GetOverrides)
		minutes.POST("/upload", middleware.UploadRateLimit(deps.Limiter), minutesHandler.Upload)
		minutes.GET("/template.csv", minutesHandler.Template)
	}

	// Status endpoint
	group.GET("/status", healthHandler.Status)
}
