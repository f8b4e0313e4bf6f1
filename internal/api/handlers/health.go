package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jstittsworth/nba-projections/internal/models"
	"github.com/jstittsworth/nba-projections/internal/projection"
	"github.com/jstittsworth/nba-projections/pkg/database"
	"github.com/jstittsworth/nba-projections/pkg/utils"
)

type HealthHandler struct {
	db     *database.DB
	engine *projection.Engine
}

func NewHealthHandler(db *database.DB, engine *projection.Engine) *HealthHandler {
	return &HealthHandler{
		db:     db,
		engine: engine,
	}
}

// Status reports history size, artifact freshness, and the last training run.
func (h *HealthHandler) Status(c *gin.Context) {
	ctx := context.Background()

	var historyRows int64
	if err := h.db.WithContext(ctx).Model(&models.StatLine{}).Count(&historyRows).Error; err != nil {
		utils.SendInternalError(c, "Failed to query history")
		return
	}

	var lastRun models.TrainingRun
	hasRun := h.db.WithContext(ctx).Order("created_at desc").First(&lastRun).Error == nil

	set := h.engine.Set()
	status := gin.H{
		"ok":               true,
		"ready":            h.engine.Ready(),
		"history_rows":     historyRows,
		"trained_at":       set.TrainedAt,
		"artifact_age_sec": int64(set.Freshness(time.Now().UTC()).Seconds()),
		"players":          len(set.PlayersMaster),
		"opponents":        len(set.Opponents()),
	}
	if hasRun {
		status["last_training_run"] = lastRun
	}
	utils.SendSuccess(c, status)
}
