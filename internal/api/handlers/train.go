package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/jstittsworth/nba-projections/internal/models"
	"github.com/jstittsworth/nba-projections/internal/services"
	"github.com/jstittsworth/nba-projections/pkg/database"
	"github.com/jstittsworth/nba-projections/pkg/utils"
)

type TrainHandler struct {
	db      *database.DB
	retrain *services.RetrainService
}

func NewTrainHandler(db *database.DB, retrain *services.RetrainService) *TrainHandler {
	return &TrainHandler{
		db:      db,
		retrain: retrain,
	}
}

type trainRequest struct {
	WindowDays *int     `json:"window_days"`
	MinMinutes *float64 `json:"min_minutes"`
}

// TriggerTrain retrains on demand, optionally overriding the window and
// minutes floor for this run only.
func (h *TrainHandler) TriggerTrain(c *gin.Context) {
	var req trainRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.SendValidationError(c, "Invalid train request", err.Error())
			return
		}
	}

	opts := h.retrain.Defaults()
	opts.Trigger = "manual"
	if req.WindowDays != nil {
		if *req.WindowDays < 0 {
			utils.SendValidationError(c, "window_days must be non-negative", "")
			return
		}
		opts.WindowDays = *req.WindowDays
	}
	if req.MinMinutes != nil {
		if *req.MinMinutes < 0 {
			utils.SendValidationError(c, "min_minutes must be non-negative", "")
			return
		}
		opts.MinMinutes = *req.MinMinutes
	}

	run, err := h.retrain.TriggerRetrain(context.Background(), opts)
	if err != nil {
		utils.SendInternalError(c, "Training failed: "+err.Error())
		return
	}
	utils.SendSuccess(c, run)
}

// ListRuns returns recent training runs, newest first.
func (h *TrainHandler) ListRuns(c *gin.Context) {
	var runs []models.TrainingRun
	err := h.db.WithContext(context.Background()).
		Order("created_at desc").Limit(20).
		Find(&runs).Error
	if err != nil {
		utils.SendInternalError(c, "Failed to list training runs")
		return
	}
	utils.SendSuccess(c, runs)
}
