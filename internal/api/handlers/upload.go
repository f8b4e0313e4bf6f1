package handlers

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/nba-projections/internal/ingest"
	"github.com/jstittsworth/nba-projections/internal/services"
	"github.com/jstittsworth/nba-projections/internal/train"
	"github.com/jstittsworth/nba-projections/pkg/utils"
)

type UploadHandler struct {
	ingestor *ingest.Ingestor
	retrain  *services.RetrainService
	logger   *logrus.Logger
	maxBytes int64
}

func NewUploadHandler(ingestor *ingest.Ingestor, retrain *services.RetrainService, logger *logrus.Logger, maxBytes int64) *UploadHandler {
	return &UploadHandler{
		ingestor: ingestor,
		retrain:  retrain,
		logger:   logger,
		maxBytes: maxBytes,
	}
}

// UploadDaily accepts a multipart daily CSV (field "file") with an optional
// "date" form field, merges it into history, and retrains.
func (h *UploadHandler) UploadDaily(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.SendValidationError(c, "No file part 'file'", err.Error())
		return
	}
	if fileHeader.Size == 0 {
		utils.SendValidationError(c, "Empty file", fileHeader.Filename)
		return
	}
	if fileHeader.Size > h.maxBytes {
		utils.SendValidationError(c, "File too large", fileHeader.Filename)
		return
	}

	date := ingest.ParseDate(c.PostForm("date"))

	f, err := fileHeader.Open()
	if err != nil {
		utils.SendInternalError(c, "Failed to open upload")
		return
	}
	defer f.Close()

	ctx := context.Background()
	result, err := h.ingestor.IngestDaily(ctx, f, date)
	if errors.Is(err, ingest.ErrStorage) {
		h.logger.Errorf("Ingest storage failure: %v", err)
		utils.SendInternalError(c, "Failed to store upload")
		return
	}
	if err != nil {
		utils.SendValidationError(c, "Failed to ingest CSV", err.Error())
		return
	}

	opts := h.retrain.Defaults()
	opts.Trigger = "upload"
	run, err := h.retrain.TriggerRetrain(ctx, opts)
	if err != nil {
		h.logger.Errorf("Retrain after upload failed: %v", err)
		utils.SendInternalError(c, "Upload ingested but retrain failed")
		return
	}

	utils.SendSuccess(c, gin.H{
		"date":          result.Date,
		"rows_uploaded": result.RowsAccepted,
		"rows_dropped":  result.RowsDropped,
		"history_rows":  result.HistoryRows,
		"training_run":  run.ID,
		"artifacts": gin.H{
			"projections_latest_csv": filepath.Join(h.retrain.ArtifactsDir(), train.LatestProjectionsFile),
		},
	})
}
