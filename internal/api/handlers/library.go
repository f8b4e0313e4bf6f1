package handlers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jstittsworth/nba-projections/internal/ingest"
	"github.com/jstittsworth/nba-projections/internal/models"
	"github.com/jstittsworth/nba-projections/internal/services"
	"github.com/jstittsworth/nba-projections/internal/train"
	"github.com/jstittsworth/nba-projections/pkg/database"
	"github.com/jstittsworth/nba-projections/pkg/utils"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type LibraryHandler struct {
	db           *database.DB
	cache        *services.CacheService
	dataDir      string
	artifactsDir string
	cacheTTL     time.Duration
}

func NewLibraryHandler(db *database.DB, cache *services.CacheService, dataDir, artifactsDir string, cacheTTL time.Duration) *LibraryHandler {
	return &LibraryHandler{
		db:           db,
		cache:        cache,
		dataDir:      dataDir,
		artifactsDir: artifactsDir,
		cacheTTL:     cacheTTL,
	}
}

type libraryItem struct {
	Date      string `json:"date"`
	Rows      int64  `json:"rows"`
	SizeBytes int64  `json:"size_bytes"`
	Download  string `json:"download"`
}

// ListLibrary summarizes the stored history per date, newest first.
func (h *LibraryHandler) ListLibrary(c *gin.Context) {
	ctx := context.Background()
	cacheKey := services.LibraryCacheKey()

	var cached []libraryItem
	if err := h.cache.Get(ctx, cacheKey, &cached); err == nil {
		utils.SendSuccess(c, cached)
		return
	}

	type dayCount struct {
		Date     string
		RowCount int64 `gorm:"column:row_count"`
	}
	var days []dayCount
	err := h.db.WithContext(ctx).Model(&models.StatLine{}).
		Select("date, count(*) as row_count").
		Group("date").Order("date desc").
		Scan(&days).Error
	if err != nil {
		utils.SendInternalError(c, "Failed to list history")
		return
	}

	items := make([]libraryItem, 0, len(days))
	for _, d := range days {
		item := libraryItem{
			Date:     d.Date,
			Rows:     d.RowCount,
			Download: fmt.Sprintf("/api/v1/daily/download/%s", d.Date),
		}
		if info, err := os.Stat(filepath.Join(h.dataDir, "raw", d.Date+".csv")); err == nil {
			item.SizeBytes = info.Size()
		}
		items = append(items, item)
	}

	h.cache.SetWithRetry(ctx, cacheKey, items, h.cacheTTL, 3)
	utils.SendSuccess(c, items)
}

// DownloadDay streams one day's slice of history as CSV.
func (h *LibraryHandler) DownloadDay(c *gin.Context) {
	date := c.Param("date")
	if !datePattern.MatchString(date) {
		utils.SendValidationError(c, "Invalid date, expected YYYY-MM-DD", date)
		return
	}

	var lines []models.StatLine
	err := h.db.WithContext(context.Background()).
		Where("date = ?", date).
		Order("player, opponent").
		Find(&lines).Error
	if err != nil {
		utils.SendInternalError(c, "Failed to load history")
		return
	}
	if len(lines) == 0 {
		utils.SendNotFound(c, fmt.Sprintf("No entries for date %s", date))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="daily_%s.csv"`, date))
	c.Data(http.StatusOK, "text/csv", ingest.RenderHistoryCSV(lines))
}

// LatestProjectionsCSV serves the most recent full projection export.
func (h *LibraryHandler) LatestProjectionsCSV(c *gin.Context) {
	path := filepath.Join(h.artifactsDir, train.LatestProjectionsFile)
	if _, err := os.Stat(path); err != nil {
		utils.SendNotFound(c, "No projections artifact yet")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="projections_latest.csv"`)
	c.File(path)
}
