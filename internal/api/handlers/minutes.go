package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jstittsworth/nba-projections/internal/services"
	"github.com/jstittsworth/nba-projections/pkg/utils"
)

type MinutesHandler struct {
	store *services.MinutesStore
}

func NewMinutesHandler(store *services.MinutesStore) *MinutesHandler {
	return &MinutesHandler{store: store}
}

// GetOverrides returns the current minutes overrides.
func (h *MinutesHandler) GetOverrides(c *gin.Context) {
	overrides, updatedAt := h.store.Snapshot()
	utils.SendSuccess(c, gin.H{
		"updated_at": updatedAt,
		"overrides":  overrides,
	})
}

// Upload replaces the overrides from a CSV with player/minutes columns.
func (h *MinutesHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.SendValidationError(c, "No file field 'file'", err.Error())
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		utils.SendInternalError(c, "Failed to open upload")
		return
	}
	defer f.Close()

	count, err := h.store.LoadCSV(f)
	if err != nil {
		utils.SendValidationError(c, "Failed to parse minutes CSV", err.Error())
		return
	}

	_, updatedAt := h.store.Snapshot()
	utils.SendSuccess(c, gin.H{
		"count":      count,
		"updated_at": updatedAt,
	})
}

// Template serves a header-only CSV in the accepted upload format.
func (h *MinutesHandler) Template(c *gin.Context) {
	c.Header("Content-Disposition", `attachment; filename="minutes_template.csv"`)
	c.Data(http.StatusOK, "text/csv", services.TemplateCSV())
}
