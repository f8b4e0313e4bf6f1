package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jstittsworth/nba-projections/internal/projection"
	"github.com/jstittsworth/nba-projections/internal/services"
	"github.com/jstittsworth/nba-projections/pkg/utils"
)

type ProjectionHandler struct {
	engine   *projection.Engine
	minutes  *services.MinutesStore
	cache    *services.CacheService
	cacheTTL time.Duration
}

func NewProjectionHandler(engine *projection.Engine, minutes *services.MinutesStore, cache *services.CacheService, cacheTTL time.Duration) *ProjectionHandler {
	return &ProjectionHandler{
		engine:   engine,
		minutes:  minutes,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// GetProjection projects all stats for ?player=&opponent=&minutes=.
// When minutes is omitted, the operator's minutes override is used.
func (h *ProjectionHandler) GetProjection(c *gin.Context) {
	player := strings.TrimSpace(c.Query("player"))
	opponent := strings.TrimSpace(c.Query("opponent"))
	if player == "" || opponent == "" {
		utils.SendValidationError(c, "player and opponent are required", "")
		return
	}

	var minutes float64
	if raw := c.Query("minutes"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			utils.SendValidationError(c, "Invalid minutes value", raw)
			return
		}
		minutes = v
	} else if override, ok := h.minutes.Lookup(player); ok {
		minutes = override.Minutes
	} else {
		utils.SendValidationError(c, "minutes is required (no override on file for player)", player)
		return
	}

	generation := h.engine.Set().TrainedAt.Unix()
	cacheKey := services.ProjectionCacheKey(generation, player, opponent, minutes)

	ctx := context.Background()
	var cached projection.Result
	if err := h.cache.Get(ctx, cacheKey, &cached); err == nil {
		utils.SendSuccess(c, cached)
		return
	}

	result, err := h.engine.Project(projection.Request{
		Player:   player,
		Opponent: opponent,
		Minutes:  minutes,
	})
	if err != nil {
		utils.SendConflict(c, err.Error())
		return
	}

	h.cache.SetWithRetry(ctx, cacheKey, result, h.cacheTTL, 3)
	utils.SendSuccess(c, result)
}

type batchRequest struct {
	Requests []projection.Request `json:"requests" binding:"required,min=1,max=500"`
}

// BatchProjections projects a slate of (player, opponent, minutes) triples.
func (h *ProjectionHandler) BatchProjections(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid batch request", err.Error())
		return
	}

	results := make([]*projection.Result, 0, len(req.Requests))
	for _, r := range req.Requests {
		if strings.TrimSpace(r.Player) == "" {
			utils.SendValidationError(c, "player is required", "")
			return
		}
		if r.Minutes < 0 {
			utils.SendValidationError(c, "minutes must be non-negative", r.Player)
			return
		}
		if r.Minutes == 0 {
			override, ok := h.minutes.Lookup(r.Player)
			if !ok {
				utils.SendValidationError(c, "minutes is required (no override on file for player)", r.Player)
				return
			}
			r.Minutes = override.Minutes
		}
		result, err := h.engine.Project(r)
		if err != nil {
			utils.SendConflict(c, err.Error())
			return
		}
		results = append(results, result)
	}
	utils.SendSuccess(c, results)
}

type playerEntry struct {
	Player string `json:"player"`
	Team   string `json:"team"`
}

// ListPlayers returns the players master from the served artifact set.
func (h *ProjectionHandler) ListPlayers(c *gin.Context) {
	set := h.engine.Set()

	generation := set.TrainedAt.Unix()
	cacheKey := services.PlayersCacheKey(generation)
	ctx := context.Background()

	var cached []playerEntry
	if err := h.cache.Get(ctx, cacheKey, &cached); err == nil {
		utils.SendSuccess(c, cached)
		return
	}

	players := set.Players()
	entries := make([]playerEntry, 0, len(players))
	for _, p := range players {
		entries = append(entries, playerEntry{Player: p, Team: set.PlayersMaster[p]})
	}

	h.cache.SetWithRetry(ctx, cacheKey, entries, h.cacheTTL, 3)
	utils.SendSuccess(c, entries)
}

// GetPlayerRates returns per-stat per-minute rates for one player.
func (h *ProjectionHandler) GetPlayerRates(c *gin.Context) {
	player := c.Param("name")
	rates, ok := h.engine.PlayerRates(player)
	if !ok {
		utils.SendNotFound(c, "Player not found in trained artifacts")
		return
	}
	utils.SendSuccess(c, gin.H{
		"player": strings.TrimSpace(player),
		"team":   h.engine.Set().PlayersMaster[strings.TrimSpace(player)],
		"rates":  rates,
	})
}

// ListOpponents returns the opponents present in the trained artifacts.
func (h *ProjectionHandler) ListOpponents(c *gin.Context) {
	utils.SendSuccess(c, h.engine.Set().Opponents())
}

// GetOpponentAdjustments returns per-stat adjustments for one team.
func (h *ProjectionHandler) GetOpponentAdjustments(c *gin.Context) {
	team := c.Param("team")
	adjustments, ok := h.engine.OpponentAdjustments(team)
	if !ok {
		utils.SendNotFound(c, "Opponent not found in trained artifacts")
		return
	}
	utils.SendSuccess(c, gin.H{
		"opponent":    strings.ToUpper(strings.TrimSpace(team)),
		"adjustments": adjustments,
	})
}
