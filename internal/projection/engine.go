// Package projection serves stat projections from the in-memory artifact set.
package projection

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jstittsworth/nba-projections/internal/artifact"
	"github.com/jstittsworth/nba-projections/internal/models"
)

// Engine answers projection lookups against the most recent artifact set.
// Swap makes a retrain visible atomically to in-flight requests.
type Engine struct {
	mu  sync.RWMutex
	set *artifact.Set
}

func NewEngine() *Engine {
	return &Engine{set: artifact.NewSet()}
}

// LoadFromDir primes the engine from artifacts already on disk, so the
// service can serve across restarts without retraining first.
func (e *Engine) LoadFromDir(dir string) error {
	set, err := artifact.Load(dir, models.StatCodes)
	if err != nil {
		return err
	}
	e.Swap(set)
	return nil
}

// Swap replaces the served artifact set.
func (e *Engine) Swap(set *artifact.Set) {
	e.mu.Lock()
	e.set = set
	e.mu.Unlock()
}

// Set returns the currently served artifact set.
func (e *Engine) Set() *artifact.Set {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.set
}

// Ready reports whether any trained model is loaded.
func (e *Engine) Ready() bool {
	set := e.Set()
	for _, m := range set.Stats {
		if m.Rows > 0 {
			return true
		}
	}
	return false
}

// Request is one projection lookup.
type Request struct {
	Player   string  `json:"player" binding:"required"`
	Opponent string  `json:"opponent" binding:"required"`
	Minutes  float64 `json:"minutes"`
}

// StatProjection is the projected value for one stat, with the inputs that
// produced it and which fallbacks applied.
type StatProjection struct {
	Value          float64 `json:"value"`
	RatePerMin     float64 `json:"rate_per_min"`
	OppAdjustment  float64 `json:"opp_adjustment"`
	Intercept      float64 `json:"intercept"`
	UsedMedianRate bool    `json:"used_median_rate"`
	UnknownOpp     bool    `json:"unknown_opponent"`
}

// Result is the full projection for one (player, opponent, minutes) triple.
type Result struct {
	Player   string                    `json:"player"`
	Team     string                    `json:"team,omitempty"`
	Opponent string                    `json:"opponent"`
	Minutes  float64                   `json:"minutes"`
	Stats    map[string]StatProjection `json:"stats"`
}

// Project computes intercept + minutes*rate + opp_adj for every stat, with
// the league median rate for unseen players and zero adjustment for unseen
// opponents. Negative projections clamp to zero.
func (e *Engine) Project(req Request) (*Result, error) {
	if strings.TrimSpace(req.Player) == "" {
		return nil, fmt.Errorf("player is required")
	}
	if req.Minutes < 0 {
		return nil, fmt.Errorf("minutes must be non-negative")
	}

	set := e.Set()
	player := strings.TrimSpace(req.Player)
	opponent := strings.ToUpper(strings.TrimSpace(req.Opponent))

	result := &Result{
		Player:   player,
		Team:     set.PlayersMaster[player],
		Opponent: opponent,
		Minutes:  req.Minutes,
		Stats:    make(map[string]StatProjection, len(set.Stats)),
	}

	trained := false
	for stat, m := range set.Stats {
		if m.Rows == 0 {
			continue
		}
		trained = true

		rate, usedMedian := m.Rate(player)
		adj, unknownOpp := m.Adjustment(opponent)
		value := m.Intercept + req.Minutes*rate + adj
		if value < 0 {
			value = 0
		}
		result.Stats[stat] = StatProjection{
			Value:          value,
			RatePerMin:     rate,
			OppAdjustment:  adj,
			Intercept:      m.Intercept,
			UsedMedianRate: usedMedian,
			UnknownOpp:     unknownOpp,
		}
	}
	if !trained {
		return nil, fmt.Errorf("no trained artifacts loaded")
	}
	return result, nil
}

// PlayerRates returns the per-stat rates for one player, or false if the
// player appears in no trained model.
func (e *Engine) PlayerRates(player string) (map[string]float64, bool) {
	set := e.Set()
	player = strings.TrimSpace(player)
	rates := make(map[string]float64)
	for stat, m := range set.Stats {
		if r, ok := m.Rates[player]; ok {
			rates[stat] = r
		}
	}
	return rates, len(rates) > 0
}

// OpponentAdjustments returns the per-stat adjustments for one team, or
// false if the team appears in no trained model.
func (e *Engine) OpponentAdjustments(team string) (map[string]float64, bool) {
	set := e.Set()
	team = strings.ToUpper(strings.TrimSpace(team))
	adjustments := make(map[string]float64)
	for stat, m := range set.Stats {
		if a, ok := m.Adjustments[team]; ok {
			adjustments[stat] = a
		}
	}
	return adjustments, len(adjustments) > 0
}
