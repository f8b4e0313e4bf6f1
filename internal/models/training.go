package models

import (
	"time"

	"gorm.io/datatypes"
)

// TrainingRun records one retrain of the projection artifacts.
type TrainingRun struct {
	ID         string         `gorm:"primaryKey;size:36" json:"id"`
	Trigger    string         `gorm:"size:20" json:"trigger"` // upload, manual, scheduled
	WindowDays int            `json:"window_days"`            // 0 = full history
	MinMinutes float64        `json:"min_minutes"`
	Rows       int            `json:"rows"`
	Players    int            `json:"players"`
	Opponents  int            `json:"opponents"`
	Summary    datatypes.JSON `json:"summary"` // per-stat row counts and intercepts
	DurationMS int64          `json:"duration_ms"`
	CreatedAt  time.Time      `json:"created_at"`
}

// StatSummary is the per-stat portion of a training run summary.
type StatSummary struct {
	Stat       string  `json:"stat"`
	Rows       int     `json:"rows"`
	Players    int     `json:"players"`
	Opponents  int     `json:"opponents"`
	Intercept  float64 `json:"intercept"`
	MedianRate float64 `json:"median_rate"`
}
