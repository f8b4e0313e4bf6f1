// Package artifact defines the trained model tables exchanged between the
// trainer and the projection engine, and their on-disk CSV/JSON form.
package artifact

import (
	"sort"
	"strings"
	"time"
)

// StatModel holds the trained tables for a single stat.
type StatModel struct {
	Stat        string             `json:"stat"`
	Intercept   float64            `json:"intercept"`
	MedianRate  float64            `json:"median_rate"`
	Rows        int                `json:"rows"`
	WindowDays  int                `json:"window_days"`
	MinMinutes  float64            `json:"min_minutes"`
	AsOf        time.Time          `json:"as_of"`
	Rates       map[string]float64 `json:"-"` // player -> per-minute rate
	Adjustments map[string]float64 `json:"-"` // opponent -> additive adjustment
}

// Rate returns a player's per-minute rate, falling back to the league median
// for an unseen player. The bool reports whether the fallback was used.
func (m *StatModel) Rate(player string) (float64, bool) {
	if r, ok := m.Rates[player]; ok {
		return r, false
	}
	return m.MedianRate, true
}

// Adjustment returns an opponent's additive adjustment, zero when unseen.
func (m *StatModel) Adjustment(opponent string) (float64, bool) {
	if a, ok := m.Adjustments[strings.ToUpper(opponent)]; ok {
		return a, false
	}
	return 0, true
}

// Set is a complete artifact generation: one model per stat plus the players
// master (player -> last seen team).
type Set struct {
	Stats         map[string]*StatModel
	PlayersMaster map[string]string
	TrainedAt     time.Time
}

func NewSet() *Set {
	return &Set{
		Stats:         make(map[string]*StatModel),
		PlayersMaster: make(map[string]string),
	}
}

// Players returns the sorted player list from the players master.
func (s *Set) Players() []string {
	players := make([]string, 0, len(s.PlayersMaster))
	for p := range s.PlayersMaster {
		players = append(players, p)
	}
	sort.Strings(players)
	return players
}

// Opponents returns the sorted union of opponents across all stat models.
func (s *Set) Opponents() []string {
	seen := make(map[string]struct{})
	for _, m := range s.Stats {
		for opp := range m.Adjustments {
			seen[opp] = struct{}{}
		}
	}
	opponents := make([]string, 0, len(seen))
	for opp := range seen {
		opponents = append(opponents, opp)
	}
	sort.Strings(opponents)
	return opponents
}

// baseName maps a stat code to the file-name fragment used for its artifacts.
func baseName(stat string) string {
	return strings.ToLower(stat)
}
