package models

import (
	"time"
)

// StatCodes are the stats we train rates and opponent adjustments for.
// PRA is points + rebounds + assists.
var StatCodes = []string{"PTS", "REB", "AST", "3PM", "STL", "BLK", "TO", "PRA"}

// StatLine is one player's line from a daily projections export. History is
// keyed by (date, player, opponent); re-uploading a day replaces that day's rows.
type StatLine struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	Date     string  `gorm:"size:10;not null;index;uniqueIndex:idx_stat_lines_day,priority:1" json:"date"`
	Player   string  `gorm:"size:100;not null;index;uniqueIndex:idx_stat_lines_day,priority:2" json:"player"`
	Team     string  `gorm:"size:4" json:"team"`
	Opponent string  `gorm:"size:4;uniqueIndex:idx_stat_lines_day,priority:3" json:"opponent"`
	Minutes  float64 `json:"minutes"`

	// Stat columns are nullable: a feed may omit a column entirely, and
	// unparseable cells are dropped rather than zeroed.
	Points    *float64 `json:"points"`
	Rebounds  *float64 `json:"rebounds"`
	Assists   *float64 `json:"assists"`
	ThreesPM  *float64 `gorm:"column:threes_made" json:"threes_made"`
	Steals    *float64 `json:"steals"`
	Blocks    *float64 `json:"blocks"`
	Turnovers *float64 `json:"turnovers"`
	PRA       *float64 `gorm:"column:pra" json:"pra"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatValue returns the value for a stat code and whether it is present.
func (s *StatLine) StatValue(code string) (float64, bool) {
	var v *float64
	switch code {
	case "PTS":
		v = s.Points
	case "REB":
		v = s.Rebounds
	case "AST":
		v = s.Assists
	case "3PM":
		v = s.ThreesPM
	case "STL":
		v = s.Steals
	case "BLK":
		v = s.Blocks
	case "TO":
		v = s.Turnovers
	case "PRA":
		v = s.PRA
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

// SetStatValue assigns a stat by code. Unknown codes are ignored.
func (s *StatLine) SetStatValue(code string, value float64) {
	v := value
	switch code {
	case "PTS":
		s.Points = &v
	case "REB":
		s.Rebounds = &v
	case "AST":
		s.Assists = &v
	case "3PM":
		s.ThreesPM = &v
	case "STL":
		s.Steals = &v
	case "BLK":
		s.Blocks = &v
	case "TO":
		s.Turnovers = &v
	case "PRA":
		s.PRA = &v
	}
}
