package train

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jstittsworth/nba-projections/internal/artifact"
	"github.com/jstittsworth/nba-projections/internal/models"
)

// LatestProjectionsFile is the per-retrain export of the newest day's slate
// run through the freshly trained tables.
const LatestProjectionsFile = "projections_latest.csv"

func (t *Trainer) exportLatestProjections(ctx context.Context, set *artifact.Set) error {
	var maxDate sql.NullString
	err := t.db.WithContext(ctx).Model(&models.StatLine{}).
		Select("max(date)").Scan(&maxDate).Error
	if err != nil {
		return fmt.Errorf("failed to find newest history date: %w", err)
	}
	if !maxDate.Valid {
		return nil
	}

	var lines []models.StatLine
	err = t.db.WithContext(ctx).
		Where("date = ?", maxDate.String).
		Order("team, player, opponent").
		Find(&lines).Error
	if err != nil {
		return fmt.Errorf("failed to load latest slate: %w", err)
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	w.Write(append([]string{"Date", "Player", "Team", "Opp", "Minutes"}, models.StatCodes...))
	for i := range lines {
		record := []string{
			lines[i].Date, lines[i].Player, lines[i].Team, lines[i].Opponent,
			strconv.FormatFloat(lines[i].Minutes, 'f', 1, 64),
		}
		for _, stat := range models.StatCodes {
			m := set.Stats[stat]
			if m == nil || m.Rows == 0 {
				record = append(record, "")
				continue
			}
			rate, _ := m.Rate(lines[i].Player)
			adj, _ := m.Adjustment(lines[i].Opponent)
			value := m.Intercept + lines[i].Minutes*rate + adj
			if value < 0 {
				value = 0
			}
			record = append(record, strconv.FormatFloat(value, 'f', 2, 64))
		}
		w.Write(record)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return artifact.WriteFileAtomic(filepath.Join(t.artifactsDir, LatestProjectionsFile), []byte(sb.String()))
}
