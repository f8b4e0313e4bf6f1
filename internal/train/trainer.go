// Package train recomputes per-player rate and per-opponent adjustment
// artifacts from the historical master table.
package train

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/nba-projections/internal/artifact"
	"github.com/jstittsworth/nba-projections/internal/models"
	"github.com/jstittsworth/nba-projections/pkg/database"
)

// Options controls one training run.
type Options struct {
	WindowDays int     // 0 = full history
	MinMinutes float64 // drop rows below this many minutes
	Trigger    string  // upload, manual, scheduled
}

type Trainer struct {
	db           *database.DB
	artifactsDir string
	keepRuns     int
	logger       *logrus.Logger
}

func NewTrainer(db *database.DB, artifactsDir string, keepRuns int, logger *logrus.Logger) *Trainer {
	return &Trainer{
		db:           db,
		artifactsDir: artifactsDir,
		keepRuns:     keepRuns,
		logger:       logger,
	}
}

// ArtifactsDir is where the freshest artifact tables live.
func (t *Trainer) ArtifactsDir() string {
	return t.artifactsDir
}

// Run loads history, fits every stat model, writes the artifact files, and
// records a TrainingRun. The returned set is ready to swap into the serving
// engine.
func (t *Trainer) Run(ctx context.Context, opts Options) (*models.TrainingRun, *artifact.Set, error) {
	started := time.Now()

	lines, err := t.loadHistory(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	set := Fit(lines, opts)

	if err := set.Save(t.artifactsDir); err != nil {
		return nil, nil, err
	}
	if err := t.exportLatestProjections(ctx, set); err != nil {
		return nil, nil, err
	}

	run, err := t.recordRun(ctx, set, opts, len(lines), time.Since(started))
	if err != nil {
		return nil, nil, err
	}

	if err := t.snapshotRun(run.ID, set); err != nil {
		t.logger.Warnf("Failed to snapshot artifact version: %v", err)
	}

	t.logger.WithFields(logrus.Fields{
		"run_id":      run.ID,
		"rows":        run.Rows,
		"players":     run.Players,
		"opponents":   run.Opponents,
		"window_days": opts.WindowDays,
		"duration":    time.Since(started),
	}).Info("Training run complete")

	return run, set, nil
}

// loadHistory fetches history in deterministic order, applying the rolling
// window (relative to the newest date present) and the min-minutes floor.
func (t *Trainer) loadHistory(ctx context.Context, opts Options) ([]models.StatLine, error) {
	query := t.db.WithContext(ctx).Model(&models.StatLine{}).
		Where("minutes >= ?", opts.MinMinutes).
		Order("date, player, opponent")

	if opts.WindowDays > 0 {
		var maxDate sql.NullString
		err := t.db.WithContext(ctx).Model(&models.StatLine{}).
			Select("max(date)").Scan(&maxDate).Error
		if err != nil {
			return nil, fmt.Errorf("failed to find newest history date: %w", err)
		}
		if maxDate.Valid {
			newest, err := time.Parse("2006-01-02", maxDate.String)
			if err != nil {
				return nil, fmt.Errorf("bad date in history: %w", err)
			}
			cutoff := newest.AddDate(0, 0, -opts.WindowDays).Format("2006-01-02")
			query = query.Where("date >= ?", cutoff)
		}
	}

	var lines []models.StatLine
	if err := query.Find(&lines).Error; err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return lines, nil
}

// Fit computes the artifact set for the given rows. Exported so tests can
// exercise the math without a database.
func Fit(lines []models.StatLine, opts Options) *artifact.Set {
	set := artifact.NewSet()
	set.TrainedAt = time.Now().UTC()

	for _, stat := range models.StatCodes {
		set.Stats[stat] = fitStat(lines, stat, opts, set.TrainedAt)
	}
	set.PlayersMaster = buildPlayersMaster(lines)
	return set
}

// fitStat fits one stat: minutes-weighted per-player rates, a global
// intercept, and mean residual adjustments per opponent.
func fitStat(lines []models.StatLine, stat string, opts Options, asOf time.Time) *artifact.StatModel {
	m := &artifact.StatModel{
		Stat:        stat,
		WindowDays:  opts.WindowDays,
		MinMinutes:  opts.MinMinutes,
		AsOf:        asOf,
		Rates:       make(map[string]float64),
		Adjustments: make(map[string]float64),
	}

	statSum := make(map[string]float64)
	minSum := make(map[string]float64)
	for i := range lines {
		v, ok := lines[i].StatValue(stat)
		if !ok {
			continue
		}
		statSum[lines[i].Player] += v
		minSum[lines[i].Player] += lines[i].Minutes
		m.Rows++
	}
	if m.Rows == 0 {
		return m
	}

	for player, total := range statSum {
		if minSum[player] > 0 {
			m.Rates[player] = total / minSum[player]
		}
	}
	m.MedianRate = median(m.Rates)

	// Intercept: mean residual after the per-minute baseline.
	var residSum float64
	for i := range lines {
		v, ok := lines[i].StatValue(stat)
		if !ok {
			continue
		}
		residSum += v - lines[i].Minutes*m.Rates[lines[i].Player]
	}
	m.Intercept = residSum / float64(m.Rows)

	// Opponent adjustment: mean residual after intercept, grouped by opponent.
	adjSum := make(map[string]float64)
	adjCount := make(map[string]int)
	for i := range lines {
		v, ok := lines[i].StatValue(stat)
		if !ok || lines[i].Opponent == "" {
			continue
		}
		resid := v - (m.Intercept + lines[i].Minutes*m.Rates[lines[i].Player])
		adjSum[lines[i].Opponent] += resid
		adjCount[lines[i].Opponent]++
	}
	for opp, total := range adjSum {
		m.Adjustments[opp] = total / float64(adjCount[opp])
	}
	return m
}

// buildPlayersMaster keeps the last seen team per player, dropping junk team
// codes outside the 2-4 character range.
func buildPlayersMaster(lines []models.StatLine) map[string]string {
	master := make(map[string]string)
	for i := range lines {
		team := lines[i].Team
		if len(team) < 2 || len(team) > 4 {
			continue
		}
		master[lines[i].Player] = team
	}
	return master
}

func median(values map[string]float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		sorted = append(sorted, v)
	}
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func (t *Trainer) recordRun(ctx context.Context, set *artifact.Set, opts Options, rows int, elapsed time.Duration) (*models.TrainingRun, error) {
	summaries := make([]models.StatSummary, 0, len(models.StatCodes))
	for _, stat := range models.StatCodes {
		m := set.Stats[stat]
		summaries = append(summaries, models.StatSummary{
			Stat:       stat,
			Rows:       m.Rows,
			Players:    len(m.Rates),
			Opponents:  len(m.Adjustments),
			Intercept:  m.Intercept,
			MedianRate: m.MedianRate,
		})
	}
	summaryJSON, err := json.Marshal(summaries)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal training summary: %w", err)
	}
	if err := artifact.WriteFileAtomic(filepath.Join(t.artifactsDir, "training_summary.json"), summaryJSON); err != nil {
		return nil, err
	}

	run := &models.TrainingRun{
		ID:         uuid.NewString(),
		Trigger:    opts.Trigger,
		WindowDays: opts.WindowDays,
		MinMinutes: opts.MinMinutes,
		Rows:       rows,
		Players:    len(set.PlayersMaster),
		Opponents:  len(set.Opponents()),
		Summary:    summaryJSON,
		DurationMS: elapsed.Milliseconds(),
	}
	if err := t.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to record training run: %w", err)
	}
	return run, nil
}

// snapshotRun copies the freshly trained tables into a per-run version dir
// and prunes old versions beyond keepRuns.
func (t *Trainer) snapshotRun(runID string, set *artifact.Set) error {
	if t.keepRuns <= 0 {
		return nil
	}
	versionDir := filepath.Join(t.artifactsDir, "runs",
		time.Now().UTC().Format("20060102T150405")+"-"+runID[:8])
	if err := set.Save(versionDir); err != nil {
		return err
	}
	return t.pruneVersions()
}

func (t *Trainer) pruneVersions() error {
	runsDir := filepath.Join(t.artifactsDir, "runs")
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	// Timestamp prefix makes lexical order chronological.
	sort.Strings(names)
	for len(names) > t.keepRuns {
		if err := os.RemoveAll(filepath.Join(runsDir, names[0])); err != nil {
			return err
		}
		names = names[1:]
	}
	return nil
}
