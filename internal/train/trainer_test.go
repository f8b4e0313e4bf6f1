package train

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jstittsworth/nba-projections/internal/ingest"
	"github.com/jstittsworth/nba-projections/internal/models"
	"github.com/jstittsworth/nba-projections/pkg/database"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewConnection("sqlite://"+filepath.Join(t.TempDir(), "test.db"), false)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.StatLine{}, &models.TrainingRun{}))
	t.Cleanup(func() { db.Close() })
	return db
}

func line(date, player, team, opp string, minutes float64, stats map[string]float64) models.StatLine {
	l := models.StatLine{
		Date:     date,
		Player:   player,
		Team:     team,
		Opponent: opp,
		Minutes:  minutes,
	}
	for code, v := range stats {
		l.SetStatValue(code, v)
	}
	return l
}

func TestFitPlayerRatesAreMinutesWeighted(t *testing.T) {
	lines := []models.StatLine{
		line("2026-01-15", "Jayson Tatum", "BOS", "NYK", 30, map[string]float64{"PTS": 30}),
		line("2026-01-16", "Jayson Tatum", "BOS", "PHI", 20, map[string]float64{"PTS": 10}),
	}

	set := Fit(lines, Options{})
	m := set.Stats["PTS"]

	// 40 points over 50 minutes
	assert.InDelta(t, 0.8, m.Rates["Jayson Tatum"], 1e-9)
	assert.Equal(t, 2, m.Rows)
}

func TestFitAppendingHistoryUpdatesRate(t *testing.T) {
	base := []models.StatLine{
		line("2026-01-15", "Jayson Tatum", "BOS", "NYK", 30, map[string]float64{"PTS": 30}),
	}
	set := Fit(base, Options{})
	assert.InDelta(t, 1.0, set.Stats["PTS"].Rates["Jayson Tatum"], 1e-9)

	appended := append(base,
		line("2026-01-16", "Jayson Tatum", "BOS", "PHI", 30, map[string]float64{"PTS": 15}))
	set = Fit(appended, Options{})
	assert.InDelta(t, 0.75, set.Stats["PTS"].Rates["Jayson Tatum"], 1e-9)
}

func TestFitInterceptAndOpponentAdjustment(t *testing.T) {
	// Two players, perfectly linear in minutes: residuals are zero, so both
	// the intercept and every opponent adjustment must be zero.
	lines := []models.StatLine{
		line("2026-01-15", "A", "BOS", "NYK", 30, map[string]float64{"PTS": 30}),
		line("2026-01-16", "A", "BOS", "PHI", 20, map[string]float64{"PTS": 20}),
		line("2026-01-15", "B", "DEN", "NYK", 30, map[string]float64{"PTS": 15}),
		line("2026-01-16", "B", "DEN", "PHI", 20, map[string]float64{"PTS": 10}),
	}

	set := Fit(lines, Options{})
	m := set.Stats["PTS"]

	assert.InDelta(t, 0.0, m.Intercept, 1e-9)
	assert.InDelta(t, 0.0, m.Adjustments["NYK"], 1e-9)
	assert.InDelta(t, 0.0, m.Adjustments["PHI"], 1e-9)
}

func TestFitOpponentAdjustmentCapturesDefense(t *testing.T) {
	// Player scores 1/min except against MIA, where they lose 5 points.
	lines := []models.StatLine{
		line("2026-01-15", "A", "BOS", "NYK", 30, map[string]float64{"PTS": 30}),
		line("2026-01-16", "A", "BOS", "MIA", 30, map[string]float64{"PTS": 25}),
		line("2026-01-17", "A", "BOS", "NYK", 30, map[string]float64{"PTS": 30}),
		line("2026-01-18", "A", "BOS", "MIA", 30, map[string]float64{"PTS": 25}),
	}

	set := Fit(lines, Options{})
	m := set.Stats["PTS"]

	adjNYK := m.Adjustments["NYK"]
	adjMIA := m.Adjustments["MIA"]
	assert.InDelta(t, -5.0, adjMIA-adjNYK, 1e-9)
}

func TestFitMedianRate(t *testing.T) {
	lines := []models.StatLine{
		line("2026-01-15", "A", "BOS", "NYK", 10, map[string]float64{"PTS": 2}),
		line("2026-01-15", "B", "DEN", "NYK", 10, map[string]float64{"PTS": 5}),
		line("2026-01-15", "C", "LAL", "NYK", 10, map[string]float64{"PTS": 9}),
	}

	set := Fit(lines, Options{})
	assert.InDelta(t, 0.5, set.Stats["PTS"].MedianRate, 1e-9)
}

func TestFitEmptyHistory(t *testing.T) {
	set := Fit(nil, Options{})
	m := set.Stats["PTS"]
	assert.Equal(t, 0, m.Rows)
	assert.Equal(t, 0.0, m.Intercept)
	assert.Empty(t, m.Rates)
}

func TestFitPlayersMasterKeepsLastTeam(t *testing.T) {
	lines := []models.StatLine{
		line("2026-01-15", "A", "BOS", "NYK", 30, map[string]float64{"PTS": 30}),
		line("2026-02-01", "A", "LAL", "NYK", 30, map[string]float64{"PTS": 30}), // traded
		line("2026-01-15", "B", "X", "NYK", 30, map[string]float64{"PTS": 10}),   // junk team code
	}

	set := Fit(lines, Options{})
	assert.Equal(t, "LAL", set.PlayersMaster["A"])
	_, ok := set.PlayersMaster["B"]
	assert.False(t, ok)
}

func seedHistory(t *testing.T, db *database.DB, ingestor *ingest.Ingestor) {
	t.Helper()
	csv := "Player,Team,Opp,Minutes,PTS,REB,AST\n" +
		"Jayson Tatum,BOS,NYK,36,27,8,4\n" +
		"Jalen Brunson,NYK,BOS,35,28,3,6\n"
	_, err := ingestor.IngestDaily(context.Background(), strings.NewReader(csv), "2026-01-15")
	require.NoError(t, err)
}

func TestTrainerRunWritesArtifactsAndRecordsRun(t *testing.T) {
	db := newTestDB(t)
	dataDir := t.TempDir()
	artifactsDir := filepath.Join(dataDir, "artifacts")
	ingestor := ingest.NewIngestor(db, dataDir, logrus.New())
	seedHistory(t, db, ingestor)

	trainer := NewTrainer(db, artifactsDir, 3, logrus.New())
	run, set, err := trainer.Run(context.Background(), Options{MinMinutes: 6, Trigger: "manual"})
	require.NoError(t, err)
	require.NotNil(t, set)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "manual", run.Trigger)
	assert.Equal(t, 2, run.Rows)

	for _, name := range []string{
		"model_player_rates_pts.csv",
		"model_opp_adj_pts.csv",
		"model_meta_pts.json",
		"players_master.csv",
		"training_summary.json",
		LatestProjectionsFile,
	} {
		_, err := os.Stat(filepath.Join(artifactsDir, name))
		assert.NoError(t, err, name)
	}

	var count int64
	require.NoError(t, db.Model(&models.TrainingRun{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestTrainerRunIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	dataDir := t.TempDir()
	artifactsDir := filepath.Join(dataDir, "artifacts")
	ingestor := ingest.NewIngestor(db, dataDir, logrus.New())
	seedHistory(t, db, ingestor)

	trainer := NewTrainer(db, artifactsDir, 0, logrus.New())
	ctx := context.Background()

	_, _, err := trainer.Run(ctx, Options{MinMinutes: 6})
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(artifactsDir, "model_player_rates_pts.csv"))
	require.NoError(t, err)
	firstAdj, err := os.ReadFile(filepath.Join(artifactsDir, "model_opp_adj_pts.csv"))
	require.NoError(t, err)

	_, _, err = trainer.Run(ctx, Options{MinMinutes: 6})
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(artifactsDir, "model_player_rates_pts.csv"))
	require.NoError(t, err)
	secondAdj, err := os.ReadFile(filepath.Join(artifactsDir, "model_opp_adj_pts.csv"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstAdj, secondAdj)
}

func TestTrainerWindowExcludesOldRows(t *testing.T) {
	db := newTestDB(t)
	dataDir := t.TempDir()
	ingestor := ingest.NewIngestor(db, dataDir, logrus.New())
	ctx := context.Background()

	old := "Player,Team,Opp,Minutes,PTS\nOld Guy,BOS,NYK,30,30\n"
	_, err := ingestor.IngestDaily(ctx, strings.NewReader(old), "2025-11-01")
	require.NoError(t, err)
	recent := "Player,Team,Opp,Minutes,PTS\nNew Guy,NYK,BOS,30,15\n"
	_, err = ingestor.IngestDaily(ctx, strings.NewReader(recent), "2026-01-15")
	require.NoError(t, err)

	trainer := NewTrainer(db, filepath.Join(dataDir, "artifacts"), 0, logrus.New())
	run, set, err := trainer.Run(ctx, Options{WindowDays: 30})
	require.NoError(t, err)

	assert.Equal(t, 1, run.Rows)
	_, hasOld := set.Stats["PTS"].Rates["Old Guy"]
	assert.False(t, hasOld)
	assert.Contains(t, set.Stats["PTS"].Rates, "New Guy")
}
