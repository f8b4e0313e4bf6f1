package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func TestIngestDailyWritesRawCopyAndHistory(t *testing.T) {
	db := newTestDB(t)
	dataDir := t.TempDir()
	ingestor := NewIngestor(db, dataDir, logrus.New())

	csv := "Player,Team,Opp,Minutes,PTS,REB,AST\n" +
		"Jayson Tatum,BOS,NYK,36.5,27.1,8.2,4.6\n" +
		"Jalen Brunson,NYK,BOS,35.0,28.3,3.6,6.7\n"

	result, err := ingestor.IngestDaily(context.Background(), strings.NewReader(csv), "2026-01-15")
	require.NoError(t, err)
	assert.Equal(t, 2, result.RowsAccepted)
	assert.Equal(t, int64(2), result.HistoryRows)

	raw, err := os.ReadFile(filepath.Join(dataDir, "raw", "2026-01-15.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Jayson Tatum")

	var count int64
	require.NoError(t, db.Model(&models.StatLine{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestIngestDailyReuploadKeepsLast(t *testing.T) {
	db := newTestDB(t)
	ingestor := NewIngestor(db, t.TempDir(), logrus.New())
	ctx := context.Background()

	first := "Player,Team,Opp,Minutes,PTS\nJayson Tatum,BOS,NYK,36.5,27.1\n"
	_, err := ingestor.IngestDaily(ctx, strings.NewReader(first), "2026-01-15")
	require.NoError(t, err)

	// Re-upload the same day with a corrected line.
	second := "Player,Team,Opp,Minutes,PTS\nJayson Tatum,BOS,NYK,38.0,31.5\n"
	result, err := ingestor.IngestDaily(ctx, strings.NewReader(second), "2026-01-15")
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.HistoryRows)

	var line models.StatLine
	require.NoError(t, db.Where("player = ?", "Jayson Tatum").First(&line).Error)
	assert.Equal(t, 38.0, line.Minutes)
	require.NotNil(t, line.Points)
	assert.Equal(t, 31.5, *line.Points)
}

func TestIngestDailyDedupesWithinFileKeepLast(t *testing.T) {
	db := newTestDB(t)
	ingestor := NewIngestor(db, t.TempDir(), logrus.New())

	// The same (player, opponent) pair twice in one file: one upsert statement
	// must see it once, with the later row winning.
	csv := "Player,Team,Opp,Minutes,PTS\n" +
		"Jayson Tatum,BOS,NYK,34.0,25.0\n" +
		"Jayson Tatum,BOS,NYK,36.0,29.0\n"

	result, err := ingestor.IngestDaily(context.Background(), strings.NewReader(csv), "2026-01-15")
	require.NoError(t, err)
	assert.Equal(t, 1, result.RowsAccepted)
	assert.Equal(t, 1, result.RowsDropped)
	assert.Equal(t, int64(1), result.HistoryRows)

	var line models.StatLine
	require.NoError(t, db.Where("player = ?", "Jayson Tatum").First(&line).Error)
	assert.Equal(t, 36.0, line.Minutes)
	require.NotNil(t, line.Points)
	assert.Equal(t, 29.0, *line.Points)
}

func TestIngestDailyStorageFailureIsMarked(t *testing.T) {
	db := newTestDB(t)
	ingestor := NewIngestor(db, t.TempDir(), logrus.New())
	require.NoError(t, db.Close())

	csv := "Player,Team,Opp,Minutes,PTS\nJayson Tatum,BOS,NYK,36.0,27.0\n"
	_, err := ingestor.IngestDaily(context.Background(), strings.NewReader(csv), "2026-01-15")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)
}

func TestIngestDailySeparateDatesAccumulate(t *testing.T) {
	db := newTestDB(t)
	ingestor := NewIngestor(db, t.TempDir(), logrus.New())
	ctx := context.Background()

	csv := "Player,Team,Opp,Minutes,PTS\nJayson Tatum,BOS,NYK,36.5,27.1\n"
	_, err := ingestor.IngestDaily(ctx, strings.NewReader(csv), "2026-01-15")
	require.NoError(t, err)
	result, err := ingestor.IngestDaily(ctx, strings.NewReader(csv), "2026-01-16")
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.HistoryRows)

	dates, err := ingestor.HistoryDates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-01-16", "2026-01-15"}, dates)
}

func TestIngestDailyRejectsEmptyUpload(t *testing.T) {
	db := newTestDB(t)
	ingestor := NewIngestor(db, t.TempDir(), logrus.New())

	_, err := ingestor.IngestDaily(context.Background(), strings.NewReader("  \n"), "2026-01-15")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStorage)
}
