package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm/clause"

	"github.com/jstittsworth/nba-projections/internal/artifact"
	"github.com/jstittsworth/nba-projections/internal/models"
	"github.com/jstittsworth/nba-projections/pkg/database"
)

// ErrStorage marks ingest failures in the persistence layer, as opposed to a
// malformed upload.
var ErrStorage = errors.New("storage failure")

// Ingestor merges daily stat CSVs into the historical master table and keeps
// a raw per-date copy on disk.
type Ingestor struct {
	db      *database.DB
	dataDir string
	logger  *logrus.Logger
}

func NewIngestor(db *database.DB, dataDir string, logger *logrus.Logger) *Ingestor {
	return &Ingestor{
		db:      db,
		dataDir: dataDir,
		logger:  logger,
	}
}

// Result reports the outcome of one daily ingest.
type Result struct {
	Date         string `json:"date"`
	RowsAccepted int    `json:"rows_accepted"`
	RowsDropped  int    `json:"rows_dropped"`
	HistoryRows  int64  `json:"history_rows"`
	RawPath      string `json:"raw_path"`
}

// IngestDaily parses the CSV, writes the raw per-date copy, and upserts rows
// into history keyed by (date, player, opponent). Re-uploading a day replaces
// that day's rows (keep-last).
func (i *Ingestor) IngestDaily(ctx context.Context, r io.Reader, date string) (*Result, error) {
	lines, report, err := ParseDaily(r, date)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("no usable rows in upload for %s", date)
	}

	// A file repeating a (player, opponent) pair keeps the last occurrence,
	// like a re-uploaded day. Postgres rejects an upsert statement touching
	// the same conflict row twice, so this must happen before the write.
	deduped := dedupeKeepLast(lines)
	report.RowsDropped += len(lines) - len(deduped)
	report.RowsAccepted = len(deduped)
	lines = deduped

	rawPath := filepath.Join(i.dataDir, "raw", date+".csv")
	if err := artifact.WriteFileAtomic(rawPath, renderRawCSV(lines)); err != nil {
		return nil, fmt.Errorf("%w: failed to write raw copy: %v", ErrStorage, err)
	}

	err = i.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}, {Name: "player"}, {Name: "opponent"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"team", "minutes", "points", "rebounds", "assists",
			"threes_made", "steals", "blocks", "turnovers", "pra", "updated_at",
		}),
	}).CreateInBatches(lines, 500).Error
	if err != nil {
		return nil, fmt.Errorf("%w: failed to upsert history rows: %v", ErrStorage, err)
	}

	var total int64
	if err := i.db.WithContext(ctx).Model(&models.StatLine{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to count history: %v", ErrStorage, err)
	}

	i.logger.WithFields(logrus.Fields{
		"date":     date,
		"accepted": report.RowsAccepted,
		"dropped":  report.RowsDropped,
		"history":  total,
	}).Info("Daily CSV ingested")

	return &Result{
		Date:         date,
		RowsAccepted: report.RowsAccepted,
		RowsDropped:  report.RowsDropped,
		HistoryRows:  total,
		RawPath:      rawPath,
	}, nil
}

// dedupeKeepLast collapses rows sharing a (player, opponent) key to the last
// occurrence, preserving first-seen order.
func dedupeKeepLast(lines []models.StatLine) []models.StatLine {
	index := make(map[string]int, len(lines))
	out := make([]models.StatLine, 0, len(lines))
	for _, line := range lines {
		key := line.Player + "\x00" + line.Opponent
		if i, ok := index[key]; ok {
			out[i] = line
			continue
		}
		index[key] = len(out)
		out = append(out, line)
	}
	return out
}

// HistoryDates returns the distinct dates present in history, newest first.
func (i *Ingestor) HistoryDates(ctx context.Context) ([]string, error) {
	var dates []string
	err := i.db.WithContext(ctx).Model(&models.StatLine{}).
		Distinct("date").Order("date desc").Pluck("date", &dates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list history dates: %w", err)
	}
	return dates, nil
}

// RawCSVColumns is the canonical column order for exported history CSVs.
var RawCSVColumns = append([]string{"Date", "Player", "Team", "Opp", "Minutes"}, models.StatCodes...)

// RenderHistoryCSV renders stat lines in the canonical column order.
func RenderHistoryCSV(lines []models.StatLine) []byte {
	return renderRawCSV(lines)
}

func renderRawCSV(lines []models.StatLine) []byte {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	w.Write(RawCSVColumns)
	for _, line := range lines {
		record := []string{
			line.Date, line.Player, line.Team, line.Opponent,
			strconv.FormatFloat(line.Minutes, 'f', -1, 64),
		}
		for _, code := range models.StatCodes {
			if v, ok := line.StatValue(code); ok {
				record = append(record, strconv.FormatFloat(v, 'f', -1, 64))
			} else {
				record = append(record, "")
			}
		}
		w.Write(record)
	}
	w.Flush()
	return []byte(sb.String())
}
