package artifact

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// File name patterns, one trio per stat.
const (
	playerRatesPattern = "model_player_rates_%s.csv"
	oppAdjPattern      = "model_opp_adj_%s.csv"
	metaPattern        = "model_meta_%s.json"
	playersMasterFile  = "players_master.csv"
)

// formatRate renders rates with a fixed precision so retraining on identical
// input produces byte-identical files.
func formatRate(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// WriteFileAtomic writes data to path via a temp file and rename, so readers
// never observe a half-written artifact.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func writeCSVAtomic(path string, header []string, rows [][]string) error {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return WriteFileAtomic(path, []byte(sb.String()))
}

// Save writes the full artifact set under dir.
func (s *Set) Save(dir string) error {
	for _, stat := range sortedStats(s.Stats) {
		if err := s.Stats[stat].save(dir); err != nil {
			return fmt.Errorf("failed to save %s artifacts: %w", stat, err)
		}
	}

	rows := make([][]string, 0, len(s.PlayersMaster))
	for _, player := range s.Players() {
		rows = append(rows, []string{player, s.PlayersMaster[player]})
	}
	if err := writeCSVAtomic(filepath.Join(dir, playersMasterFile), []string{"Player", "Team"}, rows); err != nil {
		return fmt.Errorf("failed to save players master: %w", err)
	}
	return nil
}

func (m *StatModel) save(dir string) error {
	base := baseName(m.Stat)

	players := make([]string, 0, len(m.Rates))
	for p := range m.Rates {
		players = append(players, p)
	}
	sort.Strings(players)
	rateRows := make([][]string, 0, len(players))
	for _, p := range players {
		rateRows = append(rateRows, []string{p, formatRate(m.Rates[p])})
	}
	if err := writeCSVAtomic(filepath.Join(dir, fmt.Sprintf(playerRatesPattern, base)),
		[]string{"Player", "rate_per_min"}, rateRows); err != nil {
		return err
	}

	opponents := make([]string, 0, len(m.Adjustments))
	for o := range m.Adjustments {
		opponents = append(opponents, o)
	}
	sort.Strings(opponents)
	adjRows := make([][]string, 0, len(opponents))
	for _, o := range opponents {
		adjRows = append(adjRows, []string{o, formatRate(m.Adjustments[o])})
	}
	if err := writeCSVAtomic(filepath.Join(dir, fmt.Sprintf(oppAdjPattern, base)),
		[]string{"Opponent", "opp_adj"}, adjRows); err != nil {
		return err
	}

	meta, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return WriteFileAtomic(filepath.Join(dir, fmt.Sprintf(metaPattern, base)), append(meta, '\n'))
}

// Load reads an artifact set from dir. Stats without artifacts on disk are
// skipped; an empty dir yields an empty set.
func Load(dir string, stats []string) (*Set, error) {
	set := NewSet()
	for _, stat := range stats {
		m, err := loadStat(dir, stat)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s artifacts: %w", stat, err)
		}
		if m != nil {
			set.Stats[stat] = m
			if m.AsOf.After(set.TrainedAt) {
				set.TrainedAt = m.AsOf
			}
		}
	}

	master, err := loadKeyValueCSV(filepath.Join(dir, playersMasterFile))
	if err != nil {
		return nil, fmt.Errorf("failed to load players master: %w", err)
	}
	if master != nil {
		set.PlayersMaster = master
	}
	return set, nil
}

func loadStat(dir, stat string) (*StatModel, error) {
	base := baseName(stat)
	metaPath := filepath.Join(dir, fmt.Sprintf(metaPattern, base))
	data, err := os.ReadFile(metaPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	m := &StatModel{Stat: stat}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("bad meta file %s: %w", metaPath, err)
	}

	rates, err := loadFloatCSV(filepath.Join(dir, fmt.Sprintf(playerRatesPattern, base)))
	if err != nil {
		return nil, err
	}
	adjustments, err := loadFloatCSV(filepath.Join(dir, fmt.Sprintf(oppAdjPattern, base)))
	if err != nil {
		return nil, err
	}
	if rates == nil {
		rates = make(map[string]float64)
	}
	if adjustments == nil {
		adjustments = make(map[string]float64)
	}
	m.Rates = rates
	m.Adjustments = adjustments
	return m, nil
}

func loadFloatCSV(path string) (map[string]float64, error) {
	records, err := readCSV(path)
	if err != nil || records == nil {
		return nil, err
	}
	out := make(map[string]float64, len(records))
	for _, rec := range records {
		if len(rec) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad value in %s: %w", path, err)
		}
		out[rec[0]] = v
	}
	return out, nil
}

func loadKeyValueCSV(path string) (map[string]string, error) {
	records, err := readCSV(path)
	if err != nil || records == nil {
		return nil, err
	}
	out := make(map[string]string, len(records))
	for _, rec := range records {
		if len(rec) < 2 {
			continue
		}
		out[rec[0]] = rec[1]
	}
	return out, nil
}

// readCSV returns data rows (header stripped), or nil if the file is absent.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) <= 1 {
		return [][]string{}, nil
	}
	return records[1:], nil
}

func sortedStats(stats map[string]*StatModel) []string {
	out := make([]string, 0, len(stats))
	for s := range stats {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Freshness reports how old the set is relative to now.
func (s *Set) Freshness(now time.Time) time.Duration {
	if s.TrainedAt.IsZero() {
		return 0
	}
	return now.Sub(s.TrainedAt)
}
