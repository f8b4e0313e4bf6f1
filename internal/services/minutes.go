package services

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jstittsworth/nba-projections/internal/artifact"
	"github.com/jstittsworth/nba-projections/internal/ingest"
)

// MinutesOverride is an operator-supplied minutes value for a player,
// used when a projection request omits minutes.
type MinutesOverride struct {
	Minutes  float64 `json:"minutes"`
	Opponent string  `json:"opponent,omitempty"`
}

type minutesPayload struct {
	UpdatedAt *time.Time                 `json:"updated_at"`
	Overrides map[string]MinutesOverride `json:"overrides"`
}

// MinutesStore persists minutes overrides as a JSON artifact, keyed by
// normalized player name.
type MinutesStore struct {
	mu   sync.RWMutex
	path string
	data minutesPayload
}

func NewMinutesStore(artifactsDir string) (*MinutesStore, error) {
	s := &MinutesStore{
		path: filepath.Join(artifactsDir, "minutes_overrides.json"),
		data: minutesPayload{Overrides: make(map[string]MinutesOverride)},
	}

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read minutes overrides: %w", err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("bad minutes overrides file: %w", err)
	}
	if s.data.Overrides == nil {
		s.data.Overrides = make(map[string]MinutesOverride)
	}
	return s, nil
}

// normalizeName collapses whitespace and lowercases for lookups.
func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// Lookup returns the override for a player, if any.
func (s *MinutesStore) Lookup(player string) (MinutesOverride, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.data.Overrides[normalizeName(player)]
	return o, ok
}

// Snapshot returns the current overrides and their last update time.
func (s *MinutesStore) Snapshot() (map[string]MinutesOverride, *time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]MinutesOverride, len(s.data.Overrides))
	for k, v := range s.data.Overrides {
		out[k] = v
	}
	return out, s.data.UpdatedAt
}

// header aliases accepted in a minutes CSV
var minutesHeaderAliases = map[string][]string{
	"player":  {"player", "name", "player_name"},
	"minutes": {"minutes", "mins", "min"},
	"opp":     {"opp", "opponent", "opp_team"},
}

// LoadCSV replaces all overrides from an uploaded CSV. Rows without a player
// or a parseable minutes value are skipped.
func (s *MinutesStore) LoadCSV(r io.Reader) (int, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return 0, fmt.Errorf("empty file")
	}

	reader := csv.NewReader(strings.NewReader(string(raw)))
	reader.Comma = sniffMinutesDelimiter(raw)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("no headers found: %w", err)
	}
	cols := make(map[string]int)
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		for canon, aliases := range minutesHeaderAliases {
			for _, a := range aliases {
				if key == a {
					if _, taken := cols[canon]; !taken {
						cols[canon] = i
					}
				}
			}
		}
	}
	if _, ok := cols["player"]; !ok {
		return 0, fmt.Errorf("missing player column")
	}
	if _, ok := cols["minutes"]; !ok {
		return 0, fmt.Errorf("missing minutes column")
	}

	overrides := make(map[string]MinutesOverride)
	count := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read CSV row: %w", err)
		}
		get := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		player := get("player")
		if player == "" {
			continue
		}
		minutes, err := strconv.ParseFloat(get("minutes"), 64)
		if err != nil {
			continue
		}
		overrides[normalizeName(player)] = MinutesOverride{
			Minutes:  minutes,
			Opponent: ingest.NormalizeTeam(get("opp")),
		}
		count++
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.data.Overrides = overrides
	s.data.UpdatedAt = &now
	return count, s.saveLocked()
}

func (s *MinutesStore) saveLocked() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal minutes overrides: %w", err)
	}
	return artifact.WriteFileAtomic(s.path, append(data, '\n'))
}

// TemplateCSV is the downloadable header-only upload template.
func TemplateCSV() []byte {
	return []byte("player,opp,minutes\n")
}

func sniffMinutesDelimiter(data []byte) rune {
	line := string(data)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	best, bestCount := ',', strings.Count(line, ",")
	for _, cand := range []string{";", "\t", "|"} {
		if n := strings.Count(line, cand); n > bestCount {
			best, bestCount = rune(cand[0]), n
		}
	}
	return best
}
