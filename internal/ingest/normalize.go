package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jstittsworth/nba-projections/internal/models"
)

// Canonical CSV columns and the header variants seen across daily exports.
// Matching is case-insensitive on trimmed headers.
var columnAliases = map[string][]string{
	"Player":  {"player", "name", "player_name"},
	"Team":    {"team", "tm"},
	"Opp":     {"opp", "opponent", "opp_team"},
	"Minutes": {"minutes", "min", "mins"},
	"PTS":     {"pts", "points"},
	"REB":     {"reb", "rebs", "rebounds"},
	"AST":     {"ast", "assists"},
	"3PM":     {"3pm", "three_pm", "3pt_made", "3pt", "threes"},
	"STL":     {"stl", "steals"},
	"BLK":     {"blk", "blocks"},
	"TO":      {"to", "tov", "turnovers"},
	"PRA":     {"pra"},
}

var requiredColumns = []string{"Player", "Team", "Opp", "Minutes"}

// Stray team codes that show up in some exports.
var teamCodeFixups = map[string]string{
	"BRK": "BKN",
	"GS":  "GSW",
}

var dateLayouts = []string{"2006-01-02", "01/02/2006", "01-02-2006", "2006/01/02"}

// ParseDate normalizes an operator-supplied date string to YYYY-MM-DD,
// defaulting to today when empty or unrecognized.
func ParseDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return time.Now().Format("2006-01-02")
}

// NormalizeTeam uppercases a team code and fixes known stray variants.
func NormalizeTeam(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if fixed, ok := teamCodeFixups[code]; ok {
		return fixed
	}
	return code
}

// Report summarizes one parsed daily file.
type Report struct {
	RowsAccepted int `json:"rows_accepted"`
	RowsDropped  int `json:"rows_dropped"`
}

// ParseDaily reads a daily stat CSV and returns normalized stat lines for the
// given date. Rows with no player name or non-positive minutes are dropped;
// unparseable stat cells become nulls. PRA is derived when the column is
// missing but its components are present.
func ParseDaily(r io.Reader, date string) ([]models.StatLine, *Report, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if !utf8.Valid(raw) {
		raw = latin1ToUTF8(raw)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil, fmt.Errorf("empty file")
	}

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.Comma = sniffDelimiter(raw)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols, err := resolveColumns(header)
	if err != nil {
		return nil, nil, err
	}

	report := &Report{}
	var lines []models.StatLine
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read CSV row: %w", err)
		}

		line, ok := parseRow(record, cols, date)
		if !ok {
			report.RowsDropped++
			continue
		}
		lines = append(lines, line)
		report.RowsAccepted++
	}
	return lines, report, nil
}

// resolveColumns maps canonical column names to record indices. Required
// columns missing from the header are an error; stat columns may be absent.
func resolveColumns(header []string) (map[string]int, error) {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		byName[strings.ToLower(strings.TrimSpace(h))] = i
	}

	cols := make(map[string]int)
	for canon, aliases := range columnAliases {
		for _, candidate := range append([]string{strings.ToLower(canon)}, aliases...) {
			if idx, ok := byName[candidate]; ok {
				cols[canon] = idx
				break
			}
		}
	}
	for _, req := range requiredColumns {
		if _, ok := cols[req]; !ok {
			return nil, fmt.Errorf("missing required column: %s (aliases: %s)",
				req, strings.Join(columnAliases[req], ", "))
		}
	}
	return cols, nil
}

func parseRow(record []string, cols map[string]int, date string) (models.StatLine, bool) {
	field := func(name string) (string, bool) {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return "", false
		}
		return strings.TrimSpace(record[idx]), true
	}

	player, _ := field("Player")
	if player == "" {
		return models.StatLine{}, false
	}
	team, _ := field("Team")
	opp, _ := field("Opp")

	minutesRaw, _ := field("Minutes")
	minutes, err := strconv.ParseFloat(minutesRaw, 64)
	if err != nil || minutes <= 0 {
		return models.StatLine{}, false
	}

	line := models.StatLine{
		Date:     date,
		Player:   player,
		Team:     NormalizeTeam(team),
		Opponent: NormalizeTeam(opp),
		Minutes:  minutes,
	}
	for _, code := range models.StatCodes {
		raw, ok := field(code)
		if !ok || raw == "" {
			continue
		}
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			line.SetStatValue(code, v)
		}
	}

	// Derive PRA when the export omits it.
	if _, ok := line.StatValue("PRA"); !ok {
		pts, okP := line.StatValue("PTS")
		reb, okR := line.StatValue("REB")
		ast, okA := line.StatValue("AST")
		if okP && okR && okA {
			line.SetStatValue("PRA", pts+reb+ast)
		}
	}
	return line, true
}

// sniffDelimiter picks the delimiter with the most hits in the header line.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, cand := range []byte{';', '\t', '|'} {
		if n := bytes.Count(line, []byte{cand}); n > bestCount {
			best, bestCount = rune(cand), n
		}
	}
	return best
}

func latin1ToUTF8(data []byte) []byte {
	buf := make([]rune, len(data))
	for i, b := range data {
		buf[i] = rune(b)
	}
	return []byte(string(buf))
}
