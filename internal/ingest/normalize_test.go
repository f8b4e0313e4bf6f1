package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDailyHeaderAliases(t *testing.T) {
	csv := "name,TEAM,Opponent,MINS,points,rebounds,assists\n" +
		"Jayson Tatum,BOS,NYK,36.5,27.1,8.2,4.6\n"

	lines, report, err := ParseDaily(strings.NewReader(csv), "2026-01-15")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 1, report.RowsAccepted)

	line := lines[0]
	assert.Equal(t, "Jayson Tatum", line.Player)
	assert.Equal(t, "BOS", line.Team)
	assert.Equal(t, "NYK", line.Opponent)
	assert.Equal(t, 36.5, line.Minutes)

	pts, ok := line.StatValue("PTS")
	require.True(t, ok)
	assert.Equal(t, 27.1, pts)
}

func TestParseDailyMissingRequiredColumn(t *testing.T) {
	csv := "Player,Team,Minutes,PTS\nJayson Tatum,BOS,36.5,27.1\n"

	_, _, err := ParseDaily(strings.NewReader(csv), "2026-01-15")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Opp")
}

func TestParseDailyDropsBadRows(t *testing.T) {
	csv := "Player,Team,Opp,Minutes,PTS\n" +
		"Jayson Tatum,BOS,NYK,36.5,27.1\n" +
		",BOS,NYK,30,12\n" + // no player
		"Al Horford,BOS,NYK,0,0\n" + // zero minutes
		"Derrick White,BOS,NYK,not-a-number,14\n" // bad minutes

	lines, report, err := ParseDaily(strings.NewReader(csv), "2026-01-15")
	require.NoError(t, err)
	assert.Len(t, lines, 1)
	assert.Equal(t, 1, report.RowsAccepted)
	assert.Equal(t, 3, report.RowsDropped)
}

func TestParseDailyDerivesPRA(t *testing.T) {
	csv := "Player,Team,Opp,Minutes,PTS,REB,AST\n" +
		"Nikola Jokic,DEN,LAL,34,26.5,12.1,9.4\n"

	lines, _, err := ParseDaily(strings.NewReader(csv), "2026-01-15")
	require.NoError(t, err)
	require.Len(t, lines, 1)

	pra, ok := lines[0].StatValue("PRA")
	require.True(t, ok)
	assert.InDelta(t, 48.0, pra, 1e-9)
}

func TestParseDailyUnparseableStatBecomesNull(t *testing.T) {
	csv := "Player,Team,Opp,Minutes,PTS,REB\n" +
		"Jayson Tatum,BOS,NYK,36.5,DNP,8.2\n"

	lines, _, err := ParseDaily(strings.NewReader(csv), "2026-01-15")
	require.NoError(t, err)
	require.Len(t, lines, 1)

	_, ok := lines[0].StatValue("PTS")
	assert.False(t, ok)
	reb, ok := lines[0].StatValue("REB")
	require.True(t, ok)
	assert.Equal(t, 8.2, reb)
}

func TestParseDailySniffsDelimiter(t *testing.T) {
	csv := "Player;Team;Opp;Minutes;PTS\n" +
		"Luka Doncic;DAL;PHX;37.0;32.4\n"

	lines, _, err := ParseDaily(strings.NewReader(csv), "2026-01-15")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "Luka Doncic", lines[0].Player)
}

func TestNormalizeTeam(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"bos", "BOS"},
		{" BRK ", "BKN"},
		{"GS", "GSW"},
		{"NYK", "NYK"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTeam(tt.in))
	}
}

func TestParseDate(t *testing.T) {
	assert.Equal(t, "2026-01-15", ParseDate("2026-01-15"))
	assert.Equal(t, "2026-01-15", ParseDate("01/15/2026"))
	assert.Equal(t, "2026-01-15", ParseDate("2026/01/15"))

	today := time.Now().Format("2006-01-02")
	assert.Equal(t, today, ParseDate(""))
	assert.Equal(t, today, ParseDate("nonsense"))
}
