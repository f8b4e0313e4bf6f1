package projection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jstittsworth/nba-projections/internal/artifact"
)

func testSet() *artifact.Set {
	set := artifact.NewSet()
	set.TrainedAt = time.Date(2026, 1, 15, 6, 0, 0, 0, time.UTC)
	set.Stats["PTS"] = &artifact.StatModel{
		Stat:       "PTS",
		Intercept:  1.5,
		MedianRate: 0.45,
		Rows:       100,
		Rates: map[string]float64{
			"Jayson Tatum": 0.8,
		},
		Adjustments: map[string]float64{
			"MIA": -2.0,
			"NYK": 1.0,
		},
	}
	set.PlayersMaster = map[string]string{"Jayson Tatum": "BOS"}
	return set
}

func newTestEngine() *Engine {
	e := NewEngine()
	e.Swap(testSet())
	return e
}

func TestProjectKnownPlayerAndOpponent(t *testing.T) {
	e := newTestEngine()

	result, err := e.Project(Request{Player: "Jayson Tatum", Opponent: "MIA", Minutes: 30})
	require.NoError(t, err)

	pts := result.Stats["PTS"]
	// 1.5 + 30*0.8 - 2.0
	assert.InDelta(t, 23.5, pts.Value, 1e-9)
	assert.False(t, pts.UsedMedianRate)
	assert.False(t, pts.UnknownOpp)
	assert.Equal(t, "BOS", result.Team)
}

func TestProjectUnseenPlayerUsesMedianRate(t *testing.T) {
	e := newTestEngine()

	result, err := e.Project(Request{Player: "Some Rookie", Opponent: "MIA", Minutes: 20})
	require.NoError(t, err)

	pts := result.Stats["PTS"]
	assert.True(t, pts.UsedMedianRate)
	// 1.5 + 20*0.45 - 2.0
	assert.InDelta(t, 8.5, pts.Value, 1e-9)
}

func TestProjectUnseenOpponentZeroAdjustment(t *testing.T) {
	e := newTestEngine()

	result, err := e.Project(Request{Player: "Jayson Tatum", Opponent: "SEA", Minutes: 30})
	require.NoError(t, err)

	pts := result.Stats["PTS"]
	assert.True(t, pts.UnknownOpp)
	assert.Equal(t, 0.0, pts.OppAdjustment)
	// 1.5 + 30*0.8
	assert.InDelta(t, 25.5, pts.Value, 1e-9)
}

func TestProjectLinearInMinutes(t *testing.T) {
	e := newTestEngine()

	p10, err := e.Project(Request{Player: "Jayson Tatum", Opponent: "NYK", Minutes: 10})
	require.NoError(t, err)
	p20, err := e.Project(Request{Player: "Jayson Tatum", Opponent: "NYK", Minutes: 20})
	require.NoError(t, err)
	p30, err := e.Project(Request{Player: "Jayson Tatum", Opponent: "NYK", Minutes: 30})
	require.NoError(t, err)

	step1 := p20.Stats["PTS"].Value - p10.Stats["PTS"].Value
	step2 := p30.Stats["PTS"].Value - p20.Stats["PTS"].Value
	assert.InDelta(t, step1, step2, 1e-9)
}

func TestProjectClampsNegativeToZero(t *testing.T) {
	e := NewEngine()
	set := artifact.NewSet()
	set.Stats["BLK"] = &artifact.StatModel{
		Stat:        "BLK",
		Intercept:   -1.0,
		MedianRate:  0.01,
		Rows:        50,
		Rates:       map[string]float64{},
		Adjustments: map[string]float64{},
	}
	e.Swap(set)

	result, err := e.Project(Request{Player: "Guard", Opponent: "NYK", Minutes: 5})
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Stats["BLK"].Value)
}

func TestProjectOpponentCaseInsensitive(t *testing.T) {
	e := newTestEngine()

	result, err := e.Project(Request{Player: "Jayson Tatum", Opponent: "mia", Minutes: 30})
	require.NoError(t, err)
	assert.False(t, result.Stats["PTS"].UnknownOpp)
}

func TestProjectValidation(t *testing.T) {
	e := newTestEngine()

	_, err := e.Project(Request{Player: "  ", Opponent: "MIA", Minutes: 30})
	assert.Error(t, err)

	_, err = e.Project(Request{Player: "Jayson Tatum", Opponent: "MIA", Minutes: -1})
	assert.Error(t, err)
}

func TestProjectWithoutArtifacts(t *testing.T) {
	e := NewEngine()
	assert.False(t, e.Ready())

	_, err := e.Project(Request{Player: "Jayson Tatum", Opponent: "MIA", Minutes: 30})
	assert.Error(t, err)
}

func TestSwapReplacesServedSet(t *testing.T) {
	e := newTestEngine()
	require.True(t, e.Ready())

	fresh := testSet()
	fresh.Stats["PTS"].Rates["Jayson Tatum"] = 1.0
	e.Swap(fresh)

	result, err := e.Project(Request{Player: "Jayson Tatum", Opponent: "NYK", Minutes: 10})
	require.NoError(t, err)
	// 1.5 + 10*1.0 + 1.0
	assert.InDelta(t, 12.5, result.Stats["PTS"].Value, 1e-9)
}

func TestPlayerRatesAndOpponentAdjustments(t *testing.T) {
	e := newTestEngine()

	rates, ok := e.PlayerRates("Jayson Tatum")
	require.True(t, ok)
	assert.InDelta(t, 0.8, rates["PTS"], 1e-9)

	_, ok = e.PlayerRates("Some Rookie")
	assert.False(t, ok)

	adjustments, ok := e.OpponentAdjustments("mia")
	require.True(t, ok)
	assert.InDelta(t, -2.0, adjustments["PTS"], 1e-9)

	_, ok = e.OpponentAdjustments("SEA")
	assert.False(t, ok)
}
