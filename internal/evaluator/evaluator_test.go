package evaluator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/transferoracle/internal/fixtures"
	"github.com/rewired-gh/transferoracle/internal/models"
)

type fixedScore float64

func (f fixedScore) FixtureScore(*models.Player, int) float64 { return float64(f) }

func intPtr(v int) *int { return &v }
func floatPtr(v float64) *float64 { return &v }
func riskPtr(r models.InjuryRisk) *models.InjuryRisk {
	return &r
}

func basePlayer() *models.Player {
	return &models.Player{
		ID:            "p1",
		Nickname:      "Base",
		Position:      models.PositionMidfielder,
		TeamID:        "10",
		AveragePoints: 5,
		LastPoints:    []int{6, 6, 6},
		LastMinutes:   []int{90, 90, 90},
		MarketValue:   10_000_000,
		Status:        models.StatusFit,
	}
}

func TestEvaluateWithoutSignalUsesNeutralDefaults(t *testing.T) {
	e := New(fixedScore(6))
	ev := e.Evaluate(basePlayer())

	assert.InDelta(t, 9.0, ev.Form, 1e-9)
	assert.InDelta(t, 5.0, ev.FormArrow, 1e-9)
	assert.InDelta(t, 10.0, ev.Fixtures, 1e-9)
	assert.InDelta(t, 7.5, ev.Season, 1e-9)
	assert.InDelta(t, 2.5, ev.Value, 1e-9)
	assert.InDelta(t, 7.5, ev.Hierarchy, 1e-9)
	assert.InDelta(t, 7.0, ev.Probability, 1e-9)
	assert.InDelta(t, 3.5, ev.Injury, 1e-9)
	assert.InDelta(t, 52.0, ev.Total, 1e-9)
	assert.Equal(t, ev.PrePenalty, ev.Total)
	assert.Empty(t, ev.Penalties)

	assert.Equal(t, 6.0, ev.RecentForm)
	assert.Equal(t, 6.0, ev.FixtureScore)
	assert.Equal(t, 0.5, ev.ValueRatio)
	assert.Equal(t, 1.0, ev.MinutesReliability)
	assert.True(t, ev.Available)
	assert.Nil(t, ev.ScrapedHierarchy)
	assert.Nil(t, ev.ScrapedInjuryRisk)
}

func TestEvaluateWithFullSignal(t *testing.T) {
	p := basePlayer().WithSignal(&models.ScrapedSignal{
		Hierarchy:       intPtr(1),
		PlayProbability: floatPtr(0.9),
		FormArrow:       intPtr(1),
		InjuryRisk:      riskPtr(models.InjuryRiskIronman),
	})

	ev := New(fixedScore(6)).Evaluate(p)
	assert.InDelta(t, 10.0, ev.FormArrow, 1e-9)
	assert.InDelta(t, 15.0, ev.Hierarchy, 1e-9)
	assert.InDelta(t, 9.0, ev.Probability, 1e-9)
	assert.InDelta(t, 6.5, ev.Injury, 1e-9)
	require.NotNil(t, ev.ScrapedHierarchy)
	assert.Equal(t, 1, *ev.ScrapedHierarchy)
	require.NotNil(t, ev.ScrapedInjuryRisk)
	assert.Equal(t, models.InjuryRiskIronman, *ev.ScrapedInjuryRisk)
}

func TestHierarchyMonotonic(t *testing.T) {
	e := New(fixedScore(5))
	prev := 1e9
	for rank := models.HierarchyBest; rank <= models.HierarchyWorst; rank++ {
		p := basePlayer().WithSignal(&models.ScrapedSignal{Hierarchy: intPtr(rank)})
		got := e.Evaluate(p).Hierarchy
		assert.LessOrEqual(t, got, prev, "rank %d must not score above rank %d", rank, rank-1)
		prev = got
	}

	rank := func(r int) float64 {
		return e.Evaluate(basePlayer().WithSignal(&models.ScrapedSignal{Hierarchy: intPtr(r)})).Hierarchy
	}
	assert.InDelta(t, 15.0, rank(1), 1e-9)
	assert.InDelta(t, 9.0, rank(3), 1e-9)
	assert.InDelta(t, 0.0, rank(6), 1e-9)
	assert.InDelta(t, 0.0, rank(7), 1e-9)
}

func TestFixturesContributionMonotonicAndHomeBeatsAway(t *testing.T) {
	kick := time.Date(2025, 2, 1, 18, 0, 0, 0, time.UTC)
	opponents := []string{"Real Valladolid", "Getafe CF", "Sevilla FC", "Athletic Club", "Real Madrid"}

	contribution := func(opponent string, home bool) float64 {
		f := models.Fixture{MatchID: "m", Kickoff: kick, HomeTeamID: "10", HomeTeamName: "Mi Equipo", AwayTeamID: "20", AwayTeamName: opponent}
		if !home {
			f = models.Fixture{MatchID: "m", Kickoff: kick, HomeTeamID: "20", HomeTeamName: opponent, AwayTeamID: "10", AwayTeamName: "Mi Equipo"}
		}
		return New(fixtures.New([]models.Fixture{f})).Evaluate(basePlayer()).Fixtures
	}

	for i := 1; i < len(opponents); i++ {
		for _, home := range []bool{true, false} {
			assert.GreaterOrEqual(t, contribution(opponents[i-1], home), contribution(opponents[i], home),
				"%s must not be a better fixture than %s", opponents[i], opponents[i-1])
		}
	}
	for _, opp := range opponents {
		assert.Greater(t, contribution(opp, true), contribution(opp, false), "home against %s must beat away", opp)
	}

	// No fixtures is the neutral 5.0 fixture score.
	neutral := New(fixtures.New(nil)).Evaluate(basePlayer())
	assert.Equal(t, fixtures.NeutralScore, neutral.FixtureScore)
	assert.InDelta(t, 12.5, neutral.Fixtures, 1e-9)
}

func TestPenaltiesStack(t *testing.T) {
	e := New(fixedScore(6))

	tests := []struct {
		name       string
		minutes    []int
		status     string
		multiplier float64
		penalties  []string
	}{
		{"fit regular", []int{90, 90, 90}, models.StatusFit, 1.0, []string{}},
		{"low minutes", []int{30, 30, 60}, models.StatusFit, 0.7, []string{models.PenaltyLowMinutes}},
		{"injured", []int{90, 90, 90}, "injured", 0.5, []string{models.PenaltyUnavailable}},
		{"both", []int{0, 45, 0}, "suspended", 0.35, []string{models.PenaltyLowMinutes, models.PenaltyUnavailable}},
		{"unknown minutes count as unreliable", nil, models.StatusFit, 0.7, []string{models.PenaltyLowMinutes}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := basePlayer()
			p.LastMinutes = tt.minutes
			p.Status = tt.status

			ev := e.Evaluate(p)
			assert.InDelta(t, tt.multiplier*ev.PrePenalty, ev.Total, 1e-9)
			assert.Equal(t, tt.penalties, ev.Penalties)
		})
	}
}

func TestProbabilityAndInjurySignals(t *testing.T) {
	e := New(fixedScore(6))

	zero := e.Evaluate(basePlayer().WithSignal(&models.ScrapedSignal{PlayProbability: floatPtr(0)}))
	assert.Equal(t, 0.0, zero.Probability, "a scraped zero probability is not absence")

	tests := []struct {
		risk models.InjuryRisk
		want float64
	}{
		{models.InjuryRiskIronman, 6.5},
		{models.InjuryRiskLow, 5.0},
		{models.InjuryRiskMedium, 2.5},
		{models.InjuryRiskHigh, 0.5},
		{"Cristal", 3.5},
	}
	for _, tt := range tests {
		ev := e.Evaluate(basePlayer().WithSignal(&models.ScrapedSignal{InjuryRisk: riskPtr(tt.risk)}))
		assert.InDelta(t, tt.want, ev.Injury, 1e-9, "risk %s", tt.risk)
	}
}

func TestUnknownMinutesPenalized(t *testing.T) {
	p := basePlayer()
	p.LastMinutes = nil

	ev := New(fixedScore(6)).Evaluate(p)
	assert.Equal(t, 0.5, ev.MinutesReliability)
	assert.InDelta(t, 52.0, ev.PrePenalty, 1e-9)
	assert.InDelta(t, 0.7*52.0, ev.Total, 1e-9)
	assert.Equal(t, []string{models.PenaltyLowMinutes}, ev.Penalties)
}

func TestFormArrowHottestIsOne(t *testing.T) {
	e := New(fixedScore(6))
	arrow := func(a int) float64 {
		return e.Evaluate(basePlayer().WithSignal(&models.ScrapedSignal{FormArrow: intPtr(a)})).FormArrow
	}

	assert.InDelta(t, 10.0, arrow(1), 1e-9)
	assert.InDelta(t, 5.0, arrow(3), 1e-9)
	assert.InDelta(t, 0.0, arrow(5), 1e-9)
	for a := models.FormArrowMin + 1; a <= models.FormArrowMax; a++ {
		assert.Less(t, arrow(a), arrow(a-1), "arrow %d must score below arrow %d", a, a-1)
	}
}

func TestValueAndSeasonCaps(t *testing.T) {
	e := New(fixedScore(6))

	p := basePlayer()
	p.AveragePoints = 14
	p.LastPoints = []int{20, 12, 16}
	p.MarketValue = 0

	ev := e.Evaluate(p)
	assert.InDelta(t, 15.0, ev.Form, 1e-9)
	assert.InDelta(t, 15.0, ev.Season, 1e-9)
	assert.InDelta(t, 140.0, ev.ValueRatio, 1e-9, "price floors at 0.1M")
	assert.InDelta(t, 10.0, ev.Value, 1e-9)

	p.AveragePoints = -2
	p.LastPoints = []int{-1, -3, -2}
	ev = e.Evaluate(p)
	assert.Equal(t, 0.0, ev.Form)
	assert.Equal(t, 0.0, ev.Season)
	assert.Equal(t, 0.0, ev.Value)
}

func TestEvaluateIsPure(t *testing.T) {
	e := New(fixedScore(4))
	p := basePlayer()
	before := *p

	first := e.Evaluate(p)
	second := e.Evaluate(p)
	assert.Equal(t, first, second)
	assert.Equal(t, before, *p)
}

func TestCustomWeights(t *testing.T) {
	w := DefaultWeights()
	w.Fixtures = 0
	ev := New(fixedScore(2), WithWeights(w)).Evaluate(basePlayer())
	assert.Equal(t, 0.0, ev.Fixtures)
}

func TestRankIsStable(t *testing.T) {
	evals := []models.Evaluation{
		{PlayerID: "a", Total: 10},
		{PlayerID: "b", Total: 30},
		{PlayerID: "c", Total: 10},
		{PlayerID: "d", Total: 20},
	}
	Rank(evals)
	ids := []string{evals[0].PlayerID, evals[1].PlayerID, evals[2].PlayerID, evals[3].PlayerID}
	assert.Equal(t, []string{"b", "d", "a", "c"}, ids)
}

func TestConstantsValidate(t *testing.T) {
	assert.NoError(t, DefaultConstants().Validate())
	assert.NoError(t, DefaultWeights().Validate())

	c := DefaultConstants()
	c.PriceFloor = 0
	assert.Error(t, c.Validate())

	c = DefaultConstants()
	c.HierarchyZeroRank = 1
	assert.Error(t, c.Validate())

	w := DefaultWeights()
	w.Injury = -1
	assert.Error(t, w.Validate())
}
