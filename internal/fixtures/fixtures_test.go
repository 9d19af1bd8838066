package fixtures

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/transferoracle/internal/models"
)

const ourTeam = "10"

func fixture(id, homeID, homeName, awayID, awayName string, day int) models.Fixture {
	return models.Fixture{
		MatchID:      id,
		Kickoff:      time.Date(2025, 1, day, 18, 0, 0, 0, time.UTC),
		HomeTeamID:   homeID,
		HomeTeamName: homeName,
		AwayTeamID:   awayID,
		AwayTeamName: awayName,
	}
}

func testCalendar() []models.Fixture {
	return []models.Fixture{
		fixture("m1", ourTeam, "Mi Equipo", "1", "Real Madrid", 1),
		fixture("x1", "5", "Sevilla FC", "6", "Real Betis", 1),
		fixture("m2", "2", "Getafe CF", ourTeam, "Mi Equipo", 8),
		fixture("m3", ourTeam, "Mi Equipo", "3", "Real Valladolid", 15),
		fixture("m4", "4", "FC Barcelona", ourTeam, "Mi Equipo", 22),
	}
}

func TestMatchDifficulty(t *testing.T) {
	m := New(nil)

	tests := []struct {
		name     string
		opponent string
		isHome   bool
		want     float64
	}{
		{"strongest opponent at home", "Real Madrid", true, 4.25},
		{"strongest opponent away", "Real Madrid", false, 4.95},
		{"weak opponent at home", "Real Valladolid", true, 2.15},
		{"unknown opponent uses default rating", "Recreativo", true, 2.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, m.MatchDifficulty(tt.opponent, tt.isHome), 1e-9)
		})
	}
}

// The ratings table rates strong clubs high, so the base difficulty is the
// opponent's strength itself. 6 minus the strength would make Real Madrid the
// easiest trip in the league.
func TestBaseDifficultyTracksOpponentStrength(t *testing.T) {
	m := New(nil, WithHomeAdvantage(0), WithAwayPenalty(0))

	for _, name := range []string{"Real Madrid", "Real Valladolid", "Getafe CF"} {
		assert.InDelta(t, m.Rating(name).Strength(), m.MatchDifficulty(name, true), 1e-9, name)
	}
	assert.Greater(t, m.MatchDifficulty("Real Madrid", false), m.MatchDifficulty("Real Valladolid", false))
}

func TestMatchDifficultyMonotonic(t *testing.T) {
	m := New(nil)
	names := []string{"Real Valladolid", "CD Leganés", "Getafe CF", "Sevilla FC", "Athletic Club", "Real Madrid"}

	for i := 1; i < len(names); i++ {
		weaker, stronger := names[i-1], names[i]
		require.Less(t, m.Rating(weaker).Strength(), m.Rating(stronger).Strength())
		for _, home := range []bool{true, false} {
			assert.LessOrEqual(t, m.MatchDifficulty(weaker, home), m.MatchDifficulty(stronger, home),
				"%s should not be harder than %s", weaker, stronger)
		}
	}

	for _, name := range names {
		assert.Less(t, m.MatchDifficulty(name, true), m.MatchDifficulty(name, false),
			"home against %s must be easier than away", name)
	}
}

func TestMatchDifficultyClamped(t *testing.T) {
	easy := New(nil, WithHomeAdvantage(10))
	assert.Equal(t, MinDifficulty, easy.MatchDifficulty("Real Valladolid", true))

	hard := New(nil, WithAwayPenalty(10))
	assert.Equal(t, MaxDifficulty, hard.MatchDifficulty("Real Madrid", false))
}

func TestDifficultyHorizonAndOrder(t *testing.T) {
	m := New(testCalendar())

	got := m.Difficulty(ourTeam, 3)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{got[0].MatchID, got[1].MatchID, got[2].MatchID})
	assert.Equal(t, "Real Madrid", got[0].Opponent)
	assert.True(t, got[0].IsHome)
	assert.Equal(t, "Getafe CF", got[1].Opponent)
	assert.False(t, got[1].IsHome)

	assert.Len(t, m.Difficulty(ourTeam, 10), 4)
	assert.Empty(t, m.Difficulty(ourTeam, 0))
	assert.Empty(t, m.Difficulty("99", 3))
	assert.NotNil(t, m.Difficulty("99", 3))
}

func TestFixtureScore(t *testing.T) {
	m := New(testCalendar())
	p := &models.Player{ID: "p1", TeamID: ourTeam}

	// 2 × {4.25, 3.5, 2.15} weighted 1.0/0.8/0.6.
	want := (8.5*1.0 + 7.0*0.8 + 4.3*0.6) / 2.4
	assert.InDelta(t, want, m.FixtureScore(p, DefaultHorizon), 1e-9)

	single := m.FixtureScore(p, 1)
	assert.InDelta(t, 8.5, single, 1e-9)

	// Past the weight table the last weight is reused.
	four := (8.5*1.0 + 7.0*0.8 + 4.3*0.6 + 2*(4.5+0.2)*0.6) / 3.0
	assert.InDelta(t, four, m.FixtureScore(p, 4), 1e-9)
}

func TestFixtureScoreEmptyCalendarIsNeutral(t *testing.T) {
	m := New(nil)
	p := &models.Player{ID: "p1", TeamID: ourTeam}
	assert.Equal(t, 5.0, m.FixtureScore(p, DefaultHorizon))

	noTeam := &models.Player{ID: "p2"}
	assert.Equal(t, NeutralScore, New(testCalendar()).FixtureScore(noTeam, DefaultHorizon))
}

func TestFixtureScoreRange(t *testing.T) {
	m := New(testCalendar())
	for _, teamID := range []string{ourTeam, "1", "2", "3", "4", "5", "6"} {
		score := m.FixtureScore(&models.Player{ID: "p", TeamID: teamID}, DefaultHorizon)
		assert.GreaterOrEqual(t, score, 2.0)
		assert.LessOrEqual(t, score, 10.0)
	}
}

func TestWithRatingsOverrides(t *testing.T) {
	m := New(nil, WithRatings(Ratings{"Mi Equipo": {Attack: 5, Defense: 5}}))
	assert.Equal(t, 5.0, m.Rating("Mi Equipo").Strength())
	assert.Equal(t, laLigaRatings["Real Madrid"], m.Rating("Real Madrid"))

	// The built-in table is not modified by overrides.
	_, leaked := laLigaRatings["Mi Equipo"]
	assert.False(t, leaked)
}

func TestUpcomingGroupsByClub(t *testing.T) {
	m := New(testCalendar())
	squad := []*models.Player{
		{ID: "a", TeamID: ourTeam, TeamName: "Mi Equipo", Position: models.PositionForward},
		{ID: "b", TeamID: ourTeam, TeamName: "Mi Equipo", Position: models.PositionDefender},
		{ID: "c", TeamID: "5", TeamName: "Sevilla FC", Position: models.PositionCoach},
		{ID: "d", TeamID: "6", TeamName: "Real Betis", Position: models.PositionMidfielder},
		{ID: "e", TeamID: "77", TeamName: "Nowhere", Position: models.PositionGoalkeeper},
	}

	got := m.Upcoming(squad, DefaultHorizon)
	require.Len(t, got, 2)
	assert.Equal(t, ourTeam, got[0].TeamID)
	assert.Len(t, got[0].Fixtures, 3)
	assert.Equal(t, "Real Betis", got[1].TeamName)
	assert.Equal(t, "Sevilla FC", got[1].Fixtures[0].Opponent)
}
