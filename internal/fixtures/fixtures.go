// Package fixtures rates upcoming matches by opponent strength.
//
// A Model is built once per refresh from the gameweek calendar and is read-only
// afterwards, so it is safe for concurrent use.
package fixtures

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/rewired-gh/transferoracle/internal/models"
)

// Difficulty scale bounds.
const (
	MinDifficulty = 1.0
	MaxDifficulty = 5.0
)

// Default tuning.
const (
	DefaultHorizon       = 3
	DefaultHomeAdvantage = 0.5
	DefaultAwayPenalty   = 0.2

	// NeutralScore is the fixture score of a team with no upcoming fixtures.
	NeutralScore = 5.0

	// scoreScale maps difficulty [1,5] onto the fixture score range [2,10].
	scoreScale = 2.0
)

// DefaultHorizonWeights weight the nearest fixture first.
var DefaultHorizonWeights = []float64{1.0, 0.8, 0.6}

// Model computes fixture difficulty from a static strength table.
type Model struct {
	calendar      []models.Fixture
	ratings       Ratings
	homeAdvantage float64
	awayPenalty   float64
	weights       []float64
}

// Option configures a Model.
type Option func(*Model)

// WithRatings overrides strength ratings by team name. Teams not listed keep
// their default rating.
func WithRatings(overrides Ratings) Option {
	return func(m *Model) {
		for name, r := range overrides {
			m.ratings[name] = r
		}
	}
}

// WithHomeAdvantage sets how much playing at home lowers difficulty.
func WithHomeAdvantage(v float64) Option {
	return func(m *Model) { m.homeAdvantage = v }
}

// WithAwayPenalty sets how much playing away raises difficulty.
func WithAwayPenalty(v float64) Option {
	return func(m *Model) { m.awayPenalty = v }
}

// WithHorizonWeights sets the per-fixture weights, nearest first. Fixtures past
// the last weight reuse it.
func WithHorizonWeights(w ...float64) Option {
	return func(m *Model) {
		if len(w) > 0 {
			m.weights = append([]float64(nil), w...)
		}
	}
}

// New creates a model over the calendar. The calendar is copied and its order
// is kept as the fixture order.
func New(calendar []models.Fixture, opts ...Option) *Model {
	m := &Model{
		calendar:      append([]models.Fixture(nil), calendar...),
		ratings:       DefaultRatings(),
		homeAdvantage: DefaultHomeAdvantage,
		awayPenalty:   DefaultAwayPenalty,
		weights:       append([]float64(nil), DefaultHorizonWeights...),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Rating returns the strength of a team, or DefaultRating when unknown.
func (m *Model) Rating(teamName string) Rating {
	if r, ok := m.ratings[teamName]; ok {
		return r
	}
	return DefaultRating
}

// MatchDifficulty rates one match against opponent on the [1,5] scale. A stronger
// opponent is harder; home lowers and away raises the difficulty.
func (m *Model) MatchDifficulty(opponent string, isHome bool) float64 {
	d := m.Rating(opponent).Strength()
	if isHome {
		d -= m.homeAdvantage
	} else {
		d += m.awayPenalty
	}
	return math.Max(MinDifficulty, math.Min(MaxDifficulty, d))
}

// Difficulty returns up to horizon upcoming fixtures of teamID in calendar order.
func (m *Model) Difficulty(teamID string, horizon int) []models.FixtureDifficulty {
	out := []models.FixtureDifficulty{}
	if teamID == "" || horizon <= 0 {
		return out
	}
	for _, f := range m.calendar {
		var opponent string
		var isHome bool
		switch teamID {
		case f.HomeTeamID:
			opponent, isHome = f.AwayTeamName, true
		case f.AwayTeamID:
			opponent, isHome = f.HomeTeamName, false
		default:
			continue
		}
		out = append(out, models.FixtureDifficulty{
			MatchID:    f.MatchID,
			Opponent:   opponent,
			IsHome:     isHome,
			Difficulty: m.MatchDifficulty(opponent, isHome),
			Kickoff:    f.Kickoff,
		})
		if len(out) >= horizon {
			break
		}
	}
	return out
}

// FixtureScore is the weighted average of twice each upcoming difficulty, in
// [2,10] where higher is harder. A team with no fixtures scores NeutralScore.
func (m *Model) FixtureScore(p *models.Player, horizon int) float64 {
	upcoming := m.Difficulty(p.TeamID, horizon)
	if len(upcoming) == 0 {
		return NeutralScore
	}
	scores := make([]float64, len(upcoming))
	weights := make([]float64, len(upcoming))
	for i, f := range upcoming {
		scores[i] = f.Difficulty * scoreScale
		weights[i] = m.weight(i)
	}
	return stat.Mean(scores, weights)
}

func (m *Model) weight(i int) float64 {
	if i < len(m.weights) {
		return m.weights[i]
	}
	return m.weights[len(m.weights)-1]
}

// TeamFixtures groups the upcoming fixtures of one club.
type TeamFixtures struct {
	TeamID   string                     `json:"team_id"`
	TeamName string                     `json:"team_name"`
	Fixtures []models.FixtureDifficulty `json:"fixtures"`
}

// Upcoming returns the upcoming fixtures of every distinct club in the squad,
// in squad order. Coaches are skipped.
func (m *Model) Upcoming(players []*models.Player, horizon int) []TeamFixtures {
	out := []TeamFixtures{}
	seen := make(map[string]bool)
	for _, p := range players {
		if p.Position == models.PositionCoach || seen[p.TeamID] {
			continue
		}
		seen[p.TeamID] = true
		fixtures := m.Difficulty(p.TeamID, horizon)
		if len(fixtures) == 0 {
			continue
		}
		out = append(out, TeamFixtures{TeamID: p.TeamID, TeamName: p.TeamName, Fixtures: fixtures})
	}
	return out
}
