// Package evaluator scores players with a seven-factor composite heuristic.
//
//	total = (form + fixtures + season + value + hierarchy + probability + injury) × penalties
//
// Form and season reward points per game up to a cap. Fixtures inverts the
// fixture model's difficulty score. Value is points per game per million.
// Hierarchy, probability and injury come from the optional scraped signal and
// fall back to neutral defaults when it is absent, so unscraped players are
// neither favoured nor punished.
//
// Penalties multiply the sum: 0.7 when minutes reliability is below 0.6 and 0.5
// when the player is not fit. They stack to 0.35. Unknown minutes count as a
// reliability of 0.5 and are penalized.
//
// Evaluate is pure. It reads the player and the fixture model and never mutates
// either.
package evaluator

import (
	"math"
	"sort"

	"github.com/rewired-gh/transferoracle/internal/models"
)

// FixtureScorer rates a player's upcoming fixtures in [2,10], higher is harder.
type FixtureScorer interface {
	FixtureScore(p *models.Player, horizon int) float64
}

// Bounds of the fixture score produced by the fixture model.
const (
	fixtureScoreMin = 2.0
	fixtureScoreMax = 10.0
)

// Evaluator scores players against one fixture model.
type Evaluator struct {
	fixtures  FixtureScorer
	weights   Weights
	constants Constants
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithWeights replaces the component weights.
func WithWeights(w Weights) Option {
	return func(e *Evaluator) { e.weights = w }
}

// WithConstants replaces the scoring constants.
func WithConstants(c Constants) Option {
	return func(e *Evaluator) { e.constants = c }
}

// New creates an Evaluator using the canonical weights and constants.
func New(fixtures FixtureScorer, opts ...Option) *Evaluator {
	e := &Evaluator{
		fixtures:  fixtures,
		weights:   DefaultWeights(),
		constants: DefaultConstants(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Weights returns the active component weights.
func (e *Evaluator) Weights() Weights { return e.weights }

// Evaluate computes the itemized score of p.
func (e *Evaluator) Evaluate(p *models.Player) models.Evaluation {
	w, c := e.weights, e.constants
	sig := p.Signal

	ev := models.Evaluation{
		PlayerID:           p.ID,
		RecentForm:         p.RecentForm(),
		PointsPerGame:      p.PointsPerGame(),
		MinutesReliability: p.MinutesReliability(),
		Available:          p.IsAvailable(),
		Penalties:          []string{},
	}

	ev.Form = capped(ev.RecentForm, c.FormCap) * w.Form
	ev.FormArrow = e.formArrowScore(sig)

	ev.FixtureScore = e.fixtureScore(p)
	ev.Fixtures = unit((fixtureScoreMax-ev.FixtureScore)/(fixtureScoreMax-fixtureScoreMin)) * w.Fixtures

	ev.Season = capped(ev.PointsPerGame, c.SeasonCap) * w.Season

	ev.ValueRatio = ev.PointsPerGame / math.Max(p.PriceMillions(), c.PriceFloor)
	ev.Value = capped(ev.ValueRatio, c.ValueRatioCap) * w.Value

	ev.Hierarchy = e.hierarchyScore(sig)
	ev.Probability = e.probabilityScore(sig)
	ev.Injury = e.injuryScore(sig)

	ev.PrePenalty = ev.Form + ev.FormArrow + ev.Fixtures + ev.Season + ev.Value +
		ev.Hierarchy + ev.Probability + ev.Injury

	total := ev.PrePenalty
	if ev.MinutesReliability < c.MinutesThreshold {
		total *= c.LowMinutesMultiplier
		ev.Penalties = append(ev.Penalties, models.PenaltyLowMinutes)
	}
	if !ev.Available {
		total *= c.UnavailableMultiplier
		ev.Penalties = append(ev.Penalties, models.PenaltyUnavailable)
	}
	ev.Total = total

	if sig != nil {
		ev.ScrapedHierarchy = sig.Hierarchy
		ev.ScrapedProbability = sig.PlayProbability
		ev.ScrapedFormArrow = sig.FormArrow
		ev.ScrapedInjuryRisk = sig.InjuryRisk
	}
	return ev
}

func (e *Evaluator) fixtureScore(p *models.Player) float64 {
	if e.fixtures == nil {
		return (fixtureScoreMin + fixtureScoreMax) / 2
	}
	return e.fixtures.FixtureScore(p, e.constants.FixtureHorizon)
}

// formArrowScore is full weight at arrow 1 and zero at arrow 5.
func (e *Evaluator) formArrowScore(sig *models.ScrapedSignal) float64 {
	if sig == nil || sig.FormArrow == nil {
		return e.constants.FormArrowDefault * e.weights.FormArrow
	}
	span := float64(models.FormArrowMax - models.FormArrowMin)
	return unit(float64(models.FormArrowMax-*sig.FormArrow)/span) * e.weights.FormArrow
}

// hierarchyScore is linear from full weight at rank 1 to zero at
// HierarchyZeroRank; ranks past it score zero.
func (e *Evaluator) hierarchyScore(sig *models.ScrapedSignal) float64 {
	if sig == nil || sig.Hierarchy == nil {
		return e.constants.HierarchyDefault * e.weights.Hierarchy
	}
	zero := float64(e.constants.HierarchyZeroRank)
	span := zero - float64(models.HierarchyBest)
	return unit((zero-float64(*sig.Hierarchy))/span) * e.weights.Hierarchy
}

func (e *Evaluator) probabilityScore(sig *models.ScrapedSignal) float64 {
	if sig == nil || sig.PlayProbability == nil {
		return e.constants.ProbabilityDefault * e.weights.Probability
	}
	return unit(*sig.PlayProbability) * e.weights.Probability
}

func (e *Evaluator) injuryScore(sig *models.ScrapedSignal) float64 {
	factor := e.constants.InjuryDefault
	if sig != nil && sig.InjuryRisk != nil {
		if risk, ok := models.ParseInjuryRisk(string(*sig.InjuryRisk)); ok {
			if f, ok := e.constants.InjuryFactors[risk]; ok {
				factor = f
			}
		}
	}
	return factor * e.weights.Injury
}

// EvaluateAll evaluates players in order.
func (e *Evaluator) EvaluateAll(players []*models.Player) []models.Evaluation {
	out := make([]models.Evaluation, 0, len(players))
	for _, p := range players {
		out = append(out, e.Evaluate(p))
	}
	return out
}

// Rank sorts evaluations by total, best first. Ties keep input order.
func Rank(evals []models.Evaluation) {
	sort.SliceStable(evals, func(i, j int) bool {
		return evals[i].Total > evals[j].Total
	})
}

// capped maps v onto [0,1] with 1 reached at limit.
func capped(v, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return unit(v / limit)
}

func unit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
