package evaluator

import (
	"errors"

	"github.com/rewired-gh/transferoracle/internal/models"
)

// Weights is the maximum contribution of each component. FormArrow is the
// scraped form-arrow addend that sits on top of the base form weight.
type Weights struct {
	Form        float64 `mapstructure:"form" json:"form"`
	FormArrow   float64 `mapstructure:"form_arrow" json:"form_arrow"`
	Fixtures    float64 `mapstructure:"fixtures" json:"fixtures"`
	Season      float64 `mapstructure:"season" json:"season"`
	Value       float64 `mapstructure:"value" json:"value"`
	Hierarchy   float64 `mapstructure:"hierarchy" json:"hierarchy"`
	Probability float64 `mapstructure:"probability" json:"probability"`
	Injury      float64 `mapstructure:"injury" json:"injury"`
}

// DefaultWeights returns the canonical weight table.
func DefaultWeights() Weights {
	return Weights{
		Form:        15,
		FormArrow:   10,
		Fixtures:    20,
		Season:      15,
		Value:       10,
		Hierarchy:   15,
		Probability: 10,
		Injury:      5,
	}
}

// Validate rejects negative weights.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Form, w.FormArrow, w.Fixtures, w.Season, w.Value, w.Hierarchy, w.Probability, w.Injury} {
		if v < 0 {
			return errors.New("weights must not be negative")
		}
	}
	return nil
}

// Constants holds every other tunable of the scoring formula.
type Constants struct {
	// FormCap and SeasonCap are the points per game that earn full weight.
	FormCap   float64 `mapstructure:"form_cap" json:"form_cap"`
	SeasonCap float64 `mapstructure:"season_cap" json:"season_cap"`

	// ValueRatioCap is the points-per-million ratio that earns full weight.
	ValueRatioCap float64 `mapstructure:"value_ratio_cap" json:"value_ratio_cap"`
	PriceFloor    float64 `mapstructure:"price_floor" json:"price_floor"`

	// HierarchyZeroRank is the rank that scores zero.
	HierarchyZeroRank int `mapstructure:"hierarchy_zero_rank" json:"hierarchy_zero_rank"`

	// Neutral defaults, as fractions of the component weight.
	FormArrowDefault   float64 `mapstructure:"form_arrow_default" json:"form_arrow_default"`
	HierarchyDefault   float64 `mapstructure:"hierarchy_default" json:"hierarchy_default"`
	ProbabilityDefault float64 `mapstructure:"probability_default" json:"probability_default"`
	InjuryDefault      float64 `mapstructure:"injury_default" json:"injury_default"`

	InjuryFactors map[models.InjuryRisk]float64 `mapstructure:"-" json:"injury_factors"`

	MinutesThreshold      float64 `mapstructure:"minutes_threshold" json:"minutes_threshold"`
	LowMinutesMultiplier  float64 `mapstructure:"low_minutes_multiplier" json:"low_minutes_multiplier"`
	UnavailableMultiplier float64 `mapstructure:"unavailable_multiplier" json:"unavailable_multiplier"`

	FixtureHorizon int `mapstructure:"fixture_horizon" json:"fixture_horizon"`
}

// DefaultInjuryFactors maps each risk category to a fraction of the injury
// weight. Ironman exceeds 1 as a bonus.
func DefaultInjuryFactors() map[models.InjuryRisk]float64 {
	return map[models.InjuryRisk]float64{
		models.InjuryRiskIronman: 1.3,
		models.InjuryRiskLow:     1.0,
		models.InjuryRiskMedium:  0.5,
		models.InjuryRiskHigh:    0.1,
	}
}

// DefaultConstants returns the canonical constant table.
func DefaultConstants() Constants {
	return Constants{
		FormCap:               10,
		SeasonCap:             10,
		ValueRatioCap:         2.0,
		PriceFloor:            0.1,
		HierarchyZeroRank:     6,
		FormArrowDefault:      0.5,
		HierarchyDefault:      0.5,
		ProbabilityDefault:    0.7,
		InjuryDefault:         0.7,
		InjuryFactors:         DefaultInjuryFactors(),
		MinutesThreshold:      0.6,
		LowMinutesMultiplier:  0.7,
		UnavailableMultiplier: 0.5,
		FixtureHorizon:        3,
	}
}

// Validate checks that the constants produce a well-defined score.
func (c Constants) Validate() error {
	if c.FormCap <= 0 || c.SeasonCap <= 0 || c.ValueRatioCap <= 0 {
		return errors.New("form_cap, season_cap and value_ratio_cap must be positive")
	}
	if c.PriceFloor <= 0 {
		return errors.New("price_floor must be positive")
	}
	if c.HierarchyZeroRank <= models.HierarchyBest {
		return errors.New("hierarchy_zero_rank must be greater than 1")
	}
	if c.MinutesThreshold < 0 || c.MinutesThreshold > 1 {
		return errors.New("minutes_threshold must be between 0.0 and 1.0")
	}
	if c.LowMinutesMultiplier < 0 || c.UnavailableMultiplier < 0 {
		return errors.New("penalty multipliers must not be negative")
	}
	if c.FixtureHorizon < 1 {
		return errors.New("fixture_horizon must be at least 1")
	}
	return nil
}
