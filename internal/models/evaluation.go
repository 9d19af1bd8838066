package models

import "time"

// Penalty labels recorded on an Evaluation.
const (
	PenaltyLowMinutes  = "low_minutes"
	PenaltyUnavailable = "unavailable"
)

// Evaluation is the itemized score of one player. Sub-scores are already weighted, so
// Total equals the sum of sub-scores times every applied penalty multiplier.
type Evaluation struct {
	PlayerID string  `json:"player_id"`
	Total    float64 `json:"total"`

	Form        float64 `json:"form"`
	FormArrow   float64 `json:"form_arrow"`
	Fixtures    float64 `json:"fixtures"`
	Season      float64 `json:"season"`
	Value       float64 `json:"value"`
	Hierarchy   float64 `json:"hierarchy"`
	Probability float64 `json:"probability"`
	Injury      float64 `json:"injury"`
	PrePenalty  float64 `json:"pre_penalty"`

	RecentForm         float64  `json:"recent_form"`
	FixtureScore       float64  `json:"fixture_score"`
	PointsPerGame      float64  `json:"points_per_game"`
	ValueRatio         float64  `json:"value_ratio"`
	MinutesReliability float64  `json:"minutes_reliability"`
	Available          bool     `json:"available"`
	Penalties          []string `json:"penalties,omitempty"`

	ScrapedHierarchy   *int        `json:"scraped_hierarchy,omitempty"`
	ScrapedProbability *float64    `json:"scraped_probability,omitempty"`
	ScrapedFormArrow   *int        `json:"scraped_form_arrow,omitempty"`
	ScrapedInjuryRisk  *InjuryRisk `json:"scraped_injury_risk,omitempty"`
}

// TransferSuggestion pairs one owned player with one external candidate.
type TransferSuggestion struct {
	ID              string     `json:"id"`
	Out             *Player    `json:"out"`
	OutEval         Evaluation `json:"out_eval"`
	In              *Player    `json:"in"`
	InEval          Evaluation `json:"in_eval"`
	Improvement     float64    `json:"improvement"`
	AcquisitionCost int64      `json:"acquisition_cost"`
	NetCost         int64      `json:"net_cost"`
	ValueRatio      float64    `json:"value_ratio"`
	AcquisitionType string     `json:"acquisition_type"`
	RemainingBudget int64      `json:"remaining_budget"`
}

// FixtureDifficulty is one upcoming match for a team, annotated with its difficulty.
type FixtureDifficulty struct {
	MatchID    string    `json:"match_id"`
	Opponent   string    `json:"opponent"`
	IsHome     bool      `json:"is_home"`
	Difficulty float64   `json:"difficulty"`
	Kickoff    time.Time `json:"kickoff"`
}
