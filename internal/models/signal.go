package models

import (
	"errors"
	"strings"
)

// Hierarchy rank bounds. 1 is the most essential starter.
const (
	HierarchyBest  = 1
	HierarchyWorst = 7
)

// Form arrow bounds. 1 is the hottest form, 5 the coldest.
const (
	FormArrowMin = 1
	FormArrowMax = 5
)

// InjuryRisk is the scraped injury-risk category.
type InjuryRisk string

const (
	InjuryRiskIronman InjuryRisk = "Ironman"
	InjuryRiskLow     InjuryRisk = "Bajo"
	InjuryRiskMedium  InjuryRisk = "Medio"
	InjuryRiskHigh    InjuryRisk = "Alto"
)

// ParseInjuryRisk maps a scraped label onto the closed set of categories.
// Both the site's Spanish labels and English equivalents are accepted.
// ok is false for unknown labels.
func ParseInjuryRisk(label string) (InjuryRisk, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "ironman":
		return InjuryRiskIronman, true
	case "bajo", "low":
		return InjuryRiskLow, true
	case "medio", "medium":
		return InjuryRiskMedium, true
	case "alto", "high":
		return InjuryRiskHigh, true
	default:
		return "", false
	}
}

// ScrapedSignal holds optional per-player intelligence scraped from a third-party
// page. Every field may be absent; consumers substitute neutral defaults.
// A signal is immutable once attached to a player.
type ScrapedSignal struct {
	Hierarchy       *int        `json:"hierarchy,omitempty"`
	PlayProbability *float64    `json:"play_probability,omitempty"`
	FormArrow       *int        `json:"form_arrow,omitempty"`
	InjuryRisk      *InjuryRisk `json:"injury_risk,omitempty"`
}

// Validate checks that all present fields are within range.
func (s *ScrapedSignal) Validate() error {
	if s.Hierarchy != nil && (*s.Hierarchy < HierarchyBest || *s.Hierarchy > HierarchyWorst) {
		return errors.New("hierarchy must be between 1 and 7")
	}
	if s.PlayProbability != nil && (*s.PlayProbability < 0.0 || *s.PlayProbability > 1.0) {
		return errors.New("play probability must be between 0.0 and 1.0")
	}
	if s.FormArrow != nil && (*s.FormArrow < FormArrowMin || *s.FormArrow > FormArrowMax) {
		return errors.New("form arrow must be between 1 and 5")
	}
	if s.InjuryRisk != nil {
		if _, ok := ParseInjuryRisk(string(*s.InjuryRisk)); !ok {
			return errors.New("injury risk must be one of Ironman, Bajo, Medio, Alto")
		}
	}
	return nil
}

// Empty reports whether no field is present.
func (s *ScrapedSignal) Empty() bool {
	return s == nil || (s.Hierarchy == nil && s.PlayProbability == nil && s.FormArrow == nil && s.InjuryRisk == nil)
}
