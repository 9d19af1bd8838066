// Package models defines the core domain entities for the transferoracle application.
// These models represent fantasy players, their scraped intelligence, fixtures, the
// owned squad, and the evaluation/suggestion records produced by the analysis.
// All input models include built-in validation to ensure data integrity throughout
// the application.
//
// Currency values are integer units as delivered by the fantasy API. Conversion to
// millions is a presentation concern (see Millions).
package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"
)

// StatusFit is the availability status of a player who can play.
const StatusFit = "ok"

// currencyPerMillion converts integer currency units to millions.
const currencyPerMillion = 1_000_000

// minutesPerMatch is the denominator for minutes reliability.
const minutesPerMatch = 90.0

// defaultMinutesReliability is reported when no recent minutes are known.
const defaultMinutesReliability = 0.5

// maxRecentGames bounds the last-N sequences carried on a player.
const maxRecentGames = 3

// Position is the fantasy API position id.
type Position int

const (
	PositionUnknown    Position = 0
	PositionGoalkeeper Position = 1
	PositionDefender   Position = 2
	PositionMidfielder Position = 3
	PositionForward    Position = 4
	PositionCoach      Position = 5
)

// String returns the upper-case position name.
func (p Position) String() string {
	switch p {
	case PositionGoalkeeper:
		return "GOALKEEPER"
	case PositionDefender:
		return "DEFENDER"
	case PositionMidfielder:
		return "MIDFIELDER"
	case PositionForward:
		return "FORWARD"
	case PositionCoach:
		return "COACH"
	default:
		return "UNKNOWN"
	}
}

// Short returns the abbreviated label used in tables.
func (p Position) Short() string {
	switch p {
	case PositionGoalkeeper:
		return "GK"
	case PositionDefender:
		return "DF"
	case PositionMidfielder:
		return "MF"
	case PositionForward:
		return "FW"
	case PositionCoach:
		return "COACH"
	default:
		return "?"
	}
}

// Valid reports whether p is one of the known positions.
func (p Position) Valid() bool {
	return p >= PositionGoalkeeper && p <= PositionCoach
}

// Player is the unified view of a fantasy player after merging the global player
// list, the roster, market listings and ownership snapshots.
//
// A Player is built once per refresh and treated as read-only afterwards. Enrichment
// returns a copy with Signal set instead of mutating the original.
type Player struct {
	ID               string   `json:"id"`
	Nickname         string   `json:"nickname"`
	Position         Position `json:"position"`
	TeamID           string   `json:"team_id"`
	TeamName         string   `json:"team_name"`
	Points           int      `json:"points"`
	AveragePoints    float64  `json:"average_points"`
	LastSeasonPoints *int     `json:"last_season_points,omitempty"`
	LastPoints       []int    `json:"last_points,omitempty"`  // Last 3 gameweeks, oldest first
	LastMinutes      []int    `json:"last_minutes,omitempty"` // Last 3 gameweeks, oldest first

	MarketValue       int64      `json:"market_value"`
	OnMarket          bool       `json:"on_market"`
	SalePrice         *int64     `json:"sale_price,omitempty"`
	OwnedBy           string     `json:"owned_by,omitempty"`
	BuyoutClause      *int64     `json:"buyout_clause,omitempty"`
	BuyoutLockedUntil *time.Time `json:"buyout_locked_until,omitempty"`

	Status string         `json:"status"`
	Signal *ScrapedSignal `json:"signal,omitempty"`
}

// Validate checks that all player fields are valid.
func (p *Player) Validate() error {
	if p.ID == "" {
		return errors.New("player ID must not be empty")
	}
	if !p.Position.Valid() {
		return fmt.Errorf("player %s has unknown position %d", p.ID, p.Position)
	}
	if p.MarketValue < 0 {
		return errors.New("market value must not be negative")
	}
	if p.SalePrice != nil && *p.SalePrice < 0 {
		return errors.New("sale price must not be negative")
	}
	if p.BuyoutClause != nil && *p.BuyoutClause < 0 {
		return errors.New("buyout clause must not be negative")
	}
	if len(p.LastPoints) > maxRecentGames {
		return fmt.Errorf("last points must hold at most %d gameweeks", maxRecentGames)
	}
	if len(p.LastMinutes) > maxRecentGames {
		return fmt.Errorf("last minutes must hold at most %d gameweeks", maxRecentGames)
	}
	if p.BuyoutLockedUntil != nil && p.OwnedBy == "" {
		return errors.New("buyout lock requires an owner")
	}
	if p.Signal != nil {
		if err := p.Signal.Validate(); err != nil {
			return fmt.Errorf("invalid signal: %w", err)
		}
	}
	return nil
}

// PriceMillions returns the market value in millions.
func (p *Player) PriceMillions() float64 {
	return Millions(p.MarketValue)
}

// PointsPerGame is the season average points per game.
func (p *Player) PointsPerGame() float64 {
	return p.AveragePoints
}

// RecentForm is the mean of the last gameweek points, falling back to the season
// average when no recent points are known.
func (p *Player) RecentForm() float64 {
	if len(p.LastPoints) == 0 {
		return p.AveragePoints
	}
	return stat.Mean(intsToFloats(p.LastPoints), nil)
}

// HasMinutes reports whether recent minutes are known.
func (p *Player) HasMinutes() bool {
	return len(p.LastMinutes) > 0
}

// MinutesReliability is the average of the last minutes played divided by 90,
// capped at 1.0. Returns 0.5 when no minutes are known.
func (p *Player) MinutesReliability() float64 {
	if !p.HasMinutes() {
		return defaultMinutesReliability
	}
	avg := stat.Mean(intsToFloats(p.LastMinutes), nil)
	return math.Min(avg/minutesPerMatch, 1.0)
}

// IsAvailable reports whether the player is fit to play.
func (p *Player) IsAvailable() bool {
	return p.Status == StatusFit
}

// IsTransferable reports whether the player can be acquired at now: either listed on
// the open market or under an expired buyout lock. A player with no lock and no
// listing is treated as locked.
func (p *Player) IsTransferable(now time.Time) bool {
	if p.OnMarket {
		return true
	}
	return p.buyoutExpired(now)
}

func (p *Player) buyoutExpired(now time.Time) bool {
	return p.BuyoutLockedUntil != nil && p.BuyoutLockedUntil.Before(now)
}

// AcquisitionCost returns the price to acquire the player: the sale price when listed,
// otherwise the buyout clause. ok is false when neither is known, meaning the cost is
// unbounded.
func (p *Player) AcquisitionCost() (cost int64, ok bool) {
	if p.OnMarket && p.SalePrice != nil && *p.SalePrice > 0 {
		return *p.SalePrice, true
	}
	if p.BuyoutClause != nil && *p.BuyoutClause > 0 {
		return *p.BuyoutClause, true
	}
	return 0, false
}

// Acquisition type labels.
const (
	AcquisitionMarket  = "market"
	AcquisitionUnknown = "unknown"
	acquisitionBuyout  = "buyout-from-"
)

// AcquisitionType labels how the player can be acquired at now.
func (p *Player) AcquisitionType(now time.Time) string {
	if p.OnMarket {
		return AcquisitionMarket
	}
	if p.buyoutExpired(now) {
		return acquisitionBuyout + p.OwnedBy
	}
	return AcquisitionUnknown
}

// IsBuyoutAcquisition reports whether label is a buyout acquisition type.
func IsBuyoutAcquisition(label string) bool {
	return strings.HasPrefix(label, acquisitionBuyout)
}

// WithSignal returns a copy of the player with the scraped signal attached.
func (p *Player) WithSignal(sig *ScrapedSignal) *Player {
	cp := *p
	cp.Signal = sig
	return &cp
}

// Millions converts integer currency units to millions.
func Millions(units int64) float64 {
	return float64(units) / currencyPerMillion
}

// FromMillions converts millions to integer currency units.
func FromMillions(m float64) int64 {
	return int64(math.Round(m * currencyPerMillion))
}

func intsToFloats(xs []int) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	return out
}
