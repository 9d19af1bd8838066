package models

import (
	"errors"
	"time"
)

// Fixture is a scheduled or played match from the fixture calendar.
type Fixture struct {
	MatchID      string    `json:"match_id"`
	Kickoff      time.Time `json:"kickoff"`
	HomeTeamID   string    `json:"home_team_id"`
	HomeTeamName string    `json:"home_team_name"`
	AwayTeamID   string    `json:"away_team_id"`
	AwayTeamName string    `json:"away_team_name"`
	HomeScore    *int      `json:"home_score,omitempty"`
	AwayScore    *int      `json:"away_score,omitempty"`
	State        int       `json:"state"`
}

// Validate checks that all fixture fields are valid.
func (f *Fixture) Validate() error {
	if f.MatchID == "" {
		return errors.New("match ID must not be empty")
	}
	if f.HomeTeamID == "" || f.AwayTeamID == "" {
		return errors.New("both team IDs must be set")
	}
	if f.HomeTeamID == f.AwayTeamID {
		return errors.New("home and away team must differ")
	}
	return nil
}

// Team is the owned fantasy squad of one manager.
type Team struct {
	ID          string    `json:"id"`
	ManagerName string    `json:"manager_name"`
	Players     []*Player `json:"players"`
	Value       int64     `json:"value"`
	Points      int       `json:"points"`
	Money       *int64    `json:"money,omitempty"` // Available budget; nil when unknown
	Position    int       `json:"position"`
}

// Validate checks that all team fields are valid.
func (t *Team) Validate() error {
	if t.ID == "" {
		return errors.New("team ID must not be empty")
	}
	if t.ManagerName == "" {
		return errors.New("manager name must not be empty")
	}
	if t.Value < 0 {
		return errors.New("team value must not be negative")
	}
	return nil
}

// Budget returns the available transfer budget. Unknown money is treated as zero.
func (t *Team) Budget() int64 {
	if t.Money == nil {
		return 0
	}
	return *t.Money
}

// Owns reports whether a player id is on the roster.
func (t *Team) Owns(playerID string) bool {
	for _, p := range t.Players {
		if p.ID == playerID {
			return true
		}
	}
	return false
}

// OwnedIDs returns the set of rostered player ids.
func (t *Team) OwnedIDs() map[string]bool {
	ids := make(map[string]bool, len(t.Players))
	for _, p := range t.Players {
		ids[p.ID] = true
	}
	return ids
}
