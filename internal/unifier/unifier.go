// Package unifier merges the fantasy API snapshots (global player list, market
// listings, every manager's team) into one consistent player universe.
//
// Merge is pure and works on already decoded snapshots. Loader reads the
// date-stamped snapshot files from disk and feeds them to Merge.
package unifier

import (
	"fmt"

	"github.com/rewired-gh/transferoracle/internal/models"
)

// Result is the unified player universe of one refresh.
type Result struct {
	// Players in global-list order.
	Players []*models.Player
	ByID    map[string]*models.Player
	// Warnings lists missing sources and skipped malformed records.
	Warnings []string
}

// Merge builds the unified universe. Base identity and performance come from
// the global list; market listings set OnMarket and SalePrice; every team
// snapshot marks its players as owned with their buyout data.
//
// Records that fail validation are skipped and reported in Warnings. Market and
// ownership entries for players absent from the global list are ignored.
func Merge(global []RawPlayer, market []RawMarketEntry, ownership []RawTeam) Result {
	res := Result{
		Players:  make([]*models.Player, 0, len(global)),
		ByID:     make(map[string]*models.Player, len(global)),
		Warnings: []string{},
	}

	for i := range global {
		p, err := global[i].toPlayer()
		if err != nil {
			res.warn("skipping player entry %d: %v", i, err)
			continue
		}
		if _, dup := res.ByID[p.ID]; dup {
			res.warn("duplicate player id %s in global list, keeping first", p.ID)
			continue
		}
		res.Players = append(res.Players, p)
		res.ByID[p.ID] = p
	}

	for i, entry := range market {
		id := string(entry.PlayerMaster.ID)
		if id == "" {
			res.warn("skipping market entry %d: missing player id", i)
			continue
		}
		p, ok := res.ByID[id]
		if !ok {
			continue
		}
		if entry.SalePrice != nil && *entry.SalePrice < 0 {
			res.warn("ignoring market entry for player %s: negative sale price", id)
			continue
		}
		if entry.Discr != marketPlayerTeam {
			p.OnMarket = true
		}
		if entry.SalePrice != nil {
			v := int64(*entry.SalePrice)
			p.SalePrice = &v
		}
	}

	for _, team := range ownership {
		manager := team.Manager.ManagerName
		if manager == "" {
			res.warn("skipping team %s: missing manager name", team.ID)
			continue
		}
		for _, slot := range team.Players {
			p, ok := res.ByID[string(slot.PlayerMaster.ID)]
			if !ok {
				continue
			}
			applyOwnership(p, manager, slot)
		}
	}

	return res
}

// applyOwnership records the owner and buyout data of a roster slot. A lock
// timestamp that cannot be parsed leaves the lock unset.
func applyOwnership(p *models.Player, manager string, slot RawRosterEntry) {
	p.OwnedBy = manager
	p.BuyoutClause = nil
	if slot.BuyoutClause != nil && *slot.BuyoutClause >= 0 {
		v := int64(*slot.BuyoutClause)
		p.BuyoutClause = &v
	}
	p.BuyoutLockedUntil = nil
	if slot.BuyoutClauseLockedEndTime != "" {
		if t, err := parseTimestamp(slot.BuyoutClauseLockedEndTime); err == nil {
			p.BuyoutLockedUntil = &t
		}
	}
}

// BuildTeam converts a roster snapshot into the owned squad. Roster players
// carry their last three gameweeks and their own buyout data.
func BuildTeam(raw RawTeam) (*models.Team, []string, error) {
	team := &models.Team{
		ID:          string(raw.ID),
		ManagerName: raw.Manager.ManagerName,
		Value:       int64(raw.TeamValue),
		Points:      int(raw.TeamPoints),
		Position:    int(raw.Position),
		Players:     make([]*models.Player, 0, len(raw.Players)),
	}
	if raw.TeamMoney != nil {
		v := int64(*raw.TeamMoney)
		team.Money = &v
	}
	if err := team.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid team snapshot: %w", err)
	}

	var warnings []string
	for i, slot := range raw.Players {
		p, err := slot.PlayerMaster.toPlayer()
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping roster entry %d of %s: %v", i, team.ManagerName, err))
			continue
		}
		p.LastPoints, p.LastMinutes = slot.PlayerMaster.recent()
		applyOwnership(p, team.ManagerName, slot)
		team.Players = append(team.Players, p)
	}
	return team, warnings, nil
}

// ApplyRosterDetails returns the universe with the roster's recent gameweek
// sequences copied onto the matching players. Matching players are replaced by
// copies; neither input is modified.
func ApplyRosterDetails(players []*models.Player, team *models.Team) []*models.Player {
	out := make([]*models.Player, len(players))
	copy(out, players)
	if team == nil {
		return out
	}

	roster := make(map[string]*models.Player, len(team.Players))
	for _, p := range team.Players {
		roster[p.ID] = p
	}
	for i, p := range out {
		r, ok := roster[p.ID]
		if !ok {
			continue
		}
		cp := *p
		cp.LastPoints = append([]int(nil), r.LastPoints...)
		cp.LastMinutes = append([]int(nil), r.LastMinutes...)
		out[i] = &cp
	}
	return out
}

func (r *Result) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}
