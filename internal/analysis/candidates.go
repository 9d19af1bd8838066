package analysis

import (
	"sort"
	"time"

	"github.com/rewired-gh/transferoracle/internal/models"
)

// outfieldPositions are the positions candidates are drawn from.
var outfieldPositions = []models.Position{
	models.PositionGoalkeeper,
	models.PositionDefender,
	models.PositionMidfielder,
	models.PositionForward,
}

// Candidates returns the players worth enriching: unowned,
// transferable at now and not coaches, keeping the perPosition best season
// averages of each position. The result is grouped by position and sorted by
// average points, best first. perPosition <= 0 keeps everyone.
func Candidates(universe []*models.Player, team *models.Team, now time.Time, perPosition int) []*models.Player {
	owned := map[string]bool{}
	if team != nil {
		owned = team.OwnedIDs()
	}

	byPosition := make(map[models.Position][]*models.Player)
	for _, p := range universe {
		if owned[p.ID] || !p.IsTransferable(now) {
			continue
		}
		byPosition[p.Position] = append(byPosition[p.Position], p)
	}

	out := []*models.Player{}
	for _, pos := range outfieldPositions {
		group := byPosition[pos]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].AveragePoints > group[j].AveragePoints
		})
		if perPosition > 0 && len(group) > perPosition {
			group = group[:perPosition]
		}
		out = append(out, group...)
	}
	return out
}
