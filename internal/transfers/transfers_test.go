package transfers

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/transferoracle/internal/models"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// pinned returns fixed totals by player id.
type pinned map[string]float64

func (p pinned) Evaluate(pl *models.Player) models.Evaluation {
	return models.Evaluation{PlayerID: pl.ID, Total: p[pl.ID], Available: pl.IsAvailable()}
}

func millions(m float64) int64 { return models.FromMillions(m) }

func int64Ptr(v int64) *int64 { return &v }

func owned(id string, pos models.Position, priceM float64) *models.Player {
	return &models.Player{ID: id, Nickname: id, Position: pos, MarketValue: millions(priceM), Status: models.StatusFit, OwnedBy: "me"}
}

func listed(id string, pos models.Position, saleM float64) *models.Player {
	return &models.Player{
		ID:          id,
		Nickname:    id,
		Position:    pos,
		MarketValue: millions(saleM),
		OnMarket:    true,
		SalePrice:   int64Ptr(millions(saleM)),
		Status:      models.StatusFit,
	}
}

func team(budgetM float64, players ...*models.Player) *models.Team {
	money := millions(budgetM)
	return &models.Team{ID: "t1", ManagerName: "me", Players: players, Money: &money}
}

func newSearcher(scores pinned, opts ...Option) *Searcher {
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	return New(scores, opts...)
}

func TestBudgetScenarioAccepted(t *testing.T) {
	out := owned("out", models.PositionMidfielder, 8.0)
	in := listed("in", models.PositionMidfielder, 10.0)
	tm := team(5.0, out)

	got := newSearcher(pinned{"out": 40, "in": 46}).Suggest(tm, []*models.Player{in}, tm.Budget(), 5)
	require.Len(t, got, 1)

	s := got[0]
	assert.Equal(t, "out", s.Out.ID)
	assert.Equal(t, "in", s.In.ID)
	assert.InDelta(t, 6.0, s.Improvement, 1e-9)
	assert.Equal(t, millions(10), s.AcquisitionCost)
	assert.Equal(t, millions(2), s.NetCost)
	assert.InDelta(t, 3.0, s.ValueRatio, 1e-9)
	assert.Equal(t, millions(3), s.RemainingBudget)
	assert.Equal(t, models.AcquisitionMarket, s.AcquisitionType)
	assert.NotEmpty(t, s.ID)
}

func TestImprovementBelowThresholdRejected(t *testing.T) {
	out := owned("out", models.PositionMidfielder, 8.0)
	in := listed("in", models.PositionMidfielder, 10.0)
	tm := team(5.0, out)

	got := newSearcher(pinned{"out": 40, "in": 42}).Suggest(tm, []*models.Player{in}, tm.Budget(), 5)
	assert.Empty(t, got)

	got = newSearcher(pinned{"out": 40, "in": 43}).Suggest(tm, []*models.Player{in}, tm.Budget(), 5)
	assert.Empty(t, got, "an improvement of exactly the threshold is rejected")
}

func TestOverBudgetRejected(t *testing.T) {
	out := owned("out", models.PositionMidfielder, 8.0)
	in := listed("in", models.PositionMidfielder, 14.0)
	tm := team(5.0, out)

	got := newSearcher(pinned{"out": 10, "in": 90}).Suggest(tm, []*models.Player{in}, tm.Budget(), 5)
	assert.Empty(t, got)
}

func TestUnboundedAcquisitionCostRejected(t *testing.T) {
	past := now.Add(-time.Hour)
	noPrice := &models.Player{
		ID:                "free",
		Position:          models.PositionForward,
		Status:            models.StatusFit,
		OwnedBy:           "rival",
		BuyoutLockedUntil: &past,
	}
	out := owned("out", models.PositionForward, 50)
	tm := team(1000, out)

	got := newSearcher(pinned{"out": 0, "free": 100}).Suggest(tm, []*models.Player{noPrice}, tm.Budget(), 5)
	assert.Empty(t, got)
}

func TestIneligibleCandidatesRejected(t *testing.T) {
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	injured := listed("injured", models.PositionForward, 1)
	injured.Status = "injured"

	locked := &models.Player{ID: "locked", Position: models.PositionForward, Status: models.StatusFit,
		OwnedBy: "rival", BuyoutClause: int64Ptr(millions(1)), BuyoutLockedUntil: &future}

	neutral := &models.Player{ID: "neutral", Position: models.PositionForward, Status: models.StatusFit,
		BuyoutClause: int64Ptr(millions(1))}

	coach := listed("coach", models.PositionCoach, 1)

	mine := owned("mine", models.PositionForward, 1)
	mineListed := listed("mine", models.PositionForward, 1)

	buyout := &models.Player{ID: "buyout", Position: models.PositionForward, Status: models.StatusFit,
		OwnedBy: "rival", BuyoutClause: int64Ptr(millions(2)), BuyoutLockedUntil: &past}

	tm := team(100, mine, owned("boss", models.PositionCoach, 1))
	scores := pinned{"mine": 0, "boss": 0, "injured": 99, "locked": 99, "neutral": 99, "coach": 99, "buyout": 99}

	got := newSearcher(scores).Suggest(tm, []*models.Player{injured, locked, neutral, coach, mineListed, buyout}, tm.Budget(), 10)
	require.Len(t, got, 1)
	assert.Equal(t, "buyout", got[0].In.ID)
	assert.Equal(t, "mine", got[0].Out.ID, "coaches are never outgoing")
	assert.Equal(t, "buyout-from-rival", got[0].AcquisitionType)
	assert.Equal(t, millions(2), got[0].AcquisitionCost)
}

func TestRankingAndTruncation(t *testing.T) {
	a := owned("a", models.PositionDefender, 5)
	b := owned("b", models.PositionForward, 5)
	tm := team(20, a, b)

	// Net costs of 5M, 1M and 0 (floored to 0.1M) for every owned player.
	c1 := listed("c1", models.PositionDefender, 10)
	c2 := listed("c2", models.PositionForward, 6)
	c3 := listed("c3", models.PositionMidfielder, 5)
	scores := pinned{"a": 10, "b": 10, "c1": 20, "c2": 20, "c3": 20}

	got := newSearcher(scores).Suggest(tm, []*models.Player{c1, c2, c3}, tm.Budget(), 10)
	require.Len(t, got, 6)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].ValueRatio, got[i].ValueRatio)
	}
	// Ties keep owned-then-candidate order.
	assert.Equal(t, "a", got[0].Out.ID)
	assert.Equal(t, "c3", got[0].In.ID)
	assert.Equal(t, "b", got[1].Out.ID)
	assert.Equal(t, "c3", got[1].In.ID)
	assert.InDelta(t, 100.0, got[0].ValueRatio, 1e-9)

	top := newSearcher(scores).Suggest(tm, []*models.Player{c1, c2, c3}, tm.Budget(), 2)
	assert.Equal(t, got[:2], top)

	assert.Empty(t, newSearcher(scores).Suggest(tm, []*models.Player{c1}, tm.Budget(), 0))
	assert.Empty(t, newSearcher(scores).Suggest(nil, []*models.Player{c1}, tm.Budget(), 5))
}

func TestSamePositionOption(t *testing.T) {
	a := owned("a", models.PositionDefender, 5)
	tm := team(20, a)
	df := listed("df", models.PositionDefender, 5)
	fw := listed("fw", models.PositionForward, 5)
	scores := pinned{"a": 0, "df": 10, "fw": 10}

	assert.Len(t, newSearcher(scores).Suggest(tm, []*models.Player{df, fw}, tm.Budget(), 5), 2)

	got := newSearcher(scores, WithSamePosition(true)).Suggest(tm, []*models.Player{df, fw}, tm.Budget(), 5)
	require.Len(t, got, 1)
	assert.Equal(t, "df", got[0].In.ID)
}

func TestThresholdOption(t *testing.T) {
	a := owned("a", models.PositionDefender, 5)
	tm := team(20, a)
	c := listed("c", models.PositionDefender, 5)

	got := newSearcher(pinned{"a": 10, "c": 12}, WithThreshold(1)).Suggest(tm, []*models.Player{c}, tm.Budget(), 5)
	assert.Len(t, got, 1)
}

// randomScenario builds a reproducible squad and market.
func randomScenario(seed int64) (*models.Team, []*models.Player, pinned) {
	r := rand.New(rand.NewSource(seed))
	scores := pinned{}
	positions := []models.Position{models.PositionGoalkeeper, models.PositionDefender, models.PositionMidfielder, models.PositionForward}

	var squad []*models.Player
	for i := 0; i < 11; i++ {
		p := owned(fmt.Sprintf("own-%d", i), positions[r.Intn(4)], 1+r.Float64()*20)
		squad = append(squad, p)
		scores[p.ID] = r.Float64() * 80
	}

	var universe []*models.Player
	for i := 0; i < 80; i++ {
		id := fmt.Sprintf("cand-%d", i)
		p := listed(id, positions[r.Intn(4)], 0.5+r.Float64()*30)
		switch r.Intn(5) {
		case 0:
			p.Status = "injured"
		case 1:
			until := now.Add(time.Duration(r.Intn(48)-24) * time.Hour)
			p.OnMarket = false
			p.SalePrice = nil
			p.OwnedBy = "rival"
			p.BuyoutLockedUntil = &until
			if r.Intn(2) == 0 {
				p.BuyoutClause = int64Ptr(millions(1 + r.Float64()*30))
			}
		}
		universe = append(universe, p)
		scores[id] = r.Float64() * 90
	}
	universe = append(universe, squad[0]) // owned players never come back as candidates

	return team(r.Float64()*15, squad...), universe, scores
}

func TestSearchInvariants(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		tm, universe, scores := randomScenario(seed)
		got := newSearcher(scores).Suggest(tm, universe, tm.Budget(), 1000)

		ownedIDs := tm.OwnedIDs()
		for _, s := range got {
			assert.LessOrEqual(t, s.NetCost, tm.Budget(), "seed %d: over budget", seed)
			assert.Greater(t, s.Improvement, DefaultThreshold, "seed %d: weak improvement", seed)
			assert.True(t, s.In.IsAvailable(), "seed %d: unavailable candidate", seed)
			assert.True(t, s.In.IsTransferable(now), "seed %d: locked candidate", seed)
			assert.False(t, ownedIDs[s.In.ID], "seed %d: owned candidate", seed)
			assert.NotEqual(t, models.PositionCoach, s.Out.Position)
		}
		for i := 1; i < len(got); i++ {
			assert.GreaterOrEqual(t, got[i-1].ValueRatio, got[i].ValueRatio)
		}
	}
}

func TestParallelSearchMatchesSequential(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		tm, universe, scores := randomScenario(seed)

		sequential := newSearcher(scores).Suggest(tm, universe, tm.Budget(), 50)
		for _, workers := range []int{2, 4, 16} {
			parallel := newSearcher(scores, WithWorkers(workers)).Suggest(tm, universe, tm.Budget(), 50)
			assert.Equal(t, sequential, parallel, "seed %d workers %d", seed, workers)
		}
	}
}

func TestSuggestionIDsAreStable(t *testing.T) {
	assert.Equal(t, suggestionID("a", "b"), suggestionID("a", "b"))
	assert.NotEqual(t, suggestionID("a", "b"), suggestionID("b", "a"))
}
