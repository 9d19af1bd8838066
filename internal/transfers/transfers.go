// Package transfers searches for beneficial one-for-one replacements of owned
// players.
//
// Every owned non-coach player is paired with every eligible candidate. A pair
// is kept when its net cost fits the budget and the candidate's score beats the
// owned player's by more than the improvement threshold. Pairs are ranked by
// value ratio, the score improvement per million of net spend.
package transfers

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/rewired-gh/transferoracle/internal/models"
)

// Defaults for the search.
const (
	DefaultThreshold  = 3.0
	DefaultMaxResults = 5

	// minNetCostMillions keeps the value ratio finite for near-free swaps.
	minNetCostMillions = 0.1
)

// suggestionNamespace scopes the deterministic suggestion ids.
var suggestionNamespace = uuid.MustParse("6f1c6a52-2f4e-4d8e-9a57-3b4f3c2b8e10")

// Evaluator scores a single player.
type Evaluator interface {
	Evaluate(p *models.Player) models.Evaluation
}

// Searcher ranks transfer pairs. It is safe for concurrent use.
type Searcher struct {
	eval         Evaluator
	now          func() time.Time
	threshold    float64
	samePosition bool
	workers      int
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithClock sets the time source used for buyout-lock checks.
func WithClock(now func() time.Time) Option {
	return func(s *Searcher) { s.now = now }
}

// WithThreshold sets the minimum score improvement. Pairs must exceed it.
func WithThreshold(t float64) Option {
	return func(s *Searcher) { s.threshold = t }
}

// WithSamePosition restricts candidates to the owned player's position.
func WithSamePosition(on bool) Option {
	return func(s *Searcher) { s.samePosition = on }
}

// WithWorkers evaluates and pairs players on up to n goroutines. The result is
// identical for any n.
func WithWorkers(n int) Option {
	return func(s *Searcher) {
		if n > 0 {
			s.workers = n
		}
	}
}

// New creates a Searcher.
func New(eval Evaluator, opts ...Option) *Searcher {
	s := &Searcher{
		eval:      eval,
		now:       time.Now,
		threshold: DefaultThreshold,
		workers:   1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type candidate struct {
	player *models.Player
	eval   models.Evaluation
	cost   int64
}

// Suggest returns up to maxResults transfer suggestions for team drawn from
// universe, best value ratio first. Ties keep owned-then-candidate enumeration
// order. An empty result is valid.
func (s *Searcher) Suggest(team *models.Team, universe []*models.Player, budget int64, maxResults int) []models.TransferSuggestion {
	out := []models.TransferSuggestion{}
	if team == nil || maxResults <= 0 {
		return out
	}
	now := s.now()

	var owned []*models.Player
	for _, p := range team.Players {
		if p.Position != models.PositionCoach {
			owned = append(owned, p)
		}
	}
	ownedEvals := s.evaluateAll(owned)

	candidates := s.eligible(team, universe, now)
	candEvals := s.evaluateAll(playersOf(candidates))
	for i := range candidates {
		candidates[i].eval = candEvals[i]
	}

	buffers := make([][]models.TransferSuggestion, len(owned))
	s.run(len(owned), func(i int) {
		buffers[i] = s.pairs(owned[i], ownedEvals[i], candidates, budget, now)
	})
	for _, b := range buffers {
		out = append(out, b...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ValueRatio > out[j].ValueRatio
	})
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}

// eligible keeps unowned, fit, transferable non-coach players with a known
// acquisition cost. A player without a sale price or buyout clause has an
// unbounded cost and can never fit a budget.
func (s *Searcher) eligible(team *models.Team, universe []*models.Player, now time.Time) []candidate {
	owned := team.OwnedIDs()
	var out []candidate
	for _, p := range universe {
		if owned[p.ID] || p.Position == models.PositionCoach {
			continue
		}
		if !p.IsAvailable() || !p.IsTransferable(now) {
			continue
		}
		cost, ok := p.AcquisitionCost()
		if !ok {
			continue
		}
		out = append(out, candidate{player: p, cost: cost})
	}
	return out
}

func (s *Searcher) pairs(out *models.Player, outEval models.Evaluation, candidates []candidate, budget int64, now time.Time) []models.TransferSuggestion {
	var found []models.TransferSuggestion
	for _, c := range candidates {
		if s.samePosition && c.player.Position != out.Position {
			continue
		}
		net := c.cost - out.MarketValue
		if net > budget {
			continue
		}
		improvement := c.eval.Total - outEval.Total
		if improvement <= s.threshold {
			continue
		}
		found = append(found, models.TransferSuggestion{
			ID:              suggestionID(out.ID, c.player.ID),
			Out:             out,
			OutEval:         outEval,
			In:              c.player,
			InEval:          c.eval,
			Improvement:     improvement,
			AcquisitionCost: c.cost,
			NetCost:         net,
			ValueRatio:      improvement / math.Max(math.Abs(models.Millions(net)), minNetCostMillions),
			AcquisitionType: c.player.AcquisitionType(now),
			RemainingBudget: budget - net,
		})
	}
	return found
}

func (s *Searcher) evaluateAll(players []*models.Player) []models.Evaluation {
	evals := make([]models.Evaluation, len(players))
	s.run(len(players), func(i int) {
		evals[i] = s.eval.Evaluate(players[i])
	})
	return evals
}

// run calls fn for every index, in parallel when more than one worker is set.
// fn must only write to its own index.
func (s *Searcher) run(n int, fn func(i int)) {
	if s.workers <= 1 || n <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	p := pool.New().WithMaxGoroutines(s.workers)
	for i := 0; i < n; i++ {
		i := i
		p.Go(func() { fn(i) })
	}
	p.Wait()
}

func playersOf(cs []candidate) []*models.Player {
	out := make([]*models.Player, len(cs))
	for i, c := range cs {
		out[i] = c.player
	}
	return out
}

// suggestionID is stable for the same outgoing and incoming players.
func suggestionID(outID, inID string) string {
	return uuid.NewSHA1(suggestionNamespace, []byte(outID+"->"+inID)).String()
}
