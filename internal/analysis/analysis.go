// Package analysis runs the recommendation pipeline for one managed team.
//
// A run loads the latest snapshots, enriches the squad and a prefiltered set
// of market candidates with scraped signals, evaluates everyone against the
// fixture model and searches the whole universe for transfers:
//
//	current week → team → universe → calendar → enrich → evaluate → search
//
// Every run produces an immutable Report. The Session keeps the latest one
// for readers; a failed run leaves the previous report in place.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/transferoracle/internal/evaluator"
	"github.com/rewired-gh/transferoracle/internal/fixtures"
	"github.com/rewired-gh/transferoracle/internal/logger"
	"github.com/rewired-gh/transferoracle/internal/models"
	"github.com/rewired-gh/transferoracle/internal/transfers"
	"github.com/rewired-gh/transferoracle/internal/unifier"
)

// ErrNoTeamLoaded is returned when no team snapshot could be loaded.
var ErrNoTeamLoaded = errors.New("no team loaded")

// DefaultCandidatesPerPosition bounds how many market candidates per position
// are enriched.
const DefaultCandidatesPerPosition = 15

// Enricher attaches scraped signals to players. Implementations return new
// player values and report failures as warnings.
type Enricher interface {
	EnrichAll(ctx context.Context, players []*models.Player) ([]*models.Player, []string)
}

// Settings tunes a run.
type Settings struct {
	// TeamName selects the roster snapshot by manager-name prefix.
	TeamName string
	// Horizon is the number of upcoming fixtures shown per club.
	Horizon int
	// MaxResults caps the stored suggestions.
	MaxResults int
	// CandidatesPerPosition caps how many market candidates per position are
	// enriched. Zero keeps all. The search always covers the whole universe.
	CandidatesPerPosition int
	// EnrichSquad also fetches signals for owned players.
	EnrichSquad bool
}

// DefaultSettings returns the standard run settings.
func DefaultSettings() Settings {
	return Settings{
		Horizon:               fixtures.DefaultHorizon,
		MaxResults:            transfers.DefaultMaxResults,
		CandidatesPerPosition: DefaultCandidatesPerPosition,
		EnrichSquad:           true,
	}
}

// SquadEntry is one owned player with its evaluation.
type SquadEntry struct {
	Player     *models.Player    `json:"player"`
	Evaluation models.Evaluation `json:"evaluation"`
}

// Report is the outcome of one run. It is never modified after publication.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Duration    string    `json:"duration"`
	Week        int       `json:"week"`

	Team        *models.Team                `json:"team"`
	Budget      int64                       `json:"budget"`
	Squad       []SquadEntry                `json:"squad"`
	Fixtures    []fixtures.TeamFixtures     `json:"fixtures"`
	Suggestions []models.TransferSuggestion `json:"suggestions"`

	UniverseSize int      `json:"universe_size"`
	Candidates   int      `json:"candidates"`
	Enriched     int      `json:"enriched"`
	Warnings     []string `json:"warnings"`
}

// Session owns the pipeline collaborators and the latest report. Runs are
// serialized; readers never block on a run.
type Session struct {
	loader      *unifier.Loader
	settings    Settings
	newEnricher func() Enricher
	evalOpts    []evaluator.Option
	fixtureOpts []fixtures.Option
	searchOpts  []transfers.Option
	now         func() time.Time

	runMu  sync.Mutex
	latest atomic.Pointer[Report]
}

// Option configures a Session.
type Option func(*Session)

// WithEnricher sets the factory for per-run enrichers. Each run gets a fresh
// enricher so memoized lookups never outlive the run. nil disables enrichment.
func WithEnricher(factory func() Enricher) Option {
	return func(s *Session) { s.newEnricher = factory }
}

// WithEvaluatorOptions passes options to the per-run evaluator.
func WithEvaluatorOptions(opts ...evaluator.Option) Option {
	return func(s *Session) { s.evalOpts = append(s.evalOpts, opts...) }
}

// WithFixtureOptions passes options to the per-run fixture model.
func WithFixtureOptions(opts ...fixtures.Option) Option {
	return func(s *Session) { s.fixtureOpts = append(s.fixtureOpts, opts...) }
}

// WithSearchOptions passes options to the per-run transfer searcher.
func WithSearchOptions(opts ...transfers.Option) Option {
	return func(s *Session) { s.searchOpts = append(s.searchOpts, opts...) }
}

// WithClock sets the time source for transferability checks and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New creates a Session reading snapshots through loader.
func New(loader *unifier.Loader, settings Settings, opts ...Option) *Session {
	if settings.Horizon < 1 {
		settings.Horizon = fixtures.DefaultHorizon
	}
	if settings.MaxResults < 1 {
		settings.MaxResults = transfers.DefaultMaxResults
	}
	s := &Session{loader: loader, settings: settings, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Report returns the latest published report, or nil before the first
// successful run.
func (s *Session) Report() *Report {
	return s.latest.Load()
}

// Refresh runs the pipeline and publishes its report. When the team cannot be
// loaded the error wraps ErrNoTeamLoaded and the previous report stays.
func (s *Session) Refresh(ctx context.Context) (*Report, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := s.now()
	r, err := s.run(ctx, start)
	if err != nil {
		return nil, err
	}
	r.Duration = s.now().Sub(start).String()
	s.latest.Store(r)

	logger.Info("Run %s: %d squad players, %d candidates, %d suggestions, %d warnings",
		r.RunID, len(r.Squad), r.Candidates, len(r.Suggestions), len(r.Warnings))
	return r, nil
}

func (s *Session) run(ctx context.Context, now time.Time) (*Report, error) {
	r := &Report{RunID: uuid.New().String(), GeneratedAt: now, Warnings: []string{}}

	week, w := s.loader.LoadCurrentWeek()
	r.Week = week
	r.warn(w...)

	team, w, err := s.loader.LoadTeam(s.settings.TeamName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoTeamLoaded, err)
	}
	r.warn(w...)

	universe := s.loader.LoadUniverse()
	r.warn(universe.Warnings...)
	players := unifier.ApplyRosterDetails(universe.Players, team)
	r.UniverseSize = len(players)

	calendar, w := s.loader.LoadCalendar(week)
	r.warn(w...)
	model := fixtures.New(calendar, s.fixtureOpts...)

	candidates := Candidates(players, team, now, s.settings.CandidatesPerPosition)
	r.Candidates = len(candidates)

	if s.newEnricher != nil {
		if enricher := s.newEnricher(); enricher != nil {
			if s.settings.EnrichSquad {
				enriched, w := enricher.EnrichAll(ctx, team.Players)
				r.warn(w...)
				team = withPlayers(team, enriched)
			}
			candidates, w = enricher.EnrichAll(ctx, candidates)
			r.warn(w...)
		}
	}
	r.Enriched = countSignals(team.Players) + countSignals(candidates)

	eval := evaluator.New(model, s.evalOpts...)
	searchOpts := append([]transfers.Option{transfers.WithClock(func() time.Time { return now })}, s.searchOpts...)
	searcher := transfers.New(eval, searchOpts...)

	r.Team = team
	r.Budget = team.Budget()
	r.Squad = evaluateSquad(eval, team)
	r.Fixtures = model.Upcoming(team.Players, s.settings.Horizon)
	r.Suggestions = searcher.Suggest(team, withEnriched(players, candidates), r.Budget, s.settings.MaxResults)

	for _, warning := range r.Warnings {
		logger.Warn("%s", warning)
	}
	return r, nil
}

func (r *Report) warn(warnings ...string) {
	r.Warnings = append(r.Warnings, warnings...)
}

func evaluateSquad(eval *evaluator.Evaluator, team *models.Team) []SquadEntry {
	evals := eval.EvaluateAll(team.Players)
	evaluator.Rank(evals)

	byID := make(map[string]*models.Player, len(team.Players))
	for _, p := range team.Players {
		byID[p.ID] = p
	}
	out := make([]SquadEntry, 0, len(evals))
	for _, ev := range evals {
		out = append(out, SquadEntry{Player: byID[ev.PlayerID], Evaluation: ev})
	}
	return out
}

// withPlayers returns a shallow copy of team with a new roster.
func withPlayers(team *models.Team, players []*models.Player) *models.Team {
	cp := *team
	cp.Players = players
	return &cp
}

// withEnriched returns universe with the enriched copies swapped in by id. The
// search pool is the whole universe; the prefilter only bounds enrichment.
func withEnriched(universe, enriched []*models.Player) []*models.Player {
	byID := make(map[string]*models.Player, len(enriched))
	for _, p := range enriched {
		byID[p.ID] = p
	}
	out := make([]*models.Player, len(universe))
	for i, p := range universe {
		if e, ok := byID[p.ID]; ok {
			out[i] = e
			continue
		}
		out[i] = p
	}
	return out
}

func countSignals(players []*models.Player) int {
	n := 0
	for _, p := range players {
		if !p.Signal.Empty() {
			n++
		}
	}
	return n
}

// AnalyzeSquad returns the owned players of the latest report, best first.
func (s *Session) AnalyzeSquad() ([]SquadEntry, error) {
	r := s.Report()
	if r == nil || r.Team == nil {
		return nil, ErrNoTeamLoaded
	}
	return r.Squad, nil
}

// SuggestTransfers returns up to limit suggestions of the latest report. A
// non-positive limit returns every stored suggestion.
func (s *Session) SuggestTransfers(limit int) ([]models.TransferSuggestion, error) {
	r := s.Report()
	if r == nil || r.Team == nil {
		return nil, ErrNoTeamLoaded
	}
	if limit > 0 && limit < len(r.Suggestions) {
		return r.Suggestions[:limit], nil
	}
	return r.Suggestions, nil
}

// UpcomingFixtures returns the upcoming fixtures of every club in the squad.
func (s *Session) UpcomingFixtures() ([]fixtures.TeamFixtures, error) {
	r := s.Report()
	if r == nil || r.Team == nil {
		return nil, ErrNoTeamLoaded
	}
	return r.Fixtures, nil
}
