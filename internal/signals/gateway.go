// Package signals enriches players with optional intelligence scraped from a
// third-party player site: hierarchy rank, play probability, form arrow and
// injury risk.
//
// A Gateway is created per analysis run. It memoizes every lookup, remembers
// failed slugs so they are not retried within the run, and optionally reads
// through a per-day Cache. Enrichment never fails a run: a player whose
// signal cannot be fetched keeps a nil Signal and is scored with neutral
// defaults.
package signals

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rewired-gh/transferoracle/internal/logger"
	"github.com/rewired-gh/transferoracle/internal/models"
)

// DayFormat is the layout of cache day keys.
const DayFormat = "20060102"

// Source fetches the signal of one player page.
type Source interface {
	Fetch(ctx context.Context, slug string) (*models.ScrapedSignal, error)
}

// Cache stores signals keyed by slug and day. Entries from other days are
// stale.
type Cache interface {
	Get(ctx context.Context, slug, day string) (*models.ScrapedSignal, bool, error)
	Put(ctx context.Context, slug, day string, sig *models.ScrapedSignal) error
	Prune(ctx context.Context, day string) (int64, error)
}

// Stats counts how lookups of a run were served.
type Stats struct {
	Memoized  int `json:"memoized"`
	CacheHits int `json:"cache_hits"`
	Fetched   int `json:"fetched"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Gateway is the per-run enrichment front. Lookups are serialized.
type Gateway struct {
	source     Source
	cache      Cache
	names      *NameMapper
	maxLookups int
	now        func() time.Time

	mu      sync.Mutex
	memo    map[string]*models.ScrapedSignal
	failed  map[string]error
	lookups int
	pruned  bool
	stats   Stats
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithCache reads through and writes to c.
func WithCache(c Cache) GatewayOption {
	return func(g *Gateway) { g.cache = c }
}

// WithNameMapper sets the nickname mapping used to build slugs.
func WithNameMapper(m *NameMapper) GatewayOption {
	return func(g *Gateway) { g.names = m }
}

// WithMaxLookups caps the number of source fetches per run. Zero means no cap.
func WithMaxLookups(n int) GatewayOption {
	return func(g *Gateway) { g.maxLookups = n }
}

// WithGatewayClock sets the time source for cache days.
func WithGatewayClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) { g.now = now }
}

// NewGateway creates a gateway over source. source may be nil, in which case
// only the cache is consulted.
func NewGateway(source Source, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		source: source,
		names:  NewNameMapper(nil),
		now:    time.Now,
		memo:   make(map[string]*models.ScrapedSignal),
		failed: make(map[string]error),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Signal returns the signal of p. Coaches have no page and yield nil without
// error. A slug that failed earlier in the run returns the same error again
// without a new fetch.
func (g *Gateway) Signal(ctx context.Context, p *models.Player) (*models.ScrapedSignal, error) {
	if p.Position == models.PositionCoach {
		g.mu.Lock()
		g.stats.Skipped++
		g.mu.Unlock()
		return nil, nil
	}
	slug := g.names.SlugFor(p)

	g.mu.Lock()
	defer g.mu.Unlock()

	if sig, ok := g.memo[slug]; ok {
		g.stats.Memoized++
		return sig, nil
	}
	if err, ok := g.failed[slug]; ok {
		g.stats.Memoized++
		return nil, err
	}

	day := g.now().Format(DayFormat)
	g.pruneOnce(ctx, day)

	if g.cache != nil {
		sig, ok, err := g.cache.Get(ctx, slug, day)
		if err != nil {
			logger.Warn("Signal cache read failed for %s: %v", slug, err)
		} else if ok {
			g.stats.CacheHits++
			g.memo[slug] = sig
			return sig, nil
		}
	}

	if g.source == nil {
		return nil, g.fail(slug, fmt.Errorf("no signal source for %s", slug))
	}
	if g.maxLookups > 0 && g.lookups >= g.maxLookups {
		g.stats.Skipped++
		return nil, fmt.Errorf("lookup limit of %d reached", g.maxLookups)
	}
	g.lookups++

	sig, err := g.source.Fetch(ctx, slug)
	if err == nil {
		err = sig.Validate()
	}
	if err != nil {
		return nil, g.fail(slug, err)
	}

	g.stats.Fetched++
	g.memo[slug] = sig
	if g.cache != nil {
		if err := g.cache.Put(ctx, slug, day, sig); err != nil {
			logger.Warn("Signal cache write failed for %s: %v", slug, err)
		}
	}
	return sig, nil
}

func (g *Gateway) fail(slug string, err error) error {
	g.stats.Failed++
	g.failed[slug] = err
	return err
}

// pruneOnce drops cache entries from other days the first time the gateway
// touches the cache.
func (g *Gateway) pruneOnce(ctx context.Context, day string) {
	if g.cache == nil || g.pruned {
		return
	}
	g.pruned = true
	n, err := g.cache.Prune(ctx, day)
	if err != nil {
		logger.Warn("Signal cache prune failed: %v", err)
		return
	}
	if n > 0 {
		logger.Debug("Pruned %d stale signal cache entries", n)
	}
}

// Enrich returns a copy of p carrying its signal, or p itself when no signal
// is available.
func (g *Gateway) Enrich(ctx context.Context, p *models.Player) (*models.Player, error) {
	sig, err := g.Signal(ctx, p)
	if err != nil || sig == nil {
		return p, err
	}
	return p.WithSignal(sig), nil
}

// EnrichAll enriches players in order. Failures become warnings and leave the
// player without a signal. A cancelled context stops further lookups.
func (g *Gateway) EnrichAll(ctx context.Context, players []*models.Player) ([]*models.Player, []string) {
	out := make([]*models.Player, len(players))
	var warnings []string
	for i, p := range players {
		if ctx.Err() != nil {
			copy(out[i:], players[i:])
			warnings = append(warnings, fmt.Sprintf("enrichment cancelled after %d of %d players", i, len(players)))
			break
		}
		enriched, err := g.Enrich(ctx, p)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("no signal for %s: %v", p.Nickname, err))
		}
		out[i] = enriched
	}
	return out, warnings
}

// Stats returns the lookup counters so far.
func (g *Gateway) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}
