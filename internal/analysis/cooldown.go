package analysis

import (
	"sync"
	"time"

	"github.com/rewired-gh/transferoracle/internal/models"
)

// notifiedRecord tracks a previously sent suggestion.
type notifiedRecord struct {
	ValueRatio float64
	SentAt     time.Time
}

// Cooldown suppresses repeat notifications of the same transfer. Suggestion
// ids are stable per outgoing and incoming player pair, so a pair that was
// sent recently is held back unless its value ratio has improved since.
type Cooldown struct {
	window time.Duration

	mu   sync.Mutex
	sent map[string]notifiedRecord
}

// NewCooldown creates a tracker that holds pairs back for window.
func NewCooldown(window time.Duration) *Cooldown {
	return &Cooldown{window: window, sent: make(map[string]notifiedRecord)}
}

// Filter drops suggestions sent within the window with an equal or better
// value ratio. Returns a non-nil slice.
func (c *Cooldown) Filter(suggestions []models.TransferSuggestion, now time.Time) []models.TransferSuggestion {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := []models.TransferSuggestion{}
	for _, s := range suggestions {
		rec, exists := c.sent[s.ID]
		if exists && now.Sub(rec.SentAt) < c.window && s.ValueRatio <= rec.ValueRatio {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Record marks suggestions as sent at now. Call it after a successful send.
func (c *Cooldown) Record(suggestions []models.TransferSuggestion, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range suggestions {
		c.sent[s.ID] = notifiedRecord{ValueRatio: s.ValueRatio, SentAt: now}
	}
	for id, rec := range c.sent {
		if now.Sub(rec.SentAt) >= c.window {
			delete(c.sent, id)
		}
	}
}
