// Package storage provides a thread-safe per-day cache of scraped player
// signals backed by SQLite.
//
// Entries are keyed by player slug and day (YYYYMMDD). A signal is only valid
// on the day it was fetched; Prune drops every other day so the cache never
// grows past one day of lookups.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rewired-gh/transferoracle/internal/models"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS signals (
	slug       TEXT NOT NULL,
	day        TEXT NOT NULL,
	payload    TEXT NOT NULL,
	fetched_at TIMESTAMP NOT NULL,
	PRIMARY KEY (slug, day)
);
CREATE INDEX IF NOT EXISTS signals_day ON signals (day);
`

// Storage is a SQLite-backed signal cache.
type Storage struct {
	db  *sql.DB
	now func() time.Time
}

// New opens (creating if needed) the cache at filePath. If filePath is empty,
// an OS-appropriate tmp location is used.
func New(filePath string, dirPermissions os.FileMode) (*Storage, error) {
	if filePath == "" {
		filePath = filepath.Join(os.TempDir(), "transferoracle", "signals.db")
	}
	if filePath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(filePath), dirPermissions); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open signal cache: %w", err)
	}
	// One connection keeps in-memory databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize signal cache: %w", err)
	}
	return &Storage{db: db, now: time.Now}, nil
}

// Get returns the signal cached for slug on day.
func (s *Storage) Get(ctx context.Context, slug, day string) (*models.ScrapedSignal, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM signals WHERE slug = ? AND day = ?`, slug, day).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read signal: %w", err)
	}

	var sig models.ScrapedSignal
	if err := json.Unmarshal([]byte(payload), &sig); err != nil {
		return nil, false, fmt.Errorf("failed to decode signal: %w", err)
	}
	if err := sig.Validate(); err != nil {
		return nil, false, fmt.Errorf("invalid cached signal: %w", err)
	}
	return &sig, true, nil
}

// Put stores sig for slug on day, replacing any previous entry.
func (s *Storage) Put(ctx context.Context, slug, day string, sig *models.ScrapedSignal) error {
	if sig == nil {
		return errors.New("signal is nil")
	}
	if err := sig.Validate(); err != nil {
		return fmt.Errorf("invalid signal: %w", err)
	}
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("failed to encode signal: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO signals (slug, day, payload, fetched_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (slug, day) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at`,
		slug, day, string(payload), s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write signal: %w", err)
	}
	return nil
}

// Prune deletes every entry not dated day and returns how many were removed.
func (s *Storage) Prune(ctx context.Context, day string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM signals WHERE day <> ?`, day)
	if err != nil {
		return 0, fmt.Errorf("failed to prune signals: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of entries cached for day.
func (s *Storage) Count(ctx context.Context, day string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM signals WHERE day = ?`, day).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count signals: %w", err)
	}
	return n, nil
}

// Close releases the database.
func (s *Storage) Close() error {
	return s.db.Close()
}
