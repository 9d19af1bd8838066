package unifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rewired-gh/transferoracle/internal/logger"
	"github.com/rewired-gh/transferoracle/internal/models"
)

// Snapshot directory layout under the data root.
const (
	PlayersDir      = "players"
	MarketDir       = "market"
	TeamsDir        = "equipos"
	CalendarDir     = "calendar"
	CurrentWeekFile = "current_week.json"

	PlayersPrefix = "players"
	MarketPrefix  = "market"
)

// DefaultWeek is used when the current gameweek is unknown.
const DefaultWeek = 1

// ErrNoSnapshot is returned when no snapshot file matches.
var ErrNoSnapshot = errors.New("no snapshot found")

// Loader reads date-stamped snapshot files from a data directory.
type Loader struct {
	Root string
}

// NewLoader creates a loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{Root: dir}
}

func (l *Loader) dir(name string) string {
	return filepath.Join(l.Root, name)
}

// LatestFile returns the path of the newest "<prefix>*.json" file in dir. Newest
// is the first name in reverse lexical order, which matches date order for the
// YYYYMMDD stamps the downloader writes.
func (l *Loader) LatestFile(dir, prefix string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(l.dir(dir), globEscape(prefix)+"*.json"))
	if err != nil {
		return "", fmt.Errorf("failed to list %s: %w", dir, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s/%s*.json", ErrNoSnapshot, dir, prefix)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	return matches[0], nil
}

// LatestDate returns the date stamp of the newest snapshot in dir: the text
// between the last "_" and the following "." of the newest file name.
func (l *Loader) LatestDate(dir string) (string, error) {
	latest, err := l.LatestFile(dir, "")
	if err != nil {
		return "", err
	}
	return dateStamp(filepath.Base(latest))
}

func dateStamp(name string) (string, error) {
	i := strings.LastIndex(name, "_")
	if i < 0 {
		return "", fmt.Errorf("file %s has no date stamp", name)
	}
	date, _, _ := strings.Cut(name[i+1:], ".")
	if date == "" {
		return "", fmt.Errorf("file %s has an empty date stamp", name)
	}
	return date, nil
}

// LoadTeam loads the newest roster snapshot whose file name starts with
// managerName. An empty name selects the newest team file of any manager.
func (l *Loader) LoadTeam(managerName string) (*models.Team, []string, error) {
	path, err := l.LatestFile(TeamsDir, managerName)
	if err != nil {
		return nil, nil, err
	}
	var raw RawTeam
	if err := readJSON(path, &raw); err != nil {
		return nil, nil, err
	}
	return BuildTeam(raw)
}

// LoadUniverse loads the newest player list, market listing and every team
// snapshot sharing the newest date, then merges them. Missing sources degrade
// to empty inputs with a warning.
func (l *Loader) LoadUniverse() Result {
	var warnings []string

	global, w, err := loadLatestList[RawPlayer](l, PlayersDir, PlayersPrefix)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("player list unavailable: %v", err))
	}
	warnings = append(warnings, w...)

	market, w, err := loadLatestList[RawMarketEntry](l, MarketDir, MarketPrefix)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("market listing unavailable: %v", err))
	}
	warnings = append(warnings, w...)

	ownership, ownWarnings := l.loadOwnership()
	warnings = append(warnings, ownWarnings...)

	res := Merge(global, market, ownership)
	res.Warnings = append(warnings, res.Warnings...)
	logger.Debug("Unified %d players (%d market entries, %d team snapshots)", len(res.Players), len(market), len(ownership))
	return res
}

func (l *Loader) loadOwnership() ([]RawTeam, []string) {
	date, err := l.LatestDate(TeamsDir)
	if err != nil {
		return nil, []string{fmt.Sprintf("ownership data unavailable: %v", err)}
	}

	matches, err := filepath.Glob(filepath.Join(l.dir(TeamsDir), "*"+globEscape(date)+".json"))
	if err != nil {
		return nil, []string{fmt.Sprintf("failed to list team snapshots: %v", err)}
	}
	sort.Strings(matches)

	var warnings []string
	teams := make([]RawTeam, 0, len(matches))
	for _, path := range matches {
		var raw RawTeam
		if err := readJSON(path, &raw); err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping team snapshot: %v", err))
			continue
		}
		teams = append(teams, raw)
	}
	return teams, warnings
}

// LoadCalendar loads the fixtures of one gameweek. Malformed matches are skipped
// with a warning; a missing file yields an empty calendar.
func (l *Loader) LoadCalendar(week int) ([]models.Fixture, []string) {
	name := fmt.Sprintf("week_%d.json", week)
	raw, warnings, err := readList[RawMatch](filepath.Join(l.dir(CalendarDir), name))
	if err != nil {
		return []models.Fixture{}, []string{fmt.Sprintf("calendar unavailable: %v", err)}
	}

	fixtures := make([]models.Fixture, 0, len(raw))
	for i := range raw {
		f, err := raw[i].toFixture()
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping calendar entry %d: %v", i, err))
			continue
		}
		fixtures = append(fixtures, f)
	}
	return fixtures, warnings
}

// LoadCurrentWeek returns the current gameweek, or DefaultWeek with a warning
// when it is unknown.
func (l *Loader) LoadCurrentWeek() (int, []string) {
	var raw RawCurrentWeek
	if err := readJSON(filepath.Join(l.Root, CurrentWeekFile), &raw); err != nil {
		return DefaultWeek, []string{fmt.Sprintf("current week unknown, defaulting to %d: %v", DefaultWeek, err)}
	}
	if raw.WeekNumber <= 0 {
		return DefaultWeek, []string{fmt.Sprintf("current week missing, defaulting to %d", DefaultWeek)}
	}
	return int(raw.WeekNumber), nil
}

func loadLatestList[T any](l *Loader, dir, prefix string) ([]T, []string, error) {
	path, err := l.LatestFile(dir, prefix)
	if err != nil {
		return nil, nil, err
	}
	return readList[T](path)
}

// readList decodes a JSON array element by element so one malformed entry
// only drops that entry.
func readList[T any](path string) ([]T, []string, error) {
	var raw []json.RawMessage
	if err := readJSON(path, &raw); err != nil {
		return nil, nil, err
	}
	var warnings []string
	items := make([]T, 0, len(raw))
	for i, msg := range raw {
		var item T
		if err := json.Unmarshal(msg, &item); err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping entry %d of %s: %v", i, filepath.Base(path), err))
			continue
		}
		items = append(items, item)
	}
	return items, warnings, nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	logger.Debug("Loaded snapshot %s", path)
	return nil
}

// globEscape quotes glob metacharacters so manager names match literally.
func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
