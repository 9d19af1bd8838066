package laliga

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rewired-gh/transferoracle/internal/logger"
	"github.com/rewired-gh/transferoracle/internal/unifier"
)

// Output directories written next to the unifier's inputs.
const (
	RankingDir = "jefes"
	LineupsDir = "formaciones"
)

// DateFormat is the layout of snapshot date stamps.
const DateFormat = "20060102"

// Summary reports what a download run wrote.
type Summary struct {
	Date     string   `json:"date"`
	Week     int      `json:"week"`
	Files    []string `json:"files"`
	Warnings []string `json:"warnings"`
}

// Downloader writes one dated snapshot of a league into a data directory.
type Downloader struct {
	client          *Client
	root            string
	leagueID        string
	filePermissions os.FileMode
	dirPermissions  os.FileMode
	now             func() time.Time
}

// NewDownloader creates a downloader writing under root.
func NewDownloader(client *Client, root, leagueID string, filePermissions, dirPermissions os.FileMode) *Downloader {
	return &Downloader{
		client:          client,
		root:            root,
		leagueID:        leagueID,
		filePermissions: filePermissions,
		dirPermissions:  dirPermissions,
		now:             time.Now,
	}
}

// Run downloads the current week, market, players, calendar, ranking and
// every ranked team with its last lineup. The week, market and player list
// are required; per-team and calendar failures become warnings.
func (d *Downloader) Run(ctx context.Context) (*Summary, error) {
	s := &Summary{Date: d.now().Format(DateFormat), Files: []string{}, Warnings: []string{}}

	raw, week, err := d.client.FetchCurrentWeek(ctx)
	if err != nil {
		return nil, err
	}
	s.Week = week.WeekNumber
	if err := d.save(s, raw, unifier.CurrentWeekFile); err != nil {
		return nil, err
	}

	raw, err = d.client.FetchMarket(ctx, d.leagueID)
	if err != nil {
		return nil, err
	}
	if err := d.save(s, raw, unifier.MarketDir, fmt.Sprintf("%s_%s.json", unifier.MarketPrefix, s.Date)); err != nil {
		return nil, err
	}

	raw, err = d.client.FetchPlayers(ctx)
	if err != nil {
		return nil, err
	}
	if err := d.save(s, raw, unifier.PlayersDir, fmt.Sprintf("%s_%s.json", unifier.PlayersPrefix, s.Date)); err != nil {
		return nil, err
	}

	if week.WeekNumber > 0 {
		if raw, err := d.client.FetchCalendar(ctx, week.WeekNumber); err != nil {
			s.warn("%v", err)
		} else if err := d.save(s, raw, unifier.CalendarDir, fmt.Sprintf("week_%d.json", week.WeekNumber)); err != nil {
			s.warn("%v", err)
		}
	}

	raw, ranking, err := d.client.FetchRanking(ctx, d.leagueID)
	if err != nil {
		return nil, err
	}
	if err := d.save(s, raw, RankingDir, fmt.Sprintf("jefes_%s.json", s.Date)); err != nil {
		return nil, err
	}
	for _, entry := range ranking {
		d.downloadTeam(ctx, s, entry, week.PreviousWeek)
	}

	logger.Info("Downloaded %d files for %s (%d warnings)", len(s.Files), s.Date, len(s.Warnings))
	return s, nil
}

func (d *Downloader) downloadTeam(ctx context.Context, s *Summary, entry RankingEntry, previousWeek int) {
	id := entry.TeamID()
	manager := safeName(entry.Team.Manager.ManagerName)
	if id == "" || manager == "" {
		s.warn("skipping ranking entry without team id or manager")
		return
	}

	raw, err := d.client.FetchTeam(ctx, d.leagueID, id)
	if err != nil {
		s.warn("%v", err)
		return
	}
	if err := d.save(s, raw, unifier.TeamsDir, fmt.Sprintf("%s_%s.json", manager, s.Date)); err != nil {
		s.warn("%v", err)
		return
	}

	if previousWeek <= 0 {
		return
	}
	raw, err = d.client.FetchLineup(ctx, id, previousWeek)
	if err != nil {
		s.warn("%v", err)
		return
	}
	if err := d.save(s, raw, LineupsDir, fmt.Sprintf("%s_%d.json", manager, previousWeek)); err != nil {
		s.warn("%v", err)
	}
}

// save writes raw under root, indented, through a temp file and rename.
func (d *Downloader) save(s *Summary, raw json.RawMessage, elem ...string) error {
	path := filepath.Join(append([]string{d.root}, elem...)...)
	if err := os.MkdirAll(filepath.Dir(path), d.dirPermissions); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "    "); err != nil {
		return fmt.Errorf("failed to format %s: %w", path, err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, buf.Bytes(), d.filePermissions); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	rel, _ := filepath.Rel(d.root, path)
	s.Files = append(s.Files, filepath.ToSlash(rel))
	logger.Debug("Saved %s", path)
	return nil
}

func (s *Summary) warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Warn("%s", msg)
	s.Warnings = append(s.Warnings, msg)
}

// safeName keeps manager names usable as file names. Underscores and dots
// are replaced since the date stamp sits between the first of each.
func safeName(name string) string {
	name = strings.TrimSpace(name)
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', '_', '.':
			return '-'
		}
		return r
	}, name)
}
