package unifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/transferoracle/internal/models"
)

// maxRecentGames is how many trailing gameweeks are kept from lastStats.
const maxRecentGames = 3

// marketPlayerTeam is the listing type of a player put on sale by a manager rather
// than offered by the league itself.
const marketPlayerTeam = "marketPlayerTeam"

// flexString decodes a JSON string or number into a string. The fantasy API
// encodes ids either way depending on the endpoint.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*s = flexString(n.String())
	return nil
}

// flexInt decodes a JSON number or numeric string into an int64.
type flexInt int64

func (i *flexInt) UnmarshalJSON(b []byte) error {
	f, ok, err := decodeNumber(b)
	if err != nil || !ok {
		return err
	}
	*i = flexInt(math.Round(f))
	return nil
}

// flexFloat decodes a JSON number or numeric string into a float64.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	v, ok, err := decodeNumber(b)
	if err != nil || !ok {
		return err
	}
	*f = flexFloat(v)
	return nil
}

func decodeNumber(b []byte) (float64, bool, error) {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return 0, false, nil
	}
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return 0, false, err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return 0, false, nil
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid number %q: %w", raw, err)
	}
	return v, true, nil
}

// RawTeamRef is the club reference embedded in players and matches.
type RawTeamRef struct {
	ID   flexString `json:"id"`
	Name string     `json:"name"`
}

// RawStat is one gameweek entry of a player's lastStats.
type RawStat struct {
	TotalPoints flexInt `json:"totalPoints"`
	Stats       struct {
		MinsPlayed []flexInt `json:"mins_played"`
	} `json:"stats"`
}

// RawPlayer is a player as delivered by the players endpoint and inside roster
// entries (playerMaster).
type RawPlayer struct {
	ID               flexString `json:"id"`
	Nickname         string     `json:"nickname"`
	PositionID       flexInt    `json:"positionId"`
	Team             RawTeamRef `json:"team"`
	Points           flexInt    `json:"points"`
	AveragePoints    flexFloat  `json:"averagePoints"`
	LastSeasonPoints *flexInt   `json:"lastSeasonPoints"`
	MarketValue      flexInt    `json:"marketValue"`
	PlayerStatus     string     `json:"playerStatus"`
	LastStats        []RawStat  `json:"lastStats"`
}

// RawMarketEntry is one listing from the league market snapshot.
type RawMarketEntry struct {
	Discr        string   `json:"discr"`
	SalePrice    *flexInt `json:"salePrice"`
	PlayerMaster struct {
		ID flexString `json:"id"`
	} `json:"playerMaster"`
}

// RawRosterEntry is one player slot of a team snapshot.
type RawRosterEntry struct {
	PlayerMaster              RawPlayer `json:"playerMaster"`
	BuyoutClause              *flexInt  `json:"buyoutClause"`
	BuyoutClauseLockedEndTime string    `json:"buyoutClauseLockedEndTime"`
}

// RawTeam is a manager's team snapshot.
type RawTeam struct {
	ID      flexString `json:"id"`
	Manager struct {
		ManagerName string `json:"managerName"`
	} `json:"manager"`
	Players    []RawRosterEntry `json:"players"`
	TeamValue  flexInt          `json:"teamValue"`
	TeamPoints flexInt          `json:"teamPoints"`
	TeamMoney  *flexInt         `json:"teamMoney"`
	Position   flexInt          `json:"position"`
}

// RawMatch is one calendar entry.
type RawMatch struct {
	ID           flexString `json:"id"`
	MatchDate    string     `json:"matchDate"`
	Local        RawTeamRef `json:"local"`
	Visitor      RawTeamRef `json:"visitor"`
	LocalScore   *flexInt   `json:"localScore"`
	VisitorScore *flexInt   `json:"visitorScore"`
	MatchState   flexInt    `json:"matchState"`
}

// RawCurrentWeek is the current gameweek document.
type RawCurrentWeek struct {
	WeekNumber   flexInt `json:"weekNumber"`
	PreviousWeek flexInt `json:"previousWeek"`
}

// toPlayer converts the base identity and performance fields.
func (r *RawPlayer) toPlayer() (*models.Player, error) {
	p := &models.Player{
		ID:            string(r.ID),
		Nickname:      r.Nickname,
		Position:      models.Position(r.PositionID),
		TeamID:        string(r.Team.ID),
		TeamName:      r.Team.Name,
		Points:        int(r.Points),
		AveragePoints: float64(r.AveragePoints),
		MarketValue:   int64(r.MarketValue),
		Status:        r.PlayerStatus,
	}
	if p.Status == "" {
		p.Status = models.StatusFit
	}
	if r.LastSeasonPoints != nil && *r.LastSeasonPoints != 0 {
		v := int(*r.LastSeasonPoints)
		p.LastSeasonPoints = &v
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// recent returns the last three gameweek points and minutes, oldest first.
// A gameweek without a minutes entry counts as zero minutes.
func (r *RawPlayer) recent() (points, minutes []int) {
	stats := r.LastStats
	if len(stats) > maxRecentGames {
		stats = stats[len(stats)-maxRecentGames:]
	}
	if len(stats) == 0 {
		return nil, nil
	}
	points = make([]int, len(stats))
	minutes = make([]int, len(stats))
	for i, s := range stats {
		points[i] = int(s.TotalPoints)
		if len(s.Stats.MinsPlayed) > 0 {
			minutes[i] = int(s.Stats.MinsPlayed[0])
		}
	}
	return points, minutes
}

func (m *RawMatch) toFixture() (models.Fixture, error) {
	kickoff, err := parseTimestamp(m.MatchDate)
	if err != nil {
		return models.Fixture{}, fmt.Errorf("match %s: invalid matchDate: %w", m.ID, err)
	}
	f := models.Fixture{
		MatchID:      string(m.ID),
		Kickoff:      kickoff,
		HomeTeamID:   string(m.Local.ID),
		HomeTeamName: m.Local.Name,
		AwayTeamID:   string(m.Visitor.ID),
		AwayTeamName: m.Visitor.Name,
		State:        int(m.MatchState),
	}
	if m.LocalScore != nil {
		v := int(*m.LocalScore)
		f.HomeScore = &v
	}
	if m.VisitorScore != nil {
		v := int(*m.VisitorScore)
		f.AwayScore = &v
	}
	if err := f.Validate(); err != nil {
		return models.Fixture{}, fmt.Errorf("match %s: %w", m.ID, err)
	}
	return f, nil
}

// timestampLayouts are tried in order; the API is not consistent about offsets.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
