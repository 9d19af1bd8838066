package unifier

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/transferoracle/internal/models"
)

const globalJSON = `[
	{"id": "101", "nickname": "Lewandowski", "positionId": "4", "team": {"id": 3, "name": "FC Barcelona"},
	 "points": 120, "averagePoints": 6.5, "lastSeasonPoints": "150", "marketValue": "42000000", "playerStatus": "ok"},
	{"id": 102, "nickname": "Oblak", "positionId": 1, "team": {"id": "2", "name": "Atlético de Madrid"},
	 "points": 80, "averagePoints": 4.1, "marketValue": 18000000, "playerStatus": "injured"},
	{"id": "103", "nickname": "Nadie", "positionId": 3, "team": {"id": "9", "name": "Getafe CF"},
	 "points": 10, "averagePoints": 1.0, "marketValue": 300000}
]`

const marketJSON = `[
	{"discr": "marketPlayerLeague", "salePrice": 45000000, "playerMaster": {"id": "101"}},
	{"discr": "marketPlayerTeam", "salePrice": "19000000", "playerMaster": {"id": 102}},
	{"discr": "marketPlayerLeague", "salePrice": 1, "playerMaster": {"id": "999"}}
]`

func rivalTeamJSON(lock string) string {
	return `{"id": "t2", "manager": {"managerName": "rival"}, "teamValue": 90000000, "teamPoints": 500, "position": 2,
	"players": [{"playerMaster": {"id": "102", "nickname": "Oblak", "positionId": 1, "team": {"id": "2", "name": "Atlético de Madrid"}},
	             "buyoutClause": 25000000, "buyoutClauseLockedEndTime": "` + lock + `"}]}`
}

const myTeamJSON = `{"id": "t1", "manager": {"managerName": "svend"}, "teamValue": 100000000, "teamPoints": 610,
	"teamMoney": 5000000, "position": 1,
	"players": [{"playerMaster": {"id": "103", "nickname": "Nadie", "positionId": 3, "team": {"id": "9", "name": "Getafe CF"},
	   "averagePoints": 1.0, "marketValue": 300000, "playerStatus": "ok",
	   "lastStats": [
	     {"totalPoints": 1, "stats": {"mins_played": [10, 0]}},
	     {"totalPoints": 2, "stats": {"mins_played": [90]}},
	     {"totalPoints": 4, "stats": {"mins_played": [80]}},
	     {"totalPoints": 6, "stats": {}}
	   ]},
	 "buyoutClause": 900000}]}`

func decode[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestMergeUnifiesSources(t *testing.T) {
	global := decode[[]RawPlayer](t, globalJSON)
	market := decode[[]RawMarketEntry](t, marketJSON)
	rival := decode[RawTeam](t, rivalTeamJSON("2025-01-10T12:00:00+00:00"))

	res := Merge(global, market, []RawTeam{rival})
	require.Len(t, res.Players, 3)
	assert.Empty(t, res.Warnings)

	lewy := res.ByID["101"]
	require.NotNil(t, lewy)
	assert.Equal(t, models.PositionForward, lewy.Position)
	assert.Equal(t, "3", lewy.TeamID)
	assert.Equal(t, int64(42_000_000), lewy.MarketValue)
	require.NotNil(t, lewy.LastSeasonPoints)
	assert.Equal(t, 150, *lewy.LastSeasonPoints)
	assert.True(t, lewy.OnMarket)
	require.NotNil(t, lewy.SalePrice)
	assert.Equal(t, int64(45_000_000), *lewy.SalePrice)
	assert.Empty(t, lewy.OwnedBy)

	oblak := res.ByID["102"]
	require.NotNil(t, oblak)
	assert.False(t, oblak.OnMarket, "owner listings do not put a player on the open market")
	require.NotNil(t, oblak.SalePrice)
	assert.Equal(t, int64(19_000_000), *oblak.SalePrice)
	assert.Equal(t, "rival", oblak.OwnedBy)
	require.NotNil(t, oblak.BuyoutClause)
	assert.Equal(t, int64(25_000_000), *oblak.BuyoutClause)
	require.NotNil(t, oblak.BuyoutLockedUntil)
	assert.True(t, oblak.BuyoutLockedUntil.Equal(time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, "injured", oblak.Status)

	nadie := res.ByID["103"]
	require.NotNil(t, nadie)
	assert.False(t, nadie.OnMarket)
	assert.Empty(t, nadie.OwnedBy)
	assert.Nil(t, nadie.SalePrice)
	assert.Nil(t, nadie.LastSeasonPoints)
	assert.Equal(t, models.StatusFit, nadie.Status, "missing status defaults to fit")

	// Global-list order is preserved.
	assert.Equal(t, []string{"101", "102", "103"}, []string{res.Players[0].ID, res.Players[1].ID, res.Players[2].ID})
}

func TestMergeToleratesBadLockTimestamp(t *testing.T) {
	global := decode[[]RawPlayer](t, globalJSON)
	rival := decode[RawTeam](t, rivalTeamJSON("next tuesday"))

	res := Merge(global, nil, []RawTeam{rival})
	oblak := res.ByID["102"]
	require.NotNil(t, oblak)
	assert.Equal(t, "rival", oblak.OwnedBy)
	assert.Nil(t, oblak.BuyoutLockedUntil)
	assert.NotNil(t, oblak.BuyoutClause)
}

func TestMergeSkipsMalformedRecords(t *testing.T) {
	global := decode[[]RawPlayer](t, `[
		{"id": "1", "positionId": 2, "team": {"id": "1"}},
		{"id": "", "positionId": 2},
		{"id": "2", "positionId": 0},
		{"id": "1", "positionId": 3}
	]`)
	market := decode[[]RawMarketEntry](t, `[{"discr": "marketPlayerLeague", "playerMaster": {}}]`)

	res := Merge(global, market, nil)
	require.Len(t, res.Players, 1)
	assert.Equal(t, models.PositionDefender, res.Players[0].Position)
	assert.Len(t, res.Warnings, 4)
}

func TestMergeEmptyInputs(t *testing.T) {
	res := Merge(nil, nil, nil)
	assert.NotNil(t, res.Players)
	assert.Empty(t, res.Players)
	assert.Empty(t, res.Warnings)
}

func TestMergeWithoutMarketOrOwnershipKeepsBaseFields(t *testing.T) {
	global := decode[[]RawPlayer](t, globalJSON)

	res := Merge(global, nil, nil)
	require.Len(t, res.Players, len(global))
	assert.Empty(t, res.Warnings)

	for i := range global {
		want, err := global[i].toPlayer()
		require.NoError(t, err)
		got := res.ByID[want.ID]
		require.NotNil(t, got, want.ID)
		assert.Equal(t, want, got, want.ID)
		assert.False(t, got.OnMarket, want.ID)
		assert.Empty(t, got.OwnedBy, want.ID)
		assert.Nil(t, got.SalePrice, want.ID)
		assert.Nil(t, got.BuyoutClause, want.ID)
		assert.Nil(t, got.BuyoutLockedUntil, want.ID)
	}
}

func TestMergeDropsListingWithNegativePrice(t *testing.T) {
	global := decode[[]RawPlayer](t, globalJSON)
	market := decode[[]RawMarketEntry](t, `[
		{"discr": "marketPlayerLeague", "salePrice": -5, "playerMaster": {"id": "101"}},
		{"discr": "marketPlayerLeague", "salePrice": 300000, "playerMaster": {"id": "103"}}
	]`)

	res := Merge(global, market, nil)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "101")

	lewy := res.ByID["101"]
	require.NotNil(t, lewy)
	assert.False(t, lewy.OnMarket, "a rejected listing does not put the player on the market")
	assert.Nil(t, lewy.SalePrice)

	nadie := res.ByID["103"]
	require.NotNil(t, nadie)
	assert.True(t, nadie.OnMarket)
	require.NotNil(t, nadie.SalePrice)
	assert.Equal(t, int64(300_000), *nadie.SalePrice)
}

func TestBuildTeamKeepsLastThreeGameweeks(t *testing.T) {
	raw := decode[RawTeam](t, myTeamJSON)

	team, warnings, err := BuildTeam(raw)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "svend", team.ManagerName)
	assert.Equal(t, int64(5_000_000), team.Budget())
	require.Len(t, team.Players, 1)

	p := team.Players[0]
	assert.Equal(t, []int{2, 4, 6}, p.LastPoints)
	assert.Equal(t, []int{90, 80, 0}, p.LastMinutes)
	assert.Equal(t, "svend", p.OwnedBy)
	require.NotNil(t, p.BuyoutClause)
	assert.Equal(t, int64(900_000), *p.BuyoutClause)
}

func TestBuildTeamRejectsMissingManager(t *testing.T) {
	raw := decode[RawTeam](t, `{"id": "t1", "players": []}`)
	_, _, err := BuildTeam(raw)
	assert.Error(t, err)
}

func TestApplyRosterDetailsDoesNotMutate(t *testing.T) {
	universe := Merge(decode[[]RawPlayer](t, globalJSON), nil, nil)
	team, _, err := BuildTeam(decode[RawTeam](t, myTeamJSON))
	require.NoError(t, err)

	original := universe.ByID["103"]
	out := ApplyRosterDetails(universe.Players, team)

	require.Len(t, out, len(universe.Players))
	assert.Nil(t, original.LastPoints, "input player must be untouched")
	assert.Equal(t, []int{2, 4, 6}, out[2].LastPoints)
	assert.Same(t, universe.Players[0], out[0], "non-roster players are shared")
}

func TestFlexDecoding(t *testing.T) {
	var v struct {
		A flexString `json:"a"`
		B flexString `json:"b"`
		C flexInt    `json:"c"`
		D flexInt    `json:"d"`
		E flexFloat  `json:"e"`
		F flexInt    `json:"f"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 7, "b": " x1 ", "c": "12", "d": 3.0, "e": "4.25", "f": null}`), &v))
	assert.Equal(t, flexString("7"), v.A)
	assert.Equal(t, flexString("x1"), v.B)
	assert.Equal(t, flexInt(12), v.C)
	assert.Equal(t, flexInt(3), v.D)
	assert.Equal(t, flexFloat(4.25), v.E)
	assert.Equal(t, flexInt(0), v.F)

	var bad struct {
		C flexInt `json:"c"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"c": "lots"}`), &bad))
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoaderLatestSelection(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "players/players_20250101.json", `[]`)
	writeFile(t, root, "players/players_20250103.json", `[]`)
	writeFile(t, root, "players/players_20250102.json", `[]`)
	writeFile(t, root, "equipos/alice_20250102.json", `{}`)
	writeFile(t, root, "equipos/bob_20250103.json", `{}`)

	l := NewLoader(root)

	path, err := l.LatestFile(PlayersDir, PlayersPrefix)
	require.NoError(t, err)
	assert.Equal(t, "players_20250103.json", filepath.Base(path))

	date, err := l.LatestDate(TeamsDir)
	require.NoError(t, err)
	assert.Equal(t, "20250103", date, "the newest file name by reverse lexical order wins")

	_, err = l.LatestFile(MarketDir, MarketPrefix)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestLatestDateWithUnderscoreInName(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "equipos/my_team_20250301.json", `{}`)

	date, err := NewLoader(root).LatestDate(TeamsDir)
	require.NoError(t, err)
	assert.Equal(t, "20250301", date)
}

func TestDateStamp(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		want    string
		wantErr bool
	}{
		{"plain", "players_20250301.json", "20250301", false},
		{"underscores in the prefix", "my_team_20250301.json", "20250301", false},
		{"no extension", "market_20250301", "20250301", false},
		{"no underscore", "players.json", "", true},
		{"empty stamp", "players_.json", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dateStamp(tt.file)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoaderLoadUniverse(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "players/players_20250110.json", globalJSON)
	writeFile(t, root, "market/market_20250110.json", marketJSON)
	writeFile(t, root, "equipos/svend_20250110.json", myTeamJSON)
	writeFile(t, root, "equipos/rival_20250110.json", rivalTeamJSON("2025-01-10T12:00:00Z"))
	writeFile(t, root, "equipos/rival_20250109.json", `{"id": "t2", "manager": {"managerName": "stale"}, "players": []}`)

	l := NewLoader(root)
	res := l.LoadUniverse()
	assert.Empty(t, res.Warnings)
	require.Len(t, res.Players, 3)
	assert.Equal(t, "rival", res.ByID["102"].OwnedBy)
	assert.Equal(t, "svend", res.ByID["103"].OwnedBy)

	team, warnings, err := l.LoadTeam("svend")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "t1", team.ID)
}

func TestLoaderMissingSourcesDegrade(t *testing.T) {
	l := NewLoader(t.TempDir())

	res := l.LoadUniverse()
	assert.Empty(t, res.Players)
	assert.Len(t, res.Warnings, 3)

	fixtures, warnings := l.LoadCalendar(7)
	assert.Empty(t, fixtures)
	assert.Len(t, warnings, 1)

	week, warnings := l.LoadCurrentWeek()
	assert.Equal(t, DefaultWeek, week)
	assert.Len(t, warnings, 1)

	_, _, err := l.LoadTeam("nobody")
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestLoaderCalendarAndWeek(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "current_week.json", `{"weekNumber": 12, "previousWeek": 11}`)
	writeFile(t, root, "calendar/week_12.json", `[
		{"id": 1, "matchDate": "2025-01-18T15:00:00+01:00", "local": {"id": "3", "name": "FC Barcelona"},
		 "visitor": {"id": "2", "name": "Atlético de Madrid"}, "matchState": 0},
		{"id": 2, "matchDate": "whenever", "local": {"id": "4"}, "visitor": {"id": "5"}},
		"not a match",
		{"id": 3, "matchDate": "2025-01-19T21:00:00", "local": {"id": "6", "name": "Sevilla FC"},
		 "visitor": {"id": "7", "name": "Real Betis"}, "localScore": 2, "visitorScore": 1, "matchState": 7}
	]`)

	l := NewLoader(root)
	week, warnings := l.LoadCurrentWeek()
	assert.Equal(t, 12, week)
	assert.Empty(t, warnings)

	fixtures, warnings := l.LoadCalendar(week)
	require.Len(t, fixtures, 2)
	assert.Len(t, warnings, 2)
	assert.Equal(t, "3", fixtures[0].HomeTeamID)
	require.NotNil(t, fixtures[1].HomeScore)
	assert.Equal(t, 2, *fixtures[1].HomeScore)
	assert.Equal(t, 7, fixtures[1].State)
}
