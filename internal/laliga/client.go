// Package laliga downloads LaLiga Fantasy snapshots into the data directory
// layout read by the unifier.
package laliga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultAPIBaseURL is the public fantasy API.
const DefaultAPIBaseURL = "https://api-fantasy.llt-services.com/api"

// Credentials authenticate against the fantasy API with a long-lived refresh
// token, exchanged for a bearer token on first use.
type Credentials struct {
	TokenURL     string
	ClientID     string
	RefreshToken string
}

// Validate checks that every credential is present.
func (c Credentials) Validate() error {
	if c.TokenURL == "" || c.ClientID == "" || c.RefreshToken == "" {
		return errors.New("token URL, client ID and refresh token are required")
	}
	return nil
}

// Client provides access to the fantasy API
type Client struct {
	apiBaseURL string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRetries sets the attempt count and the base delay between attempts.
// Attempt i waits (i+1) × delay.
func WithRetries(maxRetries int, delay time.Duration) ClientOption {
	return func(c *Client) {
		if maxRetries > 0 {
			c.maxRetries = maxRetries
		}
		c.retryDelay = delay
	}
}

// WithHTTPClient replaces the authenticated HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client that refreshes its access token through the
// OAuth2 refresh-token grant.
func NewClient(ctx context.Context, apiBaseURL string, creds Credentials, timeout time.Duration, opts ...ClientOption) *Client {
	if apiBaseURL == "" {
		apiBaseURL = DefaultAPIBaseURL
	}

	conf := &oauth2.Config{
		ClientID: creds.ClientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  creds.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	base := &http.Client{Timeout: timeout}
	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, base)
	source := conf.TokenSource(tokenCtx, &oauth2.Token{RefreshToken: creds.RefreshToken})

	httpClient := oauth2.NewClient(tokenCtx, source)
	httpClient.Timeout = timeout

	c := &Client{
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
		httpClient: httpClient,
		maxRetries: 3,
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CurrentWeek is the gameweek pointer returned by the API.
type CurrentWeek struct {
	WeekNumber   int `json:"weekNumber"`
	PreviousWeek int `json:"previousWeek"`
}

// RankingEntry is one team of a league ranking.
type RankingEntry struct {
	Team struct {
		ID      json.RawMessage `json:"id"`
		Manager struct {
			ManagerName string `json:"managerName"`
		} `json:"manager"`
	} `json:"team"`
}

// TeamID returns the team id whether the API encoded it as a string or a
// number.
func (e RankingEntry) TeamID() string {
	return strings.Trim(strings.TrimSpace(string(e.Team.ID)), `"`)
}

// FetchCurrentWeek retrieves the current gameweek.
func (c *Client) FetchCurrentWeek(ctx context.Context) (json.RawMessage, CurrentWeek, error) {
	var week CurrentWeek
	raw, err := c.get(ctx, "/v3/week/current")
	if err != nil {
		return nil, week, fmt.Errorf("failed to fetch current week: %w", err)
	}
	if err := json.Unmarshal(raw, &week); err != nil {
		return nil, week, fmt.Errorf("failed to decode current week: %w", err)
	}
	return raw, week, nil
}

// FetchPlayers retrieves every player of the competition.
func (c *Client) FetchPlayers(ctx context.Context) (json.RawMessage, error) {
	raw, err := c.get(ctx, "/v3/players")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch players: %w", err)
	}
	return raw, nil
}

// FetchMarket retrieves the current market listing of a league.
func (c *Client) FetchMarket(ctx context.Context, leagueID string) (json.RawMessage, error) {
	raw, err := c.get(ctx, fmt.Sprintf("/v3/league/%s/market", leagueID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch market: %w", err)
	}
	return raw, nil
}

// FetchRanking retrieves the ranking of a league.
func (c *Client) FetchRanking(ctx context.Context, leagueID string) (json.RawMessage, []RankingEntry, error) {
	raw, err := c.get(ctx, fmt.Sprintf("/v5/leagues/%s/ranking", leagueID))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch ranking: %w", err)
	}
	var entries []RankingEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, nil, fmt.Errorf("failed to decode ranking: %w", err)
	}
	return raw, entries, nil
}

// FetchTeam retrieves the roster of one team.
func (c *Client) FetchTeam(ctx context.Context, leagueID, teamID string) (json.RawMessage, error) {
	raw, err := c.get(ctx, fmt.Sprintf("/v4/leagues/%s/teams/%s", leagueID, teamID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch team %s: %w", teamID, err)
	}
	return raw, nil
}

// FetchLineup retrieves the lineup a team fielded in week.
func (c *Client) FetchLineup(ctx context.Context, teamID string, week int) (json.RawMessage, error) {
	raw, err := c.get(ctx, fmt.Sprintf("/v4/teams/%s/lineup/week/%d", teamID, week))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch lineup of team %s: %w", teamID, err)
	}
	return raw, nil
}

// FetchCalendar retrieves the matches of one gameweek.
func (c *Client) FetchCalendar(ctx context.Context, week int) (json.RawMessage, error) {
	raw, err := c.get(ctx, fmt.Sprintf("/v3/calendar?weekNumber=%d", week))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch calendar of week %d: %w", week, err)
	}
	return raw, nil
}

// get requests path with the English locale and returns the body, which must
// be valid JSON.
func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	resp, err := c.doRequest(ctx, c.apiBaseURL+path+sep+"x-lang=en")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if !json.Valid(body) {
		return nil, errors.New("response is not valid JSON")
	}
	return body, nil
}

// doRequest performs HTTP request with retry logic
func (c *Client) doRequest(ctx context.Context, url string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if !c.wait(ctx, i) {
				break
			}
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			if !c.wait(ctx, i) {
				break
			}
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// wait sleeps before attempt i+1 and reports whether to keep trying.
func (c *Client) wait(ctx context.Context, i int) bool {
	if i == c.maxRetries-1 {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(time.Duration(i+1) * c.retryDelay):
		return true
	}
}
