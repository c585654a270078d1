// Package fixtures talks to the sports-data provider. A fixture is fetched
// exactly once per pipeline run; all generated text is derived from that
// single snapshot.
package fixtures

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"newsroom/internal/config"
	"newsroom/internal/domain"
	"newsroom/internal/ports"
)

const (
	requestTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// Client implements ports.FixtureProvider over the provider's REST API.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

var _ ports.FixtureProvider = (*Client)(nil)

func New(cfg config.FixturesConfig) *Client {
	return &Client{
		http:    &http.Client{Timeout: requestTimeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
	}
}

// fixtureResponse is the provider's wire shape; only the fields the
// prediction variant consumes are decoded.
type fixtureResponse struct {
	ID       string `json:"id"`
	Kickoff  string `json:"kickoff_utc"`
	League   string `json:"league"`
	Venue    string `json:"venue"`
	HomeTeam struct {
		Name string `json:"name"`
		Form string `json:"recent_form"`
	} `json:"home_team"`
	AwayTeam struct {
		Name string `json:"name"`
		Form string `json:"recent_form"`
	} `json:"away_team"`
}

// Fixture looks up a single fixture by its provider id.
func (c *Client) Fixture(ctx context.Context, id string) (*domain.Fixture, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/fixtures/%s", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build fixture request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch fixture %s: %w", id, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: fixture %s", domain.ErrNotFound, id)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch fixture %s: unexpected status %d", id, resp.StatusCode)
	}

	var body fixtureResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode fixture %s: %w", id, err)
	}

	fixture := &domain.Fixture{
		ID:       body.ID,
		HomeTeam: body.HomeTeam.Name,
		AwayTeam: body.AwayTeam.Name,
		League:   body.League,
		Venue:    body.Venue,
		HomeForm: body.HomeTeam.Form,
		AwayForm: body.AwayTeam.Form,
	}
	if body.Kickoff != "" {
		if kickoff, err := time.Parse(time.RFC3339, body.Kickoff); err == nil {
			fixture.KickoffAt = kickoff
		}
	}
	return fixture, nil
}
