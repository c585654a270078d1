package fixtures

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"newsroom/internal/config"
	"newsroom/internal/domain"
)

func TestFixtureDecodesProviderShape(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fixtures/fx-42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "fx-42",
			"kickoff_utc": "2026-09-12T19:45:00Z",
			"league": "Premier League",
			"venue": "Anfield",
			"home_team": {"name": "Liverpool", "recent_form": "WWDWL"},
			"away_team": {"name": "Everton", "recent_form": "LDWLL"}
		}`))
	}))
	t.Cleanup(srv.Close)

	client := New(config.FixturesConfig{BaseURL: srv.URL, APIKey: "secret"})
	fixture, err := client.Fixture(context.Background(), "fx-42")
	if err != nil {
		t.Fatalf("Fixture: %v", err)
	}
	if fixture.HomeTeam != "Liverpool" || fixture.AwayTeam != "Everton" {
		t.Errorf("teams = %q vs %q", fixture.HomeTeam, fixture.AwayTeam)
	}
	if fixture.League != "Premier League" || fixture.Venue != "Anfield" {
		t.Errorf("league/venue = %q / %q", fixture.League, fixture.Venue)
	}
	if fixture.KickoffAt.IsZero() {
		t.Error("kickoff was not parsed")
	}
	if fixture.HomeForm != "WWDWL" || fixture.AwayForm != "LDWLL" {
		t.Errorf("form = %q vs %q", fixture.HomeForm, fixture.AwayForm)
	}
}

func TestFixtureNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	client := New(config.FixturesConfig{BaseURL: srv.URL})
	_, err := client.Fixture(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}
