package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"newsroom/internal/domain"
	"newsroom/internal/logging"
	"newsroom/internal/usecase"
)

type stubRunner struct {
	result *usecase.RunResult
	err    error
	got    usecase.RunRequest
}

func (s *stubRunner) Run(_ context.Context, req usecase.RunRequest) (*usecase.RunResult, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newTestServer(runner Runner) *httptest.Server {
	return httptest.NewServer(NewServer(runner, logging.Nop()).Routes())
}

func postRun(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url+"/api/pipeline/run", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandleRunSuccess(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{result: &usecase.RunResult{ContentID: "content-1", Slug: "derby-report"}}
	srv := newTestServer(runner)
	t.Cleanup(srv.Close)

	resp := postRun(t, srv.URL, `{"sourceItemId":"item-1","personaId":"voice-1","categoryHint":"derby"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		ContentID string `json:"contentId"`
		Slug      string `json:"slug"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ContentID != "content-1" || body.Slug != "derby-report" {
		t.Errorf("body = %+v", body)
	}
	if runner.got.SourceItemID != "item-1" || runner.got.PersonaID != "voice-1" || runner.got.CategoryHint != "derby" {
		t.Errorf("runner request = %+v", runner.got)
	}
}

func TestHandleRunErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "not found", err: domain.ErrNotFound, want: http.StatusNotFound},
		{name: "conflict", err: fmt.Errorf("claim: %w", domain.ErrConflict), want: http.StatusConflict},
		{name: "insufficient context", err: domain.ErrInsufficientContext, want: http.StatusUnprocessableEntity},
		{name: "declined", err: domain.ErrContentDeclined, want: http.StatusUnprocessableEntity},
		{name: "bad output", err: domain.ErrOutputFormat, want: http.StatusUnprocessableEntity},
		{name: "timeout", err: domain.ErrGenerationTimeout, want: http.StatusGatewayTimeout},
		{name: "quota", err: domain.ErrQuotaExceeded, want: http.StatusPaymentRequired},
		{name: "generation failed", err: domain.ErrGenerationFailed, want: http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := newTestServer(&stubRunner{err: tc.err})
			t.Cleanup(srv.Close)

			resp := postRun(t, srv.URL, `{"sourceItemId":"item-1"}`)
			if resp.StatusCode != tc.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestHandleRunValidation(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&stubRunner{})
	t.Cleanup(srv.Close)

	for name, body := range map[string]string{
		"empty body": ``,
		"missing id": `{}`,
		"bad json":   `{"sourceItemId":`,
	} {
		t.Run(name, func(t *testing.T) {
			resp := postRun(t, srv.URL, body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&stubRunner{})
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
