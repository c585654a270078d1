// Package httpapi exposes the inbound pipeline trigger.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"newsroom/internal/domain"
	"newsroom/internal/usecase"
)

const maxRequestBytes = 64 << 10

// Runner is the slice of the pipeline the trigger needs.
type Runner interface {
	Run(ctx context.Context, req usecase.RunRequest) (*usecase.RunResult, error)
}

// Server owns the HTTP routes of the trigger surface.
type Server struct {
	runner Runner
	logger *slog.Logger
}

func NewServer(runner Runner, logger *slog.Logger) *Server {
	return &Server{runner: runner, logger: logger}
}

// Routes builds the request mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/pipeline/run", s.handleRun)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

type runRequest struct {
	SourceItemID string `json:"sourceItemId"`
	PersonaID    string `json:"personaId,omitempty"`
	CategoryHint string `json:"categoryHint,omitempty"`
}

type runResponse struct {
	ContentID string `json:"contentId"`
	Slug      string `json:"slug,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	body := io.LimitReader(r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.SourceItemID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "sourceItemId is required"})
		return
	}

	result, err := s.runner.Run(r.Context(), usecase.RunRequest{
		SourceItemID: req.SourceItemID,
		PersonaID:    req.PersonaID,
		CategoryHint: req.CategoryHint,
	})
	if err != nil {
		status := domain.HTTPStatus(err)
		if status >= http.StatusInternalServerError && !errors.Is(err, domain.ErrGenerationFailed) && !errors.Is(err, domain.ErrGenerationTimeout) {
			s.logger.Error("pipeline trigger failed", "item", req.SourceItemID, "error", err)
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, runResponse{ContentID: result.ContentID, Slug: result.Slug})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
