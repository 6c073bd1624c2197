// Package handlers exposes the analysis pipeline over HTTP: dataset
// metadata, intent interpretation, streamed explanations, and the post
// feed endpoints that drive the orchestrator.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/LambaLab/abudhabi-sales-explorer/pkg/analyst"
	"github.com/LambaLab/abudhabi-sales-explorer/pkg/feed"
	"github.com/LambaLab/abudhabi-sales-explorer/pkg/market"
)

// ExplainService is the slice of the explainer the HTTP layer needs.
type ExplainService interface {
	StreamExplanation(ctx context.Context, mode analyst.Mode, prompt string, intent market.Intent, stats market.SummaryStats, onChunk func(string)) (string, error)
	Clarify(ctx context.Context, prompt string) analyst.Clarification
}

// Config holds the configuration for a Handler.
type Config struct {
	Logger       *slog.Logger
	Meta         feed.MetaProvider
	Intents      feed.IntentInterpreter
	Explainer    ExplainService
	Orchestrator *feed.Orchestrator
	Store        *feed.Store

	// ShareBaseURL is the public URL share links are built against.
	ShareBaseURL string
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Meta == nil {
		return fmt.Errorf("meta provider is required")
	}
	if cfg.Intents == nil {
		return fmt.Errorf("intent interpreter is required")
	}
	if cfg.Explainer == nil {
		return fmt.Errorf("explain service is required")
	}
	if cfg.Orchestrator == nil {
		return fmt.Errorf("orchestrator is required")
	}
	if cfg.Store == nil {
		return fmt.Errorf("store is required")
	}
	if cfg.ShareBaseURL == "" {
		cfg.ShareBaseURL = "http://localhost:5173"
	}
	return nil
}

// Handler carries the injected services behind the HTTP surface.
type Handler struct {
	log       *slog.Logger
	meta      feed.MetaProvider
	intents   feed.IntentInterpreter
	explainer ExplainService
	orch      *feed.Orchestrator
	store     *feed.Store
	shareBase string
}

// New creates a Handler.
func New(cfg Config) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate handler config: %w", err)
	}
	return &Handler{
		log:       cfg.Logger,
		meta:      cfg.Meta,
		intents:   cfg.Intents,
		explainer: cfg.Explainer,
		orch:      cfg.Orchestrator,
		store:     cfg.Store,
		shareBase: cfg.ShareBaseURL,
	}, nil
}

// Register mounts all API routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/meta", h.GetMeta)
	r.Post("/api/analyze", h.Analyze)
	r.Post("/api/explain", h.Explain)

	r.Get("/api/posts", h.ListPosts)
	r.Post("/api/posts/analyze", h.AnalyzePost)
	r.Get("/api/posts/{id}", h.GetPost)
	r.Delete("/api/posts/{id}", h.RemovePost)
	r.Post("/api/posts/{id}/deepen", h.DeepenPost)
	r.Post("/api/posts/{id}/replies", h.ReplyToPost)
	r.Get("/api/posts/{id}/share", h.SharePost)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("failed to write response", "error", err)
	}
}

// writeError maps the service error taxonomy onto HTTP statuses: malformed
// input is 400, unparseable model output 422, upstream failure 502.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, analyst.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, analyst.ErrParse):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, analyst.ErrUpstream):
		status = http.StatusBadGateway
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}
