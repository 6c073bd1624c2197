package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/LambaLab/abudhabi-sales-explorer/pkg/analyst"
	"github.com/LambaLab/abudhabi-sales-explorer/pkg/market"
)

// GetMeta serves the dataset vocabulary and bounds for filter pickers and
// intent grounding.
func (h *Handler) GetMeta(w http.ResponseWriter, r *http.Request) {
	meta, err := h.meta.Meta(r.Context())
	if err != nil {
		h.log.Error("failed to load dataset meta", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load dataset metadata"})
		return
	}
	h.writeJSON(w, http.StatusOK, meta)
}

// AnalyzeRequest asks for a structured intent for a free-form question.
type AnalyzeRequest struct {
	Prompt  string                `json:"prompt"`
	Context *analyst.ReplyContext `json:"context,omitempty"`
}

// Analyze interprets a prompt into a structured intent. The dataset
// vocabulary is attached server-side so clients cannot skew grounding.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: invalid JSON body", analyst.ErrValidation))
		return
	}

	meta, err := h.meta.Meta(r.Context())
	if err != nil {
		h.log.Error("failed to load dataset meta", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load dataset metadata"})
		return
	}

	intent, err := h.intents.Interpret(r.Context(), analyst.IntentRequest{
		Prompt:  req.Prompt,
		Meta:    meta,
		Context: req.Context,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, intent)
}

// ExplainRequest asks for streamed commentary over computed statistics.
type ExplainRequest struct {
	Prompt       string              `json:"prompt"`
	Intent       market.Intent       `json:"intent"`
	SummaryStats market.SummaryStats `json:"summaryStats"`
	Mode         analyst.Mode        `json:"mode"`
}

// Explain streams plain-text commentary chunk by chunk for short and full
// modes; clarify mode answers with a single JSON object instead.
func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	var req ExplainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: invalid JSON body", analyst.ErrValidation))
		return
	}
	if req.Mode == "" {
		req.Mode = analyst.ModeFull
	}
	if strings.TrimSpace(req.Prompt) == "" {
		h.writeError(w, fmt.Errorf("%w: missing required field: prompt", analyst.ErrValidation))
		return
	}

	if req.Mode == analyst.ModeClarify {
		h.writeJSON(w, http.StatusOK, h.explainer.Clarify(r.Context(), req.Prompt))
		return
	}

	if req.Intent.QueryType == "" {
		h.writeError(w, fmt.Errorf("%w: missing required fields: intent, summaryStats", analyst.ErrValidation))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	_, err := h.explainer.StreamExplanation(r.Context(), req.Mode, req.Prompt, req.Intent, req.SummaryStats, func(chunk string) {
		if _, err := w.Write([]byte(chunk)); err != nil {
			return
		}
		flusher.Flush()
	})
	if err != nil {
		// Headers are gone; the truncated stream is all we can signal.
		h.log.Warn("explanation stream failed", "error", err)
	}
}
