package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/LambaLab/abudhabi-sales-explorer/pkg/analyst"
	"github.com/LambaLab/abudhabi-sales-explorer/pkg/feed"
)

type promptRequest struct {
	Prompt string `json:"prompt"`
}

type createdResponse struct {
	ID string `json:"id"`
}

// ListPosts returns the full feed, newest first.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.List())
}

// GetPost returns a single post with its replies.
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, ok := h.store.Get(chi.URLParam(r, "id"))
	if !ok {
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "post not found"})
		return
	}
	h.writeJSON(w, http.StatusOK, post)
}

// AnalyzePost starts a top-level analysis. The response carries the new
// post id; clients poll the feed for progress.
func (h *Handler) AnalyzePost(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: invalid JSON body", analyst.ErrValidation))
		return
	}

	id, err := h.orch.Analyze(r.Context(), req.Prompt)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, createdResponse{ID: id})
}

// DeepenPost escalates a post to a long-form explanation, or toggles the
// expanded flag when the full text is already cached.
func (h *Handler) DeepenPost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.orch.AnalyzeDeep(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, createdResponse{ID: id})
}

// ReplyToPost starts a threaded follow-up under a post.
func (h *Handler) ReplyToPost(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: invalid JSON body", analyst.ErrValidation))
		return
	}

	replyID, err := h.orch.AnalyzeReply(r.Context(), chi.URLParam(r, "id"), req.Prompt)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, createdResponse{ID: replyID})
}

// RemovePost deletes a post from the feed. Posts are never deleted
// automatically; this is the only path that removes one.
func (h *Handler) RemovePost(w http.ResponseWriter, r *http.Request) {
	if !h.store.Remove(chi.URLParam(r, "id")) {
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "post not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type shareResponse struct {
	URL string `json:"url"`
}

// SharePost builds a deep link carrying the full post, so the share target
// renders without backend state.
func (h *Handler) SharePost(w http.ResponseWriter, r *http.Request) {
	post, ok := h.store.Get(chi.URLParam(r, "id"))
	if !ok {
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "post not found"})
		return
	}

	link, err := feed.BuildShareURL(h.shareBase, post)
	if err != nil {
		h.log.Error("failed to build share URL", "postID", post.ID, "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to build share URL"})
		return
	}
	h.writeJSON(w, http.StatusOK, shareResponse{URL: link})
}
