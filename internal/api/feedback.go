package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ai4ai/helpdesk/internal/feedback"
)

// feedbackHandler records thumbs up/down verdicts on answers.
type feedbackHandler struct {
	store  *feedback.Store
	logger *slog.Logger
}

// recordFeedbackRequest is the body of POST /api/feedback.
type recordFeedbackRequest struct {
	Role     string `json:"role"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Rating   string `json:"rating"` // "up" or "down"
}

// feedbackResponse is the JSON shape of a stored feedback entry.
type feedbackResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Rating    string    `json:"rating"`
	CreatedAt time.Time `json:"createdAt"`
}

// record handles POST /api/feedback.
func (h *feedbackHandler) record(w http.ResponseWriter, r *http.Request) {
	var req recordFeedbackRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1024*1024)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	if req.Role == "" {
		writeError(w, http.StatusBadRequest, "missing_role", "role is required", h.logger)
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "missing_question", "question is required", h.logger)
		return
	}

	entry, err := h.store.Record(r.Context(), req.Role, req.Question, req.Answer, feedback.Rating(req.Rating))
	if err != nil {
		if errors.Is(err, feedback.ErrInvalidRating) {
			writeError(w, http.StatusBadRequest, "invalid_rating", "rating must be up or down", h.logger)
			return
		}
		h.logger.Error("failed to record feedback", "error", err)
		writeError(w, http.StatusInternalServerError, "record_failed", "failed to record feedback", h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, feedbackResponse{
		ID:        entry.ID,
		Role:      entry.Role,
		Question:  entry.Question,
		Answer:    entry.Answer,
		Rating:    string(entry.Rating),
		CreatedAt: entry.CreatedAt,
	}, h.logger)
}
