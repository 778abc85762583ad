package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ai4ai/helpdesk/internal/answer"
)

// SSE event types for answer streaming.
const (
	eventChunk = "chunk" // Partial answer text
	eventDone  = "done"  // Stream completed with a classified result
	eventError = "error" // Request rejected before streaming started
)

// chunkPayload is the SSE data payload for streaming text deltas.
type chunkPayload struct {
	Text string `json:"text"`
}

// donePayload is the SSE data payload for the terminal result.
type donePayload struct {
	Question       string `json:"question"`
	Role           string `json:"role"`
	RetrievedCount int    `json:"retrievedCount"`
	FinalText      string `json:"finalText"`
	Classification string `json:"classification"`
}

// askRequest is the body of POST /api/ask.
type askRequest struct {
	Question string `json:"question"`
	Role     string `json:"role"`
}

// askHandler streams role-filtered answers over SSE.
type askHandler struct {
	factory *answer.Factory
	logger  *slog.Logger
}

// ask handles POST /api/ask. The response is an SSE stream: zero or more
// "chunk" events followed by exactly one "done" event carrying the
// classified result. Validation failures are reported as "error" events
// so clients only need one stream parser.
func (h *askHandler) ask(w http.ResponseWriter, r *http.Request) {
	sse, err := newSSEWriter(w)
	if err != nil {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	var req askRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1024*1024) // Limit request size to 1MB
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = sse.writeError("invalid_request", "invalid request body")
		return
	}
	if req.Question == "" {
		_ = sse.writeError("missing_question", "question is required")
		return
	}
	if req.Role == "" {
		_ = sse.writeError("missing_role", "role is required")
		return
	}

	ctx := r.Context()
	requestID, _ := requestIDFromContext(ctx)
	h.logger.Debug("answer stream started",
		"role", req.Role,
		"request_id", requestID,
	)

	pipeline := h.factory.ForRole(req.Role)
	for delta := range pipeline.Answer(ctx, req.Question) {
		if delta.Event != nil {
			ev := delta.Event
			payload := donePayload{
				Question:       ev.Question,
				Role:           ev.Role,
				RetrievedCount: ev.RetrievedCount,
				FinalText:      ev.FinalText,
				Classification: string(ev.Classification),
			}
			if err := sse.writeEvent(ctx, eventDone, payload); err != nil {
				h.logger.Debug("client disconnected before done event",
					"error", err,
					"request_id", requestID,
				)
			}
			return
		}

		if err := sse.writeEvent(ctx, eventChunk, chunkPayload{Text: delta.Text}); err != nil {
			// Client gone; the canceled request context stops the
			// pipeline goroutine, so just drain and leave.
			h.logger.Debug("client disconnected mid-stream",
				"error", err,
				"request_id", requestID,
			)
			return
		}
	}
}
