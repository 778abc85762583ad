package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ai4ai/helpdesk/internal/ticket"
)

// ticketHandler exposes support ticket creation and listing.
type ticketHandler struct {
	store  *ticket.Store
	router *ticket.Router
	logger *slog.Logger
}

// createTicketRequest is the body of POST /api/tickets.
type createTicketRequest struct {
	Role     string `json:"role"`
	Question string `json:"question"`
	Summary  string `json:"summary,omitempty"`
	Team     string `json:"team,omitempty"` // Overrides the routed suggestion when set
}

// ticketResponse is the JSON shape of a single ticket.
type ticketResponse struct {
	ID            string    `json:"id"`
	Role          string    `json:"role"`
	Question      string    `json:"question"`
	Summary       string    `json:"summary,omitempty"`
	SuggestedTeam string    `json:"suggestedTeam"`
	SelectedTeam  string    `json:"selectedTeam"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toTicketResponse(t *ticket.Ticket) ticketResponse {
	return ticketResponse{
		ID:            t.ID,
		Role:          t.Role,
		Question:      t.Question,
		Summary:       t.Summary,
		SuggestedTeam: t.SuggestedTeam,
		SelectedTeam:  t.SelectedTeam,
		Status:        t.Status,
		CreatedAt:     t.CreatedAt,
	}
}

// create handles POST /api/tickets. The question is routed to a team
// suggestion; an explicit team in the request wins over the suggestion.
func (h *ticketHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
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

	suggested := h.router.Suggest(req.Question)
	created, err := h.store.Create(r.Context(), req.Role, req.Question, req.Summary, suggested, req.Team)
	if err != nil {
		h.logger.Error("failed to create ticket", "error", err)
		writeError(w, http.StatusInternalServerError, "create_failed", "failed to create ticket", h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, toTicketResponse(created), h.logger)
}

// list handles GET /api/tickets. An optional team query parameter
// restricts the listing to one team.
func (h *ticketHandler) list(w http.ResponseWriter, r *http.Request) {
	var (
		tickets []ticket.Ticket
		err     error
	)
	if team := r.URL.Query().Get("team"); team != "" {
		tickets, err = h.store.ListByTeam(r.Context(), team)
	} else {
		tickets, err = h.store.List(r.Context())
	}
	if err != nil {
		h.logger.Error("failed to list tickets", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list tickets", h.logger)
		return
	}

	out := make([]ticketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, toTicketResponse(&tickets[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": out}, h.logger)
}

// teams handles GET /api/teams, listing the routable teams so clients
// can offer a selection when the suggestion is wrong.
func (h *ticketHandler) teams(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"teams": h.router.Teams()}, h.logger)
}
