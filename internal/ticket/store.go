package ticket

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StatusOpen is the status every new ticket starts in.
const StatusOpen = "Open"

// Ticket is one persisted escalation.
type Ticket struct {
	ID            string
	Role          string
	Question      string
	Summary       string
	SuggestedTeam string
	SelectedTeam  string
	Status        string
	CreatedAt     time.Time
}

// Store persists tickets in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore wraps an opened database. The schema must already be
// migrated.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new open ticket and returns it with its generated ID.
// selectedTeam falls back to suggestedTeam when the caller made no
// explicit choice.
func (s *Store) Create(ctx context.Context, role, question, summary, suggestedTeam, selectedTeam string) (*Ticket, error) {
	if selectedTeam == "" {
		selectedTeam = suggestedTeam
	}

	t := &Ticket{
		ID:            uuid.NewString(),
		Role:          role,
		Question:      question,
		Summary:       summary,
		SuggestedTeam: suggestedTeam,
		SelectedTeam:  selectedTeam,
		Status:        StatusOpen,
		CreatedAt:     time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tickets (id, role, question, summary, suggested_team, selected_team, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Role, t.Question, t.Summary, t.SuggestedTeam, t.SelectedTeam, t.Status, t.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("saving ticket: %w", err)
	}
	return t, nil
}

// ListByTeam returns tickets for one team, newest first.
func (s *Store) ListByTeam(ctx context.Context, team string) ([]Ticket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, question, summary, suggested_team, selected_team, status, created_at
		 FROM tickets
		 WHERE selected_team = ?
		 ORDER BY created_at DESC`,
		team,
	)
	if err != nil {
		return nil, fmt.Errorf("listing tickets: %w", err)
	}
	defer rows.Close()

	return scanTickets(rows)
}

// List returns all tickets, newest first.
func (s *Store) List(ctx context.Context) ([]Ticket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, question, summary, suggested_team, selected_team, status, created_at
		 FROM tickets
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing tickets: %w", err)
	}
	defer rows.Close()

	return scanTickets(rows)
}

func scanTickets(rows *sql.Rows) ([]Ticket, error) {
	var out []Ticket
	for rows.Next() {
		var t Ticket
		if err := rows.Scan(&t.ID, &t.Role, &t.Question, &t.Summary,
			&t.SuggestedTeam, &t.SelectedTeam, &t.Status, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning ticket: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading tickets: %w", err)
	}
	return out, nil
}
