// Package feedback records per-answer user ratings for later review.
package feedback

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Rating is a thumbs up or down on one answer.
type Rating string

const (
	RatingUp   Rating = "up"
	RatingDown Rating = "down"
)

// ErrInvalidRating rejects ratings outside up/down.
var ErrInvalidRating = fmt.Errorf("rating must be %q or %q", RatingUp, RatingDown)

// Entry is one persisted feedback row, attributing a rating to the
// (role, question, answer) tuple the pipeline exposed.
type Entry struct {
	ID        string
	Role      string
	Question  string
	Answer    string
	Rating    Rating
	CreatedAt time.Time
}

// Store persists feedback in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore wraps an opened, migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record inserts one feedback entry.
func (s *Store) Record(ctx context.Context, role, question, answer string, rating Rating) (*Entry, error) {
	if rating != RatingUp && rating != RatingDown {
		return nil, fmt.Errorf("%w, got %q", ErrInvalidRating, rating)
	}

	e := &Entry{
		ID:        uuid.NewString(),
		Role:      role,
		Question:  question,
		Answer:    answer,
		Rating:    rating,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, role, question, answer, rating, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Role, e.Question, e.Answer, string(e.Rating), e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("saving feedback: %w", err)
	}
	return e, nil
}

// List returns all feedback entries, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, question, answer, rating, created_at
		 FROM feedback
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing feedback: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var rating string
		if err := rows.Scan(&e.ID, &e.Role, &e.Question, &e.Answer, &rating, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning feedback: %w", err)
		}
		e.Rating = Rating(rating)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading feedback: %w", err)
	}
	return out, nil
}
