package index

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/ai4ai/helpdesk/internal/access"
	"github.com/ai4ai/helpdesk/internal/ingest"
)

// Querier defines the storage operations the Index needs. The interface
// lives with its consumer so tests can substitute an in-memory fake and
// production uses the pgvector-backed PGStore.
type Querier interface {
	// ReplaceAll atomically replaces the full passage set. Readers see
	// either the previous set or the new one, never a mix.
	ReplaceAll(ctx context.Context, records []Record) error

	// Search returns up to Limit nearest passages with
	// access_level <= MaxLevel, ordered by descending similarity with
	// (source_id, seq) as the deterministic tie-break.
	Search(ctx context.Context, params SearchParams) ([]SearchRow, error)

	// Count returns the number of stored passages.
	Count(ctx context.Context) (int64, error)
}

// Record is a passage paired with its embedding vector, as persisted.
type Record struct {
	Passage   ingest.Passage
	Embedding pgvector.Vector
}

// SearchParams are the inputs to a filtered nearest-neighbor query.
type SearchParams struct {
	Query    pgvector.Vector
	MaxLevel access.Level
	Limit    int32
}

// SearchRow is one row returned by Querier.Search.
type SearchRow struct {
	SourceID    string
	Seq         int32
	Content     string
	AccessLevel int32
	Similarity  float64
}

// PGStore implements Querier on PostgreSQL with the pgvector extension.
// The access_level column is a first-class predicate inside the
// nearest-neighbor query, so filtering happens during the search rather
// than as a post-filter that would under-return for low-privilege callers.
//
// Safe for concurrent use; pgxpool manages connections.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a PGStore over an existing connection pool.
// The pool's lifecycle is managed by the caller.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// ReplaceAll truncates the passages table and inserts the new records in
// a single transaction. Concurrent readers keep seeing the previous
// committed set until the transaction commits.
func (s *PGStore) ReplaceAll(ctx context.Context, records []Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning replace transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM passages`); err != nil {
		return fmt.Errorf("clearing passages: %w", err)
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(
			`INSERT INTO passages (source_id, seq, content, access_level, embedding)
			 VALUES ($1, $2, $3, $4, $5)`,
			rec.Passage.SourceID,
			int32(rec.Passage.Seq),
			rec.Passage.Text,
			int32(rec.Passage.AccessLevel),
			rec.Embedding,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range records {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("inserting passage: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing insert batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing replace transaction: %w", err)
	}
	return nil
}

// Search runs the filtered nearest-neighbor query. Similarity is cosine
// (1 - distance); ties are broken by source_id then seq so results are
// deterministic for identical scores.
func (s *PGStore) Search(ctx context.Context, params SearchParams) ([]SearchRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source_id, seq, content, access_level,
		        1 - (embedding <=> $1) AS similarity
		 FROM passages
		 WHERE access_level <= $2
		 ORDER BY embedding <=> $1, source_id, seq
		 LIMIT $3`,
		params.Query, int32(params.MaxLevel), params.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching passages: %w", err)
	}
	defer rows.Close()

	var out []SearchRow
	for rows.Next() {
		var row SearchRow
		if err := rows.Scan(&row.SourceID, &row.Seq, &row.Content, &row.AccessLevel, &row.Similarity); err != nil {
			return nil, fmt.Errorf("scanning passage row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading passage rows: %w", err)
	}
	return out, nil
}

// Count returns the number of persisted passages.
func (s *PGStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM passages`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting passages: %w", err)
	}
	return count, nil
}
