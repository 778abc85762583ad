// Package index embeds passages and serves role-filtered similarity
// search over a persistent vector store.
//
// Lifecycle: an Index value only ever exists in the Ready state — Build
// and Open are the sole constructors, and both return a fully usable
// Index or an error. A rebuild produces a new Index swapped in through a
// Handle; in-flight readers continue against the old one.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"

	"github.com/ai4ai/helpdesk/internal/access"
	"github.com/ai4ai/helpdesk/internal/ingest"
)

var (
	// ErrNoPassages indicates Build was called with an empty passage
	// set. Construction aborts; no partial index is produced.
	ErrNoPassages = errors.New("no passages to index")

	// ErrNotFound indicates Open found no persisted index.
	ErrNotFound = errors.New("no persisted index found")

	// ErrEmptyEmbedding indicates the embedder returned no vector.
	ErrEmptyEmbedding = errors.New("empty embedding returned")
)

const (
	// embedConcurrency bounds parallel embedding calls during Build.
	embedConcurrency = 4

	// searchTimeout caps a single vector search so a slow query cannot
	// block a request indefinitely.
	searchTimeout = 10 * time.Second
)

// ScoredPassage is a search hit with its similarity score.
type ScoredPassage struct {
	Passage    ingest.Passage
	Similarity float64
}

// Index serves similarity search over an immutable passage set.
// Safe for unlimited concurrent readers.
type Index struct {
	queries Querier
	logger  *slog.Logger
	size    int64
}

// Build embeds every passage and persists the full set, replacing any
// previously persisted index. It fails without touching the store when
// passages is empty, and aborts before persisting anything when any
// embedding fails — a partial index is never produced.
func Build(ctx context.Context, queries Querier, embedder ai.Embedder, passages []ingest.Passage, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(passages) == 0 {
		return nil, ErrNoPassages
	}

	start := time.Now()
	records := make([]Record, len(passages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for i, passage := range passages {
		g.Go(func() error {
			vec, err := embedText(gctx, embedder, passage.Text)
			if err != nil {
				return fmt.Errorf("embedding passage %s#%d: %w", passage.SourceID, passage.Seq, err)
			}
			records[i] = Record{Passage: passage, Embedding: pgvector.NewVector(vec)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := queries.ReplaceAll(ctx, records); err != nil {
		return nil, fmt.Errorf("persisting index: %w", err)
	}

	logger.Info("index built",
		"passages", len(passages),
		"duration", time.Since(start))

	return &Index{
		queries: queries,
		logger:  logger,
		size:    int64(len(passages)),
	}, nil
}

// Open loads a previously persisted index without re-embedding.
// Returns ErrNotFound when nothing is persisted.
func Open(ctx context.Context, queries Querier, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}

	count, err := queries.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking persisted index: %w", err)
	}
	if count == 0 {
		return nil, ErrNotFound
	}

	logger.Debug("opened persisted index", "passages", count)

	return &Index{
		queries: queries,
		logger:  logger,
		size:    count,
	}, nil
}

// Search returns up to k nearest passages with accessLevel <= maxLevel.
// Filtering happens inside the similarity query, never as a post-filter.
// Results are ordered by descending similarity, ties broken by ascending
// (sourceId, sequenceIndex).
func (ix *Index) Search(ctx context.Context, queryVec []float32, k int, maxLevel access.Level) ([]ingest.Passage, error) {
	scored, err := ix.SearchScored(ctx, queryVec, k, maxLevel)
	if err != nil {
		return nil, err
	}
	passages := make([]ingest.Passage, len(scored))
	for i, s := range scored {
		passages[i] = s.Passage
	}
	return passages, nil
}

// SearchScored is Search with similarity scores attached.
func (ix *Index) SearchScored(ctx context.Context, queryVec []float32, k int, maxLevel access.Level) ([]ScoredPassage, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	rows, err := ix.queries.Search(queryCtx, SearchParams{
		Query:    pgvector.NewVector(queryVec),
		MaxLevel: maxLevel,
		Limit:    int32(k), // #nosec G115 -- k validated positive and small
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, err
	}

	out := make([]ScoredPassage, 0, len(rows))
	for _, row := range rows {
		out = append(out, ScoredPassage{
			Passage: ingest.Passage{
				SourceID:    row.SourceID,
				AccessLevel: access.Level(row.AccessLevel),
				Seq:         int(row.Seq),
				Text:        row.Content,
			},
			Similarity: row.Similarity,
		})
	}
	return out, nil
}

// Len returns the number of passages in the index.
func (ix *Index) Len() int64 {
	return ix.size
}

// embedText runs a single text through the embedder.
func embedText(ctx context.Context, embedder ai.Embedder, text string) ([]float32, error) {
	resp, err := embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return resp.Embeddings[0].Embedding, nil
}
