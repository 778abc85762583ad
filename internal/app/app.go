// Package app wires the helpdesk components together: configuration,
// Genkit provider, database pools, index handle, answer pipelines, and
// the ticket and feedback stores.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ai4ai/helpdesk/internal/access"
	"github.com/ai4ai/helpdesk/internal/answer"
	"github.com/ai4ai/helpdesk/internal/config"
	"github.com/ai4ai/helpdesk/internal/feedback"
	"github.com/ai4ai/helpdesk/internal/index"
	"github.com/ai4ai/helpdesk/internal/ingest"
	"github.com/ai4ai/helpdesk/internal/ticket"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	// Core services
	Genkit    *genkit.Genkit
	Embedder  ai.Embedder
	Pool      *pgxpool.Pool
	SupportDB *sql.DB

	// Domain components
	Catalog  *access.Catalog
	Loader   *ingest.Loader
	Chunker  *ingest.Chunker
	Store    index.Querier
	Handle   *index.Handle
	Factory  *answer.Factory
	Tickets  *ticket.Store
	Router   *ticket.Router
	Feedback *feedback.Store
}

// Close releases the database pools. Safe to call after a partial Setup.
func (a *App) Close() error {
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.SupportDB != nil {
		if err := a.SupportDB.Close(); err != nil {
			return fmt.Errorf("closing support database: %w", err)
		}
	}
	return nil
}

// IngestStats summarizes one ingestion run.
type IngestStats struct {
	Documents int
	Skipped   int
	Failed    int
	Passages  int
	Duration  time.Duration
}

// Ingest loads the documents under dir, chunks them, and builds a fresh
// index that replaces any previous one. The swap is atomic: questions
// asked during a rebuild are answered from the old index until the new
// one is fully persisted.
func (a *App) Ingest(ctx context.Context, dir string) (*IngestStats, error) {
	start := time.Now()

	docs, loadResult, err := a.Loader.LoadDirectory(dir)
	if err != nil {
		return nil, fmt.Errorf("loading documents: %w", err)
	}

	var passages []ingest.Passage
	for _, doc := range docs {
		passages = append(passages, a.Chunker.Split(doc)...)
	}

	ix, err := index.Build(ctx, a.Store, a.Embedder, passages, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}
	a.Handle.Swap(ix)

	stats := &IngestStats{
		Documents: loadResult.FilesLoaded,
		Skipped:   loadResult.FilesSkipped,
		Failed:    loadResult.FilesFailed,
		Passages:  len(passages),
		Duration:  time.Since(start),
	}
	a.Logger.Info("ingestion complete",
		"documents", stats.Documents,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"passages", stats.Passages,
		"duration", stats.Duration,
	)
	return stats, nil
}
