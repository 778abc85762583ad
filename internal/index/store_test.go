package index_test

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai4ai/helpdesk/internal/access"
	"github.com/ai4ai/helpdesk/internal/index"
	"github.com/ai4ai/helpdesk/internal/ingest"
	"github.com/ai4ai/helpdesk/internal/log"
	"github.com/ai4ai/helpdesk/internal/testutil"
)

// TestPGStore_RoundTrip exercises the pgvector-backed store against a
// real PostgreSQL container: build, reopen, filtered search.
func TestPGStore_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := index.NewPGStore(db.Pool)
	embedder := testutil.NewMockEmbedder(768)

	passages := []ingest.Passage{
		{SourceID: "handbook", AccessLevel: 1, Seq: 0, Text: "expense reports are due monthly"},
		{SourceID: "handbook", AccessLevel: 1, Seq: 1, Text: "vpn setup instructions"},
		{SourceID: "payroll", AccessLevel: 2, Seq: 0, Text: "salary band details"},
		{SourceID: "faq", AccessLevel: 0, Seq: 0, Text: "office opening hours"},
	}

	ix, err := index.Build(ctx, store, embedder, passages, log.NewNop())
	require.NoError(t, err)
	assert.EqualValues(t, 4, ix.Len())

	// Reopen from the persisted rows alone.
	reopened, err := index.Open(ctx, store, log.NewNop())
	require.NoError(t, err)
	assert.EqualValues(t, 4, reopened.Len())

	// A staff-level query must see the faq and handbook rows but never
	// the payroll passage.
	query, err := embedder.Embed(ctx, embedRequest("salary band details"))
	require.NoError(t, err)
	got, err := reopened.Search(ctx, query.Embeddings[0].Embedding, 10, 1)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, p := range got {
		assert.LessOrEqual(t, p.AccessLevel, access.Level(1))
	}

	// HR level sees the payroll passage, and it ranks first because the
	// query embeds identically to it.
	got, err = reopened.Search(ctx, query.Embeddings[0].Embedding, 10, 2)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "payroll", got[0].SourceID)

	// Rebuilding replaces the previous rows.
	_, err = index.Build(ctx, store, embedder, passages[:1], log.NewNop())
	require.NoError(t, err)
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func embedRequest(text string) *ai.EmbedRequest {
	return &ai.EmbedRequest{Input: []*ai.Document{ai.DocumentFromText(text, nil)}}
}
