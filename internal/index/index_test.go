package index_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai4ai/helpdesk/internal/access"
	"github.com/ai4ai/helpdesk/internal/index"
	"github.com/ai4ai/helpdesk/internal/ingest"
	"github.com/ai4ai/helpdesk/internal/log"
	"github.com/ai4ai/helpdesk/internal/testutil"
)

const testDim = 8

func buildIndex(t *testing.T, store index.Querier, embedder *testutil.MockEmbedder, passages []ingest.Passage) *index.Index {
	t.Helper()
	ix, err := index.Build(context.Background(), store, embedder, passages, log.NewNop())
	require.NoError(t, err)
	return ix
}

func passage(sourceID string, seq int, level access.Level, text string) ingest.Passage {
	return ingest.Passage{SourceID: sourceID, AccessLevel: level, Seq: seq, Text: text}
}

func TestBuild_NoPassages(t *testing.T) {
	store := testutil.NewMemStore()
	embedder := testutil.NewMockEmbedder(testDim)

	_, err := index.Build(context.Background(), store, embedder, nil, log.NewNop())

	require.ErrorIs(t, err, index.ErrNoPassages)
	assert.Zero(t, embedder.CallCount())
	assert.Empty(t, store.Records())
}

func TestBuild_PersistsAllPassages(t *testing.T) {
	store := testutil.NewMemStore()
	embedder := testutil.NewMockEmbedder(testDim)
	passages := []ingest.Passage{
		passage("faq", 0, access.Public, "how to reset a password"),
		passage("faq", 1, access.Public, "how to contact support"),
		passage("payroll", 0, 2, "salary band details"),
	}

	ix := buildIndex(t, store, embedder, passages)

	assert.EqualValues(t, 3, ix.Len())
	records := store.Records()
	require.Len(t, records, 3)
	// Order of the persisted records follows the input, regardless of
	// which embedding finished first.
	for i, rec := range records {
		assert.Equal(t, passages[i], rec.Passage)
		assert.Len(t, rec.Embedding.Slice(), testDim)
	}
	assert.Equal(t, 3, embedder.CallCount())
}

func TestBuild_EmbedFailureAbortsPersist(t *testing.T) {
	store := testutil.NewMemStore()
	embedder := testutil.NewMockEmbedder(testDim)
	embedErr := errors.New("quota exceeded")
	embedder.FailWith(embedErr)

	_, err := index.Build(context.Background(), store, embedder,
		[]ingest.Passage{passage("faq", 0, access.Public, "text")}, log.NewNop())

	require.ErrorIs(t, err, embedErr)
	assert.Empty(t, store.Records(), "nothing may be persisted after an embed failure")
}

func TestBuild_ReplaceFailure(t *testing.T) {
	store := testutil.NewMemStore()
	store.ReplaceErr = errors.New("connection reset")
	embedder := testutil.NewMockEmbedder(testDim)

	_, err := index.Build(context.Background(), store, embedder,
		[]ingest.Passage{passage("faq", 0, access.Public, "text")}, log.NewNop())

	require.ErrorContains(t, err, "persisting index")
}

func TestBuild_ReplacesPreviousIndex(t *testing.T) {
	store := testutil.NewMemStore()
	embedder := testutil.NewMockEmbedder(testDim)

	buildIndex(t, store, embedder, []ingest.Passage{
		passage("old", 0, access.Public, "stale content"),
		passage("old", 1, access.Public, "more stale content"),
	})
	ix := buildIndex(t, store, embedder, []ingest.Passage{
		passage("new", 0, access.Public, "fresh content"),
	})

	assert.EqualValues(t, 1, ix.Len())
	records := store.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "new", records[0].Passage.SourceID)
}

func TestOpen_NotFound(t *testing.T) {
	store := testutil.NewMemStore()

	_, err := index.Open(context.Background(), store, log.NewNop())

	require.ErrorIs(t, err, index.ErrNotFound)
}

func TestOpen_ExistingIndex(t *testing.T) {
	store := testutil.NewMemStore()
	embedder := testutil.NewMockEmbedder(testDim)
	buildIndex(t, store, embedder, []ingest.Passage{
		passage("faq", 0, access.Public, "how to reset a password"),
		passage("faq", 1, access.Public, "how to contact support"),
	})

	ix, err := index.Open(context.Background(), store, log.NewNop())

	require.NoError(t, err)
	assert.EqualValues(t, 2, ix.Len())
}

func TestSearch_InvalidK(t *testing.T) {
	store := testutil.NewMemStore()
	embedder := testutil.NewMockEmbedder(testDim)
	ix := buildIndex(t, store, embedder, []ingest.Passage{
		passage("faq", 0, access.Public, "text"),
	})

	_, err := ix.Search(context.Background(), unitVec(0), 0, access.Public)

	require.ErrorContains(t, err, "k must be positive")
}

func TestSearch_FiltersByAccessLevel(t *testing.T) {
	store := testutil.NewMemStore()
	embedder := testutil.NewMockEmbedder(testDim)
	// All passages embed identically so ranking cannot mask the filter.
	for _, text := range []string{"public info", "staff info", "hr info", "manager info"} {
		embedder.SetVector(text, unitVec(0))
	}
	ix := buildIndex(t, store, embedder, []ingest.Passage{
		passage("a", 0, 0, "public info"),
		passage("b", 0, 1, "staff info"),
		passage("c", 0, 2, "hr info"),
		passage("d", 0, 3, "manager info"),
	})

	tests := []struct {
		maxLevel access.Level
		want     []string
	}{
		{0, []string{"a"}},
		{1, []string{"a", "b"}},
		{2, []string{"a", "b", "c"}},
		{3, []string{"a", "b", "c", "d"}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("level_%d", tt.maxLevel), func(t *testing.T) {
			got, err := ix.Search(context.Background(), unitVec(0), 10, tt.maxLevel)
			require.NoError(t, err)

			ids := make([]string, len(got))
			for i, p := range got {
				ids[i] = p.SourceID
				assert.LessOrEqual(t, p.AccessLevel, tt.maxLevel)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestSearch_OrdersBySimilarityThenSourceSeq(t *testing.T) {
	store := testutil.NewMemStore()
	embedder := testutil.NewMockEmbedder(testDim)
	embedder.SetVector("exact match", unitVec(0))
	embedder.SetVector("close match", []float32{0.8, 0.6, 0, 0, 0, 0, 0, 0})
	// Two passages with identical vectors tie on similarity and must
	// come back in (sourceID, seq) order.
	embedder.SetVector("tied one", unitVec(1))
	embedder.SetVector("tied two", unitVec(1))

	ix := buildIndex(t, store, embedder, []ingest.Passage{
		passage("zeta", 0, access.Public, "tied two"),
		passage("alpha", 3, access.Public, "close match"),
		passage("alpha", 1, access.Public, "tied one"),
		passage("alpha", 0, access.Public, "exact match"),
	})

	scored, err := ix.SearchScored(context.Background(), unitVec(0), 10, access.Public)
	require.NoError(t, err)
	require.Len(t, scored, 4)

	assert.Equal(t, "exact match", scored[0].Passage.Text)
	assert.InDelta(t, 1.0, scored[0].Similarity, 1e-6)
	assert.Equal(t, "close match", scored[1].Passage.Text)
	assert.InDelta(t, 0.8, scored[1].Similarity, 1e-6)
	// The tied pair: alpha#1 before zeta#0.
	assert.Equal(t, "tied one", scored[2].Passage.Text)
	assert.Equal(t, "tied two", scored[3].Passage.Text)
}

func TestSearch_LimitsToK(t *testing.T) {
	store := testutil.NewMemStore()
	embedder := testutil.NewMockEmbedder(testDim)
	var passages []ingest.Passage
	for i := range 10 {
		passages = append(passages, passage("doc", i, access.Public, fmt.Sprintf("passage %d", i)))
	}
	ix := buildIndex(t, store, embedder, passages)

	got, err := ix.Search(context.Background(), unitVec(0), 3, access.Public)

	require.NoError(t, err)
	assert.Len(t, got, 3)
}

// TestSearch_AccessInvariantRandomized checks two properties over random
// corpora: no result ever exceeds the requested level, and raising the
// level only ever adds to the result set.
func TestSearch_AccessInvariantRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := range 20 {
		store := testutil.NewMemStore()
		embedder := testutil.NewMockEmbedder(testDim)

		n := 5 + rng.Intn(25)
		passages := make([]ingest.Passage, n)
		for i := range passages {
			text := fmt.Sprintf("trial %d passage %d", trial, i)
			passages[i] = passage(fmt.Sprintf("doc%d", rng.Intn(6)), i, access.Level(rng.Intn(4)), text)
			embedder.SetVector(text, randomVec(rng))
		}
		ix := buildIndex(t, store, embedder, passages)

		query := randomVec(rng)
		var prev map[string]bool
		for level := access.Level(0); level <= 3; level++ {
			got, err := ix.Search(context.Background(), query, n, level)
			require.NoError(t, err)

			current := make(map[string]bool, len(got))
			for _, p := range got {
				require.LessOrEqual(t, p.AccessLevel, level,
					"trial %d: passage above level %d leaked", trial, level)
				current[fmt.Sprintf("%s#%d", p.SourceID, p.Seq)] = true
			}
			for key := range prev {
				require.True(t, current[key],
					"trial %d: raising the level dropped %s", trial, key)
			}
			prev = current
		}
	}
}

func TestHandle_EmptyUnavailable(t *testing.T) {
	h := index.NewHandle(nil)

	assert.False(t, h.Ready())
	_, ok := h.Load()
	assert.False(t, ok)

	_, err := h.Search(context.Background(), unitVec(0), 5, access.Public)
	require.ErrorIs(t, err, index.ErrUnavailable)
}

func TestHandle_SwapServesNewIndex(t *testing.T) {
	store := testutil.NewMemStore()
	embedder := testutil.NewMockEmbedder(testDim)
	embedder.SetVector("original", unitVec(0))
	embedder.SetVector("rebuilt", unitVec(0))

	first := buildIndex(t, store, embedder, []ingest.Passage{
		passage("v1", 0, access.Public, "original"),
	})
	h := index.NewHandle(first)
	require.True(t, h.Ready())

	got, err := h.Search(context.Background(), unitVec(0), 5, access.Public)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "v1", got[0].SourceID)

	second := buildIndex(t, store, embedder, []ingest.Passage{
		passage("v2", 0, access.Public, "rebuilt"),
	})
	old := h.Swap(second)
	assert.Same(t, first, old)

	got, err = h.Search(context.Background(), unitVec(0), 5, access.Public)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "v2", got[0].SourceID)
}

// unitVec returns a basis vector with 1 at position i.
func unitVec(i int) []float32 {
	vec := make([]float32, testDim)
	vec[i] = 1
	return vec
}

// randomVec returns a non-zero random vector.
func randomVec(rng *rand.Rand) []float32 {
	vec := make([]float32, testDim)
	for i := range vec {
		vec[i] = rng.Float32()*2 - 1
	}
	vec[0] += 1.5 // keep it away from the zero vector
	return vec
}
