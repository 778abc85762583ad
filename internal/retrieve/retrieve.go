// Package retrieve turns a question into the context block handed to
// answer synthesis: it embeds the question, runs a role-filtered
// similarity search, and joins the accessible passages.
package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/ai4ai/helpdesk/internal/access"
	"github.com/ai4ai/helpdesk/internal/ingest"
)

// NoContextSentinel is the context text used when no passage is both
// relevant and accessible. The synthesis prompt instructs the model to
// refuse when it sees only this text.
const NoContextSentinel = "No relevant documents were found or accessible for your role."

// DefaultTopK is the number of passages retrieved per question.
const DefaultTopK = 5

// Searcher is the filtered nearest-neighbor search the retriever needs.
// Both index.Index and index.Handle satisfy it.
type Searcher interface {
	Search(ctx context.Context, queryVec []float32, k int, maxLevel access.Level) ([]ingest.Passage, error)
}

// Context is the assembled input for answer synthesis.
type Context struct {
	// Text is the joined passage texts, or NoContextSentinel when
	// Passages is empty.
	Text     string
	Passages []ingest.Passage
}

// Empty reports whether no accessible passage was found.
func (c Context) Empty() bool {
	return len(c.Passages) == 0
}

// Retriever embeds questions and searches the index on behalf of a
// requester level. Safe for concurrent use.
type Retriever struct {
	embedder ai.Embedder
	searcher Searcher
	topK     int
	logger   *slog.Logger
}

// New creates a Retriever. topK <= 0 selects DefaultTopK.
func New(embedder ai.Embedder, searcher Searcher, topK int, logger *slog.Logger) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		searcher: searcher,
		topK:     topK,
		logger:   logger,
	}
}

// Retrieve returns the context for a question at the given access level.
// An empty result is not an error: it yields the sentinel context, which
// downstream synthesis turns into a refusal. Errors are reserved for
// embedding or search failures.
func (r *Retriever) Retrieve(ctx context.Context, question string, maxLevel access.Level) (Context, error) {
	resp, err := r.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(question, nil)},
	})
	if err != nil {
		return Context{}, fmt.Errorf("embedding question: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return Context{}, fmt.Errorf("embedding question: empty embedding returned")
	}

	passages, err := r.searcher.Search(ctx, resp.Embeddings[0].Embedding, r.topK, maxLevel)
	if err != nil {
		return Context{}, fmt.Errorf("searching passages: %w", err)
	}

	if len(passages) == 0 {
		r.logger.Debug("no accessible passages", "max_level", maxLevel)
		return Context{Text: NoContextSentinel}, nil
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}

	r.logger.Debug("retrieved context",
		"passages", len(passages),
		"max_level", maxLevel)

	return Context{
		Text:     strings.Join(texts, "\n\n"),
		Passages: passages,
	}, nil
}
