package answer_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ai4ai/helpdesk/internal/access"
	"github.com/ai4ai/helpdesk/internal/answer"
	"github.com/ai4ai/helpdesk/internal/index"
	"github.com/ai4ai/helpdesk/internal/ingest"
	"github.com/ai4ai/helpdesk/internal/log"
	"github.com/ai4ai/helpdesk/internal/retrieve"
	"github.com/ai4ai/helpdesk/internal/testutil"
)

const testDim = 8

func testCatalog(t *testing.T) *access.Catalog {
	t.Helper()
	catalog, err := access.NewCatalog(map[string]int{
		"customer": 0,
		"staff":    1,
		"hr":       2,
		"manager":  3,
	}, "public")
	require.NoError(t, err)
	return catalog
}

// fixture wires a synthesizer over an in-memory index.
type fixture struct {
	embedder  *testutil.MockEmbedder
	generator *testutil.MockGenerator
	synth     *answer.Synthesizer
}

func newFixture(t *testing.T, passages []ingest.Passage) *fixture {
	t.Helper()
	embedder := testutil.NewMockEmbedder(testDim)
	generator := testutil.NewMockGenerator("I do not know.", 8)

	var searcher retrieve.Searcher
	if len(passages) > 0 {
		ix, err := index.Build(context.Background(), testutil.NewMemStore(), embedder, passages, log.NewNop())
		require.NoError(t, err)
		searcher = ix
	} else {
		ix, err := index.Build(context.Background(), testutil.NewMemStore(), embedder,
			[]ingest.Passage{{SourceID: "seed", AccessLevel: 3, Seq: 0, Text: "seed passage"}}, log.NewNop())
		require.NoError(t, err)
		searcher = ix
	}

	retriever := retrieve.New(embedder, searcher, 5, log.NewNop())
	synth := answer.NewSynthesizer(testCatalog(t), retriever, generator, answer.Config{}, log.NewNop())
	return &fixture{embedder: embedder, generator: generator, synth: synth}
}

// drain collects all deltas until the channel closes.
func drain(t *testing.T, ch <-chan Delta) (string, *answer.Event) {
	t.Helper()
	var b strings.Builder
	var event *answer.Event
	for delta := range ch {
		if delta.Event != nil {
			require.Nil(t, event, "terminal delta must be unique")
			event = delta.Event
			continue
		}
		b.WriteString(delta.Text)
	}
	require.NotNil(t, event, "stream must end with a terminal delta")
	return b.String(), event
}

type Delta = answer.Delta

func TestAnswer_InvalidRoleShortCircuits(t *testing.T) {
	f := newFixture(t, nil)

	text, event := drain(t, f.synth.Answer(context.Background(), "any question", "intern"))

	assert.Equal(t, answer.InvalidRole, event.Classification)
	assert.Contains(t, text, `"intern"`)
	assert.Equal(t, event.FinalText, text)
	assert.Zero(t, event.RetrievedCount)
	// No retrieval and no generation may happen for an unknown role.
	assert.Zero(t, f.embedder.CallCount()-indexBuildEmbeds, "question must not be embedded")
	assert.Zero(t, f.generator.CallCount())
}

// indexBuildEmbeds is the number of Embed calls consumed by building the
// single-passage fixture index.
const indexBuildEmbeds = 1

func TestAnswer_StreamsGroundedAnswer(t *testing.T) {
	f := newFixture(t, []ingest.Passage{
		{SourceID: "faq", AccessLevel: 0, Seq: 0, Text: "Resets happen in the settings page."},
	})
	f.generator.AddResponse("settings page", "Go to the settings page and click reset.")

	text, event := drain(t, f.synth.Answer(context.Background(), "how do I reset my password", "staff"))

	assert.Equal(t, answer.Answered, event.Classification)
	assert.Equal(t, "Go to the settings page and click reset.", event.FinalText)
	assert.Equal(t, event.FinalText, text)
	assert.Equal(t, 1, event.RetrievedCount)
	assert.Equal(t, "staff", event.Role)
	assert.Equal(t, 1, f.generator.CallCount())
}

func TestAnswer_PromptCarriesContextAndQuestion(t *testing.T) {
	f := newFixture(t, []ingest.Passage{
		{SourceID: "faq", AccessLevel: 0, Seq: 0, Text: "Office opens at nine."},
	})

	drain(t, f.synth.Answer(context.Background(), "when does the office open", "staff"))

	calls := f.generator.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "Office opens at nine.")
	assert.Contains(t, calls[0], "when does the office open")
	assert.Contains(t, calls[0], answer.DefaultRefusalReply)
}

func TestAnswer_NoAccessibleContextYieldsUnanswerable(t *testing.T) {
	// The only passage sits above the requester's level, so retrieval
	// produces the sentinel and the model is instructed to refuse.
	f := newFixture(t, []ingest.Passage{
		{SourceID: "payroll", AccessLevel: 2, Seq: 0, Text: "salary band details"},
	})
	f.generator.AddResponse(strings.ToLower(retrieve.NoContextSentinel), answer.DefaultRefusalReply)

	text, event := drain(t, f.synth.Answer(context.Background(), "what are the salary bands", "customer"))

	assert.Equal(t, answer.Unanswerable, event.Classification)
	assert.Contains(t, strings.ToLower(text), "kindly open a ticket")
	assert.Zero(t, event.RetrievedCount)
}

func TestAnswer_GenerationFaultYieldsSystemError(t *testing.T) {
	f := newFixture(t, nil)
	f.generator.FailWith(errors.New("backend exploded"))

	text, event := drain(t, f.synth.Answer(context.Background(), "question", "manager"))

	assert.Equal(t, answer.SystemError, event.Classification)
	assert.NotContains(t, text, "exploded", "raw backend errors must not leak")
	assert.NotEmpty(t, text)
}

func TestAnswer_RetrievalFaultYieldsSystemError(t *testing.T) {
	f := newFixture(t, nil)
	f.embedder.FailWith(errors.New("embedding backend down"))

	text, event := drain(t, f.synth.Answer(context.Background(), "question", "staff"))

	assert.Equal(t, answer.SystemError, event.Classification)
	assert.NotContains(t, text, "embedding backend down")
	assert.Zero(t, f.generator.CallCount(), "generation must not run after a retrieval fault")
}

func TestAnswer_StripsReasoningFromStreamAndFinalText(t *testing.T) {
	f := newFixture(t, nil)
	f.generator.AddResponse("seed passage", "<think>secret chain of thought</think>The visible answer.")

	text, event := drain(t, f.synth.Answer(context.Background(), "seed passage", "manager"))

	assert.Equal(t, "The visible answer.", event.FinalText)
	assert.NotContains(t, text, "secret", "reasoning must not reach the stream")
	assert.Contains(t, text, "The visible answer.")
	assert.Equal(t, answer.Answered, event.Classification)
}

func TestAnswer_CancellationStopsStream(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t, nil)
	f.generator.AddResponse("seed passage", strings.Repeat("long answer text ", 50))

	ctx, cancel := context.WithCancel(context.Background())
	ch := f.synth.Answer(ctx, "seed passage", "manager")

	// Take one delta, then abandon the stream.
	first, ok := <-ch
	require.True(t, ok)
	require.NotEmpty(t, first.Text)
	cancel()

	// The producer must close the channel promptly instead of blocking
	// on further sends.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, open := <-ch:
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("stream did not close after cancellation")
		}
	}
}

// TestAnswer_EndToEndRoleSeparation is the leak scenario: a level 0
// requester asking about level 2 content must get a refusal, while the
// privileged requester gets the content.
func TestAnswer_EndToEndRoleSeparation(t *testing.T) {
	embedder := testutil.NewMockEmbedder(testDim)
	query := []float32{1, 0, 0, 0, 0, 0, 0, 0}
	embedder.SetVector("what are the salary bands", query)
	embedder.SetVector("salary bands: junior 40k, senior 80k", query)
	embedder.SetVector("public holiday list: jan 1, may 1", []float32{0, 1, 0, 0, 0, 0, 0, 0})

	ix, err := index.Build(context.Background(), testutil.NewMemStore(), embedder, []ingest.Passage{
		{SourceID: "holidays", AccessLevel: 0, Seq: 0, Text: "public holiday list: jan 1, may 1"},
		{SourceID: "payroll", AccessLevel: 2, Seq: 0, Text: "salary bands: junior 40k, senior 80k"},
	}, log.NewNop())
	require.NoError(t, err)

	generator := testutil.NewMockGenerator(answer.DefaultRefusalReply, 8)
	generator.AddResponse("junior 40k", "Salary bands are junior 40k and senior 80k.")

	retriever := retrieve.New(embedder, ix, 5, log.NewNop())
	synth := answer.NewSynthesizer(testCatalog(t), retriever, generator, answer.Config{}, log.NewNop())

	// Level 0 requester: refusal, no leaked salary content.
	text, event := drain(t, synth.Answer(context.Background(), "what are the salary bands", "customer"))
	assert.Equal(t, answer.Unanswerable, event.Classification)
	assert.NotContains(t, strings.ToLower(text), "40k")
	assert.Contains(t, strings.ToLower(text), "kindly open a ticket")

	// Level 2 requester: grounded salary content in the stream.
	text, event = drain(t, synth.Answer(context.Background(), "what are the salary bands", "hr"))
	assert.Equal(t, answer.Answered, event.Classification)
	assert.Contains(t, text, "junior 40k")
}
