package answer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai4ai/helpdesk/internal/answer"
	"github.com/ai4ai/helpdesk/internal/index"
	"github.com/ai4ai/helpdesk/internal/ingest"
	"github.com/ai4ai/helpdesk/internal/log"
	"github.com/ai4ai/helpdesk/internal/retrieve"
	"github.com/ai4ai/helpdesk/internal/testutil"
)

func newFactory(t *testing.T) (*answer.Factory, *index.Handle, *testutil.MockGenerator, *testutil.MockEmbedder) {
	t.Helper()
	embedder := testutil.NewMockEmbedder(testDim)
	generator := testutil.NewMockGenerator("fallback answer", 8)
	handle := index.NewHandle(nil)
	retriever := retrieve.New(embedder, handle, 5, log.NewNop())
	synth := answer.NewSynthesizer(testCatalog(t), retriever, generator, answer.Config{}, log.NewNop())
	return answer.NewFactory(synth, handle, log.NewNop()), handle, generator, embedder
}

func TestForRole_DisabledUntilIndexReady(t *testing.T) {
	factory, handle, generator, embedder := newFactory(t)

	p := factory.ForRole("staff")
	text, event := drain(t, p.Answer(context.Background(), "question"))

	assert.Equal(t, answer.SystemError, event.Classification)
	assert.NotEmpty(t, text)
	assert.Zero(t, generator.CallCount())
	assert.Zero(t, embedder.CallCount())

	// Once an index is installed the same factory serves live pipelines.
	ix, err := index.Build(context.Background(), testutil.NewMemStore(), embedder,
		[]ingest.Passage{{SourceID: "faq", AccessLevel: 0, Seq: 0, Text: "office hours are nine to five"}},
		log.NewNop())
	require.NoError(t, err)
	handle.Swap(ix)

	generator.AddResponse("office hours", "Nine to five.")
	_, event = drain(t, factory.ForRole("staff").Answer(context.Background(), "when is the office open"))
	assert.Equal(t, answer.Answered, event.Classification)
	assert.Equal(t, "Nine to five.", event.FinalText)
}

func TestForRole_CachesKnownRoles(t *testing.T) {
	factory, handle, _, embedder := newFactory(t)
	ix, err := index.Build(context.Background(), testutil.NewMemStore(), embedder,
		[]ingest.Passage{{SourceID: "faq", AccessLevel: 0, Seq: 0, Text: "text"}}, log.NewNop())
	require.NoError(t, err)
	handle.Swap(ix)

	assert.Same(t, factory.ForRole("hr"), factory.ForRole("hr"))
	assert.NotSame(t, factory.ForRole("hr"), factory.ForRole("staff"))
}

func TestForRole_UnknownRoleAnswersInvalidRole(t *testing.T) {
	factory, handle, generator, embedder := newFactory(t)
	ix, err := index.Build(context.Background(), testutil.NewMemStore(), embedder,
		[]ingest.Passage{{SourceID: "faq", AccessLevel: 0, Seq: 0, Text: "text"}}, log.NewNop())
	require.NoError(t, err)
	handle.Swap(ix)
	embedCallsAfterBuild := embedder.CallCount()

	p := factory.ForRole("superuser")
	_, event := drain(t, p.Answer(context.Background(), "question"))

	assert.Equal(t, answer.InvalidRole, event.Classification)
	assert.Equal(t, "superuser", event.Role)
	assert.Zero(t, generator.CallCount())
	assert.Equal(t, embedCallsAfterBuild, embedder.CallCount())
}

func TestPipeline_RoleBindingIsImmutable(t *testing.T) {
	factory, handle, _, embedder := newFactory(t)
	ix, err := index.Build(context.Background(), testutil.NewMemStore(), embedder,
		[]ingest.Passage{{SourceID: "faq", AccessLevel: 0, Seq: 0, Text: "text"}}, log.NewNop())
	require.NoError(t, err)
	handle.Swap(ix)

	staff := factory.ForRole("staff")
	hr := factory.ForRole("hr")

	assert.Equal(t, "staff", staff.Role())
	assert.Equal(t, "hr", hr.Role())
}
