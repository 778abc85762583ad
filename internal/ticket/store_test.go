package ticket_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai4ai/helpdesk/internal/database"
	"github.com/ai4ai/helpdesk/internal/ticket"
)

func newStore(t *testing.T) *ticket.Store {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "support.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))
	return ticket.NewStore(db)
}

func TestCreateAndList(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "staff", "my laptop is broken", "assistant could not help", "IT", "IT")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, ticket.StatusOpen, created.Status)
	assert.False(t, created.CreatedAt.IsZero())

	listed, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)
	assert.Equal(t, "staff", listed[0].Role)
	assert.Equal(t, "my laptop is broken", listed[0].Question)
	assert.Equal(t, "IT", listed[0].SelectedTeam)
}

func TestCreate_SelectedTeamDefaultsToSuggestion(t *testing.T) {
	store := newStore(t)

	created, err := store.Create(context.Background(), "customer", "billing question", "", "Customer Support", "")
	require.NoError(t, err)

	assert.Equal(t, "Customer Support", created.SuggestedTeam)
	assert.Equal(t, "Customer Support", created.SelectedTeam)
}

func TestListByTeam(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "staff", "printer jam", "", "IT", "IT")
	require.NoError(t, err)
	_, err = store.Create(ctx, "staff", "pto balance", "", "HR", "HR")
	require.NoError(t, err)

	itTickets, err := store.ListByTeam(ctx, "IT")
	require.NoError(t, err)
	require.Len(t, itTickets, 1)
	assert.Equal(t, "printer jam", itTickets[0].Question)

	none, err := store.ListByTeam(ctx, "Legal")
	require.NoError(t, err)
	assert.Empty(t, none)
}
