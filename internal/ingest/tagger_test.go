package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai4ai/helpdesk/internal/access"
)

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

func TestNewTagger(t *testing.T) {
	catalog := testCatalog(t)

	_, err := NewTagger(catalog, "staff")
	require.NoError(t, err)

	// Default tag outside the catalog is a configuration error.
	_, err = NewTagger(catalog, "contractor")
	require.Error(t, err)
}

func TestTaggerTag(t *testing.T) {
	catalog := testCatalog(t)
	tagger, err := NewTagger(catalog, "staff")
	require.NoError(t, err)

	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"public tag", "holiday_list_public.txt", "public"},
		{"hr tag", "salary_bands_hr.txt", "hr"},
		{"manager tag", "q3_strategy_manager.txt", "manager"},
		{"uppercase tag", "onboarding_STAFF.txt", "staff"},
		{"full path", "/corpus/benefits_hr.md", "hr"},
		{"untagged falls back to default", "random_notes.txt", "staff"},
		{"no underscore", "readme.txt", "staff"},
		{"trailing underscore", "notes_.txt", "staff"},
		{"tag-like segment not in catalog", "report_final.txt", "staff"},
		{"underscore only in extension side", "report.v2_hr.txt", "hr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tagger.Tag(tt.filename))
		})
	}
}

func TestTaggerIsPure(t *testing.T) {
	catalog := testCatalog(t)
	tagger, err := NewTagger(catalog, "staff")
	require.NoError(t, err)

	// Same input, same output, every time.
	for range 5 {
		assert.Equal(t, "hr", tagger.Tag("policy_hr.txt"))
	}
}
