package ingest

import (
	"path/filepath"
	"strings"

	"github.com/ai4ai/helpdesk/internal/access"
)

// Tagger assigns an access tag to a document from its file name.
//
// The naming convention is <name>_<tag>.<ext>: the trailing
// underscore-delimited segment of the base name, matched case-insensitively
// against the role catalog (including the public alias), is the tag.
// Files without a recognized tag receive the configured default tag.
//
// Tagging is a pure function of the file name; it performs no I/O.
type Tagger struct {
	catalog    *access.Catalog
	defaultTag string
}

// NewTagger creates a Tagger. defaultTag must resolve in the catalog;
// it is a deliberate policy value, never inferred from the corpus.
func NewTagger(catalog *access.Catalog, defaultTag string) (*Tagger, error) {
	defaultTag = strings.ToLower(strings.TrimSpace(defaultTag))
	if _, err := catalog.Resolve(defaultTag); err != nil {
		return nil, err
	}
	return &Tagger{catalog: catalog, defaultTag: defaultTag}, nil
}

// Tag returns the access tag for a file name.
func (t *Tagger) Tag(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	idx := strings.LastIndex(base, "_")
	if idx < 0 || idx == len(base)-1 {
		return t.defaultTag
	}

	tag := strings.ToLower(base[idx+1:])
	if !t.catalog.Contains(tag) {
		return t.defaultTag
	}
	return tag
}

// DefaultTag returns the configured fallback tag.
func (t *Tagger) DefaultTag() string {
	return t.defaultTag
}
