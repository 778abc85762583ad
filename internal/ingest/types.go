package ingest

import "github.com/ai4ai/helpdesk/internal/access"

// Document is a raw source file after tagging, before chunking.
type Document struct {
	SourceID    string       // stable per file (the file name)
	AccessTag   string       // role name or public alias resolved at ingestion
	AccessLevel access.Level // numeric level of AccessTag
	Text        string       // raw text content
}

// Passage is a contiguous slice of a Document's text. Passages are created
// once at index-build time and are immutable; every passage carries its
// parent Document's source identity and access level.
type Passage struct {
	SourceID    string
	AccessLevel access.Level
	Seq         int // position within the parent Document
	Text        string
}
