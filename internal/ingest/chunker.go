package ingest

import (
	"fmt"
	"strings"
)

// Default chunking parameters. Sizes are in runes, not bytes, so multi-byte
// text never gets cut mid-character.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// separators tried in order when looking for a natural cut point.
// Paragraph break first, then line break, then sentence enders.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", " "}

// Chunker splits tagged documents into overlapping passages.
//
// Splitting is deterministic: the same Document always yields the same
// ordered sequence of passages. Every passage inherits SourceID and
// AccessLevel unchanged from its parent; this propagation is the sole
// carrier of the access-control guarantee downstream.
type Chunker struct {
	size    int // maximum passage length in runes
	overlap int // runes shared between consecutive passages
}

// NewChunker creates a Chunker. overlap must be smaller than size.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, size), got overlap=%d size=%d", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split returns the ordered passages of a document.
// Documents whose text is empty after trimming yield no passages.
func (c *Chunker) Split(doc Document) []Passage {
	runes := []rune(strings.TrimSpace(doc.Text))
	if len(runes) == 0 {
		return nil
	}

	var passages []Passage
	start := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			passages = c.append(passages, doc, runes[start:])
			break
		}

		cut := boundaryCut(runes[start:end])
		passages = c.append(passages, doc, runes[start:start+cut])

		next := start + cut - c.overlap
		if next <= start {
			// Guarantee forward progress when the chunk is smaller
			// than the overlap.
			next = start + cut
		}
		start = next
	}

	return passages
}

// append adds a passage for the given slice unless it trims to nothing.
func (c *Chunker) append(passages []Passage, doc Document, chunk []rune) []Passage {
	text := strings.TrimSpace(string(chunk))
	if text == "" {
		return passages
	}
	return append(passages, Passage{
		SourceID:    doc.SourceID,
		AccessLevel: doc.AccessLevel,
		Seq:         len(passages),
		Text:        text,
	})
}

// boundaryCut returns the cut length (in runes) for a full-size window,
// preferring the latest natural boundary in the second half of the window.
// Falls back to a hard cut at the window end.
func boundaryCut(window []rune) int {
	s := string(window)
	min := len(string(window[:len(window)/2]))

	for _, sep := range separators {
		idx := strings.LastIndex(s, sep)
		if idx >= min {
			// Cut after the separator so it stays with the left chunk.
			return len([]rune(s[:idx+len(sep)]))
		}
	}
	return len(window)
}
