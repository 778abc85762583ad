package index

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/ai4ai/helpdesk/internal/access"
	"github.com/ai4ai/helpdesk/internal/ingest"
)

// ErrUnavailable indicates no Ready index is installed in the Handle.
var ErrUnavailable = errors.New("index unavailable")

// Handle is the shared, swappable reference to the current Index.
//
// A rebuild constructs a new Index and installs it with Swap; readers
// that already loaded the old Index finish against it, and no reader
// ever observes a half-built state. The zero Handle is empty and usable.
type Handle struct {
	current atomic.Pointer[Index]
}

// NewHandle returns a Handle, optionally pre-loaded with an index.
func NewHandle(ix *Index) *Handle {
	h := &Handle{}
	if ix != nil {
		h.current.Store(ix)
	}
	return h
}

// Swap atomically installs a new index and returns the previous one
// (nil if the handle was empty).
func (h *Handle) Swap(ix *Index) *Index {
	return h.current.Swap(ix)
}

// Load returns the current index, or false when none is installed.
func (h *Handle) Load() (*Index, bool) {
	ix := h.current.Load()
	return ix, ix != nil
}

// Ready reports whether an index is installed.
func (h *Handle) Ready() bool {
	return h.current.Load() != nil
}

// Search delegates to the current index. Returns ErrUnavailable when no
// index is installed, which callers surface as a system error rather
// than an empty result.
func (h *Handle) Search(ctx context.Context, queryVec []float32, k int, maxLevel access.Level) ([]ingest.Passage, error) {
	ix, ok := h.Load()
	if !ok {
		return nil, ErrUnavailable
	}
	return ix.Search(ctx, queryVec, k, maxLevel)
}
