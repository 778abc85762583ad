// Package testutil provides shared test doubles and infrastructure for
// the helpdesk project, following the pattern of net/http/httptest.
package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// MockEmbedder implements ai.Embedder with deterministic vectors.
//
// By default a vector is derived from the content via SHA-256, so equal
// texts always embed identically. Explicit vectors can be registered with
// SetVector for precise cosine-similarity control in retrieval tests.
//
// Thread-safe for concurrent use.
type MockEmbedder struct {
	mu        sync.Mutex
	vectors   map[string][]float32
	dim       int
	embedErr  error
	callCount int
}

// NewMockEmbedder creates a mock embedder producing vectors of the given
// dimension.
func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{
		vectors: make(map[string][]float32),
		dim:     dim,
	}
}

// SetVector registers an explicit vector for a content string.
func (e *MockEmbedder) SetVector(content string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[content] = vec
}

// FailWith makes every subsequent Embed call return err (nil to reset).
func (e *MockEmbedder) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.embedErr = err
}

// CallCount returns how many times Embed was invoked.
func (e *MockEmbedder) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.callCount
}

// Name implements ai.Embedder.
func (*MockEmbedder) Name() string {
	return "mock-embedder"
}

// Register implements ai.Embedder. No-op for testing.
func (*MockEmbedder) Register(api.Registry) {}

// Embed implements ai.Embedder.
func (e *MockEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callCount++

	if e.embedErr != nil {
		return nil, e.embedErr
	}

	embeddings := make([]*ai.Embedding, len(req.Input))
	for i, doc := range req.Input {
		text := documentText(doc)
		vec, ok := e.vectors[text]
		if !ok {
			vec = hashVector(text, e.dim)
		}
		embeddings[i] = &ai.Embedding{Embedding: vec}
	}

	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

// documentText concatenates the text parts of a document.
func documentText(doc *ai.Document) string {
	var text string
	for _, part := range doc.Content {
		text += part.Text
	}
	return text
}

// hashVector derives a unit-length vector from content via SHA-256.
func hashVector(text string, dim int) []float32 {
	sum := sha256.Sum256([]byte(text))

	vec := make([]float32, dim)
	var norm float64
	for i := range vec {
		// Cycle through the digest, mixing in the position.
		b := sum[(i*4)%len(sum)]
		bits := binary.BigEndian.Uint32([]byte{b, sum[(i*4+1)%len(sum)], sum[(i*4+2)%len(sum)], byte(i)})
		v := float32(bits%2000)/1000 - 1 // [-1, 1)
		vec[i] = v
		norm += float64(v) * float64(v)
	}

	// Normalize so cosine similarity equals the dot product.
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}
