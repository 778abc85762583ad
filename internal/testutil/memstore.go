package testutil

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/ai4ai/helpdesk/internal/index"
)

// MemStore is an in-memory index.Querier with real cosine-similarity
// ordering. It mirrors the SQL store's semantics — access filtering
// inside the search, descending similarity, (sourceId, seq) tie-break —
// so retrieval behavior can be tested without PostgreSQL.
//
// Thread-safe for concurrent use.
type MemStore struct {
	mu      sync.RWMutex
	records []index.Record

	// Optional fault injection.
	ReplaceErr error
	SearchErr  error
	CountErr   error
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// ReplaceAll implements index.Querier.
func (s *MemStore) ReplaceAll(_ context.Context, records []index.Record) error {
	if s.ReplaceErr != nil {
		return s.ReplaceErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make([]index.Record, len(records))
	copy(s.records, records)
	return nil
}

// Search implements index.Querier.
func (s *MemStore) Search(_ context.Context, params index.SearchParams) ([]index.SearchRow, error) {
	if s.SearchErr != nil {
		return nil, s.SearchErr
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := params.Query.Slice()

	var rows []index.SearchRow
	for _, rec := range s.records {
		if rec.Passage.AccessLevel > params.MaxLevel {
			continue
		}
		rows = append(rows, index.SearchRow{
			SourceID:    rec.Passage.SourceID,
			Seq:         int32(rec.Passage.Seq),
			Content:     rec.Passage.Text,
			AccessLevel: int32(rec.Passage.AccessLevel),
			Similarity:  cosine(query, rec.Embedding.Slice()),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Similarity != rows[j].Similarity {
			return rows[i].Similarity > rows[j].Similarity
		}
		if rows[i].SourceID != rows[j].SourceID {
			return rows[i].SourceID < rows[j].SourceID
		}
		return rows[i].Seq < rows[j].Seq
	})

	if int32(len(rows)) > params.Limit {
		rows = rows[:params.Limit]
	}
	return rows, nil
}

// Count implements index.Querier.
func (s *MemStore) Count(_ context.Context) (int64, error) {
	if s.CountErr != nil {
		return 0, s.CountErr
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// Records returns a copy of the stored records.
func (s *MemStore) Records() []index.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]index.Record, len(s.records))
	copy(cp, s.records)
	return cp
}

// cosine computes cosine similarity between two vectors.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
