package testutil

import (
	"context"
	"strings"
	"sync"
)

// MockGenerator provides deterministic generation-backend responses.
// It matches the prompt against registered patterns (case-insensitive
// substring, first match wins) and streams the response in fixed-size
// chunks through the callback before returning the full text.
//
// Thread-safe for concurrent use.
type MockGenerator struct {
	mu        sync.Mutex
	rules     []generatorRule
	fallback  string
	genErr    error
	chunkSize int
	calls     []string
}

type generatorRule struct {
	pattern  string
	response string
}

// NewMockGenerator creates a mock generator with the given fallback
// response, streamed in chunks of chunkSize runes.
func NewMockGenerator(fallback string, chunkSize int) *MockGenerator {
	if chunkSize <= 0 {
		chunkSize = 8
	}
	return &MockGenerator{fallback: fallback, chunkSize: chunkSize}
}

// AddResponse registers a pattern-response pair.
func (m *MockGenerator) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, generatorRule{
		pattern:  strings.ToLower(pattern),
		response: response,
	})
}

// FailWith makes every subsequent Generate call return err before
// streaming anything (nil to reset).
func (m *MockGenerator) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.genErr = err
}

// Calls returns a copy of the prompts passed to Generate.
func (m *MockGenerator) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]string, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// CallCount returns how many times Generate was invoked.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Generate implements the answer.Generator contract.
func (m *MockGenerator) Generate(ctx context.Context, prompt string, onChunk func(context.Context, string) error) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, prompt)

	if err := m.genErr; err != nil {
		m.mu.Unlock()
		return "", err
	}

	response := m.fallback
	lower := strings.ToLower(prompt)
	for _, rule := range m.rules {
		if strings.Contains(lower, rule.pattern) {
			response = rule.response
			break
		}
	}
	chunkSize := m.chunkSize
	m.mu.Unlock()

	if onChunk != nil {
		runes := []rune(response)
		for start := 0; start < len(runes); start += chunkSize {
			end := min(start+chunkSize, len(runes))
			if err := onChunk(ctx, string(runes[start:end])); err != nil {
				return "", err
			}
		}
	}

	return response, nil
}
