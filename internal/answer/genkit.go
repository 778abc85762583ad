package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
)

// RetryConfig configures retry behavior for generation calls.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns sensible defaults for LLM API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryablePatterns groups error substrings by category, matched
// case-insensitively against err.Error().
//
// NOTE: string matching because Genkit and provider SDKs do not expose
// typed errors for transient failures. Re-evaluate if Genkit adds
// structured error types.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},      // rate limiting
	{"500", "502", "503", "504", "unavailable"},  // transient server errors
	{"connection reset", "timeout", "temporary"}, // network errors
}

func retryableError(err error) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	for _, group := range retryablePatterns {
		for _, sub := range group {
			if strings.Contains(lower, sub) {
				return true
			}
		}
	}
	return false
}

// GenkitGenerator implements Generator over a Genkit model with
// streaming, client-side rate limiting, and exponential-backoff retry.
// A retry only happens when the failed attempt streamed nothing, so the
// caller never sees duplicated chunks.
type GenkitGenerator struct {
	g         *genkit.Genkit
	modelName string
	limiter   *rate.Limiter
	retry     RetryConfig
	logger    *slog.Logger
}

// NewGenkitGenerator creates a generator for the named model.
func NewGenkitGenerator(g *genkit.Genkit, modelName string, retry RetryConfig, logger *slog.Logger) *GenkitGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenkitGenerator{
		g:         g,
		modelName: modelName,
		limiter:   rate.NewLimiter(10, 30),
		retry:     retry,
		logger:    logger,
	}
}

// Generate implements Generator.
func (gg *GenkitGenerator) Generate(ctx context.Context, prompt string, onChunk func(context.Context, string) error) (string, error) {
	var lastErr error
	delay := gg.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= gg.retry.MaxRetries; attempt++ {
		// Rate limit each attempt, not just the first.
		if err := gg.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}

		streamed := false
		response, err := genkit.Generate(ctx, gg.g,
			ai.WithModelName(gg.modelName),
			ai.WithPrompt(prompt),
			ai.WithStreaming(func(cbCtx context.Context, chunk *ai.ModelResponseChunk) error {
				text := chunk.Text()
				if text == "" {
					return nil
				}
				streamed = true
				if onChunk != nil {
					return onChunk(cbCtx, text)
				}
				return nil
			}),
		)
		if err == nil {
			gg.logger.Debug("generation complete",
				"attempts", attempt+1,
				"elapsed", time.Since(start))
			return response.Text(), nil
		}

		lastErr = err

		if !retryableError(err) {
			return "", fmt.Errorf("generate: %w", err)
		}
		if streamed {
			// Chunks already reached the caller; a retry would replay
			// them out of order.
			return "", fmt.Errorf("generate failed mid-stream: %w", err)
		}
		if attempt == gg.retry.MaxRetries {
			break
		}

		gg.logger.Debug("retrying generation",
			"attempt", attempt+1,
			"delay", delay,
			"error", err)
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, gg.retry.MaxInterval)
		}
	}

	return "", fmt.Errorf("generate after %d retries (elapsed: %v): %w",
		gg.retry.MaxRetries, time.Since(start), lastErr)
}
