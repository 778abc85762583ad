package answer

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/ai4ai/helpdesk/internal/index"
)

const indexUnavailableText = "The knowledge base has not been loaded yet. Please try again later."

// Pipeline is an immutable handle binding one role to the synthesizer.
// A role change always means a new Pipeline, never a mutation.
type Pipeline struct {
	role     string
	synth    *Synthesizer
	disabled bool
}

// Role returns the bound requester role.
func (p *Pipeline) Role() string {
	return p.role
}

// Answer streams the response to one question under the bound role.
// A disabled pipeline emits a readable error and a SystemError event
// without touching retrieval or generation.
func (p *Pipeline) Answer(ctx context.Context, question string) <-chan Delta {
	if p.disabled {
		out := make(chan Delta)
		go func() {
			defer close(out)
			event := &Event{
				Question:       question,
				Role:           p.role,
				FinalText:      indexUnavailableText,
				Classification: SystemError,
			}
			select {
			case out <- Delta{Text: event.FinalText}:
			case <-ctx.Done():
				return
			}
			select {
			case out <- Delta{Event: event}:
			case <-ctx.Done():
			}
		}()
		return out
	}
	return p.synth.Answer(ctx, question, p.role)
}

// Factory builds per-role pipelines. Pipelines for known roles are
// cached; unknown roles get a fresh handle whose first Answer call
// classifies InvalidRole. While the index handle is not ready every
// returned pipeline is disabled, and nothing is cached so recovery is
// immediate after a successful build.
type Factory struct {
	synth  *Synthesizer
	handle *index.Handle
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]*Pipeline
}

// NewFactory wires a Factory over the shared index handle.
func NewFactory(synth *Synthesizer, handle *index.Handle, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		synth:  synth,
		handle: handle,
		logger: logger,
		cache:  make(map[string]*Pipeline),
	}
}

// ForRole returns the pipeline bound to role. Never fails: role
// validation is deferred to Answer so the caller always has a stream to
// consume.
func (f *Factory) ForRole(role string) *Pipeline {
	role = strings.TrimSpace(role)

	if !f.handle.Ready() {
		f.logger.Warn("pipeline requested before index is ready", "role", role)
		return &Pipeline{role: role, disabled: true}
	}

	if !f.synth.catalog.Contains(role) {
		return &Pipeline{role: role, synth: f.synth}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.cache[role]; ok {
		return p
	}
	p := &Pipeline{role: role, synth: f.synth}
	f.cache[role] = p
	return p
}
