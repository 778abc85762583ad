// Package answer assembles grounding prompts, streams generated answers,
// and classifies the outcome of every question.
package answer

// Classification is the terminal outcome of one question.
type Classification string

const (
	// Answered means the model produced content grounded in the
	// retrieved context.
	Answered Classification = "answered"

	// Unanswerable means the final text matched a refusal phrase, so
	// the caller should offer escalation.
	Unanswerable Classification = "unanswerable"

	// SystemError means retrieval or generation failed; the text shown
	// to the user is a readable error message, never a stack trace.
	SystemError Classification = "systemError"

	// InvalidRole means the requester role is not in the role catalog.
	// No retrieval or generation happened.
	InvalidRole Classification = "invalidRole"
)

// Event is the outcome of one question against one pipeline. It is
// emitted once, on the terminal Delta of the stream, and never persisted
// here; feedback and ticket storage are the caller's concern.
type Event struct {
	Question       string
	Role           string
	RetrievedCount int
	FinalText      string
	Classification Classification
}

// Delta is one element of an answer stream. Content deltas carry Text;
// the final delta carries Event instead and closes the stream.
type Delta struct {
	Text  string
	Event *Event
}
