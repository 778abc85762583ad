package answer

import "strings"

// stripReasoning removes a backend's internal-reasoning spans from the
// final text. Three tiers, because backends may or may not wrap their
// reasoning in delimiters and an empty answer must never reach the
// caller:
//
//  1. Drop everything up to and including the last closing delimiter.
//  2. If that leaves nothing, remove only delimiter-bounded spans.
//  3. If that still leaves nothing, keep the original output.
func stripReasoning(text, open, close string) string {
	if open == "" || close == "" {
		return strings.TrimSpace(text)
	}

	if idx := strings.LastIndex(text, close); idx >= 0 {
		if after := strings.TrimSpace(text[idx+len(close):]); after != "" {
			return after
		}
	}

	if spanned := strings.TrimSpace(removeSpans(text, open, close)); spanned != "" {
		return spanned
	}

	return strings.TrimSpace(text)
}

// removeSpans deletes every open...close span, keeping surrounding text.
// Unterminated spans are left in place.
func removeSpans(text, open, close string) string {
	var b strings.Builder
	for {
		start := strings.Index(text, open)
		if start < 0 {
			break
		}
		end := strings.Index(text[start+len(open):], close)
		if end < 0 {
			break
		}
		b.WriteString(text[:start])
		text = text[start+len(open)+end+len(close):]
	}
	b.WriteString(text)
	return b.String()
}

// reasoningFilter suppresses delimiter-bounded reasoning from a stream
// without buffering more than a partial delimiter. Chunks may split a
// delimiter anywhere, so the filter holds back the shortest suffix that
// could still begin one.
type reasoningFilter struct {
	open, close string
	inSpan      bool
	pending     string
}

func newReasoningFilter(open, close string) *reasoningFilter {
	return &reasoningFilter{open: open, close: close}
}

// feed consumes the next chunk and returns the text safe to emit now.
func (f *reasoningFilter) feed(chunk string) string {
	if f.open == "" || f.close == "" {
		return chunk
	}

	data := f.pending + chunk
	f.pending = ""

	var out strings.Builder
	for data != "" {
		if f.inSpan {
			idx := strings.Index(data, f.close)
			if idx < 0 {
				// Hold back a possible partial closing delimiter,
				// discard the rest of the span.
				f.pending = partialSuffix(data, f.close)
				return out.String()
			}
			data = data[idx+len(f.close):]
			f.inSpan = false
			continue
		}

		idx := strings.Index(data, f.open)
		if idx < 0 {
			keep := partialSuffix(data, f.open)
			out.WriteString(data[:len(data)-len(keep)])
			f.pending = keep
			return out.String()
		}
		out.WriteString(data[:idx])
		data = data[idx+len(f.open):]
		f.inSpan = true
	}
	return out.String()
}

// flush returns whatever withheld text is still emittable at end of
// stream. Text inside an unterminated span stays suppressed; the
// terminal event's three-tier fallback decides what the final text is.
func (f *reasoningFilter) flush() string {
	if f.inSpan {
		return ""
	}
	out := f.pending
	f.pending = ""
	return out
}

// partialSuffix returns the longest suffix of s that is a proper prefix
// of delim.
func partialSuffix(s, delim string) string {
	maxLen := min(len(s), len(delim)-1)
	for l := maxLen; l > 0; l-- {
		if strings.HasPrefix(delim, s[len(s)-l:]) {
			return s[len(s)-l:]
		}
	}
	return ""
}
