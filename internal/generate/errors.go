package generate

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// maxErrorRaw caps how much of the raw answer goes into an error message.
const maxErrorRaw = 2048

// UpstreamError reports a failed or timed out LLM call.
type UpstreamError struct {
	Provider string
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("llm request failed: %v", e.Err)
	}
	return fmt.Sprintf("llm request failed (%s): %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ParseError reports an LLM answer without a usable component/reason/code triple.
// Raw holds the full answer.
type ParseError struct {
	Raw string
}

func (e *ParseError) Error() string {
	return "invalid LLM response format, cannot parse JSON: " + truncate(e.Raw, maxErrorRaw)
}

// IsUpstream reports whether err is or wraps an UpstreamError.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// IsParse reports whether err is or wraps a ParseError.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// truncate cuts s to at most n bytes on a rune boundary and marks the cut.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
