package healloop

import (
	"fmt"
	"strings"
)

// TruncationMode specifies how oversized text is truncated.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

// Default character limits for text carried into correction prompts.
const (
	DefaultDiagnosticCharLimit = 1000
	DefaultOutputCharLimit     = 8000
	DefaultDiagnosticLineLimit = 40
)

// TruncateText applies character-based truncation.
func TruncateText(text string, maxChars int, mode TruncationMode) string {
	if len(text) <= maxChars {
		return text
	}

	removed := len(text) - maxChars
	switch mode {
	case TruncateTail:
		return fmt.Sprintf("[... first %d characters omitted ...]\n", removed) +
			text[len(text)-maxChars:]
	default:
		half := maxChars / 2
		return text[:half] +
			fmt.Sprintf("\n[... %d characters omitted ...]\n", removed) +
			text[len(text)-half:]
	}
}

// TruncateTextLines applies line-based truncation using a head/tail split.
func TruncateTextLines(text string, maxLines int) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= maxLines {
		return text
	}

	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount

	return strings.Join(lines[:headCount], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tailCount:], "\n")
}

// TruncateDiagnostics bounds the diagnostic text fed back into correction
// prompts: character truncation first to handle pathological output, then
// line truncation for readability. Recent lines carry the stack frame that
// matters, so truncation keeps the tail.
func TruncateDiagnostics(text string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultDiagnosticCharLimit
	}
	result := TruncateText(text, maxChars, TruncateTail)
	return TruncateTextLines(result, DefaultDiagnosticLineLimit)
}
