package healloop

import (
	"encoding/json"
	"regexp"
	"strings"
)

// CandidateArtifact is one generated script under test. Artifacts are
// immutable; each correction attempt produces a new one.
type CandidateArtifact struct {
	Payload     string `json:"code"`
	Filename    string `json:"filename"`
	Explanation string `json:"explanation"`
}

// Fallbacks used when a field cannot be located during manual extraction.
const (
	fallbackFilename    = "generated.py"
	fallbackExplanation = "Generated code"
)

var (
	filenamePattern    = regexp.MustCompile(`"filename"\s*:\s*"([^"]+)"`)
	explanationPattern = regexp.MustCompile(`"explanation"\s*:\s*"([^"]*(?:\\.[^"]*)*)"`)

	// codePattern consumes escaped sequences so it does not terminate at an
	// internal escaped quote.
	codePattern = regexp.MustCompile(`(?s)"code"\s*:\s*"((?:[^"\\]|\\.)*)"`)

	// codeFallbackPattern anchors on the field that follows code in the
	// schema, for responses where even escape tracking fails.
	codeFallbackPattern = regexp.MustCompile(`(?s)"code"\s*:\s*"(.*?)",\s*"explanation"`)
)

// RecoverArtifact turns raw generation text into a CandidateArtifact,
// tolerating the malformed JSON that long code payloads routinely produce
// (unescaped newlines and quotes inside the code value).
//
// The algorithm is ordered and stops at the first success: strip fences,
// strict parse, then field-by-field manual extraction within the outermost
// brace span. Pure function of its input.
func RecoverArtifact(raw string) (*CandidateArtifact, error) {
	text := stripFences(raw)

	// Strict parse first; the happy path when the model behaves.
	var artifact CandidateArtifact
	parseErr := json.Unmarshal([]byte(text), &artifact)
	if parseErr == nil && artifact.Payload != "" {
		if artifact.Filename == "" {
			artifact.Filename = fallbackFilename
		}
		if artifact.Explanation == "" {
			artifact.Explanation = fallbackExplanation
		}
		return &artifact, nil
	}

	// Manual extraction operates only within the outermost brace pair.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return nil, &StructuralParseError{
			Stage:      "locate object boundaries",
			ParseErr:   parseErr,
			ExtractErr: errNoObjectBoundaries,
		}
	}
	span := text[start : end+1]

	filename := fallbackFilename
	if m := filenamePattern.FindStringSubmatch(span); m != nil {
		filename = m[1]
	}
	explanation := fallbackExplanation
	if m := explanationPattern.FindStringSubmatch(span); m != nil {
		explanation = unescapeCode(m[1])
	}

	code, ok := extractCode(span)
	if !ok {
		return nil, &StructuralParseError{
			Stage:      "extract code field",
			ParseErr:   parseErr,
			ExtractErr: errNoCodeField,
		}
	}

	return &CandidateArtifact{
		Payload:     code,
		Filename:    filename,
		Explanation: explanation,
	}, nil
}

// extractCode tries the escape-aware pattern first, then the next-field
// anchor. Both unescape identically.
func extractCode(span string) (string, bool) {
	if m := codePattern.FindStringSubmatch(span); m != nil && m[1] != "" {
		return unescapeCode(m[1]), true
	}
	if m := codeFallbackPattern.FindStringSubmatch(span); m != nil && m[1] != "" {
		return unescapeCode(m[1]), true
	}
	return "", false
}

// unescapeCode undoes JSON string escapes. Substitution order is fixed
// (\n, \t, \", then \\), which makes an escaped backslash followed by a
// literal n come out as a newline.
func unescapeCode(s string) string {
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\t`, "\t")
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\\`, `\`)
	return s
}

// stripFences removes enclosing markdown code fences if present.
func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```json") {
		text = text[7:]
	}
	if strings.HasPrefix(text, "```") {
		text = text[3:]
	}
	if strings.HasSuffix(text, "```") {
		text = text[:len(text)-3]
	}
	return strings.TrimSpace(text)
}

var (
	errNoObjectBoundaries = &extractionError{"could not find JSON object boundaries"}
	errNoCodeField        = &extractionError{"could not locate a code field"}
)

type extractionError struct{ msg string }

func (e *extractionError) Error() string { return e.msg }
