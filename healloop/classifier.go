package healloop

import (
	"fmt"
	"strings"
)

// Severity tags a classified diagnostic line.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is one classified line of execution output.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Text     string   `json:"text"`
}

// RuleSet holds the ordered substring lists that drive classification.
// The rules are data, not code: deployments targeting a different tool
// supply their own lists.
type RuleSet struct {
	// Benign substrings are checked first. A line matching both lists is
	// benign; tool banners legitimately contain words like "Error".
	Benign []string `yaml:"benign"`

	// ErrorIndicators mark a line as an actionable failure.
	ErrorIndicators []string `yaml:"error_indicators"`
}

// DefaultManimRules returns the rule set for manim's output format.
func DefaultManimRules() RuleSet {
	return RuleSet{
		Benign: []string{
			"UserWarning: pkg_resources is deprecated",
			"WARNING: All log messages before absl::InitializeLog()",
			"ALTS creds ignored",
			"import pkg_resources",
			"manim_voiceover/__init__.py",
			"INFO     Caching disabled",
			"INFO     Animation",
			"INFO     Automatically converted",
			"Both GOOGLE_API_KEY and GEMINI_API_KEY are set",
		},
		ErrorIndicators: []string{
			"Error", "Exception", "Traceback", "File \"",
			"NameError", "TypeError", "ValueError", "ImportError",
			"AttributeError", "SyntaxError", "IndentationError",
			"KeyError", "IndexError", "RuntimeError",
		},
	}
}

// diagnosticTailWindow bounds the synthesized fallback diagnostic.
const diagnosticTailWindow = 500

// Classify partitions an execution result's stderr into diagnostics.
// Benign lines win over error indicators, unmatched lines are dropped,
// and a failing result that filters to nothing gets a single synthesized
// diagnostic from the output tail so failure is never silent.
//
// Pure and deterministic: the same result always classifies identically.
func (r RuleSet) Classify(res *ExecResult) []Diagnostic {
	var diags []Diagnostic

	for _, line := range strings.Split(res.Stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if containsAny(line, r.Benign) {
			continue
		}
		if containsAny(line, r.ErrorIndicators) {
			diags = append(diags, Diagnostic{Severity: SeverityError, Text: line})
		}
	}

	failed := res.ExitCode != 0 || res.TimedOut
	if len(diags) == 0 && failed {
		diags = append(diags, Diagnostic{Severity: SeverityError, Text: synthesizeTail(res)})
	}

	return diags
}

// HasErrors reports whether any diagnostic carries Error severity.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// DiagnosticText joins diagnostic lines for prompts and reports.
func DiagnosticText(diags []Diagnostic) string {
	lines := make([]string, len(diags))
	for i, d := range diags {
		lines[i] = d.Text
	}
	return strings.Join(lines, "\n")
}

func containsAny(line string, substrings []string) bool {
	for _, s := range substrings {
		if strings.Contains(line, s) {
			return true
		}
	}
	return false
}

// synthesizeTail builds the fallback diagnostic from the tail of stderr,
// or stdout when stderr is empty.
func synthesizeTail(res *ExecResult) string {
	source := res.Stderr
	if strings.TrimSpace(source) == "" {
		source = res.Stdout
	}
	tail := strings.TrimSpace(tailChars(source, diagnosticTailWindow))
	if tail == "" {
		if res.TimedOut {
			return fmt.Sprintf("execution timed out after %dms with no output", res.DurationMs)
		}
		return fmt.Sprintf("execution failed with exit code %d and no output", res.ExitCode)
	}
	return tail
}

func tailChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
