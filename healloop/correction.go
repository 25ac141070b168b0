package healloop

import (
	"fmt"
	"strings"
)

// CorrectionMode selects how the next attempt is prompted.
type CorrectionMode string

const (
	// TargetedFix feeds the failing code and diagnostics back and asks for
	// a minimal fix. This is the default after a failed execution.
	TargetedFix CorrectionMode = "targeted_fix"

	// RegenerateFromSchema discards the failing code and restates the
	// original request. Used after a structural parse failure or a stall.
	RegenerateFromSchema CorrectionMode = "regenerate_from_schema"
)

// CorrectionRequest carries everything needed to prompt the next attempt.
type CorrectionRequest struct {
	Mode        CorrectionMode
	Task        string             // the original generation task
	Candidate   *CandidateArtifact // failing candidate, nil after a parse failure
	Diagnostics []Diagnostic
	ParseErr    error // set when the previous response never parsed
}

// DefaultSystemPrompt instructs the model to respond in the recoverable
// artifact schema.
const DefaultSystemPrompt = `You are an expert code generator. Respond with a single JSON object and nothing else:

{
  "filename": "the script filename",
  "code": "the complete runnable code",
  "explanation": "one or two sentences on what the code does"
}

Escape newlines and quotes inside the code value. Do not wrap the JSON in markdown fences.`

// BuildCorrectionPrompt renders a CorrectionRequest into the user message
// for the next generation call.
func BuildCorrectionPrompt(req CorrectionRequest, maxDiagnosticChars int) string {
	switch req.Mode {
	case RegenerateFromSchema:
		return buildRegenerationPrompt(req)
	default:
		return buildTargetedFixPrompt(req, maxDiagnosticChars)
	}
}

func buildTargetedFixPrompt(req CorrectionRequest, maxDiagnosticChars int) string {
	var b strings.Builder
	b.WriteString("Your previous code had errors when tested.\n\n")
	if req.Candidate != nil {
		b.WriteString("Here is the EXACT code you generated that failed:\n```\n")
		b.WriteString(req.Candidate.Payload)
		b.WriteString("\n```\n\n")
	}
	b.WriteString("ERROR MESSAGE:\n")
	b.WriteString(TruncateDiagnostics(DiagnosticText(req.Diagnostics), maxDiagnosticChars))
	b.WriteString("\n\nTASK: Fix ONLY the specific errors shown above.\n")
	b.WriteString("- Do NOT regenerate from scratch\n")
	b.WriteString("- Keep the working parts\n")
	b.WriteString("- Fix the specific line or method causing the error\n\n")
	b.WriteString("Original task context:\n")
	b.WriteString(req.Task)
	b.WriteString("\n\nRespond with the corrected COMPLETE code in the same JSON schema as before.\n")
	return b.String()
}

func buildRegenerationPrompt(req CorrectionRequest) string {
	var b strings.Builder
	if req.ParseErr != nil {
		fmt.Fprintf(&b, "Your previous response could not be parsed: %v\n\n", req.ParseErr)
		b.WriteString("Respond again with ONLY a valid JSON object matching the required schema. ")
		b.WriteString("Escape all newlines and quotes inside string values.\n\n")
	} else {
		b.WriteString("Your previous attempts repeated the same failure. ")
		b.WriteString("Discard the prior code and write a fresh solution from scratch.\n\n")
		if len(req.Diagnostics) > 0 {
			b.WriteString("The recurring error was:\n")
			b.WriteString(DiagnosticText(req.Diagnostics))
			b.WriteString("\n\n")
		}
	}
	b.WriteString("Original task:\n")
	b.WriteString(req.Task)
	b.WriteString("\n")
	return b.String()
}
