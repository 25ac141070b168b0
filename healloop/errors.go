package healloop

import "fmt"

// StructuralParseError reports that a generation response could not be
// recovered into a CandidateArtifact. It carries both the strict parser's
// error and the manual extraction error so the failure stays diagnosable.
type StructuralParseError struct {
	Stage      string // which recovery stage gave up
	ParseErr   error  // strict JSON parse failure
	ExtractErr error  // manual extraction failure, if reached
}

func (e *StructuralParseError) Error() string {
	if e.ExtractErr != nil {
		return fmt.Sprintf("structural parse failed at %s: %v (strict parse: %v)", e.Stage, e.ExtractErr, e.ParseErr)
	}
	return fmt.Sprintf("structural parse failed at %s: %v", e.Stage, e.ParseErr)
}

func (e *StructuralParseError) Unwrap() error {
	return e.ParseErr
}

// ToolNotFoundError means the external execution tool is not installed.
// No candidate change can fix it, so the loop aborts immediately.
type ToolNotFoundError struct {
	Tool string
	Err  error
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("execution tool %q not found: %v", e.Tool, e.Err)
}

func (e *ToolNotFoundError) Unwrap() error {
	return e.Err
}

// SpawnError means the child process could not be started at all.
// Fatal for the loop, like ToolNotFoundError.
type SpawnError struct {
	Tool string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %q: %v", e.Tool, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
