// Package healloop implements a bounded generate-execute-correct loop for
// model-generated code.
//
// A Controller drives the loop: it asks an llmclient.Client for a
// candidate script, recovers the structured artifact from the response
// text (tolerating the malformed JSON that long code payloads produce),
// writes it to a Workspace, runs it through an external validation tool
// in a sandboxed subprocess, classifies the tool's output into
// diagnostics, and either stops on success or feeds the diagnostics back
// as a correction prompt. The attempt budget bounds executor invocations;
// provider-level transient retries happen below the loop and never
// consume it.
//
// Architecture:
//
//   - Controller: the state machine (generating, executing, evaluating,
//     correcting) with an immutable per-attempt history
//   - RecoverArtifact: tolerant artifact recovery from generation text
//   - Executor: subprocess execution with timeout and filtered environment
//   - RuleSet.Classify: allow-list-first diagnostic classification with a
//     tail fallback so failures are never silent
//   - BuildCorrectionPrompt: targeted fix or full regeneration, escalated
//     by stall detection over diagnostic fingerprints
//   - EventEmitter: typed events for host applications
//
// Quick start:
//
//	cfg := healloop.DefaultLoopConfig()
//	ctrl := healloop.NewController(nil, cfg, slog.Default())
//	result, err := ctrl.Run(ctx, healloop.GenerateRequest{
//		Task: "Animate the Pythagorean theorem.",
//	})
//
// Terminal states: a successful run returns with Succeeded set; an
// exhausted budget returns the last candidate and its diagnostics with a
// nil error so the caller can hand off to a human; fatal conditions
// (missing tool, spawn failure, provider retries exhausted) return an
// error alongside the partial history.
package healloop
