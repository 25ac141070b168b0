package healloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sceneheal/sceneheal/llmclient"
)

// State is the controller's current phase.
type State string

const (
	StateInit             State = "init"
	StateGenerating       State = "generating"
	StateExecuting        State = "executing"
	StateEvaluating       State = "evaluating"
	StateCorrecting       State = "correcting"
	StateSucceeded        State = "succeeded"
	StateExhaustedRetries State = "exhausted_retries"
	StateFailed           State = "failed"
)

// Outcome records how one attempt ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeRetry   Outcome = "retry"
	OutcomeFatal   Outcome = "fatal"
)

// AttemptRecord is the immutable history entry for one attempt. Candidate
// and Result are nil when the corresponding phase never ran.
type AttemptRecord struct {
	Index       int                `json:"index"`
	Candidate   *CandidateArtifact `json:"candidate,omitempty"`
	Result      *ExecResult        `json:"result,omitempty"`
	Diagnostics []Diagnostic       `json:"diagnostics,omitempty"`
	Outcome     Outcome            `json:"outcome"`
}

// GenerateRequest describes what the loop should produce.
type GenerateRequest struct {
	Task         string // the user's generation task
	SystemPrompt string // empty uses DefaultSystemPrompt
}

// RunResult is the terminal report of a loop run. On exhaustion Final and
// Diagnostics carry the last candidate and its failure so the caller can
// hand off to a human.
type RunResult struct {
	RunID       string             `json:"run_id"`
	State       State              `json:"state"`
	Succeeded   bool               `json:"succeeded"`
	Attempts    []AttemptRecord    `json:"attempts"`
	Final       *CandidateArtifact `json:"final,omitempty"`
	ScriptPath  string             `json:"script_path,omitempty"`
	Diagnostics []Diagnostic       `json:"diagnostics,omitempty"`
	TotalUsage  llmclient.Usage    `json:"total_usage"`
}

// Controller drives the generate-execute-evaluate-correct loop.
type Controller struct {
	client    *llmclient.Client
	cfg       LoopConfig
	executor  *Executor
	workspace *Workspace
	emitter   *EventEmitter
	logger    *slog.Logger

	mu    sync.Mutex
	state State
}

// NewController creates a Controller. A nil client uses the module-level
// default; a nil logger discards nothing and logs to slog's default.
func NewController(client *llmclient.Client, cfg LoopConfig, logger *slog.Logger) *Controller {
	if client == nil {
		client = llmclient.GetDefaultClient()
	}
	if logger == nil {
		logger = slog.Default()
	}
	runID := uuid.New().String()
	inv := Invocation{Tool: cfg.Tool, Scene: cfg.Scene, Args: cfg.Args}
	return &Controller{
		client:    client,
		cfg:       cfg,
		executor:  NewExecutor(inv, cfg.ExecutionTimeout(), cfg.WorkDir),
		workspace: NewWorkspace(cfg.WorkDir, cfg.Filename, cfg.DisableBackups),
		emitter:   NewEventEmitter(runID, 0),
		logger:    logger.With("run_id", runID),
		state:     StateInit,
	}
}

// Events returns the controller's event channel.
func (c *Controller) Events() <-chan LoopEvent {
	return c.emitter.Events()
}

// State returns the controller's current phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) backoffPolicy() llmclient.BackoffPolicy {
	return llmclient.BackoffPolicy{
		MaxRetries: c.cfg.Backoff.MaxRetries,
		BaseDelay:  c.cfg.Backoff.BaseDelay,
		MaxDelay:   c.cfg.Backoff.MaxDelay,
		Multiplier: c.cfg.Backoff.Multiplier,
		Jitter:     true,
		OnRetry: func(err error, attempt int, delay time.Duration) {
			c.logger.Warn("provider retry",
				"attempt", attempt, "delay", delay, "error", err)
		},
	}
}

// Run executes the correction loop until success, budget exhaustion, or a
// fatal error. The returned RunResult is complete in every terminal state;
// the error is non-nil only for fatal conditions (tool missing, spawn
// failure, provider retries exhausted, context cancelled).
func (c *Controller) Run(ctx context.Context, req GenerateRequest) (*RunResult, error) {
	defer c.emitter.Close()

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	result := &RunResult{RunID: c.emitter.runID, State: StateInit}
	c.emitter.Emit(EventRunStart, map[string]interface{}{"max_attempts": c.cfg.MaxAttempts})
	defer func() {
		c.emitter.Emit(EventRunEnd, map[string]interface{}{"state": string(result.State)})
	}()

	userPrompt := req.Task

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		record := AttemptRecord{Index: attempt}
		logger := c.logger.With("attempt", attempt)

		// Generate.
		c.setState(StateGenerating)
		c.emitter.Emit(EventGenerating, map[string]interface{}{"attempt": attempt})
		logger.Info("generating candidate")

		resp, err := c.client.CompleteWithRetry(ctx, c.backoffPolicy(), llmclient.Request{
			Model:    c.cfg.Model,
			Provider: c.cfg.Provider,
			Messages: []llmclient.Message{
				llmclient.SystemMessage(systemPrompt),
				llmclient.UserMessage(userPrompt),
			},
		})
		if err != nil {
			return c.fatal(result, record, fmt.Errorf("generation failed: %w", err))
		}
		result.TotalUsage = result.TotalUsage.Add(resp.Usage)

		// Recover.
		artifact, err := RecoverArtifact(resp.Text)
		if err != nil {
			var parseErr *StructuralParseError
			if !errors.As(err, &parseErr) {
				return c.fatal(result, record, err)
			}
			// A parse failure consumes the attempt; the response text is
			// the evidence, so there is nothing to execute.
			logger.Warn("structural parse failure", "stage", parseErr.Stage, "error", parseErr)
			record.Diagnostics = []Diagnostic{{Severity: SeverityError, Text: parseErr.Error()}}
			record.Outcome = OutcomeRetry
			result.Attempts = append(result.Attempts, record)
			result.Diagnostics = record.Diagnostics

			if attempt == c.cfg.MaxAttempts {
				break
			}

			c.setState(StateCorrecting)
			c.emitter.Emit(EventCorrecting, map[string]interface{}{
				"attempt": attempt, "mode": string(RegenerateFromSchema),
			})
			userPrompt = BuildCorrectionPrompt(CorrectionRequest{
				Mode:     RegenerateFromSchema,
				Task:     req.Task,
				ParseErr: parseErr,
			}, c.cfg.MaxDiagnosticChars)
			continue
		}
		record.Candidate = artifact
		result.Final = artifact
		c.emitter.Emit(EventArtifactRecovered, map[string]interface{}{
			"attempt": attempt, "filename": artifact.Filename,
		})

		scriptPath, err := c.workspace.Write(artifact)
		if err != nil {
			return c.fatal(result, record, err)
		}
		result.ScriptPath = scriptPath

		// Execute.
		c.setState(StateExecuting)
		c.emitter.Emit(EventExecuting, map[string]interface{}{
			"attempt": attempt, "script": scriptPath,
		})
		logger.Info("executing candidate", "script", scriptPath)

		execResult, err := c.executor.Execute(ctx, scriptPath)
		if err != nil {
			return c.fatal(result, record, err)
		}
		record.Result = execResult

		// Evaluate.
		c.setState(StateEvaluating)
		diags := c.cfg.Rules.Classify(execResult)
		record.Diagnostics = diags
		result.Diagnostics = diags
		c.emitter.Emit(EventDiagnostics, map[string]interface{}{
			"attempt": attempt, "count": len(diags),
			"exit_code": execResult.ExitCode, "timed_out": execResult.TimedOut,
		})

		if execResult.ExitCode == 0 && !execResult.TimedOut && !HasErrors(diags) {
			record.Outcome = OutcomeSuccess
			result.Attempts = append(result.Attempts, record)
			result.State = StateSucceeded
			result.Succeeded = true
			c.setState(StateSucceeded)
			c.emitter.Emit(EventSucceeded, map[string]interface{}{
				"attempt": attempt, "script": scriptPath,
			})
			logger.Info("candidate validated", "script", scriptPath,
				"duration_ms", execResult.DurationMs)
			return result, nil
		}

		logger.Warn("candidate failed validation",
			"exit_code", execResult.ExitCode,
			"timed_out", execResult.TimedOut,
			"diagnostics", len(diags))

		record.Outcome = OutcomeRetry
		result.Attempts = append(result.Attempts, record)

		if attempt == c.cfg.MaxAttempts {
			break
		}

		// Correct.
		c.setState(StateCorrecting)
		mode := TargetedFix
		if c.cfg.StallWindow > 0 && DetectStall(result.Attempts, c.cfg.StallWindow) {
			mode = RegenerateFromSchema
			c.emitter.Emit(EventStallDetected, map[string]interface{}{
				"attempt": attempt, "window": c.cfg.StallWindow,
			})
			logger.Warn("stall detected, escalating to regeneration",
				"window", c.cfg.StallWindow)
		}
		c.emitter.Emit(EventCorrecting, map[string]interface{}{
			"attempt": attempt, "mode": string(mode),
		})
		userPrompt = BuildCorrectionPrompt(CorrectionRequest{
			Mode:        mode,
			Task:        req.Task,
			Candidate:   artifact,
			Diagnostics: diags,
		}, c.cfg.MaxDiagnosticChars)
	}

	result.State = StateExhaustedRetries
	c.setState(StateExhaustedRetries)
	c.emitter.Emit(EventExhausted, map[string]interface{}{
		"attempts": len(result.Attempts),
	})
	c.logger.Error("correction budget exhausted",
		"attempts", len(result.Attempts))
	return result, nil
}

// fatal records the partial attempt and returns the terminal error.
func (c *Controller) fatal(result *RunResult, record AttemptRecord, err error) (*RunResult, error) {
	record.Outcome = OutcomeFatal
	result.Attempts = append(result.Attempts, record)
	result.State = StateFailed
	c.setState(StateFailed)
	c.emitter.Emit(EventError, map[string]interface{}{"error": err.Error()})
	c.logger.Error("run aborted", "error", err)
	return result, err
}
