package healloop

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// Invocation describes how the external validation tool is launched.
// Flags are fixed per deployment; the candidate path varies per attempt.
type Invocation struct {
	Tool  string   // executable name, e.g. "manim"
	Scene string   // scene/entry name passed after the script path, if any
	Args  []string // fixed trailing flags, e.g. --dry_run
}

// ExecResult captures one subprocess run. ExitCode is -1 and TimedOut is
// true when the process was killed at the deadline.
type ExecResult struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   int    `json:"exit_code"`
	TimedOut   bool   `json:"timed_out"`
	DurationMs int64  `json:"duration_ms"`
}

// Executor runs candidate scripts through the external tool as a child
// process. One invocation, one result; retrying is the controller's job.
type Executor struct {
	inv     Invocation
	timeout time.Duration
	workDir string
	envVars map[string]string
}

// NewExecutor creates an Executor. workDir may be empty to inherit the
// current directory.
func NewExecutor(inv Invocation, timeout time.Duration, workDir string) *Executor {
	return &Executor{
		inv:     inv,
		timeout: timeout,
		workDir: workDir,
	}
}

// SetEnv adds environment variables passed to the child beyond the
// filtered inherited set.
func (e *Executor) SetEnv(vars map[string]string) {
	e.envVars = vars
}

// sensitiveEnvPatterns are case-insensitive suffixes for environment
// variables that are never forwarded to the child.
var sensitiveEnvPatterns = []string{
	"_API_KEY",
	"_SECRET",
	"_TOKEN",
	"_PASSWORD",
	"_CREDENTIAL",
}

// safeEnvVars are always forwarded regardless of filtering.
var safeEnvVars = map[string]bool{
	"PATH": true, "HOME": true, "USER": true, "SHELL": true,
	"LANG": true, "TERM": true, "TMPDIR": true,
	"PYTHONPATH": true, "VIRTUAL_ENV": true, "PYENV_ROOT": true,
	"XDG_CONFIG_HOME": true, "XDG_DATA_HOME": true, "XDG_CACHE_HOME": true,
}

func isSensitiveEnvVar(name string) bool {
	upper := strings.ToUpper(name)
	for _, pattern := range sensitiveEnvPatterns {
		if strings.HasSuffix(upper, pattern) {
			return true
		}
	}
	return false
}

// filterEnvironment returns the parent environment minus sensitive
// variables, so generation credentials never reach the sandbox.
func filterEnvironment() []string {
	var filtered []string
	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}
		name := parts[0]
		if safeEnvVars[name] || !isSensitiveEnvVar(name) {
			filtered = append(filtered, env)
		}
	}
	return filtered
}

// Execute runs the tool against scriptPath and captures both streams in
// full. The timeout is enforced by killing the child's process group.
func (e *Executor) Execute(ctx context.Context, scriptPath string) (*ExecResult, error) {
	toolPath, err := exec.LookPath(e.inv.Tool)
	if err != nil {
		return nil, &ToolNotFoundError{Tool: e.inv.Tool, Err: err}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	args := []string{scriptPath}
	if e.inv.Scene != "" {
		args = append(args, e.inv.Scene)
	}
	args = append(args, e.inv.Args...)

	cmd := exec.CommandContext(ctx, toolPath, args...)
	cmd.Dir = e.workDir

	// Own process group so the timeout kill reaches grandchildren. The
	// default context cancel only signals the direct child, leaving
	// grandchildren holding the output pipes and blocking Wait.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 2 * time.Second

	env := filterEnvironment()
	for k, v := range e.envVars {
		env = append(env, k+"="+v)
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	result := &ExecResult{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMs: duration.Milliseconds(),
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case ctx.Err() == context.DeadlineExceeded:
			result.TimedOut = true
			result.ExitCode = -1
		case errors.Is(runErr, exec.ErrWaitDelay):
			// The process exited but something in its group held the
			// pipes past WaitDelay.
			if cmd.ProcessState != nil {
				result.ExitCode = cmd.ProcessState.ExitCode()
			}
		case errors.As(runErr, &exitErr):
			result.ExitCode = exitErr.ExitCode()
		default:
			return nil, &SpawnError{Tool: e.inv.Tool, Err: runErr}
		}
	}

	return result, nil
}
