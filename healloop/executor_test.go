package healloop

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.sh")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecuteSuccess(t *testing.T) {
	exec := NewExecutor(Invocation{Tool: "sh"}, 5*time.Second, "")
	script := writeScript(t, "echo out\necho err >&2\nexit 0\n")

	res, err := exec.Execute(context.Background(), script)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 || res.TimedOut {
		t.Errorf("exit_code = %d, timed_out = %v", res.ExitCode, res.TimedOut)
	}
	if res.Stdout != "out\n" {
		t.Errorf("stdout = %q", res.Stdout)
	}
	if res.Stderr != "err\n" {
		t.Errorf("stderr = %q", res.Stderr)
	}
}

func TestExecuteNonzeroExit(t *testing.T) {
	exec := NewExecutor(Invocation{Tool: "sh"}, 5*time.Second, "")
	script := writeScript(t, "echo boom >&2\nexit 7\n")

	res, err := exec.Execute(context.Background(), script)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 7 {
		t.Errorf("exit_code = %d, want 7", res.ExitCode)
	}
	if res.Stderr != "boom\n" {
		t.Errorf("stderr = %q", res.Stderr)
	}
}

func TestExecuteTimeout(t *testing.T) {
	exec := NewExecutor(Invocation{Tool: "sh"}, 100*time.Millisecond, "")
	script := writeScript(t, "echo partial\nsleep 10\n")

	start := time.Now()
	res, err := exec.Execute(context.Background(), script)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.TimedOut {
		t.Fatal("expected TimedOut")
	}
	if res.ExitCode != -1 {
		t.Errorf("exit_code = %d, want -1", res.ExitCode)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("timeout not enforced promptly: %v", elapsed)
	}
	if res.Stdout != "partial\n" {
		t.Errorf("partial output not captured: %q", res.Stdout)
	}
}

func TestExecuteTimeoutKillsGrandchildren(t *testing.T) {
	// The hung process is a grandchild of the tool; the group kill must
	// reach it or Wait blocks on the pipes it holds.
	exec := NewExecutor(Invocation{Tool: "sh"}, 100*time.Millisecond, "")
	script := writeScript(t, "sh -c 'sleep 30'\n")

	start := time.Now()
	res, err := exec.Execute(context.Background(), script)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.TimedOut || res.ExitCode != -1 {
		t.Errorf("exit_code = %d, timed_out = %v", res.ExitCode, res.TimedOut)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("grandchild outlived the deadline: %v", elapsed)
	}
}

func TestExecutePipeHeldPastExit(t *testing.T) {
	// A detached grandchild keeps the output pipe open after the tool
	// exits; WaitDelay bounds the wait and the real exit code survives.
	exec := NewExecutor(Invocation{Tool: "sh"}, 30*time.Second, "")
	script := writeScript(t, "sleep 30 &\necho done\nexit 0\n")

	start := time.Now()
	res, err := exec.Execute(context.Background(), script)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 || res.TimedOut {
		t.Errorf("exit_code = %d, timed_out = %v", res.ExitCode, res.TimedOut)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("wait not bounded after exit: %v", elapsed)
	}
}

func TestExecuteToolNotFound(t *testing.T) {
	exec := NewExecutor(Invocation{Tool: "definitely-not-a-real-tool-9c4f"}, time.Second, "")
	_, err := exec.Execute(context.Background(), "script.py")
	var notFound *ToolNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ToolNotFoundError, got %v", err)
	}
	if notFound.Tool != "definitely-not-a-real-tool-9c4f" {
		t.Errorf("tool = %q", notFound.Tool)
	}
}

func TestExecuteArgOrder(t *testing.T) {
	// Args land after the script path and scene name.
	exec := NewExecutor(Invocation{Tool: "sh", Scene: "SceneOne", Args: []string{"--flag"}}, 5*time.Second, "")
	script := writeScript(t, `echo "$1 $2"`+"\n")

	res, err := exec.Execute(context.Background(), script)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stdout != "SceneOne --flag\n" {
		t.Errorf("stdout = %q", res.Stdout)
	}
}

func TestFilterEnvironment(t *testing.T) {
	t.Setenv("SCENEHEAL_TEST_API_KEY", "secret")
	t.Setenv("SCENEHEAL_TEST_PLAIN", "visible")

	env := filterEnvironment()
	for _, e := range env {
		if e == "SCENEHEAL_TEST_API_KEY=secret" {
			t.Error("sensitive variable leaked into child environment")
		}
	}
	found := false
	for _, e := range env {
		if e == "SCENEHEAL_TEST_PLAIN=visible" {
			found = true
		}
	}
	if !found {
		t.Error("plain variable missing from child environment")
	}
}

func TestIsSensitiveEnvVar(t *testing.T) {
	cases := map[string]bool{
		"OPENAI_API_KEY": true,
		"MY_SECRET":      true,
		"GITHUB_TOKEN":   true,
		"db_password":    true,
		"PATH":           false,
		"PYTHONPATH":     false,
	}
	for name, want := range cases {
		if got := isSensitiveEnvVar(name); got != want {
			t.Errorf("isSensitiveEnvVar(%q) = %v, want %v", name, got, want)
		}
	}
}
