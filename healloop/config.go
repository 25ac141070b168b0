package healloop

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// BackoffConfig configures the provider-retry supervisor. These retries
// are invisible to the correction budget.
type BackoffConfig struct {
	MaxRetries int     `yaml:"max_retries"`
	BaseDelay  float64 `yaml:"base_delay_seconds"`
	MaxDelay   float64 `yaml:"max_delay_seconds"`
	Multiplier float64 `yaml:"multiplier"`
}

// LoopConfig configures a correction loop run.
type LoopConfig struct {
	// Provider and Model select the generation backend. Empty values fall
	// back to the client's default provider and its latest catalog model.
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`

	// MaxAttempts bounds executor invocations per run.
	MaxAttempts int `yaml:"max_attempts"`

	// ExecutionTimeoutMs bounds each subprocess run.
	ExecutionTimeoutMs int `yaml:"execution_timeout_ms"`

	// Tool invocation shape.
	Tool  string   `yaml:"tool"`
	Scene string   `yaml:"scene"`
	Args  []string `yaml:"args"`

	// WorkDir is where candidate scripts are written and executed.
	WorkDir string `yaml:"work_dir"`

	// Filename for the candidate script within WorkDir. Empty uses the
	// artifact's own filename.
	Filename string `yaml:"filename"`

	// DisableBackups skips the timestamped .bak copy before overwrite.
	DisableBackups bool `yaml:"disable_backups"`

	// MaxDiagnosticChars bounds diagnostic text in correction prompts.
	MaxDiagnosticChars int `yaml:"max_diagnostic_chars"`

	// StallWindow is how many identical consecutive failures trigger
	// escalation to full regeneration. Zero disables stall detection.
	StallWindow int `yaml:"stall_window"`

	Backoff BackoffConfig `yaml:"backoff"`

	Rules RuleSet `yaml:"rules"`
}

// DefaultLoopConfig returns the configuration used when no file is given.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MaxAttempts:        5,
		ExecutionTimeoutMs: 60000,
		Tool:               "manim",
		Scene:              "GenScene",
		Args:               []string{"--dry_run"},
		Filename:           "generated.py",
		MaxDiagnosticChars: DefaultDiagnosticCharLimit,
		StallWindow:        3,
		Backoff: BackoffConfig{
			MaxRetries: 3,
			BaseDelay:  1.0,
			MaxDelay:   60.0,
			Multiplier: 2.0,
		},
		Rules: DefaultManimRules(),
	}
}

// LoadConfig reads a YAML config file and overlays it on the defaults.
func LoadConfig(path string) (LoopConfig, error) {
	cfg := DefaultLoopConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

// normalize clamps invalid values back to usable defaults.
func (c *LoopConfig) normalize() {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.ExecutionTimeoutMs < 0 {
		c.ExecutionTimeoutMs = 0
	}
	if c.MaxDiagnosticChars <= 0 {
		c.MaxDiagnosticChars = DefaultDiagnosticCharLimit
	}
	if c.StallWindow < 0 {
		c.StallWindow = 0
	}
	if c.Backoff.MaxRetries < 0 {
		c.Backoff.MaxRetries = 0
	}
	if c.Backoff.BaseDelay <= 0 {
		c.Backoff.BaseDelay = 1.0
	}
	if c.Backoff.MaxDelay < c.Backoff.BaseDelay {
		c.Backoff.MaxDelay = c.Backoff.BaseDelay
	}
	if c.Backoff.Multiplier <= 1.0 {
		c.Backoff.Multiplier = 2.0
	}
	if len(c.Rules.ErrorIndicators) == 0 {
		c.Rules = DefaultManimRules()
	}
}

// ExecutionTimeout converts the configured timeout to a duration.
func (c *LoopConfig) ExecutionTimeout() time.Duration {
	return time.Duration(c.ExecutionTimeoutMs) * time.Millisecond
}
