package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sceneheal/sceneheal/healloop"
	"github.com/sceneheal/sceneheal/llmclient"
)

var (
	configPath  string
	provider    string
	model       string
	maxAttempts int
	timeoutMs   int
	tool        string
	scene       string
	workDir     string
	verbose     bool

	rootCmd = &cobra.Command{
		Use:   "sceneheal",
		Short: "Generate code with an LLM and self-correct it against a validation tool",
		Long: `sceneheal asks a language model for a script, runs it through an
external validation tool, and feeds failures back to the model until the
script passes or the attempt budget runs out.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	healCmd = &cobra.Command{
		Use:   "heal [task...]",
		Short: "Run the generate-validate-correct loop for a task",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runHeal,
	}

	validateCmd = &cobra.Command{
		Use:   "validate [file]",
		Short: "Run the validation tool once against an existing script",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}

	modelsCmd = &cobra.Command{
		Use:   "models",
		Short: "List the known model catalog",
		Run:   runModels,
	}
)

// errValidationFailed marks a run that already reported its outcome;
// main exits non-zero without printing it again.
var errValidationFailed = errors.New("validation failed")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errValidationFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	healCmd.Flags().StringVar(&provider, "provider", "", "generation provider (openai, anthropic, groq)")
	healCmd.Flags().StringVar(&model, "model", "", "model ID or alias")
	healCmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "correction attempt budget")
	healCmd.Flags().IntVar(&timeoutMs, "timeout", 0, "per-execution timeout in milliseconds")
	healCmd.Flags().StringVar(&tool, "tool", "", "validation tool executable")
	healCmd.Flags().StringVar(&scene, "scene", "", "scene name passed to the tool")
	healCmd.Flags().StringVar(&workDir, "workdir", "", "directory for candidate scripts")

	validateCmd.Flags().StringVar(&tool, "tool", "", "validation tool executable")
	validateCmd.Flags().StringVar(&scene, "scene", "", "scene name passed to the tool")
	validateCmd.Flags().IntVar(&timeoutMs, "timeout", 0, "execution timeout in milliseconds")

	rootCmd.AddCommand(healCmd, validateCmd, modelsCmd)
}

func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig() (healloop.LoopConfig, error) {
	if configPath != "" {
		return healloop.LoadConfig(configPath)
	}
	return healloop.DefaultLoopConfig(), nil
}

// applyFlags overlays non-empty CLI flags on the loaded config.
func applyFlags(cfg *healloop.LoopConfig) {
	if provider != "" {
		cfg.Provider = provider
	}
	if model != "" {
		if info := llmclient.GetModelInfo(model); info != nil {
			cfg.Model = info.ID
			if cfg.Provider == "" {
				cfg.Provider = info.Provider
			}
		} else {
			cfg.Model = model
		}
	}
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if timeoutMs > 0 {
		cfg.ExecutionTimeoutMs = timeoutMs
	}
	if tool != "" {
		cfg.Tool = tool
	}
	if scene != "" {
		cfg.Scene = scene
	}
	if workDir != "" {
		cfg.WorkDir = workDir
	}
}

func runHeal(cmd *cobra.Command, args []string) error {
	logger := setupLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlags(&cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl := healloop.NewController(nil, cfg, logger)

	// Drain events so the channel never backs up.
	go func() {
		for ev := range ctrl.Events() {
			logger.Debug("event", "kind", string(ev.Kind), "data", ev.Data)
		}
	}()

	task := strings.Join(args, " ")
	result, err := ctrl.Run(ctx, healloop.GenerateRequest{Task: task})
	if err != nil {
		return err
	}

	if result.Succeeded {
		fmt.Printf("Validated after %d attempt(s): %s\n", len(result.Attempts), result.ScriptPath)
		return nil
	}

	fmt.Fprintf(os.Stderr, "Exhausted %d attempt(s). Last candidate: %s\n",
		len(result.Attempts), result.ScriptPath)
	if text := healloop.DiagnosticText(result.Diagnostics); text != "" {
		fmt.Fprintf(os.Stderr, "Remaining diagnostics:\n%s\n", text)
	}
	return errValidationFailed
}

func runValidate(cmd *cobra.Command, args []string) error {
	logger := setupLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlags(&cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inv := healloop.Invocation{Tool: cfg.Tool, Scene: cfg.Scene, Args: cfg.Args}
	exec := healloop.NewExecutor(inv, cfg.ExecutionTimeout(), cfg.WorkDir)

	logger.Info("validating", "file", args[0], "tool", cfg.Tool)
	res, err := exec.Execute(ctx, args[0])
	if err != nil {
		return err
	}

	diags := cfg.Rules.Classify(res)
	if res.ExitCode == 0 && !res.TimedOut {
		fmt.Println("Validation passed.")
		return nil
	}

	fmt.Fprintf(os.Stderr, "Validation failed (exit %d, timed out: %v):\n%s\n",
		res.ExitCode, res.TimedOut, healloop.DiagnosticText(diags))
	return errValidationFailed
}

func runModels(cmd *cobra.Command, args []string) {
	for _, info := range llmclient.ListModels("") {
		line := fmt.Sprintf("%-28s %-10s", info.ID, info.Provider)
		if len(info.Aliases) > 0 {
			line += "  aliases: " + strings.Join(info.Aliases, ", ")
		}
		fmt.Println(line)
	}
}
