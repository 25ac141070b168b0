package healloop

import (
	"errors"
	"strings"
	"testing"
)

func TestBuildTargetedFixPrompt(t *testing.T) {
	prompt := BuildCorrectionPrompt(CorrectionRequest{
		Mode: TargetedFix,
		Task: "Animate a circle.",
		Candidate: &CandidateArtifact{
			Payload:  "from manim import *\nclass GenScene(Scene): pass",
			Filename: "scene.py",
		},
		Diagnostics: []Diagnostic{
			{Severity: SeverityError, Text: "NameError: name 'Cricle' is not defined"},
		},
	}, 1000)

	for _, want := range []string{
		"from manim import *",
		"NameError: name 'Cricle' is not defined",
		"Fix ONLY the specific errors",
		"Animate a circle.",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildTargetedFixPromptTruncatesDiagnostics(t *testing.T) {
	prompt := BuildCorrectionPrompt(CorrectionRequest{
		Mode: TargetedFix,
		Task: "task",
		Diagnostics: []Diagnostic{
			{Severity: SeverityError, Text: strings.Repeat("x", 5000) + " real error"},
		},
	}, 200)

	if !strings.Contains(prompt, "real error") {
		t.Error("diagnostic tail lost")
	}
	if strings.Count(prompt, "x") > 300 {
		t.Error("diagnostics not truncated")
	}
}

func TestBuildRegenerationPromptAfterParseFailure(t *testing.T) {
	prompt := BuildCorrectionPrompt(CorrectionRequest{
		Mode:     RegenerateFromSchema,
		Task:     "Animate a square.",
		ParseErr: errors.New("could not locate a code field"),
	}, 1000)

	if !strings.Contains(prompt, "could not be parsed") {
		t.Errorf("prompt missing parse notice: %q", prompt)
	}
	if !strings.Contains(prompt, "Animate a square.") {
		t.Error("prompt missing original task")
	}
}

func TestBuildRegenerationPromptAfterStall(t *testing.T) {
	prompt := BuildCorrectionPrompt(CorrectionRequest{
		Mode: RegenerateFromSchema,
		Task: "Animate a triangle.",
		Diagnostics: []Diagnostic{
			{Severity: SeverityError, Text: "TypeError: recurring"},
		},
	}, 1000)

	if !strings.Contains(prompt, "from scratch") {
		t.Errorf("prompt missing regeneration instruction: %q", prompt)
	}
	if !strings.Contains(prompt, "TypeError: recurring") {
		t.Error("prompt missing recurring error")
	}
}
