package healloop

import (
	"strings"
	"testing"
)

func TestTruncateTextUnderLimit(t *testing.T) {
	if got := TruncateText("short", 100, TruncateTail); got != "short" {
		t.Errorf("got %q", got)
	}
}

func TestTruncateTextTail(t *testing.T) {
	text := strings.Repeat("a", 50) + "ending"
	got := TruncateText(text, 10, TruncateTail)
	if !strings.HasSuffix(got, "ending") {
		t.Errorf("tail mode lost the ending: %q", got)
	}
	if !strings.Contains(got, "omitted") {
		t.Errorf("no omission marker: %q", got)
	}
}

func TestTruncateTextHeadTail(t *testing.T) {
	text := "start" + strings.Repeat("b", 100) + "finish"
	got := TruncateText(text, 20, TruncateHeadTail)
	if !strings.HasPrefix(got, "start") {
		t.Errorf("head lost: %q", got)
	}
	if !strings.HasSuffix(got, "finish") {
		t.Errorf("tail lost: %q", got)
	}
}

func TestTruncateTextLines(t *testing.T) {
	lines := make([]string, 100)
	for i := range lines {
		lines[i] = "line"
	}
	got := TruncateTextLines(strings.Join(lines, "\n"), 10)
	if !strings.Contains(got, "90 lines omitted") {
		t.Errorf("wrong omission count: %q", got)
	}
}

func TestTruncateDiagnosticsKeepsTail(t *testing.T) {
	text := strings.Repeat("noise\n", 500) + "Traceback: the real error"
	got := TruncateDiagnostics(text, 200)
	if !strings.Contains(got, "the real error") {
		t.Errorf("diagnostic tail lost: %q", got)
	}
	if len(got) > 400 {
		t.Errorf("diagnostics not bounded: %d chars", len(got))
	}
}
