package healloop

import (
	"crypto/sha256"
	"fmt"
)

// diagnosticFingerprint computes a deterministic signature for one
// attempt's classified diagnostics.
func diagnosticFingerprint(diags []Diagnostic) string {
	h := sha256.New()
	for _, d := range diags {
		h.Write([]byte(string(d.Severity)))
		h.Write([]byte{0})
		h.Write([]byte(d.Text))
		h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	return fmt.Sprintf("%x", sum[:8])
}

// DetectStall reports whether the last windowSize attempts all produced
// identical diagnostics. A stalled loop is repeating a correction that
// does not change the failure, so the controller escalates from targeted
// fixes to full regeneration.
func DetectStall(history []AttemptRecord, windowSize int) bool {
	if windowSize < 2 || len(history) < windowSize {
		return false
	}

	window := history[len(history)-windowSize:]
	first := diagnosticFingerprint(window[0].Diagnostics)
	if len(window[0].Diagnostics) == 0 {
		return false
	}
	for _, rec := range window[1:] {
		if diagnosticFingerprint(rec.Diagnostics) != first {
			return false
		}
	}
	return true
}
