package ui

import (
	"bytes"
	"testing"
)

func TestSpinner_SilentOnNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	sp := NewSpinnerTo(&buf, "Thinking...")
	sp.Start()
	sp.Stop()
	sp.Stop()

	if buf.Len() != 0 {
		t.Errorf("expected no spinner output, got %q", buf.String())
	}

	sp.Success("Logged in")
	if buf.String() != "  ✓ Logged in\n" {
		t.Errorf("unexpected success line %q", buf.String())
	}
}
