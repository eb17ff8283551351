package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/kodescruxx/kx-cli/internal/api"
)

// RenderOutcome prints a failed call in a form the user can act on. It
// prints nothing for a completed call.
func RenderOutcome(w io.Writer, out api.Outcome, baseURL string) {
	red := color.New(color.FgRed, color.Bold)
	dim := color.New(color.Faint)

	switch out.Kind {
	case api.OutcomeCompleted:
		return

	case api.OutcomeQuotaExhausted:
		if out.Quota != nil {
			RenderQuotaBox(w, *out.Quota, time.Now())
			return
		}
		red.Fprintln(w, "  ✗ Daily quota exhausted")

	case api.OutcomeConnectionFailure:
		red.Fprintf(w, "  ✗ Cannot connect to backend server at %s\n", baseURL)
		dim.Fprintln(w, "    Is it running? Set another address with: kx config set-url <url>")

	case api.OutcomeProtocolFailure:
		if out.StatusCode == 0 {
			red.Fprintf(w, "  ✗ %s\n", out.Reason)
			return
		}
		red.Fprintf(w, "  ✗ API request failed (HTTP %d)\n", out.StatusCode)
		if out.Body != "" {
			dim.Fprintf(w, "    %s\n", truncate(out.Body, 300))
		}
	}
}

// RenderQuotaBox shows an exhausted quota with the time until it resets.
func RenderQuotaBox(w io.Writer, q api.QuotaInfo, now time.Time) {
	yellow := color.New(color.FgYellow, color.Bold)
	dim := color.New(color.Faint)

	msg := q.Message
	if msg == "" {
		msg = "Daily quota exhausted"
	}
	lines := []string{msg, fmt.Sprintf("Used %d of %d requests today", q.Used, q.Limit)}
	if !q.ResetAt.IsZero() {
		lines = append(lines, "Resets "+ResetIn(q.ResetAt.Time, now))
	}

	width := 0
	for _, l := range lines {
		if n := len([]rune(l)); n > width {
			width = n
		}
	}
	border := strings.Repeat("─", width+2)

	yellow.Fprintf(w, "  ┌%s┐\n", border)
	for i, l := range lines {
		pad := strings.Repeat(" ", width-len([]rune(l)))
		if i == 0 {
			yellow.Fprintf(w, "  │ %s%s │\n", l, pad)
			continue
		}
		fmt.Fprint(w, "  ")
		yellow.Fprint(w, "│ ")
		dim.Fprintf(w, "%s%s", l, pad)
		yellow.Fprintln(w, " │")
	}
	yellow.Fprintf(w, "  └%s┘\n", border)
}

// FormatQuota renders a one-line quota summary, e.g. "7/10 used, 3 left".
func FormatQuota(q api.QuotaInfo, now time.Time) string {
	s := fmt.Sprintf("%d/%d used, %d left", q.Used, q.Limit, q.Remaining)
	if !q.ResetAt.IsZero() {
		s += ", resets " + ResetIn(q.ResetAt.Time, now)
	}
	return s
}

// ResetIn describes how far away t is, rounded to minutes.
func ResetIn(t, now time.Time) string {
	d := t.Sub(now)
	if d <= 0 {
		return "now"
	}
	d = d.Round(time.Minute)
	if d < time.Minute {
		return "in under a minute"
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	switch {
	case h == 0:
		return fmt.Sprintf("in %dm", m)
	case m == 0:
		return fmt.Sprintf("in %dh", h)
	}
	return fmt.Sprintf("in %dh %dm", h, m)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
