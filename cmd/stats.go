package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/kodescruxx/kx-cli/internal/stats"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage statistics and response times",
	Long: `Display a dashboard of your kx usage: request counts, success rate,
time to first chunk, most-used operations, and how requests ended.

Data is collected automatically and stored locally in ~/.kx/stats.json.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := stats.Summarize()
		if err != nil {
			return fmt.Errorf("failed to load stats: %w", err)
		}

		cyan := color.New(color.FgCyan, color.Bold)
		green := color.New(color.FgGreen)
		yellow := color.New(color.FgYellow)
		dim := color.New(color.FgHiBlack)

		cyan.Fprintf(os.Stderr, "\n  📊 kx stats\n\n")

		if summary.TotalRequests == 0 {
			dim.Fprintln(os.Stderr, "  No data yet. Use kx for a while and come back.")
			fmt.Fprintln(os.Stderr)
			return nil
		}

		// Overview
		green.Fprintf(os.Stderr, "  Requests:    ")
		fmt.Fprintf(os.Stderr, "%d total", summary.TotalRequests)
		dim.Fprintf(os.Stderr, "  (%d today, %d this week)\n", summary.TodayCount, summary.ThisWeekCount)

		green.Fprintf(os.Stderr, "  Success:     ")
		if summary.SuccessRate >= 90 {
			fmt.Fprintf(os.Stderr, "%.0f%%\n", summary.SuccessRate)
		} else {
			yellow.Fprintf(os.Stderr, "%.0f%%\n", summary.SuccessRate)
		}

		// Latency
		if summary.AvgFirstChunkMs > 0 {
			green.Fprintf(os.Stderr, "  First chunk: ")
			fmt.Fprintf(os.Stderr, "%dms avg\n", summary.AvgFirstChunkMs)
		}
		green.Fprintf(os.Stderr, "  Total time:  ")
		fmt.Fprintf(os.Stderr, "%dms avg\n", summary.AvgTotalMs)

		// Outcome breakdown
		if len(summary.OutcomeBreakdown) > 0 {
			fmt.Fprintln(os.Stderr)
			cyan.Fprintln(os.Stderr, "  Outcomes")
			for _, outcome := range sortedKeys(summary.OutcomeBreakdown) {
				count := summary.OutcomeBreakdown[outcome]
				pct := float64(count) / float64(summary.TotalRequests) * 100
				bar := strings.Repeat("█", int(pct/5))
				dim.Fprintf(os.Stderr, "  %-18s ", outcome)
				fmt.Fprintf(os.Stderr, "%s %d (%.0f%%)\n", bar, count, pct)
			}
		}

		// Languages
		if len(summary.LanguageBreakdown) > 0 {
			fmt.Fprintln(os.Stderr)
			cyan.Fprintln(os.Stderr, "  Languages")
			for _, lang := range sortedKeys(summary.LanguageBreakdown) {
				dim.Fprintf(os.Stderr, "  %-14s ", lang)
				fmt.Fprintf(os.Stderr, "%d\n", summary.LanguageBreakdown[lang])
			}
		}

		// Top operations
		if len(summary.TopOperations) > 0 {
			fmt.Fprintln(os.Stderr)
			cyan.Fprintln(os.Stderr, "  Top Operations")
			for i, op := range summary.TopOperations {
				dim.Fprintf(os.Stderr, "  %d. ", i+1)
				fmt.Fprintf(os.Stderr, "%s ", op.Operation)
				dim.Fprintf(os.Stderr, "(%dx)\n", op.Count)
			}
		}

		fmt.Fprintln(os.Stderr)
		return nil
	},
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
