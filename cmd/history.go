package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/kodescruxx/kx-cli/internal/history"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show request history",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := history.Load(historyLimit)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("No history yet.")
			return nil
		}

		cyan := color.New(color.FgCyan)
		dim := color.New(color.FgHiBlack)
		red := color.New(color.FgRed)
		green := color.New(color.FgGreen)

		for _, e := range entries {
			dim.Printf("%s [%s] ", shortID(e.ID), e.Timestamp.Format("2006-01-02 15:04:05"))
			cyan.Printf("%-10s ", e.Operation)
			if e.Language != "" {
				dim.Printf("%s ", e.Language)
			}
			fmt.Printf("%s ", oneLine(e.Input, 48))
			if e.Success() {
				green.Printf("✓ %d chunks, %dms\n", e.Chunks, e.DurationMs)
			} else {
				red.Printf("✗ %s\n", e.Outcome)
			}
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one request and its answer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, ok := history.Find(args[0])
		if !ok {
			return fmt.Errorf("no single history entry matches %q", args[0])
		}
		cyan := color.New(color.FgCyan, color.Bold)
		dim := color.New(color.FgHiBlack)

		cyan.Printf("\n  %s", e.Operation)
		dim.Printf("  %s  %s  %s\n\n", e.Language, e.Timestamp.Format("2006-01-02 15:04:05"), e.Outcome)
		if e.Input != "" {
			dim.Printf("  > %s\n\n", oneLine(e.Input, 120))
		}
		fmt.Println(e.Output)
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all history",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := history.Clear(); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		fmt.Println("History cleared.")
		return nil
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > max {
		return string(r[:max]) + "..."
	}
	return s
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of history entries to show")
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyClearCmd)
}
