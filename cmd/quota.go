package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/kodescruxx/kx-cli/internal/api"
	"github.com/kodescruxx/kx-cli/internal/ui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	quotaWatch  bool
	quotaOutput string
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show your daily request quota",
	Long: `Show how many requests you have left today and when the quota resets.

With --watch, kx keeps the value fresh: it re-fetches every minute and
picks up updates published by other kx processes (through ~/.kx/quota.json,
and Redis when configured). Press Ctrl+C to stop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if quotaOutput != "text" && quotaOutput != "json" && quotaOutput != "yaml" {
			return fmt.Errorf("unknown output format %q (use text, json or yaml)", quotaOutput)
		}

		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if tok, _ := a.tokens.Token(ctx); tok == "" {
			return fmt.Errorf("not logged in, run: kx login")
		}

		out := cmd.OutOrStdout()
		if !quotaWatch {
			if err := a.tracker.Refresh(ctx); err != nil {
				ui.RenderOutcome(os.Stderr, api.OutcomeOf(err), a.client.BaseURL())
				return errReported
			}
			info, _ := a.tracker.Snapshot()
			return printQuota(out, info, quotaOutput)
		}

		a.tracker.OnUpdate(func(info *api.QuotaInfo) {
			if err := printQuota(out, info, quotaOutput); err != nil {
				a.logger.Warn().Err(err).Msg("failed to print quota")
			}
		})
		color.New(color.FgHiBlack).Fprintln(os.Stderr, "  Watching quota. Press Ctrl+C to stop.")
		if err := a.tracker.Run(ctx); err != nil {
			return fmt.Errorf("quota watch failed: %w", err)
		}
		return nil
	},
}

func printQuota(w io.Writer, info *api.QuotaInfo, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err

	case "yaml":
		data, err := yaml.Marshal(info)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(w, "---\n"+string(data))
		return err
	}

	if info == nil {
		_, err := fmt.Fprintln(w, "Quota unknown.")
		return err
	}
	now := time.Now()
	if info.Exhausted() {
		ui.RenderQuotaBox(w, *info, now)
		return nil
	}
	_, err := fmt.Fprintf(w, "%s  %s\n", now.Format(time.TimeOnly), ui.FormatQuota(*info, now))
	return err
}

func init() {
	quotaCmd.Flags().BoolVarP(&quotaWatch, "watch", "w", false, "Keep watching for quota changes")
	quotaCmd.Flags().StringVarP(&quotaOutput, "output", "o", "text", "Output format: text, json or yaml")
}
