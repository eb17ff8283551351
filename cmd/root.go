package cmd

import (
	"context"
	"errors"

	"github.com/kodescruxx/kx-cli/internal/api"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	apiURL  string
)

// errReported marks a failure that has already been shown to the user.
var errReported = errors.New("error already reported")

var rootCmd = &cobra.Command{
	Use:   "kx",
	Short: "KodesCruxx code assistant in your terminal",
	Long: `kx sends code to the KodesCruxx backend and streams the answer back.

Examples:
  kx explain main.go --level intermediate
  kx debug broken.py
  cat query.sql | kx review -
  kx generate "binary search tree" --lang rust
  kx roadmaps "distributed systems" --level advanced
  kx quota --watch`,
	SilenceUsage:               true,
	SilenceErrors:              true,
	SuggestionsMinimumDistance: 1,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show diagnostic logs")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend URL for this invocation (overrides config)")

	for _, op := range api.Operations {
		rootCmd.AddCommand(newOperationCmd(op))
	}

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(quotaCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(doctorCmd)
}

// SetVersion sets the string printed by --version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the entry point called from main.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// Reported reports whether err has already been rendered to the user, so
// main should only set the exit status.
func Reported(err error) bool {
	return errors.Is(err, errReported)
}
