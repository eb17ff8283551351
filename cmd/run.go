package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/kodescruxx/kx-cli/internal/api"
	"github.com/kodescruxx/kx-cli/internal/project"
	"github.com/kodescruxx/kx-cli/internal/ui"
	"github.com/spf13/cobra"
)

var (
	runLang      string
	runStdinFile string
)

var runCmd = &cobra.Command{
	Use:   "run <file | ->",
	Short: "Run code on the backend sandbox",
	Long: `Send a source file to POST /execute_code and print what it outputs.

Examples:
  kx run hello.py
  kx run main.go --stdin input.txt
  echo 'console.log(1+1)' | kx run - --lang javascript`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := readInput(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		if !in.fromSource() {
			return fmt.Errorf("%s: no such file", args[0])
		}
		if strings.TrimSpace(in.text) == "" {
			return fmt.Errorf("nothing to run")
		}

		path := in.path
		if path == "-" {
			path = ""
		}
		cwd, _ := os.Getwd()
		lang := project.Resolve(runLang, path, cwd)
		if lang == "" {
			return fmt.Errorf("could not detect the language, pass --lang")
		}

		stdin := ""
		if runStdinFile != "" {
			data, err := os.ReadFile(runStdinFile)
			if err != nil {
				return fmt.Errorf("failed to read stdin file: %w", err)
			}
			stdin = string(data)
		}

		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		sp := ui.NewSpinner(fmt.Sprintf("Running %s...", lang))
		sp.Start()
		res, err := a.client.ExecuteCode(ctx, api.ExecuteRequest{Code: in.text, Language: lang, Stdin: stdin})
		sp.Stop()
		if err != nil {
			a.tracker.Observe(ctx, err)
			ui.RenderOutcome(os.Stderr, api.OutcomeOf(err), a.client.BaseURL())
			return errReported
		}

		dim := color.New(color.FgHiBlack)
		if res.Output != "" {
			fmt.Print(res.Output)
			if !strings.HasSuffix(res.Output, "\n") {
				fmt.Println()
			}
		}
		if res.Success {
			detail := res.Language
			if res.Version != "" {
				detail += " " + res.Version
			}
			dim.Fprintf(os.Stderr, "\n  ✓ %s\n", detail)
			return nil
		}

		red := color.New(color.FgRed)
		stage := res.Stage
		if stage == "" {
			stage = "run"
		}
		red.Fprintf(os.Stderr, "\n  ✗ %s failed", stage)
		if res.ExitCode != nil {
			red.Fprintf(os.Stderr, " (exit %d)", *res.ExitCode)
		}
		fmt.Fprintln(os.Stderr)
		if res.Error != "" {
			dim.Fprintf(os.Stderr, "    %s\n", strings.ReplaceAll(strings.TrimSpace(res.Error), "\n", "\n    "))
		}
		return errReported
	},
}

func init() {
	runCmd.Flags().StringVarP(&runLang, "lang", "l", "", "Language (detected from the file extension when omitted)")
	runCmd.Flags().StringVar(&runStdinFile, "stdin", "", "File whose contents are passed to the program's stdin")
}
