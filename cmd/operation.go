package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/kodescruxx/kx-cli/internal/api"
	"github.com/kodescruxx/kx-cli/internal/history"
	"github.com/kodescruxx/kx-cli/internal/project"
	"github.com/kodescruxx/kx-cli/internal/stats"
	"github.com/kodescruxx/kx-cli/internal/ui"
	"github.com/spf13/cobra"
)

const (
	maxInputBytes = 200 * 1024
	outputIndent  = "  "
)

type opFlags struct {
	lang         string
	topic        string
	level        string
	framework    string
	refactorType string
	noStream     bool
}

// input is what the user handed to an operation: a file, stdin, or words
// on the command line.
type input struct {
	text string
	// path is the file the text came from, "-" for stdin, or "" for
	// command-line words.
	path string
}

func (in input) fromSource() bool {
	return in.path != ""
}

func newOperationCmd(op api.Operation) *cobra.Command {
	var f opFlags
	c := &cobra.Command{
		Use:   op.Name + " [file | - | text...]",
		Short: op.Short,
		Long: fmt.Sprintf(`%s.

Streams the answer from POST /stream/%s. Code is read from the file
argument, or from stdin with "-" or when piped. Required: %s.`,
			op.Short, op.Path, strings.Join(op.Required, ", ")),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			cwd, _ := os.Getwd()
			params := buildParams(op, f, in, cwd)
			return runOperation(cmd, op, params, in, f.noStream)
		},
	}

	flags := c.Flags()
	flags.StringVarP(&f.lang, "lang", "l", "", "Programming language (detected from the file or project when omitted)")
	flags.StringVarP(&f.topic, "topic", "t", "", "Topic to focus on")
	flags.StringVar(&f.level, "level", "beginner", "Skill level: beginner, intermediate or advanced")
	flags.StringVar(&f.framework, "framework", "", "Test framework (defaults by language)")
	flags.StringVar(&f.refactorType, "type", "readability", "Refactor goal, e.g. readability, performance, modularity")
	flags.BoolVar(&f.noStream, "no-stream", false, "Wait for the whole answer instead of streaming")
	return c
}

// readInput resolves the operation's positional arguments. A single
// argument naming an existing file, or "-", is read as code. Anything else
// is taken as text. With no arguments, piped stdin is used.
func readInput(args []string, stdin io.Reader) (input, error) {
	if len(args) == 1 {
		if args[0] == "-" {
			text, err := readAllLimited(stdin)
			if err != nil {
				return input{}, fmt.Errorf("failed to read stdin: %w", err)
			}
			return input{text: text, path: "-"}, nil
		}
		if st, err := os.Stat(args[0]); err == nil && !st.IsDir() {
			fh, err := os.Open(args[0])
			if err != nil {
				return input{}, err
			}
			defer fh.Close()
			text, err := readAllLimited(fh)
			if err != nil {
				return input{}, fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			return input{text: text, path: args[0]}, nil
		}
	}
	if len(args) > 0 {
		return input{text: strings.Join(args, " ")}, nil
	}
	if piped(stdin) {
		text, err := readAllLimited(stdin)
		if err != nil {
			return input{}, fmt.Errorf("failed to read stdin: %w", err)
		}
		return input{text: text, path: "-"}, nil
	}
	return input{}, nil
}

func piped(r io.Reader) bool {
	fh, ok := r.(*os.File)
	if !ok {
		return r != nil
	}
	info, err := fh.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice == 0
}

func readAllLimited(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxInputBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxInputBytes {
		return "", fmt.Errorf("input is larger than %d KB", maxInputBytes/1024)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// buildParams maps flags and input onto the request. Each operation
// takes its main input in a different field.
func buildParams(op api.Operation, f opFlags, in input, cwd string) api.Params {
	p := api.Params{Topic: f.topic}
	path := in.path
	if path == "-" {
		path = ""
	}

	switch {
	case requires(op, "code"):
		p.Code = in.text
	case op.Name == "explain":
		if in.fromSource() {
			p.Code = in.text
		} else if p.Topic == "" {
			p.Topic = in.text
		}
	case requires(op, "logic"):
		p.Logic = in.text
	case requires(op, "snippet"):
		p.Snippet = firstNonEmpty(f.topic, in.text)
	default:
		p.Topic = firstNonEmpty(f.topic, in.text)
	}

	if requires(op, "language") || p.Code != "" {
		p.Language = project.Resolve(f.lang, path, cwd)
	}
	if requires(op, "level") {
		p.Level = f.level
	}
	if requires(op, "framework") {
		p.Framework = firstNonEmpty(f.framework, defaultFramework(p.Language))
	}
	if requires(op, "refactor_type") {
		p.RefactorType = f.refactorType
	}
	return p
}

func requires(op api.Operation, field string) bool {
	for _, r := range op.Required {
		if r == field {
			return true
		}
	}
	return false
}

func defaultFramework(lang string) string {
	switch lang {
	case "python":
		return "pytest"
	case "javascript", "typescript":
		return "jest"
	case "go":
		return "testing"
	case "java", "kotlin":
		return "junit"
	case "rust":
		return "cargo test"
	case "ruby":
		return "rspec"
	case "csharp":
		return "xunit"
	case "php":
		return "phpunit"
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func runOperation(cmd *cobra.Command, op api.Operation, params api.Params, in input, noStream bool) error {
	if err := op.Validate(params); err != nil {
		return fmt.Errorf("%w (see kx %s --help)", err, op.Name)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	if info, _ := a.tracker.Snapshot(); info != nil {
		warnExhausted(errOut, *info, time.Now())
	}

	sp := ui.NewSpinnerTo(errOut, "Thinking...")
	sp.Start()

	start := time.Now()
	var m meter
	var text string
	if noStream {
		text, err = a.client.CompleteOperation(ctx, op, params)
		sp.Stop()
		if err == nil {
			m.observe(start, text)
			ui.RenderText(out, text, outputIndent)
		}
	} else {
		src := a.client.StreamChan(ctx, op.StreamPath(), params)
		text, err = ui.RenderStream(out, m.relay(src, sp, start), outputIndent)
		sp.Stop()
		// A cancelled stream may close without delivering its error.
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
	}
	elapsed := time.Since(start)

	outcome := api.OutcomeOf(err)
	if ctx.Err() != nil {
		outcome = api.Outcome{Kind: api.OutcomeConnectionFailure, Reason: "interrupted"}
	}
	a.tracker.Observe(ctx, err)
	record(a, op, params, in, text, outcome, m, elapsed)

	if outcome.Kind == api.OutcomeCompleted {
		return nil
	}
	if ctx.Err() != nil {
		color.New(color.FgHiBlack).Fprintln(errOut, "  interrupted")
		return errReported
	}
	a.logger.Debug().Err(err).Str("outcome", outcome.Kind.String()).Msg("request failed")
	ui.RenderOutcome(errOut, outcome, a.client.BaseURL())
	return errReported
}

// warnExhausted tells the user the last known quota is used up. A value
// whose reset time has passed is stale and says nothing.
func warnExhausted(w io.Writer, info api.QuotaInfo, now time.Time) {
	if !info.Exhausted() {
		return
	}
	if !info.ResetAt.IsZero() && !info.ResetAt.After(now) {
		return
	}
	msg := "  ⚠ Your daily quota was used up"
	if !info.ResetAt.IsZero() {
		msg += ", it resets " + ui.ResetIn(info.ResetAt.Time, now)
	}
	color.New(color.FgYellow).Fprintln(w, msg+". Sending anyway.")
}

// meter measures a response as it passes through.
type meter struct {
	firstChunk time.Duration
	chunks     int
}

func (m *meter) observe(start time.Time, text string) {
	if text == "" {
		return
	}
	m.firstChunk = time.Since(start)
	m.chunks = 1
}

// relay forwards src, stopping the spinner when the first delta arrives.
// m is only written before a delta is forwarded, so it is safe to read
// once the consumer has seen the final delta.
func (m *meter) relay(src <-chan api.StreamDelta, sp *ui.Spinner, start time.Time) <-chan api.StreamDelta {
	dst := make(chan api.StreamDelta)
	go func() {
		defer close(dst)
		first := true
		for d := range src {
			if first {
				sp.Stop()
				first = false
			}
			if d.Token != "" {
				if m.chunks == 0 {
					m.firstChunk = time.Since(start)
				}
				m.chunks++
			}
			dst <- d
		}
	}()
	return dst
}

func record(a *app, op api.Operation, params api.Params, in input, text string, outcome api.Outcome, m meter, elapsed time.Duration) {
	entryInput := in.text
	if in.path != "" && in.path != "-" {
		entryInput = in.path
	}
	if _, err := history.Save(history.Entry{
		Operation:  op.Name,
		Language:   params.Language,
		Input:      entryInput,
		Output:     text,
		Outcome:    outcome.Kind.String(),
		Chunks:     m.chunks,
		DurationMs: elapsed.Milliseconds(),
	}); err != nil {
		a.logger.Debug().Err(err).Msg("failed to save history")
	}

	if err := stats.Save(stats.Record{
		Operation:    op.Name,
		Language:     params.Language,
		Outcome:      outcome.Kind.String(),
		FirstChunkMs: m.firstChunk.Milliseconds(),
		TotalMs:      elapsed.Milliseconds(),
		Chunks:       m.chunks,
		Chars:        len(text),
	}); err != nil {
		a.logger.Debug().Err(err).Msg("failed to save stats")
	}
}
