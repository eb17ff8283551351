package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/kodescruxx/kx-cli/internal/api"
	"github.com/kodescruxx/kx-cli/internal/config"
	"github.com/kodescruxx/kx-cli/internal/project"
	"github.com/kodescruxx/kx-cli/internal/quota"
	"github.com/kodescruxx/kx-cli/internal/ui"
	"github.com/spf13/cobra"
)

// errWarn marks a check that passed with a caveat.
type errWarn string

func (e errWarn) Error() string { return string(e) }

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and backend connectivity",
	Long: `Run a health check on your kx setup.
Verifies the config directory, backend reachability, your token,
quota, optional Redis sync and the project language detection.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		green := color.New(color.FgGreen)
		red := color.New(color.FgRed)
		yellow := color.New(color.FgYellow)
		dim := color.New(color.FgHiBlack)
		cyan := color.New(color.FgCyan, color.Bold)

		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		cyan.Fprintf(os.Stderr, "\n  🩺 kx doctor\n\n")

		pass, fail, warn := 0, 0, 0

		check := func(name string, fn func() (string, error)) {
			detail, err := fn()
			var w errWarn
			switch {
			case errors.As(err, &w):
				yellow.Fprintf(os.Stderr, "  ⚠ %s\n", name)
				dim.Fprintf(os.Stderr, "    %s\n", w)
				warn++
			case err != nil:
				red.Fprintf(os.Stderr, "  ✗ %s\n", name)
				dim.Fprintf(os.Stderr, "    %s\n", err.Error())
				fail++
			default:
				green.Fprintf(os.Stderr, "  ✓ %s", name)
				if detail != "" {
					dim.Fprintf(os.Stderr, ": %s", detail)
				}
				fmt.Fprintln(os.Stderr)
				pass++
			}
		}

		// 1. Config directory
		check("Config directory", func() (string, error) {
			dir := config.Dir()
			info, err := os.Stat(dir)
			if err != nil {
				return "", errWarn("~/.kx not found, it will be created on first use")
			}
			if !info.IsDir() {
				return "", fmt.Errorf("~/.kx exists but is not a directory")
			}
			return dir, nil
		})

		// 2. Backend reachable
		backendUp := false
		check("Backend reachable", func() (string, error) {
			hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			h, err := a.client.Health(hctx)
			if err != nil {
				return "", fmt.Errorf("%s: %v", a.client.BaseURL(), err)
			}
			backendUp = true
			detail := a.client.BaseURL()
			if h.Status != "" {
				detail += " (" + h.Status + ")"
			}
			return detail, nil
		})

		// 3. Token
		tok, _ := a.tokens.Token(ctx)
		check("Access token", func() (string, error) {
			switch {
			case a.session.Authenticated():
				return "saved in " + a.store.Path(), nil
			case tok != "":
				return "from $" + a.cfg.TokenEnv, nil
			}
			return "", errWarn("not logged in, run: kx login")
		})

		// 4. Quota
		if tok != "" && backendUp {
			check("Quota", func() (string, error) {
				if err := a.tracker.Refresh(ctx); err != nil {
					out := api.OutcomeOf(err)
					if out.Kind == api.OutcomeProtocolFailure && out.StatusCode == 401 {
						return "", fmt.Errorf("token rejected, run: kx login")
					}
					return "", err
				}
				info, _ := a.tracker.Snapshot()
				if info == nil {
					return "", errWarn("unknown")
				}
				if info.Exhausted() {
					return "", errWarn("exhausted, resets " + ui.ResetIn(info.ResetAt.Time, time.Now()))
				}
				return ui.FormatQuota(*info, time.Now()), nil
			})
		}

		// 5. Redis sync
		if a.cfg.RedisAddr != "" {
			check("Redis quota sync", func() (string, error) {
				rctx, cancel := context.WithTimeout(ctx, redisDialTimeout)
				defer cancel()
				rdb, err := quota.DialRedis(rctx, a.cfg.RedisAddr)
				if err != nil {
					return "", errWarn(err.Error())
				}
				rdb.Close()
				return a.cfg.RedisAddr, nil
			})
		}

		// 6. Project language
		check("Project language", func() (string, error) {
			info := project.DetectCwd()
			if info.Language == "" {
				return "", errWarn("not detected here, pass --lang to operations")
			}
			return info.Language + " (" + strings.Join(info.ConfigFiles, ", ") + ")", nil
		})

		// 7. OS and arch
		check("System info", func() (string, error) {
			return fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH), nil
		})

		// Summary
		fmt.Fprintln(os.Stderr)
		total := pass + fail + warn
		if fail == 0 && warn == 0 {
			green.Fprintf(os.Stderr, "  All %d checks passed. You're good to go.\n\n", total)
		} else if fail == 0 {
			yellow.Fprintf(os.Stderr, "  %d passed, %d warnings. Everything works, but some things could be better.\n\n", pass, warn)
		} else {
			red.Fprintf(os.Stderr, "  %d passed, %d failed, %d warnings. Fix the failures above.\n\n", pass, fail, warn)
		}

		return nil
	},
}
