package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/kodescruxx/kx-cli/internal/api"
	"github.com/kodescruxx/kx-cli/internal/ui"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login [token]",
	Short: "Save your KodesCruxx access token",
	Long: `Save the access token used for every request. Without an argument
the token is read from stdin, so it stays out of your shell history:

  kx login < token.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token := ""
		if len(args) == 1 {
			token = args[0]
		} else {
			fmt.Fprint(os.Stderr, "Token: ")
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read token: %w", err)
			}
			token = line
		}
		token = strings.TrimSpace(token)

		ctx := cmd.Context()
		a, err := loginAs(ctx, token)
		if err != nil {
			return err
		}
		defer a.Close()

		sp := ui.NewSpinner("Checking quota...")
		sp.Start()
		err = a.tracker.Refresh(ctx)
		if err != nil {
			sp.Fail("Token saved, but the quota check failed")
			out := api.OutcomeOf(err)
			if !errors.Is(err, api.ErrNotAuthenticated) {
				ui.RenderOutcome(os.Stderr, out, a.client.BaseURL())
			}
			return nil
		}
		sp.Success("Logged in")

		if info, _ := a.tracker.Snapshot(); info != nil {
			color.New(color.FgHiBlack).Fprintf(os.Stderr, "    Quota: %s\n", ui.FormatQuota(*info, time.Now()))
		}
		return nil
	},
}

// loginAs saves token and returns an app built around it. Quota sync is
// keyed by token, so an app built before the save would publish to the
// previous token's channel.
func loginAs(ctx context.Context, token string) (*app, error) {
	a, err := newApp(ctx)
	if err != nil {
		return nil, err
	}
	err = a.session.Login(token)
	a.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}
	return newApp(ctx)
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.session.Logout(); err != nil {
			return fmt.Errorf("failed to remove token: %w", err)
		}
		_ = a.tracker.Refresh(ctx)

		fmt.Println("Logged out.")
		if tok, _ := a.tokens.Token(ctx); tok != "" {
			color.New(color.FgYellow).Fprintf(os.Stderr, "  ⚠ $%s is still set and will be used for requests.\n", a.cfg.TokenEnv)
		}
		return nil
	},
}
