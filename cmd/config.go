package cmd

import (
	"fmt"
	"net/url"

	"github.com/kodescruxx/kx-cli/internal/auth"
	"github.com/kodescruxx/kx-cli/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage kx configuration",
}

var setURLCmd = &cobra.Command{
	Use:   "set-url <url>",
	Short: "Set the backend URL (default: http://localhost:8000)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := url.Parse(args[0])
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid URL %q: expected http(s)://host[:port]", args[0])
		}
		if err := config.SetAPIURL(args[0]); err != nil {
			return fmt.Errorf("failed to save URL: %w", err)
		}
		fmt.Printf("Backend URL set to %s.\n", args[0])
		return nil
	},
}

var setRedisCmd = &cobra.Command{
	Use:   "set-redis <addr>",
	Short: `Share quota over Redis at host:port ("" to disable)`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetRedisAddr(args[0]); err != nil {
			return fmt.Errorf("failed to save Redis address: %w", err)
		}
		if args[0] == "" {
			fmt.Println("Redis quota sync disabled.")
			return nil
		}
		fmt.Printf("Redis quota sync set to %s.\n", args[0])
		return nil
	},
}

var setTokenEnvCmd = &cobra.Command{
	Use:   "set-token-env <VAR>",
	Short: "Set the environment variable read when no token is saved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetTokenEnv(args[0]); err != nil {
			return fmt.Errorf("failed to save token variable: %w", err)
		}
		fmt.Printf("Token variable set to $%s.\n", args[0])
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store := auth.NewStore()
		tok, _ := store.Load()

		redisAddr := cfg.RedisAddr
		if redisAddr == "" {
			redisAddr = "(disabled)"
		}
		fmt.Printf("Backend URL: %s\n", cfg.APIURL)
		fmt.Printf("Token:       %s\n", maskToken(tok))
		fmt.Printf("Token env:   $%s\n", cfg.TokenEnv)
		fmt.Printf("Redis sync:  %s\n", redisAddr)
		fmt.Printf("Config Dir:  %s\n", config.Dir())
		return nil
	},
}

func maskToken(tok string) string {
	switch {
	case tok == "":
		return "(not logged in)"
	case len(tok) <= 8:
		return "********"
	}
	return tok[:4] + "..." + tok[len(tok)-4:]
}

func init() {
	configCmd.AddCommand(setURLCmd)
	configCmd.AddCommand(setRedisCmd)
	configCmd.AddCommand(setTokenEnvCmd)
	configCmd.AddCommand(showCmd)
}
