package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"daycard/internal/auth"
	"daycard/internal/config"
	appLog "daycard/internal/log"
)

type AuthCmd struct {
	flags *Flags
}

// NewAuthCmd creates the login and logout commands
func NewAuthCmd(flags *Flags) *AuthCmd {
	return &AuthCmd{flags: flags}
}

// Register adds login and logout to the application
func (cmd *AuthCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands,
		&cli.Command{
			Name:      "login",
			Usage:     "Sign in to the configured calendar provider",
			UsageText: "daycard login",
			Description: `Runs the OAuth authorization-code flow in the browser and caches the
token for 'daycard serve'. Requires auth.mode: oauth and a client_id.`,
			Action: cmd.login,
		},
		&cli.Command{
			Name:      "logout",
			Usage:     "Forget the cached token",
			UsageText: "daycard logout",
			Action:    cmd.logout,
		},
	)

	return root
}

func (cmd *AuthCmd) login(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	if cfg.Auth.Mode != config.AuthOAuth {
		return errors.New("auth.mode is not \"oauth\"; nothing to sign in to")
	}

	out := c.Root().Writer
	flow, err := auth.NewOAuthFlow(cfg.Auth, func(url string) {
		fmt.Fprintf(out, "Open this URL to sign in:\n\n  %s\n\n", url)
	})
	if err != nil {
		return err
	}

	mgr := auth.NewManager(auth.NewFileCache(cmd.flags.tokenPath()), flow)
	if err := mgr.SignOut(); err != nil {
		appLog.Warn("failed to clear previous token", "error", err.Error())
	}
	if _, err := mgr.Token(ctx); err != nil {
		return fmt.Errorf("sign in: %w", err)
	}

	fmt.Fprintf(out, "Signed in to %s. Token cached at %s\n", cfg.Auth.Provider, cmd.flags.tokenPath())
	return nil
}

func (cmd *AuthCmd) logout(_ context.Context, c *cli.Command) error {
	mgr := auth.NewManager(auth.NewFileCache(cmd.flags.tokenPath()), nil)
	if err := mgr.SignOut(); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	fmt.Fprintln(c.Root().Writer, "Signed out")
	return nil
}
