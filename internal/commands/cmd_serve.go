package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"daycard/internal/app"
	appLog "daycard/internal/log"
)

type ServeCmd struct {
	flags *Flags

	// flags
	listen string
}

// NewServeCmd creates a new serve command
func NewServeCmd(flags *Flags) *ServeCmd {
	return &ServeCmd{flags: flags}
}

// Register adds the serve command to the application
func (cmd *ServeCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Serve the card and run reminders",
		UsageText: "daycard serve [--listen addr]",
		Description: `Serves the daily card, its JSON API and the notification websocket, and
checks for upcoming events once a minute.

Remote calendars and task lists are used only after 'daycard login'.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "listen",
				Usage:       "HTTP listen address (overrides config)",
				Sources:     cli.EnvVars("DAYCARD_LISTEN"),
				Destination: &cmd.listen,
			},
		},
		Action: cmd.Run,
	})

	return root
}

// Run is also the root command's default action.
func (cmd *ServeCmd) Run(ctx context.Context, _ *cli.Command) error {
	cfg := cmd.flags.Config
	if cmd.listen != "" {
		cfg.Listen = cmd.listen
	}

	a, err := app.New(cfg, app.Options{TokenPath: cmd.flags.tokenPath()})
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appLog.Info("daycard starting",
		"listen", cfg.Listen,
		"timezone", a.Location.String(),
		"calendar", a.Events.SourceName(),
		"tasks", cfg.Tasks.Source,
		"notifications", cfg.Notifications.Mode,
	)
	if err := a.Run(ctx); err != nil {
		return err
	}
	appLog.Info("daycard exiting")
	return nil
}
