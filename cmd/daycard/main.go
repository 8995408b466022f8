package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"daycard/internal/commands"
	"daycard/internal/config"
	appLog "daycard/internal/log"
)

// Populated at build-time via -ldflags.
var version = "dev"

func main() {
	var logCloser func()

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "daycard",
		Usage:     "A daily calendar and task card with meeting reminders",
		UsageText: "daycard [global options] command [command options]",
		Description: `daycard shows today's events and a short task list on a small web card,
and reminds you ten minutes before each event starts.

Run 'daycard' with no arguments to serve the card.`,
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Sources:     cli.EnvVars("DAYCARD_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to a JSON log file (defaults to stderr)",
				Sources:     cli.EnvVars("DAYCARD_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("DAYCARD_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "token",
				Usage:       "path to the cached OAuth token",
				Sources:     cli.EnvVars("DAYCARD_TOKEN"),
				Value:       commands.DefaultTokenPath(),
				Destination: &flags.TokenPath,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			closer, err := appLog.Setup(flags.LogLevel, flags.LogFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	serveCmd := commands.NewServeCmd(flags)

	app = serveCmd.Register(app)
	app = commands.NewAgendaCmd(flags).Register(app)
	app = commands.NewAuthCmd(flags).Register(app)
	app = commands.NewSnapshotCmd(flags).Register(app)

	app.Action = func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() > 0 {
			return fmt.Errorf("unknown command %q. Run 'daycard --help' for usage", c.Args().First())
		}
		return serveCmd.Run(ctx, c)
	}

	exitCode := 0
	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		exitCode = 1
	}
	os.Exit(exitCode)
}
