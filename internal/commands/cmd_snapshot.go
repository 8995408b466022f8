package commands

import (
	"context"
	"fmt"
	"net"

	"github.com/urfave/cli/v3"

	"daycard/internal/app"
	"daycard/internal/capture"
)

type SnapshotCmd struct {
	flags *Flags

	// flags
	output  string
	width   int
	height  int
}

// NewSnapshotCmd creates a new snapshot command
func NewSnapshotCmd(flags *Flags) *SnapshotCmd {
	return &SnapshotCmd{flags: flags}
}

// Register adds the snapshot command to the application
func (cmd *SnapshotCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:      "snapshot",
		Usage:     "Render today's card to a PNG",
		UsageText: "daycard snapshot [--output card.png]",
		Description: `Serves the card on a loopback port and captures it with headless
Chromium. A Chrome or Chromium binary must be installed.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "PNG output path",
				Value:       "card.png",
				Destination: &cmd.output,
			},
			&cli.IntFlag{
				Name:        "width",
				Usage:       "viewport width in pixels",
				Value:       capture.DefaultWidth,
				Destination: &cmd.width,
			},
			&cli.IntFlag{
				Name:        "height",
				Usage:       "viewport height in pixels",
				Value:       capture.DefaultHeight,
				Destination: &cmd.height,
			},
		},
		Action: cmd.run,
	})

	return root
}

func (cmd *SnapshotCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	a, err := app.New(cfg, app.Options{TokenPath: cmd.flags.tokenPath()})
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	a.Load(ctx)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	serveCtx, cancel := context.WithCancel(ctx)
	served := make(chan error, 1)
	go func() { served <- a.Web.Serve(serveCtx, ln) }()

	opts := capture.Options{
		URL:        "http://" + ln.Addr().String() + "/",
		OutputPath: cmd.output,
		Width:      cmd.width,
		Height:     cmd.height,
	}
	if cfg.BasicAuth != nil {
		opts.Username, opts.Password = cfg.BasicAuth.Username, cfg.BasicAuth.Password
	}
	captureErr := capture.CaptureDashboardPNG(ctx, opts)

	cancel()
	if err := <-served; err != nil {
		return fmt.Errorf("serve card: %w", err)
	}
	if captureErr != nil {
		return captureErr
	}

	fmt.Fprintf(c.Root().Writer, "Wrote %s\n", cmd.output)
	return nil
}
