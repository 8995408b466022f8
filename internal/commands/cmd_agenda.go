package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"daycard/internal/app"
	"daycard/internal/model"
)

type AgendaCmd struct {
	flags *Flags
}

// NewAgendaCmd creates a new agenda command
func NewAgendaCmd(flags *Flags) *AgendaCmd {
	return &AgendaCmd{flags: flags}
}

// Register adds the agenda command to the application
func (cmd *AgendaCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:      "agenda",
		Usage:     "Print today's events and tasks",
		UsageText: "daycard agenda",
		Action:    cmd.run,
	})

	return root
}

func (cmd *AgendaCmd) run(ctx context.Context, c *cli.Command) error {
	a, err := app.New(cmd.flags.Config, app.Options{TokenPath: cmd.flags.tokenPath()})
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	a.Load(ctx)

	out := c.Root().Writer
	fmt.Fprintf(out, "%s\n\n", a.Events.Day().Format("Monday, January 2"))

	events := a.Events.ListTodaysEvents()
	if len(events) == 0 {
		fmt.Fprintln(out, "No events today")
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, ev := range events {
			online := ""
			if ev.Online {
				online = "online"
			}
			fmt.Fprintf(w, "%s - %s\t%s\t%s\t%s\n",
				ev.Start.In(a.Location).Format("15:04"),
				ev.End.In(a.Location).Format("15:04"),
				ev.Title, ev.Category, online)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	tasks := a.Tasks.List()
	fmt.Fprintf(out, "\nTasks (%d remaining)\n", a.Tasks.Remaining())
	for _, t := range tasks {
		fmt.Fprintf(out, "  %s %s %s\n", checkbox(t), t.Title, priorityMark(t.Priority))
	}
	return nil
}

func checkbox(t model.Task) string {
	if t.Completed {
		return "[x]"
	}
	return "[ ]"
}

func priorityMark(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "!!"
	case model.PriorityMedium:
		return "!"
	default:
		return ""
	}
}
