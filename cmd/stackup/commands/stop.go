package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/stackup/internal/app/stop"
	"github.com/slok/stackup/internal/printer"
	"github.com/slok/stackup/internal/report"
)

type StopCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	runID       string
	killTimeout time.Duration
}

// NewStopCommand returns the stop command.
func NewStopCommand(rootCmd *RootCommand, app *kingpin.Application) *StopCommand {
	c := &StopCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("stop", "Stop the background services left by a detached run.")
	c.Cmd.Flag("run", "Run ID, defaults to the latest run.").StringVar(&c.runID)
	c.Cmd.Flag("kill-timeout", "Grace period before killing the services.").Default("5s").DurationVar(&c.killTimeout)

	return c
}

func (c StopCommand) Name() string { return c.Cmd.FullCommand() }

func (c StopCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	repo, err := c.rootCmd.sqliteRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	svc, err := stop.NewService(stop.ServiceConfig{
		Repository:  repo,
		KillTimeout: c.killTimeout,
		Reporter:    report.NewLogReporter(logger),
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	procs, err := svc.Run(ctx, stop.Request{RunID: c.runID})
	if err != nil {
		return fmt.Errorf("could not stop run: %w", err)
	}

	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	return p.PrintMessage(fmt.Sprintf("Stopped %d background services", len(procs)))
}
