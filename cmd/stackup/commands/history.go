package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/stackup/internal/app/history"
	"github.com/slok/stackup/internal/model"
)

type HistoryCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	runID        string
	statusFilter string
	limit        int
	format       string
}

// NewHistoryCommand returns the history command.
func NewHistoryCommand(rootCmd *RootCommand, app *kingpin.Application) *HistoryCommand {
	c := &HistoryCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("history", "List the provisioning runs or show one of them.")
	c.Cmd.Flag("run", "Show the steps and background services of this run ID.").StringVar(&c.runID)
	c.Cmd.Flag("status", "Filter by status (running, succeeded, failed, canceled).").StringVar(&c.statusFilter)
	c.Cmd.Flag("limit", "Maximum number of runs to list, 0 lists all of them.").Default("20").IntVar(&c.limit)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c HistoryCommand) Name() string { return c.Cmd.FullCommand() }

func (c HistoryCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	statusFilter, err := parseRunStatus(c.statusFilter)
	if err != nil {
		return err
	}

	repo, err := c.rootCmd.sqliteRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	svc, err := history.NewService(history.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	p := newPrinter(c.format, c.rootCmd.Stdout)

	if c.runID != "" {
		detail, err := svc.Get(ctx, c.runID)
		if err != nil {
			return fmt.Errorf("could not get run: %w", err)
		}
		return p.PrintRun(detail.Run, detail.Steps, detail.Processes)
	}

	runs, err := svc.List(ctx, history.ListRequest{
		StatusFilter: statusFilter,
		Limit:        c.limit,
	})
	if err != nil {
		return fmt.Errorf("could not list runs: %w", err)
	}

	return p.PrintRuns(runs)
}

func parseRunStatus(s string) (*model.RunStatus, error) {
	if s == "" {
		return nil, nil
	}

	status := model.RunStatus(strings.ToLower(s))
	switch status {
	case model.RunStatusRunning, model.RunStatusSucceeded, model.RunStatusFailed, model.RunStatusCanceled:
		return &status, nil
	default:
		return nil, fmt.Errorf("invalid status filter: %s (must be: running, succeeded, failed, canceled): %w", s, model.ErrNotValid)
	}
}
