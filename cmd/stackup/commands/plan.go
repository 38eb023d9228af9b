package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/stackup/internal/plan"
)

type PlanCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	planPath string
	format   string
}

// NewPlanCommand returns the plan command.
func NewPlanCommand(rootCmd *RootCommand, app *kingpin.Application) *PlanCommand {
	c := &PlanCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("plan", "Validate a plan and show its steps without running them.")
	c.Cmd.Arg("path", "Path to the plan YAML file.").Required().StringVar(&c.planPath)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c PlanCommand) Name() string { return c.Cmd.FullCommand() }

func (c PlanCommand) Run(ctx context.Context) error {
	p, err := loadPlan(ctx, c.planPath)
	if err != nil {
		return err
	}

	if err := plan.Validate(p); err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}

	if err := newPrinter(c.format, c.rootCmd.Stdout).PrintPlan(p); err != nil {
		return fmt.Errorf("could not print plan: %w", err)
	}

	return nil
}
