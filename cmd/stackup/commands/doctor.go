package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/stackup/internal/host"
	"github.com/slok/stackup/internal/model"
)

type DoctorCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
}

// NewDoctorCommand returns the doctor command.
func NewDoctorCommand(rootCmd *RootCommand, app *kingpin.Application) *DoctorCommand {
	c := &DoctorCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("doctor", "Run preflight checks to verify the host can be provisioned.")
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c DoctorCommand) Name() string { return c.Cmd.FullCommand() }

func (c DoctorCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	detector, err := host.NewDetector(host.DetectorConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create host detector: %w", err)
	}

	h, err := detector.Detect(ctx)
	if err != nil {
		return fmt.Errorf("could not detect host: %w", err)
	}

	checks := detector.Check(ctx, h)
	if !c.rootCmd.NoHistory {
		checks = append(checks, c.checkHistory(ctx))
	}

	if err := newPrinter(c.format, c.rootCmd.Stdout).PrintChecks(h, checks); err != nil {
		return fmt.Errorf("could not print checks: %w", err)
	}

	summary, errCount := summarizeChecks(checks)
	if c.format == formatTable {
		fmt.Fprintf(c.rootCmd.Stdout, "\n%s\n", summary)
	}

	if errCount > 0 {
		return fmt.Errorf("preflight checks failed with %d error(s)", errCount)
	}

	return nil
}

func (c DoctorCommand) checkHistory(ctx context.Context) model.CheckResult {
	res := model.CheckResult{ID: "history"}

	repo, err := c.rootCmd.sqliteRepository(ctx)
	if err != nil {
		res.Status = model.CheckStatusError
		res.Message = err.Error()
		return res
	}
	defer repo.Close()

	version, dirty, err := repo.SchemaVersion(ctx)
	switch {
	case err != nil:
		res.Status = model.CheckStatusError
		res.Message = fmt.Sprintf("could not get schema version: %s", err)
	case dirty:
		res.Status = model.CheckStatusError
		res.Message = fmt.Sprintf("schema version %d is dirty", version)
	default:
		res.Status = model.CheckStatusOK
		res.Message = fmt.Sprintf("schema version %d", version)
	}

	return res
}

// summarizeChecks returns the human summary of the checks and the number of errors.
func summarizeChecks(checks []model.CheckResult) (string, int) {
	errCount, warnCount := 0, 0
	for _, r := range checks {
		switch r.Status {
		case model.CheckStatusError:
			errCount++
		case model.CheckStatusWarning:
			warnCount++
		}
	}

	if errCount == 0 && warnCount == 0 {
		return "All checks passed!", 0
	}

	var summary []string
	if errCount > 0 {
		summary = append(summary, fmt.Sprintf("%d error(s)", errCount))
	}
	if warnCount > 0 {
		summary = append(summary, fmt.Sprintf("%d warning(s)", warnCount))
	}

	return strings.Join(summary, ", "), errCount
}
