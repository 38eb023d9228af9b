package printer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/slok/stackup/internal/model"
)

// TablePrinter prints information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintRuns prints runs in a table format.
func (t *TablePrinter) PrintRuns(runs []model.Run) error {
	if len(runs) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header
	fmt.Fprintln(tw, "ID\tPLAN\tSTATUS\tSTEP\tCREATED")

	// Print rows
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Plan, r.Status, stepProgress(r), TimeAgo(r.CreatedAt))
	}

	return nil
}

// PrintRun prints the detailed status of a run.
func (t *TablePrinter) PrintRun(run model.Run, steps []model.StepRecord, procs []model.ManagedProcess) error {
	fmt.Fprintf(t.writer, "ID:         %s\n", run.ID)
	fmt.Fprintf(t.writer, "Plan:       %s\n", run.Plan)
	fmt.Fprintf(t.writer, "Status:     %s\n", run.Status)
	fmt.Fprintf(t.writer, "Step:       %s\n", stepProgress(run))
	fmt.Fprintf(t.writer, "Created:    %s\n", FormatTimestamp(run.CreatedAt))

	if run.FinishedAt != nil {
		fmt.Fprintf(t.writer, "Finished:   %s\n", FormatTimestamp(*run.FinishedAt))
		fmt.Fprintf(t.writer, "Duration:   %s\n", FormatDuration(run.FinishedAt.Sub(run.CreatedAt)))
	}

	if run.Error != "" {
		fmt.Fprintf(t.writer, "Error:      %s\n", run.Error)
	}

	if len(steps) > 0 {
		fmt.Fprintln(t.writer)
		tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tSTEP\tSTATUS\tERROR")
		for _, s := range steps {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Index+1, s.Description, s.Status, s.Error)
		}
		tw.Flush()
	}

	if len(procs) > 0 {
		fmt.Fprintln(t.writer)
		return t.PrintProcesses(procs)
	}

	return nil
}

// PrintPlan prints the steps of a plan and what each one does.
func (t *TablePrinter) PrintPlan(plan model.Plan) error {
	fmt.Fprintf(t.writer, "Plan:       %s\n", plan.Name)
	if plan.Description != "" {
		fmt.Fprintf(t.writer, "About:      %s\n", plan.Description)
	}
	fmt.Fprintf(t.writer, "Steps:      %d\n\n", len(plan.Steps))

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "#\tSTEP\tACTIONS\tWHEN")
	for i, s := range plan.Steps {
		when := s.When
		if when == "" {
			when = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, s.Name, stepActions(s), when)
	}

	return nil
}

// PrintChecks prints the detected host and its requirement checks.
func (t *TablePrinter) PrintChecks(host model.Host, checks []model.CheckResult) error {
	version := host.DistroVersion
	if version == "" {
		version = "-"
	}
	fmt.Fprintf(t.writer, "Distro:     %s %s\n", host.Distro, version)
	fmt.Fprintf(t.writer, "Packages:   %s\n", host.PackageManager)
	fmt.Fprintf(t.writer, "User:       %s\n", host.User)
	fmt.Fprintf(t.writer, "Root:       %t\n\n", host.Root)

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "CHECK\tSTATUS\tMESSAGE")
	for _, c := range checks {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Status, c.Message)
	}

	return nil
}

// PrintProcesses prints background processes in a table format.
func (t *TablePrinter) PrintProcesses(procs []model.ManagedProcess) error {
	if len(procs) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "PID\tCOMMAND\tLOG\tSTARTED")
	for _, p := range procs {
		logPath := p.LogPath
		if logPath == "" {
			logPath = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.PID, p.Command, logPath, TimeAgo(p.StartedAt))
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func stepProgress(r model.Run) string {
	if r.CurrentStep < 0 {
		return fmt.Sprintf("-/%d", r.TotalSteps)
	}
	return fmt.Sprintf("%d/%d", r.CurrentStep+1, r.TotalSteps)
}

func stepActions(s model.PlanStep) string {
	var actions []string
	if n := len(s.Prompts); n > 0 {
		actions = append(actions, fmt.Sprintf("%d prompts", n))
	}
	if n := len(s.Commands); n > 0 {
		actions = append(actions, fmt.Sprintf("%d commands", n))
	}
	if s.Env != nil {
		actions = append(actions, "env")
	}
	if s.Cron != nil {
		actions = append(actions, "cron")
	}
	if n := len(s.Services); n > 0 {
		actions = append(actions, fmt.Sprintf("%d services", n))
	}
	return strings.Join(actions, ", ")
}
