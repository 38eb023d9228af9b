package printer

import "github.com/slok/stackup/internal/model"

// Printer knows how to print runs, plans and host information in different formats.
type Printer interface {
	PrintRuns(runs []model.Run) error
	PrintRun(run model.Run, steps []model.StepRecord, procs []model.ManagedProcess) error
	PrintPlan(plan model.Plan) error
	PrintChecks(host model.Host, checks []model.CheckResult) error
	PrintProcesses(procs []model.ManagedProcess) error
	PrintMessage(msg string) error
}
