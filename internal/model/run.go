package model

import "time"

// RunStatus represents the state of a provisioning run.
type RunStatus string

const (
	// RunStatusRunning indicates the run is executing steps.
	RunStatusRunning RunStatus = "running"
	// RunStatusSucceeded indicates all the steps succeeded.
	RunStatusSucceeded RunStatus = "succeeded"
	// RunStatusFailed indicates a step failed and the run was aborted.
	RunStatusFailed RunStatus = "failed"
	// RunStatusCanceled indicates the user canceled the run.
	RunStatusCanceled RunStatus = "canceled"
)

// Run is a single execution of a plan.
type Run struct {
	ID          string
	Plan        string
	Status      RunStatus
	CurrentStep int
	TotalSteps  int
	Error       string
	CreatedAt   time.Time
	FinishedAt  *time.Time
}

// RunResult is the outcome of a pipeline run.
type RunResult struct {
	Succeeded  bool
	LastStep   int
	LastStatus StepStatus
	Err        error
}

// RunStatus maps the result into the persisted run status.
func (r RunResult) RunStatus() RunStatus {
	switch {
	case r.Succeeded:
		return RunStatusSucceeded
	case r.LastStatus == StepStatusCanceled:
		return RunStatusCanceled
	default:
		return RunStatusFailed
	}
}
