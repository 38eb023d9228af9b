package storage

import (
	"context"

	"github.com/slok/stackup/internal/model"
)

// RunRepository is the interface for run persistence.
type RunRepository interface {
	CreateRun(ctx context.Context, r model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context) ([]model.Run, error)
	UpdateRun(ctx context.Context, r model.Run) error
}

// StepRepository is the interface for the persistence of the steps of a run.
type StepRepository interface {
	// AddSteps adds the steps of a run as pending, in order.
	AddSteps(ctx context.Context, runID string, descriptions []string) error
	UpdateStep(ctx context.Context, runID string, index int, status model.StepStatus, errMsg string) error
	ListSteps(ctx context.Context, runID string) ([]model.StepRecord, error)
}

// ProcessRepository is the interface for the background processes left running by a run.
type ProcessRepository interface {
	SaveProcesses(ctx context.Context, runID string, ps []model.ManagedProcess) error
	ListProcesses(ctx context.Context, runID string) ([]model.ManagedProcess, error)
	DeleteProcesses(ctx context.Context, runID string) error
}

// Repository groups all the persistence of the runs.
type Repository interface {
	RunRepository
	StepRepository
	ProcessRepository
}
