package model

import "time"

// StepStatus represents the state of a pipeline step.
type StepStatus string

const (
	// StepStatusPending indicates the step has not started yet.
	StepStatusPending StepStatus = "pending"
	// StepStatusActive indicates the step is running.
	StepStatusActive StepStatus = "active"
	// StepStatusSuccess indicates the step ended successfully.
	StepStatusSuccess StepStatus = "success"
	// StepStatusError indicates the step failed.
	StepStatusError StepStatus = "error"
	// StepStatusCanceled indicates the step was canceled by the user.
	StepStatusCanceled StepStatus = "canceled"
)

// IsFinal returns true when the status can't transition anymore.
func (s StepStatus) IsFinal() bool {
	switch s {
	case StepStatusSuccess, StepStatusError, StepStatusCanceled:
		return true
	}
	return false
}

// CanTransitionTo returns true if a step in s status can move to next.
func (s StepStatus) CanTransitionTo(next StepStatus) bool {
	switch s {
	case StepStatusPending:
		return next == StepStatusActive || next == StepStatusCanceled
	case StepStatusActive:
		return next.IsFinal()
	}
	return false
}

// Step is a unit of the pipeline.
type Step struct {
	Index       int
	Description string
	Status      StepStatus
}

// StepRecord is the persisted state of a step that belongs to a run.
type StepRecord struct {
	ID          string
	RunID       string
	Index       int
	Description string
	Status      StepStatus
	Error       string
	UpdatedAt   time.Time
}
