package model

import (
	"fmt"
	"time"
)

// DefaultCommandDelay is the initial retry delay used when a request doesn't set one.
const DefaultCommandDelay = 5 * time.Second

// CommandRequest describes a single shell command execution.
type CommandRequest struct {
	// Command is the shell command line, opaque to the executor.
	Command string
	// Privileged runs the command through the elevation prefix.
	Privileged bool
	// Retries is the maximum number of attempts (at least 1).
	Retries int
	// InitialDelay is the wait before the first retry, doubled on every retry.
	InitialDelay   time.Duration
	SuccessMessage string
	FailureMessage string
	// Input lines written to the command stdin. Nil means no input.
	Input []string
	// IgnoreFailure downgrades a failed command to a warning.
	IgnoreFailure bool
	// Dir is the working directory, current one if empty.
	Dir string
	// Secrets are values masked on every reported line.
	Secrets []string
}

// Validate validates the command request.
func (c CommandRequest) Validate() error {
	if c.Command == "" {
		return fmt.Errorf("command is required: %w", ErrNotValid)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries can't be negative: %w", ErrNotValid)
	}
	if c.InitialDelay < 0 {
		return fmt.Errorf("initial delay can't be negative: %w", ErrNotValid)
	}
	return nil
}

// CommandResult is the outcome of a command execution.
type CommandResult struct {
	ExitCode  int
	Succeeded bool
	Attempts  int
}
