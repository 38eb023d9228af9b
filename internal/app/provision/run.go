package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/slok/stackup/internal/input"
	"github.com/slok/stackup/internal/log"
	"github.com/slok/stackup/internal/model"
	"github.com/slok/stackup/internal/pipeline"
	"github.com/slok/stackup/internal/report"
	"github.com/slok/stackup/internal/session"
	"github.com/slok/stackup/internal/storage"
)

// Run is a prepared provisioning run.
type Run struct {
	run      model.Run
	host     model.Host
	pipeline *pipeline.Pipeline
	bridge   *input.Bridge
	session  *session.Session
	repo     storage.Repository
	logger   log.Logger
}

// ID returns the run ID.
func (r *Run) ID() string { return r.run.ID }

// Host returns the detected host.
func (r *Run) Host() model.Host { return r.host }

// Input returns the bridge the foreground answers the input requests from.
func (r *Run) Input() *input.Bridge { return r.bridge }

// Steps returns a snapshot of the steps status.
func (r *Run) Steps() []model.Step { return r.pipeline.Steps() }

// Processes returns the background services that are still alive.
func (r *Run) Processes() []model.ManagedProcess { return r.pipeline.Processes() }

// SetCredential sets the privileged credential of the run. It's kept in memory only.
func (r *Run) SetCredential(credential string) { r.pipeline.SetCredential(credential) }

// Cancel requests the run cancellation.
func (r *Run) Cancel() { r.pipeline.Cancel() }

// Run executes the pipeline and stores the run outcome.
func (r *Run) Run(ctx context.Context) (*model.RunResult, error) {
	res, runErr := r.pipeline.Run(ctx)
	if res == nil {
		return nil, runErr
	}

	now := time.Now().UTC()
	run := r.run
	run.Status = res.RunStatus()
	run.CurrentStep = res.LastStep
	run.FinishedAt = &now
	if res.Err != nil {
		run.Error = report.Redact(res.Err.Error(), r.session.Secrets())
	}

	// The outcome is stored even if the run context was canceled.
	if err := r.repo.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
		r.logger.Errorf("Could not store run outcome: %s", err)
	}
	r.run = run

	return res, runErr
}

// Teardown terminates the background services of the run.
func (r *Run) Teardown(ctx context.Context) error {
	if err := r.pipeline.Teardown(); err != nil {
		return err
	}
	if err := r.repo.DeleteProcesses(ctx, r.run.ID); err != nil {
		return fmt.Errorf("could not delete background processes: %w", err)
	}
	return nil
}

// Detach stores the background services that are still alive so they can be
// stopped later, and returns them.
func (r *Run) Detach(ctx context.Context) ([]model.ManagedProcess, error) {
	procs := r.pipeline.Processes()
	secrets := r.session.Secrets()
	for i := range procs {
		procs[i].Command = report.Redact(procs[i].Command, secrets)
	}

	if err := r.repo.SaveProcesses(ctx, r.run.ID, procs); err != nil {
		return nil, fmt.Errorf("could not store background processes: %w", err)
	}

	r.logger.Infof("Detached %d background processes", len(procs))
	return procs, nil
}
