// Package pipeline runs an ordered list of steps, tracking their status and
// cleaning up the background processes when the run doesn't succeed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/slok/stackup/internal/log"
	"github.com/slok/stackup/internal/model"
	"github.com/slok/stackup/internal/process"
	"github.com/slok/stackup/internal/report"
	"github.com/slok/stackup/internal/session"
)

// CommandRunner runs the shell commands of the steps.
type CommandRunner interface {
	Run(ctx context.Context, req model.CommandRequest) (*model.CommandResult, error)
	Output(ctx context.Context, command string) (out string, exitCode int, err error)
}

// InputRequester asks the foreground actor for values.
type InputRequester interface {
	Request(ctx context.Context, req model.InputRequest) (string, error)
}

// RunContext is what a step receives to do its work.
type RunContext struct {
	Index     int
	Commands  CommandRunner
	Input     InputRequester
	Processes *process.Registry
	Reporter  report.Reporter
	Session   *session.Session
	Logger    log.Logger
}

// StepRunner is the interface that all steps must implement.
type StepRunner interface {
	RunStep(ctx context.Context, rc RunContext) error
}

// StepFunc is a convenience adapter to allow the use of ordinary functions as steps.
type StepFunc func(ctx context.Context, rc RunContext) error

func (f StepFunc) RunStep(ctx context.Context, rc RunContext) error { return f(ctx, rc) }

// Step is a described unit of work of the pipeline.
type Step struct {
	Description string
	Runner      StepRunner
}

// Config is the configuration for the pipeline.
type Config struct {
	Steps    []Step
	Commands CommandRunner
	Input    InputRequester
	Session  *session.Session
	Registry *process.Registry
	Reporter report.Reporter
	Logger   log.Logger
}

func (c *Config) defaults() error {
	if c.Commands == nil {
		return fmt.Errorf("commands runner is required")
	}
	for i, s := range c.Steps {
		if s.Runner == nil {
			return fmt.Errorf("step %d runner is required", i)
		}
	}
	if c.Input == nil {
		c.Input = noInput{}
	}
	if c.Session == nil {
		c.Session = session.New()
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "pipeline.Pipeline"})
	if c.Reporter == nil {
		c.Reporter = report.Noop
	}
	if c.Registry == nil {
		r, err := process.NewRegistry(process.RegistryConfig{Logger: c.Logger})
		if err != nil {
			return fmt.Errorf("could not create process registry: %w", err)
		}
		c.Registry = r
	}
	return nil
}

// Pipeline runs its steps sequentially. A pipeline runs only once.
type Pipeline struct {
	steps    []Step
	commands CommandRunner
	input    InputRequester
	session  *session.Session
	registry *process.Registry
	reporter report.Reporter
	logger   log.Logger

	running atomic.Bool

	mu       sync.Mutex
	statuses []model.Step
	ran      bool
	cancel   context.CancelFunc
}

// New returns a new pipeline with all its steps pending.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	statuses := make([]model.Step, 0, len(cfg.Steps))
	for i, s := range cfg.Steps {
		statuses = append(statuses, model.Step{Index: i, Description: s.Description, Status: model.StepStatusPending})
	}

	return &Pipeline{
		steps:    cfg.Steps,
		commands: cfg.Commands,
		input:    cfg.Input,
		session:  cfg.Session,
		registry: cfg.Registry,
		reporter: cfg.Reporter,
		logger:   cfg.Logger,
		statuses: statuses,
	}, nil
}

// Run executes the steps in order, stopping at the first failed or canceled
// step. The returned result is always set except when a run is already in
// progress, in that case model.ErrRunInProgress is returned.
func (p *Pipeline) Run(ctx context.Context) (*model.RunResult, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, model.ErrRunInProgress
	}
	defer p.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	if p.ran {
		p.mu.Unlock()
		return nil, fmt.Errorf("pipeline already ran: %w", model.ErrNotValid)
	}
	p.ran = true
	p.cancel = cancel
	p.mu.Unlock()

	result := &model.RunResult{LastStep: -1, LastStatus: model.StepStatusPending}
	total := len(p.steps)

	for i, step := range p.steps {
		result.LastStep = i

		if p.canceled(ctx) {
			p.setStatus(i, model.StepStatusCanceled)
			report.Warningf(p.reporter, "Run canceled before step %d/%d: %s", i+1, total, step.Description)
			result.LastStatus = model.StepStatusCanceled
			result.Err = fmt.Errorf("pipeline canceled at step %d: %w", i, model.ErrCanceled)
			break
		}

		p.session.SetCurrentStep(i)
		p.setStatus(i, model.StepStatusActive)
		report.Infof(p.reporter, "Step %d/%d: %s", i+1, total, step.Description)

		err := step.Runner.RunStep(ctx, p.runContext(i))

		switch {
		case errors.Is(err, model.ErrCanceled) || (err != nil && p.canceled(ctx)):
			p.setStatus(i, model.StepStatusCanceled)
			report.Warningf(p.reporter, "Step canceled: %s", step.Description)
			result.LastStatus = model.StepStatusCanceled
			result.Err = fmt.Errorf("pipeline canceled at step %d: %w", i, model.ErrCanceled)
		case err != nil:
			report.Errorf(p.reporter, "Step failed: %s: %s", step.Description, err)
			p.setStatus(i, model.StepStatusError)
			result.LastStatus = model.StepStatusError
			result.Err = fmt.Errorf("pipeline failed at step %d: %w", i, err)
		default:
			p.setStatus(i, model.StepStatusSuccess)
			result.LastStatus = model.StepStatusSuccess
		}

		if result.Err != nil {
			break
		}
	}

	if result.Err != nil {
		p.logger.Debugf("Run didn't succeed, terminating background processes")
		if err := p.registry.TerminateAll(p.reporter); err != nil {
			p.logger.Errorf("Could not terminate background processes: %s", err)
		}
		return result, result.Err
	}

	result.Succeeded = true
	report.Successf(p.reporter, "All %d steps completed", total)
	return result, nil
}

func (p *Pipeline) runContext(i int) RunContext {
	return RunContext{
		Index:     i,
		Commands:  p.commands,
		Input:     p.input,
		Processes: p.registry,
		Reporter:  p.reporter,
		Session:   p.session,
		Logger:    p.logger.WithValues(log.Kv{"step": i}),
	}
}

// Cancel requests the run cancellation, it can be called from any goroutine.
// The step in flight observes it at its next checkpoint.
func (p *Pipeline) Cancel() {
	p.session.Cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

// Teardown terminates the background processes launched by the run.
func (p *Pipeline) Teardown() error {
	if err := p.registry.TerminateAll(p.reporter); err != nil {
		return fmt.Errorf("could not terminate background processes: %w", err)
	}
	return nil
}

// SetCredential stores the privileged credential for the run.
func (p *Pipeline) SetCredential(credential string) {
	p.session.SetCredential(credential)
}

// Steps returns a snapshot of the steps status.
func (p *Pipeline) Steps() []model.Step {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Step{}, p.statuses...)
}

// Processes returns the background processes still alive.
func (p *Pipeline) Processes() []model.ManagedProcess {
	return p.registry.Alive()
}

func (p *Pipeline) canceled(ctx context.Context) bool {
	return ctx.Err() != nil || p.session.Canceled()
}

func (p *Pipeline) setStatus(i int, status model.StepStatus) {
	p.mu.Lock()
	current := p.statuses[i].Status
	if !current.CanTransitionTo(status) {
		p.mu.Unlock()
		p.logger.Errorf("Invalid step %d status transition from %s to %s", i, current, status)
		return
	}
	p.statuses[i].Status = status
	p.mu.Unlock()

	p.reporter.StepStatus(i, status)
}

type noInput struct{}

func (noInput) Request(context.Context, model.InputRequest) (string, error) {
	return "", fmt.Errorf("input is not available: %w", model.ErrInputDeclined)
}
