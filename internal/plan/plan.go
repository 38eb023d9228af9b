// Package plan turns provisioning plans into pipeline steps.
package plan

import (
	"fmt"

	"github.com/slok/stackup/internal/log"
	"github.com/slok/stackup/internal/model"
	"github.com/slok/stackup/internal/pipeline"
	"github.com/slok/stackup/internal/utils/env"
	"github.com/slok/stackup/internal/utils/sysuser"
)

// Validate validates a plan, including its conditions and templates.
func Validate(p model.Plan) error {
	if err := p.Validate(); err != nil {
		return err
	}

	for i, s := range p.Steps {
		if err := validateStep(s); err != nil {
			return fmt.Errorf("step %d (%s): %w: %w", i, s.Name, err, model.ErrNotValid)
		}
	}

	for k, v := range p.Vars {
		if err := env.ValidateName(k); err != nil {
			return err
		}
		if _, err := parseTemplate(v); err != nil {
			return fmt.Errorf("var %q: %w: %w", k, err, model.ErrNotValid)
		}
	}

	return nil
}

// NeedsElevation returns true if any command of the plan is privileged.
func NeedsElevation(p model.Plan) bool {
	for _, s := range p.Steps {
		for _, c := range s.Commands {
			if c.Privileged {
				return true
			}
		}
	}
	return false
}

func validateStep(s model.PlanStep) error {
	if err := checkCondition(s.When); err != nil {
		return err
	}

	tmpls := []string{}
	for _, p := range s.Prompts {
		if err := env.ValidateName(p.ID); err != nil {
			return err
		}
		tmpls = append(tmpls, p.Title, p.Label)
		if p.Default != nil {
			tmpls = append(tmpls, *p.Default)
		}
	}

	for i, c := range s.Commands {
		if err := checkCondition(c.When); err != nil {
			return fmt.Errorf("command %d: %w", i, err)
		}
		tmpls = append(tmpls, c.Run, c.Dir, c.Unless, c.Success, c.Failure)
		tmpls = append(tmpls, c.Input...)
	}

	if s.Env != nil {
		tmpls = append(tmpls, s.Env.File)
		for _, v := range s.Env.Values {
			tmpls = append(tmpls, v)
		}
	}

	if s.Cron != nil {
		tmpls = append(tmpls, s.Cron.Entry)
	}

	for _, svc := range s.Services {
		tmpls = append(tmpls, svc.Run, svc.Dir, svc.Log)
	}

	for _, t := range tmpls {
		if _, err := parseTemplate(t); err != nil {
			return err
		}
	}

	return nil
}

// BuilderConfig is the configuration for the plan builder.
type BuilderConfig struct {
	Host model.Host
	// Overrides replace plan variables.
	Overrides map[string]string
	// RunAs is the user of the background services, the current one when nil.
	RunAs *sysuser.User
	// LogsDir receives the output of the services without a log file.
	LogsDir string
	Logger  log.Logger
}

func (c *BuilderConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "plan.Builder"})
	return nil
}

// Builder builds pipeline steps from plans.
type Builder struct {
	host      model.Host
	overrides map[string]string
	runAs     *sysuser.User
	logsDir   string
	logger    log.Logger
}

// NewBuilder returns a new plan builder.
func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Builder{
		host:      cfg.Host,
		overrides: cfg.Overrides,
		runAs:     cfg.RunAs,
		logsDir:   cfg.LogsDir,
		logger:    cfg.Logger,
	}, nil
}

// Build validates the plan and returns one pipeline step per plan step. All the
// steps share the run variables so prompt answers are available to the next steps.
func (b *Builder) Build(p model.Plan) ([]pipeline.Step, error) {
	if err := Validate(p); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}

	vars, err := NewVars(b.host, p.Vars, b.overrides)
	if err != nil {
		return nil, fmt.Errorf("could not prepare plan variables: %w", err)
	}

	steps := make([]pipeline.Step, 0, len(p.Steps))
	for i, s := range p.Steps {
		steps = append(steps, pipeline.Step{
			Description: s.Name,
			Runner: &stepRunner{
				index:   i,
				step:    s,
				vars:    vars,
				runAs:   b.runAs,
				logsDir: b.logsDir,
			},
		})
	}

	b.logger.Debugf("Built %d steps from plan %q", len(steps), p.Name)
	return steps, nil
}
