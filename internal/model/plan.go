package model

import (
	"fmt"
	"time"
)

// Plan is an ordered list of provisioning steps.
type Plan struct {
	Name        string
	Description string
	Vars        map[string]string
	Steps       []PlanStep
}

// PlanStep is a single pipeline step of a plan. Its actions run in order:
// prompts, commands, env, cron and services.
type PlanStep struct {
	Name     string
	When     string
	Prompts  []PlanPrompt
	Commands []PlanCommand
	Env      *PlanEnv
	Cron     *PlanCron
	Services []PlanService
}

// PlanPrompt asks the user for a value that is stored as a run variable.
type PlanPrompt struct {
	ID      string
	Title   string
	Label   string
	Default *string
	Secret  bool
}

// PlanCommand is a shell command of a plan step.
type PlanCommand struct {
	Run           string
	Privileged    bool
	Retries       int
	Delay         time.Duration
	Success       string
	Failure       string
	Input         []string
	IgnoreFailure bool
	Dir           string
	When          string
	Unless        string
}

// PlanEnv updates key/value lines of a dotenv style file.
type PlanEnv struct {
	File   string
	Values map[string]string
}

// PlanCron installs a scheduled task for the run user.
type PlanCron struct {
	Entry string
}

// PlanService is a long-running process started in background.
type PlanService struct {
	Run string
	Dir string
	Log string
}

// Validate validates the plan.
func (p Plan) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("name is required: %w", ErrNotValid)
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("at least one step is required: %w", ErrNotValid)
	}

	promptIDs := map[string]bool{}
	for i, s := range p.Steps {
		if err := s.validate(promptIDs); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}

	return nil
}

func (s PlanStep) validate(promptIDs map[string]bool) error {
	if s.Name == "" {
		return fmt.Errorf("name is required: %w", ErrNotValid)
	}

	if len(s.Prompts) == 0 && len(s.Commands) == 0 && s.Env == nil && s.Cron == nil && len(s.Services) == 0 {
		return fmt.Errorf("step %q has no actions: %w", s.Name, ErrNotValid)
	}

	for _, pr := range s.Prompts {
		if pr.ID == "" {
			return fmt.Errorf("prompt id is required: %w", ErrNotValid)
		}
		if promptIDs[pr.ID] {
			return fmt.Errorf("prompt %q is duplicated: %w", pr.ID, ErrNotValid)
		}
		promptIDs[pr.ID] = true
	}

	for i, c := range s.Commands {
		if c.Run == "" {
			return fmt.Errorf("command %d: run is required: %w", i, ErrNotValid)
		}
		if c.Retries < 0 {
			return fmt.Errorf("command %d: retries can't be negative: %w", i, ErrNotValid)
		}
		if c.Delay < 0 {
			return fmt.Errorf("command %d: delay can't be negative: %w", i, ErrNotValid)
		}
	}

	if s.Env != nil {
		if s.Env.File == "" {
			return fmt.Errorf("env file is required: %w", ErrNotValid)
		}
		if len(s.Env.Values) == 0 {
			return fmt.Errorf("env values are required: %w", ErrNotValid)
		}
	}

	if s.Cron != nil && s.Cron.Entry == "" {
		return fmt.Errorf("cron entry is required: %w", ErrNotValid)
	}

	for i, svc := range s.Services {
		if svc.Run == "" {
			return fmt.Errorf("service %d: run is required: %w", i, ErrNotValid)
		}
	}

	return nil
}
