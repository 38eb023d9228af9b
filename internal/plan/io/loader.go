// Package io loads provisioning plans from files.
package io

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slok/stackup/internal/model"
)

// PlanYAMLRepository loads plans from YAML files.
type PlanYAMLRepository struct {
	fs fs.FS
}

// NewPlanYAMLRepository creates a new YAML plan repository.
func NewPlanYAMLRepository(filesystem fs.FS) *PlanYAMLRepository {
	return &PlanYAMLRepository{fs: filesystem}
}

// GetPlan loads a plan from a YAML file and returns a validated domain model.
func (r *PlanYAMLRepository) GetPlan(ctx context.Context, path string) (model.Plan, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.Plan{}, fmt.Errorf("reading plan file: %w", err)
	}

	if ctx.Err() != nil {
		return model.Plan{}, ctx.Err()
	}

	var p Plan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return model.Plan{}, fmt.Errorf("parsing YAML: %w", err)
	}

	plan, err := p.toModel()
	if err != nil {
		return model.Plan{}, fmt.Errorf("invalid plan: %w: %w", err, model.ErrNotValid)
	}

	if err := plan.Validate(); err != nil {
		return model.Plan{}, fmt.Errorf("invalid plan: %w", err)
	}

	return plan, nil
}

// Plan represents the YAML structure of a plan.
type Plan struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Vars        map[string]string `yaml:"vars"`
	Steps       []Step            `yaml:"steps"`
}

// Step represents the YAML structure of a plan step.
type Step struct {
	Name     string    `yaml:"name"`
	When     string    `yaml:"when"`
	Prompts  []Prompt  `yaml:"prompts"`
	Commands []Command `yaml:"commands"`
	Env      *Env      `yaml:"env,omitempty"`
	Cron     *Cron     `yaml:"cron,omitempty"`
	Services []Service `yaml:"services"`
}

// Prompt represents the YAML structure of a step prompt.
type Prompt struct {
	ID      string  `yaml:"id"`
	Title   string  `yaml:"title"`
	Label   string  `yaml:"label"`
	Default *string `yaml:"default,omitempty"`
	Secret  bool    `yaml:"secret"`
}

// Command represents the YAML structure of a step command.
type Command struct {
	Run           string   `yaml:"run"`
	Privileged    bool     `yaml:"privileged"`
	Retries       int      `yaml:"retries"`
	Delay         string   `yaml:"delay"`
	Success       string   `yaml:"success"`
	Failure       string   `yaml:"failure"`
	Input         []string `yaml:"input"`
	IgnoreFailure bool     `yaml:"ignore_failure"`
	Dir           string   `yaml:"dir"`
	When          string   `yaml:"when"`
	Unless        string   `yaml:"unless"`
}

// Env represents the YAML structure of a dotenv file update.
type Env struct {
	File   string            `yaml:"file"`
	Values map[string]string `yaml:"values"`
}

// Cron represents the YAML structure of a scheduled task.
type Cron struct {
	Entry string `yaml:"entry"`
}

// Service represents the YAML structure of a background service.
type Service struct {
	Run string `yaml:"run"`
	Dir string `yaml:"dir"`
	Log string `yaml:"log"`
}

func (p Plan) toModel() (model.Plan, error) {
	plan := model.Plan{
		Name:        p.Name,
		Description: p.Description,
		Vars:        p.Vars,
		Steps:       make([]model.PlanStep, 0, len(p.Steps)),
	}

	for i, s := range p.Steps {
		step, err := s.toModel()
		if err != nil {
			return model.Plan{}, fmt.Errorf("step %d: %w", i, err)
		}
		plan.Steps = append(plan.Steps, step)
	}

	return plan, nil
}

func (s Step) toModel() (model.PlanStep, error) {
	step := model.PlanStep{
		Name: s.Name,
		When: s.When,
	}

	for _, p := range s.Prompts {
		step.Prompts = append(step.Prompts, model.PlanPrompt{
			ID:      p.ID,
			Title:   p.Title,
			Label:   p.Label,
			Default: p.Default,
			Secret:  p.Secret,
		})
	}

	for i, c := range s.Commands {
		var delay time.Duration
		if c.Delay != "" {
			d, err := time.ParseDuration(c.Delay)
			if err != nil {
				return model.PlanStep{}, fmt.Errorf("command %d: invalid delay %q: %w", i, c.Delay, err)
			}
			delay = d
		}

		step.Commands = append(step.Commands, model.PlanCommand{
			Run:           c.Run,
			Privileged:    c.Privileged,
			Retries:       c.Retries,
			Delay:         delay,
			Success:       c.Success,
			Failure:       c.Failure,
			Input:         c.Input,
			IgnoreFailure: c.IgnoreFailure,
			Dir:           c.Dir,
			When:          c.When,
			Unless:        c.Unless,
		})
	}

	if s.Env != nil {
		step.Env = &model.PlanEnv{File: s.Env.File, Values: s.Env.Values}
	}
	if s.Cron != nil {
		step.Cron = &model.PlanCron{Entry: s.Cron.Entry}
	}

	for _, svc := range s.Services {
		step.Services = append(step.Services, model.PlanService{Run: svc.Run, Dir: svc.Dir, Log: svc.Log})
	}

	return step, nil
}
