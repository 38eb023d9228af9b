package plan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/slok/stackup/internal/conventions"
	"github.com/slok/stackup/internal/executor"
	"github.com/slok/stackup/internal/model"
	"github.com/slok/stackup/internal/pipeline"
	"github.com/slok/stackup/internal/process"
	"github.com/slok/stackup/internal/report"
	"github.com/slok/stackup/internal/utils/sysuser"
)

type stepRunner struct {
	index   int
	step    model.PlanStep
	vars    *Vars
	runAs   *sysuser.User
	logsDir string
}

func (s *stepRunner) RunStep(ctx context.Context, rc pipeline.RunContext) error {
	ok, err := s.vars.Eval(s.step.When)
	if err != nil {
		return err
	}
	if !ok {
		report.Infof(rc.Reporter, "Skipping %q, condition not met", s.step.Name)
		return nil
	}

	actions := []func(context.Context, pipeline.RunContext) error{
		s.prompts,
		s.commands,
		s.env,
		s.cron,
		s.services,
	}
	for _, action := range actions {
		if err := checkCanceled(ctx, rc); err != nil {
			return err
		}
		if err := action(ctx, rc); err != nil {
			return err
		}
	}

	return nil
}

func (s *stepRunner) prompts(ctx context.Context, rc pipeline.RunContext) error {
	for _, p := range s.step.Prompts {
		req := model.InputRequest{Secret: p.Secret}

		var err error
		if req.Title, err = s.vars.Render(p.Title); err != nil {
			return fmt.Errorf("prompt %q title: %w", p.ID, err)
		}
		if req.Label, err = s.vars.Render(p.Label); err != nil {
			return fmt.Errorf("prompt %q label: %w", p.ID, err)
		}
		if p.Default != nil {
			def, err := s.vars.Render(*p.Default)
			if err != nil {
				return fmt.Errorf("prompt %q default: %w", p.ID, err)
			}
			req.Default = &def
		}

		value, err := rc.Input.Request(ctx, req)
		if err != nil {
			return fmt.Errorf("prompt %q: %w", p.ID, err)
		}

		if p.Secret {
			rc.Session.AddSecret(value)
		}
		s.vars.Set(p.ID, value)
		rc.Logger.Debugf("Prompt %q answered", p.ID)
	}

	return nil
}

func (s *stepRunner) commands(ctx context.Context, rc pipeline.RunContext) error {
	for i, c := range s.step.Commands {
		if err := checkCanceled(ctx, rc); err != nil {
			return err
		}
		if err := s.command(ctx, rc, c); err != nil {
			return fmt.Errorf("command %d: %w", i, err)
		}
	}
	return nil
}

func (s *stepRunner) command(ctx context.Context, rc pipeline.RunContext, c model.PlanCommand) error {
	ok, err := s.vars.Eval(c.When)
	if err != nil {
		return err
	}
	if !ok {
		rc.Logger.Debugf("Command condition not met, skipping")
		return nil
	}

	run, err := s.vars.Render(c.Run)
	if err != nil {
		return err
	}

	if c.Unless != "" {
		unless, err := s.vars.Render(c.Unless)
		if err != nil {
			return err
		}
		_, code, err := rc.Commands.Output(ctx, unless)
		if err != nil {
			return fmt.Errorf("could not check command: %w", err)
		}
		if code == 0 {
			report.Infof(rc.Reporter, "Already satisfied, skipping: %s", run)
			return nil
		}
	}

	req := model.CommandRequest{
		Command:       run,
		Privileged:    c.Privileged,
		Retries:       c.Retries,
		InitialDelay:  c.Delay,
		IgnoreFailure: c.IgnoreFailure,
	}
	if req.Dir, err = s.vars.Render(c.Dir); err != nil {
		return err
	}
	if req.SuccessMessage, err = s.vars.Render(c.Success); err != nil {
		return err
	}
	if req.FailureMessage, err = s.vars.Render(c.Failure); err != nil {
		return err
	}
	if req.Input, err = s.vars.RenderAll(c.Input); err != nil {
		return err
	}

	res, err := rc.Commands.Run(ctx, req)
	return executor.Check(req, res, err)
}

func (s *stepRunner) env(_ context.Context, rc pipeline.RunContext) error {
	if s.step.Env == nil {
		return nil
	}

	path, err := s.vars.Render(s.step.Env.File)
	if err != nil {
		return fmt.Errorf("env file: %w", err)
	}

	values := make(map[string]string, len(s.step.Env.Values))
	for k, v := range s.step.Env.Values {
		if values[k], err = s.vars.Render(v); err != nil {
			return fmt.Errorf("env value %q: %w", k, err)
		}
	}

	_, statErr := os.Stat(path)
	if err := UpdateEnvFile(path, values); err != nil {
		return err
	}

	// New files belong to the run user.
	if os.IsNotExist(statErr) && s.runAs != nil && s.runAs.Credential() != nil {
		if err := os.Chown(path, int(s.runAs.UID), int(s.runAs.GID)); err != nil {
			return fmt.Errorf("could not set env file owner: %w", err)
		}
	}

	report.Successf(rc.Reporter, "Updated %d values on %s", len(values), filepath.Base(path))
	return nil
}

func (s *stepRunner) cron(ctx context.Context, rc pipeline.RunContext) error {
	if s.step.Cron == nil {
		return nil
	}

	entry, err := s.vars.Render(s.step.Cron.Entry)
	if err != nil {
		return fmt.Errorf("cron entry: %w", err)
	}

	current, code, err := rc.Commands.Output(ctx, "crontab -l")
	if err != nil {
		return fmt.Errorf("could not read crontab: %w", err)
	}
	// No crontab for the user yet.
	if code != 0 {
		current = ""
	}

	table := MergeCrontab(current, entry)
	req := model.CommandRequest{
		Command:        "crontab -",
		Input:          strings.Split(strings.TrimSuffix(table, "\n"), "\n"),
		SuccessMessage: "Scheduled task installed.",
		FailureMessage: "Could not install the scheduled task.",
	}
	res, err := rc.Commands.Run(ctx, req)
	return executor.Check(req, res, err)
}

func (s *stepRunner) services(ctx context.Context, rc pipeline.RunContext) error {
	for i, svc := range s.step.Services {
		req := process.SpawnRequest{User: s.runAs}

		var err error
		if req.Command, err = s.vars.Render(svc.Run); err != nil {
			return fmt.Errorf("service %d: %w", i, err)
		}
		if req.Dir, err = s.vars.Render(svc.Dir); err != nil {
			return fmt.Errorf("service %d: %w", i, err)
		}
		if req.LogPath, err = s.vars.Render(svc.Log); err != nil {
			return fmt.Errorf("service %d: %w", i, err)
		}
		if req.LogPath == "" && s.logsDir != "" {
			req.LogPath = filepath.Join(s.logsDir, conventions.ServiceLogFile(s.index+1, i+1))
		}

		p, err := rc.Processes.Spawn(ctx, req)
		if err != nil {
			return fmt.Errorf("could not start service %d: %w", i, err)
		}
		report.Successf(rc.Reporter, "Started in background (pid %d): %s", p.PID, req.Command)
	}

	return nil
}

func checkCanceled(ctx context.Context, rc pipeline.RunContext) error {
	if ctx.Err() != nil || rc.Session.Canceled() {
		return fmt.Errorf("step interrupted: %w", model.ErrCanceled)
	}
	return nil
}
