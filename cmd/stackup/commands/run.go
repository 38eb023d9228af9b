package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"gopkg.in/yaml.v3"

	"github.com/slok/stackup/internal/app/provision"
	"github.com/slok/stackup/internal/console"
	"github.com/slok/stackup/internal/executor"
	"github.com/slok/stackup/internal/log"
	"github.com/slok/stackup/internal/model"
	"github.com/slok/stackup/internal/plan"
	planio "github.com/slok/stackup/internal/plan/io"
	"github.com/slok/stackup/internal/printer"
	"github.com/slok/stackup/internal/report"
	"github.com/slok/stackup/internal/utils/env"
	"github.com/slok/stackup/internal/utils/sysuser"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	planPath      string
	vars          []string
	varsFile      string
	runAs         string
	elevation     string
	noElevation   bool
	shell         string
	killTimeout   time.Duration
	detach        bool
	noInteraction bool
	quiet         bool
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Run a provisioning plan.")
	c.Cmd.Flag("plan", "Path to the plan YAML file.").Short('p').Required().StringVar(&c.planPath)
	c.Cmd.Flag("var", "Plan variable override (KEY=VALUE or KEY to use the environment value). Repeatable.").Short('v').StringsVar(&c.vars)
	c.Cmd.Flag("vars-file", "YAML file with plan variable overrides, the --var flags take precedence.").StringVar(&c.varsFile)
	c.Cmd.Flag("run-as", "User of the unprivileged commands and services, defaults to SUDO_USER when running as root.").StringVar(&c.runAs)
	c.Cmd.Flag("elevation", "Prefix of the privileged commands.").Default(executor.DefaultElevationPrefix).StringVar(&c.elevation)
	c.Cmd.Flag("no-elevation", "Run privileged commands without the elevation prefix.").BoolVar(&c.noElevation)
	c.Cmd.Flag("shell", "Shell that runs the commands.").Default("/bin/bash").StringVar(&c.shell)
	c.Cmd.Flag("kill-timeout", "Grace period before killing the background services.").Default("5s").DurationVar(&c.killTimeout)
	c.Cmd.Flag("detach", "Leave the background services running after the plan finishes.").BoolVar(&c.detach)
	c.Cmd.Flag("no-interaction", "Never prompt, requests with a default take it and the rest are declined.").BoolVar(&c.noInteraction)
	c.Cmd.Flag("quiet", "Hide the commands output.").Short('q').BoolVar(&c.quiet)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger.WithValues(log.Kv{"cmd": "run"})

	if c.detach && c.rootCmd.NoHistory {
		return fmt.Errorf("--detach needs the runs history to stop the services later: %w", model.ErrNotValid)
	}

	p, err := loadPlan(ctx, c.planPath)
	if err != nil {
		return err
	}

	vars, err := c.loadVars()
	if err != nil {
		return err
	}

	runAs, err := c.resolveRunAs()
	if err != nil {
		return err
	}

	repo, closeRepo, err := c.rootCmd.repository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	// Console.
	interactive := console.IsInteractive(c.noInteraction)
	renderer, err := console.NewRenderer(console.RendererConfig{
		Out:   c.rootCmd.Stderr,
		Color: interactive && !c.rootCmd.NoColor,
		Quiet: c.quiet,
	})
	if err != nil {
		return fmt.Errorf("could not create console renderer: %w", err)
	}

	prompter, err := c.newPrompter(interactive)
	if err != nil {
		return err
	}

	// Prepare run.
	svc, err := provision.NewService(provision.ServiceConfig{
		Repository:      repo,
		Shell:           c.shell,
		ElevationPrefix: c.elevation,
		NoElevation:     c.noElevation,
		KillTimeout:     c.killTimeout,
		DataDir:         c.rootCmd.DataDir,
		Reporter:        renderer,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	r, err := svc.Prepare(ctx, provision.Request{
		Plan:  p,
		Vars:  vars,
		RunAs: runAs,
	})
	if err != nil {
		return fmt.Errorf("could not prepare run: %w", err)
	}

	steps := r.Steps()
	descriptions := make([]string, 0, len(steps))
	for _, s := range steps {
		descriptions = append(descriptions, s.Description)
	}
	renderer.SetSteps(descriptions)

	if plan.NeedsElevation(p) && !r.Host().Root && !c.noElevation {
		credential, err := askCredential(ctx, prompter, r.Host().User)
		if err != nil {
			return err
		}
		r.SetCredential(credential)
	}

	// Execute run while the foreground answers the input requests.
	var (
		res    *model.RunResult
		runErr error
		g      run.Group
	)
	{
		serveCtx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error {
				return console.Serve(serveCtx, r.Input(), prompter, logger)
			},
			func(_ error) {
				cancel()
			},
		)
	}
	{
		g.Add(
			func() error {
				res, runErr = r.Run(ctx)
				return runErr
			},
			func(_ error) {
				r.Cancel()
			},
		)
	}
	_ = g.Run()

	if res != nil {
		renderer.Summary(*res)
	}

	if runErr != nil {
		if err := r.Teardown(context.WithoutCancel(ctx)); err != nil {
			logger.Warningf("Could not terminate background services: %s", err)
		}
		return fmt.Errorf("run %s: %w", r.ID(), runErr)
	}

	if len(r.Processes()) == 0 {
		return nil
	}

	if c.detach {
		procs, err := r.Detach(ctx)
		if err != nil {
			return err
		}
		if err := printer.NewTablePrinter(c.rootCmd.Stdout).PrintProcesses(procs); err != nil {
			return fmt.Errorf("could not print processes: %w", err)
		}
		report.Infof(renderer, "Stop them with: stackup stop --run %s", r.ID())
		return nil
	}

	report.Infof(renderer, "%d background services running, press Ctrl+C to stop them", len(r.Processes()))
	<-ctx.Done()

	return r.Teardown(context.WithoutCancel(ctx))
}

func (c RunCommand) newPrompter(interactive bool) (console.Prompter, error) {
	if interactive {
		p, err := console.NewTTYPrompter(console.TTYPrompterConfig{
			In:  c.rootCmd.Stdin,
			Out: c.rootCmd.Stderr,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create prompter: %w", err)
		}
		return p, nil
	}

	p, err := console.NewLinePrompter(console.LinePrompterConfig{
		In:  c.rootCmd.Stdin,
		Out: c.rootCmd.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create prompter: %w", err)
	}
	return p, nil
}

// loadVars merges the vars file with the --var flags.
func (c RunCommand) loadVars() (map[string]string, error) {
	fileVars := map[string]string{}
	if c.varsFile != "" {
		data, err := os.ReadFile(c.varsFile)
		if err != nil {
			return nil, fmt.Errorf("could not read vars file: %w", err)
		}
		fileVars, err = parseVarsFile(data)
		if err != nil {
			return nil, err
		}
	}

	flagVars, err := env.ParseOverrides(c.vars)
	if err != nil {
		return nil, fmt.Errorf("invalid --var: %w", err)
	}

	return env.Merge(fileVars, flagVars), nil
}

func (c RunCommand) resolveRunAs() (*sysuser.User, error) {
	name := c.runAs
	if name == "" && os.Geteuid() == 0 {
		name = os.Getenv("SUDO_USER")
	}
	if name == "" {
		return nil, nil
	}

	u, err := sysuser.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("invalid --run-as: %w", err)
	}
	return u, nil
}

func parseVarsFile(data []byte) (map[string]string, error) {
	vars := map[string]string{}
	if err := yaml.Unmarshal(data, &vars); err != nil {
		return nil, fmt.Errorf("invalid vars file: %w: %w", model.ErrNotValid, err)
	}
	for k := range vars {
		if err := env.ValidateName(k); err != nil {
			return nil, fmt.Errorf("invalid vars file: %w", err)
		}
	}
	return vars, nil
}

func loadPlan(ctx context.Context, path string) (model.Plan, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return model.Plan{}, fmt.Errorf("could not resolve plan path: %w", err)
	}

	repo := planio.NewPlanYAMLRepository(os.DirFS(filepath.Dir(abs)))
	p, err := repo.GetPlan(ctx, filepath.Base(abs))
	if err != nil {
		return model.Plan{}, fmt.Errorf("could not load plan: %w", err)
	}
	return p, nil
}

// askCredential asks the foreground for the privileged credential before any
// step runs.
func askCredential(ctx context.Context, prompter console.Prompter, user string) (string, error) {
	resp, err := prompter.Prompt(ctx, model.InputRequest{
		Title:  "Some steps need administrator privileges",
		Label:  fmt.Sprintf("Password for %s", user),
		Secret: true,
	})
	if err != nil {
		return "", fmt.Errorf("could not ask for the credential: %w", err)
	}
	if !resp.Accepted {
		return "", fmt.Errorf("credential not provided: %w", model.ErrCanceled)
	}
	if resp.Value == "" {
		return "", errors.New("credential can't be empty")
	}
	return resp.Value, nil
}
