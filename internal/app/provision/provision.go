// Package provision prepares and runs provisioning plans, keeping their history.
package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/stackup/internal/conventions"
	"github.com/slok/stackup/internal/executor"
	"github.com/slok/stackup/internal/host"
	"github.com/slok/stackup/internal/input"
	"github.com/slok/stackup/internal/log"
	"github.com/slok/stackup/internal/model"
	"github.com/slok/stackup/internal/pipeline"
	"github.com/slok/stackup/internal/plan"
	"github.com/slok/stackup/internal/process"
	"github.com/slok/stackup/internal/report"
	"github.com/slok/stackup/internal/session"
	"github.com/slok/stackup/internal/storage"
	"github.com/slok/stackup/internal/utils/sysuser"
)

// HostDetector detects the host being provisioned.
type HostDetector interface {
	Detect(ctx context.Context) (model.Host, error)
}

// ServiceConfig is the configuration for the provision service.
type ServiceConfig struct {
	Repository storage.Repository
	Host       HostDetector
	// Shell runs the commands and services. Defaults to /bin/bash.
	Shell string
	// ElevationPrefix wraps the privileged commands.
	ElevationPrefix string
	// NoElevation runs privileged commands directly.
	NoElevation bool
	// KillTimeout is the grace period between SIGTERM and SIGKILL.
	KillTimeout time.Duration
	// DataDir holds the logs of the services without a log file, discarded when empty.
	DataDir string
	// Reporter receives the events of the runs.
	Reporter report.Reporter
	Logger   log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "provision.Service"})
	if c.Host == nil {
		d, err := host.NewDetector(host.DetectorConfig{Logger: c.Logger})
		if err != nil {
			return fmt.Errorf("could not create host detector: %w", err)
		}
		c.Host = d
	}
	if c.Shell == "" {
		c.Shell = "/bin/bash"
	}
	if c.Reporter == nil {
		c.Reporter = report.Noop
	}
	return nil
}

// Service prepares provisioning runs.
type Service struct {
	repo            storage.Repository
	host            HostDetector
	shell           string
	elevationPrefix string
	noElevation     bool
	killTimeout     time.Duration
	dataDir         string
	reporter        report.Reporter
	logger          log.Logger
}

// NewService creates a new provision service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:            cfg.Repository,
		host:            cfg.Host,
		shell:           cfg.Shell,
		elevationPrefix: cfg.ElevationPrefix,
		noElevation:     cfg.NoElevation,
		killTimeout:     cfg.KillTimeout,
		dataDir:         cfg.DataDir,
		reporter:        cfg.Reporter,
		logger:          cfg.Logger,
	}, nil
}

// Request represents the provision request parameters.
type Request struct {
	Plan model.Plan
	// Vars override the plan variables.
	Vars map[string]string
	// RunAs is the user of the unprivileged commands and services.
	RunAs *sysuser.User
}

// Prepare builds the pipeline of a plan and stores the new run with all its steps
// pending. Nothing is executed until Run is called on the returned run.
func (s *Service) Prepare(ctx context.Context, req Request) (*Run, error) {
	h, err := s.host.Detect(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not detect host: %w", err)
	}
	if req.RunAs != nil {
		h.User = req.RunAs.Name
	}

	runID := ulid.Make().String()
	logger := s.logger.WithValues(log.Kv{"run": runID})

	logsDir := ""
	if s.dataDir != "" {
		logsDir = conventions.RunLogsDir(s.dataDir, runID)
	}

	builder, err := plan.NewBuilder(plan.BuilderConfig{
		Host:      h,
		Overrides: req.Vars,
		RunAs:     req.RunAs,
		LogsDir:   logsDir,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create plan builder: %w", err)
	}
	steps, err := builder.Build(req.Plan)
	if err != nil {
		return nil, err
	}

	sess := session.New()
	recorder := newStepRecorder(s.repo, runID, logger)
	rep := report.NewRedactor(report.NewMulti(s.reporter, recorder), sess.Secrets)

	bridge, err := input.NewBridge(input.BridgeConfig{Reporter: rep, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("could not create input bridge: %w", err)
	}

	runner, err := executor.New(executor.Config{
		Shell:           s.shell,
		ElevationPrefix: s.elevationPrefix,
		NoElevation:     s.noElevation || h.Root,
		RunAs:           req.RunAs,
		Session:         sess,
		Reporter:        rep,
		KillTimeout:     s.killTimeout,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create executor: %w", err)
	}

	registry, err := process.NewRegistry(process.RegistryConfig{
		Shell:       s.shell,
		RunID:       runID,
		KillTimeout: s.killTimeout,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create process registry: %w", err)
	}

	p, err := pipeline.New(pipeline.Config{
		Steps:    steps,
		Commands: runner,
		Input:    bridge,
		Session:  sess,
		Registry: registry,
		Reporter: rep,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create pipeline: %w", err)
	}

	run := model.Run{
		ID:          runID,
		Plan:        req.Plan.Name,
		Status:      model.RunStatusRunning,
		CurrentStep: -1,
		TotalSteps:  len(steps),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("could not store run: %w", err)
	}

	descriptions := make([]string, 0, len(steps))
	for _, st := range steps {
		descriptions = append(descriptions, st.Description)
	}
	if err := s.repo.AddSteps(ctx, runID, descriptions); err != nil {
		return nil, fmt.Errorf("could not store run steps: %w", err)
	}

	logger.Infof("Run prepared with %d steps for plan %q on %s (%s)", len(steps), req.Plan.Name, h.Distro, h.PackageManager)

	return &Run{
		run:      run,
		host:     h,
		pipeline: p,
		bridge:   bridge,
		session:  sess,
		repo:     s.repo,
		logger:   logger,
	}, nil
}
