// Package stop terminates the background services a detached run left running.
package stop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slok/stackup/internal/log"
	"github.com/slok/stackup/internal/model"
	"github.com/slok/stackup/internal/process"
	"github.com/slok/stackup/internal/report"
	"github.com/slok/stackup/internal/storage"
)

// ServiceConfig is the configuration for the stop service.
type ServiceConfig struct {
	Repository storage.Repository
	// KillTimeout is the grace period between SIGTERM and SIGKILL.
	KillTimeout time.Duration
	Reporter    report.Reporter
	Logger      log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Reporter == nil {
		c.Reporter = report.Noop
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "stop.Service"})

	return nil
}

// Service stops the background services of a run.
type Service struct {
	repo        storage.Repository
	killTimeout time.Duration
	reporter    report.Reporter
	logger      log.Logger
}

// NewService creates a new stop service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:        cfg.Repository,
		killTimeout: cfg.KillTimeout,
		reporter:    cfg.Reporter,
		logger:      cfg.Logger,
	}, nil
}

// Request represents the stop request parameters.
type Request struct {
	// RunID is the run whose services are stopped. The latest run is used when empty.
	RunID string
}

// Run terminates the process groups stored for a run and forgets them.
func (s *Service) Run(ctx context.Context, req Request) ([]model.ManagedProcess, error) {
	runID, err := s.resolveRunID(ctx, req.RunID)
	if err != nil {
		return nil, err
	}
	s.logger.Debugf("stopping background processes of run: %s", runID)

	procs, err := s.repo.ListProcesses(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("could not list background processes: %w", err)
	}
	if len(procs) == 0 {
		return nil, fmt.Errorf("run %s has no background processes: %w", runID, model.ErrNotFound)
	}

	registry, err := process.NewRegistry(process.RegistryConfig{
		RunID:       runID,
		KillTimeout: s.killTimeout,
		Logger:      s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create process registry: %w", err)
	}
	for _, p := range procs {
		registry.Register(p)
	}

	if err := registry.TerminateAll(s.reporter); err != nil {
		return nil, fmt.Errorf("could not terminate background processes: %w", err)
	}

	if err := s.repo.DeleteProcesses(ctx, runID); err != nil {
		return nil, fmt.Errorf("could not delete background processes: %w", err)
	}

	s.logger.Infof("stopped %d background processes of run %s", len(procs), runID)
	return procs, nil
}

func (s *Service) resolveRunID(ctx context.Context, runID string) (string, error) {
	if runID != "" {
		if !looksLikeULID(runID) {
			return "", fmt.Errorf("invalid run ID %q: %w", runID, model.ErrNotValid)
		}
		if _, err := s.repo.GetRun(ctx, runID); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return "", fmt.Errorf("run not found: %s: %w", runID, model.ErrNotFound)
			}
			return "", fmt.Errorf("could not get run: %w", err)
		}
		return runID, nil
	}

	runs, err := s.repo.ListRuns(ctx)
	if err != nil {
		return "", fmt.Errorf("could not list runs: %w", err)
	}
	if len(runs) == 0 {
		return "", fmt.Errorf("there are no runs: %w", model.ErrNotFound)
	}

	return runs[0].ID, nil
}

// looksLikeULID checks if a string looks like a ULID (26 characters, alphanumeric uppercase).
func looksLikeULID(s string) bool {
	if len(s) != 26 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}
