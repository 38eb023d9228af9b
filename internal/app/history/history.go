// Package history reads the stored provisioning runs.
package history

import (
	"context"
	"fmt"

	"github.com/slok/stackup/internal/log"
	"github.com/slok/stackup/internal/model"
	"github.com/slok/stackup/internal/storage"
)

// ServiceConfig is the configuration for the history service.
type ServiceConfig struct {
	Repository storage.Repository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "history.Service"})

	return nil
}

// Service reads runs history.
type Service struct {
	repo   storage.Repository
	logger log.Logger
}

// NewService creates a new history service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// ListRequest represents the list request parameters.
type ListRequest struct {
	// StatusFilter is an optional filter to only show runs with this status.
	StatusFilter *model.RunStatus
	// Limit is the max number of runs returned, 0 means no limit.
	Limit int
}

// List lists the runs, newest first.
func (s *Service) List(ctx context.Context, req ListRequest) ([]model.Run, error) {
	s.logger.Debugf("listing runs with filter: %v", req.StatusFilter)

	runs, err := s.repo.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list runs: %w", err)
	}

	if req.StatusFilter != nil {
		filtered := make([]model.Run, 0, len(runs))
		for _, r := range runs {
			if r.Status == *req.StatusFilter {
				filtered = append(filtered, r)
			}
		}
		runs = filtered
	}

	if req.Limit > 0 && len(runs) > req.Limit {
		runs = runs[:req.Limit]
	}

	s.logger.Debugf("found %d runs", len(runs))
	return runs, nil
}

// RunDetail is a run with its steps and the background processes left running.
type RunDetail struct {
	Run       model.Run
	Steps     []model.StepRecord
	Processes []model.ManagedProcess
}

// Get returns a run with all its details.
func (s *Service) Get(ctx context.Context, id string) (*RunDetail, error) {
	run, err := s.repo.GetRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("could not get run %q: %w", id, err)
	}

	steps, err := s.repo.ListSteps(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("could not list run steps: %w", err)
	}

	procs, err := s.repo.ListProcesses(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("could not list run processes: %w", err)
	}

	return &RunDetail{Run: *run, Steps: steps, Processes: procs}, nil
}
