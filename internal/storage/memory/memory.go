// Package memory has an in-memory runs history, used when the history is not kept.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/stackup/internal/log"
	"github.com/slok/stackup/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.Repository.
type Repository struct {
	runs      map[string]model.Run
	steps     map[string][]model.StepRecord
	processes map[string][]model.ManagedProcess
	mu        sync.RWMutex
	logger    log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		runs:      make(map[string]model.Run),
		steps:     make(map[string][]model.StepRecord),
		processes: make(map[string][]model.ManagedProcess),
		logger:    cfg.Logger,
	}, nil
}

// CreateRun creates a new run.
func (r *Repository) CreateRun(ctx context.Context, run model.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[run.ID]; ok {
		return fmt.Errorf("run %s: %w", run.ID, model.ErrAlreadyExists)
	}

	r.runs[run.ID] = run
	r.logger.Debugf("Created run in repository: %s", run.ID)

	return nil
}

// GetRun retrieves a run by ID.
func (r *Repository) GetRun(ctx context.Context, id string) (*model.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, model.ErrNotFound)
	}

	return &run, nil
}

// ListRuns returns all the runs, newest first.
func (r *Repository) ListRuns(ctx context.Context) ([]model.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]model.Run, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, run)
	}
	slices.SortFunc(runs, func(a, b model.Run) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	return runs, nil
}

// UpdateRun updates an existing run.
func (r *Repository) UpdateRun(ctx context.Context, run model.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[run.ID]; !ok {
		return fmt.Errorf("run %s: %w", run.ID, model.ErrNotFound)
	}

	r.runs[run.ID] = run
	r.logger.Debugf("Updated run in repository: %s", run.ID)

	return nil
}

// AddSteps adds the steps of a run in order, all of them pending.
func (r *Repository) AddSteps(ctx context.Context, runID string, descriptions []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[runID]; !ok {
		return fmt.Errorf("run %s: %w", runID, model.ErrNotFound)
	}

	now := time.Now().UTC()
	for i, desc := range descriptions {
		r.steps[runID] = append(r.steps[runID], model.StepRecord{
			ID:          ulid.Make().String(),
			RunID:       runID,
			Index:       i,
			Description: desc,
			Status:      model.StepStatusPending,
			UpdatedAt:   now,
		})
	}

	return nil
}

// UpdateStep sets the status of a run step.
func (r *Repository) UpdateStep(ctx context.Context, runID string, index int, status model.StepStatus, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	steps := r.steps[runID]
	if index < 0 || index >= len(steps) {
		return fmt.Errorf("step %d of run %s: %w", index, runID, model.ErrNotFound)
	}

	steps[index].Status = status
	steps[index].Error = errMsg
	steps[index].UpdatedAt = time.Now().UTC()

	return nil
}

// ListSteps returns the steps of a run in order.
func (r *Repository) ListSteps(ctx context.Context, runID string) ([]model.StepRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.steps[runID]), nil
}

// SaveProcesses replaces the background processes of a run.
func (r *Repository) SaveProcesses(ctx context.Context, runID string, ps []model.ManagedProcess) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[runID]; !ok {
		return fmt.Errorf("run %s: %w", runID, model.ErrNotFound)
	}

	saved := make([]model.ManagedProcess, 0, len(ps))
	for _, p := range ps {
		p.RunID = runID
		saved = append(saved, p)
	}
	r.processes[runID] = saved

	return nil
}

// ListProcesses returns the background processes of a run.
func (r *Repository) ListProcesses(ctx context.Context, runID string) ([]model.ManagedProcess, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.processes[runID]), nil
}

// DeleteProcesses removes the background processes of a run.
func (r *Repository) DeleteProcesses(ctx context.Context, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.processes, runID)
	return nil
}
