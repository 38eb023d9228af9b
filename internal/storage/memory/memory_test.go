package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/stackup/internal/log"
	"github.com/slok/stackup/internal/model"
	"github.com/slok/stackup/internal/storage/memory"
)

func TestRepository(t *testing.T) {
	tests := map[string]struct {
		actions func(ctx context.Context, t *testing.T, repo *memory.Repository) error
		expErr  error
	}{
		"Creating and listing runs should return them newest first": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				now := time.Now().UTC()
				require.NoError(t, repo.CreateRun(ctx, model.Run{ID: "old", Plan: "p", CreatedAt: now.Add(-time.Minute)}))
				require.NoError(t, repo.CreateRun(ctx, model.Run{ID: "new", Plan: "p", CreatedAt: now}))

				runs, err := repo.ListRuns(ctx)
				require.NoError(t, err)
				require.Len(t, runs, 2)
				assert.Equal(t, "new", runs[0].ID)
				assert.Equal(t, "old", runs[1].ID)
				return nil
			},
		},

		"Creating a duplicated run should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				require.NoError(t, repo.CreateRun(ctx, model.Run{ID: "r1"}))
				return repo.CreateRun(ctx, model.Run{ID: "r1"})
			},
			expErr: model.ErrAlreadyExists,
		},

		"Getting a missing run should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				_, err := repo.GetRun(ctx, "missing")
				return err
			},
			expErr: model.ErrNotFound,
		},

		"Updating a missing run should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				return repo.UpdateRun(ctx, model.Run{ID: "missing"})
			},
			expErr: model.ErrNotFound,
		},

		"Updating a run should store the new state": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				require.NoError(t, repo.CreateRun(ctx, model.Run{ID: "r1", Status: model.RunStatusRunning}))
				require.NoError(t, repo.UpdateRun(ctx, model.Run{ID: "r1", Status: model.RunStatusSucceeded, CurrentStep: 2}))

				got, err := repo.GetRun(ctx, "r1")
				require.NoError(t, err)
				assert.Equal(t, model.RunStatusSucceeded, got.Status)
				assert.Equal(t, 2, got.CurrentStep)
				return nil
			},
		},

		"Steps should be added pending and updated by index": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				require.NoError(t, repo.CreateRun(ctx, model.Run{ID: "r1"}))
				require.NoError(t, repo.AddSteps(ctx, "r1", []string{"a", "b"}))
				require.NoError(t, repo.UpdateStep(ctx, "r1", 1, model.StepStatusError, "boom"))

				steps, err := repo.ListSteps(ctx, "r1")
				require.NoError(t, err)
				require.Len(t, steps, 2)
				assert.Equal(t, model.StepStatusPending, steps[0].Status)
				assert.Equal(t, model.StepStatusError, steps[1].Status)
				assert.Equal(t, "boom", steps[1].Error)

				return repo.UpdateStep(ctx, "r1", 2, model.StepStatusActive, "")
			},
			expErr: model.ErrNotFound,
		},

		"Adding steps to a missing run should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				return repo.AddSteps(ctx, "missing", []string{"a"})
			},
			expErr: model.ErrNotFound,
		},

		"Processes should be saved, replaced and deleted": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				require.NoError(t, repo.CreateRun(ctx, model.Run{ID: "r1"}))
				require.NoError(t, repo.SaveProcesses(ctx, "r1", []model.ManagedProcess{{PID: 1}, {PID: 2}}))
				require.NoError(t, repo.SaveProcesses(ctx, "r1", []model.ManagedProcess{{PID: 3}}))

				ps, err := repo.ListProcesses(ctx, "r1")
				require.NoError(t, err)
				assert.Equal(t, []model.ManagedProcess{{PID: 3, RunID: "r1"}}, ps)

				require.NoError(t, repo.DeleteProcesses(ctx, "r1"))
				ps, err = repo.ListProcesses(ctx, "r1")
				require.NoError(t, err)
				assert.Empty(t, ps)
				return nil
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: log.Noop})
			require.NoError(t, err)

			err = test.actions(context.Background(), t, repo)
			if test.expErr != nil {
				assert.True(t, errors.Is(err, test.expErr), "unexpected error: %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
