package provision

import (
	"context"
	"sync"

	"github.com/slok/stackup/internal/log"
	"github.com/slok/stackup/internal/model"
	"github.com/slok/stackup/internal/storage"
)

// stepRecorder is a reporter that stores the step transitions of a run. The last
// error event is stored as the error of a failed step.
type stepRecorder struct {
	repo   storage.Repository
	runID  string
	logger log.Logger

	mu        sync.Mutex
	lastError string
}

func newStepRecorder(repo storage.Repository, runID string, logger log.Logger) *stepRecorder {
	return &stepRecorder{repo: repo, runID: runID, logger: logger}
}

func (s *stepRecorder) Event(e model.Event) {
	if e.Category != model.EventCategoryError {
		return
	}

	s.mu.Lock()
	s.lastError = e.Message
	s.mu.Unlock()
}

func (s *stepRecorder) StepStatus(index int, status model.StepStatus) {
	ctx := context.Background()

	s.mu.Lock()
	errMsg := ""
	switch status {
	case model.StepStatusActive:
		s.lastError = ""
	case model.StepStatusError:
		errMsg = s.lastError
	}
	s.mu.Unlock()

	if err := s.repo.UpdateStep(ctx, s.runID, index, status, errMsg); err != nil {
		s.logger.Errorf("Could not store step %d status: %s", index, err)
	}

	if status != model.StepStatusActive {
		return
	}

	run, err := s.repo.GetRun(ctx, s.runID)
	if err != nil {
		s.logger.Errorf("Could not get run: %s", err)
		return
	}
	run.CurrentStep = index
	if err := s.repo.UpdateRun(ctx, *run); err != nil {
		s.logger.Errorf("Could not store run current step: %s", err)
	}
}
