// Package storagemock has testify mocks for the storage interfaces.
package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/stackup/internal/model"
)

// MockRepository is a mock of storage.Repository.
type MockRepository struct {
	mock.Mock
}

// CreateRun provides a mock function with given fields: ctx, r
func (_m *MockRepository) CreateRun(ctx context.Context, r model.Run) error {
	ret := _m.Called(ctx, r)

	if rf, ok := ret.Get(0).(func(context.Context, model.Run) error); ok {
		return rf(ctx, r)
	}

	return ret.Error(0)
}

// GetRun provides a mock function with given fields: ctx, id
func (_m *MockRepository) GetRun(ctx context.Context, id string) (*model.Run, error) {
	ret := _m.Called(ctx, id)

	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.Run, error)); ok {
		return rf(ctx, id)
	}

	var r0 *model.Run
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Run)
	}

	return r0, ret.Error(1)
}

// ListRuns provides a mock function with given fields: ctx
func (_m *MockRepository) ListRuns(ctx context.Context) ([]model.Run, error) {
	ret := _m.Called(ctx)

	if rf, ok := ret.Get(0).(func(context.Context) ([]model.Run, error)); ok {
		return rf(ctx)
	}

	var r0 []model.Run
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.Run)
	}

	return r0, ret.Error(1)
}

// UpdateRun provides a mock function with given fields: ctx, r
func (_m *MockRepository) UpdateRun(ctx context.Context, r model.Run) error {
	ret := _m.Called(ctx, r)

	if rf, ok := ret.Get(0).(func(context.Context, model.Run) error); ok {
		return rf(ctx, r)
	}

	return ret.Error(0)
}

// AddSteps provides a mock function with given fields: ctx, runID, descriptions
func (_m *MockRepository) AddSteps(ctx context.Context, runID string, descriptions []string) error {
	ret := _m.Called(ctx, runID, descriptions)

	if rf, ok := ret.Get(0).(func(context.Context, string, []string) error); ok {
		return rf(ctx, runID, descriptions)
	}

	return ret.Error(0)
}

// UpdateStep provides a mock function with given fields: ctx, runID, index, status, errMsg
func (_m *MockRepository) UpdateStep(ctx context.Context, runID string, index int, status model.StepStatus, errMsg string) error {
	ret := _m.Called(ctx, runID, index, status, errMsg)

	if rf, ok := ret.Get(0).(func(context.Context, string, int, model.StepStatus, string) error); ok {
		return rf(ctx, runID, index, status, errMsg)
	}

	return ret.Error(0)
}

// ListSteps provides a mock function with given fields: ctx, runID
func (_m *MockRepository) ListSteps(ctx context.Context, runID string) ([]model.StepRecord, error) {
	ret := _m.Called(ctx, runID)

	if rf, ok := ret.Get(0).(func(context.Context, string) ([]model.StepRecord, error)); ok {
		return rf(ctx, runID)
	}

	var r0 []model.StepRecord
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.StepRecord)
	}

	return r0, ret.Error(1)
}

// SaveProcesses provides a mock function with given fields: ctx, runID, ps
func (_m *MockRepository) SaveProcesses(ctx context.Context, runID string, ps []model.ManagedProcess) error {
	ret := _m.Called(ctx, runID, ps)

	if rf, ok := ret.Get(0).(func(context.Context, string, []model.ManagedProcess) error); ok {
		return rf(ctx, runID, ps)
	}

	return ret.Error(0)
}

// ListProcesses provides a mock function with given fields: ctx, runID
func (_m *MockRepository) ListProcesses(ctx context.Context, runID string) ([]model.ManagedProcess, error) {
	ret := _m.Called(ctx, runID)

	if rf, ok := ret.Get(0).(func(context.Context, string) ([]model.ManagedProcess, error)); ok {
		return rf(ctx, runID)
	}

	var r0 []model.ManagedProcess
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.ManagedProcess)
	}

	return r0, ret.Error(1)
}

// DeleteProcesses provides a mock function with given fields: ctx, runID
func (_m *MockRepository) DeleteProcesses(ctx context.Context, runID string) error {
	ret := _m.Called(ctx, runID)

	if rf, ok := ret.Get(0).(func(context.Context, string) error); ok {
		return rf(ctx, runID)
	}

	return ret.Error(0)
}

// NewMockRepository creates a new instance of MockRepository. It also registers a cleanup
// function to assert the mocks expectations.
func NewMockRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockRepository {
	m := &MockRepository{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
