// Package pipelinemock has testify mocks for the pipeline interfaces.
package pipelinemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/stackup/internal/model"
	"github.com/slok/stackup/internal/pipeline"
)

// MockStepRunner is a mock of pipeline.StepRunner.
type MockStepRunner struct {
	mock.Mock
}

// RunStep provides a mock function with given fields: ctx, rc
func (_m *MockStepRunner) RunStep(ctx context.Context, rc pipeline.RunContext) error {
	ret := _m.Called(ctx, rc)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, pipeline.RunContext) error); ok {
		r0 = rf(ctx, rc)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockStepRunner creates a new instance of MockStepRunner. It also registers a cleanup
// function to assert the mocks expectations.
func NewMockStepRunner(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStepRunner {
	m := &MockStepRunner{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

// MockCommandRunner is a mock of pipeline.CommandRunner.
type MockCommandRunner struct {
	mock.Mock
}

// Run provides a mock function with given fields: ctx, req
func (_m *MockCommandRunner) Run(ctx context.Context, req model.CommandRequest) (*model.CommandResult, error) {
	ret := _m.Called(ctx, req)

	var r0 *model.CommandResult
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, model.CommandRequest) (*model.CommandResult, error)); ok {
		return rf(ctx, req)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.CommandResult)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// Output provides a mock function with given fields: ctx, command
func (_m *MockCommandRunner) Output(ctx context.Context, command string) (string, int, error) {
	ret := _m.Called(ctx, command)

	if rf, ok := ret.Get(0).(func(context.Context, string) (string, int, error)); ok {
		return rf(ctx, command)
	}

	return ret.String(0), ret.Int(1), ret.Error(2)
}

// NewMockCommandRunner creates a new instance of MockCommandRunner. It also registers a cleanup
// function to assert the mocks expectations.
func NewMockCommandRunner(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockCommandRunner {
	m := &MockCommandRunner{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

// MockInputRequester is a mock of pipeline.InputRequester.
type MockInputRequester struct {
	mock.Mock
}

// Request provides a mock function with given fields: ctx, req
func (_m *MockInputRequester) Request(ctx context.Context, req model.InputRequest) (string, error) {
	ret := _m.Called(ctx, req)

	if rf, ok := ret.Get(0).(func(context.Context, model.InputRequest) (string, error)); ok {
		return rf(ctx, req)
	}

	return ret.String(0), ret.Error(1)
}

// NewMockInputRequester creates a new instance of MockInputRequester. It also registers a cleanup
// function to assert the mocks expectations.
func NewMockInputRequester(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockInputRequester {
	m := &MockInputRequester{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
