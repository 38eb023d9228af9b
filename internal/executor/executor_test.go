package executor_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/stackup/internal/executor"
	"github.com/slok/stackup/internal/model"
	"github.com/slok/stackup/internal/report"
	"github.com/slok/stackup/internal/session"
)

const testCredential = "g00d-s3cret"

// fakeElevation writes an elevation script that checks the credential read from
// stdin and stores everything it received in stdinLog.
func fakeElevation(t *testing.T) (prefix string, stdinLog string) {
	t.Helper()

	dir := t.TempDir()
	stdinLog = filepath.Join(dir, "stdin.log")
	script := fmt.Sprintf(`#!/bin/sh
[ "$1" = "-S" ] && shift
printf '[sudo] password for tester: \n' >&2
IFS= read -r pass
printf '%%s\n' "$pass" >> %[1]q
if [ "$pass" != %[2]q ]; then
  echo "Sorry, try again." >&2
  echo "sudo: 1 incorrect password attempt" >&2
  exit 1
fi
rest=$(cat)
printf '%%s' "$rest" >> %[1]q
exec "$@"
`, stdinLog, testCredential)

	path := filepath.Join(dir, "fakesudo")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))

	return path + " -S", stdinLog
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return ctx.Err()
}

type testExecutor struct {
	exec    *executor.Executor
	session *session.Session
	rec     *report.Recorder
	sleeps  *sleepRecorder
}

func newTestExecutor(t *testing.T, elevation string) testExecutor {
	t.Helper()

	sess := session.New()
	rec := &report.Recorder{}
	sleeps := &sleepRecorder{}
	e, err := executor.New(executor.Config{
		Shell:           "/bin/sh",
		ElevationPrefix: elevation,
		Session:         sess,
		Reporter:        rec,
		Sleep:           sleeps.Sleep,
		KillTimeout:     2 * time.Second,
	})
	require.NoError(t, err)

	return testExecutor{exec: e, session: sess, rec: rec, sleeps: sleeps}
}

func TestNewExecutor(t *testing.T) {
	tests := map[string]struct {
		config executor.Config
		expErr bool
	}{
		"A valid config should create the executor": {
			config: executor.Config{Session: session.New()},
		},
		"Missing session should fail": {
			config: executor.Config{},
			expErr: true,
		},
		"An invalid elevation prefix should fail": {
			config: executor.Config{Session: session.New(), ElevationPrefix: `sudo "-S`},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			e, err := executor.New(test.config)
			if test.expErr {
				assert.Error(t, err)
				assert.Nil(t, e)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, e)
			}
		})
	}
}

func TestExecutorRun(t *testing.T) {
	tests := map[string]struct {
		req          model.CommandRequest
		credential   string
		expErr       error
		expSucceeded bool
		expAttempts  int
		expExitCode  int
		expAuth      bool
		expDelays    []time.Duration
		expOutput    []string
		expErrorMsgs bool
		expSuccess   []string
		expWarnings  bool
	}{
		"A privileged command with a valid credential should succeed and authenticate": {
			req:          model.CommandRequest{Command: "echo installed", Privileged: true, Retries: 3, SuccessMessage: "Done."},
			credential:   testCredential,
			expSucceeded: true,
			expAttempts:  1,
			expExitCode:  0,
			expAuth:      true,
			expOutput:    []string{"[sudo] password for tester: ", "installed"},
			expSuccess:   []string{"Done."},
		},
		"A privileged command with a rejected credential should fail without retries": {
			req:          model.CommandRequest{Command: "echo installed", Privileged: true, Retries: 3},
			credential:   "wrong",
			expErr:       model.ErrAuthentication,
			expAttempts:  1,
			expExitCode:  -1,
			expAuth:      true,
			expErrorMsgs: true,
		},
		"Transient failures should be retried with a doubling delay until exhausted": {
			req:          model.CommandRequest{Command: "echo 'network is unreachable'; exit 1", Retries: 3, InitialDelay: 10 * time.Millisecond},
			expSucceeded: false,
			expAttempts:  3,
			expExitCode:  1,
			expDelays:    []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond},
			expErrorMsgs: true,
			expWarnings:  true,
		},
		"A non transient failure should not be retried": {
			req:          model.CommandRequest{Command: "echo 'package not found'; exit 2", Retries: 3, FailureMessage: "Could not install."},
			expSucceeded: false,
			expAttempts:  1,
			expExitCode:  2,
			expOutput:    []string{"package not found"},
			expErrorMsgs: true,
		},
		"A failure mentioning network packages should not be retried": {
			req:          model.CommandRequest{Command: "echo 'Setting up network-manager (1.42) ...'; echo 'E: dpkg was interrupted'; exit 100", Retries: 3},
			expSucceeded: false,
			expAttempts:  1,
			expExitCode:  100,
			expOutput:    []string{"Setting up network-manager (1.42) ...", "E: dpkg was interrupted"},
			expErrorMsgs: true,
		},
		"A non transient failure that is ignored should report a warning": {
			req:          model.CommandRequest{Command: "exit 3", IgnoreFailure: true},
			expSucceeded: false,
			expAttempts:  1,
			expExitCode:  3,
			expWarnings:  true,
		},
		"Interactive input lines should be written to the command": {
			req:          model.CommandRequest{Command: `read a; read b; echo "got $a-$b"`, Input: []string{"admin", "no"}},
			expSucceeded: true,
			expAttempts:  1,
			expOutput:    []string{"got admin-no"},
		},
		"Empty interactive input should close the command input": {
			req:          model.CommandRequest{Command: `cat; echo end`, Input: []string{}},
			expSucceeded: true,
			expAttempts:  1,
			expOutput:    []string{"end"},
		},
		"Stdout and stderr should be merged": {
			req:          model.CommandRequest{Command: "echo out; echo err >&2"},
			expSucceeded: true,
			expAttempts:  1,
			expOutput:    []string{"out", "err"},
		},
		"Zero retries should run the command once": {
			req:          model.CommandRequest{Command: "true", Retries: 0},
			expSucceeded: true,
			expAttempts:  1,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			prefix, _ := fakeElevation(t)
			te := newTestExecutor(t, prefix)
			if test.credential != "" {
				te.session.SetCredential(test.credential)
			}

			res, err := te.exec.Run(context.Background(), test.req)

			if test.expErr != nil {
				assert.True(errors.Is(err, test.expErr), "unexpected error: %v", err)
			} else {
				require.NoError(err)
			}
			require.NotNil(res)
			assert.Equal(test.expSucceeded, res.Succeeded)
			assert.Equal(test.expAttempts, res.Attempts)
			assert.Equal(test.expExitCode, res.ExitCode)
			assert.Equal(test.expAuth, te.session.Authenticated())
			assert.Equal(test.expDelays, te.sleeps.delays)
			if test.expOutput != nil {
				assert.Equal(test.expOutput, te.rec.Messages(model.EventCategoryOutput))
			}
			assert.Equal(test.expErrorMsgs, len(te.rec.Messages(model.EventCategoryError)) > 0)
			assert.Equal(test.expWarnings, len(te.rec.Messages(model.EventCategoryWarning)) > 0)
			if test.expSuccess != nil {
				assert.Equal(test.expSuccess, te.rec.Messages(model.EventCategorySuccess))
			}
			assert.LessOrEqual(res.Attempts, max(test.req.Retries, 1))
		})
	}
}

func TestExecutorRunCredentialHandling(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	prefix, stdinLog := fakeElevation(t)
	te := newTestExecutor(t, prefix)
	te.session.SetCredential(testCredential)

	res, err := te.exec.Run(context.Background(), model.CommandRequest{
		Command:    "echo " + testCredential,
		Privileged: true,
	})
	require.NoError(err)
	assert.True(res.Succeeded)

	// The credential is written once and the input closed afterwards.
	got, err := os.ReadFile(stdinLog)
	require.NoError(err)
	assert.Equal(testCredential+"\n", string(got))

	// It never reaches the reporter.
	assert.False(te.rec.Contains(testCredential))
	assert.Contains(te.rec.Messages(model.EventCategoryOutput), report.Mask)
}

func TestExecutorRunRequestSecrets(t *testing.T) {
	te := newTestExecutor(t, "")

	_, err := te.exec.Run(context.Background(), model.CommandRequest{
		Command: "echo 'db password is hunter2'",
		Secrets: []string{"hunter2"},
	})
	require.NoError(t, err)
	assert.False(t, te.rec.Contains("hunter2"))
	assert.Equal(t, []string{"db password is ****"}, te.rec.Messages(model.EventCategoryOutput))
}

func TestExecutorRunTransientRecovery(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	te := newTestExecutor(t, "")
	marker := filepath.Join(t.TempDir(), "attempted")

	res, err := te.exec.Run(context.Background(), model.CommandRequest{
		Command:      fmt.Sprintf(`if [ -f %[1]q ]; then echo ok; else touch %[1]q; echo "read: ECONNRESET"; exit 1; fi`, marker),
		Retries:      3,
		InitialDelay: 5 * time.Millisecond,
	})
	require.NoError(err)
	assert.True(res.Succeeded)
	assert.Equal(2, res.Attempts)
	assert.Equal([]time.Duration{5 * time.Millisecond}, te.sleeps.delays)
}

func TestExecutorRunExecutionError(t *testing.T) {
	sess := session.New()
	e, err := executor.New(executor.Config{Shell: "/nonexistent/shell", Session: sess})
	require.NoError(t, err)

	_, err = e.Run(context.Background(), model.CommandRequest{Command: "true", Retries: 3})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, model.ErrCanceled))
}

func TestExecutorRunCancellation(t *testing.T) {
	tests := map[string]struct {
		command string
		cancel  func(cancel context.CancelFunc, s *session.Session)
	}{
		"Canceling the context should stop a silent command": {
			command: "echo start; sleep 30",
			cancel:  func(cancel context.CancelFunc, _ *session.Session) { cancel() },
		},
		"Canceling the session should stop a command at the next output line": {
			command: "while true; do echo tick; sleep 0.1; done",
			cancel:  func(_ context.CancelFunc, s *session.Session) { s.Cancel() },
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			te := newTestExecutor(t, "")
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			go func() {
				time.Sleep(200 * time.Millisecond)
				test.cancel(cancel, te.session)
			}()

			start := time.Now()
			res, err := te.exec.Run(ctx, model.CommandRequest{Command: test.command, Retries: 3})
			assert.True(errors.Is(err, model.ErrCanceled), "unexpected error: %v", err)
			assert.False(res.Succeeded)
			assert.Less(time.Since(start), 10*time.Second)
		})
	}
}

func TestExecutorRunCancellationStopsOutput(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	sess := session.New()
	var (
		mu          sync.Mutex
		canceled    bool
		afterCancel int
	)
	reporter := report.Funcs{
		EventFunc: func(e model.Event) {
			if e.Category != model.EventCategoryOutput {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if canceled {
				afterCancel++
				return
			}
			if e.Message == "100" {
				canceled = true
				sess.Cancel()
			}
		},
	}
	e, err := executor.New(executor.Config{
		Shell:       "/bin/sh",
		Session:     sess,
		Reporter:    reporter,
		KillTimeout: 2 * time.Second,
	})
	require.NoError(err)

	_, err = e.Run(context.Background(), model.CommandRequest{Command: "seq 1 500"})
	assert.True(errors.Is(err, model.ErrCanceled), "unexpected error: %v", err)

	mu.Lock()
	defer mu.Unlock()
	assert.True(canceled)
	assert.LessOrEqual(afterCancel, 1)
}

func TestExecutorRunAlreadyCanceled(t *testing.T) {
	te := newTestExecutor(t, "")
	te.session.Cancel()

	marker := filepath.Join(t.TempDir(), "ran")
	_, err := te.exec.Run(context.Background(), model.CommandRequest{Command: "touch " + marker})
	assert.True(t, errors.Is(err, model.ErrCanceled))
	assert.NoFileExists(t, marker)
}

func TestExecutorOutput(t *testing.T) {
	tests := map[string]struct {
		command  string
		expOut   string
		expCode  int
		expError bool
	}{
		"A successful probe should return its output": {
			command: "echo '* * * * * true'",
			expOut:  "* * * * * true\n",
			expCode: 0,
		},
		"A failed probe should return its exit code": {
			command: "echo partial; exit 1",
			expOut:  "partial\n",
			expCode: 1,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			te := newTestExecutor(t, "")
			out, code, err := te.exec.Output(context.Background(), test.command)
			if test.expError {
				assert.Error(err)
				return
			}
			assert.NoError(err)
			assert.Equal(test.expOut, out)
			assert.Equal(test.expCode, code)
			assert.Empty(te.rec.Events())
		})
	}
}

func TestCheck(t *testing.T) {
	tests := map[string]struct {
		req    model.CommandRequest
		res    *model.CommandResult
		err    error
		expErr error
	}{
		"A succeeded command should not fail": {
			res: &model.CommandResult{Succeeded: true},
		},
		"A failed command should fail with command failed": {
			res:    &model.CommandResult{ExitCode: 1, Attempts: 1},
			expErr: model.ErrCommandFailed,
		},
		"A failed command that ignores failures should not fail": {
			req: model.CommandRequest{IgnoreFailure: true},
			res: &model.CommandResult{ExitCode: 1, Attempts: 1},
		},
		"An execution error should be returned": {
			err:    model.ErrCanceled,
			expErr: model.ErrCanceled,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := executor.Check(test.req, test.res, test.err)
			if test.expErr != nil {
				assert.True(t, errors.Is(err, test.expErr))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
