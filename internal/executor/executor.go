// Package executor runs shell commands for the pipeline steps, handling
// privilege elevation, output streaming, cancellation and retries.
package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-shellwords"
	"golang.org/x/sys/unix"

	"github.com/slok/stackup/internal/log"
	"github.com/slok/stackup/internal/model"
	"github.com/slok/stackup/internal/process"
	"github.com/slok/stackup/internal/report"
	"github.com/slok/stackup/internal/session"
	"github.com/slok/stackup/internal/utils/sysuser"
)

// DefaultElevationPrefix reads the credential from stdin (-S), ignores cached
// credentials (-k) so the credential is always consumed, and uses a known prompt.
const DefaultElevationPrefix = `sudo -S -k -p "[sudo] password for %p: "`

// Config is the configuration for the executor.
type Config struct {
	// Shell runs the command lines. Defaults to /bin/bash.
	Shell string
	// ElevationPrefix wraps privileged commands.
	ElevationPrefix string
	// NoElevation runs privileged commands without the prefix, used when
	// already running as root.
	NoElevation bool
	// RunAs is the user unprivileged commands run as, current user when nil.
	RunAs *sysuser.User
	// Session stores the credential and the cancellation state. Required.
	Session    *session.Session
	Reporter   report.Reporter
	Classifier Classifier
	// Sleep waits between retries, it must return early when ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
	// KillTimeout is the grace period between SIGTERM and SIGKILL.
	KillTimeout time.Duration
	Logger      log.Logger
}

func (c *Config) defaults() error {
	if c.Session == nil {
		return fmt.Errorf("session is required")
	}
	if c.Shell == "" {
		c.Shell = "/bin/bash"
	}
	if c.ElevationPrefix == "" {
		c.ElevationPrefix = DefaultElevationPrefix
	}
	if c.Reporter == nil {
		c.Reporter = report.Noop
	}
	if c.Classifier == nil {
		c.Classifier = NewMarkerClassifier()
	}
	if c.Sleep == nil {
		c.Sleep = sleepWithContext
	}
	if c.KillTimeout <= 0 {
		c.KillTimeout = 3 * time.Second
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "executor.Executor"})
	return nil
}

// Executor runs commands.
type Executor struct {
	shell       string
	elevation   []string
	noElevation bool
	runAs       *sysuser.User
	session     *session.Session
	reporter    report.Reporter
	classifier  Classifier
	sleep       func(ctx context.Context, d time.Duration) error
	killTimeout time.Duration
	logger      log.Logger
}

// New returns a new executor.
func New(cfg Config) (*Executor, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	elevation, err := shellwords.Parse(cfg.ElevationPrefix)
	if err != nil {
		return nil, fmt.Errorf("invalid config: could not parse elevation prefix: %w", err)
	}
	if len(elevation) == 0 {
		return nil, fmt.Errorf("invalid config: elevation prefix is empty")
	}

	return &Executor{
		shell:       cfg.Shell,
		elevation:   elevation,
		noElevation: cfg.NoElevation,
		runAs:       cfg.RunAs,
		session:     cfg.Session,
		reporter:    cfg.Reporter,
		classifier:  cfg.Classifier,
		sleep:       cfg.Sleep,
		killTimeout: cfg.KillTimeout,
		logger:      cfg.Logger,
	}, nil
}

// Run executes the command retrying transient failures.
//
// A command that exits unsuccessfully is not an error, the result is returned
// with Succeeded set to false and the caller decides if that is fatal. Errors
// are returned for cancellation, rejected credentials and execution errors that
// can't be retried.
func (e *Executor) Run(ctx context.Context, req model.CommandRequest) (*model.CommandResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command request: %w", err)
	}

	result := &model.CommandResult{ExitCode: -1}
	if e.canceled(ctx) {
		return result, fmt.Errorf("command not started: %w", model.ErrCanceled)
	}

	retries := req.Retries
	if retries < 1 {
		retries = 1
	}
	delay := req.InitialDelay
	if delay == 0 {
		delay = model.DefaultCommandDelay
	}

	secrets := append(e.session.Secrets(), req.Secrets...)
	rep := report.NewRedactor(e.reporter, func() []string { return secrets })
	logger := e.logger.WithValues(log.Kv{"privileged": req.Privileged})

	for attempt := 1; attempt <= retries; attempt++ {
		result.Attempts = attempt
		report.Realtimef(rep, "Running: %s (attempt %d/%d)", req.Command, attempt, retries)
		logger.Debugf("Running command (attempt %d/%d): %s", attempt, retries, report.Redact(req.Command, secrets))

		res, err := e.attempt(ctx, req, rep)
		result.ExitCode = res.exitCode

		switch {
		case errors.Is(err, model.ErrCanceled):
			report.Warningf(rep, "Command canceled: %s", req.Command)
			return result, err
		case errors.Is(err, model.ErrAuthentication):
			report.Errorf(rep, "Authentication failed, the privileged credential was rejected")
			return result, err
		case err != nil:
			report.Errorf(rep, "Command failed: %s: %s", req.Command, err)
			if !e.classifier.IsTransient(err) {
				return result, fmt.Errorf("could not execute command: %w", err)
			}
		case res.exitCode == 0:
			result.Succeeded = true
			if req.SuccessMessage != "" {
				report.Successf(rep, "%s", req.SuccessMessage)
			}
			return result, nil
		case !res.transient:
			e.reportFailure(rep, req, res.exitCode)
			return result, nil
		default:
			report.Errorf(rep, "Command failed with exit status %d: %s", res.exitCode, req.Command)
		}

		report.Warningf(rep, "Transient failure detected, waiting %s before continuing", delay)
		if err := e.sleep(ctx, delay); err != nil || e.canceled(ctx) {
			return result, fmt.Errorf("waiting for retry: %w", model.ErrCanceled)
		}
		delay *= 2
	}

	if req.IgnoreFailure {
		report.Warningf(rep, "Command failed after %d attempts, ignoring: %s", retries, req.Command)
	} else {
		report.Errorf(rep, "Command failed after %d attempts: %s", retries, req.Command)
	}

	return result, nil
}

func (e *Executor) reportFailure(rep report.Reporter, req model.CommandRequest, exitCode int) {
	msg := req.FailureMessage
	if msg == "" {
		msg = fmt.Sprintf("Command failed with exit status %d: %s", exitCode, req.Command)
	}

	if req.IgnoreFailure {
		report.Warningf(rep, "%s (ignored)", msg)
		return
	}
	report.Errorf(rep, "%s", msg)
}

type attemptResult struct {
	exitCode  int
	transient bool
}

func (e *Executor) attempt(ctx context.Context, req model.CommandRequest, rep report.Reporter) (attemptResult, error) {
	res := attemptResult{exitCode: -1}
	cmd := e.command(req)

	// Merge stdout and stderr in a single stream to keep the lines order.
	pr, pw, err := os.Pipe()
	if err != nil {
		return res, fmt.Errorf("could not create output pipe: %w", err)
	}
	defer pr.Close()
	cmd.Stdout = pw
	cmd.Stderr = pw

	stdinLines := e.stdinLines(req)
	var stdin io.WriteCloser
	if stdinLines != nil {
		stdin, err = cmd.StdinPipe()
		if err != nil {
			pw.Close()
			return res, fmt.Errorf("could not create input pipe: %w", err)
		}
	}

	if err := cmd.Start(); err != nil {
		pw.Close()
		return res, err
	}
	pw.Close()

	if stdin != nil {
		go func() {
			defer stdin.Close()
			for _, l := range stdinLines {
				if _, err := io.WriteString(stdin, l+"\n"); err != nil {
					return
				}
			}
		}()
	}

	// Unblock the line reads when the context ends while the child is silent.
	waitDone := make(chan struct{})
	defer close(waitDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = process.TerminateGroup(cmd.Process.Pid, unix.SIGTERM)
		case <-waitDone:
		}
	}()

	var lineErr error
	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if e.canceled(ctx) {
			lineErr = model.ErrCanceled
			break
		}

		line := strings.TrimRight(scanner.Text(), "\r")
		report.Output(rep, line)

		switch e.classifier.ClassifyLine(line) {
		case ConditionAuthRejected:
			if req.Privileged {
				lineErr = model.ErrAuthentication
			}
		case ConditionAuthPrompted:
			if req.Privileged {
				e.session.MarkAuthenticated()
			}
		case ConditionTransient:
			res.transient = true
		}
		if lineErr != nil {
			break
		}
	}

	if lineErr != nil {
		e.terminate(cmd)
		return res, fmt.Errorf("command interrupted: %w", lineErr)
	}
	if err := scanner.Err(); err != nil {
		e.logger.Warningf("Could not read command output: %s", err)
		_, _ = io.Copy(io.Discard, pr)
	}

	waitErr := cmd.Wait()
	if e.canceled(ctx) {
		return res, fmt.Errorf("command interrupted: %w", model.ErrCanceled)
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.exitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, waitErr
	}

	res.exitCode = 0
	return res, nil
}

// stdinLines returns what is written to the command input, nil when the
// command doesn't receive input.
func (e *Executor) stdinLines(req model.CommandRequest) []string {
	var lines []string
	if req.Privileged && !e.noElevation {
		if cred, ok := e.session.Credential(); ok {
			lines = append(lines, cred)
		}
	}
	if req.Input != nil {
		lines = append(lines, req.Input...)
	}
	if lines == nil && req.Input != nil {
		return []string{}
	}
	return lines
}

func (e *Executor) command(req model.CommandRequest) *exec.Cmd {
	var cmd *exec.Cmd
	if req.Privileged && !e.noElevation {
		args := append(append([]string{}, e.elevation[1:]...), e.shell, "-c", req.Command)
		cmd = exec.Command(e.elevation[0], args...)
	} else {
		cmd = exec.Command(e.shell, "-c", req.Command)
	}

	cmd.Dir = req.Dir
	// Own process group so the whole command tree can be signaled.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if !req.Privileged && e.runAs != nil {
		if cred := e.runAs.Credential(); cred != nil {
			cmd.SysProcAttr.Credential = cred
			cmd.Env = e.runAs.Env(os.Environ())
		}
	}

	return cmd
}

// terminate stops the command process group and waits for it, killing it if
// it doesn't exit in time.
func (e *Executor) terminate(cmd *exec.Cmd) {
	pgid := cmd.Process.Pid
	_ = process.TerminateGroup(pgid, unix.SIGTERM)

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(e.killTimeout):
		e.logger.Warningf("Process group %d didn't exit after %s, killing it", pgid, e.killTimeout)
		_ = process.TerminateGroup(pgid, unix.SIGKILL)
		<-done
	}
}

func (e *Executor) canceled(ctx context.Context) bool {
	return ctx.Err() != nil || e.session.Canceled()
}

// Output runs an unprivileged probe command and returns its standard output and
// exit code. The output is not reported.
func (e *Executor) Output(ctx context.Context, command string) (string, int, error) {
	if e.canceled(ctx) {
		return "", -1, fmt.Errorf("probe not started: %w", model.ErrCanceled)
	}

	cmd := exec.CommandContext(ctx, e.shell, "-c", command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if e.runAs != nil {
		if cred := e.runAs.Credential(); cred != nil {
			cmd.SysProcAttr.Credential = cred
			cmd.Env = e.runAs.Env(os.Environ())
		}
	}
	cmd.Cancel = func() error {
		return process.TerminateGroup(cmd.Process.Pid, unix.SIGTERM)
	}
	cmd.WaitDelay = e.killTimeout

	out, err := cmd.Output()
	if e.canceled(ctx) {
		return "", -1, fmt.Errorf("probe interrupted: %w", model.ErrCanceled)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(out), exitErr.ExitCode(), nil
		}
		return "", -1, fmt.Errorf("could not run probe: %w", err)
	}

	return string(out), 0, nil
}

// Check converts a command outcome into an error. Commands that ignore
// failures never fail.
func Check(req model.CommandRequest, res *model.CommandResult, err error) error {
	if err != nil {
		return err
	}
	if res == nil {
		return fmt.Errorf("missing command result: %w", model.ErrCommandFailed)
	}
	if res.Succeeded || req.IgnoreFailure {
		return nil
	}
	return fmt.Errorf("command exited with status %d after %d attempt(s): %w", res.ExitCode, res.Attempts, model.ErrCommandFailed)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
