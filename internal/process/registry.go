// Package process tracks the background processes launched by a run so they
// can be terminated as a group.
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/slok/stackup/internal/log"
	"github.com/slok/stackup/internal/model"
	"github.com/slok/stackup/internal/report"
	"github.com/slok/stackup/internal/utils/sysuser"
)

// RegistryConfig is the configuration for the process registry.
type RegistryConfig struct {
	// Shell used to launch the commands.
	Shell string
	// RunID is set on every spawned process.
	RunID string
	// KillTimeout is the grace period between SIGTERM and SIGKILL.
	KillTimeout time.Duration
	Logger      log.Logger
}

func (c *RegistryConfig) defaults() error {
	if c.Shell == "" {
		c.Shell = "/bin/bash"
	}
	if c.KillTimeout <= 0 {
		c.KillTimeout = 3 * time.Second
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "process.Registry"})
	return nil
}

type entry struct {
	proc model.ManagedProcess
	// done is closed when a spawned process leader exits, nil for registered processes.
	done chan struct{}
}

// Registry is the set of background processes of a run.
type Registry struct {
	shell       string
	runID       string
	killTimeout time.Duration
	logger      log.Logger

	mu      sync.Mutex
	entries []*entry
}

// NewRegistry returns a new empty registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Registry{
		shell:       cfg.Shell,
		runID:       cfg.RunID,
		killTimeout: cfg.KillTimeout,
		logger:      cfg.Logger,
	}, nil
}

// SpawnRequest describes a background process to launch.
type SpawnRequest struct {
	Command string
	Dir     string
	// LogPath receives the process output, discarded when empty.
	LogPath string
	// User runs the process as a different user when set.
	User *sysuser.User
}

// Spawn launches a detached process in its own session and process group and
// registers it. The process is not waited on by the caller.
func (r *Registry) Spawn(ctx context.Context, req SpawnRequest) (*model.ManagedProcess, error) {
	if req.Command == "" {
		return nil, fmt.Errorf("command is required: %w", model.ErrNotValid)
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("could not spawn process: %w", model.ErrCanceled)
	}

	logPath := req.LogPath
	if logPath == "" {
		logPath = os.DevNull
	} else if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("could not create log directory: %w", err)
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("could not open log file: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(r.shell, "-c", req.Command)
	cmd.Dir = req.Dir
	cmd.Stdin = nil
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if req.User != nil {
		cmd.SysProcAttr.Credential = req.User.Credential()
		cmd.Env = req.User.Env(os.Environ())
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("could not start process: %w", err)
	}

	pid := cmd.Process.Pid
	pgid, err := unix.Getpgid(pid)
	if err != nil {
		// A new session leader is its own group leader.
		pgid = pid
	}

	proc := model.ManagedProcess{
		PID:       pid,
		PGID:      pgid,
		RunID:     r.runID,
		Command:   req.Command,
		LogPath:   req.LogPath,
		StartedAt: time.Now().UTC(),
	}

	e := &entry{proc: proc, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(e.done)
	}()

	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()

	r.logger.Debugf("Spawned process %d (pgid %d)", pid, pgid)
	return &proc, nil
}

// Register adds an already running process to the registry.
func (r *Registry) Register(p model.ManagedProcess) {
	if p.PGID == 0 {
		p.PGID = p.PID
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, &entry{proc: p})
}

// Remove removes a process from the registry without terminating it.
func (r *Registry) Remove(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.proc.PID == pid {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// List returns the registered processes in registration order.
func (r *Registry) List() []model.ManagedProcess {
	r.mu.Lock()
	defer r.mu.Unlock()

	procs := make([]model.ManagedProcess, 0, len(r.entries))
	for _, e := range r.entries {
		procs = append(procs, e.proc)
	}
	return procs
}

// Alive returns the registered processes that are still running.
func (r *Registry) Alive() []model.ManagedProcess {
	r.mu.Lock()
	defer r.mu.Unlock()

	var procs []model.ManagedProcess
	for _, e := range r.entries {
		if e.alive() {
			procs = append(procs, e.proc)
		}
	}
	return procs
}

// TerminateAll sends SIGTERM to the process group of every process still
// alive, reporting a warning for each one, and clears the registry. Groups
// that don't exit in the grace period are killed.
func (r *Registry) TerminateAll(reporter report.Reporter) error {
	if reporter == nil {
		reporter = report.Noop
	}

	r.mu.Lock()
	entries := r.entries
	r.entries = nil
	r.mu.Unlock()

	var errs []error
	for _, e := range entries {
		if !e.alive() {
			r.logger.Debugf("Process %d already exited", e.proc.PID)
			continue
		}

		err := unix.Kill(-e.proc.PGID, unix.SIGTERM)
		if err != nil && !errors.Is(err, unix.ESRCH) {
			errs = append(errs, fmt.Errorf("could not terminate process group %d: %w", e.proc.PGID, err))
			report.Errorf(reporter, "Could not terminate process %d: %s", e.proc.PID, err)
			continue
		}
		report.Warningf(reporter, "Terminated process %d: %s", e.proc.PID, e.proc.Command)

		if !r.waitExit(e) {
			r.logger.Warningf("Process group %d didn't exit after %s, killing it", e.proc.PGID, r.killTimeout)
			if err := unix.Kill(-e.proc.PGID, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
				errs = append(errs, fmt.Errorf("could not kill process group %d: %w", e.proc.PGID, err))
			}
		}
	}

	return errors.Join(errs...)
}

func (r *Registry) waitExit(e *entry) bool {
	deadline := time.Now().Add(r.killTimeout)
	for time.Now().Before(deadline) {
		if !e.alive() {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}

// alive checks the group, the leader may have exited while its children run.
func (e *entry) alive() bool {
	if e.done != nil {
		select {
		case <-e.done:
		default:
			return true
		}
	}
	return groupAlive(e.proc.PGID)
}

// TerminateGroup sends a signal to a whole process group.
func TerminateGroup(pgid int, sig unix.Signal) error {
	if pgid <= 0 {
		return fmt.Errorf("invalid process group %d: %w", pgid, model.ErrNotValid)
	}
	err := unix.Kill(-pgid, sig)
	if err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}
	return nil
}

func groupAlive(pgid int) bool {
	if pgid <= 0 {
		return false
	}
	err := unix.Kill(-pgid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
