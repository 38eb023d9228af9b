package process_test

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	loglogrus "github.com/slok/stackup/internal/log/logrus"
	"github.com/slok/stackup/internal/model"
	"github.com/slok/stackup/internal/process"
	"github.com/slok/stackup/internal/report"
)

func newRegistry(t *testing.T) *process.Registry {
	t.Helper()
	r, err := process.NewRegistry(process.RegistryConfig{
		Shell:       "/bin/sh",
		RunID:       "run-1",
		KillTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.TerminateAll(nil) })
	return r
}

func groupExists(pgid int) bool {
	return unix.Kill(-pgid, 0) == nil
}

func TestRegistrySpawnAndTerminateAll(t *testing.T) {
	tests := map[string]struct {
		command string
	}{
		"A single long running process should be terminated": {
			command: "sleep 30",
		},
		"The whole process group should be terminated": {
			command: "sleep 30 & sleep 30 & wait",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			r := newRegistry(t)
			logPath := filepath.Join(t.TempDir(), "logs", "svc.log")

			p, err := r.Spawn(context.Background(), process.SpawnRequest{Command: test.command, LogPath: logPath})
			require.NoError(err)
			assert.Equal("run-1", p.RunID)
			assert.Equal(p.PID, p.PGID)
			assert.FileExists(logPath)
			assert.Len(r.Alive(), 1)

			rec := &report.Recorder{}
			err = r.TerminateAll(rec)
			require.NoError(err)

			assert.Len(rec.Messages(model.EventCategoryWarning), 1)
			assert.Empty(r.List())
			assert.Eventually(func() bool { return !groupExists(p.PGID) }, 3*time.Second, 50*time.Millisecond)
		})
	}
}

func TestRegistryTerminateAllSkipsExited(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	r := newRegistry(t)
	p, err := r.Spawn(context.Background(), process.SpawnRequest{Command: "true"})
	require.NoError(err)

	assert.Eventually(func() bool { return len(r.Alive()) == 0 }, 3*time.Second, 20*time.Millisecond)

	rec := &report.Recorder{}
	require.NoError(r.TerminateAll(rec))
	assert.Empty(rec.Messages(model.EventCategoryWarning))
	assert.False(groupExists(p.PGID))
}

func TestRegistryRegisterRestoredProcess(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	cmd := exec.Command("/bin/sh", "-c", "sleep 30")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	require.NoError(cmd.Start())
	waitDone := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(waitDone)
	}()

	r := newRegistry(t)
	r.Register(model.ManagedProcess{PID: cmd.Process.Pid, Command: "sleep 30"})
	require.Len(r.List(), 1)
	assert.Equal(cmd.Process.Pid, r.List()[0].PGID)

	rec := &report.Recorder{}
	require.NoError(r.TerminateAll(rec))
	assert.Len(rec.Messages(model.EventCategoryWarning), 1)

	select {
	case <-waitDone:
	case <-time.After(3 * time.Second):
		t.Fatal("restored process was not terminated")
	}
}

func TestRegistrySpawnCanceled(t *testing.T) {
	r := newRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Spawn(ctx, process.SpawnRequest{Command: "sleep 30"})
	assert.ErrorIs(t, err, model.ErrCanceled)
	assert.Empty(t, r.List())
}

func TestRegistryRemove(t *testing.T) {
	r := newRegistry(t)
	r.Register(model.ManagedProcess{PID: 999991, PGID: 999991})
	r.Register(model.ManagedProcess{PID: 999992, PGID: 999992})

	r.Remove(999991)

	procs := r.List()
	require.Len(t, procs, 1)
	assert.Equal(t, 999992, procs[0].PID)
}

func TestTerminateGroupInvalid(t *testing.T) {
	assert.Error(t, process.TerminateGroup(0, unix.SIGTERM))
	assert.NoError(t, process.TerminateGroup(os.Getpid()+1000000, unix.SIGTERM))
}

func TestRegistrySpawnDoesNotLogCommand(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(logrus.DebugLevel)

	r, err := process.NewRegistry(process.RegistryConfig{
		Shell:       "/bin/sh",
		RunID:       "run-1",
		KillTimeout: 2 * time.Second,
		Logger:      loglogrus.NewLogrus(logrus.NewEntry(l)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.TerminateAll(nil) })

	proc, err := r.Spawn(context.Background(), process.SpawnRequest{Command: "ADMIN_PASS=hunter2secret sleep 30"})
	require.NoError(t, err)

	logs := buf.String()
	assert.Contains(t, logs, "Spawned process")
	assert.NotContains(t, logs, "hunter2secret")
	assert.NotContains(t, logs, proc.Command)
}
