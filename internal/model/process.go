package model

import "time"

// ManagedProcess is a long-running background process launched by a run.
type ManagedProcess struct {
	PID       int
	PGID      int
	RunID     string
	Command   string
	LogPath   string
	StartedAt time.Time
}
