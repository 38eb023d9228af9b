package conventions

import (
	"fmt"
	"path/filepath"
)

const (
	// DefaultDataDir is the default stackup data directory name (relative to home).
	DefaultDataDir = ".stackup"
	// DBFile is the filename of the runs history database.
	DBFile = "stackup.db"
	// LogsDir is the subdirectory for the background services output.
	LogsDir = "logs"
)

// DBPath returns the path to the runs history database.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, DBFile)
}

// RunLogsDir returns the directory for the logs of a specific run.
func RunLogsDir(dataDir, runID string) string {
	return filepath.Join(dataDir, LogsDir, runID)
}

// ServiceLogFile returns the default log filename of a background service, both
// positions are 1-based.
func ServiceLogFile(step, service int) string {
	return fmt.Sprintf("step-%02d-service-%d.log", step, service)
}
