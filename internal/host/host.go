// Package host detects the machine being provisioned and checks it's ready.
package host

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"github.com/slok/stackup/internal/log"
	"github.com/slok/stackup/internal/model"
)

// packageManagers in detection order.
var packageManagers = []model.PackageManager{
	model.PackageManagerApt,
	model.PackageManagerDnf,
	model.PackageManagerYum,
	model.PackageManagerPacman,
	model.PackageManagerZypper,
	model.PackageManagerApk,
}

// DetectorConfig is the configuration for the host detector.
type DetectorConfig struct {
	// FS is the host root filesystem.
	FS fs.FS
	// LookPath finds binaries on the host.
	LookPath func(file string) (string, error)
	// User is the user the run operates as.
	User string
	// Root is true when the process runs with root privileges.
	Root   *bool
	Logger log.Logger
}

func (c *DetectorConfig) defaults() error {
	if c.FS == nil {
		c.FS = os.DirFS("/")
	}
	if c.LookPath == nil {
		c.LookPath = exec.LookPath
	}
	if c.User == "" {
		c.User = os.Getenv("USER")
	}
	if c.Root == nil {
		root := os.Geteuid() == 0
		c.Root = &root
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "host.Detector"})
	return nil
}

// Detector detects the host properties.
type Detector struct {
	fs       fs.FS
	lookPath func(file string) (string, error)
	user     string
	root     bool
	logger   log.Logger
}

// NewDetector returns a new host detector.
func NewDetector(cfg DetectorConfig) (*Detector, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Detector{
		fs:       cfg.FS,
		lookPath: cfg.LookPath,
		user:     cfg.User,
		root:     *cfg.Root,
		logger:   cfg.Logger,
	}, nil
}

// Detect returns the host distribution, package manager and user. Unknown
// distributions are not an error.
func (d *Detector) Detect(ctx context.Context) (model.Host, error) {
	if ctx.Err() != nil {
		return model.Host{}, ctx.Err()
	}

	host := model.Host{
		Distro:         "unknown",
		PackageManager: model.PackageManagerUnknown,
		User:           d.user,
		Root:           d.root,
	}

	data, err := fs.ReadFile(d.fs, "etc/os-release")
	switch {
	case err == nil:
		release := ParseOSRelease(data)
		if id := release["ID"]; id != "" {
			host.Distro = id
		}
		host.DistroVersion = release["VERSION_ID"]
		host.DistroLike = strings.Fields(release["ID_LIKE"])
	case errors.Is(err, fs.ErrNotExist):
		d.logger.Warningf("os-release file missing, unknown distribution")
	default:
		return model.Host{}, fmt.Errorf("could not read os-release: %w", err)
	}

	// MX Linux reports its Debian base on os-release.
	if _, err := fs.Stat(d.fs, "etc/mx-version"); err == nil {
		host.Distro = "mx"
	}

	for _, pm := range packageManagers {
		if _, err := d.lookPath(string(pm)); err == nil {
			host.PackageManager = pm
			break
		}
	}

	d.logger.Debugf("Detected host %s %s with %s package manager", host.Distro, host.DistroVersion, host.PackageManager)
	return host, nil
}

// ParseOSRelease parses an os-release file content.
func ParseOSRelease(data []byte) map[string]string {
	res := map[string]string{}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		v = strings.Trim(strings.TrimSpace(v), `"'`)
		res[strings.TrimSpace(k)] = v
	}

	return res
}
