package host

import (
	"context"
	"fmt"

	"github.com/slok/stackup/internal/model"
)

// Check performs the preflight checks of the host.
func (d *Detector) Check(ctx context.Context, host model.Host) []model.CheckResult {
	var results []model.CheckResult

	results = append(results, checkDistro(host))
	results = append(results, checkPackageManager(host))
	results = append(results, d.checkBinary("shell", "bash", model.CheckStatusError))
	results = append(results, d.checkElevation(host))
	results = append(results, d.checkBinary("crontab", "crontab", model.CheckStatusWarning))
	results = append(results, d.checkBinary("git", "git", model.CheckStatusWarning))

	return results
}

func checkDistro(host model.Host) model.CheckResult {
	if host.Distro == "" || host.Distro == "unknown" {
		return model.CheckResult{
			ID:      "distribution",
			Message: "Unknown distribution, plan conditions on distro will not match",
			Status:  model.CheckStatusWarning,
		}
	}

	return model.CheckResult{
		ID:      "distribution",
		Message: fmt.Sprintf("Detected %s %s", host.Distro, host.DistroVersion),
		Status:  model.CheckStatusOK,
	}
}

func checkPackageManager(host model.Host) model.CheckResult {
	if host.PackageManager == "" || host.PackageManager == model.PackageManagerUnknown {
		return model.CheckResult{
			ID:      "package_manager",
			Message: "No supported package manager found (apt, dnf, yum, pacman, zypper, apk)",
			Status:  model.CheckStatusError,
		}
	}

	return model.CheckResult{
		ID:      "package_manager",
		Message: fmt.Sprintf("Using %s", host.PackageManager),
		Status:  model.CheckStatusOK,
	}
}

func (d *Detector) checkElevation(host model.Host) model.CheckResult {
	if host.Root {
		return model.CheckResult{
			ID:      "elevation",
			Message: "Running as root, privileged commands run directly",
			Status:  model.CheckStatusOK,
		}
	}

	path, err := d.lookPath("sudo")
	if err != nil {
		return model.CheckResult{
			ID:      "elevation",
			Message: "sudo not found in PATH, privileged commands will fail",
			Status:  model.CheckStatusError,
		}
	}

	return model.CheckResult{
		ID:      "elevation",
		Message: fmt.Sprintf("sudo found at %s", path),
		Status:  model.CheckStatusOK,
	}
}

func (d *Detector) checkBinary(id, bin string, missing model.CheckStatus) model.CheckResult {
	path, err := d.lookPath(bin)
	if err != nil {
		return model.CheckResult{
			ID:      id,
			Message: fmt.Sprintf("%s not found in PATH", bin),
			Status:  missing,
		}
	}

	return model.CheckResult{
		ID:      id,
		Message: fmt.Sprintf("%s found at %s", bin, path),
		Status:  model.CheckStatusOK,
	}
}
