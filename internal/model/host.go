package model

// PackageManager is the host system package manager.
type PackageManager string

const (
	PackageManagerUnknown PackageManager = "unknown"
	PackageManagerApt     PackageManager = "apt"
	PackageManagerDnf     PackageManager = "dnf"
	PackageManagerYum     PackageManager = "yum"
	PackageManagerPacman  PackageManager = "pacman"
	PackageManagerZypper  PackageManager = "zypper"
	PackageManagerApk     PackageManager = "apk"
)

// Host describes the machine being provisioned.
type Host struct {
	Distro         string
	DistroVersion  string
	DistroLike     []string
	PackageManager PackageManager
	User           string
	Root           bool
}

// CheckStatus represents the status of a preflight check.
type CheckStatus string

const (
	CheckStatusOK      CheckStatus = "ok"
	CheckStatusWarning CheckStatus = "warning"
	CheckStatusError   CheckStatus = "error"
)

// CheckResult represents the result of a single preflight check.
type CheckResult struct {
	ID      string
	Message string
	Status  CheckStatus
}
