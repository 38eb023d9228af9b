// Package sysuser resolves the system user unprivileged commands run as.
package sysuser

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"
	"syscall"
)

// User is a resolved system user.
type User struct {
	Name string
	UID  uint32
	GID  uint32
	Home string
}

// Lookup resolves a user by name.
func Lookup(name string) (*User, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("could not lookup user %q: %w", name, err)
	}

	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid uid %q: %w", u.Uid, err)
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid gid %q: %w", u.Gid, err)
	}

	return &User{
		Name: u.Username,
		UID:  uint32(uid),
		GID:  uint32(gid),
		Home: u.HomeDir,
	}, nil
}

// Current returns the user running the process.
func Current() (*User, error) {
	u, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("could not get current user: %w", err)
	}
	return Lookup(u.Username)
}

// Credential returns the credential to run a process as the user. It returns nil
// when the process already runs as that user or it can't switch users.
func (u *User) Credential() *syscall.Credential {
	if u == nil || os.Geteuid() != 0 || uint32(os.Geteuid()) == u.UID {
		return nil
	}
	return &syscall.Credential{Uid: u.UID, Gid: u.GID}
}

// Env returns base with the user specific variables replaced.
func (u *User) Env(base []string) []string {
	if u == nil {
		return base
	}

	env := make([]string, 0, len(base)+3)
	for _, kv := range base {
		if strings.HasPrefix(kv, "HOME=") || strings.HasPrefix(kv, "USER=") || strings.HasPrefix(kv, "LOGNAME=") {
			continue
		}
		env = append(env, kv)
	}

	return append(env, "HOME="+u.Home, "USER="+u.Name, "LOGNAME="+u.Name)
}
