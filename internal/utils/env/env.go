// Package env validates and loads the run variables that override the plan
// ones, given as NAME=VALUE on the command line or as a vars file.
package env

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/slok/stackup/internal/model"
)

// Names are used as template fields and condition identifiers.
var nameRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// hostNames are filled from the detected host on every run and can't be set.
var hostNames = map[string]bool{
	"distro":         true,
	"distro_version": true,
	"pm":             true,
	"user":           true,
	"root":           true,
	"vars":           true,
}

// ValidateName checks that name can be used as a run variable.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid variable name %q, must be letters, digits and underscores: %w", name, model.ErrNotValid)
	}
	if hostNames[name] {
		return fmt.Errorf("variable %q is set from the host and can't be overridden: %w", name, model.ErrNotValid)
	}
	return nil
}

// ParseOverrides parses NAME=VALUE overrides. A bare NAME takes the value of the
// environment variable with the same name so secrets don't need to be typed on
// the command line. Later overrides win.
func ParseOverrides(specs []string) (map[string]string, error) {
	vars := make(map[string]string, len(specs))

	for _, spec := range specs {
		name, value, hasValue := strings.Cut(spec, "=")
		if err := ValidateName(name); err != nil {
			return nil, err
		}

		if !hasValue {
			v, ok := os.LookupEnv(name)
			if !ok {
				return nil, fmt.Errorf("variable %q has no value and is not set in the environment: %w", name, model.ErrNotValid)
			}
			value = v
		}

		vars[name] = value
	}

	return vars, nil
}

// Merge merges variable layers, later layers win. It never returns nil.
func Merge(layers ...map[string]string) map[string]string {
	merged := map[string]string{}
	for _, l := range layers {
		for k, v := range l {
			merged[k] = v
		}
	}
	return merged
}
