package executor

import (
	"errors"
	"strings"
	"syscall"
)

// Condition is a detectable condition on a command output line.
type Condition int

const (
	// ConditionNone means nothing relevant was detected.
	ConditionNone Condition = iota
	// ConditionAuthRejected means the elevation rejected the credential.
	ConditionAuthRejected
	// ConditionAuthPrompted means the elevation asked for the credential.
	ConditionAuthPrompted
	// ConditionTransient means the failure is likely to succeed on retry.
	ConditionTransient
)

// Classifier knows how to detect authentication and transient failures.
type Classifier interface {
	// ClassifyLine classifies a single output line.
	ClassifyLine(line string) Condition
	// IsTransient returns true if an execution error can be retried.
	IsTransient(err error) bool
}

// MarkerClassifier classifies using case insensitive text markers.
type MarkerClassifier struct {
	AuthRejected []string
	AuthPrompted []string
	Transient    []string
}

// NewMarkerClassifier returns a classifier with the markers of the common
// elevation and networking failures. Transient markers are full error
// signatures, a failed command is deterministic unless its output proves otherwise.
func NewMarkerClassifier() *MarkerClassifier {
	return &MarkerClassifier{
		AuthRejected: []string{"incorrect password", "sorry, try again"},
		AuthPrompted: []string{"password for"},
		Transient: []string{
			"econnreset",
			"connection reset by peer",
			"etimedout",
			"connection timed out",
			"network is unreachable",
			"network is down",
			"temporary failure in name resolution",
			"could not resolve host",
		},
	}
}

func (m *MarkerClassifier) ClassifyLine(line string) Condition {
	line = strings.ToLower(line)
	switch {
	case containsAny(line, m.AuthRejected):
		return ConditionAuthRejected
	case containsAny(line, m.AuthPrompted):
		return ConditionAuthPrompted
	case containsAny(line, m.Transient):
		return ConditionTransient
	}
	return ConditionNone
}

func (m *MarkerClassifier) IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ETIMEDOUT) || errors.Is(err, syscall.EAGAIN) {
		return true
	}
	return containsAny(strings.ToLower(err.Error()), m.Transient)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(s, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
