// Package session holds the mutable state shared by the pipeline and the
// executor during a single run.
package session

import (
	"sort"
	"sync"
)

// Session is the state of a single run. It is safe for concurrent use.
type Session struct {
	mu            sync.Mutex
	credential    string
	hasCredential bool
	authenticated bool
	canceled      bool
	currentStep   int
	secrets       map[string]struct{}
}

// New returns a new empty session.
func New() *Session {
	return &Session{secrets: map[string]struct{}{}}
}

// SetCredential stores the privileged credential for the run. The credential
// is also masked on every reported line.
func (s *Session) SetCredential(credential string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = credential
	s.hasCredential = true
	s.addSecret(credential)
}

// Credential returns the stored credential, if any.
func (s *Session) Credential() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential, s.hasCredential
}

// MarkAuthenticated records that the elevation asked for and accepted the credential.
func (s *Session) MarkAuthenticated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = true
}

// Authenticated returns true when a privileged command has authenticated.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// Cancel marks the session as canceled, it can be called from any goroutine.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canceled = true
}

// Canceled returns true if the run was canceled.
func (s *Session) Canceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled
}

// SetCurrentStep sets the step being executed. The step only moves forward,
// lower values are ignored.
func (s *Session) SetCurrentStep(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i > s.currentStep {
		s.currentStep = i
	}
}

// CurrentStep returns the step being executed.
func (s *Session) CurrentStep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentStep
}

// AddSecret registers a value that must never be reported.
func (s *Session) AddSecret(secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addSecret(secret)
}

func (s *Session) addSecret(secret string) {
	if secret == "" {
		return
	}
	s.secrets[secret] = struct{}{}
}

// Secrets returns the registered secrets, longest first so overlapping
// values are fully masked.
func (s *Session) Secrets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	secrets := make([]string, 0, len(s.secrets))
	for secret := range s.secrets {
		secrets = append(secrets, secret)
	}
	sort.Slice(secrets, func(i, j int) bool {
		if len(secrets[i]) == len(secrets[j]) {
			return secrets[i] < secrets[j]
		}
		return len(secrets[i]) > len(secrets[j])
	})

	return secrets
}
