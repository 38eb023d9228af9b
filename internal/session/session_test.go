package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/stackup/internal/session"
)

func TestSessionCurrentStep(t *testing.T) {
	tests := map[string]struct {
		steps  []int
		expCur int
	}{
		"Increasing steps should be stored": {
			steps:  []int{1, 2, 3},
			expCur: 3,
		},
		"Decreasing steps should be ignored": {
			steps:  []int{4, 2, 1},
			expCur: 4,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			s := session.New()
			for _, st := range test.steps {
				s.SetCurrentStep(st)
			}
			assert.Equal(t, test.expCur, s.CurrentStep())
		})
	}
}

func TestSessionCredential(t *testing.T) {
	assert := assert.New(t)

	s := session.New()
	_, ok := s.Credential()
	assert.False(ok)

	s.SetCredential("s3cr3t")
	cred, ok := s.Credential()
	assert.True(ok)
	assert.Equal("s3cr3t", cred)
	assert.Equal([]string{"s3cr3t"}, s.Secrets())
}

func TestSessionSecretsOrder(t *testing.T) {
	s := session.New()
	s.AddSecret("abc")
	s.AddSecret("abcdef")
	s.AddSecret("")
	s.AddSecret("xyz")

	assert.Equal(t, []string{"abcdef", "abc", "xyz"}, s.Secrets())
}

func TestSessionCancel(t *testing.T) {
	s := session.New()
	assert.False(t, s.Canceled())
	s.Cancel()
	assert.True(t, s.Canceled())
}
