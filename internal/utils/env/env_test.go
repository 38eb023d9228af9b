package env_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/stackup/internal/model"
	"github.com/slok/stackup/internal/utils/env"
)

func TestValidateName(t *testing.T) {
	tests := map[string]struct {
		name   string
		expErr bool
	}{
		"A plain name should be valid": {
			name: "db_password",
		},
		"A name with a leading underscore should be valid": {
			name: "_tmp1",
		},
		"An empty name should fail": {
			name:   "",
			expErr: true,
		},
		"A name with dashes should fail": {
			name:   "project-dir",
			expErr: true,
		},
		"A name starting with a digit should fail": {
			name:   "1dir",
			expErr: true,
		},
		"A host variable should fail": {
			name:   "pm",
			expErr: true,
		},
		"The variables map name should fail": {
			name:   "vars",
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := env.ValidateName(test.name)
			if test.expErr {
				assert.ErrorIs(t, err, model.ErrNotValid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("DB_PASSWORD", "from-env")

	tests := map[string]struct {
		specs   []string
		expVars map[string]string
		expErr  bool
	}{
		"NAME=VALUE should set the variable": {
			specs:   []string{"dir=/var/www/app"},
			expVars: map[string]string{"dir": "/var/www/app"},
		},
		"Values can contain equal signs": {
			specs:   []string{"db_password=a=b"},
			expVars: map[string]string{"db_password": "a=b"},
		},
		"An empty value should be kept": {
			specs:   []string{"panel="},
			expVars: map[string]string{"panel": ""},
		},
		"A bare name should take the environment value": {
			specs:   []string{"DB_PASSWORD"},
			expVars: map[string]string{"DB_PASSWORD": "from-env"},
		},
		"Later overrides should win": {
			specs:   []string{"panel=none", "panel=phpmyadmin"},
			expVars: map[string]string{"panel": "phpmyadmin"},
		},
		"A bare name missing from the environment should fail": {
			specs:  []string{"DOES_NOT_EXIST"},
			expErr: true,
		},
		"An invalid name should fail": {
			specs:  []string{"project-dir=value"},
			expErr: true,
		},
		"Overriding a host variable should fail": {
			specs:  []string{"user=root"},
			expErr: true,
		},
		"An empty spec should fail": {
			specs:  []string{""},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			vars, err := env.ParseOverrides(test.specs)

			if test.expErr {
				require.ErrorIs(t, err, model.ErrNotValid)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.expVars, vars)
		})
	}
}

func TestMerge(t *testing.T) {
	assert.Equal(t, map[string]string{}, env.Merge())
	assert.Equal(t, map[string]string{}, env.Merge(nil, nil))
	assert.Equal(t,
		map[string]string{"a": "1", "b": "3", "c": "4"},
		env.Merge(map[string]string{"a": "1", "b": "2"}, map[string]string{"b": "3", "c": "4"}),
	)
}
