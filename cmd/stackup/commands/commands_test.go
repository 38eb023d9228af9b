package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kingpin/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/stackup/internal/log"
	"github.com/slok/stackup/internal/model"
)

const testPlan = `
name: test
vars:
  dir: /srv/app
steps:
  - name: Install PHP
    when: pm == "apt"
    commands:
      - run: apt-get install -y php
        privileged: true
  - name: Serve
    services:
      - run: php artisan serve
        dir: "{{ .dir }}"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunCommandLoadVars(t *testing.T) {
	t.Setenv("FROM_HOST", "host-value")

	tests := map[string]struct {
		vars     []string
		varsFile string
		expVars  map[string]string
		expErr   bool
	}{
		"No vars should return an empty map": {
			expVars: map[string]string{},
		},
		"KEY=VALUE flags should parse": {
			vars:    []string{"dir=/srv/app"},
			expVars: map[string]string{"dir": "/srv/app"},
		},
		"KEY flags should inherit from host": {
			vars:    []string{"FROM_HOST"},
			expVars: map[string]string{"FROM_HOST": "host-value"},
		},
		"Flags should override the vars file": {
			vars:     []string{"dir=/opt/app"},
			varsFile: "dir: /srv/app\ndb: shop\n",
			expVars:  map[string]string{"dir": "/opt/app", "db": "shop"},
		},
		"Invalid vars file keys should fail": {
			varsFile: "1dir: /srv/app\n",
			expErr:   true,
		},
		"A vars file setting a host variable should fail": {
			varsFile: "user: root\n",
			expErr:   true,
		},
		"Invalid vars file YAML should fail": {
			varsFile: "- a\n- b\n",
			expErr:   true,
		},
		"Missing inherited var should fail": {
			vars:   []string{"DOES_NOT_EXIST"},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			c := RunCommand{vars: test.vars}
			if test.varsFile != "" {
				c.varsFile = writeFile(t, "vars.yaml", test.varsFile)
			}

			vars, err := c.loadVars()

			if test.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expVars, vars)
		})
	}
}

func TestParseRunStatus(t *testing.T) {
	failed := model.RunStatusFailed

	tests := map[string]struct {
		status    string
		expStatus *model.RunStatus
		expErr    bool
	}{
		"Empty status should not filter":    {status: "", expStatus: nil},
		"Status should be case insensitive": {status: "FAILED", expStatus: &failed},
		"Unknown status should fail":        {status: "stopped", expErr: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			status, err := parseRunStatus(test.status)

			if test.expErr {
				assert.ErrorIs(t, err, model.ErrNotValid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expStatus, status)
		})
	}
}

func TestSummarizeChecks(t *testing.T) {
	tests := map[string]struct {
		checks     []model.CheckResult
		expSummary string
		expErrs    int
	}{
		"All OK checks should pass": {
			checks:     []model.CheckResult{{ID: "shell", Status: model.CheckStatusOK}},
			expSummary: "All checks passed!",
		},
		"Errors and warnings should be counted": {
			checks: []model.CheckResult{
				{ID: "shell", Status: model.CheckStatusError},
				{ID: "git", Status: model.CheckStatusWarning},
				{ID: "crontab", Status: model.CheckStatusWarning},
			},
			expSummary: "1 error(s), 2 warning(s)",
			expErrs:    1,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			summary, errs := summarizeChecks(test.checks)
			assert.Equal(t, test.expSummary, summary)
			assert.Equal(t, test.expErrs, errs)
		})
	}
}

func TestPlanCommand(t *testing.T) {
	tests := map[string]struct {
		plan   string
		format string
		expOut []string
		expErr bool
	}{
		"A valid plan should be listed as a table": {
			plan:   testPlan,
			format: "table",
			expOut: []string{"Install PHP", "Serve", `pm == "apt"`},
		},
		"A valid plan should be listed as JSON": {
			plan:   testPlan,
			format: "json",
			expOut: []string{`"name": "test"`, `"Install PHP"`},
		},
		"Unknown fields should fail": {
			plan:   "name: test\nsteps:\n  - name: a\n    shell: true\n",
			format: "table",
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, "plan.yaml", test.plan)

			app := kingpin.New("stackup", "")
			root := NewRootCommand(app)
			cmd := NewPlanCommand(root, app)
			_, err := app.Parse([]string{"plan", path, "--format", test.format})
			require.NoError(t, err)

			var out bytes.Buffer
			root.Stdout = &out
			root.Logger = log.Noop

			err = cmd.Run(context.Background())

			if test.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			for _, exp := range test.expOut {
				assert.Contains(t, out.String(), exp)
			}
		})
	}
}
