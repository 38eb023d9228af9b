package plan_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/stackup/internal/model"
	"github.com/slok/stackup/internal/plan"
)

func strPtr(s string) *string { return &s }

func validPlan() model.Plan {
	return model.Plan{
		Name: "test",
		Vars: map[string]string{"dir": "/home/{{ .user }}/app"},
		Steps: []model.PlanStep{
			{
				Name: "Install PHP",
				When: `pm in ["apt", "dnf"]`,
				Commands: []model.PlanCommand{
					{Run: "apt-get install -y php", Privileged: true, When: `pm == "apt"`, Unless: "command -v php"},
				},
			},
			{
				Name:    "Configure",
				Prompts: []model.PlanPrompt{{ID: "panel", Title: "Filament", Label: "Panel id", Default: strPtr("admin")}},
				Env:     &model.PlanEnv{File: "{{ .dir }}/.env", Values: map[string]string{"PANEL": "{{ .panel }}"}},
			},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := map[string]struct {
		plan   func() model.Plan
		expErr bool
	}{
		"A valid plan should not fail": {
			plan: validPlan,
		},
		"A plan without steps should fail": {
			plan: func() model.Plan {
				p := validPlan()
				p.Steps = nil
				return p
			},
			expErr: true,
		},
		"A step with an invalid condition should fail": {
			plan: func() model.Plan {
				p := validPlan()
				p.Steps[0].When = `pm ==`
				return p
			},
			expErr: true,
		},
		"A command with an invalid condition should fail": {
			plan: func() model.Plan {
				p := validPlan()
				p.Steps[0].Commands[0].When = `)(`
				return p
			},
			expErr: true,
		},
		"A command with an invalid template should fail": {
			plan: func() model.Plan {
				p := validPlan()
				p.Steps[0].Commands[0].Run = "echo {{ .panel"
				return p
			},
			expErr: true,
		},
		"An env value with an invalid template should fail": {
			plan: func() model.Plan {
				p := validPlan()
				p.Steps[1].Env.Values["X"] = "{{ }}"
				return p
			},
			expErr: true,
		},
		"A var with an invalid template should fail": {
			plan: func() model.Plan {
				p := validPlan()
				p.Vars["broken"] = "{{ .user"
				return p
			},
			expErr: true,
		},
		"A var named after a host variable should fail": {
			plan: func() model.Plan {
				p := validPlan()
				p.Vars["distro"] = "debian"
				return p
			},
			expErr: true,
		},
		"A prompt whose id is not a valid variable name should fail": {
			plan: func() model.Plan {
				p := validPlan()
				p.Steps[1].Prompts[0].ID = "admin-panel"
				return p
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := plan.Validate(test.plan())
			if test.expErr {
				assert.True(t, errors.Is(err, model.ErrNotValid), "unexpected error: %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuilderBuild(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	b, err := plan.NewBuilder(plan.BuilderConfig{Host: model.Host{User: "deploy"}})
	require.NoError(err)

	steps, err := b.Build(validPlan())
	require.NoError(err)
	require.Len(steps, 2)
	assert.Equal("Install PHP", steps[0].Description)
	assert.Equal("Configure", steps[1].Description)
	assert.NotNil(steps[0].Runner)

	_, err = b.Build(model.Plan{})
	assert.True(errors.Is(err, model.ErrNotValid))
}

func TestNeedsElevation(t *testing.T) {
	tests := map[string]struct {
		plan   model.Plan
		expRes bool
	}{
		"A plan without privileged commands should not need elevation": {
			plan: model.Plan{Steps: []model.PlanStep{
				{Name: "a", Commands: []model.PlanCommand{{Run: "composer install"}}},
				{Name: "b", Services: []model.PlanService{{Run: "php artisan serve"}}},
			}},
			expRes: false,
		},
		"A plan with a privileged command should need elevation": {
			plan: model.Plan{Steps: []model.PlanStep{
				{Name: "a", Commands: []model.PlanCommand{{Run: "composer install"}}},
				{Name: "b", Commands: []model.PlanCommand{{Run: "apt update", Privileged: true}}},
			}},
			expRes: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expRes, plan.NeedsElevation(test.plan))
		})
	}
}
