package report_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/stackup/internal/model"
	"github.com/slok/stackup/internal/report"
)

func TestRedact(t *testing.T) {
	tests := map[string]struct {
		msg     string
		secrets []string
		expMsg  string
	}{
		"Without secrets the message should be kept": {
			msg:    "mysql -p hunter2",
			expMsg: "mysql -p hunter2",
		},
		"Secrets should be masked": {
			msg:     "mysql -p hunter2 && echo hunter2",
			secrets: []string{"hunter2"},
			expMsg:  "mysql -p **** && echo ****",
		},
		"Empty secrets should be ignored": {
			msg:     "hello",
			secrets: []string{""},
			expMsg:  "hello",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expMsg, report.Redact(test.msg, test.secrets))
		})
	}
}

func TestRedactorReporter(t *testing.T) {
	assert := assert.New(t)

	rec := &report.Recorder{}
	r := report.NewRedactor(rec, func() []string { return []string{"s3cr3t"} })

	report.Infof(r, "using %s", "s3cr3t")
	r.StepStatus(1, model.StepStatusActive)

	assert.Equal([]model.Event{{Message: "using ****", Category: model.EventCategoryInfo}}, rec.Events())
	assert.Equal([]report.StepTransition{{Index: 1, Status: model.StepStatusActive}}, rec.Transitions())
}

func TestMultiReporter(t *testing.T) {
	assert := assert.New(t)

	rec1 := &report.Recorder{}
	rec2 := &report.Recorder{}
	var got []model.StepStatus
	r := report.NewMulti(rec1, rec2, report.Funcs{
		StepStatusFunc: func(_ int, s model.StepStatus) { got = append(got, s) },
	})

	report.Warningf(r, "careful")
	r.StepStatus(0, model.StepStatusSuccess)

	assert.Equal([]string{"careful"}, rec1.Messages(model.EventCategoryWarning))
	assert.Equal([]string{"careful"}, rec2.Messages(model.EventCategoryWarning))
	assert.Equal([]model.StepStatus{model.StepStatusSuccess}, got)
}
