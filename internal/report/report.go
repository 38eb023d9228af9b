// Package report has the status reporting sinks used to observe a run.
package report

import (
	"fmt"
	"strings"
	"sync"

	"github.com/slok/stackup/internal/log"
	"github.com/slok/stackup/internal/model"
)

// Reporter receives the events and step transitions of a run. Calls are
// synchronous so the order is kept per emitting goroutine.
type Reporter interface {
	Event(e model.Event)
	StepStatus(index int, status model.StepStatus)
}

// Noop reporter discards everything.
var Noop Reporter = noop{}

type noop struct{}

func (noop) Event(model.Event)                {}
func (noop) StepStatus(int, model.StepStatus) {}

// Funcs is a helper to create reporters from functions, nil functions are ignored.
type Funcs struct {
	EventFunc      func(e model.Event)
	StepStatusFunc func(index int, status model.StepStatus)
}

func (f Funcs) Event(e model.Event) {
	if f.EventFunc != nil {
		f.EventFunc(e)
	}
}

func (f Funcs) StepStatus(index int, status model.StepStatus) {
	if f.StepStatusFunc != nil {
		f.StepStatusFunc(index, status)
	}
}

type multi []Reporter

// NewMulti returns a reporter that forwards to all the reporters in order.
func NewMulti(rs ...Reporter) Reporter {
	return multi(rs)
}

func (m multi) Event(e model.Event) {
	for _, r := range m {
		r.Event(e)
	}
}

func (m multi) StepStatus(index int, status model.StepStatus) {
	for _, r := range m {
		r.StepStatus(index, status)
	}
}

// Infof reports an info event.
func Infof(r Reporter, format string, args ...any) {
	r.Event(model.Event{Message: fmt.Sprintf(format, args...), Category: model.EventCategoryInfo})
}

// Successf reports a success event.
func Successf(r Reporter, format string, args ...any) {
	r.Event(model.Event{Message: fmt.Sprintf(format, args...), Category: model.EventCategorySuccess})
}

// Warningf reports a warning event.
func Warningf(r Reporter, format string, args ...any) {
	r.Event(model.Event{Message: fmt.Sprintf(format, args...), Category: model.EventCategoryWarning})
}

// Errorf reports an error event.
func Errorf(r Reporter, format string, args ...any) {
	r.Event(model.Event{Message: fmt.Sprintf(format, args...), Category: model.EventCategoryError})
}

// Realtimef reports a realtime event, used for transient progress lines.
func Realtimef(r Reporter, format string, args ...any) {
	r.Event(model.Event{Message: fmt.Sprintf(format, args...), Category: model.EventCategoryRealtime})
}

// Output reports a raw command output line.
func Output(r Reporter, line string) {
	r.Event(model.Event{Message: line, Category: model.EventCategoryOutput})
}

// Mask is what secrets are replaced with.
const Mask = "****"

// Redact replaces every secret occurrence in s.
func Redact(s string, secrets []string) string {
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		s = strings.ReplaceAll(s, secret, Mask)
	}
	return s
}

type redactor struct {
	next    Reporter
	secrets func() []string
}

// NewRedactor returns a reporter that masks the secrets returned by secrets
// before forwarding events to next.
func NewRedactor(next Reporter, secrets func() []string) Reporter {
	return redactor{next: next, secrets: secrets}
}

func (r redactor) Event(e model.Event) {
	e.Message = Redact(e.Message, r.secrets())
	r.next.Event(e)
}

func (r redactor) StepStatus(index int, status model.StepStatus) {
	r.next.StepStatus(index, status)
}

type logReporter struct {
	logger log.Logger
}

// NewLogReporter returns a reporter that writes events to the logger.
func NewLogReporter(logger log.Logger) Reporter {
	if logger == nil {
		logger = log.Noop
	}
	return logReporter{logger: logger.WithValues(log.Kv{"svc": "report.Log"})}
}

func (l logReporter) Event(e model.Event) {
	switch e.Category {
	case model.EventCategoryError:
		l.logger.Errorf("%s", e.Message)
	case model.EventCategoryWarning:
		l.logger.Warningf("%s", e.Message)
	case model.EventCategoryOutput, model.EventCategoryRealtime:
		l.logger.Debugf("%s", e.Message)
	default:
		l.logger.Infof("%s", e.Message)
	}
}

func (l logReporter) StepStatus(index int, status model.StepStatus) {
	l.logger.WithValues(log.Kv{"step": index}).Debugf("Step status changed to %s", status)
}

// StepTransition is a recorded step status change.
type StepTransition struct {
	Index  int
	Status model.StepStatus
}

// Recorder stores everything it receives in memory.
type Recorder struct {
	mu          sync.Mutex
	events      []model.Event
	transitions []StepTransition
}

func (r *Recorder) Event(e model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) StepStatus(index int, status model.StepStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, StepTransition{Index: index, Status: status})
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event{}, r.events...)
}

// Messages returns the recorded event messages of a category.
func (r *Recorder) Messages(cat model.EventCategory) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var msgs []string
	for _, e := range r.events {
		if e.Category == cat {
			msgs = append(msgs, e.Message)
		}
	}
	return msgs
}

// Transitions returns a copy of the recorded step transitions.
func (r *Recorder) Transitions() []StepTransition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StepTransition{}, r.transitions...)
}

// Contains returns true if any recorded event message contains s.
func (r *Recorder) Contains(s string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if strings.Contains(e.Message, s) {
			return true
		}
	}
	return false
}
