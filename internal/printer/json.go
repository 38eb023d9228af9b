package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/stackup/internal/model"
)

// JSONPrinter prints information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// runOutput represents a run in the output.
type runOutput struct {
	ID          string     `json:"id"`
	Plan        string     `json:"plan"`
	Status      string     `json:"status"`
	CurrentStep int        `json:"current_step"`
	TotalSteps  int        `json:"total_steps"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  *time.Time `json:"finished_at"`
}

// runDetailOutput represents the full run status output.
type runDetailOutput struct {
	runOutput
	Steps     []stepOutput    `json:"steps"`
	Processes []processOutput `json:"processes"`
}

type stepOutput struct {
	Index       int       `json:"index"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type processOutput struct {
	PID       int       `json:"pid"`
	PGID      int       `json:"pgid"`
	Command   string    `json:"command"`
	LogPath   string    `json:"log_path,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

type planOutput struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Vars        map[string]string `json:"vars,omitempty"`
	Steps       []planStepOutput  `json:"steps"`
}

type planStepOutput struct {
	Name     string `json:"name"`
	When     string `json:"when,omitempty"`
	Prompts  int    `json:"prompts"`
	Commands int    `json:"commands"`
	Env      bool   `json:"env"`
	Cron     bool   `json:"cron"`
	Services int    `json:"services"`
}

type checksOutput struct {
	Distro         string        `json:"distro"`
	DistroVersion  string        `json:"distro_version"`
	PackageManager string        `json:"package_manager"`
	User           string        `json:"user"`
	Root           bool          `json:"root"`
	Checks         []checkOutput `json:"checks"`
}

type checkOutput struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintRuns prints runs in JSON format.
func (j *JSONPrinter) PrintRuns(runs []model.Run) error {
	items := make([]runOutput, len(runs))
	for i, r := range runs {
		items[i] = newRunOutput(r)
	}

	return j.encode(items)
}

// PrintRun prints the detailed status of a run in JSON format.
func (j *JSONPrinter) PrintRun(run model.Run, steps []model.StepRecord, procs []model.ManagedProcess) error {
	output := runDetailOutput{
		runOutput: newRunOutput(run),
		Steps:     make([]stepOutput, len(steps)),
		Processes: make([]processOutput, len(procs)),
	}

	for i, s := range steps {
		output.Steps[i] = stepOutput{
			Index:       s.Index,
			Description: s.Description,
			Status:      string(s.Status),
			Error:       s.Error,
			UpdatedAt:   s.UpdatedAt.UTC(),
		}
	}
	for i, p := range procs {
		output.Processes[i] = newProcessOutput(p)
	}

	return j.encode(output)
}

// PrintPlan prints the steps of a plan in JSON format.
func (j *JSONPrinter) PrintPlan(plan model.Plan) error {
	output := planOutput{
		Name:        plan.Name,
		Description: plan.Description,
		Vars:        plan.Vars,
		Steps:       make([]planStepOutput, len(plan.Steps)),
	}

	for i, s := range plan.Steps {
		output.Steps[i] = planStepOutput{
			Name:     s.Name,
			When:     s.When,
			Prompts:  len(s.Prompts),
			Commands: len(s.Commands),
			Env:      s.Env != nil,
			Cron:     s.Cron != nil,
			Services: len(s.Services),
		}
	}

	return j.encode(output)
}

// PrintChecks prints the detected host and its requirement checks in JSON format.
func (j *JSONPrinter) PrintChecks(host model.Host, checks []model.CheckResult) error {
	output := checksOutput{
		Distro:         host.Distro,
		DistroVersion:  host.DistroVersion,
		PackageManager: string(host.PackageManager),
		User:           host.User,
		Root:           host.Root,
		Checks:         make([]checkOutput, len(checks)),
	}

	for i, c := range checks {
		output.Checks[i] = checkOutput{ID: c.ID, Status: string(c.Status), Message: c.Message}
	}

	return j.encode(output)
}

// PrintProcesses prints background processes in JSON format.
func (j *JSONPrinter) PrintProcesses(procs []model.ManagedProcess) error {
	items := make([]processOutput, len(procs))
	for i, p := range procs {
		items[i] = newProcessOutput(p)
	}

	return j.encode(items)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRunOutput(r model.Run) runOutput {
	out := runOutput{
		ID:          r.ID,
		Plan:        r.Plan,
		Status:      string(r.Status),
		CurrentStep: r.CurrentStep,
		TotalSteps:  r.TotalSteps,
		Error:       r.Error,
		CreatedAt:   r.CreatedAt.UTC(),
	}

	if r.FinishedAt != nil {
		utcTime := r.FinishedAt.UTC()
		out.FinishedAt = &utcTime
	}

	return out
}

func newProcessOutput(p model.ManagedProcess) processOutput {
	return processOutput{
		PID:       p.PID,
		PGID:      p.PGID,
		Command:   p.Command,
		LogPath:   p.LogPath,
		StartedAt: p.StartedAt.UTC(),
	}
}
