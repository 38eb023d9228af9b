package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/slok/stackup/internal/input"
	"github.com/slok/stackup/internal/log"
	"github.com/slok/stackup/internal/model"
)

// Prompter asks the user for the value of an input request.
type Prompter interface {
	Prompt(ctx context.Context, req model.InputRequest) (model.InputResponse, error)
}

// Serve answers the bridge input requests with the prompter until the context
// is done. A request the prompter fails on is declined.
func Serve(ctx context.Context, bridge *input.Bridge, prompter Prompter, logger log.Logger) error {
	if logger == nil {
		logger = log.Noop
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case p := <-bridge.Requests():
			resp, err := prompter.Prompt(ctx, p.Request)
			if err != nil {
				logger.Errorf("Could not prompt for %q: %s", p.Request.Label, err)
				resp = model.InputResponse{Accepted: false}
			}
			p.Respond(resp)
		}
	}
}

// TTYPrompterConfig is the configuration for the TTYPrompter.
type TTYPrompterConfig struct {
	In  io.Reader
	Out io.Writer
}

func (c *TTYPrompterConfig) defaults() error {
	if c.In == nil {
		return fmt.Errorf("input reader is required")
	}
	if c.Out == nil {
		return fmt.Errorf("output writer is required")
	}
	return nil
}

// TTYPrompter prompts on a terminal. Secret values are not echoed, Esc or
// Ctrl+C decline the request.
type TTYPrompter struct {
	in  io.Reader
	out io.Writer

	// Prompts are shown one at a time.
	mu sync.Mutex
}

// NewTTYPrompter returns a new TTYPrompter.
func NewTTYPrompter(cfg TTYPrompterConfig) (*TTYPrompter, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &TTYPrompter{in: cfg.In, out: cfg.Out}, nil
}

func (t *TTYPrompter) Prompt(ctx context.Context, req model.InputRequest) (model.InputResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := newPromptModel(req, lipgloss.NewRenderer(t.out))
	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(t.in),
		tea.WithOutput(t.out),
	)
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) {
			return model.InputResponse{}, fmt.Errorf("prompt interrupted: %w", model.ErrCanceled)
		}
		return model.InputResponse{}, fmt.Errorf("text prompt: %w", err)
	}

	return m.response(), nil
}

// promptModel is a bubbletea model for a single input request.
type promptModel struct {
	req       model.InputRequest
	textInput textinput.Model
	styles    styles
	cancelled bool
	submitted bool
}

func newPromptModel(req model.InputRequest, r *lipgloss.Renderer) *promptModel {
	s := newStyles(r)

	ti := textinput.New()
	ti.Focus()
	ti.PromptStyle = s.accent
	ti.TextStyle = r.NewStyle()
	if req.Default != nil {
		ti.Placeholder = *req.Default
	}
	if req.Secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}

	return &promptModel{req: req, textInput: ti, styles: s}
}

func (m *promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "enter":
			m.submitted = true
			return m, tea.Quit
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m *promptModel) View() string {
	if m.submitted || m.cancelled {
		return ""
	}

	var sb strings.Builder
	if m.req.Title != "" {
		sb.WriteString(m.styles.bold.Render(m.req.Title) + "\n")
	}
	sb.WriteString(m.styles.accent.Render("?") + " " + m.req.Label + "\n")
	sb.WriteString(m.textInput.View() + "\n")
	if m.req.Secret {
		sb.WriteString(m.styles.muted.Render("The value is hidden. Esc to cancel.") + "\n")
	}
	return sb.String()
}

func (m *promptModel) response() model.InputResponse {
	if m.cancelled || !m.submitted {
		return model.InputResponse{Accepted: false}
	}

	value := m.textInput.Value()
	if value == "" && m.req.Default != nil {
		value = *m.req.Default
	}
	return model.InputResponse{Value: value, Accepted: true}
}

// LinePrompterConfig is the configuration for the LinePrompter.
type LinePrompterConfig struct {
	In  io.Reader
	Out io.Writer
}

func (c *LinePrompterConfig) defaults() error {
	if c.In == nil {
		return fmt.Errorf("input reader is required")
	}
	if c.Out == nil {
		c.Out = io.Discard
	}
	return nil
}

// LinePrompter reads one line per request, for pipes and dumb terminals. The end
// of the input declines every request.
type LinePrompter struct {
	out   io.Writer
	lines chan string

	mu sync.Mutex
}

// NewLinePrompter returns a new LinePrompter.
func NewLinePrompter(cfg LinePrompterConfig) (*LinePrompter, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	l := &LinePrompter{out: cfg.Out, lines: make(chan string)}
	go l.read(cfg.In)

	return l, nil
}

// read feeds the lines until the end of the input, a single reader keeps the
// lines ordered across canceled prompts.
func (l *LinePrompter) read(in io.Reader) {
	defer close(l.lines)

	sc := bufio.NewScanner(in)
	for sc.Scan() {
		l.lines <- strings.TrimRight(sc.Text(), "\r")
	}
}

func (l *LinePrompter) Prompt(ctx context.Context, req model.InputRequest) (model.InputResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if req.Title != "" {
		fmt.Fprintln(l.out, req.Title)
	}
	if req.Default != nil && !req.Secret {
		fmt.Fprintf(l.out, "%s [%s]: ", req.Label, *req.Default)
	} else {
		fmt.Fprintf(l.out, "%s: ", req.Label)
	}

	select {
	case <-ctx.Done():
		return model.InputResponse{}, fmt.Errorf("prompt interrupted: %w", model.ErrCanceled)
	case line, ok := <-l.lines:
		if !ok {
			fmt.Fprintln(l.out)
			return model.InputResponse{Accepted: false}, nil
		}
		if line == "" && req.Default != nil {
			line = *req.Default
		}
		return model.InputResponse{Value: line, Accepted: true}, nil
	}
}
