// Package console is the foreground of a run: it renders the reported events and
// answers the input requests of the pipeline.
package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/slok/stackup/internal/model"
)

// Step status glyphs.
const (
	GlyphActive   = "▸"
	GlyphSuccess  = "✓"
	GlyphError    = "✗"
	GlyphCanceled = "○"
	GlyphWarning  = "!"
	GlyphInfo     = "●"
	GlyphOutput   = "│"
)

var (
	purple = lipgloss.Color("99")
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	yellow = lipgloss.Color("214")
	dim    = lipgloss.Color("243")
)

type styles struct {
	accent  lipgloss.Style
	success lipgloss.Style
	err     lipgloss.Style
	warn    lipgloss.Style
	muted   lipgloss.Style
	bold    lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		accent:  r.NewStyle().Foreground(purple),
		success: r.NewStyle().Foreground(green),
		err:     r.NewStyle().Foreground(red),
		warn:    r.NewStyle().Foreground(yellow),
		muted:   r.NewStyle().Foreground(dim),
		bold:    r.NewStyle().Bold(true),
	}
}

// RendererConfig is the configuration for the Renderer.
type RendererConfig struct {
	Out io.Writer
	// Color enables the ANSI styling, otherwise plain text is written.
	Color bool
	// Quiet hides the commands output lines.
	Quiet bool
}

func (c *RendererConfig) defaults() error {
	if c.Out == nil {
		return fmt.Errorf("output writer is required")
	}
	return nil
}

// Renderer is a reporter that writes the run events as styled lines. It's safe
// for concurrent use.
type Renderer struct {
	out    io.Writer
	quiet  bool
	styles styles

	mu    sync.Mutex
	steps []string
}

// NewRenderer returns a new Renderer.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	lr := lipgloss.NewRenderer(cfg.Out)
	if cfg.Color {
		lr.SetColorProfile(termenv.ColorProfile())
	} else {
		lr.SetColorProfile(termenv.Ascii)
	}

	return &Renderer{
		out:    cfg.Out,
		quiet:  cfg.Quiet,
		styles: newStyles(lr),
	}, nil
}

// SetSteps sets the descriptions of the steps the transitions refer to.
func (r *Renderer) SetSteps(descriptions []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append([]string(nil), descriptions...)
}

func (r *Renderer) Event(e model.Event) {
	s := r.styles
	var line string
	switch e.Category {
	case model.EventCategorySuccess:
		line = s.success.Render(GlyphSuccess) + " " + e.Message
	case model.EventCategoryError:
		line = s.err.Render(GlyphError) + " " + s.err.Render(e.Message)
	case model.EventCategoryWarning:
		line = s.warn.Render(GlyphWarning) + " " + e.Message
	case model.EventCategoryOutput:
		if r.quiet {
			return
		}
		line = "  " + s.muted.Render(GlyphOutput+" "+e.Message)
	case model.EventCategoryRealtime:
		line = "  " + s.muted.Render(e.Message)
	default:
		line = s.accent.Render(GlyphInfo) + " " + e.Message
	}

	r.write(line)
}

func (r *Renderer) StepStatus(index int, status model.StepStatus) {
	s := r.styles

	var glyph string
	switch status {
	case model.StepStatusActive:
		glyph = s.accent.Render(GlyphActive)
	case model.StepStatusSuccess:
		glyph = s.success.Render(GlyphSuccess)
	case model.StepStatusError:
		glyph = s.err.Render(GlyphError)
	case model.StepStatusCanceled:
		glyph = s.warn.Render(GlyphCanceled)
	default:
		return
	}

	r.mu.Lock()
	total := len(r.steps)
	desc := fmt.Sprintf("step %d", index+1)
	if index >= 0 && index < total {
		desc = r.steps[index]
	}
	r.mu.Unlock()

	counter := s.muted.Render(fmt.Sprintf("[%d/%d]", index+1, total))
	if status == model.StepStatusActive {
		desc = s.bold.Render(desc)
	}
	r.write(counter + " " + glyph + " " + desc)
}

// Summary writes the final line of a run.
func (r *Renderer) Summary(res model.RunResult) {
	s := r.styles
	switch res.RunStatus() {
	case model.RunStatusSucceeded:
		r.write(s.success.Render(GlyphSuccess + " All steps completed"))
	case model.RunStatusCanceled:
		r.write(s.warn.Render(GlyphCanceled + " Run canceled"))
	default:
		r.write(s.err.Render(GlyphError + " Run failed"))
	}
}

func (r *Renderer) write(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, line)
}
