// Package tui is a terminal viewer for a running layout.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/TFMV/sitegraph/driver"
	"github.com/TFMV/sitegraph/render"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#8AB4F8")).
			MarginLeft(1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA")).
			MarginLeft(1)

	pausedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FBBC05"))

	canvasStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#DDDDDD"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginLeft(1)
)

// refresh is how often the view redraws; the driver steps on its own clock
const refresh = 100 * time.Millisecond

type keyMap struct {
	Pause  key.Binding
	Labels key.Binding
	Help   key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Pause: key.NewBinding(
		key.WithKeys(" ", "p"),
		key.WithHelp("space", "pause/resume"),
	),
	Labels: key.NewBinding(
		key.WithKeys("l"),
		key.WithHelp("l", "labels"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Labels, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Pause, k.Labels},
		{k.Help, k.Quit},
	}
}

// Model is the bubbletea model of the viewer
type Model struct {
	driver     *driver.Driver
	renderer   *render.ASCIIRenderer
	help       help.Model
	keys       keyMap
	width      int
	height     int
	showLabels bool
	canvas     string
	frame      *driver.Frame
	err        error
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// New creates a viewer for d
func New(d *driver.Driver) Model {
	return Model{
		driver:   d,
		renderer: &render.ASCIIRenderer{},
		help:     help.New(),
		keys:     keys,
		width:    80,
		height:   24,
	}
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.redraw()

	case tickMsg:
		m.redraw()
		return m, tickCmd()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			m.driver.TogglePause()
		case key.Matches(msg, m.keys.Labels):
			m.showLabels = !m.showLabels
			m.redraw()
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
	}
	return m, nil
}

// redraw renders the latest frame into the canvas area
func (m *Model) redraw() {
	scene := m.driver.Scene()
	m.frame = m.driver.Latest()

	opts := render.NewDefaultOptions("ascii")
	opts.Columns = max(m.width-2, 3)
	opts.Rows = max(m.height-4, 3)
	opts.ShowLabels = m.showLabels
	opts.Title = ""

	out, err := m.renderer.Render(scene, opts)
	if err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.canvas = string(out)
}

func (m Model) View() string {
	title := titleStyle.Render(fmt.Sprintf("sitegraph  %d nodes  %d edges", m.driver.NodeCount(), len(m.driver.Edges())))

	status := "waiting for first frame"
	if m.frame != nil {
		status = fmt.Sprintf("step %d  energy %.3e", m.frame.Step, m.frame.Energy)
	}
	if m.driver.Paused() {
		status += "  " + pausedStyle.Render("paused")
	}
	if m.err != nil {
		status = m.err.Error()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		canvasStyle.Render(m.canvas),
		statusStyle.Render(status),
		helpStyle.Render(m.help.View(m.keys)),
	)
}

// Run shows the viewer until the user quits or ctx is cancelled
func Run(ctx context.Context, d *driver.Driver) error {
	p := tea.NewProgram(New(d), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
