package panel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/ZeroiJ/hub/internal/logger"
	"github.com/ZeroiJ/hub/internal/render"
)

// Launcher starts a terminal of cols×rows and returns the id it should be
// registered under.
type Launcher func(ctx context.Context, cols, rows int) (string, Terminal, error)

type launchedMsg struct{ id string }

type launchFailedMsg struct{ err error }

type outputMsg struct{ id string }

type exitedMsg struct{ id string }

// Model is a bubbletea model showing one shell. It launches the shell once
// the first window size is known and redraws whenever the shell reports
// output. The session itself lives in the Registry.
type Model struct {
	Keys       KeyMap
	Profile    termenv.Profile
	QuitOnExit bool

	reg    *Registry
	launch Launcher

	id       string
	width    int
	height   int
	starting bool
	started  time.Time
	err      error
	exited   bool
	exitCode int
	writeErr error
}

func New(reg *Registry, launch Launcher) Model {
	return Model{
		Keys:    DefaultKeyMap(),
		Profile: termenv.ANSI256,
		reg:     reg,
		launch:  launch,
	}
}

// ID returns the registry id of the panel's terminal, empty before launch.
func (m Model) ID() string { return m.id }

// Err returns the launch error, if any.
func (m Model) Err() error { return m.err }

func (m Model) Init() tea.Cmd { return nil }

// innerSize is the terminal area: the panel minus its border and status line.
func (m Model) innerSize() (cols, rows int) {
	return max(m.width-2, 1), max(m.height-3, 1)
}

func (m Model) term() Terminal {
	if m.id == "" {
		return nil
	}
	return m.reg.Get(m.id)
}

func (m Model) launchCmd(cols, rows int) tea.Cmd {
	reg, launch := m.reg, m.launch
	return func() tea.Msg {
		id, t, err := launch(context.Background(), cols, rows)
		if err != nil {
			return launchFailedMsg{err: err}
		}
		if !reg.Add(id, t) {
			t.Shutdown()
			return launchFailedMsg{err: fmt.Errorf("terminal %s already registered", id)}
		}
		return launchedMsg{id: id}
	}
}

// waitForActivity blocks until the terminal has new output or has ended.
// Only one wait is outstanding at a time, so bursts of output collapse into
// a single redraw.
func waitForActivity(id string, t Terminal) tea.Cmd {
	if t == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case <-t.Updates():
			return outputMsg{id: id}
		case <-t.Done():
			return exitedMsg{id: id}
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		cols, rows := m.innerSize()
		if m.id == "" {
			if m.starting || m.err != nil {
				return m, nil
			}
			m.starting = true
			return m, m.launchCmd(cols, rows)
		}
		if t := m.term(); t != nil && !m.exited {
			if err := t.OnResize(cols, rows); err != nil {
				logger.Logger.Warn().Err(err).Str("session_id", m.id).Msg("panel resize")
			}
		}
		return m, nil

	case launchedMsg:
		m.starting = false
		m.id = msg.id
		m.started = time.Now()
		t := m.term()
		if t != nil {
			// The window may have changed while the shell was starting.
			cols, rows := m.innerSize()
			if err := t.OnResize(cols, rows); err != nil {
				logger.Logger.Warn().Err(err).Str("session_id", m.id).Msg("panel resize")
			}
		}
		return m, waitForActivity(m.id, t)

	case launchFailedMsg:
		m.starting = false
		m.err = msg.err
		logger.Logger.Error().Err(msg.err).Msg("shell panel launch failed")
		return m, nil

	case outputMsg:
		if msg.id != m.id {
			return m, nil
		}
		return m, waitForActivity(m.id, m.term())

	case exitedMsg:
		if msg.id != m.id {
			return m, nil
		}
		m.exited = true
		if t := m.term(); t != nil {
			m.exitCode = t.ExitCode()
		}
		if m.QuitOnExit {
			return m, tea.Quit
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.Keys.Detach) {
		return m, tea.Quit
	}
	if m.exited || m.err != nil {
		return m, tea.Quit
	}
	t := m.term()
	if t == nil {
		return m, nil
	}
	m.writeErr = nil
	for _, ev := range translateKey(msg) {
		if err := t.HandleKey(ev); err != nil {
			m.writeErr = err
			break
		}
	}
	return m, nil
}

func (m Model) View() string {
	// No size yet; a border would squeeze the placeholder into one column.
	if m.width == 0 {
		return mutedStyle.Render("Starting shell...")
	}
	cols, rows := m.innerSize()

	var body string
	switch {
	case m.err != nil:
		body = exitedStyle.Render("Failed to start shell: " + m.err.Error())
	case m.term() == nil:
		body = mutedStyle.Render("Starting shell...")
	default:
		snap := m.term().Snapshot()
		body = strings.Join(render.Lines(snap, render.Options{
			Profile: m.Profile,
			Cursor:  !m.exited,
		}), "\n")
	}

	box := borderStyle.Width(cols).Height(rows).MaxHeight(rows + 2).Render(body)
	return lipgloss.JoinVertical(lipgloss.Left, box, m.statusLine())
}

func (m Model) statusLine() string {
	t := m.term()
	switch {
	case m.err != nil:
		return mutedStyle.Render(" press any key to close")
	case t == nil:
		return mutedStyle.Render(" starting")
	case m.exited:
		return exitedStyle.Render(fmt.Sprintf(" exited (code %d)", m.exitCode)) +
			mutedStyle.Render(" · press any key to close")
	}

	title := t.Snapshot().Title
	if title == "" {
		title = "shell"
	}
	status := runningStyle.Render(" ● "+t.State().String()) + " " + titleStyle.Render(title) +
		mutedStyle.Render(" · up "+formatUptime(time.Since(m.started))+" · "+m.Keys.Detach.Help().Key+" "+m.Keys.Detach.Help().Desc)
	if m.writeErr != nil {
		status += exitedStyle.Render(" · " + m.writeErr.Error())
	}
	return status
}
