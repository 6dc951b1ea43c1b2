package panel

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZeroiJ/hub/internal/keys"
	"github.com/ZeroiJ/hub/internal/logger"
	"github.com/ZeroiJ/hub/internal/screen"
	"github.com/ZeroiJ/hub/internal/session"
	"github.com/ZeroiJ/hub/internal/vtparse"
)

type fakeTerm struct {
	mu        sync.Mutex
	buf       *screen.Buffer
	events    []keys.Event
	sizes     [][2]int
	state     session.State
	code      int
	shutdowns int
	writeErr  error
	resizeErr error

	updates chan struct{}
	done    chan struct{}
}

func newFakeTerm(cols, rows int) *fakeTerm {
	return &fakeTerm{
		buf:     screen.New(rows, cols),
		state:   session.StateRunning,
		code:    -1,
		updates: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (f *fakeTerm) write(s string) {
	f.mu.Lock()
	vtparse.New(f.buf).Feed([]byte(s))
	f.mu.Unlock()
	select {
	case f.updates <- struct{}{}:
	default:
	}
}

func (f *fakeTerm) exit(code int) {
	f.mu.Lock()
	f.code = code
	f.state = session.StateExited
	f.mu.Unlock()
	close(f.done)
}

func (f *fakeTerm) Snapshot() screen.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buf.Snapshot()
}

func (f *fakeTerm) Updates() <-chan struct{} { return f.updates }
func (f *fakeTerm) Done() <-chan struct{}    { return f.done }

func (f *fakeTerm) State() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTerm) ExitCode() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.code
}

func (f *fakeTerm) HandleKey(ev keys.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeTerm) OnResize(cols, rows int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resizeErr != nil {
		return f.resizeErr
	}
	f.sizes = append(f.sizes, [2]int{cols, rows})
	f.buf.Resize(rows, cols)
	return nil
}

func (f *fakeTerm) Shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
}

// startPanel sizes a panel and runs its launch command.
func startPanel(t *testing.T, width, height int) (Model, *fakeTerm, *Registry, [2]int) {
	t.Helper()
	reg := NewRegistry()
	var term *fakeTerm
	var launched [2]int
	m := New(reg, func(ctx context.Context, cols, rows int) (string, Terminal, error) {
		launched = [2]int{cols, rows}
		term = newFakeTerm(cols, rows)
		return "sess-1", term, nil
	})
	m.Profile = termenv.Ascii

	assert.Contains(t, m.View(), "Starting shell...")

	next, cmd := m.Update(tea.WindowSizeMsg{Width: width, Height: height})
	require.NotNil(t, cmd, "first size should launch the shell")
	m = next.(Model)
	assert.Contains(t, m.View(), "Starting shell...")

	next, wait := m.Update(cmd())
	m = next.(Model)
	require.NotNil(t, wait)
	require.Equal(t, "sess-1", m.ID())
	return m, term, reg, launched
}

func TestPanel_PlaceholderBeforeFirstSize(t *testing.T) {
	m := New(NewRegistry(), func(ctx context.Context, cols, rows int) (string, Terminal, error) {
		t.Fatal("launched before the window size was known")
		return "", nil, nil
	})
	view := m.View()
	assert.Contains(t, view, "Starting shell...")
	assert.NotContains(t, view, "╭", "no border before the first size")
	assert.Equal(t, 1, strings.Count(view, "\n")+1, "placeholder is a single line")
}

func TestPanel_LaunchResizeErrorIsLogged(t *testing.T) {
	var logs bytes.Buffer
	logger.Configure(logger.LevelInfo, &logs, false)
	defer logger.Configure(logger.LevelInfo, nil, false)

	term := newFakeTerm(10, 5)
	term.resizeErr = errors.New("set pty size: bad fd")
	m := New(NewRegistry(), func(ctx context.Context, cols, rows int) (string, Terminal, error) {
		return "sess-1", term, nil
	})
	next, cmd := m.Update(tea.WindowSizeMsg{Width: 20, Height: 8})
	m = next.(Model)
	next, wait := m.Update(cmd())
	m = next.(Model)

	require.NotNil(t, wait, "a resize failure does not stop the panel")
	assert.Equal(t, "sess-1", m.ID())
	assert.Contains(t, logs.String(), "panel resize")
	assert.Contains(t, logs.String(), "bad fd")
}

func TestPanel_LaunchesWithInnerSize(t *testing.T) {
	_, term, reg, launched := startPanel(t, 42, 13)
	assert.Equal(t, [2]int{40, 10}, launched)
	assert.Equal(t, 1, reg.Len())
	assert.Same(t, term, reg.Get("sess-1"))
}

func TestPanel_RendersOutput(t *testing.T) {
	m, term, _, _ := startPanel(t, 30, 8)
	term.write("hello\x1b]2;my title\x07")

	view := m.View()
	assert.Contains(t, view, "hello")
	assert.Contains(t, view, "my title")
	assert.Contains(t, view, "running")
}

func TestPanel_OutputRearmsWait(t *testing.T) {
	m, term, _, _ := startPanel(t, 30, 8)
	term.write("x")

	wait := waitForActivity(m.ID(), term)
	msg := wait()
	require.Equal(t, outputMsg{id: "sess-1"}, msg)

	_, cmd := m.Update(msg)
	assert.NotNil(t, cmd)

	_, cmd = m.Update(outputMsg{id: "other"})
	assert.Nil(t, cmd, "output from another session is ignored")
}

func TestPanel_ForwardsKeys(t *testing.T) {
	m, term, _, _ := startPanel(t, 30, 8)

	for _, msg := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("hi")},
		{Type: tea.KeyEnter},
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyUp},
		{Type: tea.KeyRunes, Runes: []rune("b"), Alt: true},
	} {
		next, cmd := m.Update(msg)
		m = next.(Model)
		assert.Nil(t, cmd)
	}

	want := []keys.Event{
		keys.Char('h'), keys.Char('i'),
		keys.Named(keys.KeyEnter),
		keys.CtrlKey('c'),
		keys.Named(keys.KeyUp),
		keys.Named(keys.KeyEscape), keys.Char('b'),
	}
	assert.Equal(t, want, term.events)
}

func TestPanel_DetachQuits(t *testing.T) {
	m, term, _, _ := startPanel(t, 30, 8)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlBackslash})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, term.events)
}

func TestPanel_ResizeForwarded(t *testing.T) {
	m, term, _, _ := startPanel(t, 30, 8)
	next, cmd := m.Update(tea.WindowSizeMsg{Width: 50, Height: 20})
	m = next.(Model)
	assert.Nil(t, cmd)
	assert.Equal(t, [2]int{48, 17}, term.sizes[len(term.sizes)-1])
}

func TestPanel_WriteErrorShownInStatus(t *testing.T) {
	m, term, _, _ := startPanel(t, 60, 8)
	term.writeErr = &session.WriteError{Err: session.ErrNotRunning}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")})
	m = next.(Model)
	assert.Contains(t, m.View(), "session not running")
}

func TestPanel_Exit(t *testing.T) {
	m, term, _, _ := startPanel(t, 40, 8)
	m.QuitOnExit = false
	term.write("bye")
	term.exit(3)

	// Drain the pending update first; the next wait sees Done.
	msg := waitForActivity(m.ID(), term)()
	for msg == (outputMsg{id: "sess-1"}) {
		msg = waitForActivity(m.ID(), term)()
	}
	require.Equal(t, exitedMsg{id: "sess-1"}, msg)

	next, cmd := m.Update(msg)
	m = next.(Model)
	assert.Nil(t, cmd)
	view := m.View()
	assert.Contains(t, view, "exited (code 3)")
	assert.Contains(t, view, "bye")

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, term.events, "keys after exit are not sent")
}

func TestPanel_QuitOnExit(t *testing.T) {
	m, term, _, _ := startPanel(t, 40, 8)
	m.QuitOnExit = true
	term.exit(0)

	_, cmd := m.Update(exitedMsg{id: "sess-1"})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestPanel_LaunchFailure(t *testing.T) {
	reg := NewRegistry()
	m := New(reg, func(ctx context.Context, cols, rows int) (string, Terminal, error) {
		return "", nil, &session.SpawnError{Shell: "/nope", Err: errors.New("no such file")}
	})
	next, cmd := m.Update(tea.WindowSizeMsg{Width: 80, Height: 10})
	m = next.(Model)
	next, _ = m.Update(cmd())
	m = next.(Model)

	require.Error(t, m.Err())
	assert.Contains(t, m.View(), "Failed to start shell")
	assert.Equal(t, 0, reg.Len())

	// A later resize does not retry the launch.
	_, cmd = m.Update(tea.WindowSizeMsg{Width: 90, Height: 10})
	assert.Nil(t, cmd)
}

func TestPanel_DuplicateIDRejected(t *testing.T) {
	reg := NewRegistry()
	existing := newFakeTerm(10, 5)
	reg.Add("dup", existing)

	fresh := newFakeTerm(10, 5)
	m := New(reg, func(ctx context.Context, cols, rows int) (string, Terminal, error) {
		return "dup", fresh, nil
	})
	_, cmd := m.Update(tea.WindowSizeMsg{Width: 20, Height: 8})
	msg := cmd()
	failed, ok := msg.(launchFailedMsg)
	require.True(t, ok, "got %T", msg)
	assert.True(t, strings.Contains(failed.err.Error(), "already registered"))
	assert.Equal(t, 1, fresh.shutdowns)
	assert.Same(t, existing, reg.Get("dup"))
}

func TestRegistry_CloseAll(t *testing.T) {
	reg := NewRegistry()
	a, b := newFakeTerm(1, 1), newFakeTerm(1, 1)
	reg.Add("a", a)
	reg.Add("b", b)

	reg.Close("a")
	reg.Close("missing")
	assert.Equal(t, 1, a.shutdowns)
	assert.Nil(t, reg.Get("a"))

	reg.CloseAll()
	assert.Equal(t, 1, b.shutdowns)
	assert.Equal(t, 0, reg.Len())
}

func TestTranslateKey(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.KeyMsg
		want []keys.Event
	}{
		{"space", tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, []keys.Event{keys.Named(keys.KeySpace)}},
		{"tab", tea.KeyMsg{Type: tea.KeyTab}, []keys.Event{keys.Named(keys.KeyTab)}},
		{"backspace", tea.KeyMsg{Type: tea.KeyBackspace}, []keys.Event{keys.Named(keys.KeyBackspace)}},
		{"page up", tea.KeyMsg{Type: tea.KeyPgUp}, []keys.Event{keys.Named(keys.KeyPageUp)}},
		{"delete", tea.KeyMsg{Type: tea.KeyDelete}, []keys.Event{keys.Named(keys.KeyDelete)}},
		{"escape", tea.KeyMsg{Type: tea.KeyEsc}, []keys.Event{keys.Named(keys.KeyEscape)}},
		{"ctrl+a", tea.KeyMsg{Type: tea.KeyCtrlA}, []keys.Event{keys.CtrlKey('a')}},
		{"unicode", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("é")}, []keys.Event{keys.Char('é')}},
		{"f1 unmapped", tea.KeyMsg{Type: tea.KeyF1}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, translateKey(tt.msg))
		})
	}
}
