// Package session runs one interactive shell on a pseudo-terminal. A Session
// owns the child process and the PTY master; it relays input to the child,
// applies the child's output to a screen buffer and tears everything down
// exactly once.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ZeroiJ/hub/internal/activitylog"
	"github.com/ZeroiJ/hub/internal/keys"
	"github.com/ZeroiJ/hub/internal/logger"
	"github.com/ZeroiJ/hub/internal/screen"
	"github.com/ZeroiJ/hub/internal/virtualterminal"
)

const (
	DefaultCols         = screen.DefaultCols
	DefaultRows         = screen.DefaultRows
	DefaultReadChunk    = 1024
	DefaultGracePeriod  = 2 * time.Second
	DefaultWriteTimeout = 2 * time.Second
)

// Terminal is what a host needs from a running shell.
type Terminal interface {
	Feed(data []byte)
	OnResize(cols, rows int) error
	HandleKey(ev keys.Event) error
	Shutdown()
}

var _ Terminal = (*Session)(nil)

// LaunchConfig is everything Launch needs. It is copied at launch, so later
// changes by the caller have no effect on a running session.
type LaunchConfig struct {
	Shell string
	Args  []string
	Dir   string
	Env   map[string]string // overlaid on the host environment
	Term  string            // TERM for the child, "linux" when empty

	Cols int
	Rows int

	// GracePeriod is how long Shutdown waits after SIGTERM before SIGKILL.
	// Zero kills immediately.
	GracePeriod time.Duration
	// WriteTimeout bounds a single write to the PTY. Zero means no bound.
	WriteTimeout time.Duration
	// ReadChunk is the largest read the output loop performs.
	ReadChunk int

	// ActivityLog is a JSONL file that receives session events. Empty disables it.
	ActivityLog string
}

func (c LaunchConfig) normalized() LaunchConfig {
	if c.Cols <= 0 || c.Rows <= 0 {
		c.Cols, c.Rows = DefaultCols, DefaultRows
	}
	if c.ReadChunk <= 0 {
		c.ReadChunk = DefaultReadChunk
	}
	if c.GracePeriod < 0 {
		c.GracePeriod = 0
	}
	if c.Term == "" {
		c.Term = virtualterminal.DefaultTerm
	}
	c.Args = append([]string(nil), c.Args...)
	env := make(map[string]string, len(c.Env))
	for k, v := range c.Env {
		env[k] = v
	}
	c.Env = env
	return c
}

// Session is one shell on one PTY.
type Session struct {
	ID      string
	Shell   string
	Dir     string
	PID     int
	Started time.Time

	cfg      LaunchConfig
	vt       *virtualterminal.VT
	log      zerolog.Logger
	activity *activitylog.Logger

	// lifeMu is held shared by writers and resizers and exclusively by
	// teardown while it closes the PTY master.
	lifeMu  sync.RWMutex
	closing bool

	mu       sync.Mutex
	state    State
	stateCh  chan struct{}
	err      error
	exitCode int

	updates  chan struct{} // buffered(1), signaled on child output
	exited   chan struct{} // closed by the reaper
	readDone chan struct{} // closed when the read loop returns
	done     chan struct{} // closed when teardown has finished

	stopOnce sync.Once
}

// Launch starts cfg.Shell on a new PTY of cfg.Cols×cfg.Rows and attaches the
// read loop. Failures that can be seen synchronously (missing binary, bad
// working directory, no PTY available) are returned as *SpawnError. A shell
// that starts and exits at once is reported through Done instead.
func Launch(ctx context.Context, cfg LaunchConfig) (*Session, error) {
	cfg = cfg.normalized()
	id := uuid.New().String()
	s := &Session{
		ID:       id,
		Shell:    cfg.Shell,
		Dir:      cfg.Dir,
		cfg:      cfg,
		log:      logger.WithFields(map[string]interface{}{"session_id": id, "shell": cfg.Shell}),
		activity: activitylog.New(cfg.ActivityLog != "", cfg.ActivityLog, cfg.Shell, id),
		state:    StateStarting,
		stateCh:  make(chan struct{}),
		exitCode: -1,
		updates:  make(chan struct{}, 1),
		exited:   make(chan struct{}),
		readDone: make(chan struct{}),
		done:     make(chan struct{}),
	}

	fail := func(err error) (*Session, error) {
		s.setState(StateFailed)
		s.log.Error().Err(err).Msg("launch failed")
		s.activity.Close()
		close(s.done)
		return nil, &SpawnError{Shell: cfg.Shell, Err: err}
	}
	if cfg.Shell == "" {
		return fail(errors.New("no shell configured"))
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	s.vt = virtualterminal.New(cfg.Rows, cfg.Cols)
	if err := s.vt.StartPTY(cfg.Shell, cfg.Args, cfg.Dir, cfg.Term, cfg.Env); err != nil {
		return fail(err)
	}
	s.PID = s.vt.Cmd.Process.Pid
	s.Started = time.Now()
	s.log = s.log.With().Int("pid", s.PID).Logger()

	go s.reap()

	s.log.Info().Int("cols", cfg.Cols).Int("rows", cfg.Rows).Str("dir", cfg.Dir).Msg("session launched")
	s.activity.Launch(s.PID, cfg.Cols, cfg.Rows, cfg.Dir)

	s.setState(StateRunning)
	go s.readLoop()
	return s, nil
}

// reap is the only caller of Cmd.Wait.
func (s *Session) reap() {
	err := s.vt.Cmd.Wait()
	code := -1
	if ps := s.vt.Cmd.ProcessState; ps != nil {
		code = ps.ExitCode()
	}
	s.mu.Lock()
	s.exitCode = code
	s.mu.Unlock()
	s.log.Debug().Err(err).Int("exit_code", code).Msg("child reaped")
	close(s.exited)
}

// readLoop copies child output into the screen until the PTY hangs up, then
// runs the same teardown Shutdown does.
func (s *Session) readLoop() {
	err := s.vt.PipeOutput(s.cfg.ReadChunk, s.Feed)

	s.lifeMu.RLock()
	stopping := s.closing
	s.lifeMu.RUnlock()

	s.mu.Lock()
	if !stopping {
		if virtualterminal.IsHangup(err) {
			s.err = ErrSessionEnded
		} else {
			s.err = fmt.Errorf("%w: %w", ErrSessionEnded, err)
		}
	}
	s.mu.Unlock()
	s.log.Info().Err(err).Msg("session output ended")
	close(s.readDone)

	s.stopOnce.Do(func() { s.teardown(true) })
}

// Feed applies child output to the screen and posts an update notification.
// The read loop calls it for every chunk; it never blocks on the host.
func (s *Session) Feed(data []byte) {
	if len(data) == 0 {
		return
	}
	s.vt.Feed(data)
	s.noteOutput()
}

// noteOutput does only a non-blocking channel send, so repeated output before
// the host catches up collapses into one notification.
func (s *Session) noteOutput() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// Updates delivers a value whenever the screen may have changed.
func (s *Session) Updates() <-chan struct{} { return s.updates }

// Done is closed once the PTY is closed and the child has been reaped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Snapshot returns an isolated copy of the screen.
func (s *Session) Snapshot() screen.Snapshot { return s.vt.Snapshot() }

// Size returns the negotiated window size.
func (s *Session) Size() (cols, rows int) {
	rows, cols = s.vt.Size()
	return cols, rows
}

// Err reports why the session ended on its own: ErrSessionEnded (possibly
// wrapping the read error) when the child hung up. It is nil while running
// and after a Shutdown that found the child still attached.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// ExitCode returns the child's exit status once it has been reaped, or -1
// while it is running or when it was killed by a signal.
func (s *Session) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode
}

// HandleKey encodes ev and writes it to the child. Events with no encoding
// are ignored.
func (s *Session) HandleKey(ev keys.Event) error {
	b := keys.Encode(ev)
	if len(b) == 0 {
		return nil
	}
	if e := s.log.Trace(); e.Enabled() {
		e.Str("key", ev.String()).Str("bytes", keys.Describe(b)).Msg("key")
	}
	_, err := s.Write(b)
	return err
}

// Write sends raw bytes to the child in a single bounded write. Failures are
// returned as *WriteError and the bytes are dropped.
func (s *Session) Write(p []byte) (int, error) {
	s.lifeMu.RLock()
	defer s.lifeMu.RUnlock()
	if s.closing || s.State() != StateRunning {
		return 0, &WriteError{Err: ErrNotRunning}
	}
	n, err := s.vt.WritePTY(p, s.cfg.WriteTimeout)
	if err != nil {
		s.log.Warn().Err(err).Int("written", n).Msg("pty write failed")
		s.activity.WriteError(err)
		return n, &WriteError{Err: err}
	}
	return n, nil
}

// OnResize applies a new host size to the screen and the PTY. Non-positive
// sizes, unchanged sizes and sessions that are not running are ignored.
func (s *Session) OnResize(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return nil
	}
	s.lifeMu.RLock()
	defer s.lifeMu.RUnlock()
	if s.closing || s.State() != StateRunning {
		return nil
	}
	changed, err := s.vt.Resize(rows, cols)
	if err != nil {
		s.log.Warn().Err(err).Int("cols", cols).Int("rows", rows).Msg("resize failed")
		return err
	}
	if changed {
		s.log.Debug().Int("cols", cols).Int("rows", rows).Msg("resized")
		s.activity.Resize(cols, rows)
		s.noteOutput()
	}
	return nil
}
