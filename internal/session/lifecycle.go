package session

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

const (
	// reapWait is how long teardown lets a child that hung up on its own
	// exit before it starts signalling.
	reapWait = 200 * time.Millisecond
	// readLoopWait bounds how long teardown waits for the read loop after
	// the child has been reaped. A grandchild holding the PTY slave open can
	// keep the read blocked.
	readLoopWait = 2 * time.Second
)

// Shutdown closes the PTY, stops the child and reaps it. The ladder is:
// close the master, SIGHUP and SIGTERM the child's process group, wait up to
// GracePeriod, then SIGKILL. The state becomes Exited as soon as the master
// is closed; Done is closed once the child has been reaped. Shutdown is safe to call any number of times
// from any goroutine; every call returns only after the single teardown has
// finished.
func (s *Session) Shutdown() {
	s.stopOnce.Do(func() { s.teardown(false) })
	<-s.done
}

func (s *Session) teardown(hungUp bool) {
	s.lifeMu.Lock()
	s.closing = true
	if err := s.vt.Ptm.Close(); err != nil {
		s.log.Debug().Err(err).Msg("close pty master")
	}
	// The master is gone; the session must not report Running past this
	// point even while the child is still being stopped.
	s.setState(StateExited)
	s.lifeMu.Unlock()

	if hungUp {
		select {
		case <-s.exited:
		case <-time.After(reapWait):
		}
	}

	s.stopChild()

	select {
	case <-s.readDone:
	case <-time.After(readLoopWait):
		s.log.Warn().Msg("read loop still blocked after child exit")
	}

	code := s.ExitCode()
	s.log.Info().Int("exit_code", code).Dur("uptime", time.Since(s.Started)).Msg("session exited")
	s.activity.Exit(code, time.Since(s.Started))
	s.activity.Close()
	close(s.done)
}

// stopChild walks the signal ladder and returns once the reaper has seen the
// child exit.
func (s *Session) stopChild() {
	select {
	case <-s.exited:
		return
	default:
	}

	if s.cfg.GracePeriod > 0 {
		s.signal(unix.SIGHUP)
		s.signal(unix.SIGTERM)
		timer := time.NewTimer(s.cfg.GracePeriod)
		defer timer.Stop()
		select {
		case <-s.exited:
			return
		case <-timer.C:
		}
	}

	s.log.Warn().Dur("grace_period", s.cfg.GracePeriod).Msg("child did not exit, sending SIGKILL")
	s.activity.ForceKill(s.PID, s.cfg.GracePeriod)
	s.signal(unix.SIGKILL)
	<-s.exited
}

// signal sends sig to the child's process group, falling back to the child
// alone if the group is gone. The child is a session leader, so its pid is
// also its process group id.
func (s *Session) signal(sig unix.Signal) {
	err := unix.Kill(-s.PID, sig)
	if errors.Is(err, unix.ESRCH) {
		err = unix.Kill(s.PID, sig)
	}
	if err != nil && !errors.Is(err, unix.ESRCH) {
		s.log.Debug().Err(err).Str("signal", unix.SignalName(sig)).Msg("signal child")
	}
}
