package session

import "context"

// State represents where the session's child process is in its life.
// States only move forward: Starting, then Running, then Exited or Failed.
type State int

const (
	StateStarting State = iota // PTY allocated, read loop not attached yet
	StateRunning               // child running, read loop attached
	StateExited                // PTY closed; Done reports when the child is reaped
	StateFailed                // launch failed, child never ran
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateExited || s == StateFailed
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StateChanged returns a channel that is closed when the session state changes.
// Callers should re-check State() after receiving from this channel.
func (s *Session) StateChanged() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateCh
}

// WaitForState blocks until the session reaches the target state or ctx is cancelled.
// Returns true if the target state was reached, false if ctx was cancelled or
// the session ended in a different state.
func (s *Session) WaitForState(ctx context.Context, target State) bool {
	for {
		s.mu.Lock()
		if s.state == target {
			s.mu.Unlock()
			return true
		}
		if s.state.Terminal() {
			s.mu.Unlock()
			return false
		}
		ch := s.stateCh
		s.mu.Unlock()

		select {
		case <-ch:
			continue
		case <-ctx.Done():
			return false
		}
	}
}

// setState moves the session forward and notifies waiters. Transitions that
// would go backwards, or leave a terminal state, are ignored.
func (s *Session) setState(newState State) bool {
	s.mu.Lock()
	old := s.state
	if newState <= old || old.Terminal() {
		s.mu.Unlock()
		return false
	}
	s.state = newState
	close(s.stateCh)
	s.stateCh = make(chan struct{})
	s.mu.Unlock()

	s.log.Debug().Str("from", old.String()).Str("to", newState.String()).Msg("session state changed")
	s.activity.StateChange(old.String(), newState.String())
	return true
}
