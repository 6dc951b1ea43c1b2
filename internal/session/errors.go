package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionEnded is recorded as Err when the child side of the PTY hung up.
	ErrSessionEnded = errors.New("session ended")

	// ErrNotRunning is wrapped by WriteError when input arrives after the
	// session stopped running.
	ErrNotRunning = errors.New("session not running")
)

// SpawnError reports that the shell could not be started. A session that
// fails this way never reaches StateRunning.
type SpawnError struct {
	Shell string
	Err   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Shell, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// WriteError reports input that did not reach the child. Writes are never
// retried or queued.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write to pty: %v", e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
