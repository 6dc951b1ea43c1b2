package activitylog

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Logger writes structured JSONL entries to an activity log file.
// All methods are safe for concurrent use. When disabled (w is nil),
// all methods are no-ops.
type Logger struct {
	mu        sync.Mutex
	w         *os.File
	shell     string
	sessionID string
}

// New creates a Logger that appends to logPath. If enabled is false or the
// file cannot be opened, returns a no-op logger (safe to call methods on).
func New(enabled bool, logPath, shell, sessionID string) *Logger {
	if !enabled || logPath == "" {
		return &Logger{}
	}
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &Logger{}
	}
	return &Logger{w: f, shell: shell, sessionID: sessionID}
}

// Nop returns a disabled logger. All methods are no-ops.
func Nop() *Logger {
	return &Logger{}
}

// entry is the common envelope for all log lines.
type entry struct {
	Timestamp string `json:"ts"`
	Shell     string `json:"shell"`
	SessionID string `json:"session_id"`
	Event     string `json:"event"`
}

// Launch logs a successfully spawned child.
func (l *Logger) Launch(pid, cols, rows int, dir string) {
	l.log(struct {
		entry
		PID  int    `json:"pid"`
		Cols int    `json:"cols"`
		Rows int    `json:"rows"`
		Dir  string `json:"dir,omitempty"`
	}{
		entry: l.entry("launch"),
		PID:   pid,
		Cols:  cols,
		Rows:  rows,
		Dir:   dir,
	})
}

// StateChange logs a session state transition.
func (l *Logger) StateChange(from, to string) {
	l.log(struct {
		entry
		From string `json:"from"`
		To   string `json:"to"`
	}{
		entry: l.entry("state_change"),
		From:  from,
		To:    to,
	})
}

// Resize logs a window size applied to the child.
func (l *Logger) Resize(cols, rows int) {
	l.log(struct {
		entry
		Cols int `json:"cols"`
		Rows int `json:"rows"`
	}{
		entry: l.entry("resize"),
		Cols:  cols,
		Rows:  rows,
	})
}

// WriteError logs a keystroke write that did not reach the child.
func (l *Logger) WriteError(err error) {
	if err == nil {
		return
	}
	l.log(struct {
		entry
		Error string `json:"error"`
	}{
		entry: l.entry("write_error"),
		Error: err.Error(),
	})
}

// ForceKill logs that the child outlived its grace period and was killed.
func (l *Logger) ForceKill(pid int, grace time.Duration) {
	l.log(struct {
		entry
		PID   int    `json:"pid"`
		Grace string `json:"grace"`
	}{
		entry: l.entry("force_kill"),
		PID:   pid,
		Grace: grace.String(),
	})
}

// Exit logs the reaped exit status of the child. Uptime is always present.
func (l *Logger) Exit(code int, uptime time.Duration) {
	l.log(struct {
		entry
		ExitCode int    `json:"exit_code"`
		Uptime   string `json:"uptime"`
	}{
		entry:    l.entry("exit"),
		ExitCode: code,
		Uptime:   uptime.Round(time.Millisecond).String(),
	})
}

// Close closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return nil
	}
	err := l.w.Close()
	l.w = nil
	return err
}

func (l *Logger) entry(event string) entry {
	return entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Shell:     l.shell,
		SessionID: l.sessionID,
		Event:     event,
	}
}

func (l *Logger) log(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	data = append(data, '\n')
	l.mu.Lock()
	if l.w != nil {
		l.w.Write(data)
	}
	l.mu.Unlock()
}
