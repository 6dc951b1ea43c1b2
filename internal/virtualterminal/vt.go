package virtualterminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/ZeroiJ/hub/internal/screen"
	"github.com/ZeroiJ/hub/internal/vtparse"
)

// DefaultTerm is the TERM value exported to the child when none is configured.
const DefaultTerm = "linux"

// VT owns the PTY master, the child process and the screen the child draws on.
type VT struct {
	Ptm     *os.File        // PTY master (connected to child process)
	Cmd     *exec.Cmd       // child process
	Mu      sync.Mutex      // guards Screen, Parser, Rows, Cols and LastOut
	Screen  *screen.Buffer  // what the child has drawn so far
	Parser  *vtparse.Parser // applies child output to Screen
	Rows    int             // terminal rows
	Cols    int             // terminal cols
	LastOut time.Time       // last time child output updated the screen
}

// New returns a VT with a blank rows×cols screen and no child yet.
func New(rows, cols int) *VT {
	buf := screen.New(rows, cols)
	return &VT{
		Screen: buf,
		Parser: vtparse.New(buf),
		Rows:   buf.Rows(),
		Cols:   buf.Cols(),
	}
}

// StartPTY creates and starts the child process in a PTY with the VT's size.
// The child environment is the host environment overlaid with extraEnv, then
// TERM, COLUMNS and LINES. The child becomes a session leader with the PTY
// slave as its controlling terminal.
func (vt *VT) StartPTY(command string, args []string, dir, term string, extraEnv map[string]string) error {
	if term == "" {
		term = DefaultTerm
	}
	vt.Cmd = exec.Command(command, args...)
	vt.Cmd.Dir = dir
	vt.Cmd.Env = MergeEnv(os.Environ(), extraEnv, map[string]string{
		"TERM":    term,
		"COLUMNS": strconv.Itoa(vt.Cols),
		"LINES":   strconv.Itoa(vt.Rows),
	})

	var err error
	vt.Ptm, err = pty.StartWithSize(vt.Cmd, &pty.Winsize{
		Rows: uint16(vt.Rows),
		Cols: uint16(vt.Cols),
	})
	if err != nil {
		return fmt.Errorf("start command: %w", err)
	}
	return nil
}

// MergeEnv overlays each map onto base in order. Later maps win, and keys
// are appended in sorted order so the result is deterministic.
func MergeEnv(base []string, overlays ...map[string]string) []string {
	override := make(map[string]string)
	for _, m := range overlays {
		for k, v := range m {
			override[k] = v
		}
	}

	env := make([]string, 0, len(base)+len(override))
	for _, e := range base {
		key := e
		if idx := strings.Index(e, "="); idx >= 0 {
			key = e[:idx]
		}
		if _, ok := override[key]; !ok {
			env = append(env, e)
		}
	}

	keys := make([]string, 0, len(override))
	for k := range override {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+override[k])
	}
	return env
}

// Feed applies child output to the screen under Mu.
func (vt *VT) Feed(data []byte) {
	vt.Mu.Lock()
	vt.LastOut = time.Now()
	vt.Parser.Feed(data)
	vt.Mu.Unlock()
}

// PipeOutput reads child output in chunks of at most chunk bytes and hands
// each non-empty read to onData. It returns the error that ended the loop,
// io.EOF when the child side hung up.
func (vt *VT) PipeOutput(chunk int, onData func([]byte)) error {
	if chunk <= 0 {
		chunk = 1024
	}
	buf := make([]byte, chunk)
	for {
		n, err := vt.Ptm.Read(buf)
		if n > 0 {
			onData(buf[:n])
		}
		if err != nil {
			if IsHangup(err) {
				return io.EOF
			}
			return err
		}
		if n == 0 {
			return io.EOF
		}
	}
}

// IsHangup reports whether err is how a PTY master reports that every slave
// descriptor has been closed.
func IsHangup(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed)
}

// Resize updates the screen and the PTY window size. It reports whether the
// size actually changed.
func (vt *VT) Resize(rows, cols int) (bool, error) {
	vt.Mu.Lock()
	defer vt.Mu.Unlock()
	if rows == vt.Rows && cols == vt.Cols {
		return false, nil
	}
	vt.Screen.Resize(rows, cols)
	vt.Rows = vt.Screen.Rows()
	vt.Cols = vt.Screen.Cols()
	if vt.Ptm == nil {
		return true, nil
	}
	err := pty.Setsize(vt.Ptm, &pty.Winsize{
		Rows: uint16(vt.Rows),
		Cols: uint16(vt.Cols),
	})
	if err != nil {
		return true, fmt.Errorf("set pty size: %w", err)
	}
	return true, nil
}

// Size returns the current rows and cols.
func (vt *VT) Size() (rows, cols int) {
	vt.Mu.Lock()
	defer vt.Mu.Unlock()
	return vt.Rows, vt.Cols
}

// Snapshot copies the screen under Mu.
func (vt *VT) Snapshot() screen.Snapshot {
	vt.Mu.Lock()
	defer vt.Mu.Unlock()
	return vt.Screen.Snapshot()
}

// ErrPTYWriteTimeout is returned by WritePTY when the write does not complete
// within the given deadline. The child process is likely hung (not reading stdin).
var ErrPTYWriteTimeout = fmt.Errorf("pty write timed out")

// WritePTY writes to the child PTY with a timeout. If the child is not reading
// its stdin, the kernel PTY buffer fills up and Write blocks indefinitely.
// When the descriptor supports deadlines the write is bounded by one;
// otherwise it runs in a goroutine so the caller can give up after the
// timeout. A zero timeout writes without a bound.
func (vt *VT) WritePTY(p []byte, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		return vt.Ptm.Write(p)
	}
	if err := vt.Ptm.SetWriteDeadline(time.Now().Add(timeout)); err == nil {
		n, err := vt.Ptm.Write(p)
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return n, ErrPTYWriteTimeout
		}
		return n, err
	}

	type result struct {
		n   int
		err error
	}
	ch := make(chan result, 1)
	go func() {
		n, err := vt.Ptm.Write(p)
		ch <- result{n, err}
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		return r.n, r.err
	case <-timer.C:
		return 0, ErrPTYWriteTimeout
	}
}
