package virtualterminal

import (
	"errors"
	"io"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/creack/pty"
)

func TestMergeEnv(t *testing.T) {
	base := []string{"HOME=/home/u", "TERM=xterm", "PATH=/bin", "BROKEN"}
	got := MergeEnv(base,
		map[string]string{"FOO": "1", "TERM": "dumb"},
		map[string]string{"TERM": "linux", "LINES": "24"},
	)
	want := []string{"HOME=/home/u", "PATH=/bin", "BROKEN", "FOO=1", "LINES=24", "TERM=linux"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("MergeEnv = %v, want %v", got, want)
	}
}

func TestMergeEnvNoOverlays(t *testing.T) {
	base := []string{"A=1", "B=2"}
	got := MergeEnv(base)
	if strings.Join(got, ",") != "A=1,B=2" {
		t.Errorf("MergeEnv = %v", got)
	}
}

func TestFeedAndSnapshot(t *testing.T) {
	vt := New(3, 10)
	vt.Feed([]byte("ab\x1b[1"))
	vt.Feed([]byte(";5Hc"))
	snap := vt.Snapshot()
	if snap.Line(0) != "ab  c" {
		t.Errorf("line 0 = %q", snap.Line(0))
	}
	if vt.LastOut.IsZero() {
		t.Error("expected LastOut to be set")
	}
}

func TestResizeWithoutPTY(t *testing.T) {
	vt := New(0, 0)
	if rows, cols := vt.Size(); rows != 24 || cols != 80 {
		t.Fatalf("default size = %dx%d, want 24x80", rows, cols)
	}
	changed, err := vt.Resize(24, 80)
	if err != nil || changed {
		t.Fatalf("same size: changed=%v err=%v", changed, err)
	}
	changed, err = vt.Resize(10, 40)
	if err != nil || !changed {
		t.Fatalf("new size: changed=%v err=%v", changed, err)
	}
	snap := vt.Snapshot()
	if snap.Rows != 10 || snap.Cols != 40 {
		t.Errorf("snapshot = %dx%d, want 10x40", snap.Rows, snap.Cols)
	}
}

func TestIsHangup(t *testing.T) {
	for _, err := range []error{io.EOF, syscall.EIO, os.ErrClosed, &os.PathError{Op: "read", Path: "/dev/ptmx", Err: syscall.EIO}} {
		if !IsHangup(err) {
			t.Errorf("IsHangup(%v) = false", err)
		}
	}
	if IsHangup(errors.New("other")) {
		t.Error("IsHangup(other) = true")
	}
}

func TestStartPTYExportsSizeAndTerm(t *testing.T) {
	vt := New(7, 33)
	script := `printf '%s:%s:%s:%s' "$TERM" "$COLUMNS" "$LINES" "$HUB_TEST"; stty size`
	if err := vt.StartPTY("/bin/sh", []string{"-c", script}, t.TempDir(), "", map[string]string{"HUB_TEST": "x"}); err != nil {
		t.Fatalf("StartPTY: %v", err)
	}
	defer vt.Ptm.Close()

	var out strings.Builder
	done := make(chan error, 1)
	go func() {
		done <- vt.PipeOutput(16, func(b []byte) { out.Write(b) })
	}()

	select {
	case err := <-done:
		if err != io.EOF {
			t.Errorf("PipeOutput returned %v, want io.EOF", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("PipeOutput did not finish")
	}
	vt.Cmd.Wait()

	got := out.String()
	if !strings.Contains(got, "linux:33:7:x") {
		t.Errorf("env output = %q", got)
	}
	if !strings.Contains(got, "7 33") {
		t.Errorf("stty size output = %q", got)
	}
}

func TestStartPTYMissingBinary(t *testing.T) {
	vt := New(24, 80)
	err := vt.StartPTY("/nonexistent/shell", nil, "", "", nil)
	if err == nil {
		vt.Ptm.Close()
		t.Fatal("expected error for missing binary")
	}
}

func TestResizeSetsWindowSize(t *testing.T) {
	vt := New(24, 80)
	if err := vt.StartPTY("/bin/sh", []string{"-c", "sleep 5"}, "", "", nil); err != nil {
		t.Fatalf("StartPTY: %v", err)
	}
	defer func() {
		vt.Cmd.Process.Kill()
		vt.Cmd.Wait()
		vt.Ptm.Close()
	}()

	if _, err := vt.Resize(30, 100); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	rows, cols, err := pty.Getsize(vt.Ptm)
	if err != nil {
		t.Fatalf("Getsize: %v", err)
	}
	if rows != 30 || cols != 100 {
		t.Errorf("pty size = %dx%d, want 30x100", rows, cols)
	}
}

func TestWritePTYReachesChild(t *testing.T) {
	vt := New(24, 80)
	if err := vt.StartPTY("/bin/sh", []string{"-c", "read line; printf 'got:%s' \"$line\""}, "", "", nil); err != nil {
		t.Fatalf("StartPTY: %v", err)
	}
	defer vt.Ptm.Close()

	var out strings.Builder
	done := make(chan struct{})
	go func() {
		vt.PipeOutput(1024, func(b []byte) { out.Write(b) })
		close(done)
	}()

	if _, err := vt.WritePTY([]byte("ping\r"), time.Second); err != nil {
		t.Fatalf("WritePTY: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("child did not exit")
	}
	vt.Cmd.Wait()
	if !strings.Contains(out.String(), "got:ping") {
		t.Errorf("output = %q", out.String())
	}
}
