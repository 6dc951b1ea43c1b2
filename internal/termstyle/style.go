// Package termstyle colors short CLI status strings. Styling is on only when
// stdout is a terminal and NO_COLOR is unset.
package termstyle

import (
	"os"

	"github.com/mattn/go-isatty"
)

var enabled = detect(os.Stdout.Fd())

func detect(fd uintptr) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// SetEnabled overrides the auto-detected TTY check.
func SetEnabled(on bool) {
	enabled = on
}

// Enabled returns whether styling is currently active.
func Enabled() bool {
	return enabled
}

func wrap(code, s string) string {
	if !enabled || s == "" {
		return s
	}
	return code + s + "\033[0m"
}

func Bold(s string) string  { return wrap("\033[1m", s) }
func Dim(s string) string   { return wrap("\033[2m", s) }
func Red(s string) string   { return wrap("\033[31m", s) }
func Green(s string) string { return wrap("\033[32m", s) }
func Gray(s string) string  { return wrap("\033[37m", s) }

// State dots for session status lines.
func GreenDot() string { return Green("●") }
func RedDot() string   { return Red("●") }
func GrayDot() string  { return Gray("○") }
