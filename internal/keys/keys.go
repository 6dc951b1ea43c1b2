// Package keys encodes host key events into the byte sequences a shell
// running behind a PTY expects to read from its terminal.
package keys

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Key identifies a named (non-character) key.
type Key int

const (
	KeyNone Key = iota
	KeyEnter
	KeyTab
	KeyBackspace
	KeySpace
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyDelete
	KeyEscape
)

var keyNames = map[Key]string{
	KeyEnter:     "enter",
	KeyTab:       "tab",
	KeyBackspace: "backspace",
	KeySpace:     "space",
	KeyLeft:      "left",
	KeyRight:     "right",
	KeyUp:        "up",
	KeyDown:      "down",
	KeyHome:      "home",
	KeyEnd:       "end",
	KeyPageUp:    "pageup",
	KeyPageDown:  "pagedown",
	KeyDelete:    "delete",
	KeyEscape:    "escape",
}

// String returns the key's canonical name.
func (k Key) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	return "none"
}

// Event is one keystroke from the host. Exactly one of Key, Ctrl or Rune is
// meaningful: a named key, ctrl+<letter>, or a literal character.
type Event struct {
	Key  Key
	Ctrl rune // 'a'..'z' when the event is ctrl+letter
	Rune rune
}

// Named returns an event for a named key.
func Named(k Key) Event { return Event{Key: k} }

// Char returns an event for a literal character.
func Char(r rune) Event { return Event{Rune: r} }

// CtrlKey returns an event for ctrl+letter.
func CtrlKey(letter rune) Event { return Event{Ctrl: unicode.ToLower(letter)} }

// String formats the event the way Parse accepts it.
func (e Event) String() string {
	switch {
	case e.Key != KeyNone:
		return e.Key.String()
	case e.Ctrl != 0:
		return "ctrl+" + string(e.Ctrl)
	case e.Rune != 0:
		return string(e.Rune)
	default:
		return ""
	}
}

var namedSequences = map[Key][]byte{
	KeyEnter:     {'\r'},
	KeyTab:       {'\t'},
	KeyBackspace: {0x7f},
	KeySpace:     {' '},
	KeyLeft:      []byte("\x1b[D"),
	KeyRight:     []byte("\x1b[C"),
	KeyUp:        []byte("\x1b[A"),
	KeyDown:      []byte("\x1b[B"),
	KeyHome:      []byte("\x1b[H"),
	KeyEnd:       []byte("\x1b[F"),
	KeyPageUp:    []byte("\x1b[5~"),
	KeyPageDown:  []byte("\x1b[6~"),
	KeyDelete:    []byte("\x1b[3~"),
	KeyEscape:    {0x1b},
}

// Encode returns the bytes to write to the PTY for e. Events that have no
// terminal representation encode to an empty slice.
func Encode(e Event) []byte {
	switch {
	case e.Key != KeyNone:
		seq, ok := namedSequences[e.Key]
		if !ok {
			return nil
		}
		out := make([]byte, len(seq))
		copy(out, seq)
		return out
	case e.Ctrl != 0:
		c := unicode.ToLower(e.Ctrl)
		if c < 'a' || c > 'z' {
			return nil
		}
		return []byte{byte(c-'a') + 1}
	case e.Rune != 0:
		if !utf8.ValidRune(e.Rune) || !unicode.IsPrint(e.Rune) {
			return nil
		}
		return utf8.AppendRune(nil, e.Rune)
	}
	return nil
}

var parseAliases = map[string]Key{
	"return":    KeyEnter,
	"pgup":      KeyPageUp,
	"pgdown":    KeyPageDown,
	"page_up":   KeyPageUp,
	"page_down": KeyPageDown,
	"esc":       KeyEscape,
	"del":       KeyDelete,
	" ":         KeySpace,
}

// Parse converts a host key name such as "enter", "ctrl+c", "pageup" or "a"
// into an Event. The second result is false when the name is not recognized.
// A name that is a single printable rune is taken literally.
func Parse(name string) (Event, bool) {
	if name == "" {
		return Event{}, false
	}
	lower := strings.ToLower(name)
	if k, ok := parseAliases[lower]; ok {
		return Named(k), true
	}
	for k, n := range keyNames {
		if n == lower {
			return Named(k), true
		}
	}
	if rest, ok := strings.CutPrefix(lower, "ctrl+"); ok {
		r, size := utf8.DecodeRuneInString(rest)
		if size == len(rest) && r >= 'a' && r <= 'z' {
			return CtrlKey(r), true
		}
		return Event{}, false
	}
	r, size := utf8.DecodeRuneInString(name)
	if size == len(name) && r != utf8.RuneError && unicode.IsPrint(r) {
		return Char(r), true
	}
	return Event{}, false
}

// Describe formats bytes bound for the PTY for debug logs, one token per
// byte: control bytes by name or hex, printable ASCII as itself.
func Describe(b []byte) string {
	parts := make([]string, 0, len(b))
	for _, c := range b {
		switch {
		case c == 0x1b:
			parts = append(parts, "esc")
		case c == '\r':
			parts = append(parts, "cr")
		case c == '\n':
			parts = append(parts, "lf")
		case c == '\t':
			parts = append(parts, "tab")
		case c == 0x7f:
			parts = append(parts, "del")
		case c >= 0x20 && c <= 0x7e:
			parts = append(parts, string(rune(c)))
		default:
			parts = append(parts, fmt.Sprintf("0x%02x", c))
		}
	}
	return strings.Join(parts, " ")
}
