// Package render turns screen snapshots into text for a host terminal.
package render

import (
	"fmt"
	"strings"

	"github.com/muesli/termenv"

	"github.com/ZeroiJ/hub/internal/screen"
)

// Options controls how a snapshot is drawn.
type Options struct {
	// Profile is the color capability of the output. termenv.Ascii drops
	// all styling.
	Profile termenv.Profile
	// Cursor draws the cursor cell in inverse video when the snapshot says
	// the cursor is visible.
	Cursor bool
}

// Lines renders every row of snap at full width, one string per row.
// Runs of cells with the same colors and attributes share one escape
// sequence, and every styled run is reset at its end.
func Lines(snap screen.Snapshot, opts Options) []string {
	lines := make([]string, len(snap.Cells))
	for r, row := range snap.Cells {
		cursorCol := -1
		if opts.Cursor && snap.CursorVisible && snap.Cursor.Row == r {
			cursorCol = snap.Cursor.Col
		}
		lines[r] = renderRow(row, cursorCol, opts.Profile)
	}
	return lines
}

// ANSI renders snap as newline-separated styled rows.
func ANSI(snap screen.Snapshot, opts Options) string {
	return strings.Join(Lines(snap, opts), "\n")
}

// Plain renders snap as text with trailing blanks trimmed.
func Plain(snap screen.Snapshot) string {
	return snap.String()
}

type format struct {
	fg, bg screen.Color
	attr   screen.Attr
}

func renderRow(row []screen.Cell, cursorCol int, p termenv.Profile) string {
	var sb strings.Builder
	var run strings.Builder
	var cur format
	flush := func() {
		if run.Len() == 0 {
			return
		}
		sb.WriteString(styled(run.String(), cur, p))
		run.Reset()
	}

	for col, c := range row {
		if c.Attr.Has(screen.AttrWideSpacer) {
			continue
		}
		f := format{fg: c.FG, bg: c.BG, attr: c.Attr}
		if col == cursorCol {
			f.attr ^= screen.AttrInverse
		}
		if f != cur {
			flush()
			cur = f
		}
		if c.Rune == 0 {
			run.WriteByte(' ')
		} else {
			run.WriteRune(c.Rune)
		}
	}
	flush()
	return sb.String()
}

func styled(text string, f format, p termenv.Profile) string {
	if f == (format{}) || p == termenv.Ascii {
		return text
	}
	s := p.String(text)
	if c := toTermenv(f.fg, p); c != nil {
		s = s.Foreground(c)
	}
	if c := toTermenv(f.bg, p); c != nil {
		s = s.Background(c)
	}
	if f.attr.Has(screen.AttrBold) {
		s = s.Bold()
	}
	if f.attr.Has(screen.AttrUnderline) {
		s = s.Underline()
	}
	if f.attr.Has(screen.AttrInverse) {
		s = s.Reverse()
	}
	return s.String()
}

// toTermenv converts a cell color, downgrading it to what p supports. The
// default color maps to nil so no sequence is emitted for it.
func toTermenv(c screen.Color, p termenv.Profile) termenv.Color {
	var tc termenv.Color
	switch c.Kind {
	case screen.ColorIndexed:
		if c.Index < 16 {
			tc = termenv.ANSIColor(c.Index)
		} else {
			tc = termenv.ANSI256Color(c.Index)
		}
	case screen.ColorRGB:
		tc = termenv.RGBColor(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
	default:
		return nil
	}
	return p.Convert(tc)
}
