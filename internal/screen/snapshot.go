package screen

import "strings"

// Snapshot is an isolated copy of a Buffer's visible state. It shares no
// memory with the buffer, so it can be rendered while the session keeps
// writing.
type Snapshot struct {
	Rows          int
	Cols          int
	Cells         [][]Cell
	Cursor        Cursor
	CursorVisible bool
	Title         string
}

// Snapshot copies the grid, cursor and title.
func (b *Buffer) Snapshot() Snapshot {
	grid := makeGrid(b.rows, b.cols)
	for r := range grid {
		copy(grid[r], b.cells[r])
	}
	return Snapshot{
		Rows:          b.rows,
		Cols:          b.cols,
		Cells:         grid,
		Cursor:        b.cur,
		CursorVisible: b.cursorVisible,
		Title:         b.title,
	}
}

// Line returns row as text with empty cells rendered as spaces and trailing
// spaces removed. Out-of-range rows are empty.
func (s Snapshot) Line(row int) string {
	if row < 0 || row >= len(s.Cells) {
		return ""
	}
	var sb strings.Builder
	for _, c := range s.Cells[row] {
		switch {
		case c.Attr.Has(AttrWideSpacer):
		case c.Rune == 0:
			sb.WriteByte(' ')
		default:
			sb.WriteRune(c.Rune)
		}
	}
	return strings.TrimRight(sb.String(), " ")
}

// String returns every row joined by newlines, with trailing blank rows
// dropped.
func (s Snapshot) String() string {
	lines := make([]string, s.Rows)
	last := -1
	for r := range lines {
		lines[r] = s.Line(r)
		if lines[r] != "" {
			last = r
		}
	}
	return strings.Join(lines[:last+1], "\n")
}

// Contains reports whether text appears on any single row.
func (s Snapshot) Contains(text string) bool {
	for r := 0; r < s.Rows; r++ {
		if strings.Contains(s.Line(r), text) {
			return true
		}
	}
	return false
}
