// Package screen holds the addressable character grid a terminal session
// draws into: cells, cursor, current attributes and scroll region.
//
// A Buffer is not safe for concurrent use. The owning session serializes
// parser writes, resizes and snapshots behind a single lock.
package screen

const (
	// DefaultRows and DefaultCols are used when a caller asks for a
	// non-positive size.
	DefaultRows = 24
	DefaultCols = 80

	tabWidth = 8
)

type savedCursor struct {
	cur Cursor
	pen Pen
}

// Buffer is a rows×cols grid of cells with a cursor.
type Buffer struct {
	rows, cols int
	cells      [][]Cell

	cur         Cursor
	pen         Pen
	wrapPending bool // cursor sits on the last column after a write

	autowrap      bool
	cursorVisible bool
	top, bottom   int // scroll region, inclusive rows
	saved         savedCursor
	title         string
}

// New returns a blank buffer. Non-positive dimensions fall back to
// DefaultRows×DefaultCols.
func New(rows, cols int) *Buffer {
	if rows <= 0 {
		rows = DefaultRows
	}
	if cols <= 0 {
		cols = DefaultCols
	}
	b := &Buffer{rows: rows, cols: cols}
	b.cells = makeGrid(rows, cols)
	b.reset()
	return b
}

func makeGrid(rows, cols int) [][]Cell {
	backing := make([]Cell, rows*cols)
	grid := make([][]Cell, rows)
	for r := range grid {
		grid[r] = backing[r*cols : (r+1)*cols : (r+1)*cols]
	}
	return grid
}

func (b *Buffer) reset() {
	for _, row := range b.cells {
		clear(row)
	}
	b.cur = Cursor{}
	b.pen = Pen{}
	b.wrapPending = false
	b.autowrap = true
	b.cursorVisible = true
	b.top, b.bottom = 0, b.rows-1
	b.saved = savedCursor{}
	b.title = ""
}

// Reset restores the power-on state: blank screen, home cursor, default pen.
// Dimensions are kept.
func (b *Buffer) Reset() { b.reset() }

func (b *Buffer) Rows() int { return b.rows }
func (b *Buffer) Cols() int { return b.cols }
func (b *Buffer) Cursor() Cursor { return b.cur }
func (b *Buffer) Pen() Pen { return b.pen }
func (b *Buffer) SetPen(p Pen) { b.pen = p }
func (b *Buffer) Autowrap() bool { return b.autowrap }
func (b *Buffer) Title() string { return b.title }
func (b *Buffer) SetTitle(s string) { b.title = s }

// SetAutowrap enables or disables wrapping at the right margin.
func (b *Buffer) SetAutowrap(on bool) {
	b.autowrap = on
	if !on {
		b.wrapPending = false
	}
}

// CursorVisible reports the DECTCEM state.
func (b *Buffer) CursorVisible() bool { return b.cursorVisible }

// SetCursorVisible sets the DECTCEM state.
func (b *Buffer) SetCursorVisible(v bool) { b.cursorVisible = v }

// Cell returns the cell at (row, col), or an empty cell when out of range.
func (b *Buffer) Cell(row, col int) Cell {
	if row < 0 || row >= b.rows || col < 0 || col >= b.cols {
		return Cell{}
	}
	return b.cells[row][col]
}

// Put writes r at the cursor using the current pen and advances. width is the
// display width of r (1 or 2). At the right margin the cursor stays on the
// last column; the next Put wraps when autowrap is on.
func (b *Buffer) Put(r rune, width int) {
	if width != 2 || b.cols < 2 {
		width = 1
	}
	if b.wrapPending {
		b.wrapPending = false
		if b.autowrap {
			b.cur.Col = 0
			b.index()
		}
	}
	if width == 2 && b.cur.Col == b.cols-1 {
		if b.autowrap {
			b.clearWide(b.cur.Row, b.cur.Col)
			b.cells[b.cur.Row][b.cur.Col] = b.pen.blank()
			b.cur.Col = 0
			b.index()
		} else {
			b.cur.Col = b.cols - 2
		}
	}

	row, col := b.cur.Row, b.cur.Col
	b.clearWide(row, col)
	b.cells[row][col] = b.pen.cell(r)
	if width == 2 {
		b.clearWide(row, col+1)
		spacer := b.pen.cell(0)
		spacer.Attr |= AttrWideSpacer
		b.cells[row][col+1] = spacer
	}

	if next := col + width; next >= b.cols {
		b.cur.Col = b.cols - 1
		b.wrapPending = true
	} else {
		b.cur.Col = next
	}
}

// clearWide blanks the other half of a double-width character that is about
// to be partially overwritten at (row, col).
func (b *Buffer) clearWide(row, col int) {
	line := b.cells[row]
	if line[col].Attr.Has(AttrWideSpacer) && col > 0 {
		line[col-1] = Cell{BG: line[col-1].BG}
	}
	if col+1 < b.cols && line[col+1].Attr.Has(AttrWideSpacer) {
		line[col+1] = Cell{BG: line[col+1].BG}
	}
}

// CarriageReturn moves the cursor to column 0.
func (b *Buffer) CarriageReturn() {
	b.cur.Col = 0
	b.wrapPending = false
}

// LineFeed moves the cursor down one row, scrolling the region at its bottom.
func (b *Buffer) LineFeed() {
	b.wrapPending = false
	b.index()
}

// NextLine is CR followed by LF.
func (b *Buffer) NextLine() {
	b.CarriageReturn()
	b.index()
}

func (b *Buffer) index() {
	switch {
	case b.cur.Row == b.bottom:
		b.scrollUp(b.top, b.bottom, 1)
	case b.cur.Row < b.rows-1:
		b.cur.Row++
	}
}

// ReverseIndex moves the cursor up one row, scrolling the region down at its top.
func (b *Buffer) ReverseIndex() {
	b.wrapPending = false
	switch {
	case b.cur.Row == b.top:
		b.scrollDown(b.top, b.bottom, 1)
	case b.cur.Row > 0:
		b.cur.Row--
	}
}

// Backspace moves the cursor one column left, stopping at column 0.
func (b *Buffer) Backspace() {
	b.wrapPending = false
	if b.cur.Col > 0 {
		b.cur.Col--
	}
}

// Tab advances to the next tab stop, stopping at the last column.
func (b *Buffer) Tab() {
	next := (b.cur.Col/tabWidth + 1) * tabWidth
	if next >= b.cols {
		next = b.cols - 1
	}
	b.cur.Col = next
}

// MoveTo places the cursor at (row, col), clamped to the screen.
func (b *Buffer) MoveTo(row, col int) {
	b.cur.Row = clamp(row, 0, b.rows-1)
	b.cur.Col = clamp(col, 0, b.cols-1)
	b.wrapPending = false
}

// MoveBy moves the cursor relative to its position, clamped to the screen.
func (b *Buffer) MoveBy(dRow, dCol int) {
	b.MoveTo(b.cur.Row+dRow, b.cur.Col+dCol)
}

// EraseInDisplay implements ED: 0 cursor to end, 1 start to cursor, 2 and 3
// whole screen. The cursor does not move.
func (b *Buffer) EraseInDisplay(mode int) {
	switch mode {
	case 0:
		b.eraseRow(b.cur.Row, b.cur.Col, b.cols)
		for r := b.cur.Row + 1; r < b.rows; r++ {
			b.eraseRow(r, 0, b.cols)
		}
	case 1:
		for r := 0; r < b.cur.Row; r++ {
			b.eraseRow(r, 0, b.cols)
		}
		b.eraseRow(b.cur.Row, 0, b.cur.Col+1)
	case 2, 3:
		for r := 0; r < b.rows; r++ {
			b.eraseRow(r, 0, b.cols)
		}
	}
}

// EraseInLine implements EL: 0 cursor to end, 1 start to cursor, 2 whole line.
func (b *Buffer) EraseInLine(mode int) {
	switch mode {
	case 0:
		b.eraseRow(b.cur.Row, b.cur.Col, b.cols)
	case 1:
		b.eraseRow(b.cur.Row, 0, b.cur.Col+1)
	case 2:
		b.eraseRow(b.cur.Row, 0, b.cols)
	}
}

// EraseChars blanks n cells starting at the cursor.
func (b *Buffer) EraseChars(n int) {
	b.eraseRow(b.cur.Row, b.cur.Col, b.cur.Col+max(n, 1))
}

func (b *Buffer) eraseRow(row, from, to int) {
	from = clamp(from, 0, b.cols)
	to = clamp(to, 0, b.cols)
	blank := b.pen.blank()
	line := b.cells[row]
	for c := from; c < to; c++ {
		line[c] = blank
	}
	b.wrapPending = false
}

// InsertChars shifts the rest of the line right by n, inserting blanks.
func (b *Buffer) InsertChars(n int) {
	n = clamp(n, 1, b.cols-b.cur.Col)
	line := b.cells[b.cur.Row]
	copy(line[b.cur.Col+n:], line[b.cur.Col:])
	b.eraseRow(b.cur.Row, b.cur.Col, b.cur.Col+n)
}

// DeleteChars removes n cells at the cursor, shifting the rest of the line left.
func (b *Buffer) DeleteChars(n int) {
	n = clamp(n, 1, b.cols-b.cur.Col)
	line := b.cells[b.cur.Row]
	copy(line[b.cur.Col:], line[b.cur.Col+n:])
	b.eraseRow(b.cur.Row, b.cols-n, b.cols)
}

// InsertLines inserts n blank lines at the cursor row within the scroll region.
func (b *Buffer) InsertLines(n int) {
	if b.cur.Row < b.top || b.cur.Row > b.bottom {
		return
	}
	b.scrollDown(b.cur.Row, b.bottom, n)
	b.cur.Col = 0
}

// DeleteLines deletes n lines at the cursor row within the scroll region.
func (b *Buffer) DeleteLines(n int) {
	if b.cur.Row < b.top || b.cur.Row > b.bottom {
		return
	}
	b.scrollUp(b.cur.Row, b.bottom, n)
	b.cur.Col = 0
}

// ScrollUp scrolls the scroll region up by n lines.
func (b *Buffer) ScrollUp(n int) { b.scrollUp(b.top, b.bottom, n) }

// ScrollDown scrolls the scroll region down by n lines.
func (b *Buffer) ScrollDown(n int) { b.scrollDown(b.top, b.bottom, n) }

func (b *Buffer) scrollUp(top, bottom, n int) {
	n = clamp(n, 1, bottom-top+1)
	for r := top; r <= bottom-n; r++ {
		copy(b.cells[r], b.cells[r+n])
	}
	for r := bottom - n + 1; r <= bottom; r++ {
		b.eraseRow(r, 0, b.cols)
	}
}

func (b *Buffer) scrollDown(top, bottom, n int) {
	n = clamp(n, 1, bottom-top+1)
	for r := bottom; r >= top+n; r-- {
		copy(b.cells[r], b.cells[r-n])
	}
	for r := top; r < top+n; r++ {
		b.eraseRow(r, 0, b.cols)
	}
}

// SetScrollRegion sets the scroll region to rows [top, bottom] (zero-based,
// inclusive) and homes the cursor. An invalid region selects the full screen.
func (b *Buffer) SetScrollRegion(top, bottom int) {
	if top < 0 || bottom >= b.rows || top >= bottom {
		top, bottom = 0, b.rows-1
	}
	b.top, b.bottom = top, bottom
	b.MoveTo(0, 0)
}

// SaveCursor records the cursor position and pen (DECSC).
func (b *Buffer) SaveCursor() {
	b.saved = savedCursor{cur: b.cur, pen: b.pen}
}

// RestoreCursor restores what SaveCursor recorded (DECRC). Without a prior
// save it homes the cursor and resets the pen.
func (b *Buffer) RestoreCursor() {
	b.pen = b.saved.pen
	b.MoveTo(b.saved.cur.Row, b.saved.cur.Col)
}

// Resize changes the dimensions without reflowing content: rows past the new
// height are dropped, each row is truncated or padded to the new width, and
// the cursor is clamped into the new bounds. Non-positive sizes are raised to 1.
func (b *Buffer) Resize(rows, cols int) {
	rows = max(rows, 1)
	cols = max(cols, 1)
	if rows == b.rows && cols == b.cols {
		return
	}
	grid := makeGrid(rows, cols)
	for r := 0; r < rows && r < b.rows; r++ {
		n := copy(grid[r], b.cells[r])
		if n > 0 && n == cols && grid[r][n-1].Rune != 0 && n < b.cols && b.cells[r][n].Attr.Has(AttrWideSpacer) {
			grid[r][n-1] = Cell{BG: grid[r][n-1].BG}
		}
	}
	b.cells = grid
	b.rows, b.cols = rows, cols
	b.top, b.bottom = 0, rows-1
	b.wrapPending = false
	b.cur.Row = clamp(b.cur.Row, 0, rows-1)
	b.cur.Col = clamp(b.cur.Col, 0, cols-1)
	b.saved.cur.Row = clamp(b.saved.cur.Row, 0, rows-1)
	b.saved.cur.Col = clamp(b.saved.cur.Col, 0, cols-1)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
