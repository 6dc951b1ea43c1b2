// Package vtparse interprets the byte stream a shell writes to its terminal
// and applies it to a screen.Buffer.
//
// The parser is a byte-at-a-time state machine with no lookahead. Everything
// it is in the middle of (an escape sequence, its parameters, a partial UTF-8
// character) lives in the Parser, so splitting input across Feed calls at any
// byte boundary gives the same screen as feeding it at once. Sequences it does
// not understand are dropped; no input makes it fail.
package vtparse

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/ZeroiJ/hub/internal/screen"
)

const (
	maxCSILen     = 64
	maxOSCLen     = 512
	maxParams     = 16
	maxParamValue = 9999
)

type state uint8

const (
	stateGround state = iota
	stateEscape
	stateEscapeIntermediate
	stateCSI
	stateCSIIgnore
	stateOSC
	stateOSCEscape
)

func (s state) String() string {
	switch s {
	case stateGround:
		return "ground"
	case stateEscape:
		return "escape"
	case stateEscapeIntermediate:
		return "escape-intermediate"
	case stateCSI:
		return "csi"
	case stateCSIIgnore:
		return "csi-ignore"
	case stateOSC:
		return "osc"
	case stateOSCEscape:
		return "osc-escape"
	default:
		return "unknown"
	}
}

const (
	bel = 0x07
	bs  = 0x08
	ht  = 0x09
	lf  = 0x0a
	vt  = 0x0b
	ff  = 0x0c
	cr  = 0x0d
	can = 0x18
	sub = 0x1a
	esc = 0x1b
	del = 0x7f
)

// Fixed width table, independent of the host locale.
var widths = func() *runewidth.Condition {
	c := runewidth.NewCondition()
	c.EastAsianWidth = false
	return c
}()

// Parser applies terminal output to a screen buffer. It is not safe for
// concurrent use; callers serialize Feed with any other access to the buffer.
type Parser struct {
	buf   *screen.Buffer
	state state

	// control sequence in progress
	seqLen   int
	private  byte
	params   []int // -1 marks an omitted parameter
	cur      int
	haveCur  bool
	inParams bool
	interm   bool
	invalid  bool

	osc []byte

	// partial UTF-8 character
	utf8Buf  [utf8.UTFMax]byte
	utf8Len  int
	utf8Need int
}

// New returns a parser that draws into buf.
func New(buf *screen.Buffer) *Parser {
	return &Parser{
		buf:    buf,
		params: make([]int, 0, maxParams),
		osc:    make([]byte, 0, 64),
	}
}

// Buffer returns the screen the parser draws into.
func (p *Parser) Buffer() *screen.Buffer { return p.buf }

// Ground reports whether the parser is between sequences and characters.
func (p *Parser) Ground() bool {
	return p.state == stateGround && p.utf8Need == 0
}

// Reset discards any partial sequence. The screen is left alone.
func (p *Parser) Reset() {
	p.state = stateGround
	p.utf8Len, p.utf8Need = 0, 0
	p.resetSeq()
}

// Write feeds data and never fails, so a Parser can sit behind an io.Writer.
func (p *Parser) Write(data []byte) (int, error) {
	p.Feed(data)
	return len(data), nil
}

// Feed interprets data, continuing whatever sequence a previous call left open.
func (p *Parser) Feed(data []byte) {
	for _, b := range data {
		p.step(b)
	}
}

func (p *Parser) step(b byte) {
	switch p.state {
	case stateGround:
		p.ground(b)
	case stateEscape:
		p.escape(b)
	case stateEscapeIntermediate:
		p.escapeIntermediate(b)
	case stateCSI:
		p.csi(b)
	case stateCSIIgnore:
		p.csiIgnore(b)
	case stateOSC:
		p.oscString(b)
	case stateOSCEscape:
		p.oscEscape(b)
	}
}

func (p *Parser) resetSeq() {
	p.seqLen = 0
	p.private = 0
	p.params = p.params[:0]
	p.cur = 0
	p.haveCur = false
	p.inParams = false
	p.interm = false
	p.invalid = false
	p.osc = p.osc[:0]
}

func (p *Parser) enter(s state) {
	p.resetSeq()
	p.state = s
}

// execute runs a C0 control that is valid in any state.
func (p *Parser) execute(b byte) {
	switch b {
	case bs:
		p.buf.Backspace()
	case ht:
		p.buf.Tab()
	case lf, vt, ff:
		p.buf.LineFeed()
	case cr:
		p.buf.CarriageReturn()
	}
}

func (p *Parser) ground(b byte) {
	if b >= 0x80 {
		p.utf8Byte(b)
		return
	}
	p.flushUTF8()
	switch {
	case b == esc:
		p.enter(stateEscape)
	case b < 0x20:
		p.execute(b)
	case b == del:
	default:
		p.buf.Put(rune(b), 1)
	}
}

func (p *Parser) utf8Byte(b byte) {
	if b < 0xc0 { // continuation
		if p.utf8Need == 0 {
			p.print(utf8.RuneError)
			return
		}
		p.utf8Buf[p.utf8Len] = b
		p.utf8Len++
		if p.utf8Len < p.utf8Need {
			return
		}
		r, size := utf8.DecodeRune(p.utf8Buf[:p.utf8Len])
		if size != p.utf8Len {
			r = utf8.RuneError
		}
		p.utf8Len, p.utf8Need = 0, 0
		p.print(r)
		return
	}

	p.flushUTF8()
	need := 0
	switch {
	case b >= 0xc2 && b <= 0xdf:
		need = 2
	case b >= 0xe0 && b <= 0xef:
		need = 3
	case b >= 0xf0 && b <= 0xf4:
		need = 4
	}
	if need == 0 {
		p.print(utf8.RuneError)
		return
	}
	p.utf8Buf[0] = b
	p.utf8Len, p.utf8Need = 1, need
}

// flushUTF8 renders an interrupted multi-byte character as U+FFFD.
func (p *Parser) flushUTF8() {
	if p.utf8Need == 0 {
		return
	}
	p.utf8Len, p.utf8Need = 0, 0
	p.print(utf8.RuneError)
}

func (p *Parser) print(r rune) {
	w := widths.RuneWidth(r)
	if w == 0 {
		return
	}
	p.buf.Put(r, w)
}

func (p *Parser) escape(b byte) {
	switch {
	case b == can || b == sub:
		p.state = stateGround
	case b == esc:
		p.enter(stateEscape)
	case b < 0x20:
		p.execute(b)
	case b >= 0x20 && b <= 0x2f:
		p.state = stateEscapeIntermediate
		p.seqLen = 1
	case b == '[':
		p.enter(stateCSI)
	case b == ']':
		p.enter(stateOSC)
	case b >= 0x80:
		p.state = stateGround
		p.ground(b)
	default:
		p.state = stateGround
		p.escDispatch(b)
	}
}

func (p *Parser) escDispatch(b byte) {
	switch b {
	case '7':
		p.buf.SaveCursor()
	case '8':
		p.buf.RestoreCursor()
	case 'D':
		p.buf.LineFeed()
	case 'E':
		p.buf.NextLine()
	case 'M':
		p.buf.ReverseIndex()
	case 'c':
		p.buf.Reset()
	}
}

// escapeIntermediate swallows designators like ESC ( B up to their final byte.
func (p *Parser) escapeIntermediate(b byte) {
	switch {
	case b == can || b == sub:
		p.state = stateGround
	case b == esc:
		p.enter(stateEscape)
	case b < 0x20:
		p.execute(b)
	case b <= 0x2f:
		p.seqLen++
		if p.seqLen > maxCSILen {
			p.state = stateGround
		}
	case b >= 0x80:
		p.state = stateGround
		p.ground(b)
	default:
		p.state = stateGround
	}
}

func (p *Parser) csi(b byte) {
	switch {
	case b == can || b == sub:
		p.state = stateGround
		return
	case b == esc:
		p.enter(stateEscape)
		return
	case b < 0x20:
		p.execute(b)
		return
	case b == del:
		return
	case b >= 0x80:
		p.state = stateGround
		p.ground(b)
		return
	}

	p.seqLen++
	if p.seqLen > maxCSILen {
		p.state = stateCSIIgnore
		p.csiIgnore(b)
		return
	}

	switch {
	case b >= '0' && b <= '9':
		if p.interm {
			p.invalid = true
			return
		}
		p.inParams = true
		p.haveCur = true
		p.cur = min(p.cur*10+int(b-'0'), maxParamValue)
	case b == ';' || b == ':':
		if p.interm {
			p.invalid = true
			return
		}
		p.inParams = true
		p.pushParam()
	case b >= 0x3c && b <= 0x3f: // < = > ?
		if p.seqLen != 1 {
			p.invalid = true
			return
		}
		p.private = b
	case b >= 0x20 && b <= 0x2f:
		p.interm = true
	default: // final byte 0x40-0x7e
		if p.inParams {
			p.pushParam()
		}
		p.state = stateGround
		if !p.invalid && !p.interm {
			p.csiDispatch(b)
		}
	}
}

// csiIgnore discards the rest of an oversized control sequence through its
// final byte.
func (p *Parser) csiIgnore(b byte) {
	switch {
	case b == can || b == sub:
		p.state = stateGround
	case b == esc:
		p.enter(stateEscape)
	case b < 0x20:
		p.execute(b)
	case b >= 0x80:
		p.state = stateGround
		p.ground(b)
	case b >= 0x40 && b <= 0x7e:
		p.state = stateGround
	}
}

func (p *Parser) pushParam() {
	v := -1
	if p.haveCur {
		v = p.cur
	}
	if len(p.params) < maxParams {
		p.params = append(p.params, v)
	}
	p.cur, p.haveCur = 0, false
}

// param returns parameter i, or def when it is omitted.
func (p *Parser) param(i, def int) int {
	if i >= len(p.params) || p.params[i] < 0 {
		return def
	}
	return p.params[i]
}

// count returns parameter i as a repeat count: omitted or zero means 1.
func (p *Parser) count(i int) int {
	return max(p.param(i, 1), 1)
}

func (p *Parser) csiDispatch(final byte) {
	if p.private == '?' {
		switch final {
		case 'h':
			p.setPrivateModes(true)
		case 'l':
			p.setPrivateModes(false)
		}
		return
	}
	if p.private != 0 {
		return
	}

	b := p.buf
	cur := b.Cursor()
	switch final {
	case 'A':
		b.MoveBy(-p.count(0), 0)
	case 'B', 'e':
		b.MoveBy(p.count(0), 0)
	case 'C', 'a':
		b.MoveBy(0, p.count(0))
	case 'D':
		b.MoveBy(0, -p.count(0))
	case 'E':
		b.MoveTo(cur.Row+p.count(0), 0)
	case 'F':
		b.MoveTo(cur.Row-p.count(0), 0)
	case 'G', '`':
		b.MoveTo(cur.Row, p.count(0)-1)
	case 'd':
		b.MoveTo(p.count(0)-1, cur.Col)
	case 'H', 'f':
		b.MoveTo(p.count(0)-1, p.count(1)-1)
	case 'J':
		b.EraseInDisplay(p.param(0, 0))
	case 'K':
		b.EraseInLine(p.param(0, 0))
	case '@':
		b.InsertChars(p.count(0))
	case 'P':
		b.DeleteChars(p.count(0))
	case 'X':
		b.EraseChars(p.count(0))
	case 'L':
		b.InsertLines(p.count(0))
	case 'M':
		b.DeleteLines(p.count(0))
	case 'S':
		b.ScrollUp(p.count(0))
	case 'T':
		if len(p.params) <= 1 {
			b.ScrollDown(p.count(0))
		}
	case 'r':
		b.SetScrollRegion(p.count(0)-1, p.param(1, b.Rows())-1)
	case 's':
		b.SaveCursor()
	case 'u':
		b.RestoreCursor()
	case 'm':
		p.sgr()
	}
}

func (p *Parser) setPrivateModes(on bool) {
	for i := range p.params {
		switch p.params[i] {
		case 7:
			p.buf.SetAutowrap(on)
		case 25:
			p.buf.SetCursorVisible(on)
		}
	}
}

// sgr applies Select Graphic Rendition parameters to the pen.
func (p *Parser) sgr() {
	pen := p.buf.Pen()
	if len(p.params) == 0 {
		p.buf.SetPen(screen.Pen{})
		return
	}
	n := len(p.params)
	for i := 0; i < n; i++ {
		v := p.param(i, 0)
		switch {
		case v == 0:
			pen = screen.Pen{}
		case v == 1:
			pen.Attr |= screen.AttrBold
		case v == 4:
			pen.Attr |= screen.AttrUnderline
		case v == 7:
			pen.Attr |= screen.AttrInverse
		case v == 22:
			pen.Attr &^= screen.AttrBold
		case v == 24:
			pen.Attr &^= screen.AttrUnderline
		case v == 27:
			pen.Attr &^= screen.AttrInverse
		case v >= 30 && v <= 37:
			pen.FG = screen.Indexed(uint8(v - 30))
		case v == 39:
			pen.FG = screen.DefaultColor
		case v >= 40 && v <= 47:
			pen.BG = screen.Indexed(uint8(v - 40))
		case v == 49:
			pen.BG = screen.DefaultColor
		case v >= 90 && v <= 97:
			pen.FG = screen.Indexed(uint8(v - 90 + 8))
		case v >= 100 && v <= 107:
			pen.BG = screen.Indexed(uint8(v - 100 + 8))
		case v == 38 || v == 48:
			c, used, ok := p.extendedColor(i + 1)
			if !ok {
				p.buf.SetPen(pen)
				return
			}
			if v == 38 {
				pen.FG = c
			} else {
				pen.BG = c
			}
			i += used
		}
	}
	p.buf.SetPen(pen)
}

// extendedColor parses the 5;n or 2;r;g;b tail of SGR 38/48 starting at
// params[i]. used is the number of parameters consumed.
func (p *Parser) extendedColor(i int) (c screen.Color, used int, ok bool) {
	switch p.param(i, -1) {
	case 5:
		if i+1 >= len(p.params) {
			return c, 0, false
		}
		return screen.Indexed(uint8(min(p.param(i+1, 0), 255))), 2, true
	case 2:
		if i+3 >= len(p.params) {
			return c, 0, false
		}
		ch := func(k int) uint8 { return uint8(min(p.param(k, 0), 255)) }
		return screen.RGB(ch(i+1), ch(i+2), ch(i+3)), 4, true
	}
	return c, 0, false
}

func (p *Parser) oscString(b byte) {
	switch {
	case b == bel:
		p.oscDispatch()
		p.state = stateGround
	case b == esc:
		p.state = stateOSCEscape
	case b == can || b == sub:
		p.state = stateGround
	case b < 0x20:
	default:
		if len(p.osc) >= maxOSCLen {
			p.state = stateGround
			return
		}
		p.osc = append(p.osc, b)
	}
}

func (p *Parser) oscEscape(b byte) {
	if b == '\\' {
		p.oscDispatch()
		p.state = stateGround
		return
	}
	// An ESC that is not a string terminator abandons the OSC and starts
	// a new escape sequence.
	p.enter(stateEscape)
	p.escape(b)
}

func (p *Parser) oscDispatch() {
	cmd, text, ok := strings.Cut(string(p.osc), ";")
	if !ok {
		return
	}
	n, err := strconv.Atoi(cmd)
	if err != nil {
		return
	}
	switch n {
	case 0, 2:
		p.buf.SetTitle(strings.ToValidUTF8(text, string(utf8.RuneError)))
	}
}
