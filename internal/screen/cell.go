package screen

// ColorKind distinguishes the default color from palette and true colors.
type ColorKind uint8

const (
	ColorDefault ColorKind = iota
	ColorIndexed           // 0-255 palette entry
	ColorRGB               // 24-bit
)

// Color is a foreground or background color.
type Color struct {
	Kind    ColorKind
	Index   uint8
	R, G, B uint8
}

// DefaultColor is the terminal's default foreground/background.
var DefaultColor = Color{}

// Indexed returns a palette color.
func Indexed(i uint8) Color { return Color{Kind: ColorIndexed, Index: i} }

// RGB returns a 24-bit color.
func RGB(r, g, b uint8) Color { return Color{Kind: ColorRGB, R: r, G: g, B: b} }

// Attr is a set of character attributes.
type Attr uint8

const (
	AttrBold Attr = 1 << iota
	AttrUnderline
	AttrInverse
	// AttrWideSpacer marks the right half of a double-width character.
	// Renderers skip it.
	AttrWideSpacer
)

// Has reports whether all bits of a are set.
func (at Attr) Has(a Attr) bool { return at&a == a }

// Cell is one character position on the screen. A zero Rune is an empty cell.
type Cell struct {
	Rune rune
	FG   Color
	BG   Color
	Attr Attr
}

// Empty reports whether the cell holds no character.
func (c Cell) Empty() bool { return c.Rune == 0 }

// Pen is the attribute state applied to newly written cells.
type Pen struct {
	FG   Color
	BG   Color
	Attr Attr
}

func (p Pen) cell(r rune) Cell {
	return Cell{Rune: r, FG: p.FG, BG: p.BG, Attr: p.Attr}
}

// blank is what erase operations leave behind: no character, current background.
func (p Pen) blank() Cell {
	return Cell{BG: p.BG}
}

// Cursor is a zero-based screen position.
type Cursor struct {
	Row int
	Col int
}
