package vt

import "fmt"

// ColorKind selects how a Color is interpreted.
type ColorKind uint8

const (
	ColorDefault ColorKind = iota
	ColorIndexed
	ColorRGB
)

// Color is a cell foreground or background.
type Color struct {
	Kind    ColorKind
	Index   uint8 // palette index for ColorIndexed; 0-7 normal, 8-15 bright
	R, G, B uint8 // components for ColorRGB
}

// DefaultColor is the terminal's default foreground or background.
var DefaultColor = Color{}

// Standard palette entries.
var (
	ColorBlack         = Indexed(0)
	ColorRed           = Indexed(1)
	ColorGreen         = Indexed(2)
	ColorYellow        = Indexed(3)
	ColorBlue          = Indexed(4)
	ColorMagenta       = Indexed(5)
	ColorCyan          = Indexed(6)
	ColorWhite         = Indexed(7)
	ColorBrightBlack   = Indexed(8)
	ColorBrightRed     = Indexed(9)
	ColorBrightGreen   = Indexed(10)
	ColorBrightYellow  = Indexed(11)
	ColorBrightBlue    = Indexed(12)
	ColorBrightMagenta = Indexed(13)
	ColorBrightCyan    = Indexed(14)
	ColorBrightWhite   = Indexed(15)
)

// Indexed returns a 256-color palette entry.
func Indexed(i uint8) Color {
	return Color{Kind: ColorIndexed, Index: i}
}

// RGB returns a truecolor value.
func RGB(r, g, b uint8) Color {
	return Color{Kind: ColorRGB, R: r, G: g, B: b}
}

// IsBright reports whether c is one of the eight bright palette colors.
func (c Color) IsBright() bool {
	return c.Kind == ColorIndexed && c.Index >= 8 && c.Index < 16
}

func (c Color) String() string {
	switch c.Kind {
	case ColorIndexed:
		return fmt.Sprintf("idx(%d)", c.Index)
	case ColorRGB:
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	default:
		return "default"
	}
}

// Attr is a set of text attribute flags.
type Attr uint16

const (
	AttrNone      Attr = 0
	AttrBold      Attr = 1 << 0
	AttrDim       Attr = 1 << 1
	AttrItalic    Attr = 1 << 2
	AttrUnderline Attr = 1 << 3
	AttrBlink     Attr = 1 << 4
	AttrReverse   Attr = 1 << 5
	AttrHidden    Attr = 1 << 6
	AttrStrike    Attr = 1 << 7
)

// Has reports whether every flag in attr is set.
func (a Attr) Has(attr Attr) bool {
	return a&attr == attr
}

// Pen is the style applied to newly printed cells.
type Pen struct {
	Fg    Color
	Bg    Color
	Attrs Attr
}

// Cell is one character position in the grid.
//
// A wide rune occupies two cells: the first has Width 2, the second is a
// continuation with Rune 0 and Width 0.
type Cell struct {
	Rune  rune
	Width uint8
	Fg    Color
	Bg    Color
	Attrs Attr
}

// BlankCell is an empty, default-styled cell.
var BlankCell = Cell{Rune: ' ', Width: 1}

// IsContinuation reports whether c is the right half of a wide rune.
func (c Cell) IsContinuation() bool {
	return c.Width == 0
}
