package vt

import "strings"

const tabWidth = 8

// Cursor is a 0-based grid position.
type Cursor struct {
	Row     int
	Col     int
	Visible bool
}

type savedCursor struct {
	row, col    int
	pen         Pen
	pendingWrap bool
}

// Grid is the terminal screen: rows*cols cells stored row-major in a single
// slice, plus cursor, pen, scroll region and window metadata.
//
// Grid has no locking; Emulator serializes access to it.
type Grid struct {
	rows, cols int
	cells      []Cell

	cursor      Cursor
	pendingWrap bool // last print hit the right margin; wrap before the next one
	pen         Pen
	saved       savedCursor

	top, bottom int // scroll region, inclusive
	autoWrap    bool

	title string
	cwd   string
}

// NewGrid returns a blank grid. Dimensions below 1 are raised to 1.
func NewGrid(rows, cols int) *Grid {
	rows, cols = max(rows, 1), max(cols, 1)
	g := &Grid{rows: rows, cols: cols}
	g.cells = make([]Cell, rows*cols)
	g.reset()
	return g
}

func (g *Grid) reset() {
	for i := range g.cells {
		g.cells[i] = BlankCell
	}
	g.cursor = Cursor{Visible: true}
	g.pendingWrap = false
	g.pen = Pen{}
	g.saved = savedCursor{}
	g.top, g.bottom = 0, g.rows-1
	g.autoWrap = true
}

// Size returns the grid dimensions.
func (g *Grid) Size() (rows, cols int) {
	return g.rows, g.cols
}

// Cell returns the cell at (row, col), or BlankCell when out of range.
func (g *Grid) Cell(row, col int) Cell {
	if row < 0 || row >= g.rows || col < 0 || col >= g.cols {
		return BlankCell
	}
	return g.cells[row*g.cols+col]
}

// Row returns a copy of one row, or nil when out of range.
func (g *Grid) Row(row int) []Cell {
	if row < 0 || row >= g.rows {
		return nil
	}
	out := make([]Cell, g.cols)
	copy(out, g.cells[row*g.cols:(row+1)*g.cols])
	return out
}

// Cursor returns the cursor position and visibility.
func (g *Grid) Cursor() Cursor {
	return g.cursor
}

// Pen returns the style applied to newly printed cells.
func (g *Grid) Pen() Pen {
	return g.pen
}

// Title returns the last window title set through OSC 0 or 2.
func (g *Grid) Title() string {
	return g.title
}

// Cwd returns the last working directory reported through OSC 7.
func (g *Grid) Cwd() string {
	return g.cwd
}

// Text renders the grid as plain text. Trailing spaces on each line and
// trailing blank lines are trimmed.
func (g *Grid) Text() string {
	return gridText(g.cells, g.rows, g.cols)
}

// Snapshot returns a deep copy of the visible state.
func (g *Grid) Snapshot() Snapshot {
	cells := make([]Cell, len(g.cells))
	copy(cells, g.cells)
	return Snapshot{
		Rows:   g.rows,
		Cols:   g.cols,
		Cells:  cells,
		Cursor: g.cursor,
		Title:  g.title,
		Cwd:    g.cwd,
	}
}

// Apply executes one operation.
func (g *Grid) Apply(op Op) {
	switch op.Kind {
	case OpPrint:
		g.print(op.Rune, op.Width)
	case OpBell:
	case OpBackspace:
		if g.cursor.Col > 0 {
			g.cursor.Col--
		}
		g.pendingWrap = false
	case OpTab:
		g.cursor.Col = min((g.cursor.Col/tabWidth+1)*tabWidth, g.cols-1)
		g.pendingWrap = false
	case OpLineFeed, OpIndex:
		g.lineFeed()
	case OpCarriageReturn:
		g.cursor.Col = 0
		g.pendingWrap = false
	case OpNextLine:
		g.cursor.Col = 0
		g.lineFeed()
	case OpReverseIndex:
		g.reverseIndex()
	case OpSaveCursor:
		g.saved = savedCursor{row: g.cursor.Row, col: g.cursor.Col, pen: g.pen, pendingWrap: g.pendingWrap}
	case OpRestoreCursor:
		g.cursor.Row = clamp(g.saved.row, 0, g.rows-1)
		g.cursor.Col = clamp(g.saved.col, 0, g.cols-1)
		g.pen = g.saved.pen
		g.pendingWrap = g.saved.pendingWrap
	case OpReset:
		g.reset()

	case OpCursorUp:
		g.moveRow(-op.N)
	case OpCursorDown:
		g.moveRow(op.N)
	case OpCursorForward:
		g.setCol(g.cursor.Col + op.N)
	case OpCursorBack:
		g.setCol(g.cursor.Col - op.N)
	case OpCursorNextLine:
		g.moveRow(op.N)
		g.setCol(0)
	case OpCursorPrevLine:
		g.moveRow(-op.N)
		g.setCol(0)
	case OpCursorColumn:
		g.setCol(op.N)
	case OpCursorRow:
		g.cursor.Row = clamp(op.N, 0, g.rows-1)
		g.pendingWrap = false
	case OpCursorPosition:
		g.cursor.Row = clamp(op.N, 0, g.rows-1)
		g.setCol(op.M)

	case OpEraseDisplay:
		g.eraseDisplay(op.N)
	case OpEraseLine:
		g.eraseLine(op.N)
	case OpEraseChars:
		row := g.cursor.Row
		g.fill(row, g.cursor.Col, min(g.cursor.Col+op.N, g.cols))
	case OpInsertLines:
		if g.inRegion() {
			g.scrollDown(g.cursor.Row, g.bottom, op.N)
			g.cursor.Col = 0
			g.pendingWrap = false
		}
	case OpDeleteLines:
		if g.inRegion() {
			g.scrollUp(g.cursor.Row, g.bottom, op.N)
			g.cursor.Col = 0
			g.pendingWrap = false
		}
	case OpInsertChars:
		g.insertChars(op.N)
	case OpDeleteChars:
		g.deleteChars(op.N)
	case OpScrollUp:
		g.scrollUp(g.top, g.bottom, op.N)
	case OpScrollDown:
		g.scrollDown(g.top, g.bottom, op.N)
	case OpSetScrollRegion:
		g.setScrollRegion(op.N, op.M)

	case OpSetAttributes:
		g.sgr(op.Params)
	case OpSetMode:
		switch op.N {
		case ModeAutoWrap:
			g.autoWrap = op.Set
			if !op.Set {
				g.pendingWrap = false
			}
		case ModeCursorVisible:
			g.cursor.Visible = op.Set
		}
	case OpSetTitle:
		g.title = op.Text
	case OpSetCwd:
		g.cwd = op.Text
	}
}

func (g *Grid) at(row, col int) *Cell {
	return &g.cells[row*g.cols+col]
}

func (g *Grid) blank() Cell {
	c := BlankCell
	c.Bg = g.pen.Bg
	return c
}

func (g *Grid) print(r rune, width int) {
	if width < 1 {
		return
	}
	if width > g.cols {
		width = 1
	}

	if g.pendingWrap {
		g.pendingWrap = false
		g.cursor.Col = 0
		g.lineFeed()
	}

	if width == 2 && g.cursor.Col == g.cols-1 {
		if g.autoWrap {
			g.splitWide(g.cursor.Row, g.cursor.Col)
			*g.at(g.cursor.Row, g.cursor.Col) = g.blank()
			g.cursor.Col = 0
			g.lineFeed()
		} else {
			g.cursor.Col = g.cols - 2
		}
	}

	row, col := g.cursor.Row, g.cursor.Col
	for i := 0; i < width; i++ {
		g.splitWide(row, col+i)
	}
	*g.at(row, col) = Cell{Rune: r, Width: uint8(width), Fg: g.pen.Fg, Bg: g.pen.Bg, Attrs: g.pen.Attrs}
	if width == 2 {
		*g.at(row, col+1) = Cell{Width: 0, Fg: g.pen.Fg, Bg: g.pen.Bg, Attrs: g.pen.Attrs}
	}

	if next := col + width; next < g.cols {
		g.cursor.Col = next
	} else {
		g.cursor.Col = g.cols - 1
		g.pendingWrap = g.autoWrap
	}
}

// splitWide blanks the other half of a wide rune about to be overwritten at
// (row, col).
func (g *Grid) splitWide(row, col int) {
	c := g.at(row, col)
	switch {
	case c.IsContinuation() && col > 0:
		*g.at(row, col-1) = g.blank()
	case c.Width == 2 && col+1 < g.cols:
		*g.at(row, col+1) = g.blank()
	}
}

func (g *Grid) lineFeed() {
	g.pendingWrap = false
	switch {
	case g.cursor.Row == g.bottom:
		g.scrollUp(g.top, g.bottom, 1)
	case g.cursor.Row < g.rows-1:
		g.cursor.Row++
	}
}

func (g *Grid) reverseIndex() {
	g.pendingWrap = false
	switch {
	case g.cursor.Row == g.top:
		g.scrollDown(g.top, g.bottom, 1)
	case g.cursor.Row > 0:
		g.cursor.Row--
	}
}

// moveRow moves the cursor vertically, stopping at the scroll region margins
// when the cursor starts inside the region.
func (g *Grid) moveRow(delta int) {
	lo, hi := 0, g.rows-1
	if g.cursor.Row >= g.top && g.cursor.Row <= g.bottom {
		lo, hi = g.top, g.bottom
	}
	g.cursor.Row = clamp(g.cursor.Row+delta, lo, hi)
	g.pendingWrap = false
}

func (g *Grid) setCol(col int) {
	g.cursor.Col = clamp(col, 0, g.cols-1)
	g.pendingWrap = false
}

func (g *Grid) inRegion() bool {
	return g.cursor.Row >= g.top && g.cursor.Row <= g.bottom
}

// fill blanks cells [from, to) of one row.
func (g *Grid) fill(row, from, to int) {
	if from >= to {
		return
	}
	if from > 0 {
		g.splitWide(row, from)
	}
	if to < g.cols {
		g.splitWide(row, to-1)
	}
	b := g.blank()
	line := g.cells[row*g.cols : (row+1)*g.cols]
	for i := from; i < to; i++ {
		line[i] = b
	}
}

func (g *Grid) fillRows(from, to int) {
	for r := from; r < to; r++ {
		g.fill(r, 0, g.cols)
	}
}

func (g *Grid) eraseDisplay(mode int) {
	row := g.cursor.Row
	switch mode {
	case EraseToEnd:
		g.fill(row, g.cursor.Col, g.cols)
		g.fillRows(row+1, g.rows)
	case EraseToStart:
		g.fillRows(0, row)
		g.fill(row, 0, g.cursor.Col+1)
	case EraseAll, EraseSaved:
		g.fillRows(0, g.rows)
	}
}

func (g *Grid) eraseLine(mode int) {
	row := g.cursor.Row
	switch mode {
	case EraseToEnd:
		g.fill(row, g.cursor.Col, g.cols)
	case EraseToStart:
		g.fill(row, 0, g.cursor.Col+1)
	case EraseAll:
		g.fill(row, 0, g.cols)
	}
}

// scrollUp shifts rows [top, bottom] up by n, blanking the rows uncovered
// at the bottom. Rows shifted past top are discarded.
func (g *Grid) scrollUp(top, bottom, n int) {
	if n <= 0 || top > bottom {
		return
	}
	n = min(n, bottom-top+1)
	copy(g.cells[top*g.cols:(bottom+1)*g.cols], g.cells[(top+n)*g.cols:(bottom+1)*g.cols])
	g.fillRows(bottom-n+1, bottom+1)
}

// scrollDown shifts rows [top, bottom] down by n, blanking the rows uncovered
// at the top.
func (g *Grid) scrollDown(top, bottom, n int) {
	if n <= 0 || top > bottom {
		return
	}
	n = min(n, bottom-top+1)
	copy(g.cells[(top+n)*g.cols:(bottom+1)*g.cols], g.cells[top*g.cols:(bottom+1-n)*g.cols])
	g.fillRows(top, top+n)
}

func (g *Grid) insertChars(n int) {
	row, col := g.cursor.Row, g.cursor.Col
	n = min(n, g.cols-col)
	if n <= 0 {
		return
	}
	g.splitWide(row, col)
	line := g.cells[row*g.cols : (row+1)*g.cols]
	copy(line[col+n:], line[col:g.cols-n])
	b := g.blank()
	for i := col; i < col+n; i++ {
		line[i] = b
	}
	if last := &line[g.cols-1]; last.Width == 2 {
		*last = b
	}
	g.pendingWrap = false
}

func (g *Grid) deleteChars(n int) {
	row, col := g.cursor.Row, g.cursor.Col
	n = min(n, g.cols-col)
	if n <= 0 {
		return
	}
	g.splitWide(row, col)
	if col+n < g.cols {
		g.splitWide(row, col+n)
	}
	line := g.cells[row*g.cols : (row+1)*g.cols]
	copy(line[col:], line[col+n:])
	b := g.blank()
	for i := g.cols - n; i < g.cols; i++ {
		line[i] = b
	}
	g.pendingWrap = false
}

func (g *Grid) setScrollRegion(top, bottom int) {
	if bottom < 0 || bottom >= g.rows {
		bottom = g.rows - 1
	}
	if top < 0 || top >= bottom {
		return
	}
	g.top, g.bottom = top, bottom
	g.cursor.Row, g.cursor.Col = 0, 0
	g.pendingWrap = false
}

// ScrollRegion returns the inclusive scroll margins.
func (g *Grid) ScrollRegion() (top, bottom int) {
	return g.top, g.bottom
}

func (g *Grid) sgr(params []int) {
	if len(params) == 0 {
		g.pen = Pen{}
		return
	}
	for i := 0; i < len(params); i++ {
		p := params[i]
		switch {
		case p == 0:
			g.pen = Pen{}
		case p == 1:
			g.pen.Attrs |= AttrBold
		case p == 2:
			g.pen.Attrs |= AttrDim
		case p == 3:
			g.pen.Attrs |= AttrItalic
		case p == 4:
			g.pen.Attrs |= AttrUnderline
		case p == 5 || p == 6:
			g.pen.Attrs |= AttrBlink
		case p == 7:
			g.pen.Attrs |= AttrReverse
		case p == 8:
			g.pen.Attrs |= AttrHidden
		case p == 9:
			g.pen.Attrs |= AttrStrike
		case p == 21 || p == 22:
			g.pen.Attrs &^= AttrBold | AttrDim
		case p == 23:
			g.pen.Attrs &^= AttrItalic
		case p == 24:
			g.pen.Attrs &^= AttrUnderline
		case p == 25:
			g.pen.Attrs &^= AttrBlink
		case p == 27:
			g.pen.Attrs &^= AttrReverse
		case p == 28:
			g.pen.Attrs &^= AttrHidden
		case p == 29:
			g.pen.Attrs &^= AttrStrike
		case p >= 30 && p <= 37:
			g.pen.Fg = Indexed(uint8(p - 30))
		case p == 38:
			c, used, ok := extendedColor(params[i+1:])
			if ok {
				g.pen.Fg = c
			}
			i += used
		case p == 39:
			g.pen.Fg = DefaultColor
		case p >= 40 && p <= 47:
			g.pen.Bg = Indexed(uint8(p - 40))
		case p == 48:
			c, used, ok := extendedColor(params[i+1:])
			if ok {
				g.pen.Bg = c
			}
			i += used
		case p == 49:
			g.pen.Bg = DefaultColor
		case p >= 90 && p <= 97:
			g.pen.Fg = Indexed(uint8(p - 90 + 8))
		case p >= 100 && p <= 107:
			g.pen.Bg = Indexed(uint8(p - 100 + 8))
		}
	}
}

// extendedColor parses the arguments following 38 or 48: "5;n" or
// "2;r;g;b". It returns how many parameters were consumed.
func extendedColor(args []int) (Color, int, bool) {
	if len(args) == 0 {
		return Color{}, 0, false
	}
	switch args[0] {
	case 5:
		if len(args) < 2 {
			return Color{}, len(args), false
		}
		return Indexed(uint8(clamp(args[1], 0, 255))), 2, true
	case 2:
		if len(args) < 4 {
			return Color{}, len(args), false
		}
		return RGB(
			uint8(clamp(args[1], 0, 255)),
			uint8(clamp(args[2], 0, 255)),
			uint8(clamp(args[3], 0, 255)),
		), 4, true
	default:
		return Color{}, 1, false
	}
}

// Resize reshapes the grid in place without re-wrapping text.
//
// Columns are truncated or padded. When rows shrink, rows are dropped from
// the top only as far as needed to keep the cursor row on screen, the rest
// from the bottom. New rows are appended blank at the bottom. The scroll
// region resets to the full screen.
func (g *Grid) Resize(rows, cols int) {
	rows, cols = max(rows, 1), max(cols, 1)
	if rows == g.rows && cols == g.cols {
		return
	}

	dropTop := 0
	if g.cursor.Row >= rows {
		dropTop = g.cursor.Row - rows + 1
	}

	cells := make([]Cell, rows*cols)
	for r := 0; r < rows; r++ {
		src := r + dropTop
		line := cells[r*cols : (r+1)*cols]
		for c := range line {
			if src < g.rows && c < g.cols {
				line[c] = g.cells[src*g.cols+c]
			} else {
				line[c] = BlankCell
			}
		}
		if last := &line[cols-1]; last.Width == 2 {
			*last = BlankCell
		}
		if first := &line[0]; first.IsContinuation() {
			*first = BlankCell
		}
	}

	g.cells = cells
	g.rows, g.cols = rows, cols
	g.cursor.Row = clamp(g.cursor.Row-dropTop, 0, rows-1)
	g.cursor.Col = clamp(g.cursor.Col, 0, cols-1)
	g.saved.row = clamp(g.saved.row-dropTop, 0, rows-1)
	g.saved.col = clamp(g.saved.col, 0, cols-1)
	g.top, g.bottom = 0, rows-1
	g.pendingWrap = false
}

// Snapshot is an immutable copy of a grid's visible state. Two snapshots
// of identical screens compare equal with reflect.DeepEqual.
type Snapshot struct {
	Rows   int
	Cols   int
	Cells  []Cell
	Cursor Cursor
	Title  string
	Cwd    string
}

// At returns the cell at (row, col), or BlankCell when out of range.
func (s Snapshot) At(row, col int) Cell {
	if row < 0 || row >= s.Rows || col < 0 || col >= s.Cols {
		return BlankCell
	}
	return s.Cells[row*s.Cols+col]
}

// Line returns one row as text with trailing spaces trimmed.
func (s Snapshot) Line(row int) string {
	if row < 0 || row >= s.Rows {
		return ""
	}
	return lineText(s.Cells[row*s.Cols : (row+1)*s.Cols])
}

// Text renders the snapshot like Grid.Text.
func (s Snapshot) Text() string {
	return gridText(s.Cells, s.Rows, s.Cols)
}

func gridText(cells []Cell, rows, cols int) string {
	lines := make([]string, rows)
	for r := range lines {
		lines[r] = lineText(cells[r*cols : (r+1)*cols])
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func lineText(line []Cell) string {
	var sb strings.Builder
	for _, c := range line {
		if c.IsContinuation() {
			continue
		}
		sb.WriteRune(c.Rune)
	}
	return strings.TrimRight(sb.String(), " ")
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
