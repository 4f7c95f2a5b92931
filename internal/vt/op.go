package vt

// OpKind identifies a terminal operation.
type OpKind uint8

const (
	OpPrint OpKind = iota + 1 // Rune, Width
	OpBell
	OpBackspace
	OpTab
	OpLineFeed
	OpCarriageReturn
	OpIndex        // ESC D
	OpNextLine     // ESC E
	OpReverseIndex // ESC M
	OpSaveCursor
	OpRestoreCursor
	OpReset

	OpCursorUp       // N
	OpCursorDown     // N
	OpCursorForward  // N
	OpCursorBack     // N
	OpCursorNextLine // N
	OpCursorPrevLine // N
	OpCursorColumn   // N, 0-based
	OpCursorRow      // N, 0-based
	OpCursorPosition // N row, M col, both 0-based

	OpEraseDisplay    // N mode
	OpEraseLine       // N mode
	OpEraseChars      // N
	OpInsertLines     // N
	OpDeleteLines     // N
	OpInsertChars     // N
	OpDeleteChars     // N
	OpScrollUp        // N
	OpScrollDown      // N
	OpSetScrollRegion // N top, M bottom, 0-based; M < 0 means last row

	OpSetAttributes // Params (SGR)
	OpSetMode       // N mode, Set
	OpSetTitle      // Text
	OpSetCwd        // Text
)

var opNames = map[OpKind]string{
	OpPrint:           "print",
	OpBell:            "bell",
	OpBackspace:       "backspace",
	OpTab:             "tab",
	OpLineFeed:        "line_feed",
	OpCarriageReturn:  "carriage_return",
	OpIndex:           "index",
	OpNextLine:        "next_line",
	OpReverseIndex:    "reverse_index",
	OpSaveCursor:      "save_cursor",
	OpRestoreCursor:   "restore_cursor",
	OpReset:           "reset",
	OpCursorUp:        "cursor_up",
	OpCursorDown:      "cursor_down",
	OpCursorForward:   "cursor_forward",
	OpCursorBack:      "cursor_back",
	OpCursorNextLine:  "cursor_next_line",
	OpCursorPrevLine:  "cursor_prev_line",
	OpCursorColumn:    "cursor_column",
	OpCursorRow:       "cursor_row",
	OpCursorPosition:  "cursor_position",
	OpEraseDisplay:    "erase_display",
	OpEraseLine:       "erase_line",
	OpEraseChars:      "erase_chars",
	OpInsertLines:     "insert_lines",
	OpDeleteLines:     "delete_lines",
	OpInsertChars:     "insert_chars",
	OpDeleteChars:     "delete_chars",
	OpScrollUp:        "scroll_up",
	OpScrollDown:      "scroll_down",
	OpSetScrollRegion: "set_scroll_region",
	OpSetAttributes:   "set_attributes",
	OpSetMode:         "set_mode",
	OpSetTitle:        "set_title",
	OpSetCwd:          "set_cwd",
}

func (k OpKind) String() string {
	if name, ok := opNames[k]; ok {
		return name
	}
	return "unknown"
}

// Op is one decoded terminal operation. Which fields are meaningful depends
// on Kind; see the comments on the OpKind constants.
type Op struct {
	Kind   OpKind
	Rune   rune
	Width  int
	N, M   int
	Set    bool
	Params []int
	Text   string
}

// Erase modes for OpEraseDisplay and OpEraseLine.
const (
	EraseToEnd   = 0
	EraseToStart = 1
	EraseAll     = 2
	EraseSaved   = 3 // display only; no scrollback, so same as EraseAll
)

// Private modes understood by the grid.
const (
	ModeAutoWrap      = 7
	ModeCursorVisible = 25
)
