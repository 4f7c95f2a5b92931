package vt

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// Limits on buffered sequence state. Input beyond them is dropped, never
// treated as an error.
const (
	maxParams        = 16
	maxParamValue    = 65535
	maxIntermediates = 2
	maxOSCLen        = 4096
)

type decoderState uint8

const (
	stateGround decoderState = iota
	stateEscape
	stateEscapeIntermediate
	stateCSIEntry
	stateCSIParam
	stateCSIIntermediate
	stateCSIIgnore
	stateOSCString
	stateOSCEscape
	stateDCSPassthrough
	stateDCSEscape
)

// Decoder turns a byte stream into terminal operations.
//
// All state is owned by the Decoder; a sequence split across Feed calls
// decodes exactly as if it had arrived in one call. A Decoder is not safe
// for concurrent use.
type Decoder struct {
	state decoderState
	ops   []Op

	params      []int
	paramActive bool // a digit has been seen for the current parameter
	private     byte // CSI private marker (one of < = > ?), 0 if none
	inter       []byte
	osc         []byte

	utf8Buf  [utf8.UTFMax]byte
	utf8Need int // total length of the pending UTF-8 sequence, 0 if none
	utf8Have int
}

// NewDecoder returns a Decoder in the ground state.
func NewDecoder() *Decoder {
	return &Decoder{
		params: make([]int, 0, maxParams),
		inter:  make([]byte, 0, maxIntermediates),
		osc:    make([]byte, 0, 256),
	}
}

// Feed consumes p and returns the operations it completes, in order.
func (d *Decoder) Feed(p []byte) []Op {
	d.ops = make([]Op, 0, len(p))
	for _, b := range p {
		d.step(b)
	}
	ops := d.ops
	d.ops = nil
	return ops
}

// Reset drops any partial sequence and returns to the ground state.
func (d *Decoder) Reset() {
	d.state = stateGround
	d.clearSequence()
	d.utf8Need, d.utf8Have = 0, 0
}

func (d *Decoder) emit(op Op) {
	d.ops = append(d.ops, op)
}

func (d *Decoder) step(b byte) {
	// CAN and SUB abort whatever is in progress.
	if b == 0x18 || b == 0x1A {
		if d.state != stateGround {
			slog.Debug("vt: sequence cancelled", slog.Int("byte", int(b)))
		}
		d.flushUTF8()
		d.state = stateGround
		return
	}
	// ESC restarts sequence parsing everywhere except inside strings, where
	// it may be the first half of the terminator.
	if b == 0x1B && d.state != stateOSCString && d.state != stateDCSPassthrough {
		d.enterEscape()
		return
	}

	switch d.state {
	case stateGround:
		d.ground(b)
	case stateEscape:
		d.escape(b)
	case stateEscapeIntermediate:
		d.escapeIntermediate(b)
	case stateCSIEntry, stateCSIParam:
		d.csiParam(b)
	case stateCSIIntermediate:
		d.csiIntermediate(b)
	case stateCSIIgnore:
		d.csiIgnore(b)
	case stateOSCString:
		d.oscString(b)
	case stateOSCEscape:
		d.oscEscape(b)
	case stateDCSPassthrough:
		d.dcs(b)
	case stateDCSEscape:
		d.dcsEscape(b)
	}
}

// execute runs a C0 control. It reports false for bytes that are not
// executable controls so callers can decide what else to do with them.
func (d *Decoder) execute(b byte) bool {
	switch b {
	case 0x07:
		d.emit(Op{Kind: OpBell})
	case 0x08:
		d.emit(Op{Kind: OpBackspace})
	case 0x09:
		d.emit(Op{Kind: OpTab})
	case 0x0A, 0x0B, 0x0C:
		d.emit(Op{Kind: OpLineFeed})
	case 0x0D:
		d.emit(Op{Kind: OpCarriageReturn})
	default:
		return false
	}
	return true
}

func (d *Decoder) enterEscape() {
	d.flushUTF8()
	d.clearSequence()
	d.state = stateEscape
}

func (d *Decoder) clearSequence() {
	d.params = d.params[:0]
	d.paramActive = false
	d.private = 0
	d.inter = d.inter[:0]
}

func (d *Decoder) ground(b byte) {
	if d.utf8Need > 0 {
		if b >= 0x80 && b < 0xC0 {
			d.utf8Buf[d.utf8Have] = b
			d.utf8Have++
			if d.utf8Have == d.utf8Need {
				r, _ := utf8.DecodeRune(d.utf8Buf[:d.utf8Have])
				d.utf8Need, d.utf8Have = 0, 0
				d.print(r)
			}
			return
		}
		// Truncated sequence: replace it, then handle b on its own.
		d.flushUTF8()
	}

	switch {
	case b == 0x1B:
		d.enterEscape()
	case b < 0x20:
		d.execute(b)
	case b < 0x7F:
		d.print(rune(b))
	case b == 0x7F:
		// DEL is ignored.
	case b >= 0xC2 && b < 0xE0:
		d.startUTF8(b, 2)
	case b >= 0xE0 && b < 0xF0:
		d.startUTF8(b, 3)
	case b >= 0xF0 && b < 0xF5:
		d.startUTF8(b, 4)
	default:
		// Stray continuation byte or invalid lead byte.
		d.print(utf8.RuneError)
	}
}

func (d *Decoder) startUTF8(b byte, n int) {
	d.utf8Buf[0] = b
	d.utf8Need = n
	d.utf8Have = 1
}

// flushUTF8 replaces an incomplete UTF-8 sequence with U+FFFD.
func (d *Decoder) flushUTF8() {
	if d.utf8Need > 0 {
		d.utf8Need, d.utf8Have = 0, 0
		d.print(utf8.RuneError)
	}
}

func (d *Decoder) print(r rune) {
	w := runewidth.RuneWidth(r)
	if w == 0 {
		// Combining marks and other zero-width runes have no cell of their own.
		return
	}
	d.emit(Op{Kind: OpPrint, Rune: r, Width: w})
}

func (d *Decoder) escape(b byte) {
	switch {
	case b < 0x20:
		d.execute(b)
		return
	case b == '[':
		d.state = stateCSIEntry
		return
	case b == ']':
		d.osc = d.osc[:0]
		d.state = stateOSCString
		return
	case b == 'P':
		d.state = stateDCSPassthrough
		return
	case b >= 0x20 && b <= 0x2F:
		d.inter = append(d.inter, b)
		d.state = stateEscapeIntermediate
		return
	case b == 0x7F:
		return
	}

	switch b {
	case '7':
		d.emit(Op{Kind: OpSaveCursor})
	case '8':
		d.emit(Op{Kind: OpRestoreCursor})
	case 'D':
		d.emit(Op{Kind: OpIndex})
	case 'E':
		d.emit(Op{Kind: OpNextLine})
	case 'M':
		d.emit(Op{Kind: OpReverseIndex})
	case 'c':
		d.emit(Op{Kind: OpReset})
	case '\\':
		// Stray string terminator.
	default:
		slog.Debug("vt: unhandled escape", slog.String("seq", "ESC "+string(rune(b))))
	}
	d.state = stateGround
}

func (d *Decoder) escapeIntermediate(b byte) {
	switch {
	case b < 0x20:
		d.execute(b)
	case b <= 0x2F:
		if len(d.inter) < maxIntermediates {
			d.inter = append(d.inter, b)
		}
	case b < 0x7F:
		// Charset designation and friends; none affect the grid.
		slog.Debug("vt: unhandled escape",
			slog.String("seq", "ESC "+string(d.inter)+string(rune(b))),
		)
		d.state = stateGround
	}
}

func (d *Decoder) csiParam(b byte) {
	switch {
	case b < 0x20:
		d.execute(b)
	case b >= '0' && b <= '9':
		d.state = stateCSIParam
		if !d.paramActive {
			if len(d.params) >= maxParams {
				return
			}
			d.params = append(d.params, 0)
			d.paramActive = true
		}
		i := len(d.params) - 1
		if v := d.params[i]*10 + int(b-'0'); v <= maxParamValue {
			d.params[i] = v
		} else {
			d.params[i] = maxParamValue
		}
	case b == ';' || b == ':':
		d.state = stateCSIParam
		if !d.paramActive && len(d.params) < maxParams {
			// Empty parameter, e.g. the first one in "CSI ;5H".
			d.params = append(d.params, 0)
		}
		d.paramActive = false
	case b >= '<' && b <= '?':
		if d.state == stateCSIEntry && d.private == 0 {
			d.private = b
			return
		}
		d.state = stateCSIIgnore
	case b >= 0x20 && b <= 0x2F:
		d.inter = append(d.inter, b)
		d.state = stateCSIIntermediate
	case b >= 0x40 && b <= 0x7E:
		d.dispatchCSI(b)
		d.state = stateGround
	}
}

func (d *Decoder) csiIntermediate(b byte) {
	switch {
	case b < 0x20:
		d.execute(b)
	case b <= 0x2F:
		if len(d.inter) < maxIntermediates {
			d.inter = append(d.inter, b)
		}
	case b <= 0x3F:
		d.state = stateCSIIgnore
	case b <= 0x7E:
		d.dispatchCSI(b)
		d.state = stateGround
	}
}

func (d *Decoder) csiIgnore(b byte) {
	switch {
	case b < 0x20:
		d.execute(b)
	case b >= 0x40 && b <= 0x7E:
		slog.Debug("vt: malformed CSI dropped", slog.String("final", string(rune(b))))
		d.state = stateGround
	}
}

func (d *Decoder) oscString(b byte) {
	switch {
	case b == 0x07:
		d.dispatchOSC()
		d.state = stateGround
	case b == 0x1B:
		d.state = stateOSCEscape
	case b < 0x20:
		// Other controls inside a string are dropped.
	default:
		if len(d.osc) < maxOSCLen {
			d.osc = append(d.osc, b)
		}
	}
}

// oscEscape handles the byte after ESC inside an OSC string. ESC \ is the
// proper terminator; any other byte still ends the string and then starts
// a new escape sequence.
func (d *Decoder) oscEscape(b byte) {
	d.dispatchOSC()
	if b == '\\' {
		d.state = stateGround
		return
	}
	d.clearSequence()
	d.state = stateEscape
	d.escape(b)
}

func (d *Decoder) dcs(b byte) {
	if b == 0x1B {
		d.state = stateDCSEscape
	}
}

func (d *Decoder) dcsEscape(b byte) {
	if b == '\\' {
		d.state = stateGround
		return
	}
	d.clearSequence()
	d.state = stateEscape
	d.escape(b)
}

// param returns parameter i, or def when it is missing or zero.
func (d *Decoder) param(i, def int) int {
	if i < len(d.params) && d.params[i] > 0 {
		return d.params[i]
	}
	return def
}

func (d *Decoder) dispatchCSI(final byte) {
	if d.private != 0 {
		d.dispatchPrivateCSI(final)
		return
	}
	if len(d.inter) > 0 {
		// DECSCUSR and similar; nothing in the grid depends on them.
		d.logUnhandledCSI(final)
		return
	}

	switch final {
	case 'A':
		d.emit(Op{Kind: OpCursorUp, N: d.param(0, 1)})
	case 'B':
		d.emit(Op{Kind: OpCursorDown, N: d.param(0, 1)})
	case 'C':
		d.emit(Op{Kind: OpCursorForward, N: d.param(0, 1)})
	case 'D':
		d.emit(Op{Kind: OpCursorBack, N: d.param(0, 1)})
	case 'E':
		d.emit(Op{Kind: OpCursorNextLine, N: d.param(0, 1)})
	case 'F':
		d.emit(Op{Kind: OpCursorPrevLine, N: d.param(0, 1)})
	case 'G':
		d.emit(Op{Kind: OpCursorColumn, N: d.param(0, 1) - 1})
	case 'd':
		d.emit(Op{Kind: OpCursorRow, N: d.param(0, 1) - 1})
	case 'H', 'f':
		d.emit(Op{Kind: OpCursorPosition, N: d.param(0, 1) - 1, M: d.param(1, 1) - 1})
	case 'J':
		d.emit(Op{Kind: OpEraseDisplay, N: d.param(0, EraseToEnd)})
	case 'K':
		d.emit(Op{Kind: OpEraseLine, N: d.param(0, EraseToEnd)})
	case 'X':
		d.emit(Op{Kind: OpEraseChars, N: d.param(0, 1)})
	case 'L':
		d.emit(Op{Kind: OpInsertLines, N: d.param(0, 1)})
	case 'M':
		d.emit(Op{Kind: OpDeleteLines, N: d.param(0, 1)})
	case '@':
		d.emit(Op{Kind: OpInsertChars, N: d.param(0, 1)})
	case 'P':
		d.emit(Op{Kind: OpDeleteChars, N: d.param(0, 1)})
	case 'S':
		d.emit(Op{Kind: OpScrollUp, N: d.param(0, 1)})
	case 'T':
		d.emit(Op{Kind: OpScrollDown, N: d.param(0, 1)})
	case 'r':
		// The bottom default depends on the grid height, so it travels as -1.
		d.emit(Op{Kind: OpSetScrollRegion, N: d.param(0, 1) - 1, M: d.param(1, 0) - 1})
	case 's':
		d.emit(Op{Kind: OpSaveCursor})
	case 'u':
		d.emit(Op{Kind: OpRestoreCursor})
	case 'm':
		params := make([]int, len(d.params))
		copy(params, d.params)
		d.emit(Op{Kind: OpSetAttributes, Params: params})
	default:
		d.logUnhandledCSI(final)
	}
}

func (d *Decoder) dispatchPrivateCSI(final byte) {
	if d.private != '?' || (final != 'h' && final != 'l') {
		d.logUnhandledCSI(final)
		return
	}
	for _, mode := range d.params {
		switch mode {
		case ModeAutoWrap, ModeCursorVisible:
			d.emit(Op{Kind: OpSetMode, N: mode, Set: final == 'h'})
		default:
			slog.Debug("vt: unhandled private mode", slog.Int("mode", mode))
		}
	}
}

func (d *Decoder) logUnhandledCSI(final byte) {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	var sb strings.Builder
	sb.WriteString("CSI ")
	if d.private != 0 {
		sb.WriteByte(d.private)
	}
	for i, p := range d.params {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(strconv.Itoa(p))
	}
	sb.Write(d.inter)
	sb.WriteByte(final)
	slog.Debug("vt: unhandled CSI", slog.String("seq", sb.String()))
}

func (d *Decoder) dispatchOSC() {
	data := string(d.osc)
	d.osc = d.osc[:0]

	code, value, _ := strings.Cut(data, ";")
	n, err := strconv.Atoi(code)
	if err != nil {
		slog.Debug("vt: malformed OSC", slog.String("code", code))
		return
	}

	switch n {
	case 0, 2:
		d.emit(Op{Kind: OpSetTitle, Text: value})
	case 7:
		d.emit(Op{Kind: OpSetCwd, Text: cwdFromOSC7(value)})
	default:
		slog.Debug("vt: unhandled OSC", slog.Int("code", n))
	}
}

// cwdFromOSC7 extracts the path from "file://host/path"; other values are
// returned unchanged.
func cwdFromOSC7(value string) string {
	if !strings.HasPrefix(value, "file://") {
		return value
	}
	u, err := url.Parse(value)
	if err != nil || u.Path == "" {
		return value
	}
	return u.Path
}
