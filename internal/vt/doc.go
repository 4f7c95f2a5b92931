// Package vt decodes ANSI/VT escape sequences into a character grid.
//
// The package is split into three layers:
//
//   - Decoder: a byte-at-a-time state machine. Feed returns the terminal
//     operations (Op) the input describes and keeps any partial sequence
//     for the next call, so output can be fed in arbitrary chunks.
//   - Grid: a row-major cell arena with a cursor, scroll region and pen.
//     Apply mutates it for a single Op.
//   - Emulator: a Decoder and Grid behind a lock. It is what sessions own;
//     consumers read it through Snapshot.
//
// # Supported subset
//
//   - C0: BEL, BS, HT, LF, VT, FF, CR (CAN and SUB abort a sequence)
//   - ESC: 7 8 D E M c, plus CSI, OSC and DCS introducers
//   - CSI: cursor movement (A-G, H, f, d), erase (J, K, X), insert/delete
//     (L, M, @, P), scroll (S, T, r), save/restore (s, u), SGR (m) and the
//     private modes 7 (autowrap) and 25 (cursor visible)
//   - OSC: 0 and 2 (title), 7 (working directory)
//
// Anything else is logged at debug level and dropped. The decoder never
// returns an error.
package vt
