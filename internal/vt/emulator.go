package vt

import "sync"

// NoticeKind identifies an out-of-band event raised while feeding output.
type NoticeKind uint8

const (
	NoticeTitle NoticeKind = iota + 1
	NoticeCwd
	NoticeBell
)

// Notice reports a change that is not visible in the cell grid itself.
type Notice struct {
	Kind NoticeKind
	Text string
}

// Emulator pairs a Decoder with the Grid it drives. It is safe for
// concurrent use: the session reader feeds it while other goroutines take
// snapshots.
type Emulator struct {
	mu   sync.Mutex
	dec  *Decoder
	grid *Grid
}

// NewEmulator returns an emulator with a blank rows x cols screen.
func NewEmulator(rows, cols int) *Emulator {
	return &Emulator{
		dec:  NewDecoder(),
		grid: NewGrid(rows, cols),
	}
}

// Feed decodes p, applies the resulting operations in order and returns
// any title, cwd or bell notices they raised.
func (e *Emulator) Feed(p []byte) []Notice {
	e.mu.Lock()
	defer e.mu.Unlock()

	var notices []Notice
	for _, op := range e.dec.Feed(p) {
		e.grid.Apply(op)
		switch op.Kind {
		case OpSetTitle:
			notices = append(notices, Notice{Kind: NoticeTitle, Text: op.Text})
		case OpSetCwd:
			notices = append(notices, Notice{Kind: NoticeCwd, Text: op.Text})
		case OpBell:
			notices = append(notices, Notice{Kind: NoticeBell})
		}
	}
	return notices
}

// Resize reshapes the screen.
func (e *Emulator) Resize(rows, cols int) {
	e.mu.Lock()
	e.grid.Resize(rows, cols)
	e.mu.Unlock()
}

// Size returns the screen dimensions.
func (e *Emulator) Size() (rows, cols int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grid.Size()
}

// Snapshot returns a copy of the current screen.
func (e *Emulator) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grid.Snapshot()
}

// Text returns the screen as plain text.
func (e *Emulator) Text() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grid.Text()
}

// Title returns the current window title.
func (e *Emulator) Title() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grid.Title()
}

// Cwd returns the working directory last reported by the shell.
func (e *Emulator) Cwd() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grid.Cwd()
}
