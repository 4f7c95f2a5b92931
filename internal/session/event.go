package session

import "fmt"

// ShellEvent is one item on a session's event stream. The concrete types
// are Output, Exited, ErrorEvent, CwdChanged and TitleChanged.
type ShellEvent interface {
	shellEvent()
}

// Output carries bytes read from the PTY. Stdout and stderr share the
// terminal, so IsStderr is always false for PTY sessions.
type Output struct {
	Bytes    []byte
	IsStderr bool
}

// Exited reports the child's exit. Code is nil when a signal ended it.
// Every session emits exactly one Exited.
type Exited struct {
	Code *int32
}

// ErrorEvent reports a failure inside one of the session's I/O loops.
type ErrorEvent struct {
	Message string
}

// CwdChanged reports a working directory announced by the shell (OSC 7).
type CwdChanged struct {
	Path string
}

// TitleChanged reports a window title set by the child (OSC 0 or 2).
type TitleChanged struct {
	Title string
}

func (Output) shellEvent()       {}
func (Exited) shellEvent()       {}
func (ErrorEvent) shellEvent()   {}
func (CwdChanged) shellEvent()   {}
func (TitleChanged) shellEvent() {}

func (e Exited) String() string {
	if e.Code == nil {
		return "exited (signal)"
	}
	return fmt.Sprintf("exited (%d)", *e.Code)
}
