// Package pty allocates pseudo-terminals and launches processes on them.
//
// The platform specifics live behind Backend: the unix backend is built on
// github.com/creack/pty, other platforms get a backend that reports
// ErrUnsupported. Tests substitute a fake Backend.
package pty

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// DefaultTerm is the TERM value exported to children.
const DefaultTerm = "xterm-256color"

// Winsize is a terminal geometry in character cells.
type Winsize struct {
	Rows uint16
	Cols uint16
}

// Master is the parent's end of a PTY pair.
type Master interface {
	io.ReadWriteCloser

	// Resize sets the window size seen by the child.
	Resize(size Winsize) error
}

// Pair is an allocated PTY. Slave is handed to the child by Spawn and
// closed in the parent once the child is running.
type Pair struct {
	Master Master
	Slave  *os.File
	Size   Winsize
}

// Close releases both ends. Safe to call after Spawn closed the slave.
func (p *Pair) Close() error {
	var errs []error
	if p.Slave != nil {
		if err := p.Slave.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close slave: %w", err))
		}
		p.Slave = nil
	}
	if p.Master != nil {
		if err := p.Master.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close master: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Command describes a child to attach to a PTY.
type Command struct {
	Path string
	Args []string
	Dir  string            // working directory; empty inherits the parent's
	Env  map[string]string // overrides applied on top of os.Environ
	Term string            // TERM value, DefaultTerm when empty
}

// Environ builds the child environment: the parent's, then TERM, then Env
// in key order so the result is deterministic.
func (c Command) Environ() []string {
	term := c.Term
	if term == "" {
		term = DefaultTerm
	}
	env := append(os.Environ(), "TERM="+term)

	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+c.Env[k])
	}
	return env
}

// ExitStatus is how a child finished. Code is nil when a signal ended it.
type ExitStatus struct {
	Code   *int32
	Signal string
}

// Signaled reports whether the child was terminated by a signal.
func (s ExitStatus) Signaled() bool {
	return s.Code == nil
}

// Process is a running child attached to a PTY.
type Process interface {
	Pid() int

	// Wait blocks until the child exits. It must be called exactly once.
	Wait() (ExitStatus, error)

	// Hangup tells the child's process group the terminal is going away.
	Hangup() error

	// Reclaim best-effort kills anything left in the child's process group.
	Reclaim()
}

// Backend is the platform capability used by the rest of the engine.
type Backend interface {
	// Open allocates a PTY whose size is already set when it is returned.
	Open(size Winsize) (*Pair, error)

	// Spawn starts cmd with the pair's slave as its controlling terminal.
	Spawn(pair *Pair, cmd Command) (Process, error)
}

// DefaultBackend returns the backend for the current platform.
func DefaultBackend() Backend {
	return platformBackend{}
}

// Open allocates a PTY with the platform backend.
func Open(rows, cols uint16) (*Pair, error) {
	return DefaultBackend().Open(Winsize{Rows: rows, Cols: cols})
}

// Spawn launches cmd on pair with the platform backend.
func Spawn(pair *Pair, cmd Command) (Process, error) {
	return DefaultBackend().Spawn(pair, cmd)
}

// DetectShell returns the user's shell: $SHELL, then the first common shell
// that exists, then /bin/sh.
func DetectShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	for _, shell := range []string{"/bin/bash", "/bin/zsh", "/bin/sh"} {
		if _, err := os.Stat(shell); err == nil {
			return shell
		}
	}
	return "/bin/sh"
}

// ShellName returns the base name of a shell path ("/usr/bin/zsh" -> "zsh").
func ShellName(shell string) string {
	if i := strings.LastIndexByte(shell, '/'); i >= 0 {
		return shell[i+1:]
	}
	return shell
}

// IsEOF reports whether a master read error means the child side is gone.
// Linux reports EIO once the last slave descriptor closes; a locally closed
// master reports os.ErrClosed.
func IsEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || isHangup(err)
}
