// Package fakepty provides an in-memory pty.Backend for testing session
// logic without real terminals or child processes.
package fakepty

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/acolita/termengine/internal/pty"
)

// Backend hands out fake masters and processes. The zero value is not
// usable; call New.
type Backend struct {
	mu       sync.Mutex
	openErr  error
	spawnErr error
	nextPid  int
	masters  []*Master
	procs    []*Process
	commands []pty.Command
}

// New creates a fake backend.
func New() *Backend {
	return &Backend{nextPid: 1000}
}

// SetOpenError makes subsequent Open calls fail with err.
func (b *Backend) SetOpenError(err error) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openErr = err
	return b
}

// SetSpawnError makes subsequent Spawn calls fail with err.
func (b *Backend) SetSpawnError(err error) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.spawnErr = err
	return b
}

// Open implements pty.Backend.
func (b *Backend) Open(size pty.Winsize) (*pty.Pair, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.openErr != nil {
		return nil, &pty.Error{Kind: pty.KindOsPtyFailure, Err: b.openErr}
	}
	if size.Rows == 0 || size.Cols == 0 {
		return nil, &pty.Error{Kind: pty.KindOsPtyFailure, Err: pty.ErrInvalidSize}
	}

	m := newMaster(size)
	b.masters = append(b.masters, m)
	return &pty.Pair{Master: m, Size: size}, nil
}

// Spawn implements pty.Backend.
func (b *Backend) Spawn(pair *pty.Pair, cmd pty.Command) (pty.Process, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.spawnErr != nil {
		return nil, pty.SpawnError(cmd.Path, b.spawnErr)
	}
	if pair == nil || pair.Master == nil {
		return nil, &pty.Error{Kind: pty.KindSpawnFailed, Path: cmd.Path, Err: errors.New("no master")}
	}

	b.nextPid++
	p := newProcess(b.nextPid)
	b.procs = append(b.procs, p)
	b.commands = append(b.commands, cmd)
	return p, nil
}

// Master returns the i-th master handed out, or nil.
func (b *Backend) Master(i int) *Master {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i < 0 || i >= len(b.masters) {
		return nil
	}
	return b.masters[i]
}

// Process returns the i-th process spawned, or nil.
func (b *Backend) Process(i int) *Process {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i < 0 || i >= len(b.procs) {
		return nil
	}
	return b.procs[i]
}

// Commands returns every command passed to Spawn, in order.
func (b *Backend) Commands() []pty.Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]pty.Command, len(b.commands))
	copy(out, b.commands)
	return out
}

// Master is a fake PTY master. Output queued with Emit is returned by Read;
// everything written is captured.
type Master struct {
	mu        sync.Mutex
	size      pty.Winsize
	written   bytes.Buffer
	pending   []byte
	resizeErr error
	writeErr  error
	closed    bool

	out     chan []byte
	readErr chan error
	done    chan struct{}
	eofOnce sync.Once
	closeMu sync.Once
}

func newMaster(size pty.Winsize) *Master {
	return &Master{
		size:    size,
		out:     make(chan []byte, 256),
		readErr: make(chan error, 1),
		done:    make(chan struct{}),
	}
}

// Emit queues data as if the child had written it.
func (m *Master) Emit(data string) {
	m.out <- []byte(data)
}

// EmitEOF makes Read report EOF once queued output is consumed, as when
// the last slave descriptor closes.
func (m *Master) EmitEOF() {
	m.eofOnce.Do(func() { close(m.out) })
}

// FailRead makes the next Read that finds no queued output return err.
func (m *Master) FailRead(err error) {
	m.readErr <- err
}

// SetWriteError makes subsequent writes fail with err.
func (m *Master) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// SetResizeError makes subsequent resizes fail with err.
func (m *Master) SetResizeError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resizeErr = err
}

// Read implements io.Reader. It blocks until output, an injected error,
// EOF or Close.
func (m *Master) Read(p []byte) (int, error) {
	m.mu.Lock()
	if len(m.pending) > 0 {
		n := copy(p, m.pending)
		m.pending = m.pending[n:]
		m.mu.Unlock()
		return n, nil
	}
	m.mu.Unlock()

	select {
	case data, ok := <-m.out:
		if !ok {
			return 0, io.EOF
		}
		n := copy(p, data)
		if n < len(data) {
			m.mu.Lock()
			m.pending = append(m.pending, data[n:]...)
			m.mu.Unlock()
		}
		return n, nil
	case err := <-m.readErr:
		return 0, err
	case <-m.done:
		return 0, os.ErrClosed
	}
}

// Write implements io.Writer.
func (m *Master) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, os.ErrClosed
	}
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	return m.written.Write(p)
}

// Resize implements pty.Master.
func (m *Master) Resize(size pty.Winsize) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.resizeErr != nil {
		return &pty.Error{Kind: pty.KindOsResizeFailure, Err: m.resizeErr}
	}
	if size.Rows == 0 || size.Cols == 0 {
		return &pty.Error{Kind: pty.KindOsResizeFailure, Err: pty.ErrInvalidSize}
	}
	m.size = size
	return nil
}

// Close implements io.Closer.
func (m *Master) Close() error {
	m.closeMu.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.done)
	})
	return nil
}

// --- Test inspection methods ---

// Written returns everything written to the master.
func (m *Master) Written() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written.String()
}

// Size returns the current window size.
func (m *Master) Size() pty.Winsize {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

// IsClosed reports whether Close was called.
func (m *Master) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Process is a fake child. It runs until Exit, Kill, a hangup or Reclaim.
type Process struct {
	pid  int
	exit chan pty.ExitStatus
	once sync.Once

	mu           sync.Mutex
	hangups      int
	reclaimed    bool
	ignoreHangup bool
	waitErr      error
}

func newProcess(pid int) *Process {
	return &Process{pid: pid, exit: make(chan pty.ExitStatus, 1)}
}

// Pid implements pty.Process.
func (p *Process) Pid() int { return p.pid }

// Wait implements pty.Process.
func (p *Process) Wait() (pty.ExitStatus, error) {
	st := <-p.exit
	p.mu.Lock()
	defer p.mu.Unlock()
	return st, p.waitErr
}

// Hangup implements pty.Process. Unless IgnoreHangup was set the child
// exits as if killed by SIGHUP.
func (p *Process) Hangup() error {
	p.mu.Lock()
	p.hangups++
	ignore := p.ignoreHangup
	p.mu.Unlock()

	if !ignore {
		p.Kill("hangup")
	}
	return nil
}

// Reclaim implements pty.Process.
func (p *Process) Reclaim() {
	p.mu.Lock()
	p.reclaimed = true
	p.mu.Unlock()
	p.Kill("killed")
}

// Exit ends the child with an exit code.
func (p *Process) Exit(code int32) {
	p.finish(pty.ExitStatus{Code: &code})
}

// Kill ends the child as if by the named signal.
func (p *Process) Kill(signal string) {
	p.finish(pty.ExitStatus{Signal: signal})
}

// FailWait makes Wait return err once the child ends.
func (p *Process) FailWait(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waitErr = err
}

// IgnoreHangup keeps the child alive on Hangup.
func (p *Process) IgnoreHangup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ignoreHangup = true
}

func (p *Process) finish(st pty.ExitStatus) {
	p.once.Do(func() { p.exit <- st })
}

// Hangups returns how many times Hangup was called.
func (p *Process) Hangups() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hangups
}

// Reclaimed reports whether Reclaim was called.
func (p *Process) Reclaimed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reclaimed
}

var (
	_ pty.Backend = (*Backend)(nil)
	_ pty.Master  = (*Master)(nil)
	_ pty.Process = (*Process)(nil)
)
