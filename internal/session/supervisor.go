// Package session owns the interactive PTY session: spawning the shell,
// moving bytes between the PTY and channel consumers, and tearing it down.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/acolita/termengine/internal/pty"
	"github.com/acolita/termengine/internal/vt"
)

// Default terminal geometry for new sessions.
const (
	DefaultRows = 24
	DefaultCols = 80
)

// Recording receives a copy of session I/O. recording.Manager implements it.
type Recording interface {
	StartRecording(sessionID string, width, height int) error
	RecordOutput(sessionID, data string)
	RecordInput(sessionID, data string, masked bool)
	RecordResize(sessionID string, width, height int)
	StopRecording(sessionID string) error
}

// DirChecker validates a working directory before a shell starts in it.
type DirChecker interface {
	CheckDir(dir string) error
}

// ptySession is the active session: the PTY, the child, the emulator
// driven by its output and the loops moving its bytes.
type ptySession struct {
	id    string
	shell string
	dir   string
	size  pty.Winsize
	pump  *pump
}

// Supervisor owns at most one active PTY session.
//
// The mutex guards only the active-session handle and is never held while
// waiting on a session's channels.
type Supervisor struct {
	mu     sync.Mutex
	active *ptySession

	backend   pty.Backend
	shell     string
	args      []string
	env       map[string]string
	term      string
	size      pty.Winsize
	recording Recording
	maskInput bool
	dirs      DirChecker
	newID     func() string
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithBackend sets the PTY backend.
func WithBackend(b pty.Backend) Option {
	return func(s *Supervisor) {
		s.backend = b
	}
}

// WithShell sets the shell used when SpawnShell gets an empty path.
func WithShell(path string, args ...string) Option {
	return func(s *Supervisor) {
		s.shell = path
		s.args = args
	}
}

// WithEnv sets environment overrides for spawned shells.
func WithEnv(env map[string]string) Option {
	return func(s *Supervisor) {
		s.env = env
	}
}

// WithTerm sets the TERM value exported to spawned shells.
func WithTerm(term string) Option {
	return func(s *Supervisor) {
		s.term = term
	}
}

// WithSize sets the initial geometry of new sessions.
func WithSize(rows, cols uint16) Option {
	return func(s *Supervisor) {
		if rows > 0 && cols > 0 {
			s.size = pty.Winsize{Rows: rows, Cols: cols}
		}
	}
}

// WithRecording mirrors session I/O to rec. When maskInput is set, input
// is recorded as asterisks.
func WithRecording(rec Recording, maskInput bool) Option {
	return func(s *Supervisor) {
		s.recording = rec
		s.maskInput = maskInput
	}
}

// WithDirChecker validates initial directories passed to SpawnShell.
func WithDirChecker(c DirChecker) Option {
	return func(s *Supervisor) {
		s.dirs = c
	}
}

// WithIDGenerator overrides session ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Supervisor) {
		s.newID = fn
	}
}

// NewSupervisor creates a Supervisor with no active session.
func NewSupervisor(opts ...Option) *Supervisor {
	s := &Supervisor{
		backend: pty.DefaultBackend(),
		size:    pty.Winsize{Rows: DefaultRows, Cols: DefaultCols},
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SpawnShell starts a shell on a new PTY and returns the session ID.
//
// An active session is terminated first and a warning logged. An empty
// path selects the configured shell, then $SHELL, then /bin/sh. An empty
// initialDir inherits the engine's working directory. Allocation and spawn
// failures are returned and leave no session behind.
func (s *Supervisor) SpawnShell(path, initialDir string) (string, error) {
	args := s.args
	if path == "" {
		path = s.shell
	} else {
		args = nil
	}
	if path == "" {
		path = pty.DetectShell()
	}

	if initialDir != "" && s.dirs != nil {
		if err := s.dirs.CheckDir(initialDir); err != nil {
			return "", err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old := s.active; old != nil {
		slog.Warn("replacing active shell session",
			slog.String("session_id", old.id),
			slog.String("error", ErrAlreadyActive.Error()),
		)
		s.active = nil
		old.pump.shutdown()
	}

	pair, err := s.backend.Open(s.size)
	if err != nil {
		return "", err
	}

	proc, err := s.backend.Spawn(pair, pty.Command{
		Path: path,
		Args: args,
		Dir:  initialDir,
		Env:  s.env,
		Term: s.term,
	})
	if err != nil {
		_ = pair.Close()
		return "", err
	}

	id := s.newID()
	emu := vt.NewEmulator(int(s.size.Rows), int(s.size.Cols))

	if s.recording != nil {
		if err := s.recording.StartRecording(id, int(s.size.Cols), int(s.size.Rows)); err != nil {
			slog.Warn("start recording failed",
				slog.String("session_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	p := newPump(id, pair.Master, proc, emu, s.recording, s.maskInput)
	s.active = &ptySession{
		id:    id,
		shell: path,
		dir:   initialDir,
		size:  s.size,
		pump:  p,
	}
	p.start()

	slog.Info("shell session started",
		slog.String("session_id", id),
		slog.String("shell", path),
		slog.Int("pid", proc.Pid()),
	)
	return id, nil
}

// current returns the active session or ErrNoActiveSession.
func (s *Supervisor) current() (*ptySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil, ErrNoActiveSession
	}
	return s.active, nil
}

// SendInput queues data for the shell. Chunks are written in call order.
func (s *Supervisor) SendInput(data []byte) error {
	sess, err := s.current()
	if err != nil {
		return err
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return sess.pump.send(buf)
}

// ReadOutput returns the next event of the active session, blocking until
// one is available. It returns io.EOF once the session's loops have ended
// and every event has been read.
func (s *Supervisor) ReadOutput(ctx context.Context) (ShellEvent, error) {
	sess, err := s.current()
	if err != nil {
		return nil, err
	}

	select {
	case ev, ok := <-sess.pump.events:
		if !ok {
			return nil, io.EOF
		}
		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ResizePty changes the geometry seen by the child and the screen model.
func (s *Supervisor) ResizePty(rows, cols uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.active
	if sess == nil {
		return ErrNoActiveSession
	}

	size := pty.Winsize{Rows: rows, Cols: cols}
	if err := sess.pump.master.Resize(size); err != nil {
		return err
	}
	sess.size = size
	sess.pump.emu.Resize(int(rows), int(cols))

	if s.recording != nil {
		s.recording.RecordResize(sess.id, int(cols), int(rows))
	}
	slog.Debug("pty resized",
		slog.String("session_id", sess.id),
		slog.Int("rows", int(rows)),
		slog.Int("cols", int(cols)),
	)
	return nil
}

// TerminateShell ends the active session. The master is closed, the child's
// process group is hung up and later reclaimed. A second call returns
// ErrNoActiveSession.
func (s *Supervisor) TerminateShell() error {
	s.mu.Lock()
	sess := s.active
	s.active = nil
	s.mu.Unlock()

	if sess == nil {
		return ErrNoActiveSession
	}
	sess.pump.shutdown()
	slog.Info("shell session terminated", slog.String("session_id", sess.id))
	return nil
}

// Close terminates any active session.
func (s *Supervisor) Close() error {
	if err := s.TerminateShell(); err != nil && !errors.Is(err, ErrNoActiveSession) {
		return err
	}
	return nil
}

// Active reports whether a session exists.
func (s *Supervisor) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// SessionID returns the active session's ID.
func (s *Supervisor) SessionID() (string, error) {
	sess, err := s.current()
	if err != nil {
		return "", err
	}
	return sess.id, nil
}

// Size returns the active session's geometry.
func (s *Supervisor) Size() (rows, cols uint16, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return 0, 0, ErrNoActiveSession
	}
	return s.active.size.Rows, s.active.size.Cols, nil
}

// Screen returns a snapshot of the active session's screen.
func (s *Supervisor) Screen() (vt.Snapshot, error) {
	sess, err := s.current()
	if err != nil {
		return vt.Snapshot{}, err
	}
	return sess.pump.emu.Snapshot(), nil
}

// Title returns the window title last set by the shell.
func (s *Supervisor) Title() (string, error) {
	sess, err := s.current()
	if err != nil {
		return "", err
	}
	return sess.pump.emu.Title(), nil
}

// Cwd returns the directory last announced by the shell through OSC 7,
// falling back to the directory the shell was started in.
func (s *Supervisor) Cwd() (string, error) {
	sess, err := s.current()
	if err != nil {
		return "", err
	}
	if cwd := sess.pump.emu.Cwd(); cwd != "" {
		return cwd, nil
	}
	return sess.dir, nil
}

// Info describes the active session.
type Info struct {
	ID    string `json:"id"`
	Shell string `json:"shell"`
	Rows  uint16 `json:"rows"`
	Cols  uint16 `json:"cols"`
	Title string `json:"title,omitempty"`
	Cwd   string `json:"cwd,omitempty"`
}

// Info returns a description of the active session.
func (s *Supervisor) Info() (Info, error) {
	s.mu.Lock()
	sess := s.active
	var size pty.Winsize
	if sess != nil {
		size = sess.size
	}
	s.mu.Unlock()

	if sess == nil {
		return Info{}, ErrNoActiveSession
	}
	cwd := sess.pump.emu.Cwd()
	if cwd == "" {
		cwd = sess.dir
	}
	return Info{
		ID:    sess.id,
		Shell: sess.shell,
		Rows:  size.Rows,
		Cols:  size.Cols,
		Title: sess.pump.emu.Title(),
		Cwd:   cwd,
	}, nil
}

func (i Info) String() string {
	return fmt.Sprintf("%s (%s, %dx%d)", i.ID, pty.ShellName(i.Shell), i.Cols, i.Rows)
}
