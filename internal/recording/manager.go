package recording

import (
	"log/slog"
	"sync"

	"github.com/acolita/termengine/internal/adapters/realclock"
	"github.com/acolita/termengine/internal/adapters/realfs"
	"github.com/acolita/termengine/internal/ports"
)

// Manager owns the recorder of each live session. Write failures are
// logged, never returned, so a full disk cannot stall a session.
type Manager struct {
	dir   string
	shell string
	term  string
	fs    ports.FileSystem
	clock ports.Clock

	mu        sync.RWMutex
	enabled   bool
	recorders map[string]*Recorder
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

func WithFileSystem(fs ports.FileSystem) ManagerOption {
	return func(m *Manager) { m.fs = fs }
}

func WithClock(clock ports.Clock) ManagerOption {
	return func(m *Manager) { m.clock = clock }
}

// WithHeaderEnv sets the SHELL and TERM values written to headers.
func WithHeaderEnv(shell, term string) ManagerOption {
	return func(m *Manager) { m.shell, m.term = shell, term }
}

// NewManager records sessions into dir while enabled.
func NewManager(dir string, enabled bool, opts ...ManagerOption) *Manager {
	m := &Manager{
		dir:       dir,
		enabled:   enabled,
		fs:        realfs.New(),
		clock:     realclock.New(),
		recorders: map[string]*Recorder{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartRecording opens a recording for sessionID, replacing any open one.
// It does nothing while recording is disabled.
func (m *Manager) StartRecording(sessionID string, cols, rows int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return nil
	}
	if old := m.recorders[sessionID]; old != nil {
		old.Close()
		delete(m.recorders, sessionID)
	}

	r, err := NewRecorder(m.dir, sessionID, RecorderOptions{
		Width:  cols,
		Height: rows,
		Title:  sessionID,
		Shell:  m.shell,
		Term:   m.term,
	}, m.fs, m.clock)
	if err != nil {
		return err
	}
	m.recorders[sessionID] = r

	slog.Debug("recording started",
		slog.String("session_id", sessionID),
		slog.String("path", r.Path()),
	)
	return nil
}

func (m *Manager) lookup(sessionID string) *Recorder {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recorders[sessionID]
}

func (m *Manager) RecordOutput(sessionID, data string) {
	if r := m.lookup(sessionID); r != nil {
		logFailure(sessionID, r.RecordOutput(data))
	}
}

// RecordInput records keystrokes, as asterisks when masked.
func (m *Manager) RecordInput(sessionID, data string, masked bool) {
	r := m.lookup(sessionID)
	switch {
	case r == nil:
	case masked:
		logFailure(sessionID, r.RecordMaskedInput(len(data)))
	default:
		logFailure(sessionID, r.RecordInput(data))
	}
}

func (m *Manager) RecordResize(sessionID string, cols, rows int) {
	if r := m.lookup(sessionID); r != nil {
		logFailure(sessionID, r.RecordResize(cols, rows))
	}
}

func logFailure(sessionID string, err error) {
	if err != nil {
		slog.Warn("recording write failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
}

// StopRecording closes the session's recording, if any.
func (m *Manager) StopRecording(sessionID string) error {
	m.mu.Lock()
	r := m.recorders[sessionID]
	delete(m.recorders, sessionID)
	m.mu.Unlock()

	if r == nil {
		return nil
	}
	return r.Close()
}

// Path returns the file the session is being recorded to, or "".
func (m *Manager) Path(sessionID string) string {
	if r := m.lookup(sessionID); r != nil {
		return r.Path()
	}
	return ""
}

// CloseAll stops every recording.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	open := m.recorders
	m.recorders = map[string]*Recorder{}
	m.mu.Unlock()

	for _, r := range open {
		r.Close()
	}
}

func (m *Manager) IsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// SetEnabled switches recording of new sessions. Open recordings continue
// until stopped.
func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}
