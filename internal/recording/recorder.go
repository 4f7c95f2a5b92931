// Package recording captures PTY session I/O as asciicast v2 files
// (https://docs.asciinema.org/manual/asciicast/v2/).
package recording

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/acolita/termengine/internal/ports"
)

// Event codes.
const (
	EventOutput = "o"
	EventInput  = "i"
	EventResize = "r"
)

// Header is the first line of a recording.
type Header struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp"`
	Title     string            `json:"title,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// Event is one recording line, encoded as [time, code, data].
type Event struct {
	Time float64
	Type string
	Data string
}

func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]any{e.Time, e.Type, e.Data})
}

// RecorderOptions describe the recorded session in the header.
type RecorderOptions struct {
	Width  int
	Height int
	Title  string
	Shell  string
	Term   string
}

// Recorder appends events for one session. Output chunks that end inside a
// UTF-8 sequence are held back until the sequence completes, since PTY
// reads split characters freely and asciicast data must be valid text.
type Recorder struct {
	mu      sync.Mutex
	file    ports.FileHandle
	clock   ports.Clock
	start   time.Time
	partial []byte // incomplete UTF-8 tail of the last output chunk
	closed  bool
}

// NewRecorder creates <dir>/<sessionID>_<timestamp>.cast, which must not
// exist yet, and writes the header.
func NewRecorder(dir, sessionID string, opts RecorderOptions, fs ports.FileSystem, clock ports.Clock) (*Recorder, error) {
	if err := fs.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create recording directory: %w", err)
	}

	start := clock.Now()
	name := filepath.Join(dir, sessionID+"_"+start.Format("20060102_150405")+".cast")
	file, err := fs.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("create recording file: %w", err)
	}

	h := Header{
		Version:   2,
		Width:     opts.Width,
		Height:    opts.Height,
		Timestamp: start.Unix(),
		Title:     opts.Title,
	}
	for k, v := range map[string]string{"SHELL": opts.Shell, "TERM": opts.Term} {
		if v == "" {
			continue
		}
		if h.Env == nil {
			h.Env = map[string]string{}
		}
		h.Env[k] = v
	}

	r := &Recorder{file: file, clock: clock, start: start}
	if err := r.writeLine(h); err != nil {
		file.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	return r, nil
}

// RecordOutput records bytes the program wrote to the terminal.
func (r *Recorder) RecordOutput(data string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	buf := append(r.partial, data...)
	cut := completeUTF8(buf)
	r.partial = append([]byte(nil), buf[cut:]...)
	if cut == 0 {
		return nil
	}
	return r.event(EventOutput, string(buf[:cut]))
}

// RecordInput records keystrokes sent to the program.
func (r *Recorder) RecordInput(data string) error {
	return r.record(EventInput, data)
}

// RecordMaskedInput records n asterisks in place of the keystrokes.
func (r *Recorder) RecordMaskedInput(n int) error {
	return r.record(EventInput, strings.Repeat("*", n))
}

// RecordResize records a size change as "COLSxROWS".
func (r *Recorder) RecordResize(cols, rows int) error {
	return r.record(EventResize, fmt.Sprintf("%dx%d", cols, rows))
}

func (r *Recorder) record(code, data string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	return r.event(code, data)
}

// event writes one event. mu must be held.
func (r *Recorder) event(code, data string) error {
	e := Event{Time: r.clock.Now().Sub(r.start).Seconds(), Type: code, Data: data}
	if err := r.writeLine(e); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

func (r *Recorder) writeLine(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = r.file.Write(append(line, '\n'))
	return err
}

// completeUTF8 returns the length of the longest prefix of b that does not
// end inside a multi-byte sequence. Invalid bytes count as complete.
func completeUTF8(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if !utf8.FullRune(b[i:]) {
			return i
		}
		break
	}
	return len(b)
}

// Close flushes any held-back output and closes the file. Events recorded
// after Close are dropped.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var err error
	if len(r.partial) > 0 {
		err = r.event(EventOutput, string(r.partial))
		r.partial = nil
	}
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Path is the recording file's path.
func (r *Recorder) Path() string {
	return r.file.Name()
}
