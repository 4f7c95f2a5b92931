package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/acolita/termengine/internal/pty"
	"github.com/acolita/termengine/internal/testing/fakes/fakepty"
)

func newTestSupervisor(t *testing.T, opts ...Option) (*Supervisor, *fakepty.Backend) {
	t.Helper()
	backend := fakepty.New()
	n := 0
	base := []Option{
		WithBackend(backend),
		WithShell("/bin/fake"),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("sess-%d", n)
		}),
	}
	s := NewSupervisor(append(base, opts...)...)
	t.Cleanup(func() { s.Close() })
	return s, backend
}

func nextEvent(t *testing.T, s *Supervisor) ShellEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	ev, err := s.ReadOutput(ctx)
	if err != nil {
		t.Fatalf("ReadOutput: %v", err)
	}
	return ev
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSupervisor_NoActiveSession(t *testing.T) {
	s, _ := newTestSupervisor(t)

	for i := 0; i < 2; i++ {
		if err := s.TerminateShell(); !errors.Is(err, ErrNoActiveSession) {
			t.Errorf("TerminateShell #%d = %v, want ErrNoActiveSession", i+1, err)
		}
	}
	if err := s.SendInput([]byte("x")); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("SendInput = %v", err)
	}
	if _, err := s.ReadOutput(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("ReadOutput = %v", err)
	}
	if err := s.ResizePty(10, 10); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("ResizePty = %v", err)
	}
	if _, err := s.Screen(); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("Screen = %v", err)
	}
	if s.Active() {
		t.Error("Active() should be false")
	}
}

func TestSupervisor_TerminateTwice(t *testing.T) {
	s, backend := newTestSupervisor(t)
	if _, err := s.SpawnShell("", ""); err != nil {
		t.Fatalf("SpawnShell: %v", err)
	}

	if err := s.TerminateShell(); err != nil {
		t.Fatalf("first TerminateShell: %v", err)
	}
	if err := s.TerminateShell(); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("second TerminateShell = %v, want ErrNoActiveSession", err)
	}

	if !backend.Master(0).IsClosed() {
		t.Error("terminate should close the master")
	}
	if backend.Process(0).Hangups() != 1 {
		t.Errorf("hangups = %d, want 1", backend.Process(0).Hangups())
	}
	waitFor(t, "reclaim", backend.Process(0).Reclaimed)
}

func TestSupervisor_InputReachesMasterInOrder(t *testing.T) {
	s, backend := newTestSupervisor(t)
	if _, err := s.SpawnShell("", ""); err != nil {
		t.Fatalf("SpawnShell: %v", err)
	}

	for _, chunk := range []string{"ec", "ho ", "hi\n"} {
		if err := s.SendInput([]byte(chunk)); err != nil {
			t.Fatalf("SendInput: %v", err)
		}
	}
	master := backend.Master(0)
	waitFor(t, "input", func() bool { return master.Written() == "echo hi\n" })
}

func TestSupervisor_OutputFeedsScreen(t *testing.T) {
	s, backend := newTestSupervisor(t)
	if _, err := s.SpawnShell("", ""); err != nil {
		t.Fatalf("SpawnShell: %v", err)
	}

	backend.Master(0).Emit("hello\r\n\x1b[1mworld")

	ev := nextEvent(t, s)
	out, ok := ev.(Output)
	if !ok || string(out.Bytes) != "hello\r\n\x1b[1mworld" || out.IsStderr {
		t.Fatalf("event = %#v, want Output", ev)
	}

	snap, err := s.Screen()
	if err != nil {
		t.Fatalf("Screen: %v", err)
	}
	if got, want := snap.Text(), "hello\nworld"; got != want {
		t.Errorf("screen = %q, want %q", got, want)
	}
}

func TestSupervisor_TitleAndCwdEvents(t *testing.T) {
	s, backend := newTestSupervisor(t)
	if _, err := s.SpawnShell("", "/start"); err != nil {
		t.Fatalf("SpawnShell: %v", err)
	}

	if cwd, _ := s.Cwd(); cwd != "/start" {
		t.Errorf("Cwd before OSC 7 = %q, want /start", cwd)
	}

	backend.Master(0).Emit("\x1b]0;my title\a\x1b]7;file://host/home/me\a")

	if _, ok := nextEvent(t, s).(Output); !ok {
		t.Fatal("first event should be Output")
	}
	if ev := nextEvent(t, s); ev != (TitleChanged{Title: "my title"}) {
		t.Errorf("second event = %#v, want TitleChanged", ev)
	}
	if ev := nextEvent(t, s); ev != (CwdChanged{Path: "/home/me"}) {
		t.Errorf("third event = %#v, want CwdChanged", ev)
	}

	if title, _ := s.Title(); title != "my title" {
		t.Errorf("Title() = %q", title)
	}
	if cwd, _ := s.Cwd(); cwd != "/home/me" {
		t.Errorf("Cwd() = %q", cwd)
	}
}

func TestSupervisor_ExitThenEOF(t *testing.T) {
	s, backend := newTestSupervisor(t)
	if _, err := s.SpawnShell("", ""); err != nil {
		t.Fatalf("SpawnShell: %v", err)
	}

	backend.Master(0).Emit("bye\r\n")
	backend.Master(0).EmitEOF()
	backend.Process(0).Exit(3)

	var exits []Exited
	var output strings.Builder
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		ev, err := s.ReadOutput(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadOutput: %v", err)
		}
		switch ev := ev.(type) {
		case Output:
			output.Write(ev.Bytes)
		case Exited:
			exits = append(exits, ev)
		default:
			t.Errorf("unexpected event %#v", ev)
		}
	}

	if output.String() != "bye\r\n" {
		t.Errorf("output = %q", output.String())
	}
	if len(exits) != 1 || exits[0].Code == nil || *exits[0].Code != 3 {
		t.Errorf("exits = %v, want exactly one Exited(3)", exits)
	}
	if !backend.Process(0).Reclaimed() {
		t.Error("waiter should reclaim the process group")
	}
	if err := s.SendInput([]byte("x")); !errors.Is(err, ErrSessionExited) {
		t.Errorf("SendInput after exit = %v, want ErrSessionExited", err)
	}
	if !s.Active() {
		t.Error("an exited session stays active until terminated")
	}
}

func TestSupervisor_SignalExitHasNoCode(t *testing.T) {
	s, backend := newTestSupervisor(t)
	if _, err := s.SpawnShell("", ""); err != nil {
		t.Fatalf("SpawnShell: %v", err)
	}
	backend.Master(0).EmitEOF()
	backend.Process(0).Kill("killed")

	ev := nextEvent(t, s)
	exited, ok := ev.(Exited)
	if !ok {
		t.Fatalf("event = %#v, want Exited", ev)
	}
	if exited.Code != nil {
		t.Errorf("Code = %d, want nil", *exited.Code)
	}
}

func TestSupervisor_Resize(t *testing.T) {
	s, backend := newTestSupervisor(t)
	if _, err := s.SpawnShell("", ""); err != nil {
		t.Fatalf("SpawnShell: %v", err)
	}

	if err := s.ResizePty(50, 132); err != nil {
		t.Fatalf("ResizePty: %v", err)
	}
	if got := backend.Master(0).Size(); got != (pty.Winsize{Rows: 50, Cols: 132}) {
		t.Errorf("master size = %+v", got)
	}
	rows, cols, err := s.Size()
	if err != nil || rows != 50 || cols != 132 {
		t.Errorf("Size() = %d, %d, %v", rows, cols, err)
	}
	snap, _ := s.Screen()
	if snap.Rows != 50 || snap.Cols != 132 {
		t.Errorf("screen = %dx%d", snap.Rows, snap.Cols)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if ev, err := s.ReadOutput(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("resize produced event %#v (err %v)", ev, err)
	}
}

func TestSupervisor_ResizeFailure(t *testing.T) {
	s, backend := newTestSupervisor(t)
	if _, err := s.SpawnShell("", ""); err != nil {
		t.Fatalf("SpawnShell: %v", err)
	}

	if err := s.ResizePty(0, 80); !errors.Is(err, pty.ErrOsResizeFailure) {
		t.Errorf("ResizePty(0, 80) = %v, want ErrOsResizeFailure", err)
	}

	backend.Master(0).SetResizeError(errors.New("ioctl failed"))
	if err := s.ResizePty(30, 90); !errors.Is(err, pty.ErrOsResizeFailure) {
		t.Errorf("ResizePty = %v, want ErrOsResizeFailure", err)
	}
	if rows, cols, _ := s.Size(); rows != DefaultRows || cols != DefaultCols {
		t.Errorf("failed resize changed size to %dx%d", rows, cols)
	}
}

func TestSupervisor_ReplaceAndWarn(t *testing.T) {
	s, backend := newTestSupervisor(t)

	first, err := s.SpawnShell("", "")
	if err != nil {
		t.Fatalf("first SpawnShell: %v", err)
	}
	second, err := s.SpawnShell("", "")
	if err != nil {
		t.Fatalf("second SpawnShell: %v", err)
	}

	if first == second {
		t.Errorf("session IDs should differ, both %q", first)
	}
	if id, _ := s.SessionID(); id != second {
		t.Errorf("SessionID() = %q, want %q", id, second)
	}
	if !backend.Master(0).IsClosed() {
		t.Error("replaced session's master should be closed")
	}
	if backend.Master(1).IsClosed() {
		t.Error("new session's master should be open")
	}
	if backend.Process(0).Hangups() != 1 {
		t.Error("replaced session's child should be hung up")
	}
}

func TestSupervisor_SpawnFailures(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		s, backend := newTestSupervisor(t)
		backend.SetSpawnError(exec.ErrNotFound)

		_, err := s.SpawnShell("/no/such/shell", "")
		if !errors.Is(err, pty.ErrSpawnFailed) || pty.ReasonOf(err) != pty.SpawnNotFound {
			t.Errorf("SpawnShell = %v, want SpawnFailed/NotFound", err)
		}
		if s.Active() {
			t.Error("failed spawn must not leave a session")
		}
		if !backend.Master(0).IsClosed() {
			t.Error("failed spawn should release the PTY")
		}
	})

	t.Run("pty allocation", func(t *testing.T) {
		s, backend := newTestSupervisor(t)
		backend.SetOpenError(errors.New("no ptys"))

		_, err := s.SpawnShell("", "")
		if !errors.Is(err, pty.ErrOsPtyFailure) {
			t.Errorf("SpawnShell = %v, want ErrOsPtyFailure", err)
		}
	})

	t.Run("replaced session is gone even if the new spawn fails", func(t *testing.T) {
		s, backend := newTestSupervisor(t)
		if _, err := s.SpawnShell("", ""); err != nil {
			t.Fatalf("SpawnShell: %v", err)
		}
		backend.SetSpawnError(errors.New("boom"))
		if _, err := s.SpawnShell("", ""); err == nil {
			t.Fatal("expected spawn error")
		}
		if s.Active() {
			t.Error("no session should remain")
		}
	})
}

func TestSupervisor_ShellSelection(t *testing.T) {
	s, backend := newTestSupervisor(t,
		WithShell("/bin/configured", "-l"),
		WithEnv(map[string]string{"FOO": "bar"}),
		WithTerm("vt100"),
	)

	if _, err := s.SpawnShell("", "/tmp"); err != nil {
		t.Fatalf("SpawnShell: %v", err)
	}
	if _, err := s.SpawnShell("/bin/explicit", ""); err != nil {
		t.Fatalf("SpawnShell: %v", err)
	}

	cmds := backend.Commands()
	want := []pty.Command{
		{Path: "/bin/configured", Args: []string{"-l"}, Dir: "/tmp", Env: map[string]string{"FOO": "bar"}, Term: "vt100"},
		{Path: "/bin/explicit", Env: map[string]string{"FOO": "bar"}, Term: "vt100"},
	}
	if !reflect.DeepEqual(cmds, want) {
		t.Errorf("commands =\n  %+v\nwant\n  %+v", cmds, want)
	}
}

type denyDirs struct{}

func (denyDirs) CheckDir(dir string) error {
	return fmt.Errorf("directory %s not allowed", dir)
}

func TestSupervisor_DirChecker(t *testing.T) {
	s, backend := newTestSupervisor(t, WithDirChecker(denyDirs{}))

	if _, err := s.SpawnShell("", "/etc"); err == nil {
		t.Fatal("expected the directory to be rejected")
	}
	if len(backend.Commands()) != 0 {
		t.Error("nothing should be spawned for a rejected directory")
	}
	if _, err := s.SpawnShell("", ""); err != nil {
		t.Errorf("an empty directory is not checked: %v", err)
	}
}

func TestSupervisor_ReadError(t *testing.T) {
	s, backend := newTestSupervisor(t)
	if _, err := s.SpawnShell("", ""); err != nil {
		t.Fatalf("SpawnShell: %v", err)
	}

	backend.Master(0).FailRead(errors.New("device vanished"))
	if ev := nextEvent(t, s); ev != (ErrorEvent{Message: "device vanished"}) {
		t.Errorf("event = %#v, want ErrorEvent", ev)
	}
}

func TestSupervisor_WriteError(t *testing.T) {
	s, backend := newTestSupervisor(t)
	if _, err := s.SpawnShell("", ""); err != nil {
		t.Fatalf("SpawnShell: %v", err)
	}

	backend.Master(0).SetWriteError(errors.New("write refused"))
	if err := s.SendInput([]byte("x")); err != nil {
		t.Fatalf("SendInput: %v", err)
	}
	if ev := nextEvent(t, s); ev != (ErrorEvent{Message: "write refused"}) {
		t.Errorf("event = %#v, want ErrorEvent", ev)
	}
}

func TestSupervisor_WaitError(t *testing.T) {
	s, backend := newTestSupervisor(t)
	if _, err := s.SpawnShell("", ""); err != nil {
		t.Fatalf("SpawnShell: %v", err)
	}

	backend.Master(0).EmitEOF()
	backend.Process(0).FailWait(errors.New("wait: no child"))
	backend.Process(0).Kill("unknown")

	if ev := nextEvent(t, s); ev != (ErrorEvent{Message: "wait: no child"}) {
		t.Errorf("first event = %#v, want ErrorEvent", ev)
	}
	if _, ok := nextEvent(t, s).(Exited); !ok {
		t.Error("Exited must still follow a wait error")
	}
}

type recordCall struct {
	Op     string
	ID     string
	Data   string
	W, H   int
	Masked bool
}

type fakeRecording struct {
	mu    sync.Mutex
	calls []recordCall
}

func (r *fakeRecording) add(c recordCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *fakeRecording) StartRecording(id string, w, h int) error {
	r.add(recordCall{Op: "start", ID: id, W: w, H: h})
	return nil
}

func (r *fakeRecording) RecordOutput(id, data string) {
	r.add(recordCall{Op: "output", ID: id, Data: data})
}

func (r *fakeRecording) RecordInput(id, data string, masked bool) {
	r.add(recordCall{Op: "input", ID: id, Data: data, Masked: masked})
}

func (r *fakeRecording) RecordResize(id string, w, h int) {
	r.add(recordCall{Op: "resize", ID: id, W: w, H: h})
}

func (r *fakeRecording) StopRecording(id string) error {
	r.add(recordCall{Op: "stop", ID: id})
	return nil
}

func (r *fakeRecording) ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.Op
	}
	return out
}

func TestSupervisor_Recording(t *testing.T) {
	rec := &fakeRecording{}
	s, backend := newTestSupervisor(t, WithRecording(rec, true))

	id, err := s.SpawnShell("", "")
	if err != nil {
		t.Fatalf("SpawnShell: %v", err)
	}

	backend.Master(0).Emit("prompt$ ")
	nextEvent(t, s)

	if err := s.SendInput([]byte("secret\n")); err != nil {
		t.Fatalf("SendInput: %v", err)
	}
	waitFor(t, "input recorded", func() bool { return len(rec.ops()) >= 3 })

	if err := s.ResizePty(10, 40); err != nil {
		t.Fatalf("ResizePty: %v", err)
	}
	if err := s.TerminateShell(); err != nil {
		t.Fatalf("TerminateShell: %v", err)
	}
	waitFor(t, "recording stopped", func() bool {
		ops := rec.ops()
		return len(ops) > 0 && ops[len(ops)-1] == "stop"
	})

	rec.mu.Lock()
	defer rec.mu.Unlock()
	want := []recordCall{
		{Op: "start", ID: id, W: DefaultCols, H: DefaultRows},
		{Op: "output", ID: id, Data: "prompt$ "},
		{Op: "input", ID: id, Data: "secret\n", Masked: true},
		{Op: "resize", ID: id, W: 40, H: 10},
		{Op: "stop", ID: id},
	}
	if !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("recording calls =\n  %+v\nwant\n  %+v", rec.calls, want)
	}
}

func TestSupervisor_Info(t *testing.T) {
	s, _ := newTestSupervisor(t, WithSize(30, 100))
	if _, err := s.Info(); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("Info() without session = %v", err)
	}

	id, err := s.SpawnShell("/usr/bin/zsh", "/srv")
	if err != nil {
		t.Fatalf("SpawnShell: %v", err)
	}
	info, err := s.Info()
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	want := Info{ID: id, Shell: "/usr/bin/zsh", Rows: 30, Cols: 100, Cwd: "/srv"}
	if info != want {
		t.Errorf("Info() = %+v, want %+v", info, want)
	}
	if got := info.String(); got != id+" (zsh, 100x30)" {
		t.Errorf("String() = %q", got)
	}
}
