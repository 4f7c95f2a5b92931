package fakepty

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/acolita/termengine/internal/pty"
)

func TestBackend_OpenSpawn(t *testing.T) {
	b := New()
	pair, err := b.Open(pty.Winsize{Rows: 24, Cols: 80})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	proc, err := b.Spawn(pair, pty.Command{Path: "/bin/zsh", Dir: "/tmp"})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if proc.Pid() == 0 {
		t.Error("pid should be set")
	}
	if cmds := b.Commands(); len(cmds) != 1 || cmds[0].Dir != "/tmp" {
		t.Errorf("Commands() = %+v", cmds)
	}
	if b.Master(0) != pair.Master {
		t.Error("Master(0) should be the opened master")
	}
}

func TestBackend_Errors(t *testing.T) {
	b := New()
	if _, err := b.Open(pty.Winsize{}); !errors.Is(err, pty.ErrOsPtyFailure) {
		t.Errorf("Open(zero) error = %v", err)
	}

	b.SetSpawnError(os.ErrPermission)
	pair, _ := b.Open(pty.Winsize{Rows: 1, Cols: 1})
	_, err := b.Spawn(pair, pty.Command{Path: "x"})
	if pty.ReasonOf(err) != pty.SpawnPermissionDenied {
		t.Errorf("Spawn error = %v, want permission denied", err)
	}
}

func TestMaster_ReadWrite(t *testing.T) {
	m := newMaster(pty.Winsize{Rows: 1, Cols: 1})
	m.Emit("hello world")

	buf := make([]byte, 5)
	n, err := m.Read(buf)
	if err != nil || string(buf[:n]) != "hello" {
		t.Fatalf("Read = %q, %v", buf[:n], err)
	}
	rest := make([]byte, 64)
	n, _ = m.Read(rest)
	if string(rest[:n]) != " world" {
		t.Errorf("second Read = %q, want %q", rest[:n], " world")
	}

	if _, err := m.Write([]byte("ls\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if m.Written() != "ls\n" {
		t.Errorf("Written() = %q", m.Written())
	}
}

func TestMaster_EOFAndClose(t *testing.T) {
	m := newMaster(pty.Winsize{Rows: 1, Cols: 1})
	m.EmitEOF()
	if _, err := m.Read(make([]byte, 1)); err != io.EOF {
		t.Errorf("Read after EmitEOF error = %v, want io.EOF", err)
	}

	m = newMaster(pty.Winsize{Rows: 1, Cols: 1})
	m.Close()
	if _, err := m.Read(make([]byte, 1)); !errors.Is(err, os.ErrClosed) {
		t.Errorf("Read after Close error = %v", err)
	}
	if _, err := m.Write([]byte("x")); !errors.Is(err, os.ErrClosed) {
		t.Errorf("Write after Close error = %v", err)
	}
	if !m.IsClosed() {
		t.Error("IsClosed should be true")
	}
}

func TestMaster_Resize(t *testing.T) {
	m := newMaster(pty.Winsize{Rows: 1, Cols: 1})
	if err := m.Resize(pty.Winsize{Rows: 10, Cols: 20}); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if m.Size() != (pty.Winsize{Rows: 10, Cols: 20}) {
		t.Errorf("Size() = %+v", m.Size())
	}
	m.SetResizeError(errors.New("ioctl"))
	if err := m.Resize(pty.Winsize{Rows: 1, Cols: 1}); !errors.Is(err, pty.ErrOsResizeFailure) {
		t.Errorf("Resize error = %v", err)
	}
}

func TestProcess_Lifecycle(t *testing.T) {
	p := newProcess(1)
	p.Exit(3)
	p.Kill("ignored") // only the first outcome counts
	st, err := p.Wait()
	if err != nil || st.Code == nil || *st.Code != 3 {
		t.Errorf("Wait = %+v, %v", st, err)
	}

	p = newProcess(2)
	p.IgnoreHangup()
	p.Hangup()
	if p.Hangups() != 1 {
		t.Errorf("Hangups() = %d", p.Hangups())
	}
	p.Reclaim()
	st, _ = p.Wait()
	if !st.Signaled() || !p.Reclaimed() {
		t.Errorf("after Reclaim status = %+v reclaimed = %v", st, p.Reclaimed())
	}
}
