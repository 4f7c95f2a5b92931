//go:build !windows

package pty

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// reclaimGrace is how long Reclaim waits between SIGHUP and SIGKILL.
const reclaimGrace = 100 * time.Millisecond

type platformBackend struct{}

func (platformBackend) Open(size Winsize) (*Pair, error) {
	if size.Rows == 0 || size.Cols == 0 {
		return nil, &Error{Kind: KindOsPtyFailure, Err: ErrInvalidSize}
	}

	master, slave, err := pty.Open()
	if err != nil {
		return nil, &Error{Kind: KindOsPtyFailure, Err: err}
	}

	// The size goes on before any child can open the slave.
	if err := pty.Setsize(master, &pty.Winsize{Rows: size.Rows, Cols: size.Cols}); err != nil {
		master.Close()
		slave.Close()
		return nil, &Error{Kind: KindOsPtyFailure, Err: err}
	}

	return &Pair{
		Master: &fileMaster{f: master},
		Slave:  slave,
		Size:   size,
	}, nil
}

func (platformBackend) Spawn(pair *Pair, c Command) (Process, error) {
	if pair == nil || pair.Slave == nil {
		return nil, &Error{Kind: KindSpawnFailed, Path: c.Path, Err: errors.New("pty slave not available")}
	}

	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Environ()
	cmd.Stdin = pair.Slave
	cmd.Stdout = pair.Slave
	cmd.Stderr = pair.Slave
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
	}

	if err := cmd.Start(); err != nil {
		return nil, SpawnError(c.Path, err)
	}

	// The child holds its own copy; keeping ours would hide EOF from the reader.
	pair.Slave.Close()
	pair.Slave = nil

	return &unixProcess{cmd: cmd}, nil
}

// fileMaster is a PTY master backed by an *os.File.
type fileMaster struct {
	f *os.File
}

func (m *fileMaster) Read(p []byte) (int, error) {
	return m.f.Read(p)
}

func (m *fileMaster) Write(p []byte) (int, error) {
	return m.f.Write(p)
}

func (m *fileMaster) Close() error {
	return m.f.Close()
}

func (m *fileMaster) Resize(size Winsize) error {
	if size.Rows == 0 || size.Cols == 0 {
		return &Error{Kind: KindOsResizeFailure, Err: ErrInvalidSize}
	}
	if err := pty.Setsize(m.f, &pty.Winsize{Rows: size.Rows, Cols: size.Cols}); err != nil {
		return &Error{Kind: KindOsResizeFailure, Err: err}
	}
	return nil
}

// unixProcess is a child started with Setsid, so its pid is also its
// process group id.
type unixProcess struct {
	cmd *exec.Cmd
}

func (p *unixProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *unixProcess) Wait() (ExitStatus, error) {
	err := p.cmd.Wait()
	state := p.cmd.ProcessState
	if state == nil {
		return ExitStatus{}, &Error{Kind: KindIO, Err: err}
	}

	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return ExitStatus{Signal: ws.Signal().String()}, nil
	}

	code := int32(state.ExitCode())
	return ExitStatus{Code: &code}, nil
}

func (p *unixProcess) Hangup() error {
	err := unix.Kill(-p.Pid(), unix.SIGHUP)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

func (p *unixProcess) Reclaim() {
	pgid := -p.Pid()
	if err := unix.Kill(pgid, unix.SIGHUP); err != nil {
		return
	}
	time.Sleep(reclaimGrace)
	if unix.Kill(pgid, 0) == nil {
		_ = unix.Kill(pgid, unix.SIGKILL)
	}
}

func isHangup(err error) bool {
	return errors.Is(err, unix.EIO)
}
