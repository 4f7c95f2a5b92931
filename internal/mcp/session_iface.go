package mcp

import (
	"context"

	"github.com/acolita/termengine/internal/runner"
	"github.com/acolita/termengine/internal/session"
	"github.com/acolita/termengine/internal/vt"
)

// Shells is the interactive session API the shell_* tools call.
type Shells interface {
	SpawnShell(path, initialDir string) (string, error)
	SendInput(data []byte) error
	ReadOutput(ctx context.Context) (session.ShellEvent, error)
	ResizePty(rows, cols uint16) error
	TerminateShell() error
	Info() (session.Info, error)
	Screen() (vt.Snapshot, error)
}

// Commands is the one-shot execution API behind command_execute.
type Commands interface {
	RunShell(ctx context.Context, line string, opts runner.ShellOptions) (*runner.Execution, error)
}

// Verify concrete types satisfy the interfaces at compile time.
var _ Shells = (*session.Supervisor)(nil)
var _ Commands = (*runner.Runner)(nil)
