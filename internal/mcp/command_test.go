package mcp

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/acolita/termengine/internal/runner"
	"github.com/acolita/termengine/internal/security"
)

// fakeCommands replays a fixed status stream for every command.
type fakeCommands struct {
	mu       sync.Mutex
	statuses []runner.Status
	err      error
	lines    []string
	opts     []runner.ShellOptions
}

func (f *fakeCommands) RunShell(ctx context.Context, line string, opts runner.ShellOptions) (*runner.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lines = append(f.lines, line)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}

	ch := make(chan runner.Status, len(f.statuses))
	for _, st := range f.statuses {
		ch <- st
	}
	close(ch)
	return &runner.Execution{ID: "exec-1", Line: line, Started: time.Now(), Status: ch}, nil
}

func chunk(stream runner.Stream, data string) runner.Status {
	return runner.Status{State: runner.StateRunning, Stream: stream, Chunk: []byte(data)}
}

func TestHandleCommandExecute(t *testing.T) {
	cmds := &fakeCommands{statuses: []runner.Status{
		chunk(runner.Stdout, "\x1b[32mok\x1b[0m\n"),
		chunk(runner.Stderr, "warning\n"),
		chunk(runner.Stdout, "done\n"),
		{State: runner.StateCompleted, Code: 2},
	}}
	env := newTestEnv(t)
	env.srv.commands = cmds

	result, err := env.srv.handleCommandExecute(context.Background(), makeRequest(map[string]any{
		"command":    "make test",
		"dir":        "/work",
		"timeout_ms": 1500,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var res commandResult
	decodeResult(t, result, &res)
	want := commandResult{
		ExecutionID: "exec-1",
		Status:      "completed",
		ExitCode:    2,
		Stdout:      "ok\ndone\n",
		Stderr:      "warning\n",
	}
	if !reflect.DeepEqual(res, want) {
		t.Errorf("result = %+v, want %+v", res, want)
	}

	if len(cmds.lines) != 1 || cmds.lines[0] != "make test" {
		t.Errorf("lines = %q", cmds.lines)
	}
	if opts := cmds.opts[0]; opts.Dir != "/work" || opts.Timeout != 1500*time.Millisecond {
		t.Errorf("opts = %+v", opts)
	}
}

func TestHandleCommandExecute_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		final      runner.Status
		wantStatus string
		wantCode   int
		wantMsg    string
	}{
		{"killed", runner.Status{State: runner.StateKilled}, "killed", -1, ""},
		{"failed", runner.Status{State: runner.StateFailed, Message: "read stdout: broken pipe"}, "failed", -1, "read stdout: broken pipe"},
		{"success", runner.Status{State: runner.StateCompleted}, "completed", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.srv.commands = &fakeCommands{statuses: []runner.Status{tt.final}}

			result, err := env.srv.handleCommandExecute(context.Background(), makeRequest(map[string]any{"command": "x"}))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var res commandResult
			decodeResult(t, result, &res)
			if res.Status != tt.wantStatus || res.ExitCode != tt.wantCode || res.Message != tt.wantMsg {
				t.Errorf("result = %+v", res)
			}
		})
	}
}

func TestHandleCommandExecute_Suggestions(t *testing.T) {
	env := newTestEnv(t)
	env.srv.commands = &fakeCommands{statuses: []runner.Status{
		chunk(runner.Stderr, "bash: line 1: frobnicate: command not found\n"),
		{State: runner.StateCompleted, Code: 127},
	}}

	result, err := env.srv.handleCommandExecute(context.Background(), makeRequest(map[string]any{"command": "frobnicate"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res commandResult
	decodeResult(t, result, &res)
	if len(res.Suggestions) != 1 || res.Suggestions[0].Error != "Command not found: frobnicate" {
		t.Errorf("suggestions = %+v", res.Suggestions)
	}
}

func TestHandleCommandExecute_NoSuggestionsWhenKilled(t *testing.T) {
	env := newTestEnv(t)
	env.srv.commands = &fakeCommands{statuses: []runner.Status{
		chunk(runner.Stderr, "Permission denied\n"),
		{State: runner.StateKilled},
	}}

	result, _ := env.srv.handleCommandExecute(context.Background(), makeRequest(map[string]any{"command": "x"}))
	var res commandResult
	decodeResult(t, result, &res)
	if len(res.Suggestions) != 0 {
		t.Errorf("suggestions = %+v, want none", res.Suggestions)
	}
}

func TestHandleCommandExecute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]any
		runErr   error
		contains string
	}{
		{"missing command", map[string]any{}, nil, errCommandRequired},
		{"missing dir", map[string]any{"command": "ls", "dir": "/nope"}, nil, "initial directory"},
		{"dir is a file", map[string]any{"command": "ls", "dir": "/work/notes.txt"}, nil, "not a directory"},
		{"blocked", map[string]any{"command": "rm -rf /"}, security.ErrBlocked, "blocked by policy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.srv.commands = &fakeCommands{err: tt.runErr}

			result, err := env.srv.handleCommandExecute(context.Background(), makeRequest(tt.args))
			expectToolError(t, result, err, tt.contains)
		})
	}
}

func TestHandleCommandExecute_Duration(t *testing.T) {
	env := newTestEnv(t)
	env.srv.commands = &delayedCommands{advance: func() { env.clock.Advance(250 * time.Millisecond) }}

	result, err := env.srv.handleCommandExecute(context.Background(), makeRequest(map[string]any{"command": "sleep"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res commandResult
	decodeResult(t, result, &res)
	if res.DurationMs != 250 {
		t.Errorf("duration_ms = %d, want 250", res.DurationMs)
	}
}

// delayedCommands moves the clock while the command "runs".
type delayedCommands struct {
	advance func()
}

func (d *delayedCommands) RunShell(ctx context.Context, line string, opts runner.ShellOptions) (*runner.Execution, error) {
	d.advance()
	ch := make(chan runner.Status, 1)
	ch <- runner.Status{State: runner.StateCompleted}
	close(ch)
	return &runner.Execution{ID: "exec-2", Line: line, Status: ch}, nil
}

func TestHandleCommandExecute_NegativeTimeout(t *testing.T) {
	cmds := &fakeCommands{statuses: []runner.Status{{State: runner.StateCompleted}}}
	env := newTestEnv(t)
	env.srv.commands = cmds

	if _, err := env.srv.handleCommandExecute(context.Background(), makeRequest(map[string]any{
		"command":    "ls",
		"timeout_ms": -5,
	})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmds.opts[0].Timeout != 0 {
		t.Errorf("timeout = %v, want 0", cmds.opts[0].Timeout)
	}
}

var _ Commands = (*fakeCommands)(nil)
var _ Commands = (*delayedCommands)(nil)
