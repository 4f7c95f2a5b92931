// Package runner executes one-shot commands on plain pipes and reports
// their progress as a stream of Status values.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/acolita/termengine/internal/pty"
)

const (
	// DefaultChunkSize is the longest Running chunk; longer lines are split.
	DefaultChunkSize = 4096

	statusBufferSize = 64

	// killWaitDelay bounds how long Wait waits for pipes held open by
	// descendants after the command was killed.
	killWaitDelay = 2 * time.Second
)

// CommandChecker rejects command lines before they run.
type CommandChecker interface {
	Check(command string) error
}

// DirChecker rejects working directories before a command runs in them.
type DirChecker interface {
	CheckDir(dir string) error
}

// Command describes a one-shot execution.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     map[string]string
	Timeout time.Duration // zero means no limit beyond ctx
}

// Line renders the command as the policy sees it.
func (c Command) Line() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// ShellOptions configure RunShell.
type ShellOptions struct {
	Dir     string
	Env     map[string]string
	Timeout time.Duration
}

// Execution is a started command.
type Execution struct {
	ID      string
	Line    string
	Started time.Time

	// Status yields Running chunks, then exactly one terminal status, and
	// is then closed. Callers must drain it until it closes.
	Status <-chan Status
}

// Runner starts commands. Each call is independent, so one Runner may be
// used from many goroutines.
type Runner struct {
	commands  CommandChecker
	dirs      DirChecker
	shell     string
	chunkSize int
	timeout   time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithCommandChecker rejects command lines the checker refuses.
func WithCommandChecker(c CommandChecker) Option {
	return func(r *Runner) {
		r.commands = c
	}
}

// WithDirChecker rejects working directories the checker refuses.
func WithDirChecker(c DirChecker) Option {
	return func(r *Runner) {
		r.dirs = c
	}
}

// WithShell sets the shell used by RunShell.
func WithShell(path string) Option {
	return func(r *Runner) {
		r.shell = path
	}
}

// WithChunkSize sets the longest Running chunk.
func WithChunkSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.chunkSize = n
		}
	}
}

// WithDefaultTimeout applies to commands that set no Timeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute runs cmd and returns its status stream. Policy and spawn failures
// are returned directly and produce no stream.
func (r *Runner) Execute(ctx context.Context, cmd Command) (<-chan Status, error) {
	ex, err := r.Start(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return ex.Status, nil
}

// RunShell runs line through the configured shell with -c.
func (r *Runner) RunShell(ctx context.Context, line string, opts ShellOptions) (*Execution, error) {
	shell := r.shell
	if shell == "" {
		shell = pty.DetectShell()
	}
	return r.start(ctx, Command{
		Name:    shell,
		Args:    []string{"-c", line},
		Dir:     opts.Dir,
		Env:     opts.Env,
		Timeout: opts.Timeout,
	}, line)
}

// Start runs cmd and returns the started execution.
func (r *Runner) Start(ctx context.Context, cmd Command) (*Execution, error) {
	return r.start(ctx, cmd, cmd.Line())
}

func (r *Runner) start(ctx context.Context, cmd Command, line string) (*Execution, error) {
	if cmd.Name == "" {
		return nil, pty.SpawnError(cmd.Name, exec.ErrNotFound)
	}
	if r.commands != nil {
		if err := r.commands.Check(line); err != nil {
			return nil, err
		}
	}
	if cmd.Dir != "" && r.dirs != nil {
		if err := r.dirs.CheckDir(cmd.Dir); err != nil {
			return nil, err
		}
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = environ(cmd.Env)
	c.WaitDelay = killWaitDelay
	setProcessGroup(c)
	c.Cancel = func() error {
		return killProcessGroup(c)
	}

	stdout, err := c.StdoutPipe()
	if err != nil {
		cancel()
		return nil, &pty.Error{Kind: pty.KindIO, Path: cmd.Name, Err: err}
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		cancel()
		return nil, &pty.Error{Kind: pty.KindIO, Path: cmd.Name, Err: err}
	}

	if err := c.Start(); err != nil {
		cancel()
		return nil, pty.SpawnError(cmd.Name, err)
	}

	out := make(chan Status, statusBufferSize)
	ex := &Execution{
		ID:      uuid.NewString(),
		Line:    line,
		Started: time.Now(),
		Status:  out,
	}

	slog.Info("command started",
		slog.String("execution_id", ex.ID),
		slog.String("command", line),
		slog.Int("pid", c.Process.Pid),
	)

	go func() {
		defer cancel()
		defer close(out)

		final := r.run(ctx, c, stdout, stderr, out)
		slog.Info("command finished",
			slog.String("execution_id", ex.ID),
			slog.String("status", final.String()),
			slog.Duration("duration", time.Since(ex.Started)),
		)
		out <- final
	}()

	return ex, nil
}

// run drains both pipes, waits for the child and returns the terminal
// status. Running chunks are sent on out as they are read.
func (r *Runner) run(ctx context.Context, c *exec.Cmd, stdout, stderr io.Reader, out chan<- Status) Status {
	emit := func(st Status) {
		select {
		case out <- st:
		case <-ctx.Done():
		}
	}

	var g errgroup.Group
	g.Go(func() error { return r.pipe(stdout, Stdout, emit) })
	g.Go(func() error { return r.pipe(stderr, Stderr, emit) })
	readErr := g.Wait()

	waitErr := c.Wait()
	state := c.ProcessState

	switch {
	case state != nil && state.Exited():
		if readErr != nil && ctx.Err() == nil {
			return failed(readErr.Error())
		}
		return completed(int32(state.ExitCode()))
	case state != nil, ctx.Err() != nil:
		return killed()
	case waitErr != nil:
		return failed(waitErr.Error())
	case readErr != nil:
		return failed(readErr.Error())
	}
	return failed("command ended without an exit status")
}

// pipe emits src line by line. A line longer than the chunk size is split,
// and a trailing partial line is flushed at EOF.
func (r *Runner) pipe(src io.Reader, stream Stream, emit func(Status)) error {
	br := bufio.NewReaderSize(src, r.chunkSize)
	for {
		line, err := br.ReadSlice('\n')
		if len(line) > 0 {
			chunk := make([]byte, len(line))
			copy(chunk, line)
			emit(running(stream, chunk))
		}
		switch {
		case err == nil, errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF), errors.Is(err, os.ErrClosed):
			return nil
		default:
			return fmt.Errorf("read %s: %w", stream, err)
		}
	}
}

// environ returns the parent's environment with overrides applied in key
// order.
func environ(overrides map[string]string) []string {
	env := os.Environ()
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}
