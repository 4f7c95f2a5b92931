package pty

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
)

// Sentinel errors for PTY and process operations. An *Error matches the
// sentinel of its Kind under errors.Is.
var (
	ErrOsPtyFailure    = errors.New("pty allocation failed")
	ErrSpawnFailed     = errors.New("spawn failed")
	ErrOsResizeFailure = errors.New("pty resize failed")
	ErrIO              = errors.New("pty i/o failed")

	// ErrInvalidSize is returned when rows or cols is zero.
	ErrInvalidSize = errors.New("invalid terminal size")

	// ErrUnsupported is returned by the backend on platforms without PTYs.
	ErrUnsupported = errors.New("PTY not supported on this platform")
)

// Kind classifies an *Error.
type Kind int

const (
	KindOsPtyFailure Kind = iota + 1
	KindSpawnFailed
	KindOsResizeFailure
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindOsPtyFailure:
		return "os_pty_failure"
	case KindSpawnFailed:
		return "spawn_failed"
	case KindOsResizeFailure:
		return "os_resize_failure"
	case KindIO:
		return "io_error"
	default:
		return "unknown"
	}
}

// SpawnReason narrows a KindSpawnFailed error.
type SpawnReason int

const (
	SpawnOther SpawnReason = iota
	SpawnNotFound
	SpawnPermissionDenied
)

func (r SpawnReason) String() string {
	switch r {
	case SpawnNotFound:
		return "not_found"
	case SpawnPermissionDenied:
		return "permission_denied"
	default:
		return "other"
	}
}

// Error is the error type returned by allocation, spawn and resize.
type Error struct {
	Kind   Kind
	Reason SpawnReason // only meaningful for KindSpawnFailed
	Path   string      // executable path for spawn failures
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindSpawnFailed:
		return fmt.Sprintf("spawn %s (%s): %v", e.Path, e.Reason, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrOsPtyFailure:
		return e.Kind == KindOsPtyFailure
	case ErrSpawnFailed:
		return e.Kind == KindSpawnFailed
	case ErrOsResizeFailure:
		return e.Kind == KindOsResizeFailure
	case ErrIO:
		return e.Kind == KindIO
	}
	return false
}

// SpawnError classifies a process start failure. It is shared with the
// pipe-based command runner so both launch paths report the same taxonomy.
func SpawnError(path string, err error) *Error {
	reason := SpawnOther
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		reason = SpawnNotFound
	case errors.Is(err, fs.ErrPermission):
		reason = SpawnPermissionDenied
	}
	return &Error{Kind: KindSpawnFailed, Reason: reason, Path: path, Err: err}
}

// ReasonOf returns the spawn reason carried by err, or SpawnOther.
func ReasonOf(err error) SpawnReason {
	var pe *Error
	if errors.As(err, &pe) && pe.Kind == KindSpawnFailed {
		return pe.Reason
	}
	return SpawnOther
}
