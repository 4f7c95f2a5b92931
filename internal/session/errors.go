package session

import "errors"

var (
	// ErrNoActiveSession is returned by every call that needs a running
	// session when none exists.
	ErrNoActiveSession = errors.New("no active session")

	// ErrAlreadyActive is informational: SpawnShell replaces the active
	// session and logs this instead of returning it.
	ErrAlreadyActive = errors.New("session already active")

	// ErrSessionExited is returned by SendInput once the shell has exited
	// and its writer has stopped.
	ErrSessionExited = errors.New("session has exited")
)
