//go:build windows

package pty

type platformBackend struct{}

func (platformBackend) Open(Winsize) (*Pair, error) {
	return nil, &Error{Kind: KindOsPtyFailure, Err: ErrUnsupported}
}

func (platformBackend) Spawn(_ *Pair, c Command) (Process, error) {
	return nil, &Error{Kind: KindSpawnFailed, Path: c.Path, Err: ErrUnsupported}
}

func isHangup(error) bool {
	return false
}
