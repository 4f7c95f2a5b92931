// Package realfs implements ports.FileSystem with the os package.
package realfs

import (
	"io/fs"
	"os"

	"github.com/acolita/termengine/internal/ports"
)

var _ ports.FileSystem = FS{}

// FS forwards to the host filesystem and environment.
type FS struct{}

func New() FS { return FS{} }

func (FS) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

func (FS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	return os.WriteFile(name, data, perm)
}

func (FS) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

func (FS) OpenFile(name string, flag int, perm fs.FileMode) (ports.FileHandle, error) {
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		// Keep the interface nil rather than wrapping a nil *os.File.
		return nil, err
	}
	return f, nil
}

func (FS) MkdirAll(path string, perm fs.FileMode) error { return os.MkdirAll(path, perm) }

func (FS) Remove(name string) error { return os.Remove(name) }

func (FS) Rename(oldpath, newpath string) error { return os.Rename(oldpath, newpath) }

func (FS) UserHomeDir() (string, error) { return os.UserHomeDir() }

func (FS) Getenv(key string) string { return os.Getenv(key) }
